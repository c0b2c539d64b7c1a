package tts

import (
	"testing"

	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/stretchr/testify/assert"
)

func TestParseGender(t *testing.T) {
	assert.Equal(t, texttospeechpb.SsmlVoiceGender_MALE, ParseGender("male"))
	assert.Equal(t, texttospeechpb.SsmlVoiceGender_FEMALE, ParseGender(" FEMALE "))
	assert.Equal(t, texttospeechpb.SsmlVoiceGender_NEUTRAL, ParseGender(""))
	assert.Equal(t, texttospeechpb.SsmlVoiceGender_SSML_VOICE_GENDER_UNSPECIFIED, ParseGender("robot"))
}
