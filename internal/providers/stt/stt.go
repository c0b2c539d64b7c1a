package stt

import "context"

type Provider interface {
	// Transcribe recognizes one utterance of raw audio. An utterance with no
	// recognizable speech returns an empty text and a nil error.
	Transcribe(ctx context.Context, audio []byte, language string) (text string, confidence float64, err error)
	Close() error
}
