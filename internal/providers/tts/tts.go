package tts

import "context"

type Provider interface {
	// Synthesize returns encoded audio (MP3) for text.
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Close() error
}
