package session

import (
	"time"

	"github.com/yoockh/aibuddy/internal/generation"
	"github.com/yoockh/aibuddy/internal/speech"
)

// Completions posted back to the loop. Each carries the connection epoch it
// was started under; anything from an older epoch is dropped.

type genKind int

const (
	genGreeting genKind = iota
	genMessage
	genSearch
)

type intentEvent struct {
	intent Intent
}

type genDone struct {
	epoch    uint64
	kind     genKind
	turn     int64
	userText string
	prior    []string
	started  time.Time
	env      generation.Envelope
	err      error
}

type listenDone struct {
	epoch uint64
	id    uint64
	res   speech.Result
}

type retryListen struct {
	epoch uint64
}

type speechStarted struct {
	epoch uint64
	pb    *speech.Playback
}

type speechDone struct {
	epoch uint64
	pb    *speech.Playback
}
