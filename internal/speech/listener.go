package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/aibuddy/internal/providers/stt"
)

// Result is the single outcome of one recognition session.
type Result struct {
	Text       string
	Confidence float64
	Err        error
}

// Listener runs at most one capture-and-transcribe session at a time.
type Listener struct {
	src      AudioSource
	stt      stt.Provider
	language string
	log      *logrus.Logger

	mu     sync.Mutex
	active bool
	seq    uint64
	cancel context.CancelFunc
}

func NewListener(src AudioSource, provider stt.Provider, language string, log *logrus.Logger) *Listener {
	if language == "" {
		language = "en-US"
	}
	return &Listener{src: src, stt: provider, language: language, log: log}
}

// Start begins a session. It returns false, and does nothing, when one is
// already running. The channel yields exactly one Result and is then closed.
func (l *Listener) Start(ctx context.Context) (<-chan Result, bool) {
	l.mu.Lock()
	if l.active {
		l.mu.Unlock()
		return nil, false
	}
	cctx, cancel := context.WithCancel(ctx)
	l.active = true
	l.seq++
	seq := l.seq
	l.cancel = cancel
	l.mu.Unlock()

	out := make(chan Result, 1)
	go func() {
		defer close(out)
		res := l.recognize(cctx)

		l.mu.Lock()
		if l.seq == seq {
			l.active = false
			l.cancel = nil
		}
		l.mu.Unlock()
		cancel()

		out <- res
	}()
	return out, true
}

// Cancel aborts the running session, if any. Its Result carries context.Canceled.
func (l *Listener) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (l *Listener) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

func (l *Listener) recognize(ctx context.Context) Result {
	if l.src == nil || l.stt == nil {
		return Result{Err: fmt.Errorf("%w: no audio source or recognizer", ErrUnsupported)}
	}

	start := time.Now()
	audio, err := l.src.Capture(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Err: context.Canceled}
		}
		if !isTaxonomy(err) {
			err = fmt.Errorf("%w: %v", ErrAudio, err)
		}
		return Result{Err: err}
	}
	if len(audio) == 0 {
		return Result{Err: ErrSpeechTimeout}
	}

	text, conf, err := l.stt.Transcribe(ctx, audio, l.language)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Err: context.Canceled}
		}
		return Result{Err: classifyRecognizerError(err)}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Err: ErrNoMatch}
	}

	if l.log != nil {
		l.log.WithFields(logrus.Fields{
			"audio_bytes": len(audio),
			"confidence":  conf,
			"elapsed_ms":  time.Since(start).Milliseconds(),
		}).Debug("utterance recognized")
	}
	return Result{Text: text, Confidence: conf}
}

func isTaxonomy(err error) bool {
	return IsTransient(err) ||
		errors.Is(err, ErrPermission) ||
		errors.Is(err, ErrUnsupported) ||
		errors.Is(err, ErrAudio) ||
		errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrServer)
}
