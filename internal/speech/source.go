package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// AudioSource captures a single utterance as raw 16 kHz LINEAR16 audio.
type AudioSource interface {
	Capture(ctx context.Context) ([]byte, error)
}

// CommandSource runs an external recorder that writes raw audio to stdout and
// exits on its own once the speaker goes quiet.
type CommandSource struct {
	Args        []string
	MaxDuration time.Duration
}

func NewCommandSource(args []string) *CommandSource {
	return &CommandSource{Args: args, MaxDuration: 30 * time.Second}
}

func (s *CommandSource) Capture(ctx context.Context) ([]byte, error) {
	if len(s.Args) == 0 {
		return nil, fmt.Errorf("%w: no recorder configured", ErrUnsupported)
	}

	limit := s.MaxDuration
	if limit <= 0 {
		limit = 30 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	var out, stderr bytes.Buffer
	cmd := exec.CommandContext(cctx, s.Args[0], s.Args[1:]...)
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		// utterance hit the length cap, keep what was heard
		return out.Bytes(), nil
	}
	if err != nil {
		return nil, classifyRecorderError(err, stderr.String())
	}
	return out.Bytes(), nil
}

func classifyRecorderError(err error, stderr string) error {
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = err.Error()
	}
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	case errors.Is(err, fs.ErrPermission), strings.Contains(strings.ToLower(msg), "permission denied"):
		return fmt.Errorf("%w: %s", ErrPermission, msg)
	default:
		return fmt.Errorf("%w: %s", ErrAudio, msg)
	}
}

type wsChunk struct {
	data  []byte
	final bool
}

// WSSource is fed by a remote client over a WebSocket. Chunks pushed while no
// capture is running are dropped.
type WSSource struct {
	// Idle ends a capture when no chunk arrives for this long.
	Idle time.Duration

	mu        sync.Mutex
	capturing bool
	chunks    chan wsChunk
}

func NewWSSource(idle time.Duration) *WSSource {
	if idle <= 0 {
		idle = 2500 * time.Millisecond
	}
	return &WSSource{Idle: idle, chunks: make(chan wsChunk, 256)}
}

// Push reports whether the chunk was accepted.
func (s *WSSource) Push(data []byte, final bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.capturing {
		return false
	}
	select {
	case s.chunks <- wsChunk{data: data, final: final}:
		return true
	default:
		return false
	}
}

func (s *WSSource) Capturing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capturing
}

func (s *WSSource) Capture(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	if s.capturing {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.capturing = true
	s.drainLocked()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.capturing = false
		s.drainLocked()
		s.mu.Unlock()
	}()

	var buf []byte
	idle := time.NewTimer(s.Idle)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-idle.C:
			return buf, nil
		case c := <-s.chunks:
			buf = append(buf, c.data...)
			if c.final {
				return buf, nil
			}
			idle.Reset(s.Idle)
		}
	}
}

func (s *WSSource) drainLocked() {
	for {
		select {
		case <-s.chunks:
		default:
			return
		}
	}
}
