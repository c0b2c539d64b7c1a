package speech

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/aibuddy/internal/providers/tts"
)

// Playback tracks one Speak call.
type Playback struct {
	started chan struct{}
	done    chan struct{}
	err     error

	startOnce sync.Once
	doneOnce  sync.Once
	cancel    context.CancelFunc
}

func newPlayback(cancel context.CancelFunc) *Playback {
	return &Playback{
		started: make(chan struct{}),
		done:    make(chan struct{}),
		cancel:  cancel,
	}
}

// Started is closed once audio output begins. It is never closed for a
// playback that fails or is stopped before that point.
func (p *Playback) Started() <-chan struct{} { return p.started }

func (p *Playback) Done() <-chan struct{} { return p.done }

// Err is nil after a natural end. Only meaningful once Done is closed.
func (p *Playback) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

type SpeakerOption func(*Speaker)

func WithOnStart(fn func()) SpeakerOption  { return func(s *Speaker) { s.onStart = fn } }
func WithOnFinish(fn func()) SpeakerOption { return func(s *Speaker) { s.onFinish = fn } }

// WithScratchDir sets where synthesized audio is written before playback.
func WithScratchDir(dir string) SpeakerOption { return func(s *Speaker) { s.dir = dir } }

// Speaker synthesizes text and plays it, one utterance at a time.
type Speaker struct {
	player Player
	log    *logrus.Logger
	dir    string

	onStart  func()
	onFinish func()

	ready    chan struct{}
	provider tts.Provider
	initErr  error

	mu      sync.Mutex
	current *Playback
}

// NewSpeaker starts initFn in the background. Speak fails with ErrNotReady
// until it has returned a provider.
func NewSpeaker(ctx context.Context, initFn func(context.Context) (tts.Provider, error), player Player, log *logrus.Logger, opts ...SpeakerOption) *Speaker {
	s := &Speaker{
		player: player,
		log:    log,
		dir:    os.TempDir(),
		ready:  make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}

	go func() {
		p, err := initFn(ctx)
		s.mu.Lock()
		s.provider, s.initErr = p, err
		s.mu.Unlock()
		close(s.ready)

		if s.log == nil {
			return
		}
		if err != nil {
			s.log.WithError(err).Error("speech synthesizer init failed")
		} else {
			s.log.Info("speech synthesizer ready")
		}
	}()
	return s
}

func (s *Speaker) Ready() <-chan struct{} { return s.ready }

// Speak stops any current playback and speaks text. It never blocks on the
// network; the returned handle reports progress.
func (s *Speaker) Speak(ctx context.Context, text string) *Playback {
	pctx, cancel := context.WithCancel(ctx)
	pb := newPlayback(cancel)

	s.mu.Lock()
	prev := s.current
	s.current = pb
	provider := s.provider
	s.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}

	if strings.TrimSpace(text) == "" {
		s.finish(pb, nil)
		return pb
	}
	if provider == nil {
		err := ErrNotReady
		if s.initDone() && s.initErr != nil {
			err = errors.Join(ErrNotReady, s.initErr)
		}
		s.finish(pb, err)
		return pb
	}

	go s.run(pctx, pb, prev, provider, text)
	return pb
}

// Stop halts the current playback. OnFinish fires exactly once either way:
// from the playback being stopped or, when nothing is playing, directly.
func (s *Speaker) Stop() {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()

	if cur != nil {
		select {
		case <-cur.done:
		default:
			cur.cancel()
			return
		}
	}
	if s.onFinish != nil {
		s.onFinish()
	}
}

func (s *Speaker) Close() error {
	s.Stop()
	<-s.ready
	s.mu.Lock()
	p := s.provider
	s.mu.Unlock()
	if p != nil {
		return p.Close()
	}
	return nil
}

func (s *Speaker) run(ctx context.Context, pb, prev *Playback, provider tts.Provider, text string) {
	if prev != nil {
		<-prev.done
	}

	audio, err := provider.Synthesize(ctx, text)
	if err != nil {
		s.finish(pb, stoppedOr(ctx, err))
		return
	}
	if len(audio) == 0 {
		s.finish(pb, tts.ErrNoAudio)
		return
	}

	f, err := os.CreateTemp(s.dir, "aibuddy_response_*.mp3")
	if err != nil {
		s.finish(pb, err)
		return
	}
	path := f.Name()
	defer os.Remove(path)

	_, werr := f.Write(audio)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		s.finish(pb, errors.Join(werr, cerr))
		return
	}
	if ctx.Err() != nil {
		s.finish(pb, ErrStopped)
		return
	}

	pb.startOnce.Do(func() {
		close(pb.started)
		if s.onStart != nil {
			s.onStart()
		}
	})

	err = s.player.Play(ctx, path)
	s.finish(pb, stoppedOr(ctx, err))
}

func (s *Speaker) finish(pb *Playback, err error) {
	pb.doneOnce.Do(func() {
		pb.err = err
		pb.cancel()
		close(pb.done)

		if err != nil && !errors.Is(err, ErrStopped) && s.log != nil {
			s.log.WithError(err).Warn("speech playback failed")
		}
		if s.onFinish != nil {
			s.onFinish()
		}
	})
}

func (s *Speaker) initDone() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

func stoppedOr(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return ErrStopped
	}
	return err
}
