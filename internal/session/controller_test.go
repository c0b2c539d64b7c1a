package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/aibuddy/internal/generation"
	"github.com/yoockh/aibuddy/internal/logger"
	"github.com/yoockh/aibuddy/internal/models"
	"github.com/yoockh/aibuddy/internal/providers/tts"
	"github.com/yoockh/aibuddy/internal/speech"
)

// ---- fakes ----

type genCall struct {
	kind    string
	message string
	query   string
	history []string
}

type fakeGen struct {
	mu    sync.Mutex
	calls []genCall

	greeting func() (generation.Envelope, error)
	reply    func(message string) (generation.Envelope, error)
	search   func(query, message string) (generation.Envelope, error)

	// when set, Generate waits for it or ctx
	gate chan struct{}
}

func (g *fakeGen) record(c genCall) {
	g.mu.Lock()
	g.calls = append(g.calls, c)
	g.mu.Unlock()
}

func (g *fakeGen) count(kind string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c.kind == kind {
			n++
		}
	}
	return n
}

func (g *fakeGen) last(kind string) genCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.calls) - 1; i >= 0; i-- {
		if g.calls[i].kind == kind {
			return g.calls[i]
		}
	}
	return genCall{}
}

func (g *fakeGen) Greeting(ctx context.Context, history []string) (generation.Envelope, error) {
	g.record(genCall{kind: "greeting", history: history})
	if g.greeting == nil {
		return generation.Envelope{DisplayText: "Hi friend!"}, nil
	}
	return g.greeting()
}

func (g *fakeGen) Generate(ctx context.Context, message string, history []string) (generation.Envelope, error) {
	g.record(genCall{kind: "generate", message: message, history: history})
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return generation.Envelope{}, ctx.Err()
		}
	}
	if g.reply == nil {
		return generation.Envelope{DisplayText: "Tell me more!"}, nil
	}
	return g.reply(message)
}

func (g *fakeGen) SearchAndGenerate(ctx context.Context, query, message string, history []string) (generation.Envelope, error) {
	g.record(genCall{kind: "search", query: query, message: message, history: history})
	if g.search == nil {
		return generation.Envelope{DisplayText: "Found it."}, nil
	}
	return g.search(query, message)
}

// fakeListener hands out scripted results; with none left a session stays
// open until Cancel or Push.
type fakeListener struct {
	mu      sync.Mutex
	active  bool
	ch      chan speech.Result
	starts  int
	cancels int
	script  []speech.Result
}

func (l *fakeListener) Start(ctx context.Context) (<-chan speech.Result, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active {
		return nil, false
	}
	l.starts++
	ch := make(chan speech.Result, 1)
	if len(l.script) > 0 {
		ch <- l.script[0]
		l.script = l.script[1:]
		close(ch)
		return ch, true
	}
	l.active = true
	l.ch = ch
	return ch, true
}

func (l *fakeListener) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancels++
	if !l.active {
		return
	}
	l.ch <- speech.Result{Err: context.Canceled}
	close(l.ch)
	l.active = false
}

func (l *fakeListener) Push(r speech.Result) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active {
		return false
	}
	l.ch <- r
	close(l.ch)
	l.active = false
	return true
}

func (l *fakeListener) Starts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.starts
}

func (l *fakeListener) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

type countingTTS struct {
	mu    sync.Mutex
	texts []string
}

func (t *countingTTS) Synthesize(_ context.Context, text string) ([]byte, error) {
	t.mu.Lock()
	t.texts = append(t.texts, text)
	t.mu.Unlock()
	return []byte("mp3"), nil
}

func (t *countingTTS) Close() error { return nil }

func (t *countingTTS) Spoken() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.texts...)
}

type gatePlayer struct {
	block bool
}

func (p *gatePlayer) Play(ctx context.Context, _ string) error {
	if p.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

type recordedConvo struct {
	transcript string
	duration   time.Duration
}

type fakeRecorder struct {
	mu   sync.Mutex
	seen []recordedConvo
}

func (r *fakeRecorder) RecordConversation(_ context.Context, transcript string, _ time.Time, d time.Duration) error {
	r.mu.Lock()
	r.seen = append(r.seen, recordedConvo{transcript: transcript, duration: d})
	r.mu.Unlock()
	return nil
}

func (r *fakeRecorder) All() []recordedConvo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedConvo(nil), r.seen...)
}

type fakeJournal struct {
	mu   sync.Mutex
	recs []models.TurnRecord
}

func (j *fakeJournal) Append(_ context.Context, r *models.TurnRecord) error {
	j.mu.Lock()
	j.recs = append(j.recs, *r)
	j.mu.Unlock()
	return nil
}

func (j *fakeJournal) All() []models.TurnRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]models.TurnRecord(nil), j.recs...)
}

// ---- harness ----

type harness struct {
	c        *Controller
	gen      *fakeGen
	listener *fakeListener
	tts      *countingTTS
	cancel   context.CancelFunc
}

func newHarness(t *testing.T, gen *fakeGen, listener *fakeListener, blockPlayback bool, opts ...Option) *harness {
	t.Helper()
	if gen == nil {
		gen = &fakeGen{}
	}
	if listener == nil {
		listener = &fakeListener{}
	}
	log := logger.Discard()
	voice := &countingTTS{}
	spk := speech.NewSpeaker(context.Background(),
		func(context.Context) (tts.Provider, error) { return voice, nil },
		&gatePlayer{block: blockPlayback}, log,
		speech.WithScratchDir(t.TempDir()),
	)
	<-spk.Ready()

	opts = append([]Option{WithListenRetryDelay(10 * time.Millisecond)}, opts...)
	c := New(gen, listener, spk, log, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(cancel)

	return &harness{c: c, gen: gen, listener: listener, tts: voice, cancel: cancel}
}

func (h *harness) dispatch(t *testing.T, in Intent) {
	t.Helper()
	require.NoError(t, h.c.Dispatch(in))
}

func (h *harness) waitFor(t *testing.T, what string, cond func(State) bool) State {
	t.Helper()
	var last State
	ok := assert.Eventually(t, func() bool {
		last = h.c.Snapshot()
		return cond(last)
	}, 2*time.Second, 5*time.Millisecond, what)
	if !ok {
		t.Fatalf("last state: %+v", last)
	}
	return last
}

func phaseIs(p Phase) func(State) bool {
	return func(s State) bool { return s.Phase == p }
}

// ---- tests ----

func TestController_StartsDisconnected(t *testing.T) {
	c := New(&fakeGen{}, &fakeListener{}, nil, logrus.New())
	s := c.Snapshot()
	assert.Equal(t, PhaseDisconnected, s.Phase)
	assert.False(t, s.Connected)
	assert.Equal(t, statusTapConnect, s.Status)
}

func TestController_GreetsOncePerConnectedSession(t *testing.T) {
	h := newHarness(t, nil, nil, false)

	h.dispatch(t, Connect())
	s := h.waitFor(t, "greeting spoken", func(s State) bool {
		return s.Phase == PhaseIdle && s.Response == "Hi friend!"
	})
	assert.True(t, s.Connected)
	assert.NotEmpty(t, s.SessionID)
	assert.Equal(t, []string{"AI: Hi friend!"}, s.History)

	h.dispatch(t, Connect())
	h.dispatch(t, StartListening())
	h.waitFor(t, "listening", phaseIs(PhaseListening))
	assert.Equal(t, 1, h.gen.count("greeting"))

	h.dispatch(t, ToggleConnection())
	s = h.waitFor(t, "disconnected", phaseIs(PhaseDisconnected))
	assert.False(t, s.Connected)
	assert.Empty(t, s.SessionID)

	h.dispatch(t, ToggleConnection())
	h.waitFor(t, "second greeting", func(s State) bool {
		return s.Connected && s.Response == "Hi friend!" && s.Phase == PhaseIdle
	})
	assert.Equal(t, 2, h.gen.count("greeting"))
	assert.Equal(t, []string{"Hi friend!", "Hi friend!"}, h.tts.Spoken())
}

func TestController_DisconnectWhileSpeaking(t *testing.T) {
	h := newHarness(t, nil, nil, true)

	h.dispatch(t, Connect())
	s := h.waitFor(t, "speaking", func(s State) bool { return s.Speaking })
	assert.Equal(t, PhaseSpeaking, s.Phase)

	h.dispatch(t, Disconnect())
	s = h.waitFor(t, "disconnected", phaseIs(PhaseDisconnected))
	assert.False(t, s.Speaking)
	assert.Empty(t, s.History)
	assert.Empty(t, s.Response)

	h.dispatch(t, Connect())
	s = h.waitFor(t, "fresh greeting", func(s State) bool { return s.Speaking })
	assert.Equal(t, []string{"AI: Hi friend!"}, s.History)
	assert.Equal(t, 2, h.gen.count("greeting"))
}

func TestController_TurnTakingLoop(t *testing.T) {
	listener := &fakeListener{script: []speech.Result{{Text: "I like chess"}}}
	gen := &fakeGen{reply: func(string) (generation.Envelope, error) {
		return generation.Envelope{DisplayText: "Chess is great!"}, nil
	}}
	h := newHarness(t, gen, listener, false, WithAutoListen(true))

	h.dispatch(t, Connect())
	s := h.waitFor(t, "listening again after reply", func(s State) bool {
		return s.Phase == PhaseListening && len(s.History) == 3
	})

	assert.Equal(t, []string{"AI: Hi friend!", "User: I like chess", "AI: Chess is great!"}, s.History)
	assert.Equal(t, "I like chess", gen.last("generate").message)
	assert.Equal(t, []string{"AI: Hi friend!"}, gen.last("generate").history)
	assert.Equal(t, 2, listener.Starts())
	assert.Equal(t, []string{"Hi friend!", "Chess is great!"}, h.tts.Spoken())
	assert.True(t, s.ListenIntent)
}

func TestController_NoMatchRetriesWithoutError(t *testing.T) {
	listener := &fakeListener{script: []speech.Result{
		{Err: speech.ErrNoMatch},
		{Err: speech.ErrSpeechTimeout},
	}}
	gen := &fakeGen{greeting: func() (generation.Envelope, error) { return generation.Envelope{}, nil }}
	h := newHarness(t, gen, listener, false, WithAutoListen(true))

	h.dispatch(t, Connect())
	s := h.waitFor(t, "third listen session open", func(s State) bool {
		return s.Phase == PhaseListening && listener.Starts() == 3
	})
	assert.Empty(t, s.Error)
	assert.True(t, s.ListenIntent)
	assert.Zero(t, gen.count("generate"))
}

func TestController_HardRecognitionErrorStopsListening(t *testing.T) {
	listener := &fakeListener{script: []speech.Result{{Err: speech.ErrPermission}}}
	gen := &fakeGen{greeting: func() (generation.Envelope, error) { return generation.Envelope{}, nil }}
	h := newHarness(t, gen, listener, false, WithAutoListen(true))

	h.dispatch(t, Connect())
	s := h.waitFor(t, "listening stopped", func(s State) bool { return s.Error != "" })
	assert.False(t, s.ListenIntent)
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Contains(t, s.Error, "Permissions error")
	assert.Equal(t, 1, listener.Starts())
}

func TestController_GenerationFailureGoesIdle(t *testing.T) {
	gen := &fakeGen{reply: func(string) (generation.Envelope, error) {
		return generation.Envelope{}, errors.New("quota exceeded")
	}}
	h := newHarness(t, gen, nil, false)

	h.dispatch(t, Connect())
	h.waitFor(t, "greeted", func(s State) bool { return s.Phase == PhaseIdle && s.Response != "" })

	h.dispatch(t, SendMessage("hello?"))
	s := h.waitFor(t, "error shown", func(s State) bool { return s.Error != "" })
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Equal(t, "Error: quota exceeded", s.Error)
	assert.Empty(t, s.Response)
	assert.False(t, s.Loading)
	assert.Equal(t, []string{"Hi friend!"}, h.tts.Spoken(), "failed turn must not speak")
}

func TestController_GreetingFailureMessage(t *testing.T) {
	gen := &fakeGen{greeting: func() (generation.Envelope, error) {
		return generation.Envelope{}, errors.New("offline")
	}}
	h := newHarness(t, gen, nil, false)

	h.dispatch(t, Connect())
	s := h.waitFor(t, "error shown", func(s State) bool { return s.Error != "" })
	assert.Equal(t, "Error initiating conversation: offline", s.Error)
	assert.True(t, s.Connected)
}

func TestController_BlankReplyIsNotSpoken(t *testing.T) {
	gen := &fakeGen{reply: func(string) (generation.Envelope, error) {
		return generation.Envelope{DisplayText: ""}, nil
	}}
	h := newHarness(t, gen, nil, false)

	h.dispatch(t, Connect())
	h.waitFor(t, "greeted", func(s State) bool { return s.Phase == PhaseIdle && s.Response != "" })

	h.dispatch(t, SendMessage("<3"))
	s := h.waitFor(t, "idle after blank", func(s State) bool {
		return s.Phase == PhaseIdle && s.Response == "" && len(s.History) == 2
	})
	assert.Empty(t, s.Error)
	assert.Equal(t, []string{"Hi friend!"}, h.tts.Spoken())
}

func TestController_SearchSentinelTriggersOneSecondaryCall(t *testing.T) {
	gen := &fakeGen{
		reply: func(string) (generation.Envelope, error) {
			return generation.Envelope{SearchQuery: "weather paris"}, nil
		},
		search: func(q, m string) (generation.Envelope, error) {
			// a sentinel in the second reply must be ignored
			return generation.Envelope{DisplayText: "Sunny and 24C.", SearchQuery: "again"}, nil
		},
	}
	h := newHarness(t, gen, nil, false)

	h.dispatch(t, Connect())
	h.waitFor(t, "greeted", func(s State) bool { return s.Phase == PhaseIdle && s.Response != "" })

	h.dispatch(t, SendMessage("What's the weather in Paris?"))
	s := h.waitFor(t, "answered", func(s State) bool { return s.Response == "Sunny and 24C." && s.Phase == PhaseIdle })

	assert.Equal(t, 1, gen.count("generate"))
	assert.Equal(t, 1, gen.count("search"))
	call := gen.last("search")
	assert.Equal(t, "weather paris", call.query)
	assert.Equal(t, "What's the weather in Paris?", call.message)
	assert.Equal(t, []string{"Hi friend!", "Sunny and 24C."}, h.tts.Spoken())
	assert.Equal(t, "AI: Sunny and 24C.", s.History[len(s.History)-1])
}

func TestController_SearchingPhaseVisible(t *testing.T) {
	release := make(chan struct{})
	gen := &fakeGen{
		reply: func(string) (generation.Envelope, error) {
			return generation.Envelope{SearchQuery: "q"}, nil
		},
		search: func(q, m string) (generation.Envelope, error) {
			<-release
			return generation.Envelope{DisplayText: "ok"}, nil
		},
	}
	h := newHarness(t, gen, nil, false)
	h.dispatch(t, Connect())
	h.waitFor(t, "greeted", func(s State) bool { return s.Phase == PhaseIdle && s.Response != "" })

	h.dispatch(t, SendMessage("news?"))
	s := h.waitFor(t, "searching", phaseIs(PhaseSearching))
	assert.True(t, s.Searching)
	assert.True(t, s.Loading)
	close(release)
	h.waitFor(t, "done", func(s State) bool { return s.Response == "ok" })
}

func TestController_SendMessageValidation(t *testing.T) {
	h := newHarness(t, nil, nil, false)

	h.dispatch(t, SendMessage("hi"))
	h.waitFor(t, "not connected", func(s State) bool { return s.Error == msgNotConnected })

	h.dispatch(t, Connect())
	h.waitFor(t, "greeted", func(s State) bool { return s.Phase == PhaseIdle && s.Response != "" })

	h.dispatch(t, SendMessage("   "))
	s := h.waitFor(t, "empty rejected", func(s State) bool { return s.Error == msgEmptyMessage })
	assert.Len(t, s.History, 1)
	assert.Zero(t, h.gen.count("generate"))
}

func TestController_BusyWhileThinking(t *testing.T) {
	gen := &fakeGen{gate: make(chan struct{})}
	h := newHarness(t, gen, nil, false)
	h.dispatch(t, Connect())
	h.waitFor(t, "greeted", func(s State) bool { return s.Phase == PhaseIdle && s.Response != "" })

	h.dispatch(t, SendMessage("first"))
	h.waitFor(t, "thinking", phaseIs(PhaseThinking))
	h.dispatch(t, SendMessage("second"))
	h.waitFor(t, "busy", func(s State) bool { return s.Error == msgBusy })
	assert.Equal(t, 1, gen.count("generate"))

	close(gen.gate)
	h.waitFor(t, "answered", func(s State) bool { return s.Response == "Tell me more!" })
}

func TestController_DisconnectDropsInFlightReply(t *testing.T) {
	gen := &fakeGen{gate: make(chan struct{})}
	h := newHarness(t, gen, nil, false)
	h.dispatch(t, Connect())
	h.waitFor(t, "greeted", func(s State) bool { return s.Phase == PhaseIdle && s.Response != "" })

	h.dispatch(t, SendMessage("slow one"))
	h.waitFor(t, "thinking", phaseIs(PhaseThinking))
	h.dispatch(t, Disconnect())
	s := h.waitFor(t, "disconnected", phaseIs(PhaseDisconnected))
	assert.False(t, s.Loading)

	close(gen.gate)
	time.Sleep(30 * time.Millisecond)
	s = h.c.Snapshot()
	assert.Empty(t, s.Response)
	assert.Empty(t, s.History)
	assert.Equal(t, []string{"Hi friend!"}, h.tts.Spoken())
}

func TestController_StopListeningAndRestart(t *testing.T) {
	listener := &fakeListener{}
	h := newHarness(t, nil, listener, false)
	h.dispatch(t, Connect())
	h.waitFor(t, "greeted", func(s State) bool { return s.Phase == PhaseIdle && s.Response != "" })

	h.dispatch(t, StartListening())
	h.waitFor(t, "listening", phaseIs(PhaseListening))

	h.dispatch(t, StopListening())
	h.dispatch(t, StartListening())
	s := h.waitFor(t, "listening again", func(s State) bool {
		return s.Phase == PhaseListening && listener.Starts() == 2
	})
	assert.True(t, s.ListenIntent)

	require.True(t, listener.Push(speech.Result{Text: "hello"}))
	h.waitFor(t, "answered", func(s State) bool { return s.Response == "Tell me more!" })
}

func TestController_StopSpeakingResumesListening(t *testing.T) {
	listener := &fakeListener{}
	h := newHarness(t, nil, listener, true, WithAutoListen(true))

	h.dispatch(t, Connect())
	h.waitFor(t, "speaking", func(s State) bool { return s.Speaking })
	assert.Zero(t, listener.Starts(), "never listen while speaking")

	h.dispatch(t, StopSpeaking())
	s := h.waitFor(t, "listening", phaseIs(PhaseListening))
	assert.False(t, s.Speaking)
	assert.Equal(t, 1, listener.Starts())
}

func TestController_RecordsConversationOnDisconnect(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	rec := &fakeRecorder{}
	journal := &fakeJournal{}
	h := newHarness(t, nil, nil, false, WithRecorder(rec), WithJournal(journal), withClock(clock))

	// greeting only: nothing to record
	h.dispatch(t, Connect())
	h.waitFor(t, "greeted", func(s State) bool { return s.Phase == PhaseIdle && s.Response != "" })
	h.dispatch(t, Disconnect())
	h.waitFor(t, "disconnected", phaseIs(PhaseDisconnected))

	h.dispatch(t, Connect())
	h.waitFor(t, "greeted", func(s State) bool { return s.Phase == PhaseIdle && s.Response != "" })
	h.dispatch(t, SendMessage("I got a new job"))
	h.waitFor(t, "answered", func(s State) bool { return len(s.History) == 3 && s.Phase == PhaseIdle })

	mu.Lock()
	now = now.Add(12 * time.Minute)
	mu.Unlock()
	h.dispatch(t, Disconnect())

	require.Eventually(t, func() bool { return len(rec.All()) == 1 }, 2*time.Second, 5*time.Millisecond)
	got := rec.All()[0]
	assert.Equal(t, "AI: Hi friend!\nUser: I got a new job\nAI: Tell me more!", got.transcript)
	assert.Equal(t, 12*time.Minute, got.duration)

	require.Eventually(t, func() bool { return len(journal.All()) == 3 }, 2*time.Second, 5*time.Millisecond)
	var userTurn models.TurnRecord
	for _, r := range journal.All() {
		if r.UserText != "" {
			userTurn = r
		}
	}
	assert.Equal(t, "I got a new job", userTurn.UserText)
	assert.Equal(t, "Tell me more!", userTurn.ReplyText)
	assert.Equal(t, "done", userTurn.Status)
	assert.Equal(t, int64(2), userTurn.TurnIndex)
	assert.NotEmpty(t, userTurn.SessionID)
}

func TestController_SubscribeAndDispatchErrors(t *testing.T) {
	h := newHarness(t, nil, nil, false)

	ch, unsubscribe := h.c.Subscribe()
	first := <-ch
	assert.Equal(t, PhaseDisconnected, first.Phase)

	h.dispatch(t, Connect())
	require.Eventually(t, func() bool {
		select {
		case s := <-ch:
			return s.Connected
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
	unsubscribe()
	unsubscribe()

	assert.Error(t, h.c.Dispatch(Intent{Type: "dance"}))

	h.cancel()
	require.Eventually(t, func() bool {
		return errors.Is(h.c.Dispatch(Connect()), ErrClosed)
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, h.c.Snapshot().Connected, "shutdown disconnects")
}
