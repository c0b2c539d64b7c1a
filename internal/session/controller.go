package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/aibuddy/internal/generation"
	"github.com/yoockh/aibuddy/internal/models"
	"github.com/yoockh/aibuddy/internal/speech"
	"github.com/yoockh/aibuddy/internal/utils"
)

var ErrClosed = errors.New("session: controller stopped")

type Generator interface {
	Greeting(ctx context.Context, history []string) (generation.Envelope, error)
	Generate(ctx context.Context, message string, history []string) (generation.Envelope, error)
	SearchAndGenerate(ctx context.Context, query, message string, history []string) (generation.Envelope, error)
}

type Listener interface {
	Start(ctx context.Context) (<-chan speech.Result, bool)
	Cancel()
}

type Speaker interface {
	Speak(ctx context.Context, text string) *speech.Playback
	Stop()
}

// Recorder stores a finished conversation.
type Recorder interface {
	RecordConversation(ctx context.Context, transcript string, endedAt time.Time, duration time.Duration) error
}

type Journal interface {
	Append(ctx context.Context, rec *models.TurnRecord) error
}

type Option func(*Controller)

func WithRecorder(r Recorder) Option { return func(c *Controller) { c.recorder = r } }
func WithJournal(j Journal) Option   { return func(c *Controller) { c.journal = j } }

// WithListenRetryDelay sets the pause before listening again after a soft
// recognition error.
func WithListenRetryDelay(d time.Duration) Option {
	return func(c *Controller) { c.retryDelay = d }
}

// WithAutoListen makes every new connection start with the listen intent set.
func WithAutoListen(on bool) Option { return func(c *Controller) { c.autoListen = on } }

func withClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

// Controller owns one conversation. All state below the events channel is
// touched only by the Run goroutine.
type Controller struct {
	gen      Generator
	listener Listener
	speaker  Speaker
	recorder Recorder
	journal  Journal
	log      *logrus.Logger

	retryDelay time.Duration
	autoListen bool
	now        func() time.Time

	events chan any
	done   chan struct{}

	mu     sync.Mutex
	snap   State
	subs   map[int]chan State
	nextID int

	// loop-owned
	runCtx      context.Context
	connCtx     context.Context
	connCancel  context.CancelFunc
	epoch       uint64
	sessionID   string
	connectedAt time.Time

	connected    bool
	greeted      bool
	loading      bool
	searching    bool
	speaking     bool
	recognizing  bool
	listenIntent bool
	listenID     uint64
	playback     *speech.Playback

	response  string
	errMsg    string
	status    string
	history   []string
	userTurns int
	turnIndex int64
}

func New(gen Generator, listener Listener, speaker Speaker, log *logrus.Logger, opts ...Option) *Controller {
	c := &Controller{
		gen:        gen,
		listener:   listener,
		speaker:    speaker,
		log:        log,
		retryDelay: 500 * time.Millisecond,
		now:        time.Now,
		events:     make(chan any, 64),
		done:       make(chan struct{}),
		subs:       map[int]chan State{},
		status:     statusTapConnect,
	}
	if c.log == nil {
		c.log = logrus.New()
	}
	for _, o := range opts {
		o(c)
	}
	c.snap = c.buildState()
	return c
}

// Run processes intents and completions until ctx is canceled. An open
// connection is torn down on exit.
func (c *Controller) Run(ctx context.Context) {
	c.runCtx = ctx
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			if c.connected {
				c.disconnect()
				c.publish()
			}
			return
		case ev := <-c.events:
			c.handle(ev)
			c.publish()
		}
	}
}

// Dispatch queues an intent for the loop.
func (c *Controller) Dispatch(in Intent) error {
	if err := in.Validate(); err != nil {
		return utils.E(utils.CodeInvalidArgument, "Controller.Dispatch", err.Error(), nil)
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.events <- intentEvent{intent: in}:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Subscribe streams snapshots, starting with the current one. A slow reader
// only ever sees the latest state.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	ch <- c.snap
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Controller) post(ev any) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Controller) handle(ev any) {
	switch e := ev.(type) {
	case intentEvent:
		c.handleIntent(e.intent)
	case genDone:
		if e.epoch == c.epoch {
			c.handleGenDone(e)
		}
	case listenDone:
		c.handleListenDone(e)
	case retryListen:
		if e.epoch == c.epoch {
			c.maybeListen()
		}
	case speechStarted:
		if e.epoch == c.epoch && e.pb == c.playback {
			c.speaking = true
			c.status = statusSpeaking
		}
	case speechDone:
		if e.epoch == c.epoch && e.pb == c.playback {
			c.handleSpeechDone(e.pb)
		}
	}
}

func (c *Controller) handleIntent(in Intent) {
	c.logger().WithField("intent", in.Type).Debug("intent")

	switch in.Type {
	case IntentConnect:
		c.connect()
	case IntentDisconnect:
		c.disconnect()
	case IntentToggleConnection:
		if c.connected {
			c.disconnect()
		} else {
			c.connect()
		}
	case IntentStartListening:
		c.startListening()
	case IntentStopListening:
		c.stopListening()
	case IntentSendMessage:
		c.sendMessage(in.Text)
	case IntentStopSpeaking:
		c.speaker.Stop()
	}
}

func (c *Controller) connect() {
	if c.connected {
		return
	}

	parent := c.runCtx
	if parent == nil {
		parent = context.Background()
	}
	c.connCtx, c.connCancel = context.WithCancel(parent)
	c.epoch++
	c.connected = true
	c.sessionID = uuid.NewString()
	c.connectedAt = c.now()
	c.errMsg = ""
	c.response = ""
	c.status = statusConnected
	c.listenIntent = c.autoListen

	c.logger().Info("session connected")

	if !c.greeted {
		c.greeted = true
		c.startGreeting()
		return
	}
	c.maybeListen()
}

func (c *Controller) disconnect() {
	if !c.connected {
		return
	}
	log := c.logger()

	c.connCancel()
	c.speaker.Stop()
	c.listener.Cancel()

	transcript := strings.Join(c.history, "\n")
	hadUserTurn := c.userTurns > 0
	duration := c.now().Sub(c.connectedAt)

	c.epoch++
	c.connected = false
	c.greeted = false
	c.loading = false
	c.searching = false
	c.speaking = false
	c.recognizing = false
	c.listenIntent = false
	c.playback = nil
	c.history = nil
	c.userTurns = 0
	c.turnIndex = 0
	c.response = ""
	c.status = statusTapConnect
	c.sessionID = ""

	log.WithField("duration_s", int(duration.Seconds())).Info("session disconnected")

	if hadUserTurn && c.recorder != nil {
		endedAt := c.now()
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := c.recorder.RecordConversation(ctx, transcript, endedAt, duration); err != nil {
				log.WithError(err).Warn("failed to record conversation")
			}
		}()
	}
}

func (c *Controller) startGreeting() {
	c.loading = true
	c.status = statusGreeting
	c.turnIndex++

	ev := genDone{
		epoch:   c.epoch,
		kind:    genGreeting,
		turn:    c.turnIndex,
		prior:   c.historyCopy(),
		started: c.now(),
	}
	ctx := c.connCtx
	go func() {
		ev.env, ev.err = c.gen.Greeting(ctx, ev.prior)
		c.post(ev)
	}()
}

func (c *Controller) sendMessage(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		c.errMsg = msgEmptyMessage
		return
	}
	if !c.connected {
		c.errMsg = msgNotConnected
		return
	}
	if c.loading || c.searching {
		c.errMsg = msgBusy
		return
	}

	// a typed message interrupts whatever the buddy was doing
	if c.playback != nil {
		c.speaker.Stop()
		c.playback = nil
		c.speaking = false
	}
	if c.recognizing {
		c.listener.Cancel()
		c.recognizing = false
	}

	c.submitTurn(text)
}

func (c *Controller) submitTurn(text string) {
	prior := c.historyCopy()
	c.history = append(c.history, "User: "+text)
	c.userTurns++
	c.turnIndex++
	c.errMsg = ""
	c.loading = true
	c.status = statusMessageSent

	ev := genDone{
		epoch:    c.epoch,
		kind:     genMessage,
		turn:     c.turnIndex,
		userText: text,
		prior:    prior,
		started:  c.now(),
	}
	ctx := c.connCtx
	go func() {
		ev.env, ev.err = c.gen.Generate(ctx, text, prior)
		c.post(ev)
	}()
}

func (c *Controller) handleGenDone(e genDone) {
	log := c.logger().WithField("turn", e.turn)

	if e.err != nil {
		prefix := prefixTurnFailure
		if e.kind == genGreeting {
			prefix = prefixGreetingFailure
		}
		log.WithError(e.err).Warn("generation failed")

		c.loading = false
		c.searching = false
		c.response = ""
		c.errMsg = prefix + utils.UserMessage(e.err)
		c.status = c.idleStatus()
		c.journalTurn(e, "", "failed")
		c.maybeListen()
		return
	}

	if e.kind != genSearch && e.env.NeedsSearch() {
		c.searching = true
		c.status = statusSearching
		log.WithField("query", e.env.SearchQuery).Info("reply requested a web search")

		message := e.userText
		if message == "" {
			message = generation.GreetingPrompt
		}
		next := e
		next.kind = genSearch
		next.env = generation.Envelope{}
		query := e.env.SearchQuery
		ctx := c.connCtx
		go func() {
			next.env, next.err = c.gen.SearchAndGenerate(ctx, query, message, next.prior)
			c.post(next)
		}()
		return
	}

	c.loading = false
	c.searching = false
	c.response = e.env.DisplayText

	if e.env.DisplayText == "" {
		c.journalTurn(e, "", "empty")
		c.status = c.idleStatus()
		c.maybeListen()
		return
	}

	c.history = append(c.history, "AI: "+e.env.DisplayText)
	c.journalTurn(e, e.env.DisplayText, "done")
	c.startSpeaking(e.env.DisplayText)
}

func (c *Controller) startSpeaking(text string) {
	pb := c.speaker.Speak(c.connCtx, text)
	c.playback = pb
	c.status = statusSpeaking

	epoch := c.epoch
	go func() {
		select {
		case <-pb.Started():
			c.post(speechStarted{epoch: epoch, pb: pb})
			<-pb.Done()
		case <-pb.Done():
		}
		c.post(speechDone{epoch: epoch, pb: pb})
	}()
}

func (c *Controller) handleSpeechDone(pb *speech.Playback) {
	c.playback = nil
	c.speaking = false

	if err := pb.Err(); err != nil && !errors.Is(err, speech.ErrStopped) {
		c.logger().WithError(err).Warn("reply was not spoken")
	}

	c.status = c.idleStatus()
	c.maybeListen()
}

func (c *Controller) startListening() {
	if !c.connected {
		c.status = statusTapConnect
		return
	}
	c.listenIntent = true
	c.maybeListen()
}

func (c *Controller) stopListening() {
	c.listenIntent = false
	if c.recognizing {
		c.listener.Cancel()
		c.recognizing = false
	}
	if c.connected {
		c.status = statusListenStopped
	}
}

// maybeListen opens a recognition session when the user wants one and the
// buddy is neither thinking nor talking.
func (c *Controller) maybeListen() {
	if !c.connected || !c.listenIntent || c.recognizing {
		return
	}
	if c.loading || c.searching || c.speaking || c.playback != nil {
		return
	}

	ch, ok := c.listener.Start(c.connCtx)
	if !ok {
		// the previous session is still winding down; its result re-arms us
		return
	}
	c.listenID++
	c.recognizing = true
	c.status = statusListening

	epoch, id := c.epoch, c.listenID
	go func() {
		res, ok := <-ch
		if !ok {
			res = speech.Result{Err: context.Canceled}
		}
		c.post(listenDone{epoch: epoch, id: id, res: res})
	}()
}

func (c *Controller) handleListenDone(e listenDone) {
	if e.epoch != c.epoch || e.id != c.listenID || !c.recognizing {
		// canceled or superseded session; a Start refused while it was
		// winding down can go ahead now
		c.maybeListen()
		return
	}
	c.recognizing = false

	res := e.res
	switch {
	case res.Err == nil:
		c.submitTurn(res.Text)

	case errors.Is(res.Err, context.Canceled):
		c.maybeListen()

	case speech.IsTransient(res.Err):
		if !c.listenIntent {
			return
		}
		if errors.Is(res.Err, speech.ErrNoMatch) || errors.Is(res.Err, speech.ErrSpeechTimeout) {
			c.status = statusNoMatchRetry
		} else {
			c.status = statusListenerRetry
		}
		epoch := c.epoch
		time.AfterFunc(c.retryDelay, func() { c.post(retryListen{epoch: epoch}) })

	default:
		c.logger().WithError(res.Err).Warn("speech recognition failed")
		c.listenIntent = false
		label := speech.Describe(res.Err)
		c.errMsg = "Speech recognition failed: " + label
		c.status = "Error: " + label + ". Listening stopped."
	}
}

func (c *Controller) journalTurn(e genDone, reply, status string) {
	if c.journal == nil {
		return
	}
	rec := &models.TurnRecord{
		SessionID:        c.sessionID,
		TurnIndex:        e.turn,
		UserText:         e.userText,
		ReplyText:        reply,
		Searched:         e.kind == genSearch,
		Status:           status,
		ProcessingTimeMS: c.now().Sub(e.started).Milliseconds(),
		Timestamp:        c.now().UTC(),
	}
	log := c.logger()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.journal.Append(ctx, rec); err != nil {
			log.WithError(err).Warn("failed to journal turn")
		}
	}()
}

func (c *Controller) idleStatus() string {
	if c.listenIntent {
		return statusListening
	}
	return statusTapMic
}

func (c *Controller) historyCopy() []string {
	if len(c.history) == 0 {
		return nil
	}
	return append([]string(nil), c.history...)
}

func (c *Controller) phase() Phase {
	switch {
	case !c.connected:
		return PhaseDisconnected
	case c.searching:
		return PhaseSearching
	case c.loading:
		return PhaseThinking
	case c.speaking || c.playback != nil:
		return PhaseSpeaking
	case c.recognizing:
		return PhaseListening
	default:
		return PhaseIdle
	}
}

func (c *Controller) buildState() State {
	return State{
		SessionID:    c.sessionID,
		Phase:        c.phase(),
		Connected:    c.connected,
		Loading:      c.loading,
		Searching:    c.searching,
		Speaking:     c.speaking,
		Recognizing:  c.recognizing,
		ListenIntent: c.listenIntent,
		Response:     c.response,
		Error:        c.errMsg,
		Status:       c.status,
		History:      c.historyCopy(),
	}
}

func (c *Controller) publish() {
	s := c.buildState()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = s
	for _, ch := range c.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

func (c *Controller) logger() *logrus.Entry {
	return c.log.WithFields(logrus.Fields{
		"session_id": c.sessionID,
		"phase":      c.phase(),
		"epoch":      c.epoch,
	})
}
