package session

import "fmt"

type Phase string

const (
	PhaseDisconnected Phase = "disconnected"
	PhaseIdle         Phase = "idle"
	PhaseListening    Phase = "listening"
	PhaseThinking     Phase = "thinking"
	PhaseSearching    Phase = "searching"
	PhaseSpeaking     Phase = "speaking"
)

// State is an immutable snapshot of the conversation.
type State struct {
	SessionID string `json:"session_id,omitempty"`
	Phase     Phase  `json:"phase"`

	Connected    bool `json:"connected"`
	Loading      bool `json:"loading"`
	Searching    bool `json:"searching"`
	Speaking     bool `json:"speaking"`
	Recognizing  bool `json:"recognizing"`
	ListenIntent bool `json:"listen_intent"`

	Response string   `json:"response"`
	Error    string   `json:"error,omitempty"`
	Status   string   `json:"status"`
	History  []string `json:"history"`
}

type IntentType string

const (
	IntentConnect          IntentType = "connect"
	IntentDisconnect       IntentType = "disconnect"
	IntentToggleConnection IntentType = "toggle_connection"
	IntentStartListening   IntentType = "start_listening"
	IntentStopListening    IntentType = "stop_listening"
	IntentSendMessage      IntentType = "send_message"
	IntentStopSpeaking     IntentType = "stop_speaking"
)

var knownIntents = map[IntentType]bool{
	IntentConnect:          true,
	IntentDisconnect:       true,
	IntentToggleConnection: true,
	IntentStartListening:   true,
	IntentStopListening:    true,
	IntentSendMessage:      true,
	IntentStopSpeaking:     true,
}

// Intent is a user request. Text is only read for send_message.
type Intent struct {
	Type IntentType `json:"type"`
	Text string     `json:"text,omitempty"`
}

func (i Intent) Validate() error {
	if !knownIntents[i.Type] {
		return fmt.Errorf("unknown intent %q", i.Type)
	}
	return nil
}

func Connect() Intent          { return Intent{Type: IntentConnect} }
func Disconnect() Intent       { return Intent{Type: IntentDisconnect} }
func ToggleConnection() Intent { return Intent{Type: IntentToggleConnection} }
func StartListening() Intent   { return Intent{Type: IntentStartListening} }
func StopListening() Intent    { return Intent{Type: IntentStopListening} }
func StopSpeaking() Intent     { return Intent{Type: IntentStopSpeaking} }

func SendMessage(text string) Intent { return Intent{Type: IntentSendMessage, Text: text} }

// user-facing status lines
const (
	statusTapConnect      = "Disconnected. Tap Connect."
	statusConnected       = "Connected."
	statusTapMic          = "Tap Mic to Start Listening"
	statusListening       = "Listening..."
	statusListenStopped   = "Listening stopped. Tap Mic to Start."
	statusNoMatchRetry    = "Didn't catch that. Listening again..."
	statusListenerRetry   = "Listener error, retrying..."
	statusMessageSent     = "Message sent. AI responding..."
	statusSearching       = "Searching the web..."
	statusSpeaking        = "AI speaking..."
	statusGreeting        = "Saying hello..."
	msgEmptyMessage       = "Message cannot be empty."
	msgNotConnected       = "Not connected. Tap Connect first."
	msgBusy               = "Still working on the last message."
	prefixGreetingFailure = "Error initiating conversation: "
	prefixTurnFailure     = "Error: "
)
