package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/aibuddy/internal/session"
	"github.com/yoockh/aibuddy/internal/utils"
)

// AudioSink receives microphone audio streamed by a client.
type AudioSink interface {
	Push(data []byte, final bool) bool
}

type WSHandler struct {
	ctrl     Controller
	audio    AudioSink // nil when audio is captured locally
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(ctrl Controller, audio AudioSink, log *logrus.Logger) *WSHandler {
	return &WSHandler{
		ctrl:  ctrl,
		audio: audio,
		log:   log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type wsClientMsg struct {
	Type string `json:"type"`

	// intent
	Intent string `json:"intent"`
	Text   string `json:"text"`

	// audio_chunk
	AudioBase64 string `json:"audio_base64"`
	IsFinal     bool   `json:"is_final"`
}

type wsServerMsg struct {
	Type    string         `json:"type"`
	State   *session.State `json:"state,omitempty"`
	Code    utils.Code     `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteJSON(v)
}

func (w *wsConn) writeError(code utils.Code, msg string) {
	_ = w.writeJSON(wsServerMsg{Type: "error", Code: code, Message: msg})
}

// SessionWS streams session snapshots to the client and accepts intents and
// audio chunks from it.
func (h *WSHandler) SessionWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	states, unsubscribe := h.ctrl.Subscribe()
	defer unsubscribe()

	// reader: WS -> controller / audio source
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			h.handleClientMsg(wc, data)
		}
	}()

	// writer: controller snapshots -> WS
	snap := h.ctrl.Snapshot()
	if err := wc.writeJSON(wsServerMsg{Type: "state", State: &snap}); err != nil {
		return
	}

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			if err := wc.writeJSON(wsServerMsg{Type: "state", State: &st}); err != nil {
				return
			}
		case <-ping.C:
			wc.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			wc.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) handleClientMsg(wc *wsConn, data []byte) {
	var msg wsClientMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		wc.writeError(utils.CodeInvalidArgument, "invalid json")
		return
	}

	switch msg.Type {
	case "intent":
		if err := dispatch(h.ctrl, session.Intent{Type: session.IntentType(msg.Intent), Text: msg.Text}); err != nil {
			wc.writeError(codeOf(err), utils.UserMessage(err))
		}

	case "audio_chunk":
		if h.audio == nil {
			wc.writeError(utils.CodeUnavailable, "audio streaming is not enabled")
			return
		}
		audio, err := base64.StdEncoding.DecodeString(msg.AudioBase64)
		if err != nil {
			wc.writeError(utils.CodeInvalidArgument, "audio_base64 is not valid base64")
			return
		}
		if !h.audio.Push(audio, msg.IsFinal) && h.log != nil {
			h.log.WithField("bytes", len(audio)).Debug("audio chunk dropped, not listening")
		}

	default:
		wc.writeError(utils.CodeInvalidArgument, "unknown message type")
	}
}

func codeOf(err error) utils.Code {
	var ae *utils.AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return utils.CodeInternal
}
