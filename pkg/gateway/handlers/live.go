package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/versolabs/studio/pkg/audio"
	"github.com/versolabs/studio/pkg/core"
	"github.com/versolabs/studio/pkg/gateway/auth"
	"github.com/versolabs/studio/pkg/gateway/config"
	"github.com/versolabs/studio/pkg/gateway/lifecycle"
	"github.com/versolabs/studio/pkg/gateway/mw"
	"github.com/versolabs/studio/pkg/gateway/protocol"
	"github.com/versolabs/studio/pkg/gateway/ratelimit"
	"github.com/versolabs/studio/pkg/gateway/sessions"
	"github.com/versolabs/studio/pkg/live"
)

// LiveHandler handles /v1/live websocket voice sessions. One connection
// carries one session: the client streams capture frames up, the handler
// streams transcript deltas and scheduled model audio back down.
type LiveHandler struct {
	Config       config.Config
	Upstream     live.Upstream
	Logger       *slog.Logger
	Limiter      *ratelimit.Limiter
	Lifecycle    *lifecycle.Lifecycle
	LiveSessions *sessions.Tracker
}

func (h LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, &core.Error{Type: core.ErrInvalidRequest, Message: "method not allowed", Code: "method_not_allowed"})
		return
	}
	if h.Lifecycle.IsDraining() {
		writeError(w, r, &core.Error{Type: core.ErrAPI, Message: "gateway is draining", Code: "draining"})
		return
	}
	if !h.originAllowed(r) {
		writeError(w, r, core.NewPermissionError("origin is not allowed"))
		return
	}

	reqID, _ := mw.RequestIDFrom(r.Context())
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("request_id", reqID)

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if h.Config.LiveMaxJSONMessageBytes > 0 {
		conn.SetReadLimit(h.Config.LiveMaxJSONMessageBytes)
	}

	handshakeTimeout := h.Config.LiveHandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = 5 * time.Second
	}
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	messageType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		return
	}

	writer := newWSWriter(conn, h.Config.LiveWSWriteTimeout)

	if messageType != websocket.TextMessage {
		writer.writeError("bad_request", "first frame must be hello", true)
		return
	}
	decoded, err := protocol.DecodeClientMessage(firstFrame)
	if err != nil {
		writer.writeError("bad_request", err.Error(), true)
		return
	}
	hello, ok := decoded.(protocol.ClientHello)
	if !ok {
		writer.writeError("bad_request", "first frame must be hello", true)
		return
	}

	principal := "anonymous"
	if p, ok := auth.PrincipalFrom(r.Context()); ok {
		principal = p.Key()
	}

	var permit *ratelimit.Permit
	if h.Limiter != nil && h.Config.LiveMaxSessionsPerKey > 0 {
		dec := h.Limiter.AcquireLiveSession(principal, time.Now())
		if !dec.Allowed {
			writer.writeError("rate_limited", "too many active live sessions", true)
			return
		}
		permit = dec.Permit
		defer permit.Release()
	}

	model := hello.Model
	if model == "" {
		model = h.Config.LiveModel
	}
	voice := hello.Voice
	if voice == "" {
		voice = h.Config.LiveVoice
	}
	system := hello.System
	if system == "" {
		system = h.Config.LiveSystem
	}

	sessionID := "ls_" + ulid.Make().String()
	logger = logger.With("session_id", sessionID)
	logger.Info("live session accepted", "hello", hello.RedactedForLog())

	ack := protocol.ServerHelloAck{
		Type:            "hello_ack",
		ProtocolVersion: protocol.ProtocolVersion1,
		SessionID:       sessionID,
		Model:           model,
		Voice:           voice,
		AudioIn:         hello.AudioIn,
		AudioOut:        hello.AudioOut,
		Limits: &protocol.HelloAckLimits{
			MaxAudioFrameBytes:  h.Config.LiveMaxAudioFrameBytes,
			MaxJSONMessageBytes: int(h.Config.LiveMaxJSONMessageBytes),
		},
	}
	if err := writer.writeJSON(ack); err != nil {
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	writer.startPings(h.Config.LiveWSPingInterval)
	defer writer.stopPings()

	capture := newWSCapture()
	controller := live.NewController(h.Upstream, capture, &wsSink{writer: writer}, live.ModelConfig{
		Model:  model,
		System: system,
		Voice:  voice,
	}, live.Callbacks{
		OnTranscript: func(speaker, text string) {
			_ = writer.writeJSON(protocol.ServerTranscriptDelta{Type: "transcript_delta", Speaker: speaker, Text: text})
		},
		OnTurn: func(turn live.Turn) {
			_ = writer.writeJSON(protocol.ServerTurnComplete{
				Type:      "turn_complete",
				TurnID:    turn.ID,
				UserText:  turn.User,
				ModelText: turn.Model,
			})
		},
		OnInterrupt: func() {
			_ = writer.writeJSON(protocol.ServerAudioReset{Type: "audio_reset", Reason: "interrupted"})
		},
		OnError: func(err error) {
			logger.Warn("live session upstream failure", "error", err)
			writer.writeError("upstream_error", "model stream failed", true)
			_ = conn.Close()
		},
	}, logger)

	if err := controller.Start(r.Context()); err != nil {
		logger.Warn("live session failed to start", "error", err)
		writer.writeError(startErrorCode(err), "failed to start voice session", true)
		return
	}
	defer controller.Stop()

	unregister := func() {}
	if h.LiveSessions != nil {
		unregister = h.LiveSessions.Register(sessionID, sessions.Handle{
			Cancel: func() { _ = conn.Close() },
			Warn: func(code, message string) error {
				return writer.writeJSON(protocol.ServerWarning{Type: "warning", Code: code, Message: message})
			},
		})
	}
	defer unregister()

	if d := h.Config.LiveMaxSessionDuration; d > 0 {
		limit := time.AfterFunc(d, func() {
			writer.writeError("session_expired", "maximum session duration reached", true)
			_ = conn.Close()
		})
		defer limit.Stop()
	}

	h.readLoop(conn, writer, capture, controller, logger)
	logger.Info("live session closed", "turns", controller.History().Len())
}

// readLoop pumps inbound frames until the connection dies or the client ends
// the session.
func (h LiveHandler) readLoop(conn *websocket.Conn, writer *wsWriter, capture *wsCapture, controller *live.Controller, logger *slog.Logger) {
	defer capture.shutdown()
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			writer.writeError("bad_request", "binary frames are not supported", false)
			continue
		}

		decoded, err := protocol.DecodeClientMessage(data)
		if err != nil {
			writer.writeError("bad_request", err.Error(), false)
			continue
		}

		switch msg := decoded.(type) {
		case protocol.ClientAudioFrame:
			pcm, err := audio.DecodeWire(msg.DataB64)
			if err != nil {
				writer.writeError("bad_audio", "audio payload is not valid base64", false)
				continue
			}
			if h.Config.LiveMaxAudioFrameBytes > 0 && len(pcm) > h.Config.LiveMaxAudioFrameBytes {
				writer.writeError("frame_too_large", "audio frame exceeds the negotiated limit", false)
				continue
			}
			buf, err := audio.DecodeFragment(pcm, live.InputSampleRate, live.AudioChannels)
			if err != nil {
				// Malformed frames are dropped; the session keeps running.
				logger.Warn("dropping malformed capture frame", "error", err, "bytes", len(pcm))
				writer.writeError("bad_audio", "audio frame is not whole 16-bit samples", false)
				continue
			}
			capture.push(buf.Floats())
		case protocol.ClientControl:
			switch msg.Op {
			case "interrupt":
				controller.Interrupt()
				_ = writer.writeJSON(protocol.ServerAudioReset{Type: "audio_reset", Reason: "client_interrupt"})
			case "end_session":
				return
			}
		case protocol.ClientHello:
			writer.writeError("bad_request", "hello may only be sent once", false)
		}
	}
}

func (h LiveHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if len(h.Config.CORSAllowedOrigins) == 0 {
		return false
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}

func startErrorCode(err error) string {
	switch {
	case core.IsType(err, core.ErrPermission):
		return "permission_denied"
	case core.IsType(err, core.ErrQuotaOrAuth):
		return "unauthorized"
	default:
		return "upstream_error"
	}
}

// wsWriter serializes writes to the socket. gorilla/websocket allows one
// concurrent writer, and frames come from the read loop, the playback
// scheduler's timers, and the controller's callbacks.
type wsWriter struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu   sync.Mutex
	ping *time.Ticker
	done chan struct{}
}

func newWSWriter(conn *websocket.Conn, writeTimeout time.Duration) *wsWriter {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &wsWriter{conn: conn, writeTimeout: writeTimeout, done: make(chan struct{})}
}

func (w *wsWriter) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	return w.conn.WriteJSON(v)
}

func (w *wsWriter) writeError(code, message string, closing bool) {
	_ = w.writeJSON(protocol.ServerError{Type: "error", Code: code, Message: message, Close: closing})
}

func (w *wsWriter) startPings(interval time.Duration) {
	if interval <= 0 {
		return
	}
	w.ping = time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-w.ping.C:
				w.mu.Lock()
				_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
				_ = w.conn.WriteMessage(websocket.PingMessage, nil)
				w.mu.Unlock()
			case <-w.done:
				return
			}
		}
	}()
}

func (w *wsWriter) stopPings() {
	if w.ping != nil {
		w.ping.Stop()
	}
	select {
	case <-w.done:
	default:
		close(w.done)
	}
}

// wsSink forwards scheduled playback chunks to the client.
type wsSink struct {
	writer *wsWriter
	seq    atomic.Int64
}

func (s *wsSink) Play(buf *audio.Buffer) error {
	return s.writer.writeJSON(protocol.ServerModelAudio{
		Type:     "model_audio",
		Seq:      s.seq.Add(1),
		AudioB64: audio.EncodeWire(buf.PCM()),
	})
}

// wsCapture adapts inbound audio frames to the controller's capture
// contract. The WebSocket client is the microphone.
type wsCapture struct {
	mu     sync.Mutex
	frames chan []float32
	closed bool
}

func newWSCapture() *wsCapture {
	return &wsCapture{frames: make(chan []float32, 64)}
}

func (c *wsCapture) Open(ctx context.Context) (live.CaptureSource, error) {
	return c, nil
}

func (c *wsCapture) Frames() <-chan []float32 { return c.frames }

// push drops the frame when the send pipeline is full rather than blocking
// the read loop; realtime capture tolerates loss better than latency.
func (c *wsCapture) push(frame []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.frames <- frame:
	default:
	}
}

func (c *wsCapture) Close() error {
	c.shutdown()
	return nil
}

func (c *wsCapture) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.frames)
}
