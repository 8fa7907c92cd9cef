package live

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/versolabs/studio/pkg/audio"
	"github.com/versolabs/studio/pkg/core"
)

// State is the controller's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateActive
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Callbacks receive session events. All fields are optional. Callbacks are
// invoked from the controller's receive goroutine, never concurrently with
// each other.
type Callbacks struct {
	// OnState fires on every lifecycle transition.
	OnState func(s State)

	// OnTranscript fires per transcript delta. speaker is "user" or "model".
	OnTranscript func(speaker, text string)

	// OnTurn fires when a completed exchange is committed to history.
	OnTurn func(turn Turn)

	// OnInterrupt fires when the user barges in over model playback.
	OnInterrupt func()

	// OnError fires once when the session dies from a transport failure.
	// Stop has already been initiated by the time it runs.
	OnError func(err error)
}

// Controller drives one voice session at a time: it owns the capture device,
// the model stream, the turn accumulator, and the playback queue. Starting a
// new session tears down any session already running.
type Controller struct {
	upstream Upstream
	capture  CaptureOpener
	cfg      ModelConfig
	cb       Callbacks
	logger   *slog.Logger

	playback    *Scheduler
	accumulator *TurnAccumulator
	history     *History

	mu      sync.Mutex
	state   State
	gen     int64 // bumped on every Start/Stop so stale goroutines go quiet
	session ModelSession
	source  CaptureSource
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewController wires a controller. sink receives scheduled playback audio.
func NewController(upstream Upstream, capture CaptureOpener, sink Sink, cfg ModelConfig, cb Callbacks, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		upstream:    upstream,
		capture:     capture,
		cfg:         cfg,
		cb:          cb,
		logger:      logger,
		playback:    NewScheduler(sink),
		accumulator: NewTurnAccumulator(),
		history:     &History{},
	}
}

// History returns the committed turn record shared across sessions of this
// controller.
func (c *Controller) History() *History {
	return c.history
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start opens the capture device and the model stream, then begins pumping
// audio both ways. If a session is already running it is stopped first; the
// new session always starts from a clean slate.
func (c *Controller) Start(ctx context.Context) error {
	c.Stop()

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)

	source, err := c.capture.Open(ctx)
	if err != nil {
		cancel()
		c.failStart(gen)
		return err
	}

	session, err := c.upstream.Connect(ctx, c.cfg)
	if err != nil {
		_ = source.Close()
		cancel()
		c.failStart(gen)
		return core.NewTransportError("connecting to model", err)
	}

	c.mu.Lock()
	if c.gen != gen {
		// Stop raced the connect. Release what we acquired and bow out.
		c.mu.Unlock()
		_ = session.Close()
		_ = source.Close()
		cancel()
		return nil
	}
	c.session = session
	c.source = source
	c.cancel = cancel
	c.setStateLocked(StateActive)
	c.wg.Add(2)
	c.mu.Unlock()

	go c.sendLoop(gen, source, session)
	go c.recvLoop(gen, session)

	c.logger.Info("live session started", "model", c.cfg.Model, "voice", c.cfg.Voice)
	return nil
}

// Stop tears down the running session: capture released, model stream
// closed, pending playback flushed. Idempotent; calling it with no session
// running is a no-op. This is the only path that releases resources, so
// every failure mode funnels through it.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.setStateLocked(StateClosing)
	session := c.session
	source := c.source
	cancel := c.cancel
	c.session = nil
	c.source = nil
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if source != nil {
		_ = source.Close()
	}
	if session != nil {
		_ = session.Close()
	}
	c.playback.Flush()
	c.wg.Wait()

	c.mu.Lock()
	c.setStateLocked(StateIdle)
	c.mu.Unlock()
	c.logger.Info("live session stopped")
}

// Interrupt cancels pending playback on the user's behalf. The in-progress
// transcript is untouched; it commits with the next turn-complete. Unlike a
// model-signaled interruption, OnInterrupt does not fire: the caller already
// knows.
func (c *Controller) Interrupt() {
	c.playback.Flush()
}

// failStart resets to idle after a Start that never reached active.
func (c *Controller) failStart(gen int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.setStateLocked(StateIdle)
}

// fail handles a mid-session death: initiate Stop, then report. Runs in its
// own goroutine because Stop waits for the pump goroutines to exit. Bumping
// gen under the lock claims the failure; when both pump loops die at once,
// only the first caller reports and OnError fires exactly once.
func (c *Controller) fail(gen int64, err error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.mu.Unlock()
	go func() {
		c.Stop()
		if c.cb.OnError != nil {
			c.cb.OnError(err)
		}
	}()
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if c.cb.OnState != nil {
		c.cb.OnState(s)
	}
}

// sendLoop encodes capture frames and forwards them upstream in order.
func (c *Controller) sendLoop(gen int64, source CaptureSource, session ModelSession) {
	defer c.wg.Done()
	for frame := range source.Frames() {
		if err := session.SendAudio(audio.EncodeFrame(frame)); err != nil {
			c.fail(gen, core.NewTransportError("sending audio frame", err))
			return
		}
	}
}

// recvLoop pulls fragments off the model stream and routes them.
func (c *Controller) recvLoop(gen int64, session ModelSession) {
	defer c.wg.Done()
	for {
		frag, err := session.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return
			}
			c.fail(gen, core.NewTransportError("model stream", err))
			return
		}

		if !c.handleFragment(gen, frag) {
			return
		}
	}
}

// handleFragment routes one fragment: transcript deltas accumulate, audio is
// queued for playback, control signals flush or commit. A malformed audio
// payload is logged and dropped; the session keeps running. The gen check and
// the side effects happen under one lock hold, so a fragment racing Stop
// either lands before Stop's flush or not at all; callbacks fire after the
// lock is released. Returns false when the session is no longer current.
func (c *Controller) handleFragment(gen int64, frag Fragment) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	if frag.UserText != "" {
		c.accumulator.AppendUser(frag.UserText)
	}
	if frag.ModelText != "" {
		c.accumulator.AppendModel(frag.ModelText)
	}
	if len(frag.Audio) > 0 {
		buf, err := audio.DecodeFragment(frag.Audio, OutputSampleRate, AudioChannels)
		if err != nil {
			c.logger.Warn("dropping malformed audio fragment", "error", err, "bytes", len(frag.Audio))
		} else {
			c.playback.Enqueue(buf)
		}
	}
	if frag.Interrupted {
		// Barge-in cancels pending playback but keeps the partial
		// transcript; it commits with the turn-complete that follows.
		c.playback.Flush()
	}
	var turn Turn
	if frag.TurnComplete {
		turn = c.accumulator.Commit()
		c.history.Add(turn)
	}
	c.mu.Unlock()

	if frag.UserText != "" && c.cb.OnTranscript != nil {
		c.cb.OnTranscript("user", frag.UserText)
	}
	if frag.ModelText != "" && c.cb.OnTranscript != nil {
		c.cb.OnTranscript("model", frag.ModelText)
	}
	if frag.Interrupted && c.cb.OnInterrupt != nil {
		c.cb.OnInterrupt()
	}
	if frag.TurnComplete && c.cb.OnTurn != nil {
		c.cb.OnTurn(turn)
	}
	return true
}
