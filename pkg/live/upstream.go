// Package live owns the lifecycle of a bidirectional voice conversation with
// the speech model: microphone capture, outbound frame forwarding, inbound
// fragment routing, turn accumulation, and gapless playback scheduling.
package live

import (
	"context"
)

// Fixed audio shapes negotiated with the speech model. Input is what capture
// produces; output is what the model streams back.
const (
	InputSampleRate  = 16000
	OutputSampleRate = 24000
	AudioChannels    = 1

	InputMIMEType = "audio/pcm;rate=16000"
)

// Fragment is one incremental unit of streamed model output. A single
// fragment may carry a transcript delta for either speaker, raw PCM audio,
// or a control signal; transcript and audio for the same turn may arrive in
// either relative order.
type Fragment struct {
	UserText     string
	ModelText    string
	Audio        []byte // pcm_s16le at OutputSampleRate, mono
	TurnComplete bool
	Interrupted  bool
}

// ModelSession is one open bidirectional stream to the speech model.
// Ownership is exclusive to the session controller.
type ModelSession interface {
	// SendAudio forwards one encoded capture frame. Fire-and-forget: frames
	// must be sent in capture order but the caller does not wait for
	// acknowledgement.
	SendAudio(pcm []byte) error

	// Receive blocks until the next fragment arrives. It returns an error
	// when the stream ends or breaks; io.EOF means a clean remote close.
	Receive() (Fragment, error)

	// Close tears down the stream. Safe to call more than once.
	Close() error
}

// ModelConfig shapes a new model session.
type ModelConfig struct {
	Model  string
	System string
	Voice  string
}

// Upstream opens model sessions.
type Upstream interface {
	Connect(ctx context.Context, cfg ModelConfig) (ModelSession, error)
}

// CaptureSource is an acquired microphone pipeline. Frames carries fixed-size
// float sample buffers in capture order; the channel closes when the device
// is released.
type CaptureSource interface {
	Frames() <-chan []float32
	Close() error
}

// CaptureOpener acquires the capture device. Open fails with a
// core.ErrPermission error when access is denied.
type CaptureOpener interface {
	Open(ctx context.Context) (CaptureSource, error)
}
