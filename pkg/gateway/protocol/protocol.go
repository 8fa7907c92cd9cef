// Package protocol defines the JSON frames exchanged over the live voice
// WebSocket and the validation applied to inbound frames.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	ProtocolVersion1 = "1"

	// The only audio shapes the voice pipeline speaks. Clients must capture
	// at 16 kHz mono and play back at 24 kHz mono, both pcm_s16le.
	EncodingPCMS16LE = "pcm_s16le"
	InputRateHz      = 16000
	OutputRateHz     = 24000
	ChannelsMono     = 1
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

// AudioFormat describes a live audio shape.
type AudioFormat struct {
	Encoding     string `json:"encoding"`
	SampleRateHz int    `json:"sample_rate_hz"`
	Channels     int    `json:"channels"`
}

type HelloClient struct {
	Name     string `json:"name,omitempty"`
	Version  string `json:"version,omitempty"`
	Platform string `json:"platform,omitempty"`
}

type ClientHello struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Client          HelloClient `json:"client,omitempty"`
	Model           string      `json:"model,omitempty"`
	Voice           string      `json:"voice,omitempty"`
	System          string      `json:"system,omitempty"`
	AudioIn         AudioFormat `json:"audio_in"`
	AudioOut        AudioFormat `json:"audio_out"`
}

func (h ClientHello) RedactedForLog() map[string]any {
	return map[string]any{
		"type":             h.Type,
		"protocol_version": h.ProtocolVersion,
		"model":            h.Model,
		"voice":            h.Voice,
		"audio_in":         h.AudioIn,
		"audio_out":        h.AudioOut,
		"has_system":       strings.TrimSpace(h.System) != "",
	}
}

type ClientAudioFrame struct {
	Type    string `json:"type"`
	Seq     int64  `json:"seq,omitempty"`
	DataB64 string `json:"data_b64"`
}

type ClientControl struct {
	Type string `json:"type"`
	Op   string `json:"op"`
}

// DecodeClientMessage parses and validates one inbound frame. The returned
// value is one of ClientHello, ClientAudioFrame, or ClientControl.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "hello":
		var msg ClientHello
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid hello frame", "")
		}
		if err := ValidateHello(msg); err != nil {
			return nil, err
		}
		return msg, nil
	case "audio_frame":
		var msg ClientAudioFrame
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio_frame", "")
		}
		if strings.TrimSpace(msg.DataB64) == "" {
			return nil, badRequest("audio_frame.data_b64 is required", "data_b64")
		}
		return msg, nil
	case "control":
		var msg ClientControl
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid control", "")
		}
		op := strings.TrimSpace(msg.Op)
		if op == "" {
			return nil, badRequest("control.op is required", "op")
		}
		switch op {
		case "interrupt", "end_session":
		default:
			return nil, unsupported("unsupported control operation", "op")
		}
		msg.Op = op
		return msg, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

// ValidateHello checks the handshake frame against the fixed pipeline
// formats. The model only accepts 16 kHz mono input and only produces
// 24 kHz mono output, so anything else is rejected up front.
func ValidateHello(msg ClientHello) error {
	if strings.TrimSpace(msg.ProtocolVersion) == "" {
		return badRequest("hello.protocol_version is required", "protocol_version")
	}
	if msg.ProtocolVersion != ProtocolVersion1 {
		return unsupported("unsupported protocol version", "protocol_version")
	}
	if msg.AudioIn.Encoding != EncodingPCMS16LE {
		return unsupported("audio_in.encoding must be pcm_s16le", "audio_in.encoding")
	}
	if msg.AudioIn.SampleRateHz != InputRateHz {
		return unsupported("audio_in.sample_rate_hz must be 16000", "audio_in.sample_rate_hz")
	}
	if msg.AudioIn.Channels != ChannelsMono {
		return unsupported("audio_in.channels must be 1", "audio_in.channels")
	}
	if msg.AudioOut.Encoding != EncodingPCMS16LE {
		return unsupported("audio_out.encoding must be pcm_s16le", "audio_out.encoding")
	}
	if msg.AudioOut.SampleRateHz != OutputRateHz {
		return unsupported("audio_out.sample_rate_hz must be 24000", "audio_out.sample_rate_hz")
	}
	if msg.AudioOut.Channels != ChannelsMono {
		return unsupported("audio_out.channels must be 1", "audio_out.channels")
	}
	return nil
}

type HelloAckLimits struct {
	MaxAudioFrameBytes  int `json:"max_audio_frame_bytes"`
	MaxJSONMessageBytes int `json:"max_json_message_bytes"`
}

type ServerHelloAck struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	SessionID       string          `json:"session_id"`
	Model           string          `json:"model"`
	Voice           string          `json:"voice,omitempty"`
	AudioIn         AudioFormat     `json:"audio_in"`
	AudioOut        AudioFormat     `json:"audio_out"`
	Limits          *HelloAckLimits `json:"limits,omitempty"`
}

type ServerTranscriptDelta struct {
	Type    string `json:"type"`
	Speaker string `json:"speaker"` // "user" or "model"
	Text    string `json:"text"`
}

type ServerModelAudio struct {
	Type     string `json:"type"`
	Seq      int64  `json:"seq"`
	AudioB64 string `json:"audio_b64"`
}

type ServerTurnComplete struct {
	Type      string `json:"type"`
	TurnID    string `json:"turn_id"`
	UserText  string `json:"user_text"`
	ModelText string `json:"model_text"`
}

// ServerAudioReset tells the client to drop any buffered playback, sent when
// the user interrupts the model mid-reply.
type ServerAudioReset struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Close   bool   `json:"close,omitempty"`
}

type ServerWarning struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
