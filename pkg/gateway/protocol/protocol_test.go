package protocol

import (
	"testing"
)

func validHelloJSON() string {
	return `{
		"type": "hello",
		"protocol_version": "1",
		"model": "voice-model",
		"audio_in": {"encoding": "pcm_s16le", "sample_rate_hz": 16000, "channels": 1},
		"audio_out": {"encoding": "pcm_s16le", "sample_rate_hz": 24000, "channels": 1}
	}`
}

func TestDecodeClientMessage_Hello(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(validHelloJSON()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	hello, ok := msg.(ClientHello)
	if !ok {
		t.Fatalf("got %T, want ClientHello", msg)
	}
	if hello.Model != "voice-model" {
		t.Fatalf("model=%q", hello.Model)
	}
}

func TestDecodeClientMessage_AudioFrame(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"audio_frame","seq":3,"data_b64":"AAAA"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	frame, ok := msg.(ClientAudioFrame)
	if !ok {
		t.Fatalf("got %T, want ClientAudioFrame", msg)
	}
	if frame.Seq != 3 || frame.DataB64 != "AAAA" {
		t.Fatalf("frame=%+v", frame)
	}
}

func TestDecodeClientMessage_AudioFrameRequiresData(t *testing.T) {
	_, err := DecodeClientMessage([]byte(`{"type":"audio_frame"}`))
	de, ok := err.(*DecodeError)
	if !ok {
		t.Fatalf("err=%v, want *DecodeError", err)
	}
	if de.Param != "data_b64" {
		t.Fatalf("param=%q", de.Param)
	}
}

func TestDecodeClientMessage_Control(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"control","op":" interrupt "}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ctl := msg.(ClientControl)
	if ctl.Op != "interrupt" {
		t.Fatalf("op=%q, want trimmed interrupt", ctl.Op)
	}

	if _, err := DecodeClientMessage([]byte(`{"type":"control","op":"reboot"}`)); err == nil {
		t.Fatal("expected error for unsupported op")
	}
}

func TestDecodeClientMessage_Rejects(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"invalid json", `{`},
		{"missing type", `{"op":"interrupt"}`},
		{"unknown type", `{"type":"teleport"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeClientMessage([]byte(tc.data)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestValidateHello_RejectsWrongShapes(t *testing.T) {
	base := ClientHello{
		Type:            "hello",
		ProtocolVersion: ProtocolVersion1,
		AudioIn:         AudioFormat{Encoding: EncodingPCMS16LE, SampleRateHz: InputRateHz, Channels: 1},
		AudioOut:        AudioFormat{Encoding: EncodingPCMS16LE, SampleRateHz: OutputRateHz, Channels: 1},
	}
	if err := ValidateHello(base); err != nil {
		t.Fatalf("valid hello rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*ClientHello)
		param  string
	}{
		{"missing version", func(h *ClientHello) { h.ProtocolVersion = "" }, "protocol_version"},
		{"future version", func(h *ClientHello) { h.ProtocolVersion = "2" }, "protocol_version"},
		{"wrong input encoding", func(h *ClientHello) { h.AudioIn.Encoding = "opus" }, "audio_in.encoding"},
		{"wrong input rate", func(h *ClientHello) { h.AudioIn.SampleRateHz = 44100 }, "audio_in.sample_rate_hz"},
		{"stereo input", func(h *ClientHello) { h.AudioIn.Channels = 2 }, "audio_in.channels"},
		{"wrong output rate", func(h *ClientHello) { h.AudioOut.SampleRateHz = 48000 }, "audio_out.sample_rate_hz"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := base
			tc.mutate(&h)
			err := ValidateHello(h)
			de, ok := err.(*DecodeError)
			if !ok {
				t.Fatalf("err=%v, want *DecodeError", err)
			}
			if de.Param != tc.param {
				t.Fatalf("param=%q, want %q", de.Param, tc.param)
			}
		})
	}
}

func TestClientHello_RedactedForLogOmitsSystemPrompt(t *testing.T) {
	h := ClientHello{Type: "hello", Model: "m", System: "secret persona instructions"}
	logged := h.RedactedForLog()
	if logged["has_system"] != true {
		t.Fatal("has_system not set")
	}
	for k, v := range logged {
		if s, ok := v.(string); ok && s == h.System {
			t.Fatalf("system prompt leaked under key %q", k)
		}
	}
}
