package audio

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/versolabs/studio/pkg/core"
)

func TestEncodeDecode_RoundTripWithinQuantizationTolerance(t *testing.T) {
	samples := make([]float32, 480)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 16000))
	}

	wire := EncodeFrame(samples)
	if len(wire) != len(samples)*2 {
		t.Fatalf("encoded length=%d, want %d", len(wire), len(samples)*2)
	}

	buf, err := DecodeFragment(wire, 16000, 1)
	if err != nil {
		t.Fatalf("DecodeFragment: %v", err)
	}
	got := buf.Floats()
	if len(got) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(samples))
	}
	const tolerance = 1.5 / 32767.0
	for i := range samples {
		if diff := math.Abs(float64(got[i] - samples[i])); diff > tolerance {
			t.Fatalf("sample %d: got %v, want %v (diff %v)", i, got[i], samples[i], diff)
		}
	}
}

func TestEncodeFrame_ClampsOutOfRange(t *testing.T) {
	wire := EncodeFrame([]float32{2.0, -2.0})
	if got := int16(binary.LittleEndian.Uint16(wire[0:2])); got != 32767 {
		t.Fatalf("positive overflow encoded as %d, want 32767", got)
	}
	if got := int16(binary.LittleEndian.Uint16(wire[2:4])); got != -32767 {
		t.Fatalf("negative overflow encoded as %d, want -32767", got)
	}
}

func TestDecodeFragment_RejectsOddLength(t *testing.T) {
	_, err := DecodeFragment([]byte{0x01, 0x02, 0x03}, 24000, 1)
	if err == nil {
		t.Fatal("expected decode error for odd payload length")
	}
	if !core.IsType(err, core.ErrDecode) {
		t.Fatalf("error type=%T %v, want decode_error", err, err)
	}
}

func TestDecodeFragment_RejectsBadShape(t *testing.T) {
	if _, err := DecodeFragment([]byte{0, 0}, 0, 1); !core.IsType(err, core.ErrDecode) {
		t.Fatalf("zero sample rate: got %v", err)
	}
	if _, err := DecodeFragment([]byte{0, 0}, 24000, 0); !core.IsType(err, core.ErrDecode) {
		t.Fatalf("zero channels: got %v", err)
	}
}

func TestBuffer_Duration(t *testing.T) {
	buf := &Buffer{Samples: make([]int16, 24000), SampleRate: 24000, Channels: 1}
	if got := buf.Duration().Seconds(); got != 1.0 {
		t.Fatalf("duration=%vs, want 1s", got)
	}
	stereo := &Buffer{Samples: make([]int16, 48000), SampleRate: 24000, Channels: 2}
	if got := stereo.Duration().Seconds(); got != 1.0 {
		t.Fatalf("stereo duration=%vs, want 1s", got)
	}
}

func TestBuffer_PCMInverseOfDecode(t *testing.T) {
	wire := []byte{0x10, 0x00, 0xF0, 0xFF, 0x00, 0x80}
	buf, err := DecodeFragment(wire, 24000, 1)
	if err != nil {
		t.Fatalf("DecodeFragment: %v", err)
	}
	got := buf.PCM()
	if len(got) != len(wire) {
		t.Fatalf("pcm length=%d, want %d", len(got), len(wire))
	}
	for i := range wire {
		if got[i] != wire[i] {
			t.Fatalf("byte %d: got %#x, want %#x", i, got[i], wire[i])
		}
	}
}

func TestWireEncoding_RoundTrip(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	decoded, err := DecodeWire(EncodeWire(pcm))
	if err != nil {
		t.Fatalf("DecodeWire: %v", err)
	}
	if string(decoded) != string(pcm) {
		t.Fatalf("round trip=%v, want %v", decoded, pcm)
	}

	if _, err := DecodeWire("!!not-base64!!"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}

func TestPCMToWAV_Header(t *testing.T) {
	pcm := make([]byte, 4800)
	wav := PCMToWAV(pcm, 24000, 16, 1)
	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length=%d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("bad container magic: %q %q", wav[0:4], wav[8:12])
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 24000 {
		t.Fatalf("sample rate=%d, want 24000", rate)
	}
	if dataLen := binary.LittleEndian.Uint32(wav[40:44]); int(dataLen) != len(pcm) {
		t.Fatalf("data length=%d, want %d", dataLen, len(pcm))
	}
}
