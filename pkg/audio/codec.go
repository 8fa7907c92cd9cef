// Package audio converts between wire-format PCM byte payloads and sample
// buffers. Capture hands the encoder float samples; the model streams back
// 16-bit little-endian PCM that decodes into playable buffers.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/versolabs/studio/pkg/core"
)

const (
	bytesPerSample = 2
	sampleScale    = 32767.0
)

// EncodeFrame quantizes float samples in [-1, 1] to 16-bit little-endian PCM.
// Out-of-range samples are clamped rather than wrapped.
func EncodeFrame(samples []float32) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		s := int16(v * sampleScale)
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(s))
	}
	return out
}

// Buffer is a decoded chunk of PCM audio ready for playback.
type Buffer struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// DecodeFragment parses 16-bit little-endian PCM bytes into a Buffer. It
// fails with a decode error when the byte length is not a whole multiple of
// the sample width.
func DecodeFragment(data []byte, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, core.NewDecodeError(fmt.Sprintf("invalid sample rate %d", sampleRate))
	}
	if channels <= 0 {
		return nil, core.NewDecodeError(fmt.Sprintf("invalid channel count %d", channels))
	}
	if len(data)%bytesPerSample != 0 {
		return nil, core.NewDecodeError(fmt.Sprintf("pcm payload length %d is not a multiple of the sample width", len(data)))
	}
	samples := make([]int16, len(data)/bytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*bytesPerSample:]))
	}
	return &Buffer{Samples: samples, SampleRate: sampleRate, Channels: channels}, nil
}

// Duration returns the playback duration of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 || b.Channels <= 0 {
		return 0
	}
	frames := len(b.Samples) / b.Channels
	return time.Duration(frames) * time.Second / time.Duration(b.SampleRate)
}

// Floats converts the buffer back to float samples in [-1, 1].
func (b *Buffer) Floats() []float32 {
	if b == nil {
		return nil
	}
	out := make([]float32, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = float32(s) / sampleScale
	}
	return out
}

// PCM re-encodes the buffer as 16-bit little-endian PCM bytes.
func (b *Buffer) PCM() []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b.Samples)*bytesPerSample)
	for i, s := range b.Samples {
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(s))
	}
	return out
}

// EncodeWire returns the base64 transport form of a PCM payload.
func EncodeWire(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

// DecodeWire parses the base64 transport form back into PCM bytes.
func DecodeWire(data string) ([]byte, error) {
	out, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, core.NewDecodeError("invalid base64 audio payload")
	}
	return out, nil
}

// PCMToWAV wraps raw PCM audio data with a WAV header so dumps are playable
// by standard tools.
func PCMToWAV(pcmData []byte, sampleRate, bitsPerSample, channels int) []byte {
	dataLen := len(pcmData)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, 44)

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(bitsPerSample))

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))

	return append(header, pcmData...)
}
