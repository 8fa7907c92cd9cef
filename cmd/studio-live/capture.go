package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/versolabs/studio/pkg/audio"
	"github.com/versolabs/studio/pkg/core"
	"github.com/versolabs/studio/pkg/live"
)

const micFrameMS = 20

// micOpener spawns an ffmpeg subprocess that captures the default (or
// selected) microphone as 16 kHz mono s16le on stdout.
type micOpener struct {
	goos   string
	device int
}

func (o micOpener) Open(ctx context.Context) (live.CaptureSource, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, core.NewPermissionError("ffmpeg is required for mic capture (install ffmpeg and ensure it is in PATH)")
	}
	args, err := micFFmpegArgs(o.goos, o.device)
	if err != nil {
		return nil, core.NewPermissionError(err.Error())
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open ffmpeg stdout: %w", err)
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, core.NewPermissionError(fmt.Sprintf("start ffmpeg mic capture: %v", err))
	}

	src := &micSource{
		cmd:    cmd,
		frames: make(chan []float32, 16),
	}
	go src.pump(stdout)
	return src, nil
}

func micFFmpegArgs(goos string, device int) ([]string, error) {
	rate := fmt.Sprintf("%d", live.InputSampleRate)
	switch goos {
	case "darwin":
		// none:<index> avoids opening a video device.
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "avfoundation", "-i", fmt.Sprintf("none:%d", device),
			"-ac", "1", "-ar", rate,
			"-f", "s16le", "-",
		}, nil
	case "linux":
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "pulse", "-i", "default",
			"-ac", "1", "-ar", rate,
			"-f", "s16le", "-",
		}, nil
	default:
		return nil, fmt.Errorf("mic capture is not implemented for %s; supported platforms: darwin, linux", goos)
	}
}

// micFrameBytes is the byte size of one capture frame.
func micFrameBytes(frameMS int) int {
	samples := (live.InputSampleRate * frameMS) / 1000
	return samples * 2
}

type micSource struct {
	cmd    *exec.Cmd
	frames chan []float32

	closeOnce sync.Once
}

func (s *micSource) Frames() <-chan []float32 { return s.frames }

func (s *micSource) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd != nil && s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
	})
	return nil
}

// pump reads fixed-size PCM frames from ffmpeg and converts them to float32
// samples. It owns the frames channel and closes it when capture ends.
func (s *micSource) pump(stdout io.Reader) {
	defer close(s.frames)
	defer func() {
		if s.cmd != nil {
			_ = s.cmd.Wait()
		}
	}()

	raw := make([]byte, micFrameBytes(micFrameMS))
	for {
		if _, err := io.ReadFull(stdout, raw); err != nil {
			return
		}
		buf, err := audio.DecodeFragment(raw, live.InputSampleRate, live.AudioChannels)
		if err != nil {
			continue
		}
		s.frames <- buf.Floats()
	}
}

func listMicDevices(goos string) error {
	if goos != "darwin" {
		return errors.New("device listing is only implemented for macOS avfoundation")
	}
	cmd := exec.Command("ffmpeg", "-f", "avfoundation", "-list_devices", "true", "-i", "")
	out, err := cmd.CombinedOutput()
	fmt.Print(string(out))
	if err != nil {
		// ffmpeg exits non-zero after printing the device list; that is fine
		// as long as the binary ran.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil
		}
		return err
	}
	return nil
}
