package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/versolabs/studio/pkg/audio"
	"github.com/versolabs/studio/pkg/live"
)

// ffplaySink plays model audio by streaming raw PCM into an ffplay
// subprocess. Reset kills and restarts the process so buffered audio stops
// immediately on interruption.
type ffplaySink struct {
	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func newFFplaySink() (*ffplaySink, error) {
	if _, err := exec.LookPath("ffplay"); err != nil {
		return nil, errors.New("ffplay is required for playback (install ffmpeg/ffplay or run with --no-speaker)")
	}
	s := &ffplaySink{}
	if err := s.startLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ffplaySink) startLocked() error {
	s.cmd = exec.Command("ffplay",
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", live.OutputSampleRate),
		"-ac", "1",
		"-i", "pipe:0",
	)
	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open ffplay stdin: %w", err)
	}
	s.cmd.Stdout = io.Discard
	s.cmd.Stderr = io.Discard
	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("start ffplay: %w", err)
	}
	s.stdin = stdin
	return nil
}

func (s *ffplaySink) Play(buf *audio.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stdin == nil {
		return errors.New("ffplay stdin is not initialized")
	}
	_, err := s.stdin.Write(buf.PCM())
	return err
}

func (s *ffplaySink) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	return s.startLocked()
}

func (s *ffplaySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	return nil
}

func (s *ffplaySink) stopLocked() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	s.stdin = nil
}

// discardSink drops model audio. Used with --no-speaker.
type discardSink struct{}

func (discardSink) Play(*audio.Buffer) error { return nil }

// dumpSink tees played PCM into memory so it can be written out as a WAV
// file when the session ends.
type dumpSink struct {
	inner live.Sink

	mu  sync.Mutex
	pcm bytes.Buffer
}

func newDumpSink(inner live.Sink) *dumpSink {
	return &dumpSink{inner: inner}
}

func (d *dumpSink) Play(buf *audio.Buffer) error {
	d.mu.Lock()
	d.pcm.Write(buf.PCM())
	d.mu.Unlock()
	return d.inner.Play(buf)
}

// WriteWAV writes everything played so far to path.
func (d *dumpSink) WriteWAV(path string) error {
	d.mu.Lock()
	pcm := append([]byte(nil), d.pcm.Bytes()...)
	d.mu.Unlock()
	if len(pcm) == 0 {
		return nil
	}
	wav := audio.PCMToWAV(pcm, live.OutputSampleRate, 16, live.AudioChannels)
	return os.WriteFile(path, wav, 0o644)
}
