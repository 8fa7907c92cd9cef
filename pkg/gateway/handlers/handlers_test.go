package handlers

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/versolabs/studio/pkg/gateway/config"
	"github.com/versolabs/studio/pkg/gateway/upstream"
)

// fakeGenerator records calls in order and delegates to optional stubs.
type fakeGenerator struct {
	mu    sync.Mutex
	calls []string

	verifyErr error
	textFn    func(req upstream.TextRequest) (*upstream.TextResult, error)
	imagesFn  func(req upstream.ImageRequest) ([]upstream.Image, error)
	editFn    func(req upstream.EditRequest) (*upstream.Image, error)
	videoFn   func(req upstream.VideoRequest) (*upstream.Video, error)
}

func (f *fakeGenerator) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeGenerator) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeGenerator) VerifyKey(ctx context.Context) error {
	f.record("verify")
	return f.verifyErr
}

func (f *fakeGenerator) GenerateText(ctx context.Context, req upstream.TextRequest) (*upstream.TextResult, error) {
	f.record("text")
	if f.textFn != nil {
		return f.textFn(req)
	}
	return &upstream.TextResult{Text: "ok"}, nil
}

func (f *fakeGenerator) GenerateImages(ctx context.Context, req upstream.ImageRequest) ([]upstream.Image, error) {
	f.record("images")
	if f.imagesFn != nil {
		return f.imagesFn(req)
	}
	return []upstream.Image{{Data: []byte{1}, MIME: "image/png"}}, nil
}

func (f *fakeGenerator) EditImage(ctx context.Context, req upstream.EditRequest) (*upstream.Image, error) {
	f.record("edit")
	if f.editFn != nil {
		return f.editFn(req)
	}
	return &upstream.Image{Data: []byte{2}, MIME: "image/png"}, nil
}

func (f *fakeGenerator) GenerateVideo(ctx context.Context, req upstream.VideoRequest) (*upstream.Video, error) {
	f.record("video")
	if f.videoFn != nil {
		return f.videoFn(req)
	}
	return &upstream.Video{Data: []byte{3}, MIME: "video/mp4"}, nil
}

func testConfig() config.Config {
	return config.Config{
		AuthMode:                config.AuthModeDisabled,
		MaxBodyBytes:            1 << 20,
		ChatModel:               "chat-default",
		ImageModel:              "image-default",
		ImageEditModel:          "edit-default",
		VideoModel:              "video-default",
		LiveModel:               "live-default",
		LiveVoice:               "Zephyr",
		LiveMaxAudioFrameBytes:  8192,
		LiveMaxJSONMessageBytes: 64 * 1024,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
