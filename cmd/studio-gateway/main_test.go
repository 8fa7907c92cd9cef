package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/versolabs/studio/pkg/gateway/config"
	gatewayserver "github.com/versolabs/studio/pkg/gateway/server"
	"github.com/versolabs/studio/pkg/gateway/upstream"
	"github.com/versolabs/studio/pkg/live"
)

func TestRunMain_ReturnsNonZeroWhenConfigLoadFails(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	exitCode := runMain(context.Background(), &stderr, gatewayDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{}, errors.New("boom")
		},
		newGateway: func(ctx context.Context, cfg config.Config, logger *slog.Logger) (*gatewayserver.Server, error) {
			t.Fatalf("newGateway should not be called when config load fails")
			return nil, nil
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	})

	if exitCode != 1 {
		t.Fatalf("exitCode=%d, want 1", exitCode)
	}
	if got := stderr.String(); got == "" {
		t.Fatalf("expected stderr output for startup error")
	}
}

func TestRunGateway_GatewayBuildFailureSurfaces(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := runGateway(context.Background(), logger, gatewayDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{Addr: "127.0.0.1:0"}, nil
		},
		newGateway: func(ctx context.Context, cfg config.Config, logger *slog.Logger) (*gatewayserver.Server, error) {
			return nil, errors.New("client init failed")
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	})
	if err == nil || err.Error() != "build gateway: client init failed" {
		t.Fatalf("err=%v, want wrapped build error", err)
	}
}

func TestBuildHTTPServer_UsesConfiguredAddress(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Addr:              "127.0.0.1:9999",
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       3 * time.Second,
	}

	srv := buildHTTPServer(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	if srv.Addr != cfg.Addr {
		t.Fatalf("Addr=%q, want %q", srv.Addr, cfg.Addr)
	}
	if srv.ReadHeaderTimeout != cfg.ReadHeaderTimeout {
		t.Fatalf("ReadHeaderTimeout=%v, want %v", srv.ReadHeaderTimeout, cfg.ReadHeaderTimeout)
	}
	if srv.ReadTimeout != cfg.ReadTimeout {
		t.Fatalf("ReadTimeout=%v, want %v", srv.ReadTimeout, cfg.ReadTimeout)
	}
}

type smokeGenerator struct{}

func (smokeGenerator) VerifyKey(ctx context.Context) error { return nil }

func (smokeGenerator) GenerateText(ctx context.Context, req upstream.TextRequest) (*upstream.TextResult, error) {
	return &upstream.TextResult{Text: "ok"}, nil
}

func (smokeGenerator) GenerateImages(ctx context.Context, req upstream.ImageRequest) ([]upstream.Image, error) {
	return nil, nil
}

func (smokeGenerator) EditImage(ctx context.Context, req upstream.EditRequest) (*upstream.Image, error) {
	return &upstream.Image{}, nil
}

func (smokeGenerator) GenerateVideo(ctx context.Context, req upstream.VideoRequest) (*upstream.Video, error) {
	return &upstream.Video{}, nil
}

type smokeLiveUpstream struct{}

func (smokeLiveUpstream) Connect(ctx context.Context, cfg live.ModelConfig) (live.ModelSession, error) {
	return nil, context.Canceled
}

func TestGatewayHandlerStack_Smoke(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := gatewayserver.NewWithUpstreams(config.Config{
		AuthMode:     config.AuthModeDisabled,
		GeminiAPIKey: "test-key",

		MaxBodyBytes:   1 << 20,
		ChatModel:      "chat-default",
		ImageModel:     "image-default",
		ImageEditModel: "edit-default",
		VideoModel:     "video-default",
		LiveModel:      "live-default",

		LiveMaxAudioFrameBytes:  8192,
		LiveMaxJSONMessageBytes: 64 * 1024,
		LiveWSPingInterval:      20 * time.Second,
		LiveWSWriteTimeout:      5 * time.Second,
		LiveHandshakeTimeout:    5 * time.Second,
		LiveMaxSessionDuration:  2 * time.Hour,
		LiveMaxSessionsPerKey:   2,

		LimitRPS:                   10,
		LimitBurst:                 20,
		LimitMaxConcurrentRequests: 20,

		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Second,
		HandlerTimeout:    time.Minute,
	}, logger, smokeGenerator{}, smokeLiveUpstream{})

	ts := httptest.NewServer(gw.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d, want %d", resp.StatusCode, http.StatusOK)
	}
}
