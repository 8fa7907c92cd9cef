package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/versolabs/studio/pkg/gateway/config"
	"github.com/versolabs/studio/pkg/gateway/upstream"
	"github.com/versolabs/studio/pkg/live"
)

type stubGenerator struct{}

func (stubGenerator) VerifyKey(ctx context.Context) error { return nil }

func (stubGenerator) GenerateText(ctx context.Context, req upstream.TextRequest) (*upstream.TextResult, error) {
	return &upstream.TextResult{Text: "stub"}, nil
}

func (stubGenerator) GenerateImages(ctx context.Context, req upstream.ImageRequest) ([]upstream.Image, error) {
	return []upstream.Image{{Data: []byte{1}, MIME: "image/png"}}, nil
}

func (stubGenerator) EditImage(ctx context.Context, req upstream.EditRequest) (*upstream.Image, error) {
	return &upstream.Image{Data: []byte{1}, MIME: "image/png"}, nil
}

func (stubGenerator) GenerateVideo(ctx context.Context, req upstream.VideoRequest) (*upstream.Video, error) {
	return &upstream.Video{URI: "https://files.example/v.mp4"}, nil
}

type stubLiveUpstream struct{}

func (stubLiveUpstream) Connect(ctx context.Context, cfg live.ModelConfig) (live.ModelSession, error) {
	return nil, context.Canceled
}

func testServer(cfg config.Config) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWithUpstreams(cfg, logger, stubGenerator{}, stubLiveUpstream{})
}

func baseConfig() config.Config {
	return config.Config{
		AuthMode:                config.AuthModeDisabled,
		GeminiAPIKey:            "test-key",
		MaxBodyBytes:            1 << 20,
		ChatModel:               "chat-m",
		ImageModel:              "img-m",
		ImageEditModel:          "edit-m",
		VideoModel:              "vid-m",
		LiveModel:               "live-m",
		LiveMaxAudioFrameBytes:  8192,
		LiveMaxJSONMessageBytes: 64 * 1024,
		ReadHeaderTimeout:       10 * time.Second,
		ReadTimeout:             30 * time.Second,
		HandlerTimeout:          time.Minute,
	}
}

func TestServer_RoutesRespond(t *testing.T) {
	srv := httptest.NewServer(testServer(baseConfig()).Handler())
	defer srv.Close()

	for _, tc := range []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/readyz", "", http.StatusOK},
		{http.MethodPost, "/v1/chat", `{"prompt":"hi"}`, http.StatusOK},
		{http.MethodPost, "/v1/images/generate", `{"prompt":"a fox"}`, http.StatusOK},
		{http.MethodPost, "/v1/images/edit", `{"prompt":"x","image_b64":"aGk=","image_mime":"image/png"}`, http.StatusOK},
		{http.MethodPost, "/v1/videos/generate", `{"prompt":"clip"}`, http.StatusOK},
		{http.MethodGet, "/v1/nope", "", http.StatusNotFound},
	} {
		req, _ := http.NewRequest(tc.method, srv.URL+tc.path, strings.NewReader(tc.body))
		if tc.body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", tc.method, tc.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.status {
			t.Errorf("%s %s: status=%d, want %d", tc.method, tc.path, resp.StatusCode, tc.status)
		}
	}
}

func TestServer_RequestIDOnEveryResponse(t *testing.T) {
	srv := httptest.NewServer(testServer(baseConfig()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("X-Request-ID missing")
	}
}

func TestServer_AuthRequiredBlocksAnonymous(t *testing.T) {
	cfg := baseConfig()
	cfg.AuthMode = config.AuthModeRequired
	cfg.APIKeys = map[string]struct{}{"sk-ok": {}}
	srv := httptest.NewServer(testServer(cfg).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/chat", "application/json", strings.NewReader(`{"prompt":"hi"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/chat", strings.NewReader(`{"prompt":"hi"}`))
	req.Header.Set("Authorization", "Bearer sk-ok")
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("authed post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authed status=%d", resp.StatusCode)
	}
}

func TestServer_LiveUpgradeSurvivesMiddlewareChain(t *testing.T) {
	srv := httptest.NewServer(testServer(baseConfig()).Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/live"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial /v1/live through the full chain: %v (status=%d)", err, status)
	}
	defer conn.Close()

	hello := map[string]any{
		"type":             "hello",
		"protocol_version": "1",
		"audio_in":         map[string]any{"encoding": "pcm_s16le", "sample_rate_hz": 16000, "channels": 1},
		"audio_out":        map[string]any{"encoding": "pcm_s16le", "sample_rate_hz": 24000, "channels": 1},
	}
	if err := conn.WriteJSON(hello); err != nil {
		t.Fatalf("write hello: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
	}
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("read hello_ack: %v", err)
	}
	if ack.Type != "hello_ack" {
		t.Fatalf("frame type=%q, want hello_ack", ack.Type)
	}
	if !strings.HasPrefix(ack.SessionID, "ls_") {
		t.Fatalf("session_id=%q, want ls_ prefix", ack.SessionID)
	}
}

func TestServer_DrainingFlipsReadyz(t *testing.T) {
	s := testServer(baseConfig())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	s.SetDraining(true)
	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", resp.StatusCode)
	}
	var body struct {
		Draining bool `json:"draining"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if !body.Draining {
		t.Fatal("draining not reported")
	}
}
