package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/versolabs/studio/pkg/core"
	"github.com/versolabs/studio/pkg/gateway/upstream"
)

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestChat_HappyPath(t *testing.T) {
	gen := &fakeGenerator{
		textFn: func(req upstream.TextRequest) (*upstream.TextResult, error) {
			if req.Model != "chat-default" {
				t.Errorf("model=%q, want config default", req.Model)
			}
			if req.Prompt != "hello" {
				t.Errorf("prompt=%q", req.Prompt)
			}
			return &upstream.TextResult{Text: "hi there"}, nil
		},
	}
	h := ChatHandler{Config: testConfig(), Generator: gen}

	rec := postJSON(t, h, "/v1/chat", `{"prompt":"hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	var resp chatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Text != "hi there" {
		t.Fatalf("text=%q", resp.Text)
	}
	if rec.Header().Get("X-Model") != "chat-default" {
		t.Fatal("X-Model header missing")
	}
}

func TestChat_WebSearchCitations(t *testing.T) {
	gen := &fakeGenerator{
		textFn: func(req upstream.TextRequest) (*upstream.TextResult, error) {
			if !req.UseWebSearch {
				t.Error("web_search flag not forwarded")
			}
			return &upstream.TextResult{
				Text:      "grounded answer",
				Citations: []upstream.Citation{{URI: "https://example.org/a", Title: "A"}},
			}, nil
		},
	}
	h := ChatHandler{Config: testConfig(), Generator: gen}

	rec := postJSON(t, h, "/v1/chat", `{"prompt":"what happened today?","web_search":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var resp chatResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Citations) != 1 || resp.Citations[0].URI != "https://example.org/a" {
		t.Fatalf("citations=%+v", resp.Citations)
	}
}

func TestChat_ImageAttachment(t *testing.T) {
	gen := &fakeGenerator{
		textFn: func(req upstream.TextRequest) (*upstream.TextResult, error) {
			if string(req.Image) != "\x89PNG" {
				t.Errorf("image bytes=%q", req.Image)
			}
			if req.ImageMIME != "image/png" {
				t.Errorf("mime=%q", req.ImageMIME)
			}
			return &upstream.TextResult{Text: "a png"}, nil
		},
	}
	h := ChatHandler{Config: testConfig(), Generator: gen}

	// base64("\x89PNG") = iVBORw== without padding variance
	rec := postJSON(t, h, "/v1/chat", `{"prompt":"what is this?","image_b64":"iVBORw==","image_mime":"image/png"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
}

func TestChat_Validation(t *testing.T) {
	h := ChatHandler{Config: testConfig(), Generator: &fakeGenerator{}}
	cases := []struct {
		name string
		body string
	}{
		{"empty prompt", `{"prompt":"  "}`},
		{"unknown field", `{"prompt":"x","frobnicate":true}`},
		{"bad base64", `{"prompt":"x","image_b64":"!!!","image_mime":"image/png"}`},
		{"image without mime", `{"prompt":"x","image_b64":"aGk="}`},
		{"not json", `prompt=hello`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, h, "/v1/chat", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status=%d, want 400", rec.Code)
			}
		})
	}
}

func TestChat_UpstreamErrorMapped(t *testing.T) {
	gen := &fakeGenerator{
		textFn: func(req upstream.TextRequest) (*upstream.TextResult, error) {
			return nil, core.NewQuotaOrAuthError("API key expired", "RESOURCE_EXHAUSTED")
		},
	}
	h := ChatHandler{Config: testConfig(), Generator: gen}

	rec := postJSON(t, h, "/v1/chat", `{"prompt":"hello"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", rec.Code)
	}
	var env struct {
		Error *core.Error `json:"error"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&env)
	if env.Error.Type != core.ErrQuotaOrAuth {
		t.Fatalf("type=%s", env.Error.Type)
	}
}

func TestChat_RejectsGet(t *testing.T) {
	h := ChatHandler{Config: testConfig(), Generator: &fakeGenerator{}}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chat", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", rec.Code)
	}
}
