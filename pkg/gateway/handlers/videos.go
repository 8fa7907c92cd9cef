package handlers

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/versolabs/studio/pkg/core"
	"github.com/versolabs/studio/pkg/gateway/config"
	"github.com/versolabs/studio/pkg/gateway/upstream"
)

type videoGenerateRequest struct {
	Prompt    string `json:"prompt"`
	Model     string `json:"model,omitempty"`
	ImageB64  string `json:"image_b64,omitempty"`
	ImageMIME string `json:"image_mime,omitempty"`
}

type videoGenerateResponse struct {
	Model    string `json:"model"`
	VideoB64 string `json:"video_b64,omitempty"`
	MIME     string `json:"mime,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// VideoGenerateHandler handles POST /v1/videos/generate. Video generation
// polls a long-running operation for minutes, so the credential is verified
// before any work starts; a dead key fails in one round trip instead of at
// the end of the poll budget.
type VideoGenerateHandler struct {
	Config    config.Config
	Generator upstream.Generator
}

func (h VideoGenerateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		drainBody(r)
		return
	}

	var req videoGenerateRequest
	if err := decodeJSON(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, r, core.NewInvalidRequestErrorWithParam("prompt is required", "prompt"))
		return
	}

	var seed []byte
	if req.ImageB64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ImageB64)
		if err != nil {
			writeError(w, r, core.NewInvalidRequestErrorWithParam("image_b64 is not valid base64", "image_b64"))
			return
		}
		if req.ImageMIME == "" {
			writeError(w, r, core.NewInvalidRequestErrorWithParam("image_mime is required with image_b64", "image_mime"))
			return
		}
		seed = decoded
	}

	if err := h.Generator.VerifyKey(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}

	model := req.Model
	if model == "" {
		model = h.Config.VideoModel
	}

	video, err := h.Generator.GenerateVideo(r.Context(), upstream.VideoRequest{
		Model:        model,
		Prompt:       req.Prompt,
		Image:        seed,
		ImageMIME:    req.ImageMIME,
		PollInterval: h.Config.VideoPollInterval,
		PollTimeout:  h.Config.VideoPollTimeout,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := videoGenerateResponse{Model: model, MIME: video.MIME, URI: video.URI}
	if len(video.Data) > 0 {
		resp.VideoB64 = base64.StdEncoding.EncodeToString(video.Data)
	}
	w.Header().Set("X-Model", model)
	writeJSON(w, http.StatusOK, resp)
}
