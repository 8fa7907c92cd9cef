package handlers

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/versolabs/studio/pkg/core"
	"github.com/versolabs/studio/pkg/gateway/config"
	"github.com/versolabs/studio/pkg/gateway/upstream"
)

type chatRequest struct {
	Prompt    string `json:"prompt"`
	System    string `json:"system,omitempty"`
	Model     string `json:"model,omitempty"`
	ImageB64  string `json:"image_b64,omitempty"`
	ImageMIME string `json:"image_mime,omitempty"`
	WebSearch bool   `json:"web_search,omitempty"`
}

type chatResponse struct {
	Text      string              `json:"text"`
	Model     string              `json:"model"`
	Citations []upstream.Citation `json:"citations,omitempty"`
}

// ChatHandler handles POST /v1/chat: one prompt in, one answer out, with
// optional image attachment and optional web-search grounding.
type ChatHandler struct {
	Config    config.Config
	Generator upstream.Generator
}

func (h ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		drainBody(r)
		return
	}

	var req chatRequest
	if err := decodeJSON(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, r, core.NewInvalidRequestErrorWithParam("prompt is required", "prompt"))
		return
	}

	model := req.Model
	if model == "" {
		model = h.Config.ChatModel
	}

	var image []byte
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
		image = decoded
	}

	result, err := h.Generator.GenerateText(r.Context(), upstream.TextRequest{
		Model:        model,
		Prompt:       req.Prompt,
		System:       req.System,
		Image:        image,
		ImageMIME:    req.ImageMIME,
		UseWebSearch: req.WebSearch,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("X-Model", model)
	writeJSON(w, http.StatusOK, chatResponse{
		Text:      result.Text,
		Model:     model,
		Citations: result.Citations,
	})
}
