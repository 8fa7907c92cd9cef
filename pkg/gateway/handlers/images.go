package handlers

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/versolabs/studio/pkg/core"
	"github.com/versolabs/studio/pkg/gateway/config"
	"github.com/versolabs/studio/pkg/gateway/upstream"
)

const maxImagesPerRequest = 4

type imageGenerateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
	Count  int    `json:"count,omitempty"`
}

type imagePayload struct {
	DataB64 string `json:"data_b64"`
	MIME    string `json:"mime"`
}

type imageGenerateResponse struct {
	Model  string         `json:"model"`
	Images []imagePayload `json:"images"`
}

// ImageGenerateHandler handles POST /v1/images/generate.
type ImageGenerateHandler struct {
	Config    config.Config
	Generator upstream.Generator
}

func (h ImageGenerateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		drainBody(r)
		return
	}

	var req imageGenerateRequest
	if err := decodeJSON(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, r, core.NewInvalidRequestErrorWithParam("prompt is required", "prompt"))
		return
	}
	if req.Count < 0 || req.Count > maxImagesPerRequest {
		writeError(w, r, core.NewInvalidRequestErrorWithParam("count must be between 1 and 4", "count"))
		return
	}

	model := req.Model
	if model == "" {
		model = h.Config.ImageModel
	}

	images, err := h.Generator.GenerateImages(r.Context(), upstream.ImageRequest{
		Model:  model,
		Prompt: req.Prompt,
		Count:  req.Count,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := imageGenerateResponse{Model: model, Images: make([]imagePayload, 0, len(images))}
	for _, img := range images {
		resp.Images = append(resp.Images, imagePayload{
			DataB64: base64.StdEncoding.EncodeToString(img.Data),
			MIME:    img.MIME,
		})
	}
	w.Header().Set("X-Model", model)
	writeJSON(w, http.StatusOK, resp)
}

type imageEditRequest struct {
	Prompt    string `json:"prompt"`
	Model     string `json:"model,omitempty"`
	ImageB64  string `json:"image_b64"`
	ImageMIME string `json:"image_mime"`
}

type imageEditResponse struct {
	Model string       `json:"model"`
	Image imagePayload `json:"image"`
}

// ImageEditHandler handles POST /v1/images/edit: a source image plus an
// instruction produce a transformed image.
type ImageEditHandler struct {
	Config    config.Config
	Generator upstream.Generator
}

func (h ImageEditHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		drainBody(r)
		return
	}

	var req imageEditRequest
	if err := decodeJSON(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, r, core.NewInvalidRequestErrorWithParam("prompt is required", "prompt"))
		return
	}
	if req.ImageB64 == "" {
		writeError(w, r, core.NewInvalidRequestErrorWithParam("image_b64 is required", "image_b64"))
		return
	}
	if req.ImageMIME == "" {
		writeError(w, r, core.NewInvalidRequestErrorWithParam("image_mime is required", "image_mime"))
		return
	}
	source, err := base64.StdEncoding.DecodeString(req.ImageB64)
	if err != nil {
		writeError(w, r, core.NewInvalidRequestErrorWithParam("image_b64 is not valid base64", "image_b64"))
		return
	}

	model := req.Model
	if model == "" {
		model = h.Config.ImageEditModel
	}

	edited, err := h.Generator.EditImage(r.Context(), upstream.EditRequest{
		Model:     model,
		Prompt:    req.Prompt,
		Image:     source,
		ImageMIME: req.ImageMIME,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("X-Model", model)
	writeJSON(w, http.StatusOK, imageEditResponse{
		Model: model,
		Image: imagePayload{
			DataB64: base64.StdEncoding.EncodeToString(edited.Data),
			MIME:    edited.MIME,
		},
	})
}
