// Package upstream wraps the hosted model API behind a narrow interface so
// handlers can be tested against fakes.
package upstream

import (
	"context"
	"time"
)

// TextRequest is one single-shot chat exchange. Image, when set, is attached
// to the prompt for multimodal questions.
type TextRequest struct {
	Model        string
	Prompt       string
	System       string
	Image        []byte
	ImageMIME    string
	UseWebSearch bool
}

// Citation is one web source the model grounded its answer on.
type Citation struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// TextResult carries the model's answer plus any grounding citations.
type TextResult struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations,omitempty"`
}

// ImageRequest asks for generated images from a text prompt.
type ImageRequest struct {
	Model  string
	Prompt string
	Count  int
}

// EditRequest transforms a source image according to a text instruction.
type EditRequest struct {
	Model     string
	Prompt    string
	Image     []byte
	ImageMIME string
}

// Image is one generated or edited image.
type Image struct {
	Data []byte
	MIME string
}

// VideoRequest asks for a generated video clip, optionally seeded with a
// still image.
type VideoRequest struct {
	Model     string
	Prompt    string
	Image     []byte
	ImageMIME string

	// PollInterval and PollTimeout bound the long-running operation wait.
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Video is one finished clip.
type Video struct {
	Data []byte
	MIME string
	URI  string
}

// Generator is the full generation surface the gateway exposes.
type Generator interface {
	// VerifyKey checks that the configured credential is currently usable.
	// Long-running flows call it before starting work so a bad key fails
	// fast instead of after minutes of polling.
	VerifyKey(ctx context.Context) error

	GenerateText(ctx context.Context, req TextRequest) (*TextResult, error)
	GenerateImages(ctx context.Context, req ImageRequest) ([]Image, error)
	EditImage(ctx context.Context, req EditRequest) (*Image, error)
	GenerateVideo(ctx context.Context, req VideoRequest) (*Video, error)
}
