package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"

	"github.com/versolabs/studio/pkg/core"
)

const (
	defaultPollInterval = 10 * time.Second
	defaultPollTimeout  = 6 * time.Minute
)

// Gemini implements Generator against the hosted Gemini API.
type Gemini struct {
	client *genai.Client

	// verifyModel is the model whose metadata VerifyKey reads.
	verifyModel string
}

// NewGemini wraps an already-constructed API client. verifyModel is the
// model VerifyKey probes; it should be one the deployment actually uses.
func NewGemini(client *genai.Client, verifyModel string) *Gemini {
	return &Gemini{client: client, verifyModel: verifyModel}
}

// NewClient builds the underlying API client from a key.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}

// VerifyKey issues a cheap metadata read. A revoked or exhausted key comes
// back as a quota_or_auth_error.
func (g *Gemini) VerifyKey(ctx context.Context) error {
	_, err := g.client.Models.Get(ctx, g.verifyModel, nil)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (g *Gemini) GenerateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	parts := []*genai.Part{{Text: req.Prompt}}
	if len(req.Image) > 0 {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: req.ImageMIME, Data: req.Image},
		})
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.UseWebSearch {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, mapError(err)
	}

	result := &TextResult{Text: resp.Text()}
	if len(resp.Candidates) > 0 && resp.Candidates[0].GroundingMetadata != nil {
		for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
			if chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			result.Citations = append(result.Citations, Citation{
				URI:   chunk.Web.URI,
				Title: chunk.Web.Title,
			})
		}
	}
	return result, nil
}

func (g *Gemini) GenerateImages(ctx context.Context, req ImageRequest) ([]Image, error) {
	count := req.Count
	if count <= 0 {
		count = 1
	}
	resp, err := g.client.Models.GenerateImages(ctx, req.Model, req.Prompt, &genai.GenerateImagesConfig{
		NumberOfImages: int32(count),
	})
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp.GeneratedImages) == 0 {
		return nil, core.NewAPIError("model returned no images")
	}
	images := make([]Image, 0, len(resp.GeneratedImages))
	for _, gen := range resp.GeneratedImages {
		if gen.Image == nil {
			continue
		}
		images = append(images, Image{Data: gen.Image.ImageBytes, MIME: gen.Image.MIMEType})
	}
	return images, nil
}

// EditImage sends the source image and instruction through the multimodal
// content path and extracts the first image part of the reply.
func (g *Gemini) EditImage(ctx context.Context, req EditRequest) (*Image, error) {
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: req.Prompt},
			{InlineData: &genai.Blob{MIMEType: req.ImageMIME, Data: req.Image}},
		},
	}}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}

	resp, err := g.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, mapError(err)
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return &Image{Data: part.InlineData.Data, MIME: part.InlineData.MIMEType}, nil
			}
		}
	}
	return nil, core.NewAPIError("model returned no edited image")
}

// GenerateVideo starts a long-running generation and polls until the
// operation settles or the poll budget runs out.
func (g *Gemini) GenerateVideo(ctx context.Context, req VideoRequest) (*Video, error) {
	var seed *genai.Image
	if len(req.Image) > 0 {
		seed = &genai.Image{ImageBytes: req.Image, MIMEType: req.ImageMIME}
	}

	op, err := g.client.Models.GenerateVideos(ctx, req.Model, req.Prompt, seed, nil)
	if err != nil {
		return nil, mapError(err)
	}

	interval := req.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	timeout := req.PollTimeout
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}

	backoff := retry.WithMaxDuration(timeout, retry.NewConstant(interval))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		op, err = g.client.Operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			return mapError(err)
		}
		if !op.Done {
			return retry.RetryableError(fmt.Errorf("video operation %s still running", op.Name))
		}
		return nil
	})
	if err != nil {
		var coreErr *core.Error
		if errors.As(err, &coreErr) {
			return nil, coreErr
		}
		return nil, core.NewAPIError(fmt.Sprintf("video operation did not finish within %s", timeout))
	}

	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		return nil, core.NewAPIError("video operation finished with no output")
	}
	vid := op.Response.GeneratedVideos[0].Video
	if vid == nil {
		return nil, core.NewAPIError("video operation finished with no output")
	}
	return &Video{Data: vid.VideoBytes, MIME: vid.MIMEType, URI: vid.URI}, nil
}

// mapError folds API failures into the local taxonomy.
func mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 401, 403, 429:
			return core.NewQuotaOrAuthError(apiErr.Message, apiErr.Status)
		case 404:
			return core.NewNotFoundError(apiErr.Message)
		case 400:
			return core.NewInvalidRequestError(apiErr.Message)
		default:
			return core.NewAPIError(apiErr.Message)
		}
	}
	return core.NewTransportError("", err)
}
