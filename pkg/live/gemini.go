package live

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"github.com/versolabs/studio/pkg/core"
)

// GeminiUpstream opens live voice streams against the Gemini API.
type GeminiUpstream struct {
	client *genai.Client
}

// NewGeminiUpstream wraps an already-constructed API client.
func NewGeminiUpstream(client *genai.Client) *GeminiUpstream {
	return &GeminiUpstream{client: client}
}

// Connect opens a bidirectional voice stream. Audio responses and transcripts
// for both speakers are requested up front.
func (u *GeminiUpstream) Connect(ctx context.Context, cfg ModelConfig) (ModelSession, error) {
	connectCfg := &genai.LiveConnectConfig{
		ResponseModalities:       []genai.Modality{genai.ModalityAudio},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if cfg.System != "" {
		connectCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: cfg.System}},
		}
	}
	if cfg.Voice != "" {
		connectCfg.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		}
	}

	session, err := u.client.Live.Connect(ctx, cfg.Model, connectCfg)
	if err != nil {
		return nil, mapUpstreamError(err)
	}
	return &geminiSession{session: session}, nil
}

type geminiSession struct {
	session *genai.Session
}

func (s *geminiSession) SendAudio(pcm []byte) error {
	err := s.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{MIMEType: InputMIMEType, Data: pcm},
	})
	if err != nil {
		return mapUpstreamError(err)
	}
	return nil
}

// Receive maps one wire message to a Fragment. Messages that carry nothing
// we route (setup acks, tool traffic) come back as empty fragments, which
// the controller treats as no-ops.
func (s *geminiSession) Receive() (Fragment, error) {
	msg, err := s.session.Receive()
	if err != nil {
		return Fragment{}, err
	}

	var frag Fragment
	sc := msg.ServerContent
	if sc == nil {
		return frag, nil
	}
	if sc.InputTranscription != nil {
		frag.UserText = sc.InputTranscription.Text
	}
	if sc.OutputTranscription != nil {
		frag.ModelText = sc.OutputTranscription.Text
	}
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				frag.Audio = append(frag.Audio, part.InlineData.Data...)
			}
		}
	}
	frag.TurnComplete = sc.TurnComplete
	frag.Interrupted = sc.Interrupted
	return frag, nil
}

func (s *geminiSession) Close() error {
	return s.session.Close()
}

// mapUpstreamError folds API errors into the local taxonomy. Credential and
// quota rejections get their own type so callers can surface a re-auth
// prompt rather than retrying.
func mapUpstreamError(err error) error {
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
