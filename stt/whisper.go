package stt

import (
	"bytes"
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// WhisperTranscriber implements Transcriber using the OpenAI Whisper API.
// Audio is uploaded as a multipart WAV file; the verbose JSON response
// carries per-segment log-probabilities.
type WhisperTranscriber struct {
	client   *openai.Client
	model    string
	language string
}

// NewWhisperTranscriber creates a Whisper-backed transcriber.
func NewWhisperTranscriber(apiKey string) *WhisperTranscriber {
	return &WhisperTranscriber{
		client: openai.NewClient(apiKey),
		model:  openai.Whisper1,
	}
}

// WithLanguage pins the recognition language instead of auto-detecting.
func (w *WhisperTranscriber) WithLanguage(lang string) *WhisperTranscriber {
	w.language = lang
	return w
}

// Transcribe uploads the WAV container and parses the response. The caller
// bounds the call with its own context timeout.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, wavData []byte) (*Result, error) {
	if len(wavData) == 0 {
		return &Result{}, nil
	}

	req := openai.AudioRequest{
		Model:    w.model,
		Language: w.language,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Reader:   bytes.NewReader(wavData),
		FilePath: "audio.wav", // required by the API for content-type sniffing
	}

	resp, err := w.client.CreateTranscription(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("whisper transcription: %w", err)
	}

	result := &Result{
		Text:     resp.Text,
		Duration: resp.Duration,
		Language: resp.Language,
	}

	if len(resp.Segments) > 0 {
		total := 0.0
		for _, seg := range resp.Segments {
			total += seg.AvgLogprob
		}
		result.AvgLogprob = total / float64(len(resp.Segments))
		result.HasLogprob = true
	}

	return result, nil
}
