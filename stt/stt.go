// Package stt provides the transcription client used by the audio pipeline.
// It converts framed audio into text with an optional average log-probability
// that callers turn into a confidence score.
package stt

import "context"

// Result is one transcription outcome.
type Result struct {
	// Text is the recognized speech, possibly empty for silence.
	Text string

	// AvgLogprob is the mean log-probability reported by the backend.
	// Only meaningful when HasLogprob is true.
	AvgLogprob float64

	// HasLogprob indicates the backend supplied segment log-probabilities.
	HasLogprob bool

	// Duration is the audio duration in seconds as measured by the backend.
	Duration float64

	// Language is the detected language code, if any.
	Language string
}

// Transcriber converts a framed audio container (WAV) into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wavData []byte) (*Result, error)
}
