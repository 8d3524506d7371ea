// Package fake provides a deterministic Transcriber double for tests.
package fake

import (
	"context"
	"sync"

	"github.com/soundline/meetbot/stt"
)

// Transcriber is a scripted stt.Transcriber. Each call returns Result/Err
// and records the uploaded payload.
type Transcriber struct {
	mu      sync.Mutex
	Result  stt.Result
	Err     error
	uploads [][]byte
}

// New creates a fake transcriber returning the given result.
func New(result stt.Result) *Transcriber {
	return &Transcriber{Result: result}
}

// Transcribe returns the scripted result and records the call.
func (f *Transcriber) Transcribe(_ context.Context, wavData []byte) (*stt.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(wavData))
	copy(cp, wavData)
	f.uploads = append(f.uploads, cp)
	if f.Err != nil {
		return nil, f.Err
	}
	result := f.Result
	return &result, nil
}

// Calls returns how many times Transcribe was invoked.
func (f *Transcriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

// Upload returns the nth recorded payload.
func (f *Transcriber) Upload(n int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads[n]
}
