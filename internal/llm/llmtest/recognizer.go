// Package llmtest provides a scripted Recognizer for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/joseph-ayodele/vitals-tracker/internal/llm"
)

// Recognizer answers every call with Text or Err. When Block is set it waits
// for the caller's context instead, which lets tests cancel mid-call.
type Recognizer struct {
	Text  string
	Model string
	Err   error
	Block bool

	mu       sync.Mutex
	requests []llm.RecognitionRequest
	started  chan struct{}
}

// New returns a Recognizer that replies with text.
func New(text string) *Recognizer {
	return &Recognizer{Text: text, Model: "fake-vision"}
}

func (r *Recognizer) Name() string { return "fake" }

func (r *Recognizer) Recognize(ctx context.Context, req llm.RecognitionRequest) (llm.RawResponse, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	started := r.started
	r.started = nil
	r.mu.Unlock()
	if started != nil {
		close(started)
	}

	if r.Block {
		<-ctx.Done()
		return llm.RawResponse{}, ctx.Err()
	}
	if r.Err != nil {
		return llm.RawResponse{}, r.Err
	}
	return llm.RawResponse{Text: r.Text, Model: r.Model}, nil
}

// Started returns a channel closed when the next call begins.
func (r *Recognizer) Started() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = make(chan struct{})
	return r.started
}

// Requests returns every request received so far.
func (r *Recognizer) Requests() []llm.RecognitionRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]llm.RecognitionRequest(nil), r.requests...)
}
