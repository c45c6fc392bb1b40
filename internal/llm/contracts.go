package llm

import "context"

// Image is one model-ready photo.
type Image struct {
	Data      []byte
	MediaType string
	Name      string
}

// RecognitionRequest bundles every photo of one extraction into a single call.
// Order is kept for traceability.
type RecognitionRequest struct {
	Images []Image
}

// RawResponse is the unparsed model output.
type RawResponse struct {
	Text  string
	Model string
}

// Recognizer is the interface the pipeline depends on. Implementations make
// exactly one service call per request and return context.Canceled untouched
// when the caller gives up.
type Recognizer interface {
	Recognize(ctx context.Context, req RecognitionRequest) (RawResponse, error)
	Name() string
}
