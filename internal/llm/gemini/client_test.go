package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/llm"
)

type fakeGenerator struct {
	resp  *genai.GenerateContentResponse
	err   error
	block bool
	calls int
	parts []genai.Part
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.parts = parts
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.resp, f.err
}

type apiErr struct{ code int }

func (e apiErr) Error() string { return "googleapi: quota exceeded" }
func (e apiErr) HTTPCode() int { return e.code }

func newTestClient(g generator, timeout time.Duration) *Client {
	return &Client{
		cfg:    Config{Model: "gemini-1.5-flash", Timeout: timeout},
		model:  g,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, genai.Text(p))
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func TestRecognizeBundlesImagesInOneCall(t *testing.T) {
	g := &fakeGenerator{resp: textResponse(`{"pulse":`, ` 72}`)}
	c := newTestClient(g, time.Second)

	req := llm.RecognitionRequest{Images: []llm.Image{
		{Data: []byte{1}, MediaType: "image/jpeg", Name: "scale.jpg"},
		{Data: []byte{2}, MediaType: "image/jpeg", Name: "bp.jpg"},
	}}
	got, err := c.Recognize(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, g.calls)
	assert.Equal(t, `{"pulse": 72}`, got.Text)
	assert.Equal(t, "gemini-1.5-flash", got.Model)

	require.Len(t, g.parts, 3)
	assert.Equal(t, genai.Text(llm.UserPrompt), g.parts[0])
	assert.Equal(t, genai.Blob{MIMEType: "image/jpeg", Data: []byte{1}}, g.parts[1])
	assert.Equal(t, genai.Blob{MIMEType: "image/jpeg", Data: []byte{2}}, g.parts[2])
}

func TestRecognizeServiceFailure(t *testing.T) {
	c := newTestClient(&fakeGenerator{err: apiErr{code: 429}}, time.Second)
	_, err := c.Recognize(context.Background(), llm.RecognitionRequest{})

	var ru *common.RecognitionUnavailableError
	require.ErrorAs(t, err, &ru)
	assert.Equal(t, "gemini", ru.Provider)
	assert.Equal(t, 429, ru.StatusCode)
	assert.True(t, common.IsRetryable(err))
}

func TestRecognizeEmptyResponse(t *testing.T) {
	c := newTestClient(&fakeGenerator{resp: &genai.GenerateContentResponse{}}, time.Second)
	_, err := c.Recognize(context.Background(), llm.RecognitionRequest{})
	var ru *common.RecognitionUnavailableError
	assert.ErrorAs(t, err, &ru)
}

func TestRecognizeTimeoutIsUnavailable(t *testing.T) {
	c := newTestClient(&fakeGenerator{block: true}, 20*time.Millisecond)
	_, err := c.Recognize(context.Background(), llm.RecognitionRequest{})

	var ru *common.RecognitionUnavailableError
	require.ErrorAs(t, err, &ru)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRecognizeCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := &fakeGenerator{block: true}
	c := newTestClient(g, time.Minute)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := c.Recognize(ctx, llm.RecognitionRequest{})
	assert.True(t, errors.Is(err, context.Canceled))

	var ru *common.RecognitionUnavailableError
	assert.False(t, errors.As(err, &ru))
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), Config{}, nil)
	assert.Error(t, err)
}
