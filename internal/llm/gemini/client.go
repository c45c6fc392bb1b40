package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/llm"
)

const providerName = "gemini"

// Config for the Gemini recognizer.
type Config struct {
	APIKey      string
	Model       string        // e.g. "gemini-1.5-flash"
	Temperature float32       // keep near zero
	Timeout     time.Duration // per recognition call
}

// generator is the slice of *genai.GenerativeModel we use.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type Client struct {
	cfg    Config
	client *genai.Client
	model  generator
	logger *slog.Logger
}

// NewClient dials the Generative Language API and configures the model for
// low-variance JSON output.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	m := cl.GenerativeModel(cfg.Model)
	m.SetTemperature(cfg.Temperature)
	m.SetTopK(1)
	m.SetTopP(0.95)
	m.SetMaxOutputTokens(1024)
	m.ResponseMIMEType = "application/json"
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(llm.SystemPrompt)},
	}

	return &Client{cfg: cfg, client: cl, model: m, logger: logger}, nil
}

func (c *Client) Name() string { return providerName }

func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Recognize sends the fixed prompt and every image in one GenerateContent call.
func (c *Client) Recognize(ctx context.Context, req llm.RecognitionRequest) (llm.RawResponse, error) {
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()

	parts := make([]genai.Part, 0, len(req.Images)+1)
	parts = append(parts, genai.Text(llm.UserPrompt))
	for _, img := range req.Images {
		parts = append(parts, genai.Blob{MIMEType: img.MediaType, Data: img.Data})
	}

	c.logger.Info("llm.recognize.start",
		"req_id", rid,
		"provider", providerName,
		"model", c.cfg.Model,
		"images", len(req.Images),
	)

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.model.GenerateContent(callCtx, parts...)
	if err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
			c.logger.Info("llm.recognize.canceled", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
			return llm.RawResponse{}, context.Canceled
		}
		c.logger.Error("llm.recognize.failed",
			"req_id", rid,
			"provider", providerName,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.RawResponse{}, &common.RecognitionUnavailableError{Provider: providerName, StatusCode: httpCode(err), Cause: err}
	}

	txt := firstText(resp)
	if txt == "" {
		c.logger.Error("llm.recognize.empty", "req_id", rid, "candidates", candidateCount(resp))
		return llm.RawResponse{}, &common.RecognitionUnavailableError{Provider: providerName, Cause: errors.New("empty response")}
	}

	c.logger.Info("llm.recognize.ok",
		"req_id", rid,
		"provider", providerName,
		"text_len", len(txt),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.RawResponse{Text: txt, Model: c.cfg.Model}, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}

func candidateCount(resp *genai.GenerateContentResponse) int {
	if resp == nil {
		return 0
	}
	return len(resp.Candidates)
}

// httpCode pulls the HTTP status out of API errors that carry one.
func httpCode(err error) int {
	var hc interface{ HTTPCode() int }
	if errors.As(err, &hc) && hc.HTTPCode() > 0 {
		return hc.HTTPCode()
	}
	return 0
}
