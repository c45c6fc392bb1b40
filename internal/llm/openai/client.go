package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/llm"
)

const providerName = "openai"

type chatRequest struct {
	Model          string         `json:"model"`
	Temperature    float32        `json:"temperature"`
	TopP           float32        `json:"top_p"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat map[string]any `json:"response_format"`
	Messages       []chatMessage  `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *Client) Name() string { return providerName }

// Recognize implements llm.Recognizer with one vision chat/completions call.
func (c *Client) Recognize(ctx context.Context, req llm.RecognitionRequest) (llm.RawResponse, error) {
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()

	parts := make([]contentPart, 0, len(req.Images)+1)
	parts = append(parts, contentPart{Type: "text", Text: llm.UserPrompt})
	for _, img := range req.Images {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: llm.DataURL(img), Detail: "high"}})
	}

	body := chatRequest{
		Model:          c.cfg.Model,
		Temperature:    c.cfg.Temperature,
		TopP:           0.95,
		MaxTokens:      1024,
		ResponseFormat: map[string]any{"type": "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: llm.SystemPrompt},
			{Role: "user", Content: parts},
		},
	}

	c.logger.Info("llm.recognize.start",
		"req_id", rid,
		"provider", providerName,
		"model", c.cfg.Model,
		"images", len(req.Images),
	)

	var out chatResponse
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			c.logger.Info("llm.recognize.canceled", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
			return llm.RawResponse{}, context.Canceled
		}
		c.logger.Error("llm.recognize.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.RawResponse{}, &common.RecognitionUnavailableError{Provider: providerName, Cause: err}
	}
	if resp.IsError() {
		c.logger.Error("llm.recognize.bad_status",
			"req_id", rid,
			"status", resp.StatusCode(),
			"error_type", apiErr.Error.Type,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.RawResponse{}, &common.RecognitionUnavailableError{
			Provider:   providerName,
			StatusCode: resp.StatusCode(),
			Cause:      fmt.Errorf("openai status %d: %s", resp.StatusCode(), apiErr.Error.Message),
		}
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		c.logger.Error("llm.recognize.no_choices", "req_id", rid, "bytes", len(resp.Body()))
		return llm.RawResponse{}, &common.RecognitionUnavailableError{
			Provider:   providerName,
			StatusCode: resp.StatusCode(),
			Cause:      errors.New("no choices in openai response"),
		}
	}

	content := out.Choices[0].Message.Content
	model := out.Model
	if model == "" {
		model = c.cfg.Model
	}
	c.logger.Info("llm.recognize.ok",
		"req_id", rid,
		"provider", providerName,
		"model", model,
		"text_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.RawResponse{Text: content, Model: model}, nil
}
