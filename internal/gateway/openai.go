package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/haakonsb/liftchat/internal/config"
	"github.com/haakonsb/liftchat/internal/models"
)

// Message is one turn of conversation history handed to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client calls an OpenAI-compatible chat-completions endpoint. The wire
// format is owned by the provider; every failure surfaces to callers as
// the generic models.ErrServiceUnavailable.
type Client struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewClient(cfg *config.OpenAIConfig, logger *slog.Logger) *Client {
	return &Client{
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       cfg.Model,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		logger:      logger,
	}
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the conversation history and returns the model's reply.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty")
	}

	payload, err := json.Marshal(completionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("completion request failed", slog.Any("error", err))
		return "", models.ErrServiceUnavailable
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.logger.Error("failed to read completion response", slog.Any("error", err))
		return "", models.ErrServiceUnavailable
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("completion request rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("model", c.model))
		return "", models.ErrServiceUnavailable
	}

	var parsed completionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.Error("failed to decode completion response", slog.Any("error", err))
		return "", models.ErrServiceUnavailable
	}

	if len(parsed.Choices) == 0 {
		c.logger.Error("completion response contained no choices")
		return "", models.ErrServiceUnavailable
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
