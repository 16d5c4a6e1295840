package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	domsvc "StockCast/internal/domain/service"
	xhttp "StockCast/pkg/http"
)

// ChatConfig configures an OpenAI-compatible chat completions backend such as Groq.
type ChatConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	Attempts    int
}

// ChatClient generates text through the /chat/completions endpoint.
type ChatClient struct {
	base     *HTTPServiceBase
	model    string
	temp     float64
	attempts int
}

var _ domsvc.TextGenerator = (*ChatClient)(nil)

// NewChatClient creates a chat completions client.
func NewChatClient(cfg ChatConfig, opts ...xhttp.ClientOption) (*ChatClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("chat api key is required")
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	headers := map[string]string{"Authorization": "Bearer " + cfg.APIKey}
	return &ChatClient{
		base:     NewHTTPServiceBase(strings.TrimRight(cfg.BaseURL, "/"), cfg.Timeout, headers, opts...),
		model:    cfg.Model,
		temp:     cfg.Temperature,
		attempts: cfg.Attempts,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *ChatClient) Name() string { return "groq:" + c.model }

// Generate sends the system instruction and prompt as one chat turn.
func (c *ChatClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temp,
	}
	var resp chatResponse
	if err := c.base.PostJSONWithRetry(ctx, "/chat/completions", req, &resp, c.attempts); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("chat completion returned no content")
	}
	return resp.Choices[0].Message.Content, nil
}
