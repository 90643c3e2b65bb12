package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// OllamaClient talks to a local Ollama server. No token is required; when no
// model is configured, the first model reported by the server is used.
type OllamaClient struct {
	host   string
	client *resty.Client

	mu    sync.Mutex
	model string
}

// OllamaOptions configures an OllamaClient.
type OllamaOptions struct {
	Host    string
	Model   string
	Timeout time.Duration
}

// NewOllamaClient creates a new Ollama client.
func NewOllamaClient(opts OllamaOptions) *OllamaClient {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")

	return &OllamaClient{
		host:   strings.TrimSuffix(opts.Host, "/"),
		client: client,
		model:  opts.Model,
	}
}

// Name identifies the backend.
func (c *OllamaClient) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.model == "" {
		return "ollama"
	}
	return "ollama/" + c.model
}

// Models lists the models available on the server.
func (c *OllamaClient) Models(ctx context.Context) ([]string, error) {
	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&result).
		Get(c.host + "/api/tags")

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code %d", ErrUnavailable, resp.StatusCode())
	}

	names := make([]string, 0, len(result.Models))
	for _, m := range result.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// resolveModel returns the configured model, discovering one from the
// server on first use when none was configured.
func (c *OllamaClient) resolveModel(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.model != "" {
		return c.model, nil
	}

	models, err := c.Models(ctx)
	if err != nil {
		return "", err
	}
	if len(models) == 0 {
		return "", fmt.Errorf("%w: no models available on %s", ErrUnavailable, c.host)
	}

	c.model = models[0]
	return c.model, nil
}

// Complete performs a single non-streaming chat completion over the
// transcript.
func (c *OllamaClient) Complete(ctx context.Context, transcript []Message) (string, error) {
	model, err := c.resolveModel(ctx)
	if err != nil {
		return "", err
	}

	var result struct {
		Message Message `json:"message"`
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"model":    model,
			"messages": transcript,
			"stream":   false,
		}).
		SetResult(&result).
		Post(c.host + "/api/chat")

	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status code %d: %s", ErrUnavailable, resp.StatusCode(), resp.String())
	}

	return result.Message.Content, nil
}

// Ping checks connectivity to the Ollama server.
func (c *OllamaClient) Ping(ctx context.Context) error {
	_, err := c.Models(ctx)
	return err
}
