package llm

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// HostedClient talks to a hosted OpenAI-compatible chat-completion endpoint,
// authenticated with a bearer token and pinned to one model identifier.
type HostedClient struct {
	client *openai.Client
	model  string
}

// HostedOptions configures a HostedClient.
type HostedOptions struct {
	Endpoint           string
	ModelID            string
	AccessToken        string
	InsecureSkipVerify bool
}

// NewHostedClient creates a new hosted model client.
func NewHostedClient(opts HostedOptions) (*HostedClient, error) {
	if opts.AccessToken == "" {
		return nil, errors.New("access token is required")
	}
	if opts.ModelID == "" {
		return nil, errors.New("model ID is required")
	}

	cfg := openai.DefaultConfig(opts.AccessToken)
	if opts.Endpoint != "" {
		cfg.BaseURL = strings.TrimSuffix(opts.Endpoint, "/") + "/v1"
	}
	if opts.InsecureSkipVerify {
		cfg.HTTPClient = &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		}
	}

	return &HostedClient{
		client: openai.NewClientWithConfig(cfg),
		model:  opts.ModelID,
	}, nil
}

// Name identifies the backend.
func (c *HostedClient) Name() string {
	return "hosted/" + c.model
}

// Complete performs a single chat completion over the transcript.
func (c *HostedClient) Complete(ctx context.Context, transcript []Message) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(transcript))
	for _, msg := range transcript {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no response from model", ErrUnavailable)
	}

	return resp.Choices[0].Message.Content, nil
}

// Ping checks reachability of the hosted endpoint via its model listing.
func (c *HostedClient) Ping(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
