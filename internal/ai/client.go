package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultGatewayBaseURL    = "https://ai.gateway.lovable.dev/v1"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultCallTimeout       = 60 * time.Second
)

// ChatClient sends envelopes to an OpenAI-compatible chat-completions
// endpoint. It makes exactly one HTTP call per Complete and never retries.
type ChatClient struct {
	apiKey  string
	baseURL string
	name    string
	client  *http.Client
	timeout time.Duration
	headers map[string]string
}

// ClientOption configures a ChatClient.
type ClientOption func(*ChatClient)

// WithBaseURL sets the base URL of the chat-completions API.
func WithBaseURL(url string) ClientOption {
	return func(c *ChatClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *ChatClient) {
		c.client = client
	}
}

// WithTimeout bounds every outbound call. Zero disables the bound.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *ChatClient) {
		c.timeout = d
	}
}

// WithHeader adds a static header to every request.
func WithHeader(key, value string) ClientOption {
	return func(c *ChatClient) {
		c.headers[key] = value
	}
}

// WithProviderName sets the name used in logs and errors.
func WithProviderName(name string) ClientOption {
	return func(c *ChatClient) {
		c.name = name
	}
}

// NewGatewayClient creates a client for the default AI gateway.
func NewGatewayClient(apiKey string, opts ...ClientOption) *ChatClient {
	c := &ChatClient{
		apiKey:  apiKey,
		baseURL: defaultGatewayBaseURL,
		name:    "gateway",
		client:  http.DefaultClient,
		timeout: defaultCallTimeout,
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewOpenRouterClient creates a client for OpenRouter, which needs two
// extra attribution headers on top of the OpenAI-compatible API.
func NewOpenRouterClient(apiKey string, opts ...ClientOption) *ChatClient {
	opts = append([]ClientOption{
		WithBaseURL(defaultOpenRouterBaseURL),
		WithProviderName("openrouter"),
		WithHeader("HTTP-Referer", "https://lexivisual.app"),
		WithHeader("X-Title", "LexiVisual"),
	}, opts...)
	return NewGatewayClient(apiKey, opts...)
}

// Name returns the provider name.
func (c *ChatClient) Name() string {
	return c.name
}

// chatRequest is the request body for the chat completions API.
type chatRequest struct {
	Model       string     `json:"model"`
	Messages    []Message  `json:"messages"`
	Modalities  []Modality `json:"modalities,omitempty"`
	MaxTokens   int        `json:"max_tokens,omitempty"`
	Temperature *float64   `json:"temperature,omitempty"`
}

// chatResponse is the subset of the chat completions response we read.
// Content is a pointer so an absent field can be told apart from "".
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
			Images  []struct {
				ImageURL struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *ChatClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if c.apiKey == "" {
		return CompletionResponse{}, NewConfigurationError("LEXI_AI_API_KEY is not configured")
	}
	if err := req.Validate(); err != nil {
		return CompletionResponse{}, err
	}
	endpoint, err := chatEndpoint(c.baseURL)
	if err != nil {
		return CompletionResponse{}, err
	}

	wire := chatRequest{
		Model:      req.Model,
		Messages:   req.Messages,
		Modalities: req.Modalities,
		MaxTokens:  req.MaxTokens,
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		wire.Temperature = &temp
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return CompletionResponse{}, TransportError(ctx, req.Model, fmt.Errorf("send request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompletionResponse{}, TransportError(ctx, req.Model, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("chat completion failed",
			"provider", c.name,
			"model", req.Model,
			"status", resp.StatusCode,
			"body", string(respBody),
		)
		return CompletionResponse{}, NewStatusError(req.Model, resp.StatusCode, string(respBody))
	}

	var wireResp chatResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return CompletionResponse{}, &Error{Kind: KindMalformedResponse, Model: req.Model, StatusCode: resp.StatusCode, Body: string(respBody), Message: "response is not valid JSON", Err: err}
	}
	if len(wireResp.Choices) == 0 {
		return CompletionResponse{}, &Error{Kind: KindMalformedResponse, Model: req.Model, StatusCode: resp.StatusCode, Body: string(respBody), Message: "no choices in response"}
	}
	msg := wireResp.Choices[0].Message
	if msg.Content == nil {
		return CompletionResponse{}, &Error{Kind: KindMalformedResponse, Model: req.Model, StatusCode: resp.StatusCode, Body: string(respBody), Message: "choices[0].message.content is missing"}
	}

	out := CompletionResponse{
		Content:      *msg.Content,
		Model:        wireResp.Model,
		InputTokens:  wireResp.Usage.PromptTokens,
		OutputTokens: wireResp.Usage.CompletionTokens,
	}
	if out.Model == "" {
		out.Model = req.Model
	}
	for _, img := range msg.Images {
		if img.ImageURL.URL != "" {
			out.Images = append(out.Images, img.ImageURL.URL)
		}
	}
	return out, nil
}

// chatEndpoint builds the completions URL.
func chatEndpoint(baseURL string) (string, error) {
	if err := ValidateEndpoint(baseURL); err != nil {
		return "", err
	}
	return strings.TrimSuffix(baseURL, "/") + "/chat/completions", nil
}

// ValidateEndpoint accepts https URLs, and plain http only for loopback
// hosts.
func ValidateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return NewConfigurationError(fmt.Sprintf("invalid provider endpoint %q", raw))
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !isLoopback(u.Hostname()) {
			return NewConfigurationError(fmt.Sprintf("provider endpoint must use https: %q", raw))
		}
	default:
		return NewConfigurationError(fmt.Sprintf("unsupported endpoint scheme %q", u.Scheme))
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// TransportError classifies a failure that happened before a complete
// response was read.
func TransportError(ctx context.Context, model string, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Model: model, Message: "provider did not respond in time", Err: err}
	case errors.Is(ctx.Err(), context.Canceled):
		return &Error{Kind: KindCanceled, Model: model, Message: "request canceled", Err: err}
	}
	return &Error{Kind: KindProvider, Model: model, Message: "provider unreachable", Err: err}
}
