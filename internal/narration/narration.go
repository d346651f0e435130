// Package narration turns text into spoken audio through a text-to-speech
// provider and returns it base64-encoded.
package narration

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/p-n-ai/lexivisual/internal/ai"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io"
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	DefaultModelID = "eleven_multilingual_v2"

	// Voice tunables are fixed for every call.
	stability       = 0.5
	similarityBoost = 0.75
)

// NotConfiguredMessage is the message returned when no speech credential is set.
const NotConfiguredMessage = "Audio generation not configured. Please set LEXI_SPEECH_API_KEY."

// Narrator requests speech for a piece of text. It makes one HTTP call per
// Narrate and never writes audio anywhere.
type Narrator struct {
	apiKey  string
	baseURL string
	voiceID string
	modelID string
	client  *http.Client
	timeout time.Duration
}

// Option configures a Narrator.
type Option func(*Narrator)

// WithBaseURL sets the text-to-speech API base URL.
func WithBaseURL(u string) Option {
	return func(n *Narrator) {
		n.baseURL = u
	}
}

// WithVoice sets the voice id.
func WithVoice(id string) Option {
	return func(n *Narrator) {
		n.voiceID = id
	}
}

// WithModel sets the speech model id.
func WithModel(id string) Option {
	return func(n *Narrator) {
		n.modelID = id
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Narrator) {
		n.client = c
	}
}

// WithTimeout bounds the outbound call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(n *Narrator) {
		n.timeout = d
	}
}

// New creates a Narrator. An empty apiKey is accepted; Narrate then fails
// with a configuration error.
func New(apiKey string, opts ...Option) *Narrator {
	n := &Narrator{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		voiceID: DefaultVoiceID,
		modelID: DefaultModelID,
		client:  http.DefaultClient,
		timeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Configured reports whether a credential is present.
func (n *Narrator) Configured() bool {
	return n.apiKey != ""
}

type speechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Narrate returns the spoken text as base64 (standard encoding) MPEG audio.
func (n *Narrator) Narrate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ai.NewValidationError("Text is required for audio generation")
	}
	if n.apiKey == "" {
		return "", ai.NewConfigurationError(NotConfiguredMessage)
	}
	if err := ai.ValidateEndpoint(n.baseURL); err != nil {
		return "", err
	}
	endpoint := strings.TrimSuffix(n.baseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(n.voiceID)

	body, err := json.Marshal(speechRequest{
		Text:    text,
		ModelID: n.modelID,
		VoiceSettings: voiceSettings{
			Stability:       stability,
			SimilarityBoost: similarityBoost,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal speech request: %w", err)
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create speech request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", n.apiKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return "", ai.TransportError(ctx, n.modelID, fmt.Errorf("send speech request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", ai.TransportError(ctx, n.modelID, fmt.Errorf("read speech response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("text-to-speech failed",
			"voice", n.voiceID,
			"model", n.modelID,
			"status", resp.StatusCode,
			"body", string(audio),
		)
		e := ai.NewStatusError(n.modelID, resp.StatusCode, string(audio))
		e.Message = upstreamMessage(resp.StatusCode, audio)
		e.Passthrough = true
		return "", e
	}
	if len(audio) == 0 {
		return "", &ai.Error{Kind: ai.KindMalformedResponse, Model: n.modelID, StatusCode: resp.StatusCode, Message: "empty audio response"}
	}

	return base64.StdEncoding.EncodeToString(audio), nil
}

// upstreamMessage picks the user-facing message for a failed speech call:
// detail.message from a JSON body, the raw body when it is not JSON, and
// otherwise a generic message carrying the status.
func upstreamMessage(status int, body []byte) string {
	fallback := fmt.Sprintf("Audio generation failed: %d", status)

	var parsed struct {
		Detail struct {
			Message string `json:"message"`
		} `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			if raw := string(body); strings.TrimSpace(raw) != "" {
				return raw
			}
		}
		return fallback
	}
	if parsed.Detail.Message != "" {
		return parsed.Detail.Message
	}
	return fallback
}
