package geminiservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// --- Gemini API Configuration ---
const (
	DefaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel          = "gemini-2.5-flash"
	DefaultTimeout        = 30 * time.Second
	DefaultInitialBackoff = 1 * time.Second
	structuredMimeType    = "application/json"
	maxErrorBodyBytes     = 4096
)

var (
	// ErrNotConfigured is returned when no API key is available.
	ErrNotConfigured = errors.New("server is not configured for AI recommendations")
	// ErrEmptyResponse is returned when Gemini answers without any candidate text.
	ErrEmptyResponse = errors.New("no content found in Gemini response")
)

// --- Structs for Gemini API Request/Response ---

type GeminiPayload struct {
	Contents          []GeminiContent   `json:"contents"`
	SystemInstruction *GeminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

type GeminiPart struct {
	Text string `json:"text,omitempty"`
}

type GenerationConfig struct {
	ResponseMimeType string  `json:"responseMimeType"`
	ResponseSchema   *Schema `json:"response_schema,omitempty"`
}

type GeminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// APIError is a non-200 answer from the Gemini endpoint.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned non-200 status: %s, Body: %s", e.Status, e.Body)
}

// Retryable reports whether another attempt could succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Config controls how the client reaches Gemini.
//
// MaxAttempts defaults to 1. Values above 1 enable exponential backoff
// starting at InitialBackoff.
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	HTTPClient     *http.Client
}

// Client calls the generateContent endpoint with a structured output schema.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient fills in defaults for any zero Config field.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, http: httpClient}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

func (c *Client) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.BaseURL, c.cfg.Model, c.cfg.APIKey)
}

// GenerateStructured sends the system and user prompt together with the
// response schema and returns the raw JSON text of the first candidate.
func (c *Client) GenerateStructured(ctx context.Context, systemPrompt, userPrompt string, schema *Schema) (string, error) {
	log := zerolog.Ctx(ctx)

	if c.cfg.APIKey == "" {
		log.Error().Msg("GEMINI_API_KEY is not set")
		return "", ErrNotConfigured
	}

	payload := GeminiPayload{
		SystemInstruction: &GeminiContent{
			Parts: []GeminiPart{{Text: systemPrompt}},
		},
		Contents: []GeminiContent{
			{Role: "user", Parts: []GeminiPart{{Text: userPrompt}}},
		},
		GenerationConfig: &GenerationConfig{
			ResponseMimeType: structuredMimeType,
			ResponseSchema:   schema,
		},
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	var lastErr error
	for i := 0; i < c.cfg.MaxAttempts; i++ {
		if i > 0 {
			backoff := c.cfg.InitialBackoff * time.Duration(math.Pow(2, float64(i-1)))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		log.Info().Int("attempt", i+1).Str("model", c.cfg.Model).Msg("Calling Gemini API")

		text, err := c.call(ctx, payloadBytes)
		if err == nil {
			return text, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", i+1).Msg("Gemini call failed")

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			break
		}
		if errors.Is(err, ErrEmptyResponse) {
			break
		}
	}

	if c.cfg.MaxAttempts == 1 {
		return "", lastErr
	}
	return "", fmt.Errorf("failed to call Gemini API after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
}

func (c *Client) call(ctx context.Context, payload []byte) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}

	var geminiResp GeminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(geminiResp.Candidates) > 0 && len(geminiResp.Candidates[0].Content.Parts) > 0 {
		return geminiResp.Candidates[0].Content.Parts[0].Text, nil
	}
	return "", ErrEmptyResponse
}
