package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const requestTimeout = 60 * time.Second

// statusError carries the HTTP status of a rejected API call so the
// retry logic can tell server faults from client rejections.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("API error (HTTP %d): %s", e.Code, body)
}

// NewBackend builds the backend for a service name. Supported services
// are "ollama" and "openai"; any OpenAI-compatible endpoint works with
// the latter. An empty service or "none" returns nil (AI disabled).
func NewBackend(service, baseURL, apiKey, model string, temperature float64, maxTokens int) (Backend, error) {
	client := &http.Client{Timeout: requestTimeout}
	switch service {
	case "", "none":
		return nil, nil
	case "ollama":
		b := &ollamaBackend{baseURL: strings.TrimRight(baseURL, "/"), model: model, client: client}
		b.probe()
		return b, nil
	case "openai":
		return &openaiBackend{
			baseURL:     strings.TrimRight(baseURL, "/"),
			apiKey:      apiKey,
			model:       model,
			temperature: temperature,
			maxTokens:   maxTokens,
			client:      client,
		}, nil
	default:
		return nil, fmt.Errorf("unknown AI service %q", service)
	}
}

// ollamaBackend calls the Ollama native generate API.
type ollamaBackend struct {
	baseURL string
	model   string
	client  *http.Client
}

func (b *ollamaBackend) Name() string { return "ollama" }

// probe checks that the Ollama server responds. Failure is only logged:
// the server may come up later, and every call degrades to fallback.
func (b *ollamaBackend) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/tags", nil)
	if err != nil {
		return
	}
	resp, err := b.client.Do(req)
	if err != nil {
		log.Printf("[Enrich] Ollama server not reachable at %s: %v", b.baseURL, err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Printf("[Enrich] Ollama server at %s returned HTTP %d", b.baseURL, resp.StatusCode)
	}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func (b *ollamaBackend) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaRequest{Model: b.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	respBody, err := postJSON(ctx, b.client, b.baseURL+"/api/generate", "", body)
	if err != nil {
		return "", err
	}
	var result ollamaResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Response, nil
}

// openaiBackend calls an OpenAI-compatible Chat Completion API.
type openaiBackend struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

func (b *openaiBackend) Name() string { return "openai" }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (b *openaiBackend) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: b.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a presentation content analyst who converts slides into structured knowledge points."},
			{Role: "user", Content: prompt},
		},
		Temperature: b.temperature,
		MaxTokens:   b.maxTokens,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	respBody, err := postJSON(ctx, b.client, b.baseURL+"/chat/completions", b.apiKey, body)
	if err != nil {
		return "", err
	}
	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("API returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}

// postJSON sends a JSON POST and returns the body on HTTP 200, or a
// *statusError on any other status.
func postJSON(ctx context.Context, client *http.Client, url, apiKey string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{Code: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
