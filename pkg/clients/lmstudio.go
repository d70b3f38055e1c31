// Package clients holds model-endpoint client factories.
package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrUnavailable marks completion-endpoint connectivity failures.
var ErrUnavailable = errors.New("language model endpoint unavailable")

// LMStudioClient talks to an LM Studio / Jan OpenAI-compatible server for
// text completion. The endpoint is treated as opaque and possibly down.
type LMStudioClient struct {
	baseURL      string
	apiKey       string
	defaultModel string
	timeout      time.Duration
	httpClient   *http.Client

	mu   sync.Mutex
	llms map[string]*openai.LLM // per-model client cache
}

// NewLMStudioClient creates a client for the configured endpoint.
func NewLMStudioClient(baseURL, apiKey, defaultModel string, timeoutSeconds int) *LMStudioClient {
	timeout := time.Duration(timeoutSeconds) * time.Second
	return &LMStudioClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		defaultModel: defaultModel,
		timeout:      timeout,
		httpClient:   &http.Client{Timeout: timeout},
		llms:         make(map[string]*openai.LLM),
	}
}

func (c *LMStudioClient) forModel(model string) (*openai.LLM, error) {
	if model == "" {
		model = c.defaultModel
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if llm, ok := c.llms[model]; ok {
		return llm, nil
	}

	llm, err := openai.New(
		openai.WithBaseURL(c.baseURL),
		openai.WithToken(c.apiKey),
		openai.WithModel(model),
		openai.WithHTTPClient(c.httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion client for %s: %w", model, err)
	}
	c.llms[model] = llm
	return llm, nil
}

// Generate runs a single-prompt completion against the given model (the
// configured default when model is empty).
func (c *LMStudioClient) Generate(ctx context.Context, model, prompt string, temperature float64, maxTokens int) (string, error) {
	llm, err := c.forModel(model)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := llms.GenerateFromSinglePrompt(ctx, llm, prompt,
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return strings.TrimSpace(out), nil
}

// ListModels queries the endpoint's /models route and returns the loaded
// model identifiers. Doubles as the health check.
func (c *LMStudioClient) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create models request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: models endpoint returned %s", ErrUnavailable, resp.Status)
	}

	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode models response: %w", err)
	}

	models := make([]string, 0, len(payload.Data))
	for _, m := range payload.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

// DefaultModel returns the configured default completion model.
func (c *LMStudioClient) DefaultModel() string {
	return c.defaultModel
}
