// Package ollama implements the embedding and language-model collaborator
// interfaces against a local Ollama server's HTTP API. All calls share one
// token-bucket limiter so a burst of passage embeddings cannot starve
// query-time calls of the backend.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/inceptlabs/inception-engine/engine/domain"
	"github.com/inceptlabs/inception-engine/engine/llm"
)

// Options configures the client.
type Options struct {
	BaseURL    string
	EmbedModel string
	ChatModel  string
	// Dimensions must match the embed model's output width.
	Dimensions int
	// RequestsPerSecond and Burst bound calls to the backend.
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// DefaultOptions target a local Ollama with nomic-embed-text.
func DefaultOptions() Options {
	return Options{
		BaseURL:           "http://localhost:11434",
		EmbedModel:        "nomic-embed-text",
		ChatModel:         "llama3.2",
		Dimensions:        768,
		RequestsPerSecond: 10,
		Burst:             20,
		Timeout:           30 * time.Second,
	}
}

// Client talks to one Ollama server.
type Client struct {
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a Client, filling zero options with defaults.
func New(opts Options) *Client {
	d := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = d.BaseURL
	}
	if opts.EmbedModel == "" {
		opts.EmbedModel = d.EmbedModel
	}
	if opts.ChatModel == "" {
		opts.ChatModel = d.ChatModel
	}
	if opts.Dimensions <= 0 {
		opts.Dimensions = d.Dimensions
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = d.RequestsPerSecond
	}
	if opts.Burst <= 0 {
		opts.Burst = d.Burst
	}
	if opts.Timeout <= 0 {
		opts.Timeout = d.Timeout
	}
	return &Client{
		opts:    opts,
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
	}
}

// Dimensions implements embed.Embedder.
func (c *Client) Dimensions() int { return c.opts.Dimensions }

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed implements embed.Embedder.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	if err := c.post(ctx, "/api/embeddings", embedRequest{Model: c.opts.EmbedModel, Prompt: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) != c.opts.Dimensions {
		return nil, fmt.Errorf("ollama: model returned %d dimensions, want %d", len(resp.Embedding), c.opts.Dimensions)
	}
	out := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Format string `json:"format,omitempty"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

const understandPrompt = `Extract search terms and the question type from this insurance/policy question.
Respond with JSON only: {"terms": ["..."], "intent": "general"|"coverage-check"|"limit-check"}.

Question: %s`

type understanding struct {
	Terms  []string `json:"terms"`
	Intent string   `json:"intent"`
}

// Understand implements llm.Understander.
func (c *Client) Understand(ctx context.Context, text string) (llm.Understanding, error) {
	var resp generateResponse
	req := generateRequest{
		Model:  c.opts.ChatModel,
		Prompt: fmt.Sprintf(understandPrompt, text),
		Format: "json",
	}
	if err := c.post(ctx, "/api/generate", req, &resp); err != nil {
		return llm.Understanding{}, err
	}

	var u understanding
	if err := json.Unmarshal([]byte(resp.Response), &u); err != nil {
		return llm.Understanding{}, fmt.Errorf("ollama: malformed understanding: %w", err)
	}
	return llm.Understanding{Terms: u.Terms, Intent: domain.Intent(u.Intent)}, nil
}

const summarizePrompt = `Write one or two sentences summarizing this decision about the question below.
Question: %s
Decision: %s
Relevant clauses:
%s

Summary:`

// Summarize implements llm.Summarizer.
func (c *Client) Summarize(ctx context.Context, question string, label domain.DecisionLabel, clauses []string) (string, error) {
	var resp generateResponse
	req := generateRequest{
		Model:  c.opts.ChatModel,
		Prompt: fmt.Sprintf(summarizePrompt, question, label, "- "+strings.Join(clauses, "\n- ")),
	}
	if err := c.post(ctx, "/api/generate", req, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Response), nil
}

// post sends one rate-limited JSON request.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ollama %s: decode: %w", path, err)
	}
	return nil
}
