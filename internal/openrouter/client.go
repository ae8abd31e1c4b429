// Package openrouter implements the council.ModelClient capability against
// an OpenRouter-compatible chat completions API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/themacmarketer/llm-council/internal/council"
)

// maxErrorBodySize bounds how much of an error response is kept for logs.
const maxErrorBodySize = 4096

// Client issues chat-completion calls to one API endpoint. Safe for
// concurrent use; all requests share one underlying http.Client.
type Client struct {
	apiURL string
	apiKey string
	http   *http.Client
	log    zerolog.Logger
}

// NewClient constructs a Client. The http.Client carries no timeout of its
// own: every call's deadline comes from the per-invocation budget, so a
// caller's cancellation always wins.
func NewClient(apiURL, apiKey string, logger zerolog.Logger) *Client {
	return &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		http:   &http.Client{},
		log:    logger.With().Str("component", "openrouter").Logger(),
	}
}

// Invoke sends one prompt to the named model and converts every possible
// failure into an unsuccessful council.ModelResponse. It never returns an
// error past this boundary.
func (c *Client) Invoke(ctx context.Context, model, prompt string, timeout time.Duration) council.ModelResponse {
	start := time.Now()

	content, kind, err := c.complete(ctx, model, prompt, timeout)
	if err != nil {
		c.log.Warn().Err(err).Str("model", model).Str("error_kind", string(kind)).
			Dur("elapsed", time.Since(start)).Msg("model invocation failed")
		return council.ModelResponse{Model: model, Succeeded: false, ErrorKind: kind}
	}

	c.log.Debug().Str("model", model).Dur("elapsed", time.Since(start)).Msg("model invocation succeeded")
	return council.ModelResponse{Model: model, Content: content, Succeeded: true}
}

func (c *Client) complete(ctx context.Context, model, prompt string, timeout time.Duration) (string, council.ErrorKind, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload := chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", council.ErrKindTransport, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", council.ErrKindTransport, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", council.ErrKindTimeout, fmt.Errorf("request timed out: %w", err)
		}
		return "", council.ErrKindTransport, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return "", council.ErrKindStatus, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(errBody))
	}

	var apiResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", council.ErrKindParse, fmt.Errorf("decode response: %w", err)
	}

	if len(apiResp.Choices) == 0 {
		return "", council.ErrKindEmpty, fmt.Errorf("no choices in response")
	}
	content := apiResp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", council.ErrKindEmpty, fmt.Errorf("empty content in response")
	}

	return content, "", nil
}

// isTimeout distinguishes deadline expiry from other transport failures.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// OpenRouter API types (OpenAI-compatible).

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
