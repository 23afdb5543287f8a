// Package ai holds the clients for the optional external analysis services:
// the text-classification LLM endpoint and the OCR engine. Both degrade to
// errors the engine substitutes with heuristics; neither is load-bearing for
// monitoring availability.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
)

// Config holds the classification endpoint configuration. An Ollama
// compatible chat API is assumed; Token enables bearer auth for hosted
// deployments.
type Config struct {
	BaseURL  string
	Model    string
	Token    string
	Timeout  time.Duration
	Attempts int
}

// Client calls the text-classification service. Calls are rate-protected by
// a circuit breaker so a dead endpoint fails fast instead of stalling every
// monitoring decision for the full timeout.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "text-classifier",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		cb:         cb,
	}
}

// Complete sends a single-turn prompt and returns the raw model reply.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		var content string

		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(uint(c.cfg.Attempts)),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
			defer cancel()

			var callErr error
			content, callErr = c.chat(tCtx, prompt)
			return callErr
		})

		return content, retryErr
	})
	if err != nil {
		return "", err
	}

	return result.(string), nil
}

func (c *Client) chat(ctx context.Context, prompt string) (string, error) {
	payload := map[string]interface{}{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"stream": false,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/chat", bytes.NewReader(payloadBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("classifier API error (%d): %s", resp.StatusCode, string(body))
	}

	var reply struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("classifier decode: %w", err)
	}

	return reply.Message.Content, nil
}
