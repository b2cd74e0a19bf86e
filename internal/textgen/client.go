// Package textgen は外部の文章生成サービス（{prompt} → {text}）のクライアント。
package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNotConfigured は TEXTGEN_URL が無いとき。
	ErrNotConfigured = errors.New("text generation is not configured")
	ErrUpstream      = errors.New("text generation upstream failed")
)

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Client struct {
	url    string
	apiKey string
	http   *http.Client
}

func NewClient(url, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{url: strings.TrimSpace(url), apiKey: apiKey, http: &http.Client{Timeout: timeout}}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Text string `json:"text"`
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.url == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(generateRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}
	return out.Text, nil
}
