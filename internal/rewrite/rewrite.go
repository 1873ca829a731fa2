// Package rewrite rephrases draft email bodies through an
// OpenAI-compatible chat completions endpoint while keeping the
// body's formatting markers and {{token}} placeholders intact.
package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lettermill/lettermill/internal/config"
	"go.uber.org/zap"
)

const (
	ToneProfessional = "professional"
	ToneFriendly     = "friendly"

	requestTimeout = 30 * time.Second
	temperature    = 0.4
)

var (
	ErrNotConfigured = errors.New("rewrite_not_configured")
	ErrUpstream      = errors.New("rewrite_upstream_failed")
)

type Service interface {
	// Rewrite returns the body rephrased in the requested tone. Tone is
	// "professional", "friendly", or free text describing a custom style.
	Rewrite(ctx context.Context, original, tone string) (string, error)
}

type Client struct {
	log      *zap.Logger
	http     *http.Client
	endpoint string
	apiKey   string
	model    string
}

func NewClient(cfg config.Config, log *zap.Logger) *Client {
	return &Client{
		log:      log.Named("rewrite"),
		http:     &http.Client{Timeout: requestTimeout},
		endpoint: strings.TrimRight(cfg.Rewrite.Endpoint, "/"),
		apiKey:   cfg.Rewrite.APIKey,
		model:    cfg.Rewrite.Model,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) Rewrite(ctx context.Context, original, tone string) (string, error) {
	if c.apiKey == "" || c.endpoint == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: buildPrompt(original, tone)},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("rewrite upstream rejected request", zap.Int("status", resp.StatusCode))
		return "", fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(parsed.Choices) == 0 {
		// Empty choices means the upstream produced nothing usable.
		// Return an empty rewrite and let the caller decide.
		return "", nil
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func buildPrompt(original, tone string) string {
	var style string
	switch {
	case strings.TrimSpace(tone) == "" || strings.EqualFold(tone, ToneProfessional):
		style = "Rewrite this email in a polished, professional tone."
	case strings.EqualFold(tone, ToneFriendly):
		style = "Rewrite this email in a friendly, positive, approachable tone."
	default:
		style = "Rewrite this email using the following writing style: " + tone + "."
	}

	return style +
		"\n\nFORMAT & PLACEHOLDER RULES:\n" +
		"1) The email text uses a simple markdown-like syntax for formatting:\n" +
		"   - **text** = bold\n" +
		"   - _text_ or *text* = italic\n" +
		"   - ~text~ = underlined\n" +
		"2) You MUST preserve all existing formatting markers exactly:\n" +
		"   - If a span is wrapped in ** **, keep the ** markers in the same positions and only rewrite the text inside.\n" +
		"   - If a span is wrapped in _ _ (or * *), keep those markers and only rewrite the text inside.\n" +
		"   - If a span is wrapped in ~ ~, keep those markers and only rewrite the text inside.\n" +
		"   - Do NOT remove, add, move, or rearrange any **, _, *, or ~ markers.\n" +
		"   - Do NOT introduce new bold/italic/underline that was not formatted in the original.\n" +
		"3) The email also contains placeholders using double curly brackets, e.g. {{name}}, {{email}}, {{grade}}, {{company_name}}.\n" +
		"   - DO NOT modify, remove, rename, expand, reformat, translate, or touch any of these placeholders.\n" +
		"   - Keep ALL placeholders EXACTLY as they appear.\n" +
		"   - Do not add spaces inside them.\n" +
		"   - Do not invent new placeholders.\n" +
		"   - Do not refer to them explicitly in the rewritten text.\n" +
		"4) Return ONLY the rewritten email text, in the same markdown-style format.\n" +
		"   - Do NOT return HTML.\n" +
		"   - Do NOT add explanations, intros, quotes, or labels.\n\n" +
		"Email:\n" + original
}
