// Package narrative turns decisions into free-text justification via an
// LLM. The service is optional: failure or absence never blocks decision
// generation, callers fall back to heuristic reasoning.
package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"agent-trader/internal/store"
	"agent-trader/internal/trace"
	"agent-trader/internal/types"
)

// OpenAINarrator calls the OpenAI chat completions API.
type OpenAINarrator struct {
	cfg *store.Config
}

func NewOpenAINarrator(cfg *store.Config) *OpenAINarrator {
	return &OpenAINarrator{cfg: cfg}
}

func (n *OpenAINarrator) Narrate(ctx context.Context, personality, symbol string, action types.Action,
	market types.MarketSignal, news types.NewsSignal) (string, error) {

	ctx, span := trace.StartSpan(ctx, "openai-narrate")
	defer span.End()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return "", errors.New("OPENAI_API_KEY missing")
	}

	state, _ := json.Marshal(map[string]any{
		"symbol": symbol,
		"action": action,
		"market": market,
		"news":   news,
	})
	prompt := fmt.Sprintf(
		"You are a trading agent with this personality: %s\nExplain in two sentences, in character, why you chose this action.\nState:%s",
		personality, string(state))

	system := n.cfg.Narrative.System
	if system == "" {
		system = "You write short first-person trade justifications. No disclaimers."
	}

	body := map[string]any{
		"model":       n.cfg.Narrative.Model,
		"messages":    []map[string]string{{"role": "system", "content": system}, {"role": "user", "content": prompt}},
		"temperature": n.cfg.Narrative.Temperature,
		"max_tokens":  n.cfg.Narrative.MaxTokens,
	}
	bb, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.openai.com/v1/chat/completions", bytes.NewReader(bb))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("openai http %d", resp.StatusCode)
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Choices) == 0 {
		return "", errors.New("no choices")
	}

	return strings.TrimSpace(r.Choices[0].Message.Content), nil
}
