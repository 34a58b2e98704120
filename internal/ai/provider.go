package ai

import (
	"context"
	"errors"
	"strings"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is a chat-completion backend.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

const systemPrompt = "You are a helpful assistant. Keep answers concise."

var ErrEmptyResponse = errors.New("ai: empty response")

// Generate answers a single prompt with no conversation context.
func Generate(ctx context.Context, p Provider, prompt string) (string, error) {
	reply, err := p.Chat(ctx, []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", ErrEmptyResponse
	}
	return reply, nil
}

// ProviderFunc adapts a plain function to Provider.
type ProviderFunc func(ctx context.Context, messages []Message) (string, error)

func (f ProviderFunc) Chat(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}
