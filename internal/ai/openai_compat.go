package ai

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

// CompatProvider talks to any OpenAI-style /chat/completions endpoint
// (OpenAI itself, OpenRouter).
type CompatProvider struct {
	Name        string
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	// OpenRouter attribution headers
	SiteURL string
	AppName string
	Client  *http.Client
}

func NewOpenRouterProvider(baseURL, apiKey, model, siteURL, appName string, timeout time.Duration) *CompatProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &CompatProvider{
		Name:    "openrouter",
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		SiteURL: siteURL,
		AppName: appName,
		Client:  &http.Client{Timeout: orDefaultTimeout(timeout)},
	}
}

func NewOpenAIProvider(baseURL, apiKey, model string, timeout time.Duration) *CompatProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	return &CompatProvider{
		Name:        "openai",
		BaseURL:     baseURL,
		APIKey:      apiKey,
		Model:       model,
		MaxTokens:   500,
		Temperature: 0.7,
		Client:      &http.Client{Timeout: orDefaultTimeout(timeout)},
	}
}

func orDefaultTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 90 * time.Second
	}
	return d
}

type compatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type compatChatReq struct {
	Model       string      `json:"model"`
	Messages    []compatMsg `json:"messages"`
	Stream      bool        `json:"stream"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
	Temperature float64     `json:"temperature,omitempty"`
}

type compatChatResp struct {
	Choices []struct {
		Message compatMsg `json:"message"`
		Text    string    `json:"text"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *CompatProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.Client == nil {
		return "", fmt.Errorf("%s: http client is nil", p.Name)
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return "", fmt.Errorf("%s: api key is required", p.Name)
	}
	model := strings.TrimSpace(p.Model)
	if model == "" {
		return "", fmt.Errorf("%s: model is required", p.Name)
	}

	reqBody := compatChatReq{
		Model:       model,
		Stream:      false,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
		Messages:    make([]compatMsg, 0, len(messages)),
	}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, compatMsg{Role: m.Role, Content: m.Content})
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	if p.SiteURL != "" {
		req.Header.Set("HTTP-Referer", p.SiteURL)
	}
	if p.AppName != "" {
		req.Header.Set("X-Title", p.AppName)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("%s: %s", p.Name, msg)
	}

	var decoded compatChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("%s: empty response", p.Name)
	}
	if c := decoded.Choices[0].Message.Content; c != "" {
		return c, nil
	}
	return decoded.Choices[0].Text, nil
}
