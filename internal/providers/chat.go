package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = "You are a research paper analysis assistant. Follow the requested output format exactly and stay grounded in the supplied material."

// chatClient is shared by every OpenAI-compatible backend.
type chatClient struct {
	name    string
	keyName string
	model   string
	client  *openai.Client
}

func newChatClient(name, keyName, apiKey, baseURL, model string) *chatClient {
	c := &chatClient{name: name, keyName: keyName, model: model}
	if apiKey == "" {
		return c
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	c.client = openai.NewClientWithConfig(cfg)
	return c
}

func (c *chatClient) info() ProviderInfo {
	return ProviderInfo{Name: c.name, Model: c.model, Key: c.keyName}
}

func (c *chatClient) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	if c.client == nil {
		return GenerateResponse{}, c.info(), fmt.Errorf("%s key missing for alias %q", c.name, c.keyName)
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: joinPrompt(req)},
		},
	})
	if err != nil {
		return GenerateResponse{}, c.info(), fmt.Errorf("%s generate request failed: %w", c.name, err)
	}
	if len(resp.Choices) == 0 {
		return GenerateResponse{}, c.info(), fmt.Errorf("%s returned empty choices", c.name)
	}
	return GenerateResponse{Text: resp.Choices[0].Message.Content}, c.info(), nil
}

func resolveKey(prefix, alias, fallbackEnv string) string {
	if alias != "" {
		if v := os.Getenv(prefix + sanitizeEnvToken(alias)); v != "" {
			return v
		}
	}
	return os.Getenv(fallbackEnv)
}

func envOr(k, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return fallback
}

func sanitizeEnvToken(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, ".", "_")
	s = strings.ReplaceAll(s, "/", "_")
	return s
}
