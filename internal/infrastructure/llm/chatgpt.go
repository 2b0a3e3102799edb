package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"NewsIntent/internal/config"
	"NewsIntent/internal/ports"
)

// ChatGPTClient ranks intent labels through an OpenAI-compatible chat completions API.
type ChatGPTClient struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.ZeroShotModel = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.ChatGPTConfig, httpClient *http.Client) *ChatGPTClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ChatGPTClient{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient:   httpClient,
	}
}

type rankingReply struct {
	Ranking []ports.LabelScore `json:"ranking"`
}

// Rank asks the model to score every candidate label for text.
func (c *ChatGPTClient) Rank(ctx context.Context, text string, labels []string) ([]ports.LabelScore, error) {
	if c == nil {
		return nil, fmt.Errorf("chatgpt client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return nil, fmt.Errorf("chatgpt client misconfigured")
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no candidate labels")
	}

	userContent, err := json.Marshal(map[string]any{
		"text":             text,
		"candidate_labels": labels,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chatgpt input: %w", err)
	}

	body, err := json.Marshal(map[string]any{
		"model":           c.model,
		"temperature":     0,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []map[string]string{
			{"role": "system", "content": safePrompt(c.systemPrompt)},
			{"role": "user", "content": string(userContent)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rank labels: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("decode chatgpt response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("chatgpt returned no choices")
	}

	var reply rankingReply
	if err := json.Unmarshal([]byte(stripFence(completion.Choices[0].Message.Content)), &reply); err != nil {
		return nil, fmt.Errorf("decode ranking: %w", err)
	}
	return reply.Ranking, nil
}

// Close drops idle connections held by the client.
func (c *ChatGPTClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func stripFence(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You classify news articles about a company. The user sends JSON with \"text\" and \"candidate_labels\". " +
			"Reply with JSON of the form {\"ranking\":[{\"label\":\"...\",\"score\":0.0}]} that scores every candidate label " +
			"between 0 and 1, highest first, using only the given labels."
	}
	return prompt
}
