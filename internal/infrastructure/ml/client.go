package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"NewsIntent/internal/ports"
)

// Client talks to a zero-shot classification service speaking the
// Hugging Face inference protocol.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.ZeroShotModel = (*Client)(nil)

// NewClient creates a reusable HTTP client. A nil httpClient gets one without a timeout;
// callers bound each call through the context.
func NewClient(endpoint, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     httpClient,
	}
}

type rankRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters rankParameters `json:"parameters"`
}

type rankParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
	MultiLabel      bool     `json:"multi_label"`
}

// Rank returns the candidate labels scored for text, best first as reported by the service.
func (c *Client) Rank(ctx context.Context, text string, labels []string) ([]ports.LabelScore, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("no candidate labels")
	}

	payload := rankRequest{
		Inputs:     text,
		Parameters: rankParameters{CandidateLabels: labels},
	}

	var raw json.RawMessage
	if err := c.post(ctx, "", payload, &raw); err != nil {
		return nil, err
	}

	return decodeRanking(raw)
}

// Close drops idle connections held by the client.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// decodeRanking accepts both the parallel-array object ({labels, scores}) and
// the list-of-pairs form ([{label, score}]) served by newer inference routers.
func decodeRanking(raw json.RawMessage) ([]ports.LabelScore, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty ranking")
	}

	if trimmed[0] == '[' {
		var pairs []ports.LabelScore
		if err := json.Unmarshal(trimmed, &pairs); err != nil {
			return nil, fmt.Errorf("decode ranking list: %w", err)
		}
		return pairs, nil
	}

	var resp struct {
		Labels []string  `json:"labels"`
		Scores []float64 `json:"scores"`
		Error  string    `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, fmt.Errorf("decode ranking: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("inference error: %s", resp.Error)
	}
	if len(resp.Labels) != len(resp.Scores) {
		return nil, fmt.Errorf("ranking has %d labels and %d scores", len(resp.Labels), len(resp.Scores))
	}

	ranking := make([]ports.LabelScore, len(resp.Labels))
	for i := range resp.Labels {
		ranking[i] = ports.LabelScore{Label: resp.Labels[i], Score: resp.Scores[i]}
	}
	return ranking, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
