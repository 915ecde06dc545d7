package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"modmixx/internal/config"
)

// ToxicityScorer scores text toxicity in [0.0, 1.0]. Unlike the image scanner
// it propagates errors: the caller owns the fail-open policy.
type ToxicityScorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// PerspectiveClient is a ToxicityScorer backed by the Perspective API
// (commentanalyzer.googleapis.com).
type PerspectiveClient struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
}

// NewPerspectiveClient builds a client from configuration.
func NewPerspectiveClient(cfg *config.Config) *PerspectiveClient {
	return &PerspectiveClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.ModerationTimeout()) * time.Second,
		},
		apiURL: cfg.PerspectiveAPIURL,
		apiKey: cfg.PerspectiveAPIKey,
	}
}

type analyzeRequest struct {
	Comment             analyzeComment               `json:"comment"`
	Languages           []string                     `json:"languages"`
	RequestedAttributes map[string]map[string]string `json:"requestedAttributes"`
}

type analyzeComment struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	AttributeScores map[string]struct {
		SummaryScore struct {
			Value float64 `json:"value"`
		} `json:"summaryScore"`
	} `json:"attributeScores"`
}

// Score requests a TOXICITY score for text. Transport failures, non-2xx
// responses and malformed bodies are all returned as errors.
func (c *PerspectiveClient) Score(ctx context.Context, text string) (float64, error) {
	payload := analyzeRequest{
		Comment:             analyzeComment{Text: text},
		Languages:           []string{"en"},
		RequestedAttributes: map[string]map[string]string{"TOXICITY": {}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode toxicity request: %w", err)
	}

	endpoint := c.apiURL
	if c.apiKey != "" {
		endpoint = fmt.Sprintf("%s?key=%s", c.apiURL, url.QueryEscape(c.apiKey))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build toxicity request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("toxicity request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("toxicity service returned status %d", resp.StatusCode)
	}

	var parsed analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("failed to decode toxicity response: %w", err)
	}

	attr, ok := parsed.AttributeScores["TOXICITY"]
	if !ok {
		return 0, fmt.Errorf("toxicity response missing TOXICITY attribute")
	}
	return attr.SummaryScore.Value, nil
}
