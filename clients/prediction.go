package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"kpiengine/models"
)

// RiskScorer is the opaque ML prediction collaborator. Its output is an
// annotation only and never feeds status classification.
type RiskScorer interface {
	Score(ctx context.Context, in models.RiskInput) (*models.RiskScore, error)
}

type httpRiskScorer struct {
	url    string
	client *http.Client
}

func NewHTTPRiskScorer(url string) RiskScorer {
	return &httpRiskScorer{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *httpRiskScorer) Score(ctx context.Context, in models.RiskInput) (*models.RiskScore, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("risk scorer returned %d", resp.StatusCode)
	}

	var score models.RiskScore
	if err := json.NewDecoder(resp.Body).Decode(&score); err != nil {
		return nil, err
	}
	return &score, nil
}
