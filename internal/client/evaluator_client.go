package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pagecraft/api/internal/config"
	"github.com/pagecraft/api/internal/model"
)

// QualityEvaluator defines the interface to the external rule-catalog
// service scoring brief adherence. The rule internals are opaque here.
type QualityEvaluator interface {
	Evaluate(ctx context.Context, req *EvaluateRequest) (*EvaluateResponse, error)
	IsConfigured() bool
}

// EvaluateRequest carries the assembled document and its brief.
type EvaluateRequest struct {
	Document string      `json:"document"`
	Brief    model.Brief `json:"brief"`
}

// EvaluateResponse is the evaluator's compliance sub-score and findings.
type EvaluateResponse struct {
	Score    int             `json:"score"` // 0-100
	Findings []model.Finding `json:"findings,omitempty"`
}

// EvaluatorClient implements QualityEvaluator for the evaluator microservice.
type EvaluatorClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewEvaluatorClient creates a client for the quality-evaluator service.
func NewEvaluatorClient(cfg *config.EvaluatorConfig) *EvaluatorClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if cfg.Timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &EvaluatorClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.ServiceURL,
	}
}

// Evaluate posts the document for compliance scoring.
func (c *EvaluatorClient) Evaluate(ctx context.Context, req *EvaluateRequest) (*EvaluateResponse, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/evaluate", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("evaluator request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("evaluator error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var out EvaluateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &out, nil
}

// IsConfigured returns true if the client has a service URL
func (c *EvaluatorClient) IsConfigured() bool {
	return c != nil && c.baseURL != ""
}
