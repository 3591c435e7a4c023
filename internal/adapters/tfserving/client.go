// Package tfserving talks to a TensorFlow Serving compatible REST endpoint.
package tfserving

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client is a REST client for /v1/models/{name} endpoints
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new model serving client
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type predictRequest struct {
	SignatureName string `json:"signature_name,omitempty"`
	Instances     any    `json:"instances"`
}

type predictResponse struct {
	Predictions []json.RawMessage `json:"predictions"`
	Error       string            `json:"error"`
}

type statusResponse struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
		Status  struct {
			ErrorCode    string `json:"error_code"`
			ErrorMessage string `json:"error_message"`
		} `json:"status"`
	} `json:"model_version_status"`
}

// Predict runs the named model signature and returns each prediction flattened to a
// vector, one per instance
func (c *Client) Predict(ctx context.Context, model, signature string, instances any) ([][]float64, error) {
	body, err := json.Marshal(predictRequest{SignatureName: signature, Instances: instances})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal predict request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/models/%s:predict", c.baseURL, url.PathEscape(model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call model server: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read model server response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("model server returned %d: %s", resp.StatusCode, truncate(raw, 512))
	}

	var pr predictResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return nil, fmt.Errorf("failed to decode model server response: %w", err)
	}
	if pr.Error != "" {
		return nil, fmt.Errorf("model server error: %s", pr.Error)
	}

	out := make([][]float64, len(pr.Predictions))
	for i, p := range pr.Predictions {
		var v any
		if err := json.Unmarshal(p, &v); err != nil {
			return nil, fmt.Errorf("failed to decode prediction %d: %w", i, err)
		}
		out[i], err = flatten(v, nil)
		if err != nil {
			return nil, fmt.Errorf("prediction %d: %w", i, err)
		}
	}

	c.logger.Debug("Model server prediction",
		zap.String("model", model),
		zap.String("signature", signature),
		zap.Int("predictions", len(out)),
		zap.Duration("duration", time.Since(start)))
	return out, nil
}

// Status returns nil when at least one version of the model is AVAILABLE
func (c *Client) Status(ctx context.Context, model string) error {
	endpoint := fmt.Sprintf("%s/v1/models/%s", c.baseURL, url.PathEscape(model))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach model server: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read status response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("model server returned %d for %s: %s", resp.StatusCode, model, truncate(raw, 512))
	}

	var sr statusResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return fmt.Errorf("failed to decode status response: %w", err)
	}
	for _, v := range sr.ModelVersionStatus {
		if v.State == "AVAILABLE" {
			return nil
		}
	}
	if len(sr.ModelVersionStatus) > 0 {
		s := sr.ModelVersionStatus[0]
		return fmt.Errorf("model %s version %s is %s: %s", model, s.Version, s.State, s.Status.ErrorMessage)
	}
	return fmt.Errorf("model %s has no versions", model)
}

func flatten(v any, out []float64) ([]float64, error) {
	switch t := v.(type) {
	case float64:
		return append(out, t), nil
	case []any:
		var err error
		for _, e := range t {
			if out, err = flatten(e, out); err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected value of type %T in prediction", v)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
