// Package client calls the detection worker over HTTP.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/simple-detection-pipeline/pkg/detection"
)

// DefaultTimeout bounds a single predict call
const DefaultTimeout = 60 * time.Second

// Client is an HTTP client for the detection worker
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new worker client with the default timeout
func New(baseURL string) *Client {
	return NewWithTimeout(baseURL, DefaultTimeout)
}

// NewWithTimeout creates a new worker client whose calls give up after timeout
func NewWithTimeout(baseURL string, timeout time.Duration) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

// NewWithHTTPClient creates a new worker client with a custom HTTP client
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Predict asks the worker to run detection on the object stored under imgName
func (c *Client) Predict(ctx context.Context, imgName string) (*detection.PredictResponse, error) {
	u := fmt.Sprintf("%s/predict?imgName=%s", c.baseURL, url.QueryEscape(imgName))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var resp detection.PredictResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPrediction fetches a stored summary by prediction id
func (c *Client) GetPrediction(ctx context.Context, predictionID string) (*detection.PredictResponse, error) {
	u := fmt.Sprintf("%s/predictions/%s", c.baseURL, url.PathEscape(predictionID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var resp detection.PredictResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(httpReq *http.Request, out any) error {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", detection.ErrInferenceTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &detection.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %w", detection.ErrInferenceTransport, err)
	}
	return nil
}
