// Package ocr calls the remote OCR service that turns images into text.
package ocr

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

// ExternalServiceError reports a non-200 answer from the OCR service.
type ExternalServiceError struct {
	Status int
	Body   string
}

func (e *ExternalServiceError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("ocr service returned status %d", e.Status)
	}
	return fmt.Sprintf("ocr service returned status %d: %s", e.Status, e.Body)
}

// IsExternalService reports whether err is an ExternalServiceError.
func IsExternalService(err error) bool {
	var e *ExternalServiceError
	return errors.As(err, &e)
}

// Client posts raw image bytes to {BaseURL}/predict.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the service at baseURL. timeout bounds each call;
// zero means 60s.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: timeout}}
}

type predictResponse struct {
	Prediction string `json:"prediction"`
}

// Predict returns the text recognized in image.
func (c *Client) Predict(ctx context.Context, image []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(image))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &ExternalServiceError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ocr response: %w", err)
	}
	return out.Prediction, nil
}
