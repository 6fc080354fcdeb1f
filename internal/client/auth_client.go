package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"presence-service/internal/metrics"
)

// AuthClient validates access tokens against auth-service.
type AuthClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

type tokenValidationRequest struct {
	Token string `json:"token"`
}

// TokenValidationResponse is the auth-service answer for /api/auth/validate.
type TokenValidationResponse struct {
	Valid   bool   `json:"valid"`
	UserID  string `json:"userId"`
	Message string `json:"message,omitempty"`
}

func NewAuthClient(baseURL string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *AuthClient {
	return &AuthClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: m,
	}
}

// ValidateToken returns the user id the token was issued to.
func (c *AuthClient) ValidateToken(ctx context.Context, token string) (uuid.UUID, error) {
	url := fmt.Sprintf("%s/api/auth/validate", c.baseURL)

	body, err := json.Marshal(tokenValidationRequest{Token: token})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.record(url, http.MethodPost, resp, start, err)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return uuid.Nil, fmt.Errorf("token validation failed: status=%d, body=%s", resp.StatusCode, string(raw))
	}

	var result TokenValidationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return uuid.Nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !result.Valid {
		return uuid.Nil, fmt.Errorf("token rejected: %s", result.Message)
	}

	return uuid.Parse(result.UserID)
}

func (c *AuthClient) record(url, method string, resp *http.Response, start time.Time, err error) {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	c.metrics.RecordExternalAPICall(url, method, status, time.Since(start), err)
}
