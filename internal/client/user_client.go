package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"presence-service/internal/metrics"
)

// ErrProfileNotFound is returned when the user has no profile in the workspace.
var ErrProfileNotFound = errors.New("profile not found")

// UserProfile is the workspace-scoped profile served by user-service.
type UserProfile struct {
	ProfileID       uuid.UUID `json:"profileId"`
	UserID          uuid.UUID `json:"userId"`
	WorkspaceID     uuid.UUID `json:"workspaceId"`
	NickName        string    `json:"nickName"`
	Email           string    `json:"email"`
	ProfileImageURL string    `json:"profileImageUrl,omitempty"`
	JobTitle        string    `json:"jobTitle,omitempty"`
	Department      string    `json:"department,omitempty"`
}

type UserClient interface {
	GetWorkspaceProfile(ctx context.Context, workspaceID, userID uuid.UUID, token string) (*UserProfile, error)
	ValidateMember(ctx context.Context, workspaceID, userID uuid.UUID, token string) (bool, error)
}

type userClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func NewUserClient(baseURL string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) UserClient {
	return &userClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: m,
	}
}

func (c *userClient) GetWorkspaceProfile(ctx context.Context, workspaceID, userID uuid.UUID, token string) (*UserProfile, error) {
	url := fmt.Sprintf("%s/api/profiles/workspace/%s/user/%s", c.baseURL, workspaceID, userID)

	var profile UserProfile
	status, err := c.getJSON(ctx, url, token, &profile)
	if status == http.StatusNotFound {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *userClient) ValidateMember(ctx context.Context, workspaceID, userID uuid.UUID, token string) (bool, error) {
	url := fmt.Sprintf("%s/api/workspaces/%s/validate-member/%s", c.baseURL, workspaceID, userID)

	var result struct {
		IsMember bool `json:"isMember"`
	}
	if _, err := c.getJSON(ctx, url, token, &result); err != nil {
		return false, err
	}
	return result.IsMember, nil
}

func (c *userClient) getJSON(ctx context.Context, url, token string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	c.metrics.RecordExternalAPICall(url, http.MethodGet, status, time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("user-service request failed: status=%d, body=%s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}
