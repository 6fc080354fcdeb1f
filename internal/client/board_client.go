package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"presence-service/internal/metrics"
)

// ProjectClient looks up project membership in board-service.
type ProjectClient interface {
	GetProjectMemberIDs(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error)
}

type projectMember struct {
	UserID uuid.UUID `json:"userId"`
}

type projectClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func NewProjectClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) ProjectClient {
	return &projectClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: m,
	}
}

// GetProjectMemberIDs returns the user ids of every member of the project.
func (c *projectClient) GetProjectMemberIDs(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error) {
	url := fmt.Sprintf("%s/api/internal/projects/%s/members", c.baseURL, projectID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Internal-API-Key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	c.metrics.RecordExternalAPICall(url, http.MethodGet, statusCode, duration, err)

	if err != nil {
		c.logger.Error("Failed to fetch project members",
			zap.Error(err),
			zap.String("project_id", projectID.String()),
			zap.Duration("duration", duration),
		)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Board service returned non-success status",
			zap.Int("status_code", resp.StatusCode),
			zap.String("project_id", projectID.String()),
		)
		return nil, fmt.Errorf("project members lookup failed: status=%d", resp.StatusCode)
	}

	var members []projectMember
	if err := json.NewDecoder(resp.Body).Decode(&members); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}
