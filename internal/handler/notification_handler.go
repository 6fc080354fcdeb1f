package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"presence-service/internal/domain"
	"presence-service/internal/middleware"
	"presence-service/internal/response"
	"presence-service/internal/service"
)

type NotifyUserRequest struct {
	UserID uuid.UUID `json:"userId" binding:"required"`
	domain.NotificationPayload
}

type NotifyOrganizationRequest struct {
	OrganizationID uuid.UUID  `json:"organizationId" binding:"required"`
	ExcludeUserID  *uuid.UUID `json:"excludeUserId,omitempty"`
	domain.NotificationPayload
}

type NotifyProjectRequest struct {
	ProjectID uuid.UUID `json:"projectId" binding:"required"`
	domain.NotificationPayload
}

// NotificationHandler exposes fan-out to other services and the inbox to users.
type NotificationHandler struct {
	notifications *service.NotificationService
	logger        *zap.Logger
}

func NewNotificationHandler(notifications *service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

// NotifyUser godoc
// @Summary Send a notification to one user
// @Tags internal
// @Accept json
// @Produce json
// @Param X-Internal-API-Key header string true "Internal API key"
// @Param request body NotifyUserRequest true "Notification"
// @Success 202 {object} service.Delivery
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Router /internal/notifications/user [post]
func (h *NotificationHandler) NotifyUser(c *gin.Context) {
	var req NotifyUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, domain.CodeValidation, err.Error())
		return
	}

	delivery, err := h.notifications.NotifyUser(c.Request.Context(), req.UserID, req.NotificationPayload)
	if err != nil {
		h.fail(c, "user", err)
		return
	}
	response.SendSuccess(c, http.StatusAccepted, delivery)
}

// NotifyOrganization godoc
// @Summary Send a notification to every online member of a workspace
// @Tags internal
// @Accept json
// @Produce json
// @Param X-Internal-API-Key header string true "Internal API key"
// @Param request body NotifyOrganizationRequest true "Notification"
// @Success 202 {object} service.Delivery
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Router /internal/notifications/organization [post]
func (h *NotificationHandler) NotifyOrganization(c *gin.Context) {
	var req NotifyOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, domain.CodeValidation, err.Error())
		return
	}

	exclude := uuid.Nil
	if req.ExcludeUserID != nil {
		exclude = *req.ExcludeUserID
	}

	delivery, err := h.notifications.NotifyOrganization(c.Request.Context(), req.OrganizationID, req.NotificationPayload, exclude)
	if err != nil {
		h.fail(c, "organization", err)
		return
	}
	response.SendSuccess(c, http.StatusAccepted, delivery)
}

// NotifyProject godoc
// @Summary Send a notification to the members of a project
// @Tags internal
// @Accept json
// @Produce json
// @Param X-Internal-API-Key header string true "Internal API key"
// @Param request body NotifyProjectRequest true "Notification"
// @Success 202 {object} service.Delivery
// @Failure 400 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /internal/notifications/project [post]
func (h *NotificationHandler) NotifyProject(c *gin.Context) {
	var req NotifyProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, domain.CodeValidation, err.Error())
		return
	}

	delivery, err := h.notifications.NotifyProject(c.Request.Context(), req.ProjectID, req.NotificationPayload)
	if err != nil {
		h.fail(c, "project", err)
		return
	}
	response.SendSuccess(c, http.StatusAccepted, delivery)
}

// GetRecent godoc
// @Summary Get the caller's notification inbox
// @Description Persisted notifications, newest first, with the unread count
// @Tags notifications
// @Produce json
// @Param limit query int false "Max notifications (default 20, max 100)"
// @Success 200 {object} service.Inbox
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /notifications [get]
func (h *NotificationHandler) GetRecent(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "Authentication required")
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.SendError(c, http.StatusBadRequest, domain.CodeValidation, "limit must be a positive integer")
			return
		}
		limit = n
	}

	inbox, err := h.notifications.Recent(c.Request.Context(), id, limit)
	if err != nil {
		h.fail(c, "inbox", err)
		return
	}
	response.SendSuccess(c, http.StatusOK, inbox)
}

func (h *NotificationHandler) fail(c *gin.Context, scope string, err error) {
	if domain.ErrorCode(err) == domain.CodeInternal {
		h.logger.Error("Notification request failed", zap.String("scope", scope), zap.Error(err))
	}
	response.SendDomainError(c, err)
}
