package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"presence-service/internal/domain"
	"presence-service/internal/middleware"
	"presence-service/internal/response"
	"presence-service/internal/service"
)

// OfficeHandler serves read-only snapshots of the caller's organization.
type OfficeHandler struct {
	office *service.OfficeService
}

func NewOfficeHandler(office *service.OfficeService) *OfficeHandler {
	return &OfficeHandler{office: office}
}

// GetOffice godoc
// @Summary Get the virtual office of the caller's workspace
// @Description Rooms with their occupants and the online users
// @Tags office
// @Produce json
// @Param X-Workspace-Id header string false "Workspace ID"
// @Success 200 {object} service.OfficeView
// @Failure 401 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /office [get]
func (h *OfficeHandler) GetOffice(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "Authentication required")
		return
	}
	response.SendSuccess(c, http.StatusOK, h.office.Office(id.OrganizationID))
}

// GetRooms godoc
// @Summary List rooms with live occupant counts
// @Tags office
// @Produce json
// @Success 200 {array} domain.RoomSummary
// @Failure 401 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /office/rooms [get]
func (h *OfficeHandler) GetRooms(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "Authentication required")
		return
	}
	response.SendSuccess(c, http.StatusOK, h.office.Rooms(id.OrganizationID))
}

// GetMembers godoc
// @Summary List workspace members with their live status
// @Description Includes recently disconnected members still within retention
// @Tags presence
// @Produce json
// @Success 200 {array} domain.PresenceRecord
// @Failure 401 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /presence/members [get]
func (h *OfficeHandler) GetMembers(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "Authentication required")
		return
	}
	response.SendSuccess(c, http.StatusOK, h.office.Members(id.OrganizationID))
}

// GetOnline godoc
// @Summary List online user IDs of the workspace
// @Tags presence
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /presence/online [get]
func (h *OfficeHandler) GetOnline(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "Authentication required")
		return
	}
	userIDs := h.office.OnlineUserIDs(id.OrganizationID)
	response.SendSuccess(c, http.StatusOK, gin.H{
		"userIds": userIDs,
		"count":   len(userIDs),
	})
}

// GetStatus godoc
// @Summary Get one user's presence and last-seen time
// @Tags presence
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} service.UserStatus
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /presence/status/{userId} [get]
func (h *OfficeHandler) GetStatus(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "Authentication required")
		return
	}

	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.SendError(c, http.StatusBadRequest, domain.CodeValidation, "Invalid user ID")
		return
	}

	status, err := h.office.Status(id.OrganizationID, userID)
	if err != nil {
		response.SendDomainError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, status)
}
