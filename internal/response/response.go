package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"presence-service/internal/domain"
)

// Error codes used only by the HTTP layer. Domain errors map through
// domain.ErrorCode.
const (
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeUnavailable  = "SERVICE_UNAVAILABLE"
)

// SuccessResponse wraps every successful body.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps every error body.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

func SendSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, SuccessResponse{Success: true, Data: data})
}

func SendError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{
		Success: false,
		Error:   ErrorDetail{Code: code, Message: message},
	})
}

// AbortWithError sends an error body and stops the handler chain.
func AbortWithError(c *gin.Context, status int, code, message string) {
	SendError(c, status, code, message)
	c.Abort()
}

// SendDomainError classifies err and answers with the matching status.
// Internal errors never expose their message.
func SendDomainError(c *gin.Context, err error) {
	code := domain.ErrorCode(err)
	status := StatusForCode(code)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	SendError(c, status, code, message)
}

// StatusForCode maps an error code to an HTTP status.
func StatusForCode(code string) int {
	switch code {
	case domain.CodeAuthentication, ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeRoomFull:
		return http.StatusConflict
	case domain.CodeForbidden:
		return http.StatusForbidden
	case domain.CodeValidation, ErrCodeBadRequest:
		return http.StatusBadRequest
	case domain.CodeNotConnected:
		return http.StatusConflict
	case domain.CodeUpstream:
		return http.StatusBadGateway
	case ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
