package handler

import (
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/authflow/internal/domain"
	"github.com/gin-gonic/gin"
)

const (
	errInternalServer = "Internal server error"
	errInvalidBody    = "Request body must be valid JSON"
)

type errorResponse struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// statusMap picks the HTTP status for each workflow error kind. Not-found and
// auth failures map differently depending on the endpoint.
type statusMap struct {
	notFound int
	auth     int
}

var (
	// verify, resend
	tokenStatuses = statusMap{notFound: http.StatusBadRequest, auth: http.StatusBadRequest}
	// login, admin promotion
	credentialStatuses = statusMap{notFound: http.StatusNotFound, auth: http.StatusBadRequest}
	// current user
	sessionStatuses = statusMap{notFound: http.StatusNotFound, auth: http.StatusUnauthorized}
)

// writeError renders a workflow error, or logs err and answers 500 when it is
// an infrastructure failure.
func writeError(c *gin.Context, logger *slog.Logger, op string, err error, statuses statusMap) {
	de, ok := domain.AsError(err)
	if !ok {
		logger.ErrorContext(c.Request.Context(), op, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Message: errInternalServer})
		return
	}

	status := http.StatusBadRequest
	switch de.Kind {
	case domain.KindNotFound:
		status = statuses.notFound
	case domain.KindAuth:
		status = statuses.auth
	}
	c.JSON(status, errorResponse{Message: de.Message, Field: de.Field})
}
