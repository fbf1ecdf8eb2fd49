package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meetlines/meetlines/internal/appointment"
	"go.uber.org/zap"
)

// statusByCode maps lifecycle error codes to HTTP statuses. Every error body
// is {"error": message, "code": code}.
var statusByCode = map[appointment.Code]int{
	appointment.CodeValidation:      http.StatusBadRequest,
	appointment.CodeTerminalState:   http.StatusBadRequest,
	appointment.CodeLeadTime:        http.StatusBadRequest,
	appointment.CodeBookingDisabled: http.StatusBadRequest,
	appointment.CodeSlotTaken:       http.StatusConflict,
	appointment.CodeNotFound:        http.StatusNotFound,
	appointment.CodeForbidden:       http.StatusForbidden,
	appointment.CodeConflict:        http.StatusConflict,
}

func abortWith(c *gin.Context, status int, code appointment.Code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}

func badRequest(c *gin.Context, msg string) {
	abortWith(c, http.StatusBadRequest, appointment.CodeValidation, msg)
}

func notFound(c *gin.Context, msg string) {
	abortWith(c, http.StatusNotFound, appointment.CodeNotFound, msg)
}

// respondError writes a lifecycle error with its mapped status, or logs an
// infrastructure error and answers 500 with fallback as the message.
func respondError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	if e, ok := appointment.AsError(err); ok {
		status, known := statusByCode[e.Code]
		if !known {
			status = http.StatusBadRequest
		}
		abortWith(c, status, e.Code, e.Message)
		return
	}
	logger.Error(fallback, zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": fallback})
}
