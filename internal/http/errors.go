package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"blog-api/internal/domain"
	"blog-api/internal/service"
)

const internalErrorMessage = "internal server error"

// unauthenticated errors are reported with their bare sentinel message.
var unauthenticated = []error{
	domain.ErrUnauthenticated,
	domain.ErrInvalidToken,
	domain.ErrExpiredToken,
	domain.ErrSubjectNotFound,
	service.ErrInvalidCredentials,
}

func statusFor(err error) (int, string) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, verr.Error()
	}

	for _, sentinel := range unauthenticated {
		if errors.Is(err, sentinel) {
			return http.StatusUnauthorized, sentinel.Error()
		}
	}

	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, internalErrorMessage
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.WithField("request_id", c.GetString(requestIDKey)).WithError(err).Error("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// bindError turns a gin binding failure into a ValidationError.
func bindError(err error) error {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		fe := fields[0]
		return domain.NewValidationError(fe.Field(), "failed "+fe.Tag()+" check")
	}
	return domain.NewValidationError("", "malformed request: "+err.Error())
}
