package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sstent/vo2sync-go/internal/models"
	"github.com/sstent/vo2sync-go/internal/strava"
	"github.com/sstent/vo2sync-go/internal/sync"
)

// statusFor maps the import error taxonomy onto an HTTP status.
func statusFor(err error) int {
	var fe *strava.FetchError
	switch {
	case errors.Is(err, models.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, models.ErrParse), errors.Is(err, models.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sync.ErrRemoteNotConnected):
		return http.StatusServiceUnavailable
	case errors.As(err, &fe) && fe.StatusCode == http.StatusTooManyRequests:
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrRemoteFetch):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *WebHandler) writeError(c *gin.Context, err error) {
	status := statusFor(err)

	var fe *strava.FetchError
	if errors.As(err, &fe) && fe.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(fe.RetryAfter.Seconds())))
	}

	log := h.log.WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		log.Error("request failed")
	} else {
		log.Warn("request rejected")
	}

	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
