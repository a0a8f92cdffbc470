package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"github.com/anyhowai/moveout/internal/api/middleware"
	"github.com/anyhowai/moveout/internal/apperr"
	"github.com/anyhowai/moveout/internal/utils"
)

// IAsynqClient defines the interface for the Asynq client methods used by
// handlers. This allows easier mocking than using the concrete asynq.Client.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// respondData writes the success envelope.
func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// respondError maps a service error onto the envelope plus the right status
// code. Validation errors carry their per-field messages through.
func respondError(c *gin.Context, err error) {
	body := gin.H{"success": false, "error": err.Error()}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && len(appErr.Fields) > 0 {
		body["fields"] = appErr.Fields
	}
	if apperr.HTTPStatus(err) == http.StatusInternalServerError {
		// Don't leak infrastructure detail to clients.
		body["error"] = "internal error"
		_ = c.Error(err)
	}
	c.JSON(apperr.HTTPStatus(err), body)
}

// pathID parses a SixID path parameter.
func pathID(c *gin.Context, name string) (utils.SixID, error) {
	id, err := utils.ParseSixID(c.Param(name))
	if err != nil {
		return utils.SixID{}, apperr.Newf(apperr.KindValidation, "invalid %s", name)
	}
	return id, nil
}

// callerID resolves the caller's identity. A verified token is authoritative;
// an explicit id that contradicts it is rejected rather than silently
// overridden. Every mutating operation requires one or the other.
func callerID(c *gin.Context, explicit string) (utils.SixID, error) {
	if v, ok := c.Get(middleware.ContextKeyUserID); ok {
		if s, ok := v.(string); ok && s != "" {
			id, err := utils.ParseSixID(s)
			if err == nil {
				if explicit != "" && explicit != id.String() {
					return utils.SixID{}, apperr.New(apperr.KindForbidden, "user id does not match the authenticated user")
				}
				return id, nil
			}
		}
	}
	if explicit != "" {
		id, err := utils.ParseSixID(explicit)
		if err != nil {
			return utils.SixID{}, apperr.New(apperr.KindValidation, "invalid user id")
		}
		return id, nil
	}
	return utils.SixID{}, apperr.New(apperr.KindValidation, "user identity required")
}
