package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/yourname/babysleep/internal"
	"github.com/yourname/babysleep/internal/response"
	"github.com/yourname/babysleep/internal/service"
	"github.com/yourname/babysleep/internal/storage"
)

func HandleError(c *gin.Context, logger internal.Logger, err error, status int, msg string) {
	requestID := c.GetString("request_id")
	logger.Errorf("[request_id=%s] %s: %v", requestID, msg, err)
	var resp response.APIResponse
	switch status {
	case 400:
		resp = response.BadRequest(msg + ": " + err.Error())
	case 404:
		resp = response.NotFound(msg + ": " + err.Error())
	case 500:
		resp = response.InternalError(msg + ": " + err.Error())
	default:
		resp = response.NewAppError(status, msg+": "+err.Error())
	}
	c.JSON(status, resp)
}

// HandleServiceError picks the status for an error returned by the sleep
// service.
func HandleServiceError(c *gin.Context, logger internal.Logger, err error, msg string) {
	HandleError(c, logger, err, statusFor(err), msg)
}

func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs), errors.Is(err, service.ErrWrongBaby):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, service.ErrSaveFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func HandleSuccess(c *gin.Context, logger internal.Logger, status int, data interface{}, meta map[string]any) {
	requestID := c.GetString("request_id")
	logger.Infof("[request_id=%s] Success", requestID)
	c.JSON(status, response.Success(data, meta))
}

// HandleResult writes a write-path outcome: saved entries with status,
// collisions as 409 and blocked intervals as 422.
func HandleResult(c *gin.Context, logger internal.Logger, res service.SubmitResult, status int) {
	requestID := c.GetString("request_id")
	switch res.Outcome {
	case service.OutcomeCollision:
		logger.Infof("[request_id=%s] collision with entry %s", requestID, res.Colliding.ID)
		c.JSON(http.StatusConflict, response.Rejected(http.StatusConflict, "Entry overlaps an existing entry", res, nil))
	case service.OutcomeBlocked:
		logger.Infof("[request_id=%s] blocked: %s", requestID, res.Validation.Reason)
		c.JSON(http.StatusUnprocessableEntity, response.Rejected(http.StatusUnprocessableEntity, res.Validation.Reason.Message(), res, nil))
	default:
		var meta map[string]any
		if res.Validation.Warning() {
			meta = map[string]any{
				"warning":        res.Validation.Reason,
				"warningMessage": res.Validation.Reason.Message(),
			}
		}
		HandleSuccess(c, logger, status, res.Entry, meta)
	}
}
