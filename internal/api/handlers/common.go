package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/careerpath/internal/utils"
)

// APIError is the body of every error response. Internal details and raw
// model output never appear in it.
type APIError struct {
	Code    utils.Code `json:"code"`
	Kind    utils.Kind `json:"kind,omitempty"`
	Stage   string     `json:"stage,omitempty"`
	Message string     `json:"message"`
	Retry   string     `json:"retry,omitempty"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)
	_ = c.Error(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		msg := ae.Message
		if ae.Code == utils.CodeInternal {
			msg = http.StatusText(status)
		}
		c.JSON(status, APIError{
			Code:    ae.Code,
			Kind:    ae.Kind,
			Stage:   ae.Stage,
			Message: msg,
			Retry:   utils.RetryHint(err),
		})
		return
	}

	c.JSON(status, APIError{
		Code:    utils.CodeInternal,
		Message: http.StatusText(status),
		Retry:   utils.RetryHint(err),
	})
}

func requireUserID(c *gin.Context) (string, bool) {
	if v, ok := c.Get("user_id"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}

	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}
