// Package response writes the JSON envelope every handler answers with

package response

import (
	"net/http"

	"riciti/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	Success = "success"
	Error   = "error"
)

/* Envelope
{
    "status": "success",
    "data": {},     // payload on success
    "error": "",    // what went wrong, on failure
    "message": "",  // optional hint
}
*/

// Response is the envelope
type Response struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ------------------ 🎯 Success ------------------

// Data answers 200 with data
func Data(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Status: Success,
		Data:   data,
	})
}

// JSON answers 200 with data as is, outside the envelope
func JSON(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created answers 201
func Created(c *gin.Context, data interface{}, msg ...string) {
	c.JSON(http.StatusCreated, Response{
		Status:  Success,
		Message: getMsg("Created", msg...),
		Data:    data,
	})
}

// ------------------ ❌ Errors ------------------

// Abort400 answers 400
func Abort400(c *gin.Context, msg ...string) {
	abort(c, http.StatusBadRequest, getMsg("Bad request", msg...))
}

// Abort402 answers 402, the invoice must be paid first
func Abort402(c *gin.Context, msg ...string) {
	abort(c, http.StatusPaymentRequired, getMsg("Payment required", msg...))
}

// Abort403 answers 403
func Abort403(c *gin.Context, msg ...string) {
	abort(c, http.StatusForbidden, getMsg("Forbidden", msg...))
}

// Abort404 answers 404
func Abort404(c *gin.Context, msg ...string) {
	abort(c, http.StatusNotFound, getMsg("Not found", msg...))
}

// Abort409 answers 409
func Abort409(c *gin.Context, msg ...string) {
	abort(c, http.StatusConflict, getMsg("Conflict", msg...))
}

// Abort429 answers 429
func Abort429(c *gin.Context, msg ...string) {
	abort(c, http.StatusTooManyRequests, getMsg("Too many requests, please try again later", msg...))
}

// Abort500 answers 500
func Abort500(c *gin.Context, msg ...string) {
	abort(c, http.StatusInternalServerError, getMsg("Internal server error", msg...))
}

// Abort503 answers 503
func Abort503(c *gin.Context, msg ...string) {
	abort(c, http.StatusServiceUnavailable, getMsg("Service unavailable", msg...))
}

// BadRequest answers 400 with err's text, for input the client can fix
func BadRequest(c *gin.Context, err error, msg ...string) {
	logger.LogWarnIf(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{
		Status:  Error,
		Error:   getMsg(err.Error(), msg...),
		Message: "Invalid request",
	})
}

// ServerError logs err in full and answers a generic 500
func ServerError(c *gin.Context, err error, msg ...string) {
	logger.Error("Response",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	abort(c, http.StatusInternalServerError, getMsg("Internal server error", msg...))
}

// ValidationError answers 400 with per-field messages
func ValidationError(c *gin.Context, errors map[string][]string) {
	msg := "Validation failed"
	for _, errs := range errors {
		if len(errs) > 0 {
			msg = errs[0]
			break
		}
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{
		Status: Error,
		Error:  msg,
		Data:   errors,
	})
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, Response{
		Status: Error,
		Error:  msg,
	})
}

func getMsg(defaultMsg string, msg ...string) string {
	if len(msg) > 0 {
		return msg[0]
	}
	return defaultMsg
}
