package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/patrolworks/inspection-service/internal/store"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Status    string     `json:"status"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorBody `json:"error,omitempty"`
	Timestamp string     `json:"timestamp"`
}

// ErrorBody carries a machine code and a human message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Status: "success", Data: data, Timestamp: now()})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{Status: "success", Data: data, Timestamp: now()})
}

func respondErrorCode(c *gin.Context, httpStatus int, code, message string) {
	c.JSON(httpStatus, Response{
		Status:    "error",
		Error:     &ErrorBody{Code: code, Message: message},
		Timestamp: now(),
	})
}

// respondError maps the store error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error())
	case errors.Is(err, store.ErrNotFound):
		respondErrorCode(c, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.Is(err, store.ErrConflict):
		respondErrorCode(c, http.StatusConflict, "CONFLICT", "resource is not in an accepting state")
	default:
		respondErrorCode(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}
