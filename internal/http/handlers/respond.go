package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/storefront/internal/account"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Message   string      `json:"message"`
	Code      string      `json:"code"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get("request_id")

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, APIError{
		Message:   message,
		Code:      code,
		RequestID: requestIDFrom(ctx),
		Details:   details,
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

func RespondConflict(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusConflict, "conflict", message, nil)
}

func RespondUnAuthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondForbidden(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusForbidden, "forbidden", message, nil)
}

// RespondAccountError maps account errors onto statuses. msgs overrides the
// default message per sentinel.
func RespondAccountError(ctx *gin.Context, err error, msgs map[error]string) {
	msg := func(sentinel error, fallback string) string {
		if m, ok := msgs[sentinel]; ok {
			return m
		}
		return fallback
	}

	var verr *account.ValidationError

	switch {
	case errors.As(err, &verr):
		RespondBadRequest(ctx, verr.Field+" "+verr.Message, gin.H{
			"fields": []FieldError{{Field: verr.Field, Rule: verr.Rule, Message: verr.Message}},
		})
	case errors.Is(err, account.ErrNotFound):
		RespondNotFound(ctx, msg(account.ErrNotFound, "Resource not found"))
	case errors.Is(err, account.ErrConflict):
		RespondConflict(ctx, msg(account.ErrConflict, "Resource already exists"))
	case errors.Is(err, account.ErrMissingToken):
		RespondError(ctx, http.StatusBadRequest, "missing_token", msg(account.ErrMissingToken, "Please provide a token"), nil)
	case errors.Is(err, account.ErrExpiredToken):
		RespondUnAuthorized(ctx, "expired_token", "expired token")
	case errors.Is(err, account.ErrInvalidToken):
		RespondUnAuthorized(ctx, "invalid_token", "Invalid token")
	case errors.Is(err, account.ErrUnauthorized):
		RespondUnAuthorized(ctx, "unauthorized", msg(account.ErrUnauthorized, "Unauthorized"))
	case errors.Is(err, account.ErrForbidden):
		RespondForbidden(ctx, msg(account.ErrForbidden, "Forbidden"))
	default:
		slog.Default().ErrorContext(ctx.Request.Context(), "unhandled error",
			"route", ctx.FullPath(), "request_id", requestIDFrom(ctx), "err", err)
		RespondInternal(ctx, "Something went wrong")
	}
}
