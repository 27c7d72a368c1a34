package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"bytebill/internal/domain"

	"github.com/rs/zerolog"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Specific sentinels get their own code; everything else falls back to the kind.
var errorCodes = []struct {
	err  error
	code string
}{
	{domain.ErrMalformedCode, "malformed_code"},
	{domain.ErrInvalidPhone, "invalid_phone"},
	{domain.ErrInvalidRange, "invalid_range"},
	{domain.ErrInvalidPlan, "invalid_plan"},
	{domain.ErrNegativeUsage, "negative_usage"},
	{domain.ErrInvalidDevice, "invalid_device"},
	{domain.ErrInvalidChart, "invalid_chart"},
	{domain.ErrCallbackRejected, "callback_rejected"},
	{domain.ErrPlanNotFound, "plan_not_found"},
	{domain.ErrAlreadyUsed, "already_used"},
	{domain.ErrDeviceAlreadyActive, "device_already_active"},
	{domain.ErrRequestInFlight, "request_in_flight"},
	{domain.ErrNotActive, "not_active"},
	{domain.ErrPaymentNotCompleted, "payment_not_completed"},
	{domain.ErrPaymentClaimed, "payment_claimed"},
	{domain.ErrLockNotAcquired, "busy"},
	{domain.ErrExpired, "expired"},
	{domain.ErrTooManyAttempts, "too_many_attempts"},
	{domain.ErrProviderUnavailable, "provider_unavailable"},
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindExpired:
		return http.StatusGone
	case domain.KindRateLimit:
		return http.StatusTooManyRequests
	case domain.KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return string(domain.Kind(err))
}

// writeError maps err onto a status and a stable error code. Internal errors
// are logged and their text withheld.
func writeError(w http.ResponseWriter, log *zerolog.Logger, err error) {
	kind := domain.Kind(err)
	status := statusFor(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: errorCode(err), Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

const maxBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty request body", domain.ErrInvalidArgument)
		}
		return fmt.Errorf("%w: request body: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}
