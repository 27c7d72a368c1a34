//go:build !integration

package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"bytebill/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestWriteError_Mapping(t *testing.T) {
	l := zerolog.Nop()
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrMalformedCode, http.StatusBadRequest, "malformed_code"},
		{fmt.Errorf("wrap: %w", domain.ErrInvalidArgument), http.StatusBadRequest, "validation"},
		{domain.ErrPlanNotFound, http.StatusNotFound, "plan_not_found"},
		{domain.ErrNotFound, http.StatusNotFound, "not_found"},
		{domain.ErrAlreadyUsed, http.StatusConflict, "already_used"},
		{domain.ErrDeviceAlreadyActive, http.StatusConflict, "device_already_active"},
		{domain.ErrExpired, http.StatusGone, "expired"},
		{domain.ErrTooManyAttempts, http.StatusTooManyRequests, "too_many_attempts"},
		{domain.ErrProviderUnavailable, http.StatusBadGateway, "provider_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rec := httptest.NewRecorder()

			writeError(rec, &l, tc.err)

			assert.Equal(t, tc.status, rec.Code)
			body := decode[errorBody](t, rec)
			assert.Equal(t, tc.code, body.Error)
			if tc.status == http.StatusInternalServerError {
				assert.Equal(t, "internal error", body.Message)
			}
		})
	}
}

func TestRecover_WritesInternalError(t *testing.T) {
	l := zerolog.Nop()
	h := TraceID()(Recover(&l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "internal", decode[errorBody](t, rec).Error)
}
