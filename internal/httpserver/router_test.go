package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"pigeon/internal/domain"
)

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, fmt.Errorf("update message: %w", errors.New("dial tcp 10.0.0.1:27017: connection refused")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.ErrInternal.Error())
	assert.NotContains(t, rec.Body.String(), "dial tcp")
	assert.NotContains(t, rec.Body.String(), "update message")
}

func TestWriteErrorSentinelMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrCredentialInvalid, http.StatusUnauthorized},
		{domain.ErrUnauthorized, http.StatusForbidden},
		{domain.ErrEditWindowExpired, http.StatusForbidden},
		{domain.ErrMessageNotFound, http.StatusNotFound},
		{domain.ErrConflict, http.StatusConflict},
		{domain.ErrInternal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, c.err)

		assert.Equal(t, c.status, rec.Code, c.err.Error())
		assert.Contains(t, rec.Body.String(), c.err.Error())
	}
}

func TestWriteErrorWrappedSentinelKeepsMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, fmt.Errorf("mark read: %w", domain.ErrMessageNotFound))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.ErrMessageNotFound.Error())
	assert.NotContains(t, rec.Body.String(), "mark read")
}
