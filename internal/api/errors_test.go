package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/civora/civora-api/internal/service/auth"
	"github.com/civora/civora-api/internal/store"
	"github.com/civora/civora-api/internal/task"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized},
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized},
		{"missing token", auth.ErrMissingToken, http.StatusUnauthorized},
		{"city not allowed", auth.ErrCityNotAllowed, http.StatusForbidden},
		{"already succeeded", task.ErrAlreadySucceeded, http.StatusConflict},
		{"already running", task.ErrAlreadyRunning, http.StatusConflict},
		{"task not found", store.ErrTaskNotFound, http.StatusNotFound},
		{"meeting not found", store.ErrMeetingNotFound, http.StatusNotFound},
		{"subject not found", store.ErrSubjectNotFound, http.StatusNotFound},
		{"generic not found", store.ErrNotFound, http.StatusNotFound},
		{"duplicate", store.ErrDuplicate, http.StatusConflict},
		{"invalid entity", store.ErrInvalidEntity, http.StatusBadRequest},
		{"unsupported task type", task.ErrUnsupportedTaskType, http.StatusBadRequest},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped guard error", fmt.Errorf("dispatch failed: %w", task.ErrAlreadyRunning), http.StatusConflict},
		{"wrapped store error", fmt.Errorf("lookup: %w", store.ErrCityNotFound), http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Run("known errors map to friendly messages", func(t *testing.T) {
		assert.Equal(t, "Task already running for this meeting",
			GetSafeErrorMessage(fmt.Errorf("wrap: %w", task.ErrAlreadyRunning)))
		assert.Equal(t, "Meeting not found", GetSafeErrorMessage(store.ErrMeetingNotFound))
		assert.Equal(t, "No access to this city", GetSafeErrorMessage(auth.ErrCityNotAllowed))
	})

	t.Run("internal detail never leaks", func(t *testing.T) {
		msg := GetSafeErrorMessage(errors.New("pq: connection to host db-internal:5432 refused"))
		assert.Equal(t, "An unexpected error occurred", msg)
		assert.NotContains(t, msg, "db-internal")
	})

	t.Run("nil error has a fallback", func(t *testing.T) {
		assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
	})
}
