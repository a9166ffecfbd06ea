package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeAlreadyExists, http.StatusConflict},
		{ErrCodeInvalidState, http.StatusConflict},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{"ERR_SOMETHING_NEW", http.StatusInternalServerError},

		// explicit domain codes
		{"INVALID_CREDENTIALS", http.StatusUnauthorized},
		{"NOT_APPROVER", http.StatusForbidden},
		{"CONFIRMATION_REQUIRED", http.StatusBadRequest},
		{"INVALID_ARCHIVE", http.StatusBadRequest},
		{"BACKUP_IN_PROGRESS", http.StatusConflict},
		{"APPOINTMENT_OVERLAP", http.StatusConflict},
		{"AI_UNAVAILABLE", http.StatusServiceUnavailable},
		{"DOCUMENT_TOO_LARGE", http.StatusRequestEntityTooLarge},

		// naming patterns
		{"TOKEN_EXPIRED", http.StatusUnauthorized},
		{"USER_NOT_FOUND", http.StatusNotFound},
		{"CONTACT_EMAIL_EXISTS", http.StatusConflict},
		{"INVALID_BACKUP_STATE", http.StatusConflict},
		{"INVALID_TRANSITION", http.StatusConflict},
		{"INVALID_EMAIL", http.StatusBadRequest},
		{"OVERPAYMENT", http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, NormalizeErrorCode("NOT_FOUND"))
	assert.Equal(t, ErrCodeForbidden, NormalizeErrorCode("FORBIDDEN"))
	assert.Equal(t, ErrCodeInvalidState, NormalizeErrorCode("INVALID_STATE"))
	assert.Equal(t, "BACKUP_IN_PROGRESS", NormalizeErrorCode("BACKUP_IN_PROGRESS"))
	assert.Equal(t, ErrCodeValidation, NormalizeErrorCode(ErrCodeValidation))
}

func TestErrorCodesHaveStatus(t *testing.T) {
	for code, status := range ErrorCodeHTTPStatus {
		assert.Contains(t, code, "ERR_")
		assert.GreaterOrEqual(t, status, 400, code)
	}
}

func TestErrorResponseJSON(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "req-1", []ValidationDetail{
		{Field: "email", Message: "Invalid email format"},
	})

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, false, decoded["success"])
	errObj := decoded["error"].(map[string]any)
	assert.Equal(t, ErrCodeValidation, errObj["code"])
	assert.Equal(t, "req-1", errObj["request_id"])
	assert.Len(t, errObj["details"], 1)
	assert.NotContains(t, decoded, "data")
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	tests := []struct {
		total         int64
		pageSize      int
		expectedPages int
	}{
		{100, 10, 10},
		{101, 10, 11},
		{0, 10, 0},
		{9, 10, 1},
		{5, 0, 0},
	}

	for _, tt := range tests {
		resp := NewSuccessResponseWithMeta([]string{}, tt.total, 1, tt.pageSize)
		assert.True(t, resp.Success)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, tt.expectedPages, resp.Meta.TotalPages)
		assert.Equal(t, tt.total, resp.Meta.Total)
	}
}
