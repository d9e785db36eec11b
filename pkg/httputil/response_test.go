package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
)

func TestNewErrorResponse(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    apperrors.ErrorCode
		message string
	}{
		{
			name:    "slot taken",
			err:     apperrors.SlotAlreadyBooked("slot 09:00-09:30 on 2026-10-19 is already booked", nil),
			status:  http.StatusConflict,
			code:    apperrors.ErrCodeSlotAlreadyBooked,
			message: "slot 09:00-09:30 on 2026-10-19 is already booked",
		},
		{
			name:    "wrapped app error",
			err:     fmt.Errorf("failed to cancel: %w", apperrors.MissingReason()),
			status:  http.StatusBadRequest,
			code:    apperrors.ErrCodeMissingReason,
			message: "cancellation reason is required",
		},
		{
			name:    "plain error is hidden",
			err:     errors.New("connection refused"),
			status:  http.StatusInternalServerError,
			code:    apperrors.ErrInternal,
			message: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := NewErrorResponse(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, int(tt.code), resp.Code)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}

func TestRespondWithSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondWithSuccess(c, http.StatusCreated, gin.H{"id": "b1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "b1", body["data"].(map[string]interface{})["id"])
}
