package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardErrorMatchesByCode(t *testing.T) {
	err := fmt.Errorf("accept offer: %w", NewInvalidTransitionError("offer", "o-1", "DRAFT", "ACCEPTED"))

	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.False(t, errors.Is(err, ErrConflictingTransition))
	assert.Equal(t, ErrCodeInvalidTransition, CodeOf(err))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := NewDatabaseInsertFailedError(cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, err.Retryable)
}

func TestNormalize(t *testing.T) {
	std := NewEntityNotFoundError("application", "a-1")
	assert.Same(t, std, Normalize(fmt.Errorf("wrapped: %w", std)))

	plain := Normalize(errors.New("boom"))
	assert.Equal(t, ErrorCode("INTERNAL_ERROR"), plain.Code)
	assert.Equal(t, "boom", plain.Details)
	assert.False(t, plain.Retryable)
}

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantRetries int
	}{
		{"conflict retried once", NewConflictingTransitionError("application", "a-1", "SUBMITTED", "OFFER_SENT"), 1},
		{"storage retried", NewQueryExecutionFailedError("update offers", errors.New("timeout")), 3},
		{"business error thrown", NewRoleNotPermittedError("CUSTOMER", "offer", "SENT", "EXPIRED"), 0},
		{"non retryable storage code", &StandardError{Code: ErrCodeDatabaseInsertFailed, Retryable: false}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)
			assert.Equal(t, string(tt.err.Code), bpmn.Code)

			vars := bpmn.ToErrorVariables()
			assert.Equal(t, string(tt.err.Code), vars["errorCode"])
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
		})
	}
}

func TestTransitionMetadataReachesProcess(t *testing.T) {
	bpmn := ConvertToBPMNError(NewInvalidTransitionError("contract", "c-1", "DRAFT", "SIGNED"))
	vars := bpmn.ToErrorVariables()

	require.Contains(t, vars, "entity")
	assert.Equal(t, "contract", vars["entity"])
	assert.Equal(t, "DRAFT", vars["from"])
	assert.Equal(t, "SIGNED", vars["to"])
}

func TestGetErrorCategory(t *testing.T) {
	tests := map[ErrorCode]string{
		ErrCodeInvalidTransition:    "WORKFLOW",
		ErrCodeConflictingOffer:     "WORKFLOW",
		ErrCodeRoleNotPermitted:     "WORKFLOW",
		ErrCodeDeliveryFailed:       "NOTIFICATION",
		ErrCodeSearchQueryFailed:    "SEARCH",
		ErrCodeQueryExecutionFailed: "DATABASE",
		ErrCodeInvalidParentMessage: "VALIDATION",
		ErrCodeContractNumberLocked: "VALIDATION",
		ErrorCode("TIMEOUT_ERROR"):  "OTHER",
	}
	for code, want := range tests {
		assert.Equal(t, want, GetErrorCategory(code), string(code))
	}
}
