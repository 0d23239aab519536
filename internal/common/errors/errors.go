package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type ErrorCode string

const (
	ErrCodeInvalidTransition     ErrorCode = "INVALID_TRANSITION"
	ErrCodeConflictingTransition ErrorCode = "CONFLICTING_TRANSITION"
	ErrCodeConflictingOffer      ErrorCode = "CONFLICTING_OFFER"
	ErrCodeRoleNotPermitted      ErrorCode = "ROLE_NOT_PERMITTED"
	ErrCodePreconditionFailed    ErrorCode = "TRANSITION_PRECONDITION_FAILED"
	ErrCodePartialTransition     ErrorCode = "PARTIAL_TRANSITION"
	ErrCodeEntityNotFound        ErrorCode = "ENTITY_NOT_FOUND"
	ErrCodeInvalidParentMessage  ErrorCode = "INVALID_PARENT_MESSAGE"
	ErrCodeContractNumberLocked  ErrorCode = "CONTRACT_NUMBER_IMMUTABLE"
	ErrCodeValidationFailed      ErrorCode = "VALIDATION_FAILED"

	ErrCodeRecipientUnresolved ErrorCode = "RECIPIENT_UNRESOLVED"
	ErrCodeDeliveryFailed      ErrorCode = "DELIVERY_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeSearchQueryFailed        ErrorCode = "SEARCH_QUERY_FAILED"
)

// Sentinels for errors.Is. StandardError matches on Code only.
var (
	ErrInvalidTransition     = &StandardError{Code: ErrCodeInvalidTransition}
	ErrConflictingTransition = &StandardError{Code: ErrCodeConflictingTransition}
	ErrConflictingOffer      = &StandardError{Code: ErrCodeConflictingOffer}
	ErrRoleNotPermitted      = &StandardError{Code: ErrCodeRoleNotPermitted}
	ErrPreconditionFailed    = &StandardError{Code: ErrCodePreconditionFailed}
	ErrPartialTransition     = &StandardError{Code: ErrCodePartialTransition}
	ErrEntityNotFound        = &StandardError{Code: ErrCodeEntityNotFound}
	ErrInvalidParentMessage  = &StandardError{Code: ErrCodeInvalidParentMessage}
	ErrContractNumberLocked  = &StandardError{Code: ErrCodeContractNumberLocked}
	ErrValidationFailed      = &StandardError{Code: ErrCodeValidationFailed}
	ErrRecipientUnresolved   = &StandardError{Code: ErrCodeRecipientUnresolved}
	ErrDeliveryFailed        = &StandardError{Code: ErrCodeDeliveryFailed}
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// CodeOf returns the code of the first StandardError in err's chain.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func transitionMetadata(entity, id, from, to string) map[string]interface{} {
	return map[string]interface{}{
		"entity": entity,
		"id":     id,
		"from":   from,
		"to":     to,
	}
}

func NewInvalidTransitionError(entity, id, from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "Transition not allowed from current status, refresh and retry",
		Details:   fmt.Sprintf("%s %s: %s -> %s", entity, id, from, to),
		Retryable: false,
		Metadata:  transitionMetadata(entity, id, from, to),
		Timestamp: time.Now().UTC(),
	}
}

func NewConflictingTransitionError(entity, id, expected, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConflictingTransition,
		Message:   "Entity was modified concurrently",
		Details:   fmt.Sprintf("%s %s no longer in %s", entity, id, expected),
		Retryable: true,
		Metadata:  transitionMetadata(entity, id, expected, to),
		Timestamp: time.Now().UTC(),
	}
}

func NewConflictingOfferError(applicationID, acceptedOfferID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConflictingOffer,
		Message:   "Another offer is already accepted for this application",
		Details:   fmt.Sprintf("applicationId: %s, acceptedOfferId: %s", applicationID, acceptedOfferID),
		Retryable: false,
		Metadata: map[string]interface{}{
			"applicationId":   applicationID,
			"acceptedOfferId": acceptedOfferID,
		},
		Timestamp: time.Now().UTC(),
	}
}

func NewRoleNotPermittedError(role, entity, from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRoleNotPermitted,
		Message:   "Actor role may not perform this transition",
		Details:   fmt.Sprintf("role %s on %s %s -> %s", role, entity, from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewPreconditionFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePreconditionFailed,
		Message:   "Transition precondition not met",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPartialTransitionError reports writes that were applied before a later
// step failed and could not be reverted.
func NewPartialTransitionError(applied []string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodePartialTransition,
		Message:   "Transition only partially applied",
		Details:   cause.Error(),
		Retryable: false,
		Metadata:  map[string]interface{}{"applied": applied},
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewEntityNotFoundError(entity, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEntityNotFound,
		Message:   "Entity not found",
		Details:   fmt.Sprintf("%s %s", entity, id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidParentMessageError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidParentMessage,
		Message:   "Reply parent must be a message on the same application",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewContractNumberLockedError(contractID, number string) *StandardError {
	return &StandardError{
		Code:      ErrCodeContractNumberLocked,
		Message:   "Contract number already assigned",
		Details:   fmt.Sprintf("contractId: %s, contractNumber: %s", contractID, number),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewRecipientUnresolvedError(eventID, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecipientUnresolved,
		Message:   "Notification recipient could not be resolved",
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"eventId": eventID},
		Timestamp: time.Now().UTC(),
	}
}

func NewDeliveryFailedError(provider string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeliveryFailed,
		Message:   fmt.Sprintf("Email delivery through %s failed", provider),
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Elasticsearch query error",
		Details:   fmt.Sprintf("index: %s, error: %s", index, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      "AUTHENTICATION_ERROR",
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeSearchQueryFailed:
		return 3

	case ErrCodeConflictingTransition:
		return 1 // re-read and retry once

	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TRANSITION") || strings.Contains(codeStr, "OFFER") || strings.Contains(codeStr, "ROLE"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "RECIPIENT") || strings.Contains(codeStr, "DELIVERY"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "IMMUTABLE"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
