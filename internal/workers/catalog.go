// Package workers lists the portal's Zeebe job workers for the activity
// registry and the worker manager.
package workers

import (
	"encoding/json"

	apperrors "financing-portal/internal/common/errors"
	"financing-portal/internal/common/validation"
	applicationaction "financing-portal/internal/workers/application/application-action"
	createapplication "financing-portal/internal/workers/application/create-application"
	transitionhistory "financing-portal/internal/workers/application/transition-history"
	contractaction "financing-portal/internal/workers/contract/contract-action"
	inforeply "financing-portal/internal/workers/messaging/info-reply"
	inforequest "financing-portal/internal/workers/messaging/info-request"
	sendnotification "financing-portal/internal/workers/notification/send-notification"
	expireoffers "financing-portal/internal/workers/offer/expire-offers"
	offeraction "financing-portal/internal/workers/offer/offer-action"
	"financing-portal/pkg/registry"
)

type Entry struct {
	ID          string
	TaskType    string
	DisplayName string
	Description string
	Category    string
	Timeout     string
	Schema      validation.JSONSchema
	ErrorCodes  []apperrors.ErrorCode
}

var transitionErrors = []apperrors.ErrorCode{
	apperrors.ErrCodeValidationFailed,
	apperrors.ErrCodeEntityNotFound,
	apperrors.ErrCodeInvalidTransition,
	apperrors.ErrCodeRoleNotPermitted,
	apperrors.ErrCodePreconditionFailed,
	apperrors.ErrCodeConflictingTransition,
	apperrors.ErrCodePartialTransition,
}

func Catalog() []Entry {
	return []Entry{
		{
			ID:          "application.lifecycle.create",
			TaskType:    createapplication.TaskType,
			DisplayName: "Create Application",
			Description: "Creates a financing application as DRAFT, or SUBMITTED when submit is set",
			Category:    "application",
			Timeout:     "10s",
			Schema:      createapplication.GetInputSchema(),
			ErrorCodes: []apperrors.ErrorCode{
				apperrors.ErrCodeValidationFailed,
				apperrors.ErrCodeRoleNotPermitted,
				apperrors.ErrCodeDatabaseInsertFailed,
			},
		},
		{
			ID:          "application.lifecycle.action",
			TaskType:    applicationaction.TaskType,
			DisplayName: "Application Action",
			Description: "Submits, routes, rejects or cancels an application",
			Category:    "application",
			Timeout:     "10s",
			Schema:      applicationaction.GetInputSchema(),
			ErrorCodes:  transitionErrors,
		},
		{
			ID:          "application.audit.history",
			TaskType:    transitionhistory.TaskType,
			DisplayName: "Transition History",
			Description: "Reads the transition log of an application, offer or contract",
			Category:    "application",
			Timeout:     "10s",
			Schema:      transitionhistory.GetInputSchema(),
			ErrorCodes: []apperrors.ErrorCode{
				apperrors.ErrCodeValidationFailed,
				apperrors.ErrCodeSearchQueryFailed,
			},
		},
		{
			ID:          "offer.lifecycle.action",
			TaskType:    offeraction.TaskType,
			DisplayName: "Offer Action",
			Description: "Creates, approves, sends, accepts or rejects an offer",
			Category:    "offer",
			Timeout:     "10s",
			Schema:      offeraction.GetInputSchema(),
			ErrorCodes:  append([]apperrors.ErrorCode{apperrors.ErrCodeConflictingOffer}, transitionErrors...),
		},
		{
			ID:          "offer.lifecycle.expire",
			TaskType:    expireoffers.TaskType,
			DisplayName: "Expire Offers",
			Description: "Moves offers past their expiry date to EXPIRED",
			Category:    "offer",
			Timeout:     "60s",
			Schema:      expireoffers.GetInputSchema(),
			ErrorCodes: []apperrors.ErrorCode{
				apperrors.ErrCodeValidationFailed,
				apperrors.ErrCodeQueryExecutionFailed,
			},
		},
		{
			ID:          "contract.lifecycle.action",
			TaskType:    contractaction.TaskType,
			DisplayName: "Contract Action",
			Description: "Creates, numbers, sends, accepts, signs or rejects a contract",
			Category:    "contract",
			Timeout:     "10s",
			Schema:      contractaction.GetInputSchema(),
			ErrorCodes:  append([]apperrors.ErrorCode{apperrors.ErrCodeContractNumberLocked}, transitionErrors...),
		},
		{
			ID:          "messaging.thread.request",
			TaskType:    inforequest.TaskType,
			DisplayName: "Info Request",
			Description: "Asks the customer for more information and moves the application to INFO_REQUESTED",
			Category:    "messaging",
			Timeout:     "10s",
			Schema:      inforequest.GetInputSchema(),
			ErrorCodes:  append([]apperrors.ErrorCode{apperrors.ErrCodeDatabaseInsertFailed}, transitionErrors...),
		},
		{
			ID:          "messaging.thread.reply",
			TaskType:    inforeply.TaskType,
			DisplayName: "Info Reply",
			Description: "Records the customer's reply and moves the application to INFO_RECEIVED",
			Category:    "messaging",
			Timeout:     "10s",
			Schema:      inforeply.GetInputSchema(),
			ErrorCodes:  append([]apperrors.ErrorCode{apperrors.ErrCodeInvalidParentMessage, apperrors.ErrCodeDatabaseInsertFailed}, transitionErrors...),
		},
		{
			ID:          "notification.inapp.send",
			TaskType:    sendnotification.TaskType,
			DisplayName: "Send Notification",
			Description: "Creates in-app notifications and sends the optional email for a process event",
			Category:    "notification",
			Timeout:     "10s",
			Schema:      sendnotification.GetInputSchema(),
			ErrorCodes:  []apperrors.ErrorCode{apperrors.ErrCodeValidationFailed},
		},
	}
}

func TaskTypes() []string {
	entries := Catalog()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.TaskType
	}
	return out
}

// Activity converts the entry into its registry form. Retries follows the
// most retryable error code the worker can raise.
func (e Entry) Activity(version string) registry.Activity {
	codes := make([]string, len(e.ErrorCodes))
	retries := 0
	for i, c := range e.ErrorCodes {
		codes[i] = string(c)
		if n := apperrors.GetRetryCount(c); n > retries {
			retries = n
		}
	}
	return registry.Activity{
		ID:                   e.ID,
		DisplayName:          e.DisplayName,
		Description:          e.Description,
		Category:             e.Category,
		Version:              version,
		TaskType:             e.TaskType,
		ImplementationStatus: "completed",
		InputSchema:          schemaMap(e.Schema),
		ErrorCodes:           codes,
		Timeout:              e.Timeout,
		Retries:              retries,
		Workflows:            []string{"financing-application"},
	}
}

func schemaMap(s validation.JSONSchema) map[string]interface{} {
	data, err := json.Marshal(s)
	if err != nil {
		return map[string]interface{}{}
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}
