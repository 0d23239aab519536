package camunda

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"

	apperrors "financing-portal/internal/common/errors"
	"financing-portal/internal/common/validation"
)

// DecodeVariables validates the job's variables against schema and
// unmarshals them into out. Both failures come back as VALIDATION_FAILED.
func DecodeVariables(job entities.Job, schema validation.JSONSchema, out interface{}) error {
	raw := job.GetVariables()
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}

	result, err := validation.Validate([]byte(raw), schema)
	if err != nil {
		return apperrors.NewValidationFailedError(fmt.Sprintf("parse variables: %v", err))
	}
	if !result.Valid {
		problems := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			problems = append(problems, e.Field+": "+e.Message)
		}
		return apperrors.NewValidationFailedError(strings.Join(problems, "; "))
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return apperrors.NewValidationFailedError(fmt.Sprintf("decode variables: %v", err))
	}
	return nil
}
