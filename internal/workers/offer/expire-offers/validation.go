package expireoffers

import "financing-portal/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	minLimit := 1.0
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"limit": {Type: "integer", Minimum: &minLimit},
			"asOf":  {Type: "string", Format: "date-time"},
		},
	}
}
