package inforeply

import "financing-portal/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"actorId", "actorRole", "parentMessageId", "body"},
		Properties: map[string]validation.Property{
			"actorId":         {Type: "string", MinLength: intPtr(1)},
			"actorRole":       {Type: "string", Enum: []string{"CUSTOMER", "ADMIN", "FINANCIER"}},
			"parentMessageId": {Type: "string", MinLength: intPtr(1)},
			"applicationId":   {Type: "string"},
			"body": {
				Type:      "string",
				MinLength: intPtr(1),
				MaxLength: intPtr(10000),
			},
		},
	}
}

func intPtr(i int) *int {
	return &i
}
