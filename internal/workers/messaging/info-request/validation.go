package inforequest

import "financing-portal/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"actorId", "actorRole", "applicationId", "body"},
		Properties: map[string]validation.Property{
			"actorId":       {Type: "string", MinLength: intPtr(1)},
			"actorRole":     {Type: "string", Enum: []string{"ADMIN", "FINANCIER"}},
			"applicationId": {Type: "string", MinLength: intPtr(1)},
			"body": {
				Type:      "string",
				MinLength: intPtr(1),
				MaxLength: intPtr(10000),
			},
			"requestedDocuments": {
				Type:        "array",
				Description: "Document kinds the customer should upload",
				Items:       &validation.Property{Type: "string", MinLength: intPtr(1)},
			},
		},
	}
}

func intPtr(i int) *int {
	return &i
}
