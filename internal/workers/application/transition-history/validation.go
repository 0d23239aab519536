package transitionhistory

import "financing-portal/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"entityId"},
		Properties: map[string]validation.Property{
			"entityId": {
				Type:        "string",
				Description: "Application, offer or contract id",
				MinLength:   intPtr(1),
			},
			"limit": {
				Type:    "integer",
				Minimum: floatPtr(1),
				Maximum: floatPtr(200),
			},
		},
	}
}

func intPtr(i int) *int {
	return &i
}

func floatPtr(f float64) *float64 {
	return &f
}
