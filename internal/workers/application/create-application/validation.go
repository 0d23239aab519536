package createapplication

import "financing-portal/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"actorId", "actorRole", "type", "contactEmail", "companyName"},
		Properties: map[string]validation.Property{
			"actorId": {
				Type:      "string",
				MinLength: intPtr(1),
			},
			"actorRole": {
				Type: "string",
				Enum: []string{"CUSTOMER", "ADMIN"},
			},
			"type": {
				Type:        "string",
				Description: "Financing product",
				Enum:        []string{"LEASING", "SALE_LEASEBACK"},
			},
			"contactEmail": {
				Type:      "string",
				Format:    "email",
				MaxLength: intPtr(255),
			},
			"contactPerson": {Type: "string", MaxLength: intPtr(200)},
			"contactPhone":  {Type: "string", MaxLength: intPtr(50)},
			"companyName": {
				Type:      "string",
				MinLength: intPtr(1),
				MaxLength: intPtr(200),
			},
			"businessId": {
				Type:        "string",
				Description: "Finnish Y-tunnus",
				Pattern:     `^[0-9]{7}-[0-9]$`,
			},
			"equipmentDescription": {Type: "string", MaxLength: intPtr(2000)},
			"equipmentPrice": {
				Type:    "number",
				Minimum: floatPtr(0),
			},
			"submit": {
				Type:        "boolean",
				Description: "Submit immediately instead of leaving a draft",
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
