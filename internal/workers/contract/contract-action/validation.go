package contractaction

import "financing-portal/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	party := validation.Property{
		Type:     "object",
		Required: []string{"company_name"},
		Properties: map[string]validation.Property{
			"company_name": {Type: "string", MinLength: intPtr(1)},
			"business_id":  {Type: "string"},
			"email":        {Type: "string"},
		},
	}
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"actorId", "actorRole", "action"},
		Properties: map[string]validation.Property{
			"actorId":   {Type: "string", MinLength: intPtr(1)},
			"actorRole": {Type: "string", Enum: []string{"CUSTOMER", "ADMIN", "FINANCIER"}},
			"action": {
				Type: "string",
				Enum: []string{ActionCreate, ActionAssignNumber, ActionSend, ActionAccept, ActionSign, ActionReject},
			},
			"applicationId": {Type: "string"},
			"contractId":    {Type: "string"},
			"offerId":       {Type: "string"},
			"lessor":        party,
			"lessee":        party,
			"seller":        party,
			"leaseObjects": {
				Type: "array",
				Items: &validation.Property{
					Type:     "object",
					Required: []string{"brand_model"},
				},
			},
			"contractNumber": {
				Type:        "string",
				Description: "Contract number, e.g. 2026-0A1B2C",
				MinLength:   intPtr(1),
				MaxLength:   intPtr(64),
			},
			"signature": {
				Type:     "object",
				Required: []string{"signerName", "place", "date"},
				Properties: map[string]validation.Property{
					"signerName": {Type: "string", MinLength: intPtr(1)},
					"place":      {Type: "string", MinLength: intPtr(1)},
					"date":       {Type: "string", MinLength: intPtr(1)},
				},
			},
			"reason": {Type: "string", MaxLength: intPtr(2000)},
		},
	}
}

func intPtr(i int) *int {
	return &i
}
