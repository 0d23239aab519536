package offeraction

import "financing-portal/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"actorId", "actorRole", "action"},
		Properties: map[string]validation.Property{
			"actorId":   {Type: "string", MinLength: intPtr(1)},
			"actorRole": {Type: "string", Enum: []string{"CUSTOMER", "ADMIN", "FINANCIER"}},
			"action": {
				Type: "string",
				Enum: []string{ActionCreate, ActionSubmitForApproval, ActionApprove, ActionSend, ActionAccept, ActionReject},
			},
			"applicationId": {Type: "string"},
			"offerId":       {Type: "string"},
			"terms": {
				Type:     "object",
				Required: []string{"monthlyPayment", "termMonths"},
				Properties: map[string]validation.Property{
					"monthlyPayment": {Type: "number", Minimum: floatPtr(0)},
					"termMonths":     {Type: "integer", Minimum: floatPtr(1), Maximum: floatPtr(120)},
					"upfrontPayment": {Type: "number", Minimum: floatPtr(0)},
					"residualValue":  {Type: "number", Minimum: floatPtr(0)},
					"openingFee":     {Type: "number", Minimum: floatPtr(0)},
					"invoiceFee":     {Type: "number", Minimum: floatPtr(0)},
					"expiresAt":      {Type: "string", Format: "date-time"},
				},
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
