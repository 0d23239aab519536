package applicationaction

import "financing-portal/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"actorId", "actorRole", "applicationId", "action"},
		Properties: map[string]validation.Property{
			"actorId":   {Type: "string", MinLength: intPtr(1)},
			"actorRole": {Type: "string", Enum: []string{"CUSTOMER", "ADMIN", "FINANCIER", "SYSTEM"}},
			"applicationId": {
				Type:      "string",
				MinLength: intPtr(1),
			},
			"action": {
				Type: "string",
				Enum: []string{
					ActionSubmit, ActionAssignFinancier, ActionRequestCreditDecision,
					ActionResume, ActionReject, ActionCancel,
				},
			},
			"financierId": {Type: "string"},
			"toFinancier": {Type: "boolean"},
			"reason":      {Type: "string", MaxLength: intPtr(2000)},
		},
	}
}

func intPtr(i int) *int {
	return &i
}
