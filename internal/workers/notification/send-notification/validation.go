package sendnotification

import "financing-portal/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"applicationId", "title", "recipients"},
		Properties: map[string]validation.Property{
			"eventId":       {Type: "string"},
			"applicationId": {Type: "string", MinLength: intPtr(1)},
			"title": {
				Type:      "string",
				MinLength: intPtr(1),
				MaxLength: intPtr(200),
			},
			"message":          {Type: "string", MaxLength: intPtr(5000)},
			"notificationType": {Type: "string"},
			"link":             {Type: "string"},
			"recipients": {
				Type:     "array",
				MinItems: intPtr(1),
				Items: &validation.Property{
					Type: "object",
					Properties: map[string]validation.Property{
						"userId":        {Type: "string"},
						"customer":      {Type: "boolean"},
						"role":          {Type: "string", Enum: []string{"CUSTOMER", "ADMIN", "FINANCIER"}},
						"excludeUserId": {Type: "string"},
						"email":         {Type: "boolean"},
					},
				},
			},
			"email": {
				Type:     "object",
				Required: []string{"kind"},
				Properties: map[string]validation.Property{
					"kind": {
						Type: "string",
						Enum: []string{"OFFER_SENT", "INFO_REQUEST", "CONTRACT_SENT", "REJECTED", "MESSAGE", "GENERIC"},
					},
					"subject": {Type: "string"},
					"body":    {Type: "string"},
				},
			},
		},
	}
}

func intPtr(i int) *int {
	return &i
}
