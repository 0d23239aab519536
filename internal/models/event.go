package models

import "time"

type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

var SystemActor = Actor{ID: "system", Role: RoleSystem}

// TransitionEvent is emitted once per applied status write, cascades
// included.
type TransitionEvent struct {
	ID            string     `json:"id"`
	EntityType    EntityType `json:"entityType"`
	EntityID      string     `json:"entityId"`
	ApplicationID string     `json:"applicationId"`
	From          Status     `json:"from"`
	To            Status     `json:"to"`
	Actor         Actor      `json:"actor"`
	Edge          string     `json:"edge"`
	Cascade       bool       `json:"cascade"`
	OccurredAt    time.Time  `json:"occurredAt"`
}
