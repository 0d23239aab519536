package models

import "time"

type Notification struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	Link          string     `json:"link,omitempty"`
	Type          string     `json:"notification_type,omitempty"`
	ReferenceType EntityType `json:"reference_type,omitempty"`
	ReferenceID   string     `json:"reference_id,omitempty"`
	DedupeKey     string     `json:"dedupe_key"`
	IsRead        bool       `json:"is_read"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Profile is the portal's user directory row.
type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name,omitempty"`
	Role        Role      `json:"role"`
	CompanyName string    `json:"company_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
