package models

import "time"

type Message struct {
	ID                 string    `json:"id"`
	ApplicationID      string    `json:"application_id"`
	SenderID           string    `json:"sender_id"`
	SenderRole         Role      `json:"sender_role"`
	Body               string    `json:"body"`
	IsInfoRequest      bool      `json:"is_info_request"`
	ParentMessageID    string    `json:"parent_message_id,omitempty"`
	RequestedDocuments []string  `json:"requested_documents,omitempty"`
	IsRead             bool      `json:"is_read"`
	CreatedAt          time.Time `json:"created_at"`
}

type ThreadStatus string

const (
	ThreadPending   ThreadStatus = "PENDING"
	ThreadResponded ThreadStatus = "RESPONDED"
)
