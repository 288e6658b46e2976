package models

import "time"

// SessionStatus is the per-session upload state machine. Ask, inspect and
// vision-check are valid only while the session is ready.
type SessionStatus string

const (
	SessionEmpty     SessionStatus = "empty"
	SessionIngesting SessionStatus = "ingesting"
	SessionReady     SessionStatus = "ready"
	SessionFailed    SessionStatus = "failed"
)

// Session is the rendered view of one conversation session: the current
// video handle and the ordered transcript. Credentials are held separately
// and never serialized.
type Session struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Model      string        `json:"model"`
	Status     SessionStatus `json:"status"`
	SourceName string        `json:"source_name,omitempty"`
	Video      *MediaHandle  `json:"video,omitempty"`
	Turns      []Turn        `json:"turns"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}
