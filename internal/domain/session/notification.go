// internal/domain/session/notification.go

package session

import (
	"time"

	"locale/internal/domain/event"
)

// NotificationType names a search lifecycle step
type NotificationType string

const (
	SearchStarted   NotificationType = "search.started"
	SearchCompleted NotificationType = "search.completed"
	SearchFailed    NotificationType = "search.failed"
	ChatReplied     NotificationType = "chat.replied"
)

// Notification is pushed to subscribers of a session
type Notification struct {
	Type      NotificationType `json:"type"`
	SessionID string           `json:"session_id"`
	Token     uint64           `json:"token,omitempty"`
	Mode      event.Mode       `json:"mode,omitempty"`
	Events    int              `json:"events,omitempty"`
	Skipped   int              `json:"skipped,omitempty"`
	Kind      event.ErrorKind  `json:"kind,omitempty"`
	Error     string           `json:"error,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}
