package models

import "time"

// Message status values. A message moves streaming -> complete on success;
// cancelled and error both commit whatever content had accumulated.
const (
	MessageStatusPending   = "pending"
	MessageStatusStreaming = "streaming"
	MessageStatusComplete  = "complete"
	MessageStatusCancelled = "cancelled"
	MessageStatusError     = "error"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session represents a chat session bound to one loaded repository.
type Session struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"user_id" db:"user_id"`
	RepoID    string     `json:"repo_id" db:"repo_id"`
	Title     string     `json:"title" db:"title"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Message is one entry in a session's append-only conversation log.
// Entries are never reordered or individually deleted; removing history
// means soft-deleting the whole session.
type Message struct {
	ID          string     `json:"id" db:"id"`
	SessionID   string     `json:"session_id" db:"session_id"`
	Role        string     `json:"role" db:"role"`
	Content     string     `json:"content" db:"content"`
	Status      string     `json:"status" db:"status"`
	Truncated   bool       `json:"truncated" db:"truncated"`
	Error       *string    `json:"error,omitempty" db:"error"`
	Model       *string    `json:"model,omitempty" db:"model"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}
