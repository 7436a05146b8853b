package repositories

import (
	"context"
	"time"

	"repochat/internal/domain/models"
)

// SessionRepository persists chat sessions.
type SessionRepository interface {
	// Create inserts a new session row and fills in its ID.
	Create(ctx context.Context, session *models.Session) error

	// GetByID returns a session owned by userID.
	// Returns domain.ErrNotFound if missing or soft-deleted.
	GetByID(ctx context.Context, sessionID, userID string) (*models.Session, error)

	// ListByUser returns the user's sessions, most recently updated first.
	ListByUser(ctx context.Context, userID string) ([]models.Session, error)

	// UpdateTitle renames a session.
	UpdateTitle(ctx context.Context, sessionID, userID, title string) error

	// SoftDelete marks a session deleted. Its messages stay in place but
	// become unreachable; this is the only way conversation history is
	// ever removed.
	SoftDelete(ctx context.Context, sessionID, userID string) error

	// Touch bumps updated_at, used when a message lands in the session.
	Touch(ctx context.Context, sessionID string) error

	// Lock takes the session row lock for the duration of the surrounding
	// transaction, serializing concurrent writers on the session. Only
	// meaningful inside a transaction.
	Lock(ctx context.Context, sessionID string) error
}

// MessageRepository persists the append-only conversation log.
type MessageRepository interface {
	// Create appends a message to a session's log and fills in its ID.
	// Existing entries are never reordered.
	Create(ctx context.Context, msg *models.Message) error

	// GetByID returns a message by ID, scoped to the owning user via the
	// session join.
	GetByID(ctx context.Context, messageID, userID string) (*models.Message, error)

	// ListBySession returns the session's messages in append order.
	ListBySession(ctx context.Context, sessionID, userID string) ([]models.Message, error)

	// Commit finalizes a streamed assistant message: stores the full
	// accumulated content, final status, truncation flag and optional
	// error in one update.
	Commit(ctx context.Context, messageID, content, status string, truncated bool, errMsg *string, completedAt time.Time) error

	// CountInFlight returns how many assistant messages in the session
	// are still pending or streaming. Used to enforce one outstanding
	// query per session.
	CountInFlight(ctx context.Context, sessionID string) (int, error)
}
