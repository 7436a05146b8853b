package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"repochat/internal/domain"
	"repochat/internal/domain/models"
	"repochat/internal/domain/repositories"
)

// PostgresMessageRepository implements the MessageRepository interface using
// PostgreSQL. The log is append-only: there is no update path that touches
// role, session or ordering, and no delete path at all.
type PostgresMessageRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewMessageRepository creates a new PostgresMessageRepository
func NewMessageRepository(config *RepositoryConfig) repositories.MessageRepository {
	return &PostgresMessageRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create appends a message to a session's log
func (r *PostgresMessageRepository) Create(ctx context.Context, msg *models.Message) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (session_id, role, content, status, truncated, error, model, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, r.tables.Messages)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		msg.SessionID,
		msg.Role,
		msg.Content,
		msg.Status,
		msg.Truncated,
		msg.Error,
		msg.Model,
		msg.CreatedAt,
		msg.CompletedAt,
	).Scan(&msg.ID, &msg.CreatedAt)

	if err != nil {
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("session %s: %w", msg.SessionID, domain.ErrNotFound)
		}
		// The one-in-flight index trips if two writers race past the
		// session lock somehow.
		if IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      "a response is already streaming in this session",
				ResourceType: "session",
				ResourceID:   msg.SessionID,
			}
		}
		return fmt.Errorf("create message: %w", err)
	}

	return nil
}

// GetByID returns a message scoped to the owning user via the session join
func (r *PostgresMessageRepository) GetByID(ctx context.Context, messageID, userID string) (*models.Message, error) {
	query := fmt.Sprintf(`
		SELECT m.id, m.session_id, m.role, m.content, m.status, m.truncated,
		       m.error, m.model, m.created_at, m.completed_at
		FROM %s m
		JOIN %s s ON s.id = m.session_id
		WHERE m.id = $1 AND s.user_id = $2 AND s.deleted_at IS NULL
	`, r.tables.Messages, r.tables.Sessions)

	var msg models.Message
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, messageID, userID).Scan(
		&msg.ID,
		&msg.SessionID,
		&msg.Role,
		&msg.Content,
		&msg.Status,
		&msg.Truncated,
		&msg.Error,
		&msg.Model,
		&msg.CreatedAt,
		&msg.CompletedAt,
	)

	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("message %s: %w", messageID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get message: %w", err)
	}

	return &msg, nil
}

// ListBySession returns the session's messages in append order
func (r *PostgresMessageRepository) ListBySession(ctx context.Context, sessionID, userID string) ([]models.Message, error) {
	query := fmt.Sprintf(`
		SELECT m.id, m.session_id, m.role, m.content, m.status, m.truncated,
		       m.error, m.model, m.created_at, m.completed_at
		FROM %s m
		JOIN %s s ON s.id = m.session_id
		WHERE m.session_id = $1 AND s.user_id = $2 AND s.deleted_at IS NULL
		ORDER BY m.created_at ASC, m.id ASC
	`, r.tables.Messages, r.tables.Sessions)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.ID,
			&msg.SessionID,
			&msg.Role,
			&msg.Content,
			&msg.Status,
			&msg.Truncated,
			&msg.Error,
			&msg.Model,
			&msg.CreatedAt,
			&msg.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// Commit finalizes a streamed assistant message in one update
func (r *PostgresMessageRepository) Commit(ctx context.Context, messageID, content, status string, truncated bool, errMsg *string, completedAt time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET content = $2, status = $3, truncated = $4, error = $5, completed_at = $6
		WHERE id = $1
	`, r.tables.Messages)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, messageID, content, status, truncated, errMsg, completedAt)
	if err != nil {
		return fmt.Errorf("commit message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("message %s: %w", messageID, domain.ErrNotFound)
	}

	return nil
}

// CountInFlight counts assistant messages still pending or streaming
func (r *PostgresMessageRepository) CountInFlight(ctx context.Context, sessionID string) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM %s
		WHERE session_id = $1 AND role = 'assistant' AND status IN ('pending', 'streaming')
	`, r.tables.Messages)

	var count int
	executor := GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count in-flight messages: %w", err)
	}

	return count, nil
}
