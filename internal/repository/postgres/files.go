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

// PostgresFileRepository implements the FileRepository interface using PostgreSQL.
// Rows carry a monotonically increasing position column so the flat listing
// preserves ingestion order; the tree builder depends on that ordering for
// stable sibling order.
type PostgresFileRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewFileRepository creates a new PostgresFileRepository
func NewFileRepository(config *RepositoryConfig) repositories.FileRepository {
	return &PostgresFileRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// ReplaceAll swaps out the whole listing for a repo. Reloading a repository
// must never mix stale entries with fresh ones, so delete and insert happen
// against the same executor; callers run this inside a transaction.
func (r *PostgresFileRepository) ReplaceAll(ctx context.Context, repoID string, entries []models.FileEntry, contents map[string]string) error {
	executor := GetExecutor(ctx, r.pool)

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE repo_id = $1`, r.tables.RepoFiles)
	if _, err := executor.Exec(ctx, deleteQuery, repoID); err != nil {
		return fmt.Errorf("clear repo files: %w", err)
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (repo_id, path, kind, size, content, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.tables.RepoFiles)

	now := time.Now().UTC()
	for i, entry := range entries {
		var content *string
		if entry.Kind == models.KindFile {
			c := contents[entry.Path]
			content = &c
		}
		createdAt := entry.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		_, err := executor.Exec(ctx, insertQuery,
			repoID,
			entry.Path,
			string(entry.Kind),
			entry.Size,
			content,
			i,
			createdAt,
		)
		if err != nil {
			return fmt.Errorf("insert file entry %q: %w", entry.Path, err)
		}
	}

	return nil
}

// ListEntries returns the flat listing in insertion order
func (r *PostgresFileRepository) ListEntries(ctx context.Context, repoID string) ([]models.FileEntry, error) {
	query := fmt.Sprintf(`
		SELECT repo_id, path, kind, size, created_at
		FROM %s
		WHERE repo_id = $1
		ORDER BY position ASC
	`, r.tables.RepoFiles)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, repoID)
	if err != nil {
		return nil, fmt.Errorf("list file entries: %w", err)
	}
	defer rows.Close()

	var entries []models.FileEntry
	for rows.Next() {
		var entry models.FileEntry
		var kind string
		err := rows.Scan(
			&entry.RepoID,
			&entry.Path,
			&kind,
			&entry.Size,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan file entry: %w", err)
		}
		entry.Kind = models.FileKind(kind)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file entries: %w", err)
	}

	return entries, nil
}

// GetEntry returns a single entry by exact path
func (r *PostgresFileRepository) GetEntry(ctx context.Context, repoID, path string) (*models.FileEntry, error) {
	query := fmt.Sprintf(`
		SELECT repo_id, path, kind, size, created_at
		FROM %s
		WHERE repo_id = $1 AND path = $2
	`, r.tables.RepoFiles)

	var entry models.FileEntry
	var kind string
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, repoID, path).Scan(
		&entry.RepoID,
		&entry.Path,
		&kind,
		&entry.Size,
		&entry.CreatedAt,
	)

	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("file %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get file entry: %w", err)
	}
	entry.Kind = models.FileKind(kind)

	return &entry, nil
}

// GetContent returns file content by path. Directories report NotFound:
// a content fetch only makes sense for files.
func (r *PostgresFileRepository) GetContent(ctx context.Context, repoID, path string) (string, error) {
	query := fmt.Sprintf(`
		SELECT content
		FROM %s
		WHERE repo_id = $1 AND path = $2 AND kind = 'file'
	`, r.tables.RepoFiles)

	var content *string
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, repoID, path).Scan(&content)

	if err != nil {
		if IsPgNoRowsError(err) {
			return "", fmt.Errorf("file %s: %w", path, domain.ErrNotFound)
		}
		return "", fmt.Errorf("get file content: %w", err)
	}
	if content == nil {
		return "", nil
	}

	return *content, nil
}

// ListContents returns all file bodies for a repo keyed by path.
// Directories are excluded.
func (r *PostgresFileRepository) ListContents(ctx context.Context, repoID string) (map[string]string, error) {
	query := fmt.Sprintf(`
		SELECT path, content
		FROM %s
		WHERE repo_id = $1 AND kind = 'file'
	`, r.tables.RepoFiles)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, repoID)
	if err != nil {
		return nil, fmt.Errorf("list file contents: %w", err)
	}
	defer rows.Close()

	contents := make(map[string]string)
	for rows.Next() {
		var path string
		var content *string
		if err := rows.Scan(&path, &content); err != nil {
			return nil, fmt.Errorf("scan file content: %w", err)
		}
		if content != nil {
			contents[path] = *content
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file contents: %w", err)
	}

	return contents, nil
}

// Insert adds one entry after initial ingestion, appending to the
// position sequence.
func (r *PostgresFileRepository) Insert(ctx context.Context, entry *models.FileEntry, content string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (repo_id, path, kind, size, content, position, created_at)
		VALUES ($1, $2, $3, $4, $5,
			(SELECT COALESCE(MAX(position), -1) + 1 FROM %s WHERE repo_id = $1),
			$6)
	`, r.tables.RepoFiles, r.tables.RepoFiles)

	var body *string
	if entry.Kind == models.KindFile {
		body = &content
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		entry.RepoID,
		entry.Path,
		string(entry.Kind),
		entry.Size,
		body,
		entry.CreatedAt,
	)
	if err != nil {
		if IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("path %q already exists", entry.Path),
				ResourceType: "file",
			}
		}
		return fmt.Errorf("insert file entry: %w", err)
	}

	return nil
}
