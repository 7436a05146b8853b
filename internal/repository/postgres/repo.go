package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"repochat/internal/domain"
	"repochat/internal/domain/models"
	"repochat/internal/domain/repositories"
)

// PostgresRepoRepository implements the RepoRepository interface using PostgreSQL
type PostgresRepoRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewRepoRepository creates a new PostgresRepoRepository
func NewRepoRepository(config *RepositoryConfig) repositories.RepoRepository {
	return &PostgresRepoRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a new repository row
func (r *PostgresRepoRepository) Create(ctx context.Context, repo *models.Repository) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, url, name, file_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, r.tables.Repos)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		repo.UserID,
		repo.URL,
		repo.Name,
		repo.FileCount,
		repo.CreatedAt,
		repo.UpdatedAt,
	).Scan(&repo.ID, &repo.CreatedAt, &repo.UpdatedAt)

	if err != nil {
		if IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("repository %q already loaded", repo.URL),
				ResourceType: "repo",
			}
		}
		return fmt.Errorf("create repo: %w", err)
	}

	return nil
}

// GetByID retrieves a repository by ID
func (r *PostgresRepoRepository) GetByID(ctx context.Context, repoID, userID string) (*models.Repository, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, url, name, file_count, created_at, updated_at, deleted_at
		FROM %s
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, r.tables.Repos)

	var repo models.Repository
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, repoID, userID).Scan(
		&repo.ID,
		&repo.UserID,
		&repo.URL,
		&repo.Name,
		&repo.FileCount,
		&repo.CreatedAt,
		&repo.UpdatedAt,
		&repo.DeletedAt,
	)

	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("repo %s: %w", repoID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get repo: %w", err)
	}

	return &repo, nil
}

// GetByURL retrieves the user's repository for a clone URL
func (r *PostgresRepoRepository) GetByURL(ctx context.Context, url, userID string) (*models.Repository, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, url, name, file_count, created_at, updated_at, deleted_at
		FROM %s
		WHERE url = $1 AND user_id = $2 AND deleted_at IS NULL
	`, r.tables.Repos)

	var repo models.Repository
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, url, userID).Scan(
		&repo.ID,
		&repo.UserID,
		&repo.URL,
		&repo.Name,
		&repo.FileCount,
		&repo.CreatedAt,
		&repo.UpdatedAt,
		&repo.DeletedAt,
	)

	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("repo for %s: %w", url, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get repo by url: %w", err)
	}

	return &repo, nil
}

// ListByUser retrieves all repositories for a user
func (r *PostgresRepoRepository) ListByUser(ctx context.Context, userID string) ([]models.Repository, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, url, name, file_count, created_at, updated_at, deleted_at
		FROM %s
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY updated_at DESC
	`, r.tables.Repos)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list repos: %w", err)
	}
	defer rows.Close()

	var repos []models.Repository
	for rows.Next() {
		var repo models.Repository
		err := rows.Scan(
			&repo.ID,
			&repo.UserID,
			&repo.URL,
			&repo.Name,
			&repo.FileCount,
			&repo.CreatedAt,
			&repo.UpdatedAt,
			&repo.DeletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan repo: %w", err)
		}
		repos = append(repos, repo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repos: %w", err)
	}

	return repos, nil
}

// UpdateFileCount records the file count after (re)ingestion
func (r *PostgresRepoRepository) UpdateFileCount(ctx context.Context, repoID string, count int) error {
	query := fmt.Sprintf(`
		UPDATE %s SET file_count = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`, r.tables.Repos)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, repoID, count)
	if err != nil {
		return fmt.Errorf("update file count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo %s: %w", repoID, domain.ErrNotFound)
	}

	return nil
}
