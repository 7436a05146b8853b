package repositories

import (
	"context"

	"repochat/internal/domain/models"
)

// RepoRepository persists loaded repositories.
type RepoRepository interface {
	// Create inserts a new repository row and fills in its ID.
	Create(ctx context.Context, repo *models.Repository) error

	// GetByID returns a repository owned by userID.
	// Returns domain.ErrNotFound if missing or soft-deleted.
	GetByID(ctx context.Context, repoID, userID string) (*models.Repository, error)

	// GetByURL returns the user's repository for a given clone URL.
	// Returns domain.ErrNotFound when the URL has not been loaded.
	GetByURL(ctx context.Context, url, userID string) (*models.Repository, error)

	// ListByUser returns the user's repositories, most recently updated first.
	ListByUser(ctx context.Context, userID string) ([]models.Repository, error)

	// UpdateFileCount records the number of files after (re)ingestion.
	UpdateFileCount(ctx context.Context, repoID string, count int) error
}

// FileRepository persists the flat file listing and contents of a repository.
type FileRepository interface {
	// ReplaceAll deletes all existing entries for the repo and inserts the
	// given ones. Used on (re)ingestion so a reloaded repo never mixes old
	// and new listings.
	ReplaceAll(ctx context.Context, repoID string, entries []models.FileEntry, contents map[string]string) error

	// ListEntries returns the flat listing in insertion order. The tree
	// view is built from this; insertion order determines sibling order.
	ListEntries(ctx context.Context, repoID string) ([]models.FileEntry, error)

	// GetEntry returns a single entry by exact path.
	// Returns domain.ErrNotFound when the path has no entry.
	GetEntry(ctx context.Context, repoID, path string) (*models.FileEntry, error)

	// GetContent returns file content by path.
	// Returns domain.ErrNotFound for missing paths and for directories.
	GetContent(ctx context.Context, repoID, path string) (string, error)

	// ListContents returns all file bodies keyed by path. Used to build
	// query context; directories are excluded.
	ListContents(ctx context.Context, repoID string) (map[string]string, error)

	// Insert adds one entry (with optional content for files). Used for
	// intermediate directories and created files after initial ingestion.
	Insert(ctx context.Context, entry *models.FileEntry, content string) error
}
