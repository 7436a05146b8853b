package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"repochat/internal/config"
	"repochat/internal/domain"
	"repochat/internal/domain/models"
	"repochat/internal/domain/repositories"
	"repochat/internal/repotree"
)

// Service loads GitHub repositories into the store and serves their file
// trees and contents.
type Service struct {
	repos  repositories.RepoRepository
	files  repositories.FileRepository
	txMgr  repositories.TransactionManager
	cloner *Cloner
	rules  *Rules
	logger *slog.Logger
}

// NewService creates the ingestion service.
func NewService(
	repos repositories.RepoRepository,
	files repositories.FileRepository,
	txMgr repositories.TransactionManager,
	cloner *Cloner,
	rules *Rules,
	logger *slog.Logger,
) *Service {
	return &Service{
		repos:  repos,
		files:  files,
		txMgr:  txMgr,
		cloner: cloner,
		rules:  rules,
		logger: logger,
	}
}

// LoadRepo clones a repository, extracts its text files, and replaces any
// previously stored listing for the same URL. Reloading an already loaded
// URL is not an error; it refreshes the stored copy.
func (s *Service) LoadRepo(ctx context.Context, userID, repoURL string) (*models.Repository, error) {
	name, err := ValidateRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	checkout, cleanup, err := s.cloner.Clone(ctx, repoURL)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	scanned, err := NewScanner(s.rules).Scan(checkout)
	if err != nil {
		return nil, err
	}
	if len(scanned) == 0 {
		return nil, &domain.ValidationError{Message: "no ingestible text files found in repository"}
	}

	entries := make([]models.FileEntry, 0, len(scanned))
	contents := make(map[string]string, len(scanned))
	for _, f := range scanned {
		entries = append(entries, models.FileEntry{
			Path: f.Path,
			Kind: models.KindFile,
			Size: int(f.Size),
		})
		contents[f.Path] = f.Content
	}

	// The listing must produce a coherent tree before it is persisted.
	treeEntries := make([]repotree.Entry, 0, len(entries))
	for _, e := range entries {
		treeEntries = append(treeEntries, repotree.Entry{Path: e.Path, Kind: e.Kind})
	}
	if _, err := repotree.Build(treeEntries); err != nil {
		return nil, fmt.Errorf("cloned listing does not form a tree: %w", err)
	}

	var repo *models.Repository
	err = s.txMgr.ExecTx(ctx, func(txCtx context.Context) error {
		existing, err := s.repos.GetByURL(txCtx, repoURL, userID)
		switch {
		case err == nil:
			repo = existing
		case errors.Is(err, domain.ErrNotFound):
			now := time.Now().UTC()
			repo = &models.Repository{
				UserID:    userID,
				URL:       repoURL,
				Name:      name,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.repos.Create(txCtx, repo); err != nil {
				return err
			}
		default:
			return err
		}

		if err := s.files.ReplaceAll(txCtx, repo.ID, entries, contents); err != nil {
			return err
		}
		return s.repos.UpdateFileCount(txCtx, repo.ID, len(entries))
	})
	if err != nil {
		return nil, err
	}
	repo.FileCount = len(entries)

	s.logger.Info("repository loaded",
		"repo_id", repo.ID,
		"name", repo.Name,
		"files", len(entries))
	return repo, nil
}

// ListRepos returns the user's loaded repositories.
func (s *Service) ListRepos(ctx context.Context, userID string) ([]models.Repository, error) {
	return s.repos.ListByUser(ctx, userID)
}

// GetRepo returns a single repository owned by the user.
func (s *Service) GetRepo(ctx context.Context, repoID, userID string) (*models.Repository, error) {
	return s.repos.GetByID(ctx, repoID, userID)
}

// GetTree builds the repository's file tree from its stored listing.
// Stored insertion order determines sibling order.
func (s *Service) GetTree(ctx context.Context, repoID, userID string) (repotree.Forest, error) {
	if _, err := s.repos.GetByID(ctx, repoID, userID); err != nil {
		return nil, err
	}

	entries, err := s.files.ListEntries(ctx, repoID)
	if err != nil {
		return nil, err
	}

	treeEntries := make([]repotree.Entry, 0, len(entries))
	for _, e := range entries {
		treeEntries = append(treeEntries, repotree.Entry{Path: e.Path, Kind: e.Kind})
	}
	forest, err := repotree.Build(treeEntries)
	if err != nil {
		// Storage enforces uniqueness and inserts are validated, so a
		// malformed stored listing is a bug, not user error.
		return nil, fmt.Errorf("stored listing for repo %s does not form a tree: %w", repoID, err)
	}
	return forest, nil
}

// GetFileContent returns a stored file body by path.
func (s *Service) GetFileContent(ctx context.Context, repoID, userID, path string) (*models.FileContent, error) {
	if _, err := s.repos.GetByID(ctx, repoID, userID); err != nil {
		return nil, err
	}

	content, err := s.files.GetContent(ctx, repoID, path)
	if err != nil {
		return nil, err
	}
	return &models.FileContent{Path: path, Content: content}, nil
}

// CreateFileRequest is a request to add a generated file to a loaded
// repository's listing.
type CreateFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Validate checks request fields against the configured limits.
func (r CreateFileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path,
			validation.Required,
			validation.Length(1, config.MaxPathLength)),
		validation.Field(&r.Content,
			validation.Length(0, config.MaxCreatedFileBytes)),
	)
}

// CreateFile adds a generated file to the repository listing, creating any
// intermediate directories. The path must not collide with an existing
// entry of a different kind, and creating the same file twice is a
// conflict.
func (s *Service) CreateFile(ctx context.Context, repoID, userID string, req CreateFileRequest) (*models.FileEntry, error) {
	if err := req.Validate(); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}
	path := strings.Trim(strings.TrimSpace(req.Path), "/")

	if _, err := s.repos.GetByID(ctx, repoID, userID); err != nil {
		return nil, err
	}

	entries, err := s.files.ListEntries(ctx, repoID)
	if err != nil {
		return nil, err
	}
	treeEntries := make([]repotree.Entry, 0, len(entries))
	for _, e := range entries {
		treeEntries = append(treeEntries, repotree.Entry{Path: e.Path, Kind: e.Kind})
	}
	forest, err := repotree.Build(treeEntries)
	if err != nil {
		return nil, fmt.Errorf("stored listing for repo %s does not form a tree: %w", repoID, err)
	}

	if existing, ok := repotree.Find(forest, path); ok {
		if existing.Kind == models.KindFile {
			return nil, &domain.ConflictError{
				Message:      fmt.Sprintf("file %q already exists", path),
				ResourceType: "file",
				ResourceID:   path,
			}
		}
		return nil, &repotree.KindConflictError{
			Path:      path,
			Existing:  existing.Kind,
			Requested: models.KindFile,
		}
	}

	// Validates segments and kind compatibility along the whole path.
	if _, err := repotree.Insert(forest, path, models.KindFile); err != nil {
		return nil, err
	}

	entry := &models.FileEntry{
		RepoID: repoID,
		Path:   path,
		Kind:   models.KindFile,
		Size:   len(req.Content),
	}
	err = s.txMgr.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.files.Insert(txCtx, entry, req.Content); err != nil {
			return err
		}
		return s.repos.UpdateFileCount(txCtx, repoID, len(entries)+1)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("file created", "repo_id", repoID, "path", path)
	return entry, nil
}
