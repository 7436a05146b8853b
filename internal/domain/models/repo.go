package models

import "time"

// FileKind distinguishes directory entries from file entries in a
// repository listing.
type FileKind string

const (
	KindDirectory FileKind = "directory"
	KindFile      FileKind = "file"
)

// Valid reports whether k is one of the two known kinds.
func (k FileKind) Valid() bool {
	return k == KindDirectory || k == KindFile
}

// Repository represents one loaded GitHub repository owned by a user.
type Repository struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"user_id" db:"user_id"`
	URL       string     `json:"url" db:"url"`
	Name      string     `json:"name" db:"name"`
	FileCount int        `json:"file_count" db:"file_count"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// FileEntry is a single flat listing record for a repository: a
// '/'-separated path plus its kind. The tree view is derived from these;
// they are the source of truth for both lookup and content fetch.
type FileEntry struct {
	RepoID    string    `json:"repo_id" db:"repo_id"`
	Path      string    `json:"path" db:"path"`
	Kind      FileKind  `json:"kind" db:"kind"`
	Size      int       `json:"size" db:"size"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FileContent is a fetched file body.
type FileContent struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}
