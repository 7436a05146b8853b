package ingest

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"repochat/internal/domain"
)

// Cloner shallow-clones public GitHub repositories into temp directories
// using the git CLI.
type Cloner struct {
	gitBinary    string
	cloneTimeout time.Duration
}

// NewCloner creates a cloner. gitBinary defaults to "git" when empty.
func NewCloner(gitBinary string, cloneTimeout time.Duration) *Cloner {
	if gitBinary == "" {
		gitBinary = "git"
	}
	if cloneTimeout <= 0 {
		cloneTimeout = 120 * time.Second
	}
	return &Cloner{
		gitBinary:    gitBinary,
		cloneTimeout: cloneTimeout,
	}
}

// ValidateRepoURL checks that the URL points at a GitHub repository and
// returns the "owner/name" repo name.
func ValidateRepoURL(repoURL string) (string, error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", &domain.ValidationError{Message: "invalid repository URL"}
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", &domain.ValidationError{Message: "repository URL must use http or https"}
	}
	if u.Host != "github.com" && u.Host != "www.github.com" {
		return "", &domain.ValidationError{Message: "only github.com repositories are supported"}
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", &domain.ValidationError{Message: "repository URL must be github.com/<owner>/<repo>"}
	}
	name := parts[0] + "/" + strings.TrimSuffix(parts[1], ".git")
	return name, nil
}

// Clone shallow-clones the repository into a fresh temp directory and
// returns the checkout path plus a cleanup func. Clone failures are
// transient: the upstream host or network is at fault, not the caller.
func (c *Cloner) Clone(ctx context.Context, repoURL string) (string, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, c.cloneTimeout)
	defer cancel()

	dir, err := os.MkdirTemp("", "repochat-clone-*")
	if err != nil {
		return "", nil, fmt.Errorf("creating clone dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	cmd := exec.CommandContext(ctx, c.gitBinary, "clone", "--depth", "1", "--single-branch", repoURL, dir)
	// Never prompt for credentials; private repos should fail fast.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		cleanup()
		if ctx.Err() == context.DeadlineExceeded {
			return "", nil, &domain.TransientError{
				Message: "repository clone timed out",
				Cause:   ctx.Err(),
			}
		}
		return "", nil, &domain.TransientError{
			Message: fmt.Sprintf("git clone failed: %s", summarizeGitError(stderr.String())),
			Cause:   err,
		}
	}

	return dir, cleanup, nil
}

// summarizeGitError extracts the last non-empty stderr line, which is
// where git puts the actual failure reason.
func summarizeGitError(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			return line
		}
	}
	return "unknown error"
}
