// Package validate provides input validation for branchsync.
package validate

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/jayteealao/branchsync/internal/errors"
)

// forbiddenRefChars are characters git never allows in a ref name.
var forbiddenRefChars = []string{" ", "\t", "\n", "\r", "^", "~", ":", "?", "*", "[", "\\"}

// GitRef validates a git reference (tag, branch, remote-tracking ref or SHA).
func GitRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("git ref cannot be empty")
	}

	for _, char := range forbiddenRefChars {
		if strings.Contains(ref, char) {
			return fmt.Errorf("git ref contains invalid character: %q", char)
		}
	}

	// Check for double dots (range notation not allowed as a ref)
	if strings.Contains(ref, "..") {
		return fmt.Errorf("git ref cannot contain '..'")
	}

	if strings.Contains(ref, "@{") {
		return fmt.Errorf("git ref cannot contain '@{'")
	}

	for _, r := range ref {
		if unicode.IsControl(r) {
			return fmt.Errorf("git ref contains a control character")
		}
	}

	return nil
}

// BranchName validates a local branch name, following the rules of
// git check-ref-format --branch.
func BranchName(name string) error {
	if err := GitRef(name); err != nil {
		return fmt.Errorf("%w: %q: %v", errors.ErrInvalidBranchName, name, err)
	}

	switch {
	case strings.HasPrefix(name, "-"):
		return fmt.Errorf("%w: %q: cannot start with '-'", errors.ErrInvalidBranchName, name)
	case strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/"):
		return fmt.Errorf("%w: %q: cannot start or end with '/'", errors.ErrInvalidBranchName, name)
	case strings.Contains(name, "//"):
		return fmt.Errorf("%w: %q: cannot contain '//'", errors.ErrInvalidBranchName, name)
	case strings.HasSuffix(name, ".lock") || strings.HasSuffix(name, "."):
		return fmt.Errorf("%w: %q: cannot end with '.lock' or '.'", errors.ErrInvalidBranchName, name)
	case name == "@" || name == "HEAD":
		return fmt.Errorf("%w: %q: reserved name", errors.ErrInvalidBranchName, name)
	}

	return nil
}

// RemoteName validates a remote name such as "origin" or "upstream".
func RemoteName(name string) error {
	if err := BranchName(name); err != nil {
		return err
	}
	if strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q: remote names cannot contain '/'", errors.ErrInvalidBranchName, name)
	}
	return nil
}

// RepoPath validates a local working copy path.
func RepoPath(path string) error {
	if path == "" {
		return fmt.Errorf("repository path cannot be empty")
	}

	expandedPath, err := ExpandPath(path)
	if err != nil {
		return fmt.Errorf("failed to expand path: %w", err)
	}

	info, err := os.Stat(expandedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("path does not exist: %s", path)
		}
		return fmt.Errorf("failed to stat path: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	// A working copy has a .git directory, or a .git file for linked worktrees
	if _, err := os.Stat(filepath.Join(expandedPath, ".git")); os.IsNotExist(err) {
		return errors.ErrNotGitRepo
	}

	return nil
}

// WebhookURL validates a notification endpoint URL.
func WebhookURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("webhook URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (use http or https)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("URL missing host")
	}

	return nil
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
