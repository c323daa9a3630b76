// Package sandbox confines every file operation in codeswarm to a single
// root directory. Nothing in the repository reads or writes a path that has
// not passed the Guard first.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SecurityError reports an attempt to touch a path outside the sandbox.
// It is always fatal to the operation, never retried, never suppressed.
type SecurityError struct {
	Op   string // "read", "write", "resolve"
	Path string // path as requested by the caller
	Root string // sandbox root
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("security violation: %s of %q escapes sandbox %q", e.Op, e.Path, e.Root)
}

// Guard validates paths against a resolved sandbox root.
// Resolution is symlink-aware on both sides so a link inside the sandbox
// pointing outside it is rejected the same as a plain ../ traversal.
type Guard struct {
	root string // absolute, symlink-resolved, no trailing separator
}

// NewGuard creates a guard for root, creating the directory if needed.
func NewGuard(root string) (*Guard, error) {
	if root == "" {
		return nil, fmt.Errorf("sandbox root required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sandbox root %s: %w", root, err)
	}
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sandbox root %s: %w", root, err)
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to absolutize sandbox root %s: %w", resolved, err)
	}
	return &Guard{root: filepath.Clean(abs)}, nil
}

// Root returns the resolved sandbox root.
func (g *Guard) Root() string { return g.root }

// Resolve returns the absolute, symlink-resolved form of path if it lies
// inside the sandbox, or a *SecurityError. Relative paths are interpreted
// relative to the sandbox root. The boundary check is separator-exact:
// /sandbox_evil does not match /sandbox.
func (g *Guard) Resolve(op, path string) (string, error) {
	if path == "" {
		return "", &SecurityError{Op: op, Path: path, Root: g.root}
	}

	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(g.root, candidate)
	}

	resolved, err := resolveSymlinks(filepath.Clean(candidate))
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	if resolved != g.root && !strings.HasPrefix(resolved, g.root+string(filepath.Separator)) {
		return "", &SecurityError{Op: op, Path: path, Root: g.root}
	}
	return resolved, nil
}

// ValidateRead resolves path for reading.
func (g *Guard) ValidateRead(path string) (string, error) {
	return g.Resolve("read", path)
}

// ValidateWrite resolves path for writing.
func (g *Guard) ValidateWrite(path string) (string, error) {
	return g.Resolve("write", path)
}

// resolveSymlinks evaluates symlinks for a path that may not exist yet
// (a write target). The deepest existing ancestor is resolved and the
// non-existent tail re-joined, so a symlinked parent cannot smuggle a
// write outside the root.
func resolveSymlinks(path string) (string, error) {
	remainder := ""
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Clean(filepath.Join(resolved, remainder)), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			// Hit the filesystem root without finding an existing ancestor.
			return filepath.Clean(filepath.Join(current, remainder)), nil
		}
		remainder = filepath.Join(filepath.Base(current), remainder)
		current = parent
	}
}
