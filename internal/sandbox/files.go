package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"codeswarm/internal/logging"
)

// BackupSuffix is appended to a file name when a backup is taken before a
// modification.
const BackupSuffix = ".backup"

// ReadFile reads a file after guard validation.
func (g *Guard) ReadFile(path string) (string, error) {
	resolved, err := g.ValidateRead(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		logging.Sandbox("read failed: %s: %v", resolved, err)
		return "", fmt.Errorf("error reading file %s: %w", path, err)
	}
	logging.Get(logging.CategorySandbox).Debug("read %s (%d bytes)", resolved, len(data))
	return string(data), nil
}

// WriteFile writes content after guard validation, creating parent
// directories inside the sandbox as needed.
func (g *Guard) WriteFile(path, content string) error {
	resolved, err := g.ValidateWrite(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return fmt.Errorf("error creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0644); err != nil {
		logging.Sandbox("write failed: %s: %v", resolved, err)
		return fmt.Errorf("error writing file %s: %w", path, err)
	}
	logging.Sandbox("wrote %s (%d bytes)", resolved, len(content))
	return nil
}

// BackupFile copies a file to <path>.backup before modification.
// Returns the backup path, or "" when the source does not exist.
func (g *Guard) BackupFile(path string) (string, error) {
	resolved, err := g.ValidateRead(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(resolved); os.IsNotExist(err) {
		return "", nil
	}
	content, err := g.ReadFile(path)
	if err != nil {
		return "", err
	}
	backupPath := resolved + BackupSuffix
	if err := g.WriteFile(backupPath, content); err != nil {
		return "", err
	}
	return backupPath, nil
}

// ListSourceFiles returns files under the sandbox root matching the glob
// pattern (e.g. "*.py"), recursively, sorted for deterministic processing.
// Cache and virtualenv directories, and backups this tool created, are
// skipped.
func (g *Guard) ListSourceFiles(pattern string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(g.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			switch d.Name() {
			case "__pycache__", "venv", ".git", "node_modules":
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, BackupSuffix) {
			return nil
		}
		matched, err := filepath.Match(pattern, d.Name())
		if err != nil {
			return fmt.Errorf("bad source glob %q: %w", pattern, err)
		}
		if matched {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error listing files in %s: %w", g.root, err)
	}
	sort.Strings(files)
	return files, nil
}

// FileExists reports whether path resolves to an existing regular file
// inside the sandbox.
func (g *Guard) FileExists(path string) bool {
	resolved, err := g.ValidateRead(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(resolved)
	return err == nil && info.Mode().IsRegular()
}
