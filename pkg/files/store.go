// Package files serves the documents the indexer reads and provides a client for them.
package files

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"
)

const DefaultMaxReadBytes = 4 * 1024 * 1024

// Store reads documents from a single base directory.
type Store struct {
	root         string
	maxReadBytes int
}

// NewStore resolves baseDir and creates it when missing.
func NewStore(baseDir string, maxReadBytes int) (*Store, error) {
	trimmed := strings.TrimSpace(baseDir)
	if trimmed == "" {
		return nil, NewError(ErrorInvalidName, "base directory must not be empty")
	}

	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}
	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, NormalizeIOError(err, "resolve base directory")
	}

	if maxReadBytes <= 0 {
		maxReadBytes = DefaultMaxReadBytes
	}

	return &Store{root: filepath.Clean(resolved), maxReadBytes: maxReadBytes}, nil
}

// Root returns the resolved base directory.
func (s *Store) Root() string {
	return s.root
}

// List returns the names of regular files in the base directory, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, NormalizeIOError(err, "list directory failed")
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		names = append(names, entry.Name())
	}
	slices.Sort(names)

	return names, nil
}

// Read returns the UTF-8 content of the named document.
func (s *Store) Read(ctx context.Context, name string) (string, error) {
	resolvedPath, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := checkContext(ctx); err != nil {
		return "", err
	}

	info, err := os.Stat(resolvedPath)
	if err != nil {
		return "", NormalizeIOError(err, "stat failed")
	}
	if !info.Mode().IsRegular() {
		return "", NewError(ErrorNotFound, "not a regular file")
	}
	if info.Size() > int64(s.maxReadBytes) {
		return "", NewError(ErrorTooLarge, fmt.Sprintf("file exceeds max_read_bytes (%d)", s.maxReadBytes))
	}

	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		return "", NormalizeIOError(err, "read failed")
	}
	if err := ensureText(content); err != nil {
		return "", err
	}

	return string(content), nil
}

// resolve maps a document name to a path that stays inside the base directory.
func (s *Store) resolve(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed == "." || trimmed == ".." {
		return "", NewError(ErrorInvalidName, "name must not be empty")
	}
	if strings.ContainsAny(trimmed, `/\`) || filepath.IsAbs(trimmed) {
		return "", NewError(ErrorInvalidName, "name must not contain path separators")
	}

	candidate := filepath.Join(s.root, trimmed)
	evaluated, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return "", NormalizeIOError(err, "resolve path")
	}

	if !isWithin(s.root, evaluated) {
		return "", NewError(ErrorOutsideBase, "resolved path escapes base directory")
	}

	return evaluated, nil
}

func isWithin(root string, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}

	return !filepath.IsAbs(rel)
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return NewError(ErrorIO, err.Error())
	}

	return nil
}

func ensureText(content []byte) error {
	if bytes.IndexByte(content, 0) >= 0 || !utf8.Valid(content) {
		return NewError(ErrorNotText, "file appears to be binary or invalid utf-8")
	}

	return nil
}
