// Package security guards the file names and directories that user-supplied
// identifiers and CLI flags end up in.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned when a path resolves outside its directory.
var ErrPathEscape = errors.New("path escapes directory")

// maxIDLen bounds the identifier part of generated file names.
const maxIDLen = 64

// canonical returns the absolute path with symlinks resolved. For paths that
// do not exist yet the nearest existing ancestor is resolved instead, so a
// symlinked parent cannot smuggle a new file out of the directory.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rel, _ := filepath.Rel(dir, abs)
			return filepath.Join(resolved, rel), nil
		}
		if dir == filepath.Dir(dir) {
			return abs, nil
		}
	}
}

// WithinDir reports an error wrapping ErrPathEscape when path does not
// resolve to dir or a location below it.
func WithinDir(path, dir string) error {
	p, err := canonical(path)
	if err != nil {
		return err
	}
	d, err := canonical(dir)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(d, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s is outside %s", ErrPathEscape, path, dir)
	}
	return nil
}

// JoinWithin joins a bare file name onto dir and checks the result stays
// inside dir.
func JoinWithin(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: invalid file name %q", ErrPathEscape, name)
	}
	path := filepath.Join(dir, name)
	if err := WithinDir(path, dir); err != nil {
		return "", err
	}
	return path, nil
}

// SanitizeID maps an arbitrary identifier onto [A-Za-z0-9._-]. Runs of other
// characters become one underscore, leading and trailing dots and
// underscores are dropped and the result is capped in length. An identifier
// with nothing usable in it sanitizes to "".
func SanitizeID(id string) string {
	var b strings.Builder
	pendingUnderscore := false
	for _, r := range id {
		if b.Len() >= maxIDLen {
			break
		}
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '.' || r == '_' || r == '-'
		if !ok {
			pendingUnderscore = true
			continue
		}
		if pendingUnderscore && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingUnderscore = false
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), "._")
}
