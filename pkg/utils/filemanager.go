// =============================================================================
// ASIN Tax Reconciler - File Manager Utility
// =============================================================================
//
// This module provides the file utilities shared by the writers and the
// workbook consistency layer:
//   - Atomic replacement of a file (temp file in the same directory + rename)
//   - Unique staging file names for automation scripts and data
//   - Derived output paths (preview, summary) next to the base file
//   - Key/value summary files
//
// WRITE STRATEGY:
//   Every artifact is rendered completely in memory first, then written to a
//   temporary sibling and renamed over the destination. A failure at any
//   step removes the temporary file and leaves the destination untouched.
//
// =============================================================================

package utils

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// =============================================================================
// ATOMIC WRITES
// =============================================================================

// WriteAtomic replaces filePath with data.
//
// PARAMETERS:
//   - filePath: The destination. Missing parent directories are created.
//   - data:     The complete file content.
//
// RETURNS:
//   - An error if the temporary file cannot be written or renamed. The
//     destination is unchanged in that case.
func WriteAtomic(filePath string, data []byte) (err error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	mode := fs.FileMode(0o644)
	if info, statErr := os.Stat(filePath); statErr == nil {
		mode = info.Mode().Perm()
	}

	tmpPath := filepath.Join(dir, "."+filepath.Base(filePath)+"."+uuid.NewString()+".tmp")
	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err = os.Rename(tmpPath, filePath); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filePath, err)
	}
	return nil
}

// =============================================================================
// PATHS
// =============================================================================

// StagingPath returns a unique path in dir for a temporary artifact.
//
// EXAMPLE:
//   StagingPath("/tmp", "refresh", ".ps1") -> "/tmp/refresh-1b4e28ba-....ps1"
func StagingPath(dir, prefix, ext string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, prefix+"-"+uuid.NewString()+ext)
}

// DerivedPath returns the path of an artifact stored next to filePath,
// named after its stem.
//
// EXAMPLE:
//   DerivedPath("/data/base.xlsx", "_new.csv") -> "/data/base_new.csv"
func DerivedPath(filePath, suffix string) string {
	ext := filepath.Ext(filePath)
	return strings.TrimSuffix(filePath, ext) + suffix
}

// FileExists checks if a regular file exists.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// RemoveQuietly deletes each path, ignoring missing files. It returns the
// first other error.
func RemoveQuietly(paths ...string) error {
	var first error
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) && first == nil {
			first = err
		}
	}
	return first
}

// =============================================================================
// KEY/VALUE SUMMARY FILES
// =============================================================================

// Property is one key=value line of a summary file.
type Property struct {
	Key   string
	Value string
}

// EncodeProperties renders properties as "key=value" lines, in order.
// Backslashes and line breaks in values are escaped so every property
// stays on one line.
func EncodeProperties(props []Property) []byte {
	var buf bytes.Buffer
	escaper := strings.NewReplacer(`\`, `\\`, "\r", `\r`, "\n", `\n`)
	for _, p := range props {
		buf.WriteString(p.Key)
		buf.WriteByte('=')
		buf.WriteString(escaper.Replace(p.Value))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// WriteProperties writes a key/value summary file atomically.
func WriteProperties(filePath string, props []Property) error {
	if err := WriteAtomic(filePath, EncodeProperties(props)); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}
