// Package validate holds the gates an import runs before it trusts
// normalized output.
package validate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sstent/vo2sync-go/internal/models"
)

// SupportedExtensions lists the upload extensions the file normalizer accepts.
var SupportedExtensions = []string{".fit"}

// CheckExtension returns models.ErrUnsupportedFormat unless name carries a
// supported extension. The comparison is case insensitive.
func CheckExtension(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	for _, supported := range SupportedExtensions {
		if ext == supported {
			return nil
		}
	}
	return fmt.Errorf("%w: %q (supported: %s)", models.ErrUnsupportedFormat, filepath.Base(name), strings.Join(SupportedExtensions, ", "))
}

// StageUpload checks the upload's extension and copies its content into a
// uniquely named file under dir. It returns the staged path and the
// original base name, which later becomes the workout name and source key.
func StageUpload(name string, r io.Reader, dir string) (string, string, error) {
	original := filepath.Base(name)
	if err := CheckExtension(original); err != nil {
		return "", "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating upload directory: %w", err)
	}

	staged := filepath.Join(dir, uuid.NewString()+strings.ToLower(filepath.Ext(original)))
	f, err := os.Create(staged)
	if err != nil {
		return "", "", fmt.Errorf("creating staged upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(staged)
		return "", "", fmt.Errorf("writing staged upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(staged)
		return "", "", fmt.Errorf("closing staged upload: %w", err)
	}

	return staged, original, nil
}
