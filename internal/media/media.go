// ABOUTME: Validation and disk persistence for user-uploaded files
// ABOUTME: Enforces the allowed MIME list and size cap, saves with bounded retries

package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Validation failures surfaced to flow handlers so they can re-prompt.
var (
	ErrDisallowedType = errors.New("file type not allowed")
	ErrTooLarge       = errors.New("file exceeds size limit")
)

// DefaultMaxBytes caps uploads at 5 MiB.
const DefaultMaxBytes = 5 << 20

// allowedTypes is the accepted upload MIME list.
var allowedTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"image/gif":       true,
}

// Allowed reports whether the MIME type may be uploaded. Codec suffixes like
// "image/jpeg; charset=binary" are tolerated.
func Allowed(mimeType string) bool {
	base, _, _ := strings.Cut(mimeType, ";")
	return allowedTypes[strings.ToLower(strings.TrimSpace(base))]
}

// Store writes validated uploads under a base directory.
type Store struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
}

// NewStore creates a media store rooted at dir. Zero maxBytes uses
// DefaultMaxBytes.
func NewStore(dir string, maxBytes int64, logger *slog.Logger) *Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, maxBytes: maxBytes, logger: logger.With("component", "media")}
}

// Validate checks type and size before any bytes touch the disk.
func (s *Store) Validate(mimeType string, size int64) error {
	if !Allowed(mimeType) {
		return fmt.Errorf("%w: %s", ErrDisallowedType, mimeType)
	}
	if size > s.maxBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, size, s.maxBytes)
	}
	return nil
}

const saveAttempts = 3

// Save persists data under a unique name derived from origName and returns
// the stored path. Disk writes are retried a bounded number of times; after
// that the error propagates so the flow can ask the user to resend.
func (s *Store) Save(ctx context.Context, origName string, data []byte) (string, error) {
	if int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, len(data), s.maxBytes)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s", uuid.New().String()[:8], sanitizeName(origName))
	path := filepath.Join(s.dir, name)

	var err error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		if err = os.WriteFile(path, data, 0o644); err == nil {
			return path, nil
		}
		s.logger.Warn("upload write failed", "path", path, "attempt", attempt, "error", err)
		if attempt < saveAttempts {
			select {
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", fmt.Errorf("saving upload after %d attempts: %w", saveAttempts, err)
}

// sanitizeName strips path separators and anything exotic from a
// user-supplied filename.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "upload"
	}
	return b.String()
}
