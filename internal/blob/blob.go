// Package blob abstracts binary object storage for asset uploads and the
// signed download URLs the sync responses carry.
package blob

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get and Delete when no object exists at the
// given path.
var ErrNotFound = errors.New("blob not found")

// Store is the object storage capability. Paths are slash-separated keys;
// the implementation decides the physical layout.
type Store interface {
	Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

// ObjectPath builds the canonical blob key for an asset:
// {container}/{userId}/{parentId}/{blockId}/{sanitizedFileName}.
func ObjectPath(container string, userID, parentID, blockID uuid.UUID, fileName string) string {
	return strings.Join([]string{
		container,
		userID.String(),
		parentID.String(),
		blockID.String(),
		SanitizeFileName(fileName),
	}, "/")
}

// SanitizeFileName replaces path separators and shell-unsafe characters
// with underscores. An empty result becomes "file".
func SanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == ':':
			b.WriteRune('_')
		case r == '*' || r == '?' || r == '"' || r == '\'' || r == '<' || r == '>' || r == '|':
			b.WriteRune('_')
		case r == '$' || r == '&' || r == ';' || r == '`':
			b.WriteRune('_')
		case r < 0x20:
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), " .")
	if out == "" {
		return "file"
	}
	return out
}
