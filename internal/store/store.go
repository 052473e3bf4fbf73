package store

import (
	"context"
	"errors"

	"github.com/dunamismax/pixelresize/internal/domain"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrBlobNotFound    = errors.New("object not found")
)

// UpdateFunc derives the next session from the current one. Returning an
// error aborts the update and leaves the stored session untouched.
type UpdateFunc func(domain.Session) (domain.Session, error)

type SessionStore interface {
	Create(ctx context.Context, session domain.Session) error
	Get(ctx context.Context, id string) (domain.Session, bool, error)
	Update(ctx context.Context, id string, fn UpdateFunc) (domain.Session, error)
}

type ExportStore interface {
	CreateExportRecord(ctx context.Context, record domain.ExportRecord) error
}

type BlobStore interface {
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, objectKey string) error
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
}
