package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

type BlobReader interface {
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
}

type BlobWriter interface {
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
}

type ObjectStoreFetcher struct {
	Storage BlobReader
}

func (f ObjectStoreFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if f.Storage == nil {
		return nil, errors.New("storage client is required")
	}
	if !strings.EqualFold(req.SourceType, SourceTypeObjectStore) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}
	return f.Storage.ReadObject(ctx, req.Session.Source.ObjectKey)
}

type ObjectStoreEmitter struct {
	Storage      BlobWriter
	OutputPrefix string
}

func (e ObjectStoreEmitter) Emit(ctx context.Context, req Request, data []byte, out Output) (Output, error) {
	if e.Storage == nil {
		return Output{}, errors.New("storage client is required")
	}
	if strings.TrimSpace(req.ExportID) == "" {
		return Output{}, errors.New("export id is required")
	}

	objectKey := ExportObjectKey(e.OutputPrefix, req.Session.ID, req.ExportID, out.Filename)
	if err := e.Storage.WriteObject(ctx, objectKey, data, out.ContentType); err != nil {
		return Output{}, err
	}

	out.Path = objectKey
	return out, nil
}

func ExportObjectKey(prefix, sessionID, exportID, filename string) string {
	return path.Join(
		defaultOutputPrefix(prefix),
		sanitizePathToken(sessionID),
		sanitizePathToken(exportID),
		filename,
	)
}

// SourceObjectKey names one upload. Every load gets its own key so a pending
// export keeps reading the bytes its snapshot refers to.
func SourceObjectKey(sessionID, loadID string) string {
	return path.Join("sources", sanitizePathToken(sessionID), sanitizePathToken(loadID))
}

func defaultOutputPrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "exports"
	}
	return prefix
}
