package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"docshare/internal/model"
	"docshare/internal/storage"
)

// CompletedLoader fetches a completed document; nil, nil means nothing to archive.
type CompletedLoader interface {
	GetCompletedDocument(ctx context.Context, shareID string) (*model.CompletedDocument, error)
}

// ArchiveKey is the object key of a share's archived completed document.
func ArchiveKey(shareID string) string {
	return "completed/" + shareID + ".json"
}

// Archiver copies every completed document to object storage.
type Archiver struct {
	store  storage.Storage
	loader CompletedLoader
}

func NewArchiver(store storage.Storage, loader CompletedLoader) *Archiver {
	return &Archiver{store: store, loader: loader}
}

func (a *Archiver) Notify(ctx context.Context, ev model.CompletionEvent) error {
	doc, err := a.loader.GetCompletedDocument(ctx, ev.ShareID)
	if err != nil {
		return fmt.Errorf("load completed document: %w", err)
	}
	if doc == nil {
		// Deleted between detection and archiving.
		return nil
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode completed document: %w", err)
	}

	_, err = a.store.Put(ctx, ArchiveKey(ev.ShareID), bytes.NewReader(raw), storage.PutObjectOptions{
		Size:        int64(len(raw)),
		ContentType: "application/json",
		Metadata: map[string]string{
			"share-id":      ev.ShareID,
			"document-type": string(ev.DocumentType),
		},
	})
	if err != nil {
		return fmt.Errorf("upload to storage: %w", err)
	}
	return nil
}

// URL returns a presigned download link for an archived document.
// storage.ErrObjectNotFound is returned when nothing was archived yet.
func (a *Archiver) URL(ctx context.Context, shareID string, expiry time.Duration) (string, error) {
	key := ArchiveKey(shareID)
	if _, err := a.store.Stat(ctx, key); err != nil {
		return "", err
	}
	return a.store.PresignGet(ctx, key, expiry)
}
