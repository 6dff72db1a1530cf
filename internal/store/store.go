package store

import (
	"context"

	"github.com/nhle/o365mail/internal/model"
)

// DownloadFilter controls filtering and pagination for ledger queries.
type DownloadFilter struct {
	ItemID *string
	Query  *string // matches subject or attachment name
	Limit  int
	Offset int
}

// Store defines the persistence interface for the attachment download
// ledger.
type Store interface {
	RecordDownload(ctx context.Context, d model.Download) error
	ListDownloads(ctx context.Context, filter DownloadFilter) ([]model.Download, error)
	DeleteDownload(ctx context.Context, id string) error
}

var _ Store = (*SQLiteStore)(nil)
