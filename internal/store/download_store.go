package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/o365mail/internal/model"
)

// RecordDownload inserts a ledger entry. A missing ID is generated and a
// zero SavedAt is set to the current time.
func (s *SQLiteStore) RecordDownload(ctx context.Context, d model.Download) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.SavedAt.IsZero() {
		d.SavedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO downloads (id, item_id, subject, attachment, path, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.ItemID, d.Subject, d.Attachment, d.Path, d.SavedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording download of %s: %w", d.Attachment, err)
	}
	return nil
}

// ListDownloads returns ledger entries matching filter, most recent first.
func (s *SQLiteStore) ListDownloads(
	ctx context.Context,
	filter DownloadFilter,
) ([]model.Download, error) {
	var conditions []string
	var args []interface{}

	if filter.ItemID != nil {
		conditions = append(conditions, "item_id = ?")
		args = append(args, *filter.ItemID)
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions, "(subject LIKE ? OR attachment LIKE ?)")
		q := "%" + *filter.Query + "%"
		args = append(args, q, q)
	}

	query := "SELECT id, item_id, subject, attachment, path, saved_at FROM downloads"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY saved_at DESC, rowid DESC"

	switch {
	case filter.Limit > 0:
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	case filter.Offset > 0:
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	var downloads []model.Download
	if err := s.db.SelectContext(ctx, &downloads, query, args...); err != nil {
		return nil, fmt.Errorf("querying downloads: %w", err)
	}
	return downloads, nil
}

// DeleteDownload removes a ledger entry by ID.
func (s *SQLiteStore) DeleteDownload(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM downloads WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting download %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("download %s not found", id)
	}
	return nil
}
