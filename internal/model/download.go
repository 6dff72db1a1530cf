package model

import "time"

// Download is a ledger entry for one attachment written to disk.
type Download struct {
	ID         string    `db:"id"`
	ItemID     string    `db:"item_id"`
	Subject    string    `db:"subject"`
	Attachment string    `db:"attachment"`
	Path       string    `db:"path"`
	SavedAt    time.Time `db:"saved_at"`
}
