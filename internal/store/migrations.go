package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS downloads (
	id         TEXT PRIMARY KEY,
	item_id    TEXT NOT NULL,
	subject    TEXT NOT NULL DEFAULT '',
	attachment TEXT NOT NULL,
	path       TEXT NOT NULL,
	saved_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_downloads_item_id ON downloads(item_id);
CREATE INDEX IF NOT EXISTS idx_downloads_saved_at ON downloads(saved_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
