package sqlstore

// SCHEMA:
// Both engines get the same tables, keys and cascades. Uniqueness lives in
// the primary keys and UNIQUE constraints below; the store's zero-rows-
// affected checks depend on them:
//   - hidden.quote_id is the primary key      → a quote is hidden at most once
//   - votes (quote_id, submitter) primary key → one vote per voter
//   - favorites (quote_id, username)          → one favorite per user
//   - reports UNIQUE (quote_id, submitter_hash) → one report per hashed reporter
//
// Shard indices are restricted to 1..6 by a CHECK constraint; contiguity is
// guaranteed by CreateQuote, which is the only writer of shards.

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS quotes (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		submitter TEXT NOT NULL,
		timestamp DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_quotes_submitter ON quotes(submitter)`,
	`CREATE TABLE IF NOT EXISTS shards (
		quote_id INTEGER NOT NULL REFERENCES quotes(id) ON DELETE CASCADE,
		"index"  INTEGER NOT NULL CHECK ("index" BETWEEN 1 AND 6),
		body     TEXT NOT NULL,
		speaker  TEXT NOT NULL,
		PRIMARY KEY (quote_id, "index")
	)`,
	`CREATE INDEX IF NOT EXISTS idx_shards_speaker ON shards(speaker)`,
	`CREATE TABLE IF NOT EXISTS votes (
		quote_id   INTEGER NOT NULL REFERENCES quotes(id) ON DELETE CASCADE,
		submitter  TEXT NOT NULL,
		vote       TEXT NOT NULL CHECK (vote IN ('upvote', 'downvote')),
		created_at DATETIME NOT NULL,
		PRIMARY KEY (quote_id, submitter)
	)`,
	`CREATE TABLE IF NOT EXISTS favorites (
		quote_id   INTEGER NOT NULL REFERENCES quotes(id) ON DELETE CASCADE,
		username   TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (quote_id, username)
	)`,
	`CREATE TABLE IF NOT EXISTS hidden (
		quote_id   INTEGER PRIMARY KEY REFERENCES quotes(id) ON DELETE CASCADE,
		reason     TEXT NOT NULL,
		actor      TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		quote_id       INTEGER NOT NULL REFERENCES quotes(id) ON DELETE CASCADE,
		reason         TEXT NOT NULL,
		submitter_hash BLOB NOT NULL,
		created_at     DATETIME NOT NULL,
		resolver       TEXT,
		UNIQUE (quote_id, submitter_hash)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_open ON reports(quote_id) WHERE resolver IS NULL`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS quotes (
		id        BIGSERIAL PRIMARY KEY,
		submitter VARCHAR(64) NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_quotes_submitter ON quotes(submitter)`,
	`CREATE TABLE IF NOT EXISTS shards (
		quote_id BIGINT NOT NULL REFERENCES quotes(id) ON DELETE CASCADE,
		"index"  SMALLINT NOT NULL CHECK ("index" BETWEEN 1 AND 6),
		body     TEXT NOT NULL,
		speaker  VARCHAR(64) NOT NULL,
		PRIMARY KEY (quote_id, "index")
	)`,
	`CREATE INDEX IF NOT EXISTS idx_shards_speaker ON shards(speaker)`,
	`CREATE TABLE IF NOT EXISTS votes (
		quote_id   BIGINT NOT NULL REFERENCES quotes(id) ON DELETE CASCADE,
		submitter  VARCHAR(64) NOT NULL,
		vote       TEXT NOT NULL CHECK (vote IN ('upvote', 'downvote')),
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (quote_id, submitter)
	)`,
	`CREATE TABLE IF NOT EXISTS favorites (
		quote_id   BIGINT NOT NULL REFERENCES quotes(id) ON DELETE CASCADE,
		username   VARCHAR(64) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (quote_id, username)
	)`,
	`CREATE TABLE IF NOT EXISTS hidden (
		quote_id   BIGINT PRIMARY KEY REFERENCES quotes(id) ON DELETE CASCADE,
		reason     TEXT NOT NULL,
		actor      VARCHAR(64) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id             BIGSERIAL PRIMARY KEY,
		quote_id       BIGINT NOT NULL REFERENCES quotes(id) ON DELETE CASCADE,
		reason         TEXT NOT NULL,
		submitter_hash BYTEA NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL,
		resolver       VARCHAR(64),
		UNIQUE (quote_id, submitter_hash)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_open ON reports(quote_id) WHERE resolver IS NULL`,
}
