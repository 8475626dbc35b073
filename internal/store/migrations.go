package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create sessions and messages",
		SQL: `
			CREATE TABLE sessions (
				id          TEXT PRIMARY KEY,
				name        TEXT NOT NULL DEFAULT '',
				group_name  TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL,
				updated_at  TEXT NOT NULL
			);

			CREATE INDEX idx_sessions_updated ON sessions (updated_at);

			CREATE TABLE messages (
				seq         INTEGER PRIMARY KEY AUTOINCREMENT,
				id          TEXT NOT NULL UNIQUE,
				session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				role        TEXT NOT NULL,
				speaker     TEXT NOT NULL DEFAULT '',
				content     TEXT NOT NULL,
				parts       TEXT,
				timestamp   TEXT NOT NULL
			);

			CREATE INDEX idx_messages_session ON messages (session_id, seq);
		`,
	},
	{
		Version: 2,
		Name:    "create summaries",
		SQL: `
			CREATE TABLE summaries (
				id          TEXT PRIMARY KEY,
				session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				from_index  INTEGER NOT NULL,
				to_index    INTEGER NOT NULL,
				content     TEXT NOT NULL,
				agent       TEXT NOT NULL DEFAULT '',
				active      INTEGER NOT NULL DEFAULT 1,
				created_at  TEXT NOT NULL
			);

			CREATE INDEX idx_summaries_session ON summaries (session_id, active);
		`,
	},
	{
		Version: 3,
		Name:    "create message search with FTS5",
		SQL: `
			CREATE VIRTUAL TABLE messages_fts USING fts5(
				content,
				speaker,
				content='messages',
				content_rowid='seq'
			);

			CREATE TRIGGER messages_ai AFTER INSERT ON messages BEGIN
				INSERT INTO messages_fts(rowid, content, speaker)
				VALUES (new.seq, new.content, new.speaker);
			END;

			CREATE TRIGGER messages_ad AFTER DELETE ON messages BEGIN
				INSERT INTO messages_fts(messages_fts, rowid, content, speaker)
				VALUES ('delete', old.seq, old.content, old.speaker);
			END;
		`,
	},
}
