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

CREATE TABLE IF NOT EXISTS folders (
	account_id   TEXT NOT NULL,
	path         TEXT NOT NULL,
	name         TEXT NOT NULL,
	unread_count INTEGER NOT NULL DEFAULT 0,
	total_count  INTEGER NOT NULL DEFAULT 0,
	mailbox_id   INTEGER NOT NULL,
	PRIMARY KEY (account_id, path)
);

CREATE TABLE IF NOT EXISTS messages (
	envelope_id     INTEGER PRIMARY KEY,
	account_id      TEXT NOT NULL,
	mailbox_id      INTEGER NOT NULL,
	uid             INTEGER NOT NULL,
	subject         TEXT NOT NULL DEFAULT '',
	sender          TEXT NOT NULL DEFAULT '',
	date            TEXT NOT NULL DEFAULT '',
	timestamp       INTEGER NOT NULL DEFAULT 0,
	flags           INTEGER NOT NULL DEFAULT 0,
	prev_flags      INTEGER,
	pending_op      TEXT NOT NULL DEFAULT '',
	has_attachments INTEGER NOT NULL DEFAULT 0,
	thread_id       INTEGER NOT NULL DEFAULT 0,
	message_id      TEXT NOT NULL DEFAULT '',
	in_reply_to     TEXT NOT NULL DEFAULT '',
	reply_to        TEXT NOT NULL DEFAULT '',
	thread_depth    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS bodies (
	envelope_id INTEGER PRIMARY KEY,
	body_text   TEXT NOT NULL DEFAULT '',
	body_html   TEXT NOT NULL DEFAULT '',
	attachments TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_messages_mailbox
	ON messages(mailbox_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_messages_account
	ON messages(account_id);
CREATE INDEX IF NOT EXISTS idx_folders_mailbox
	ON folders(mailbox_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_messages_pending
	ON messages(account_id, pending_op) WHERE pending_op != '';

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
