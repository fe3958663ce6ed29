package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/jstelzer/neverlight-mail/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// LoadFolders retrieves the cached folder list for an account, ordered
// by path.
func (s *SQLiteStore) LoadFolders(
	ctx context.Context,
	accountID string,
) ([]model.Folder, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM folders WHERE account_id = ? ORDER BY path",
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying folders for %s: %w", accountID, err)
	}
	defer rows.Close()

	var folders []model.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}

	return folders, rows.Err()
}

// SaveFolders replaces the cached folder list for an account in one
// transaction.
func (s *SQLiteStore) SaveFolders(
	ctx context.Context,
	accountID string,
	folders []model.Folder,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM folders WHERE account_id = ?", accountID,
	); err != nil {
		return fmt.Errorf("clearing folders for %s: %w", accountID, err)
	}

	const query = `
		INSERT INTO folders (
			account_id, path, name, unread_count, total_count, mailbox_id
		) VALUES (?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing folder insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range folders {
		_, err = stmt.ExecContext(ctx,
			accountID, f.Path, f.Name,
			f.UnreadCount, f.TotalCount, int64(f.MailboxID),
		)
		if err != nil {
			return fmt.Errorf("inserting folder %s: %w", f.Path, err)
		}
	}

	return tx.Commit()
}

// LoadMessages retrieves one page of cached headers for a mailbox,
// newest first.
func (s *SQLiteStore) LoadMessages(
	ctx context.Context,
	mailboxID uint64,
	pageSize, offset int,
) ([]model.MessageSummary, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	rows, err := s.db.QueryxContext(ctx, `
		SELECT * FROM messages
		WHERE mailbox_id = ?
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?`,
		int64(mailboxID), pageSize, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages for mailbox %d: %w", mailboxID, err)
	}
	defer rows.Close()

	var messages []model.MessageSummary
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// SaveMessages replaces the cached contents of a mailbox atomically.
// Pending operation markers on surviving envelopes are preserved so an
// in-flight optimistic mutation is not clobbered by a concurrent sync.
func (s *SQLiteStore) SaveMessages(
	ctx context.Context,
	mailboxID uint64,
	messages []model.MessageSummary,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	pending, err := pendingInMailbox(ctx, tx, mailboxID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM messages WHERE mailbox_id = ?", int64(mailboxID),
	); err != nil {
		return fmt.Errorf("clearing messages for mailbox %d: %w", mailboxID, err)
	}

	const query = `
		INSERT INTO messages (
			envelope_id, account_id, mailbox_id, uid,
			subject, sender, date, timestamp,
			flags, prev_flags, pending_op, has_attachments,
			thread_id, message_id, in_reply_to, reply_to, thread_depth
		) VALUES (
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?, ?
		)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing message insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range messages {
		flags := m.Flags()
		var prevFlags interface{}
		pendingOp := ""
		if p, ok := pending[m.EnvelopeID]; ok {
			flags = p.flags
			prevFlags = p.prevFlags
			pendingOp = p.op
		}

		_, err = stmt.ExecContext(ctx,
			int64(m.EnvelopeID), m.AccountID, int64(m.MailboxID), m.UID,
			m.Subject, m.From, m.Date, m.Timestamp,
			flags, prevFlags, pendingOp, boolToInt(m.HasAttachments),
			int64(m.ThreadID), m.MessageID, m.InReplyTo, m.ReplyTo, m.ThreadDepth,
		)
		if err != nil {
			return fmt.Errorf("inserting message %d: %w", m.EnvelopeID, err)
		}
	}

	return tx.Commit()
}

// RemoveMessage deletes a message and its cached body.
func (s *SQLiteStore) RemoveMessage(ctx context.Context, envelopeID uint64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM messages WHERE envelope_id = ?", int64(envelopeID),
	); err != nil {
		return fmt.Errorf("removing message %d: %w", envelopeID, err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM bodies WHERE envelope_id = ?", int64(envelopeID),
	); err != nil {
		return fmt.Errorf("removing body %d: %w", envelopeID, err)
	}

	return tx.Commit()
}

// LoadBody retrieves a cached body, or nil on a miss.
func (s *SQLiteStore) LoadBody(
	ctx context.Context,
	envelopeID uint64,
) (*model.Body, error) {
	var (
		text        string
		html        string
		attachments string
	)

	err := s.db.QueryRowxContext(ctx,
		"SELECT body_text, body_html, attachments FROM bodies WHERE envelope_id = ?",
		int64(envelopeID),
	).Scan(&text, &html, &attachments)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying body %d: %w", envelopeID, err)
	}

	body := &model.Body{Text: text, HTML: html}
	if attachments != "" {
		if err := json.Unmarshal([]byte(attachments), &body.Attachments); err != nil {
			return nil, fmt.Errorf("unmarshaling attachments for %d: %w", envelopeID, err)
		}
	}

	return body, nil
}

// SaveBody caches a fetched body.
func (s *SQLiteStore) SaveBody(
	ctx context.Context,
	envelopeID uint64,
	body model.Body,
) error {
	attachments, err := json.Marshal(body.Attachments)
	if err != nil {
		return fmt.Errorf("marshaling attachments for %d: %w", envelopeID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO bodies (envelope_id, body_text, body_html, attachments)
		VALUES (?, ?, ?, ?)`,
		int64(envelopeID), body.Text, body.HTML, string(attachments),
	)
	if err != nil {
		return fmt.Errorf("saving body %d: %w", envelopeID, err)
	}

	return nil
}

// UpdateFlags applies an optimistic flag byte and records the previous
// byte plus the operation tag so the change can be rolled back.
func (s *SQLiteStore) UpdateFlags(
	ctx context.Context,
	envelopeID uint64,
	newFlags uint8,
	pendingOp string,
) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET prev_flags = flags, flags = ?, pending_op = ?
		WHERE envelope_id = ?`,
		newFlags, pendingOp, int64(envelopeID),
	)
	if err != nil {
		return fmt.Errorf("updating flags for %d: %w", envelopeID, err)
	}
	return nil
}

// ClearPendingOp confirms a completed operation with the
// server-confirmed flag byte.
func (s *SQLiteStore) ClearPendingOp(
	ctx context.Context,
	envelopeID uint64,
	confirmedFlags uint8,
) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET flags = ?, prev_flags = NULL, pending_op = ''
		WHERE envelope_id = ?`,
		confirmedFlags, int64(envelopeID),
	)
	if err != nil {
		return fmt.Errorf("clearing pending op for %d: %w", envelopeID, err)
	}
	return nil
}

// RevertPendingOp restores the pre-operation flag byte after a remote
// failure.
func (s *SQLiteStore) RevertPendingOp(
	ctx context.Context,
	envelopeID uint64,
) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET flags = COALESCE(prev_flags, flags), prev_flags = NULL, pending_op = ''
		WHERE envelope_id = ?`,
		int64(envelopeID),
	)
	if err != nil {
		return fmt.Errorf("reverting pending op for %d: %w", envelopeID, err)
	}
	return nil
}

// PendingOps lists unresolved mutation markers for an account, used to
// recover after a crash mid-operation.
func (s *SQLiteStore) PendingOps(
	ctx context.Context,
	accountID string,
) ([]PendingOp, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT envelope_id, pending_op, flags FROM messages
		WHERE account_id = ? AND pending_op != ''`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying pending ops for %s: %w", accountID, err)
	}
	defer rows.Close()

	var ops []PendingOp
	for rows.Next() {
		var (
			envelopeID int64
			op         string
			flags      uint8
		)
		if err := rows.Scan(&envelopeID, &op, &flags); err != nil {
			return nil, fmt.Errorf("scanning pending op: %w", err)
		}
		ops = append(ops, PendingOp{
			EnvelopeID: uint64(envelopeID),
			Op:         op,
			Flags:      flags,
		})
	}

	return ops, rows.Err()
}

// RemoveAccount deletes every cached row scoped to the account.
func (s *SQLiteStore) RemoveAccount(ctx context.Context, accountID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM bodies WHERE envelope_id IN (
			SELECT envelope_id FROM messages WHERE account_id = ?
		)`, accountID,
	); err != nil {
		return fmt.Errorf("removing bodies for %s: %w", accountID, err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM messages WHERE account_id = ?", accountID,
	); err != nil {
		return fmt.Errorf("removing messages for %s: %w", accountID, err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM folders WHERE account_id = ?", accountID,
	); err != nil {
		return fmt.Errorf("removing folders for %s: %w", accountID, err)
	}

	return tx.Commit()
}

// pendingRow is the preserved mutation marker for one envelope.
type pendingRow struct {
	flags     uint8
	prevFlags interface{}
	op        string
}

// pendingInMailbox snapshots unresolved mutation markers before a
// mailbox replacement.
func pendingInMailbox(
	ctx context.Context,
	tx *sqlx.Tx,
	mailboxID uint64,
) (map[uint64]pendingRow, error) {
	rows, err := tx.QueryxContext(ctx, `
		SELECT envelope_id, flags, prev_flags, pending_op FROM messages
		WHERE mailbox_id = ? AND pending_op != ''`,
		int64(mailboxID),
	)
	if err != nil {
		return nil, fmt.Errorf("querying pending rows: %w", err)
	}
	defer rows.Close()

	pending := make(map[uint64]pendingRow)
	for rows.Next() {
		var (
			envelopeID int64
			flags      uint8
			prevFlags  sql.NullInt64
			op         string
		)
		if err := rows.Scan(&envelopeID, &flags, &prevFlags, &op); err != nil {
			return nil, fmt.Errorf("scanning pending row: %w", err)
		}
		p := pendingRow{flags: flags, op: op}
		if prevFlags.Valid {
			p.prevFlags = prevFlags.Int64
		}
		pending[uint64(envelopeID)] = p
	}

	return pending, rows.Err()
}

// scanFolder scans a folder row from a sqlx.Rows result set.
func scanFolder(rows *sqlx.Rows) (model.Folder, error) {
	var (
		f         model.Folder
		mailboxID int64
	)

	err := rows.Scan(
		&f.AccountID, &f.Path, &f.Name,
		&f.UnreadCount, &f.TotalCount, &mailboxID,
	)
	if err != nil {
		return model.Folder{}, fmt.Errorf("scanning folder row: %w", err)
	}

	f.MailboxID = uint64(mailboxID)
	return f, nil
}

// scanMessage scans a message row from a sqlx.Rows result set.
func scanMessage(rows *sqlx.Rows) (model.MessageSummary, error) {
	var (
		m              model.MessageSummary
		envelopeID     int64
		mailboxID      int64
		threadID       int64
		flags          uint8
		prevFlags      sql.NullInt64
		pendingOp      string
		hasAttachments int
	)

	err := rows.Scan(
		&envelopeID, &m.AccountID, &mailboxID, &m.UID,
		&m.Subject, &m.From, &m.Date, &m.Timestamp,
		&flags, &prevFlags, &pendingOp, &hasAttachments,
		&threadID, &m.MessageID, &m.InReplyTo, &m.ReplyTo, &m.ThreadDepth,
	)
	if err != nil {
		return model.MessageSummary{}, fmt.Errorf("scanning message row: %w", err)
	}

	m.EnvelopeID = uint64(envelopeID)
	m.MailboxID = uint64(mailboxID)
	m.ThreadID = uint64(threadID)
	m.ApplyFlags(flags)
	m.HasAttachments = hasAttachments != 0

	return m, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
