package model

import "hash/fnv"

// Folder is a mail folder (IMAP mailbox) as presented in the sidebar.
type Folder struct {
	// AccountID is the owning account's identifier.
	AccountID string `json:"account_id"`

	// Name is the display name (last path segment).
	Name string `json:"name"`

	// Path is the full hierarchical path, stable within an account.
	Path string `json:"path"`

	// UnreadCount and TotalCount come from the mailbox STATUS.
	UnreadCount uint32 `json:"unread_count"`
	TotalCount  uint32 `json:"total_count"`

	// MailboxID joins cache rows with live session operations. It is
	// derived from (account id, path) and stable across sessions.
	MailboxID uint64 `json:"mailbox_id"`
}

// MessageSummary is the header-only projection of a message used by the
// list view. Bodies are loaded separately.
type MessageSummary struct {
	AccountID string `json:"account_id"`

	// UID is the server-assigned identifier within the folder.
	UID uint32 `json:"uid"`

	Subject        string `json:"subject"`
	From           string `json:"from"`
	Date           string `json:"date"`
	IsRead         bool   `json:"is_read"`
	IsStarred      bool   `json:"is_starred"`
	HasAttachments bool   `json:"has_attachments"`

	// ThreadID groups messages into conversations; 0 means unthreaded.
	ThreadID uint64 `json:"thread_id"`

	// EnvelopeID identifies the message within its account. Derived from
	// the Message-ID header, so it survives moves between folders.
	EnvelopeID uint64 `json:"envelope_id"`

	// Timestamp is the message date as unix seconds, used for ordering.
	Timestamp int64 `json:"timestamp"`

	// MailboxID is the folder currently holding the message.
	MailboxID uint64 `json:"mailbox_id"`

	// Threading headers.
	MessageID string `json:"message_id"`
	InReplyTo string `json:"in_reply_to"`
	ReplyTo   string `json:"reply_to"`

	// ThreadDepth is the reply distance from the thread root.
	ThreadDepth int `json:"thread_depth"`
}

// Attachment holds metadata about a message attachment.
type Attachment struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Body is the fetched content of a single message.
type Body struct {
	Text        string       `json:"text"`
	HTML        string       `json:"html"`
	Attachments []Attachment `json:"attachments"`
}

// Preview returns the best renderable body text.
func (b Body) Preview() string {
	if b.Text != "" {
		return b.Text
	}
	return b.HTML
}

// Flag byte layout used by the cache and the mutation engine.
const (
	FlagRead    uint8 = 1 << 0
	FlagStarred uint8 = 1 << 1
)

// FlagsByte packs read/starred booleans into the cache flag byte.
func FlagsByte(read, starred bool) uint8 {
	var f uint8
	if read {
		f |= FlagRead
	}
	if starred {
		f |= FlagStarred
	}
	return f
}

// ReadFromFlags reports whether the read bit is set.
func ReadFromFlags(f uint8) bool { return f&FlagRead != 0 }

// StarredFromFlags reports whether the starred bit is set.
func StarredFromFlags(f uint8) bool { return f&FlagStarred != 0 }

// Flags returns the message's current flag byte.
func (m *MessageSummary) Flags() uint8 {
	return FlagsByte(m.IsRead, m.IsStarred)
}

// ApplyFlags sets read/starred from a flag byte.
func (m *MessageSummary) ApplyFlags(f uint8) {
	m.IsRead = ReadFromFlags(f)
	m.IsStarred = StarredFromFlags(f)
}

// MailboxID derives the stable mailbox identity for a folder path.
// FNV-1a over account id and path; collisions within one account's
// folder list are not a practical concern at mailbox counts.
func MailboxID(accountID, path string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(accountID))
	h.Write([]byte{0})
	h.Write([]byte(path))
	return h.Sum64()
}

// EnvelopeID derives the stable envelope identity for a message. It
// hashes the Message-ID header (not the folder), so the identity
// survives moves within the account.
func EnvelopeID(accountID, messageID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(accountID))
	h.Write([]byte{0})
	h.Write([]byte(messageID))
	return h.Sum64()
}
