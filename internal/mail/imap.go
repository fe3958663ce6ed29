package mail

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/jstelzer/neverlight-mail/internal/model"
)

// fetchWindow bounds how many recent messages one mailbox sync fetches.
const fetchWindow = 200

// location records where an envelope currently lives on the server.
type location struct {
	path      string
	uid       imap.UID
	mailboxID uint64
}

// ImapSession implements Session over go-imap v2. One command runs at
// a time on the underlying connection; the mutex serializes callers.
type ImapSession struct {
	accountID string
	cfg       model.AccountConfig
	password  string

	mu       sync.Mutex
	client   *imapclient.Client
	selected string

	// paths maps mailbox identity to the server-side path.
	paths map[uint64]string

	// locs maps envelope identity to its current server location,
	// refreshed on every mailbox fetch.
	locs map[uint64]location

	// inboxSeq holds INBOX envelope ids in sequence-number order, for
	// translating unilateral expunge/fetch responses in the watcher.
	inboxSeq []uint64
}

// Connect dials the IMAP server and authenticates. Authentication
// failures are returned as *AuthError.
func Connect(
	_ context.Context,
	cfg model.AccountConfig,
	password string,
) (*ImapSession, error) {
	client, err := dial(cfg)
	if err != nil {
		return nil, err
	}

	if err := client.Login(cfg.Username, password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &AuthError{
			AccountID: cfg.ID,
			Message: fmt.Sprintf(
				"authentication failed for %s: %v", cfg.Username, err,
			),
		}
	}

	return &ImapSession{
		accountID: cfg.ID,
		cfg:       cfg,
		password:  password,
		client:    client,
		paths:     make(map[uint64]string),
		locs:      make(map[uint64]location),
	}, nil
}

// dial opens a TLS or STARTTLS connection per the account config.
func dial(cfg model.AccountConfig) (*imapclient.Client, error) {
	return dialWithOptions(cfg, nil)
}

func dialWithOptions(
	cfg model.AccountConfig,
	options *imapclient.Options,
) (*imapclient.Client, error) {
	addr := cfg.Server + ":" + strconv.Itoa(cfg.Port)

	var (
		client *imapclient.Client
		err    error
	)
	if cfg.StartTLS {
		client, err = imapclient.DialStartTLS(addr, options)
	} else {
		client, err = imapclient.DialTLS(addr, options)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	return client, nil
}

// Close logs out and drops the connection.
func (s *ImapSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client.Logout().Wait()
}

// FetchFolders lists all folders with unread/total counts and rebuilds
// the mailbox-id to path mapping.
func (s *ImapSession) FetchFolders(_ context.Context) ([]model.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listCmd := s.client.List("", "*", &imap.ListOptions{
		ReturnStatus: &imap.StatusOptions{
			NumMessages: true,
			NumUnseen:   true,
		},
	})
	boxes, err := listCmd.Collect()
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}

	paths := make(map[uint64]string, len(boxes))
	folders := make([]model.Folder, 0, len(boxes))
	for _, box := range boxes {
		f := model.Folder{
			AccountID: s.accountID,
			Name:      leafName(box.Mailbox, box.Delim),
			Path:      box.Mailbox,
			MailboxID: model.MailboxID(s.accountID, box.Mailbox),
		}
		if box.Status != nil {
			if box.Status.NumMessages != nil {
				f.TotalCount = *box.Status.NumMessages
			}
			if box.Status.NumUnseen != nil {
				f.UnreadCount = *box.Status.NumUnseen
			}
		}
		paths[f.MailboxID] = f.Path
		folders = append(folders, f)
	}

	s.paths = paths
	return folders, nil
}

// FetchMessages lists headers for a mailbox, newest first, bounded by
// fetchWindow.
func (s *ImapSession) FetchMessages(
	_ context.Context,
	mailboxID uint64,
) ([]model.MessageSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, ok := s.paths[mailboxID]
	if !ok {
		return nil, fmt.Errorf("unknown mailbox %d", mailboxID)
	}

	selectData, err := s.selectMailbox(path)
	if err != nil {
		return nil, err
	}
	if selectData.NumMessages == 0 {
		s.rememberInbox(path, nil)
		return nil, nil
	}

	first := uint32(1)
	if selectData.NumMessages > fetchWindow {
		first = selectData.NumMessages - fetchWindow + 1
	}
	var seqSet imap.SeqSet
	seqSet.AddRange(first, selectData.NumMessages)

	fetchCmd := s.client.Fetch(seqSet, &imap.FetchOptions{
		Envelope:      true,
		Flags:         true,
		UID:           true,
		BodyStructure: &imap.FetchItemBodyStructure{},
	})
	bufs, err := fetchCmd.Collect()
	if err != nil {
		return nil, fmt.Errorf("fetching messages in %s: %w", path, err)
	}

	messages := make([]model.MessageSummary, 0, len(bufs))
	seqOrder := make([]uint64, 0, len(bufs))
	for _, buf := range bufs {
		m := s.summaryFromBuffer(buf, path, mailboxID)
		s.locs[m.EnvelopeID] = location{
			path:      path,
			uid:       buf.UID,
			mailboxID: mailboxID,
		}
		seqOrder = append(seqOrder, m.EnvelopeID)
		messages = append(messages, m)
	}

	s.rememberInbox(path, seqOrder)

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp > messages[j].Timestamp
	})

	return messages, nil
}

// FetchBody retrieves and parses one message body.
func (s *ImapSession) FetchBody(
	_ context.Context,
	envelopeID uint64,
) (*model.Body, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc, ok := s.locs[envelopeID]
	if !ok {
		return nil, fmt.Errorf("unknown envelope %d", envelopeID)
	}

	if _, err := s.selectMailbox(loc.path); err != nil {
		return nil, err
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := s.client.Fetch(
		imap.UIDSetNum(loc.uid),
		&imap.FetchOptions{
			UID:         true,
			BodySection: []*imap.FetchItemBodySection{bodySection},
		},
	)
	bufs, err := fetchCmd.Collect()
	if err != nil {
		return nil, fmt.Errorf("fetching body for %d: %w", envelopeID, err)
	}
	if len(bufs) == 0 {
		return nil, fmt.Errorf("message %d not found on server", envelopeID)
	}

	raw := bufs[0].FindBodySection(bodySection)
	if raw == nil {
		return nil, fmt.Errorf("no body section returned for %d", envelopeID)
	}

	body := parseMIMEBody(raw)
	return &body, nil
}

// SetFlags applies the flag operations and returns the resulting flag
// byte as reported by the server.
func (s *ImapSession) SetFlags(
	_ context.Context,
	envelopeID, mailboxID uint64,
	ops []FlagOp,
) (uint8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc, ok := s.locs[envelopeID]
	if !ok || loc.mailboxID != mailboxID {
		return 0, fmt.Errorf("unknown envelope %d in mailbox %d", envelopeID, mailboxID)
	}

	if _, err := s.selectMailbox(loc.path); err != nil {
		return 0, err
	}

	var lastFlags []imap.Flag
	for _, op := range ops {
		storeOp := imap.StoreFlagsAdd
		if !op.Set {
			storeOp = imap.StoreFlagsDel
		}

		storeCmd := s.client.Store(imap.UIDSetNum(loc.uid), &imap.StoreFlags{
			Op:    storeOp,
			Flags: []imap.Flag{imapFlag(op.Flag)},
		}, nil)
		bufs, err := storeCmd.Collect()
		if err != nil {
			return 0, fmt.Errorf("storing flags for %d: %w", envelopeID, err)
		}
		for _, buf := range bufs {
			lastFlags = buf.Flags
		}
	}

	return flagByteFromIMAP(lastFlags), nil
}

// MoveMessage moves one message between mailboxes of this account.
func (s *ImapSession) MoveMessage(
	_ context.Context,
	envelopeID, sourceMailboxID, destMailboxID uint64,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc, ok := s.locs[envelopeID]
	if !ok || loc.mailboxID != sourceMailboxID {
		return fmt.Errorf("unknown envelope %d in mailbox %d", envelopeID, sourceMailboxID)
	}
	destPath, ok := s.paths[destMailboxID]
	if !ok {
		return fmt.Errorf("unknown destination mailbox %d", destMailboxID)
	}

	if _, err := s.selectMailbox(loc.path); err != nil {
		return err
	}

	if _, err := s.client.Move(imap.UIDSetNum(loc.uid), destPath).Wait(); err != nil {
		return fmt.Errorf("moving %d to %s: %w", envelopeID, destPath, err)
	}

	delete(s.locs, envelopeID)
	return nil
}

// selectMailbox issues SELECT only when the mailbox changed.
func (s *ImapSession) selectMailbox(path string) (*imap.SelectData, error) {
	data, err := s.client.Select(path, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("selecting %s: %w", path, err)
	}
	s.selected = path
	return data, nil
}

// rememberInbox snapshots INBOX sequence ordering for the watcher.
func (s *ImapSession) rememberInbox(path string, seqOrder []uint64) {
	if path == "INBOX" {
		s.inboxSeq = seqOrder
	}
}

// summaryFromBuffer builds a MessageSummary from a fetch response.
func (s *ImapSession) summaryFromBuffer(
	buf *imapclient.FetchMessageBuffer,
	path string,
	mailboxID uint64,
) model.MessageSummary {
	m := model.MessageSummary{
		AccountID: s.accountID,
		UID:       uint32(buf.UID),
		MailboxID: mailboxID,
	}

	if env := buf.Envelope; env != nil {
		m.Subject = env.Subject
		m.MessageID = env.MessageID
		if len(env.InReplyTo) > 0 {
			m.InReplyTo = env.InReplyTo[0]
		}
		if len(env.ReplyTo) > 0 {
			m.ReplyTo = env.ReplyTo[0].Addr()
		}
		if len(env.From) > 0 {
			from := env.From[0]
			if from.Name != "" {
				m.From = from.Name
			} else {
				m.From = from.Addr()
			}
		}
		if !env.Date.IsZero() {
			m.Date = env.Date.Format("2006-01-02 15:04")
			m.Timestamp = env.Date.Unix()
		}
	}

	m.ApplyFlags(flagByteFromIMAP(buf.Flags))
	m.HasAttachments = hasAttachments(buf.BodyStructure)

	// Messages lacking a Message-ID get an identity from their server
	// location instead; such an identity does not survive moves, which
	// is the best available for them.
	if m.MessageID != "" {
		m.EnvelopeID = model.EnvelopeID(s.accountID, m.MessageID)
	} else {
		m.EnvelopeID = model.EnvelopeID(
			s.accountID,
			fmt.Sprintf("%s/%d", path, buf.UID),
		)
	}

	return m
}

// imapFlag maps a model flag bit to the wire flag.
func imapFlag(flag uint8) imap.Flag {
	if flag == model.FlagStarred {
		return imap.FlagFlagged
	}
	return imap.FlagSeen
}

// flagByteFromIMAP packs wire flags into the cache flag byte.
func flagByteFromIMAP(flags []imap.Flag) uint8 {
	var read, starred bool
	for _, f := range flags {
		switch f {
		case imap.FlagSeen:
			read = true
		case imap.FlagFlagged:
			starred = true
		}
	}
	return model.FlagsByte(read, starred)
}

// hasAttachments walks a BODYSTRUCTURE looking for attachment parts.
func hasAttachments(bs imap.BodyStructure) bool {
	if bs == nil {
		return false
	}
	found := false
	bs.Walk(func(_ []int, part imap.BodyStructure) bool {
		if disp := part.Disposition(); disp != nil && disp.Value == "attachment" {
			found = true
		}
		return !found
	})
	return found
}

// leafName returns the display name for a mailbox path.
func leafName(path string, delim rune) string {
	if delim == 0 {
		return path
	}
	for i := len(path) - 1; i >= 0; i-- {
		if rune(path[i]) == delim {
			return path[i+1:]
		}
	}
	return path
}
