package mail

import (
	"context"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/jstelzer/neverlight-mail/internal/model"
)

// idleRestart bounds one IDLE period; servers may drop idle
// connections after ~30 minutes (RFC 2177 recommends re-issuing).
const idleRestart = 20 * time.Minute

// signalKind discriminates unilateral-data notifications raised by the
// watch connection's decoder.
type signalKind int

const (
	signalExists signalKind = iota
	signalExpunge
	signalFetch
)

type watchSignal struct {
	kind  signalKind
	count uint32
	seq   uint32
	flags uint8
}

// Watch opens a dedicated IDLE connection on INBOX and translates
// unilateral server data into WatchEvents. Commands cannot run on an
// idling connection, so the watcher never shares the session's main
// connection.
func (s *ImapSession) Watch(ctx context.Context) (<-chan WatchEvent, error) {
	notify := make(chan watchSignal, 32)

	handler := &imapclient.UnilateralDataHandler{
		Mailbox: func(data *imapclient.UnilateralDataMailbox) {
			if data.NumMessages == nil {
				return
			}
			select {
			case notify <- watchSignal{kind: signalExists, count: *data.NumMessages}:
			default:
			}
		},
		Expunge: func(seqNum uint32) {
			select {
			case notify <- watchSignal{kind: signalExpunge, seq: seqNum}:
			default:
			}
		},
		Fetch: func(msg *imapclient.FetchMessageData) {
			buf, err := msg.Collect()
			if err != nil {
				return
			}
			select {
			case notify <- watchSignal{
				kind:  signalFetch,
				seq:   buf.SeqNum,
				flags: flagByteFromIMAP(buf.Flags),
			}:
			default:
			}
		},
	}

	client, err := dialWithOptions(s.cfg, &imapclient.Options{
		UnilateralDataHandler: handler,
	})
	if err != nil {
		return nil, err
	}

	if err := client.Login(s.cfg.Username, s.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &AuthError{
			AccountID: s.accountID,
			Message:   "watch authentication failed: " + err.Error(),
		}
	}

	selectData, err := client.Select("INBOX", nil).Wait()
	if err != nil {
		_ = client.Logout().Wait()
		return nil, err
	}

	w := &watcher{
		session:   s,
		client:    client,
		notify:    notify,
		mailboxID: model.MailboxID(s.accountID, "INBOX"),
		count:     selectData.NumMessages,
	}
	w.rebuildSeqMap()

	events := make(chan WatchEvent, 32)
	go w.run(ctx, events)
	return events, nil
}

// watcher owns one account's IDLE loop.
type watcher struct {
	session   *ImapSession
	client    *imapclient.Client
	notify    chan watchSignal
	mailboxID uint64

	// count mirrors the server's EXISTS value for INBOX.
	count uint32

	// firstSeq and seqIDs map sequence numbers to envelope ids for the
	// tail window of INBOX: seq n resolves to seqIDs[n-firstSeq].
	firstSeq uint32
	seqIDs   []uint64
}

// rebuildSeqMap snapshots the session's last INBOX fetch ordering.
func (w *watcher) rebuildSeqMap() {
	w.session.mu.Lock()
	ids := make([]uint64, len(w.session.inboxSeq))
	copy(ids, w.session.inboxSeq)
	w.session.mu.Unlock()

	w.seqIDs = ids
	if w.count >= uint32(len(ids)) {
		w.firstSeq = w.count - uint32(len(ids)) + 1
	} else {
		w.firstSeq = 1
	}
}

// resolveSeq maps a sequence number to an envelope id, if known.
func (w *watcher) resolveSeq(seq uint32) (uint64, bool) {
	if seq < w.firstSeq {
		return 0, false
	}
	i := int(seq - w.firstSeq)
	if i >= len(w.seqIDs) {
		return 0, false
	}
	return w.seqIDs[i], true
}

// emit delivers an event unless the watcher's context was cancelled,
// so a cancelled watcher never blocks on a channel nobody drains.
func emit(ctx context.Context, events chan<- WatchEvent, ev WatchEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// run is the IDLE loop: idle until the server pushes data or the idle
// period expires, break idle, translate pending signals, re-idle.
func (w *watcher) run(ctx context.Context, events chan<- WatchEvent) {
	defer close(events)
	defer func() { _ = w.client.Logout().Wait() }()

	for {
		idleCmd, err := w.client.Idle()
		if err != nil {
			emit(ctx, events, WatchEvent{Kind: WatchError, Err: err.Error()})
			emit(ctx, events, WatchEvent{Kind: WatchEnded})
			return
		}

		var sig *watchSignal
		select {
		case <-ctx.Done():
			_ = idleCmd.Close()
			_ = idleCmd.Wait()
			return
		case got := <-w.notify:
			sig = &got
		case <-time.After(idleRestart):
		}

		if err := idleCmd.Close(); err != nil {
			emit(ctx, events, WatchEvent{Kind: WatchError, Err: err.Error()})
			emit(ctx, events, WatchEvent{Kind: WatchEnded})
			return
		}
		if err := idleCmd.Wait(); err != nil {
			emit(ctx, events, WatchEvent{Kind: WatchError, Err: err.Error()})
			emit(ctx, events, WatchEvent{Kind: WatchEnded})
			return
		}

		if sig != nil {
			w.handleSignal(ctx, *sig, events)
		}

		// Drain anything else that arrived while breaking idle.
		for {
			select {
			case got := <-w.notify:
				w.handleSignal(ctx, got, events)
				continue
			default:
			}
			break
		}
	}
}

// handleSignal translates one unilateral notification into events.
func (w *watcher) handleSignal(ctx context.Context, sig watchSignal, events chan<- WatchEvent) {
	switch sig.kind {
	case signalExists:
		w.handleExists(ctx, sig.count, events)

	case signalExpunge:
		envelopeID, ok := w.resolveSeq(sig.seq)
		if w.count > 0 {
			w.count--
		}
		if !ok {
			emit(ctx, events, WatchEvent{Kind: WatchRescan, MailboxID: w.mailboxID})
			return
		}
		i := int(sig.seq - w.firstSeq)
		w.seqIDs = append(w.seqIDs[:i], w.seqIDs[i+1:]...)
		emit(ctx, events, WatchEvent{
			Kind:       WatchMessageRemoved,
			MailboxID:  w.mailboxID,
			EnvelopeID: envelopeID,
		})

	case signalFetch:
		envelopeID, ok := w.resolveSeq(sig.seq)
		if !ok {
			emit(ctx, events, WatchEvent{Kind: WatchRescan, MailboxID: w.mailboxID})
			return
		}
		emit(ctx, events, WatchEvent{
			Kind:       WatchFlagsChanged,
			MailboxID:  w.mailboxID,
			EnvelopeID: envelopeID,
			Flags:      sig.flags,
		})
	}
}

// handleExists fetches newly arrived messages so NewMessage events
// carry full headers.
func (w *watcher) handleExists(ctx context.Context, count uint32, events chan<- WatchEvent) {
	if count <= w.count {
		// Shrink without an expunge response means our picture is
		// stale; fall back to a full re-sync.
		if count < w.count {
			w.count = count
			w.rebuildSeqMap()
			emit(ctx, events, WatchEvent{Kind: WatchRescan, MailboxID: w.mailboxID})
		}
		return
	}

	var seqSet imap.SeqSet
	seqSet.AddRange(w.count+1, count)
	w.count = count

	fetchCmd := w.client.Fetch(seqSet, &imap.FetchOptions{
		Envelope:      true,
		Flags:         true,
		UID:           true,
		BodyStructure: &imap.FetchItemBodyStructure{},
	})
	bufs, err := fetchCmd.Collect()
	if err != nil {
		emit(ctx, events, WatchEvent{Kind: WatchRescan, MailboxID: w.mailboxID})
		return
	}

	for _, buf := range bufs {
		m := w.session.summaryFromBuffer(buf, "INBOX", w.mailboxID)

		w.session.mu.Lock()
		w.session.locs[m.EnvelopeID] = location{
			path:      "INBOX",
			uid:       buf.UID,
			mailboxID: w.mailboxID,
		}
		w.session.mu.Unlock()

		w.seqIDs = append(w.seqIDs, m.EnvelopeID)
		emit(ctx, events, WatchEvent{
			Kind:       WatchNewMessage,
			MailboxID:  w.mailboxID,
			EnvelopeID: m.EnvelopeID,
			Flags:      m.Flags(),
			Summary:    &m,
		})
	}
}
