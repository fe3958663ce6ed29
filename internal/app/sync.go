package app

import (
	"log"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jstelzer/neverlight-mail/internal/account"
	"github.com/jstelzer/neverlight-mail/internal/credential"
	"github.com/jstelzer/neverlight-mail/internal/mail"
	"github.com/jstelzer/neverlight-mail/internal/model"
	"github.com/jstelzer/neverlight-mail/internal/syncer"
	"github.com/jstelzer/neverlight-mail/internal/ui/sidebar"
)

// connectedMsg carries the result of a background connection attempt.
type connectedMsg struct {
	accountID string
	session   mail.Session
	err       error
}

// reauthNeededMsg signals that an account's keyring credential is
// missing or was rejected.
type reauthNeededMsg struct {
	accountID string
	reason    string
}

// recoverPending rolls back mutation markers left by a crash. The
// remote outcome was never observed, so the cache reverts to the
// pre-mutation state and the next sync settles it.
func (m *Model) recoverPending(accountID string) tea.Cmd {
	st, ctx := m.store, m.ctx
	return func() tea.Msg {
		ops, err := st.PendingOps(ctx, accountID)
		if err != nil {
			return nil
		}
		for _, op := range ops {
			if err := st.RevertPendingOp(ctx, op.EnvelopeID); err != nil {
				log.Printf("failed to revert pending %s on %d: %v", op.Op, op.EnvelopeID, err)
			}
		}
		return nil
	}
}

// connectAccount dials an account in the background. The password
// comes from the keyring; a missing credential short-circuits into the
// re-auth flow without a network attempt.
func (m *Model) connectAccount(accountID string) tea.Cmd {
	a, ok := m.registry.ByID(accountID)
	if !ok {
		return nil
	}
	a.Conn = model.Connecting()
	cfg := a.Config
	ctx := m.ctx

	return func() tea.Msg {
		password, err := credential.GetPassword(cfg.ID)
		if err != nil || password == "" {
			return reauthNeededMsg{accountID: cfg.ID, reason: "no stored password"}
		}

		sess, err := mail.Connect(ctx, cfg, password)
		if err != nil {
			return connectedMsg{accountID: cfg.ID, err: err}
		}
		return connectedMsg{accountID: cfg.ID, session: sess}
	}
}

func (m Model) handleConnected(msg connectedMsg) (tea.Model, tea.Cmd) {
	a, ok := m.registry.ByID(msg.accountID)
	if !ok {
		if msg.session != nil {
			_ = msg.session.Close()
		}
		return m, nil
	}

	if msg.err != nil {
		if mail.IsAuthError(msg.err) {
			a.Conn = model.ConnFailed("authentication failed")
			return m, func() tea.Msg {
				return reauthNeededMsg{accountID: msg.accountID, reason: "authentication failed"}
			}
		}
		a.Conn = model.ConnFailed(msg.err.Error())
		m.refreshSidebar()
		return m, nil
	}

	gen := a.AttachSession(msg.session)
	a.Conn = model.Syncing()
	m.refreshSidebar()

	// The message sync for the selected folder waits for the folder
	// sync: a fresh session cannot resolve mailbox ids until its path
	// map is built.
	return m, tea.Batch(
		syncer.SyncFolders(m.ctx, m.store, a.Session, a.Config.ID, gen),
		m.startWatch(a.Config.ID),
	)
}

func (m Model) handleReauthNeeded(msg reauthNeededMsg) (tea.Model, tea.Cmd) {
	a, ok := m.registry.ByID(msg.accountID)
	if !ok {
		return m, nil
	}
	a.Conn = model.ConnFailed(msg.reason)
	m.refreshSidebar()

	m.previousView = m.currentView
	m.currentView = ViewSetup
	return m, m.setupForm.StartReauth(a.Config)
}

func (m Model) handleCachedFolders(msg syncer.CachedFoldersMsg) (tea.Model, tea.Cmd) {
	a, ok := m.registry.ByID(msg.AccountID)
	if !ok || msg.Err != nil || len(msg.Folders) == 0 {
		return m, nil
	}

	// Server data may already be in; never overwrite it with cache.
	if len(a.Folders) == 0 {
		a.SetFolders(msg.Folders)
		m.refreshSidebar()
	}

	var cmd tea.Cmd
	if m.selectedMailbox == 0 {
		m, cmd = m.selectInitialFolder(a)
	}
	return m, cmd
}

func (m Model) handleFoldersSynced(msg syncer.FoldersSyncedMsg) (tea.Model, tea.Cmd) {
	a, ok := m.registry.ByID(msg.AccountID)
	if !ok || a.Stale(msg.Generation) {
		return m, nil
	}

	if msg.Err != nil {
		if mail.IsAuthError(msg.Err) {
			a.DropSession("authentication failed")
			m.refreshSidebar()
			return m, func() tea.Msg {
				return reauthNeededMsg{accountID: msg.AccountID, reason: "authentication failed"}
			}
		}
		a.Conn = model.ConnFailed(msg.Err.Error())
		m.refreshSidebar()
		return m, nil
	}

	a.SetFolders(msg.Folders)
	if a.Conn.State == model.ConnSyncing {
		a.Conn = model.Connected()
	}
	m.refreshSidebar()

	if m.selectedMailbox == 0 {
		var cmd tea.Cmd
		m, cmd = m.selectInitialFolder(a)
		return m, cmd
	}
	if sel, ok := m.registry.ByMailbox(m.selectedMailbox); ok && sel == a && a.Connected() {
		return m, syncer.SyncMessages(
			m.ctx, m.store, a.Session, a.Config.ID, a.Generation(),
			m.selectedMailbox, m.pageSize,
		)
	}
	return m, nil
}

func (m Model) handleCachedMessages(msg syncer.CachedMessagesMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		log.Printf("failed to read cached mailbox %d: %v", msg.MailboxID, msg.Err)
		return m, nil
	}
	// Results for a folder the user has already left are dropped.
	if msg.MailboxID != m.selectedMailbox {
		return m, nil
	}

	if msg.Offset > 0 {
		combined := append(m.list.Messages(), msg.Messages...)
		m.list.SetMessages(combined, msg.HasMore)
		return m, nil
	}

	m.list.SetMessages(msg.Messages, msg.HasMore)
	return m, nil
}

func (m Model) handleMessagesSynced(msg syncer.MessagesSyncedMsg) (tea.Model, tea.Cmd) {
	a, ok := m.registry.ByID(msg.AccountID)
	if !ok || a.Stale(msg.Generation) {
		return m, nil
	}

	if msg.Err != nil {
		if mail.IsAuthError(msg.Err) {
			a.DropSession("authentication failed")
			m.refreshSidebar()
			return m, func() tea.Msg {
				return reauthNeededMsg{accountID: msg.AccountID, reason: "authentication failed"}
			}
		}
		a.Conn = model.ConnFailed(msg.Err.Error())
		m.refreshSidebar()
		return m, nil
	}

	if a.Conn.State == model.ConnSyncing {
		a.Conn = model.Connected()
		m.refreshSidebar()
	}

	if msg.MailboxID != m.selectedMailbox {
		return m, nil
	}
	m.offset = 0
	m.list.SetMessages(msg.Messages, msg.HasMore)
	return m, nil
}

func (m Model) handleRefresh(msg syncer.RefreshMsg) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.refresher.Wait()}

	// Only folder syncs are dispatched here; the folder sync result
	// triggers the message sync for the selected folder.
	for _, a := range m.registry.All() {
		if !a.Connected() {
			continue
		}
		a.Conn = model.Syncing()
		cmds = append(cmds, syncer.SyncFolders(
			m.ctx, m.store, a.Session, a.Config.ID, a.Generation(),
		))
	}
	m.refreshSidebar()
	return m, tea.Batch(cmds...)
}

// selectFolder switches the message pane to a mailbox: cached page
// first, then a background sync when the owning account is connected.
func (m Model) selectFolder(mailboxID uint64) (tea.Model, tea.Cmd) {
	m.selectedMailbox = mailboxID
	m.offset = 0
	m.focus = PaneList
	m.sidebar.MarkSelected(mailboxID)
	m.list.SetMessages(nil, false)

	// Detail state goes too, so a late body load or auto-read timer
	// for the previous folder's message cannot land.
	m.view.Clear()

	cmds := []tea.Cmd{
		syncer.LoadCachedMessages(m.ctx, m.store, mailboxID, m.pageSize, 0),
	}
	if a, ok := m.registry.ByMailbox(mailboxID); ok {
		m.registry.SetActive(a.Config.ID)
		if a.Connected() {
			a.Conn = model.Syncing()
			m.refreshSidebar()
			cmds = append(cmds, syncer.SyncMessages(
				m.ctx, m.store, a.Session, a.Config.ID, a.Generation(), mailboxID, m.pageSize,
			))
		}
	}
	return m, tea.Batch(cmds...)
}

// selectInitialFolder opens the first account's INBOX on startup.
func (m Model) selectInitialFolder(a *account.Account) (Model, tea.Cmd) {
	mailboxID, ok := a.MailboxByPath("INBOX")
	if !ok {
		return m, nil
	}
	mdl, cmd := m.selectFolder(mailboxID)
	return mdl.(Model), cmd
}

// loadMore fetches the next cached page.
func (m Model) loadMore() (tea.Model, tea.Cmd) {
	m.offset += m.pageSize
	return m, syncer.LoadCachedMessages(
		m.ctx, m.store, m.selectedMailbox, m.pageSize, m.offset,
	)
}

// refreshSidebar rebuilds the sidebar entries from the registry.
func (m *Model) refreshSidebar() {
	entries := make([]sidebar.Entry, 0, m.registry.Len())
	for _, a := range m.registry.All() {
		entries = append(entries, sidebar.Entry{
			AccountID: a.Config.ID,
			Label:     a.Config.Label,
			Conn:      a.Conn,
			Folders:   a.Folders,
		})
	}
	m.sidebar.SetEntries(entries)
}
