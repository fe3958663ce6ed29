package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jstelzer/neverlight-mail/internal/account"
	"github.com/jstelzer/neverlight-mail/internal/credential"
	"github.com/jstelzer/neverlight-mail/internal/model"
	"github.com/jstelzer/neverlight-mail/internal/setup"
)

// accountRemovedMsg reports the cache cleanup after an account was
// removed.
type accountRemovedMsg struct {
	accountID string
	err       error
}

func (m Model) handleAccountSaved(msg setup.AccountSavedMsg) (tea.Model, tea.Cmd) {
	m.cfg.Accounts = append(m.cfg.Accounts, msg.Config)
	if err := model.SaveConfig(m.cfgPath, m.cfg); err != nil {
		m.statusMsg = "could not save config: " + err.Error()
	}

	a := account.New(msg.Config)
	firstAccount := m.registry.Len() == 0
	m.registry.Add(a)
	m.refreshSidebar()
	m.currentView = ViewMail
	m.focus = PaneSidebar

	cmds := []tea.Cmd{m.connectAccount(msg.Config.ID)}
	if firstAccount {
		m.refresher.Start(m.ctx)
		cmds = append(cmds, m.refresher.Wait())
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleReauthDone(msg setup.ReauthDoneMsg) (tea.Model, tea.Cmd) {
	m.currentView = ViewMail
	return m, m.connectAccount(msg.AccountID)
}

func (m Model) handleSetupCancelled(setup.CancelledMsg) (tea.Model, tea.Cmd) {
	if m.registry.Len() == 0 {
		// Nothing to show without an account.
		m.cancel()
		return m, tea.Quit
	}
	m.currentView = ViewMail
	return m, nil
}

// removeActiveAccount drops the active account's session, credential,
// config entry, and cached rows.
func (m Model) removeActiveAccount() (tea.Model, tea.Cmd) {
	active := m.registry.Active()
	if active == nil {
		return m, nil
	}
	accountID := active.Config.ID

	removed, ok := m.registry.Remove(accountID)
	if !ok {
		return m, nil
	}
	_ = credential.DeletePassword(accountID)

	for i, ac := range m.cfg.Accounts {
		if ac.ID == accountID {
			m.cfg.Accounts = append(m.cfg.Accounts[:i], m.cfg.Accounts[i+1:]...)
			break
		}
	}
	if err := model.SaveConfig(m.cfgPath, m.cfg); err != nil {
		m.statusMsg = "could not save config: " + err.Error()
	}

	// Drop the selection if it pointed into the removed account.
	if _, owns := removed.Folder(m.selectedMailbox); owns || m.registry.Len() == 0 {
		m.selectedMailbox = 0
		m.list.SetMessages(nil, false)
	}
	m.refreshSidebar()

	st, ctx := m.store, m.ctx
	cmds := []tea.Cmd{func() tea.Msg {
		return accountRemovedMsg{
			accountID: accountID,
			err:       st.RemoveAccount(ctx, accountID),
		}
	}}

	if m.registry.Len() == 0 {
		m.currentView = ViewSetup
		cmds = append(cmds, m.setupForm.StartAdd())
	} else if m.selectedMailbox == 0 {
		if next := m.registry.Active(); next != nil {
			var cmd tea.Cmd
			m, cmd = m.selectInitialFolder(next)
			cmds = append(cmds, cmd)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleAccountRemoved(msg accountRemovedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.statusMsg = "cache cleanup failed: " + msg.err.Error()
	}
	return m, nil
}

// nextAccount cycles the active account and opens its INBOX.
func (m Model) nextAccount() (tea.Model, tea.Cmd) {
	all := m.registry.All()
	if len(all) < 2 {
		return m, nil
	}

	active := m.registry.Active()
	for i, a := range all {
		if a == active {
			next := all[(i+1)%len(all)]
			m.registry.SetActive(next.Config.ID)
			return m.selectInitialFolderModel(next)
		}
	}
	return m, nil
}

func (m Model) selectInitialFolderModel(a *account.Account) (tea.Model, tea.Cmd) {
	mdl, cmd := m.selectInitialFolder(a)
	return mdl, cmd
}

// reconnectActive tears down and redials the active account. This is
// the only way out of the Error state.
func (m Model) reconnectActive() (tea.Model, tea.Cmd) {
	active := m.registry.Active()
	if active == nil {
		return m, nil
	}
	active.DropSession("")
	m.refreshSidebar()
	return m, m.connectAccount(active.Config.ID)
}
