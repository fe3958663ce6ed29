// Package app wires the root Bubble Tea model: it owns all mutable
// state, routes messages to the handlers in this package, and renders
// the sidebar, message list, and message view.
package app

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jstelzer/neverlight-mail/internal/account"
	"github.com/jstelzer/neverlight-mail/internal/keys"
	"github.com/jstelzer/neverlight-mail/internal/model"
	"github.com/jstelzer/neverlight-mail/internal/mutate"
	"github.com/jstelzer/neverlight-mail/internal/setup"
	"github.com/jstelzer/neverlight-mail/internal/store"
	"github.com/jstelzer/neverlight-mail/internal/syncer"
	"github.com/jstelzer/neverlight-mail/internal/ui"
	"github.com/jstelzer/neverlight-mail/internal/ui/messagelist"
	"github.com/jstelzer/neverlight-mail/internal/ui/messageview"
	"github.com/jstelzer/neverlight-mail/internal/ui/sidebar"
	"github.com/jstelzer/neverlight-mail/internal/watch"
)

// autoReadDwell is how long a message stays open before it is marked
// read automatically.
const autoReadDwell = 5 * time.Second

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewMail ViewState = iota
	ViewMessage
	ViewHelp
	ViewSetup
)

// Pane is the focused panel within ViewMail.
type Pane int

const (
	PaneSidebar Pane = iota
	PaneList
)

// Model is the root Bubble Tea model.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg     *model.AppConfig
	cfgPath string
	store   store.Store

	registry   *account.Registry
	engine     *mutate.Engine
	reconciler watch.Reconciler
	refresher  *syncer.Refresher
	keys       *keys.KeyMap

	currentView  ViewState
	previousView ViewState
	focus        Pane
	layout       ui.Layout
	ready        bool

	sidebar   sidebar.Model
	list      messagelist.Model
	view      messageview.Model
	setupForm setup.Model

	selectedMailbox uint64
	pageSize        int
	offset          int

	statusMsg string
}

// New creates the root application model.
func New(cfg *model.AppConfig, cfgPath string, s store.Store) Model {
	ctx, cancel := context.WithCancel(context.Background())

	accounts := make([]*account.Account, 0, len(cfg.Accounts))
	for _, ac := range cfg.Accounts {
		accounts = append(accounts, account.New(ac))
	}

	engine := mutate.NewEngine()
	k := keys.DefaultKeyMap()

	interval := time.Duration(cfg.Display.RefreshIntervalSec) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	pageSize := cfg.Display.PageSize
	if pageSize <= 0 {
		pageSize = store.DefaultPageSize
	}

	return Model{
		ctx:        ctx,
		cancel:     cancel,
		cfg:        cfg,
		cfgPath:    cfgPath,
		store:      s,
		registry:   account.NewRegistry(accounts),
		engine:     engine,
		reconciler: watch.Reconciler{Pending: engine.Pending},
		refresher:  syncer.NewRefresher(interval),
		keys:       k,
		sidebar:    sidebar.New(k, 30, 24),
		list:       messagelist.New(k, 80, 24),
		view:       messageview.New(k, 80, 24),
		setupForm:  setup.New(80, 24),
		pageSize:   pageSize,
	}
}

// Init starts the refresher, loads cached data for every account, and
// begins connecting in the background. With no accounts configured it
// opens the setup form instead.
func (m Model) Init() tea.Cmd {
	if m.registry.Len() == 0 {
		return nil
	}

	m.refresher.Start(m.ctx)

	cmds := []tea.Cmd{m.refresher.Wait()}
	for _, a := range m.registry.All() {
		cmds = append(cmds,
			m.recoverPending(a.Config.ID),
			syncer.LoadCachedFolders(m.ctx, m.store, a.Config.ID),
			m.connectAccount(a.Config.ID),
		)
	}
	return tea.Batch(cmds...)
}

// Update routes messages to the per-category handlers.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		if m.registry.Len() == 0 && m.currentView != ViewSetup {
			m.currentView = ViewSetup
			cmd := m.setupForm.StartAdd()
			m.applySizes()
			return m, cmd
		}
		m.applySizes()
		return m.updateActiveView(msg)

	// Cache-first loading and background sync.
	case syncer.CachedFoldersMsg:
		return m.handleCachedFolders(msg)
	case syncer.FoldersSyncedMsg:
		return m.handleFoldersSynced(msg)
	case syncer.CachedMessagesMsg:
		return m.handleCachedMessages(msg)
	case syncer.MessagesSyncedMsg:
		return m.handleMessagesSynced(msg)
	case syncer.RefreshMsg:
		return m.handleRefresh(msg)
	case connectedMsg:
		return m.handleConnected(msg)
	case reauthNeededMsg:
		return m.handleReauthNeeded(msg)

	// Bodies and auto-read.
	case syncer.BodyLoadedMsg:
		return m.handleBodyLoaded(msg)
	case bodyRetryMsg:
		return m.handleBodyRetry(msg)
	case autoReadMsg:
		return m.handleAutoRead(msg)

	// Optimistic mutations.
	case flagResultMsg:
		return m.handleFlagResult(msg)
	case moveResultMsg:
		return m.handleMoveResult(msg)

	// Server push.
	case watchStartedMsg:
		return m.handleWatchStarted(msg)
	case watchEventMsg:
		return m.handleWatchEvent(msg)

	// Account lifecycle.
	case setup.AccountSavedMsg:
		return m.handleAccountSaved(msg)
	case setup.ReauthDoneMsg:
		return m.handleReauthDone(msg)
	case setup.CancelledMsg:
		return m.handleSetupCancelled(msg)
	case accountRemovedMsg:
		return m.handleAccountRemoved(msg)

	// Navigation intents from sub-views.
	case sidebar.SelectedFolderMsg:
		return m.selectFolder(msg.MailboxID)
	case messagelist.SelectedMessageMsg:
		return m.openMessage(msg)
	case messagelist.LoadMoreMsg:
		return m.loadMore()
	case messageview.BackMsg:
		m.currentView = ViewMail
		m.focus = PaneList
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}

	return m.updateActiveView(msg)
}

// applySizes propagates the layout to the sub-views.
func (m *Model) applySizes() {
	contentWidth := m.layout.ContentWidth()
	contentHeight := m.layout.ContentHeight()
	m.sidebar.SetSize(m.layout.SidebarWidth, contentHeight)
	m.list.SetSize(contentWidth, contentHeight)
	m.view.SetSize(contentWidth, contentHeight)
	m.setupForm.SetSize(m.layout.Width, contentHeight)
}

// updateActiveView dispatches the message to the focused component.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewMail:
		if m.focus == PaneSidebar {
			m.sidebar, cmd = m.sidebar.Update(msg)
		} else {
			m.list, cmd = m.list.Update(msg)
		}
	case ViewMessage:
		m.view, cmd = m.view.Update(msg)
	case ViewSetup:
		m.setupForm, cmd = m.setupForm.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Neverlight Mail", m.connStatus())
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	var panels string
	switch m.currentView {
	case ViewSetup:
		panels = m.setupForm.View()
	case ViewHelp:
		panels = m.helpView()
	case ViewMessage:
		panels = m.layout.RenderPanels(m.sidebar.View(), m.view.View())
	default:
		panels = m.layout.RenderPanels(m.sidebar.View(), m.list.View())
	}

	return m.layout.RenderWithFrame(header, panels, statusBar)
}

// connStatus summarizes the connection state across accounts for the
// header.
func (m Model) connStatus() string {
	syncing, errored := 0, 0
	for _, a := range m.registry.All() {
		switch a.Conn.State {
		case model.ConnSyncing, model.ConnConnecting:
			syncing++
		case model.ConnError:
			errored++
		}
	}
	if syncing > 0 {
		return fmt.Sprintf("syncing (%d)", syncing)
	}
	if errored > 0 {
		return fmt.Sprintf("offline (%d)", errored)
	}
	if m.registry.Len() == 0 {
		return "no accounts"
	}
	return "idle"
}

// keyHints returns the status bar contents for the active view.
func (m Model) keyHints() string {
	if m.statusMsg != "" {
		return m.statusMsg
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help"
	case ViewSetup:
		return "enter next | esc cancel"
	case ViewMessage:
		return "esc back | m read | s star | e archive | d trash | j/k scroll"
	default:
		if m.focus == PaneSidebar {
			return "j/k move | enter open folder | tab account | A add | X remove | q quit"
		}
		return "enter open | m read | s star | e archive | d trash | / search | c thread | r refresh | ? help"
	}
}

// helpView renders the keybinding reference.
func (m Model) helpView() string {
	out := "Keybindings\n\n"
	for _, group := range m.keys.FullHelp() {
		for _, b := range group {
			out += fmt.Sprintf("  %-12s %s\n", b.Help().Key, b.Help().Desc)
		}
		out += "\n"
	}
	return out
}
