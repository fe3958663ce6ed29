// Package setup holds the account add/re-auth forms shown on first run
// and when the user adds an account or a credential goes missing.
package setup

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/google/uuid"

	"github.com/jstelzer/neverlight-mail/internal/credential"
	"github.com/jstelzer/neverlight-mail/internal/model"
	"github.com/jstelzer/neverlight-mail/internal/theme"
)

// Mode selects which form is shown.
type Mode int

const (
	// ModeAccount is the full add-account form.
	ModeAccount Mode = iota

	// ModeReauth asks only for a password, when the account config
	// exists but its keyring credential is missing or rejected.
	ModeReauth
)

// AccountSavedMsg signals a new account was configured; the password
// is already in the keyring.
type AccountSavedMsg struct {
	Config model.AccountConfig
}

// ReauthDoneMsg signals a replacement password was stored.
type ReauthDoneMsg struct {
	AccountID string
}

// CancelledMsg signals the form was dismissed without saving.
type CancelledMsg struct{}

// Model is the setup form component.
type Model struct {
	mode Mode
	form *huh.Form

	// Form field values (huh binds to these).
	formLabel    string
	formServer   string
	formPort     string
	formUsername string
	formPassword string
	formStartTLS bool

	reauthAccount model.AccountConfig
	statusMsg     string

	width, height int
}

// New creates a setup form model.
func New(width, height int) Model {
	return Model{width: width, height: height}
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// StartAdd opens the full add-account form.
func (m *Model) StartAdd() tea.Cmd {
	m.mode = ModeAccount
	m.formLabel = ""
	m.formServer = ""
	m.formPort = "993"
	m.formUsername = ""
	m.formPassword = ""
	m.formStartTLS = false
	m.statusMsg = ""
	m.form = m.buildAccountForm()
	return m.form.Init()
}

// StartReauth opens the password-only form for an existing account.
func (m *Model) StartReauth(cfg model.AccountConfig) tea.Cmd {
	m.mode = ModeReauth
	m.reauthAccount = cfg
	m.formPassword = ""
	m.statusMsg = ""
	m.form = m.buildReauthForm()
	return m.form.Init()
}

func (m *Model) buildAccountForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Label").
				Description("A name for this account").
				Placeholder("Work").
				Value(&m.formLabel).
				Validate(validateRequired("Label")),
			huh.NewInput().
				Title("IMAP Server").
				Description("IMAP server hostname").
				Placeholder("imap.example.com").
				Value(&m.formServer).
				Validate(validateRequired("Server")),
			huh.NewInput().
				Title("Port").
				Description("IMAP server port (993 for TLS, 143 for STARTTLS)").
				Placeholder("993").
				Value(&m.formPort).
				Validate(validatePort),
			huh.NewInput().
				Title("Username").
				Description("Login name, usually the email address").
				Placeholder("user@example.com").
				Value(&m.formUsername).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Password").
				Description("Account password or app password").
				EchoMode(huh.EchoModePassword).
				Value(&m.formPassword).
				Validate(validateRequired("Password")),
			huh.NewConfirm().
				Title("Use STARTTLS").
				Description("Upgrade a plaintext connection instead of implicit TLS").
				Affirmative("Yes").
				Negative("No").
				Value(&m.formStartTLS),
		),
	).WithWidth(m.formWidth())
}

func (m *Model) buildReauthForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("Password for %s", m.reauthAccount.Label)).
				Description(fmt.Sprintf("Re-enter the password for %s", m.reauthAccount.Username)).
				EchoMode(huh.EchoModePassword).
				Value(&m.formPassword).
				Validate(validateRequired("Password")),
		),
	).WithWidth(m.formWidth())
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w > 80 {
		w = 80
	}
	if w < 20 {
		w = 20
	}
	return w
}

// Update drives the active form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		if m.mode == ModeReauth {
			return m.saveReauth()
		}
		return m.saveAccount()
	}
	if m.form.State == huh.StateAborted {
		m.form = nil
		return m, func() tea.Msg { return CancelledMsg{} }
	}

	return m, cmd
}

func (m Model) saveAccount() (Model, tea.Cmd) {
	port, err := strconv.Atoi(strings.TrimSpace(m.formPort))
	if err != nil {
		port = 993
	}

	cfg := model.AccountConfig{
		ID:             uuid.NewString(),
		Label:          m.formLabel,
		Server:         m.formServer,
		Port:           port,
		Username:       m.formUsername,
		StartTLS:       m.formStartTLS,
		EmailAddresses: []string{m.formUsername},
	}

	if err := credential.SetPassword(cfg.ID, m.formPassword); err != nil {
		m.statusMsg = fmt.Sprintf("Error saving credential: %v", err)
		m.form = nil
		return m, nil
	}

	m.form = nil
	return m, func() tea.Msg { return AccountSavedMsg{Config: cfg} }
}

func (m Model) saveReauth() (Model, tea.Cmd) {
	accountID := m.reauthAccount.ID
	if err := credential.SetPassword(accountID, m.formPassword); err != nil {
		m.statusMsg = fmt.Sprintf("Error saving credential: %v", err)
		m.form = nil
		return m, nil
	}

	m.form = nil
	return m, func() tea.Msg { return ReauthDoneMsg{AccountID: accountID} }
}

// View renders the active form.
func (m Model) View() string {
	if m.statusMsg != "" {
		return theme.HelpStyle.Render(m.statusMsg)
	}
	if m.form == nil {
		return ""
	}
	return m.form.View()
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validatePort(s string) error {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}
