package account

// Registry owns the configured accounts and tracks which one is
// active. Mailbox-to-account routing scans the folder lists, which are
// small (tens of folders per account).
type Registry struct {
	accounts []*Account
	active   int
}

// NewRegistry builds a registry with one Account per config entry.
func NewRegistry(accounts []*Account) *Registry {
	return &Registry{accounts: accounts}
}

// All returns the accounts in configuration order.
func (r *Registry) All() []*Account { return r.accounts }

// Len returns the number of accounts.
func (r *Registry) Len() int { return len(r.accounts) }

// ByID returns the account with the given id.
func (r *Registry) ByID(id string) (*Account, bool) {
	for _, a := range r.accounts {
		if a.Config.ID == id {
			return a, true
		}
	}
	return nil, false
}

// ByMailbox routes a mailbox identity to its owning account.
func (r *Registry) ByMailbox(mailboxID uint64) (*Account, bool) {
	for _, a := range r.accounts {
		if _, ok := a.Folder(mailboxID); ok {
			return a, true
		}
	}
	return nil, false
}

// Active returns the currently selected account, or nil when the
// registry is empty.
func (r *Registry) Active() *Account {
	if len(r.accounts) == 0 {
		return nil
	}
	if r.active >= len(r.accounts) {
		r.active = 0
	}
	return r.accounts[r.active]
}

// SetActive selects the account with the given id.
func (r *Registry) SetActive(id string) bool {
	for i, a := range r.accounts {
		if a.Config.ID == id {
			r.active = i
			return true
		}
	}
	return false
}

// Add appends a newly configured account and makes it active.
func (r *Registry) Add(a *Account) {
	r.accounts = append(r.accounts, a)
	r.active = len(r.accounts) - 1
}

// Remove detaches the account with the given id, closing its session.
// Credential and cache cleanup belong to the caller, which owns those
// collaborators.
func (r *Registry) Remove(id string) (*Account, bool) {
	for i, a := range r.accounts {
		if a.Config.ID != id {
			continue
		}
		a.DropSession("")
		r.accounts = append(r.accounts[:i], r.accounts[i+1:]...)
		if r.active >= len(r.accounts) && r.active > 0 {
			r.active = len(r.accounts) - 1
		}
		return a, true
	}
	return nil, false
}
