package syncer

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// RefreshMsg asks the app to re-sync the selected mailbox and the
// folder counts. Manual indicates a user-requested refresh.
type RefreshMsg struct {
	Manual bool
}

// Refresher drives periodic background refreshes. A single goroutine
// ticks at a fixed interval into a buffered channel; the event loop
// drains it through Wait, re-arming the command after every delivery.
// Manual refresh requests share the same channel so both paths go
// through one code path in the app.
type Refresher struct {
	interval time.Duration
	ch       chan RefreshMsg
	started  bool
}

// NewRefresher creates a refresher ticking every interval.
func NewRefresher(interval time.Duration) *Refresher {
	return &Refresher{
		interval: interval,
		ch:       make(chan RefreshMsg, 1),
	}
}

// Start launches the ticker goroutine. It stops when ctx is cancelled.
// Calling Start again is a no-op.
func (r *Refresher) Start(ctx context.Context) {
	if r.started {
		return
	}
	r.started = true
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.send(RefreshMsg{})
			}
		}
	}()
}

// Trigger requests an immediate refresh. If one is already queued the
// request coalesces with it.
func (r *Refresher) Trigger() {
	r.send(RefreshMsg{Manual: true})
}

func (r *Refresher) send(msg RefreshMsg) {
	select {
	case r.ch <- msg:
	default:
	}
}

// Wait blocks until the next refresh signal. The app re-arms it after
// handling each RefreshMsg.
func (r *Refresher) Wait() tea.Cmd {
	return func() tea.Msg {
		return <-r.ch
	}
}
