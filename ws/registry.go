package ws

import (
	"log/slog"
	"sync"
	"time"
)

// PresenceFunc is told when an identity goes offline after the grace delay,
// or comes back after having gone offline. It is never called with the
// registry lock held.
type PresenceFunc func(userID string, online bool)

// Registry maps each authenticated identity to its single active client.
type Registry struct {
	mu       sync.Mutex
	active   map[string]*Client
	pending  map[string]*time.Timer
	grace    time.Duration
	presence PresenceFunc
}

// NewRegistry creates a Registry that waits grace before reporting an
// identity offline.
func NewRegistry(grace time.Duration, presence PresenceFunc) *Registry {
	if presence == nil {
		presence = func(string, bool) {}
	}
	return &Registry{
		active:   make(map[string]*Client),
		pending:  make(map[string]*time.Timer),
		grace:    grace,
		presence: presence,
	}
}

// Bind makes c the active client for its identity and returns the client it
// superseded, if any. A pending offline report for the identity is cancelled.
func (r *Registry) Bind(c *Client) *Client {
	uid := c.Identity().UserID
	r.mu.Lock()
	prev := r.active[uid]
	r.active[uid] = c
	wasPending := false
	if t, ok := r.pending[uid]; ok {
		t.Stop()
		delete(r.pending, uid)
		wasPending = true
	}
	r.mu.Unlock()

	if prev == c {
		return nil
	}
	if prev == nil && !wasPending {
		r.presence(uid, true)
	}
	return prev
}

// Unbind releases c. If c is still the active client for its identity, the
// identity is reported offline once the grace delay passes without a new
// Bind.
func (r *Registry) Unbind(c *Client) {
	uid := c.Identity().UserID
	if uid == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[uid] != c {
		return
	}
	delete(r.active, uid)

	var t *time.Timer
	t = time.AfterFunc(r.grace, func() {
		r.mu.Lock()
		current, ok := r.pending[uid]
		expired := ok && current == t
		if expired {
			delete(r.pending, uid)
		}
		r.mu.Unlock()
		if expired {
			slog.Debug("identity offline", "tag", "ws", "user", uid)
			r.presence(uid, false)
		}
	})
	r.pending[uid] = t
}

// Client returns the active client for userID.
func (r *Registry) Client(userID string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.active[userID]
	return c, ok
}

// IsOnline reports whether userID has an active client or is still inside
// its reconnect grace window.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[userID]; ok {
		return true
	}
	_, ok := r.pending[userID]
	return ok
}

// Identities returns the user IDs with an active client.
func (r *Registry) Identities() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.active))
	for uid := range r.active {
		ids = append(ids, uid)
	}
	return ids
}

// Close cancels every pending offline report.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for uid, t := range r.pending {
		t.Stop()
		delete(r.pending, uid)
	}
}
