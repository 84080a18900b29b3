package snoochat

import "sync"

// UnknownChannel is what Resolve returns for a channel it has never seen.
const UnknownChannel = "unknown"

// Channel is a joined channel with its human-facing label.
type Channel struct {
	URL         string
	DisplayName string
	IsDirect    bool
	Members     []Member
}

// ChannelFromSnapshot derives a Channel from a listing entry. A direct
// channel is labelled with the counterpart's nickname, i.e. the first
// member that is not ownUserID; any other channel uses its own name.
func ChannelFromSnapshot(g GroupChannel, ownUserID string) Channel {
	ch := Channel{
		URL:      g.URL(),
		IsDirect: g.IsDirect(),
		Members:  append([]Member(nil), g.Members...),
	}
	if ch.IsDirect {
		for _, m := range g.Members {
			if m.UserID != ownUserID {
				ch.DisplayName = m.Nickname
				break
			}
		}
	} else {
		ch.DisplayName = g.ChannelName()
	}
	return ch
}

// ChannelRegistry maps channel urls to Channels.
//
// It is written by the connection's reader goroutine (after a successful
// login) or by an explicit refresh, and read by hooks running on worker
// goroutines. Readers may briefly see the previous mapping while a refresh
// is in flight; the registry is eventually consistent and never shrinks
// except through Rebuild.
type ChannelRegistry struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

// NewChannelRegistry creates an empty registry.
func NewChannelRegistry() *ChannelRegistry {
	return &ChannelRegistry{channels: make(map[string]Channel)}
}

// Rebuild replaces the whole mapping with one derived from snapshot.
func (r *ChannelRegistry) Rebuild(snapshot []GroupChannel, ownUserID string) {
	next := make(map[string]Channel, len(snapshot))
	for _, g := range snapshot {
		ch := ChannelFromSnapshot(g, ownUserID)
		if ch.URL == "" {
			continue
		}
		next[ch.URL] = ch
	}
	r.mu.Lock()
	r.channels = next
	r.mu.Unlock()
}

// Add inserts or overwrites a single channel, leaving the rest untouched.
func (r *ChannelRegistry) Add(g GroupChannel, ownUserID string) Channel {
	ch := ChannelFromSnapshot(g, ownUserID)
	if ch.URL == "" {
		return ch
	}
	r.mu.Lock()
	r.channels[ch.URL] = ch
	r.mu.Unlock()
	return ch
}

// Resolve returns the display name for url, or UnknownChannel.
func (r *ChannelRegistry) Resolve(url string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ch, ok := r.channels[url]; ok {
		return ch.DisplayName
	}
	return UnknownChannel
}

// Lookup returns the stored channel for url.
func (r *ChannelRegistry) Lookup(url string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[url]
	return ch, ok
}

// Len returns the number of known channels.
func (r *ChannelRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// Snapshot returns a copy of the mapping.
func (r *ChannelRegistry) Snapshot() map[string]Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Channel, len(r.channels))
	for k, v := range r.channels {
		out[k] = v
	}
	return out
}
