// Package chat implements the realtime core: the live subscription registry,
// the per-connection session state machine, the ordered channel broadcaster,
// and the transport-agnostic gateway that ties them to persistence.
package chat

import "sync"

// Registry is the in-memory map of channel id to the connections currently
// receiving that channel's broadcasts. It is authoritative for live delivery
// only; durable membership lives in the channels service. The registry holds
// nothing across restarts — reconnecting clients re-issue join for every
// channel they want live delivery from.
type Registry struct {
	mu       sync.RWMutex
	channels map[int64]map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[int64]map[string]*Session),
	}
}

// Subscribe adds the session to a channel's live set. Subscribing twice is a
// no-op, not an error.
func (r *Registry) Subscribe(sess *Session, channelID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.channels[channelID]
	if !ok {
		subs = make(map[string]*Session)
		r.channels[channelID] = subs
	}
	subs[sess.ID()] = sess
}

// Unsubscribe removes the session from a channel's live set; no-op if absent.
func (r *Registry) Unsubscribe(sess *Session, channelID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drop(sess.ID(), channelID)
}

// SubscribersOf returns a point-in-time snapshot of a channel's live
// sessions. Concurrent subscribe/unsubscribe is never observed mid-iteration.
func (r *Registry) SubscribersOf(channelID int64) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subs := r.channels[channelID]
	snapshot := make([]*Session, 0, len(subs))
	for _, sess := range subs {
		snapshot = append(snapshot, sess)
	}
	return snapshot
}

// Teardown removes the session from every channel atomically and returns the
// channel ids it was subscribed to. Used on disconnect.
func (r *Registry) Teardown(sess *Session) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []int64
	for channelID, subs := range r.channels {
		if _, ok := subs[sess.ID()]; ok {
			removed = append(removed, channelID)
			r.drop(sess.ID(), channelID)
		}
	}
	return removed
}

// drop assumes r.mu is held for writing.
func (r *Registry) drop(connID string, channelID int64) {
	subs := r.channels[channelID]
	if subs == nil {
		return
	}
	delete(subs, connID)
	if len(subs) == 0 {
		delete(r.channels, channelID)
	}
}
