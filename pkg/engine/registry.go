// ABOUTME: Registry of playback channels keyed by target
// ABOUTME: Serialised add/remove with lock-free lookup for dispatch
package engine

import (
	"sort"
	"sync"
)

// Registry maps targets to their playback channels. Add, Remove and Clear
// are serialised by a mutex; Dispatch only reads the sync.Map, which
// publishes fully constructed channels atomically.
type Registry struct {
	mu         sync.Mutex
	channels   sync.Map // TargetID -> *Channel
	newChannel func(TargetID) *Channel
	closed     bool
}

// NewRegistry creates a registry that builds channels with newChannel
func NewRegistry(newChannel func(TargetID) *Channel) *Registry {
	return &Registry{newChannel: newChannel}
}

// Add creates and starts a channel for id. A channel that stopped on its
// own, such as one whose output failed to open, is replaced. It reports
// false if a live channel exists or the registry has been cleared.
func (r *Registry) Add(id TargetID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	if v, exists := r.channels.Load(id); exists && v.(*Channel).State() != StateStopped {
		return false
	}

	ch := r.newChannel(id)
	r.channels.Store(id, ch)
	ch.Start()
	return true
}

// Remove unregisters id and signals its channel to stop. It reports false
// if id was not registered.
func (r *Registry) Remove(id TargetID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.channels.LoadAndDelete(id)
	if !ok {
		return false
	}
	v.(*Channel).Stop()
	return true
}

// Dispatch enqueues chunk on id's channel. Chunks for unknown targets are
// dropped; the return value reports whether the chunk was queued.
func (r *Registry) Dispatch(id TargetID, chunk []byte) bool {
	v, ok := r.channels.Load(id)
	if !ok {
		return false
	}
	return v.(*Channel).Enqueue(chunk)
}

// Get returns the channel registered for id
func (r *Registry) Get(id TargetID) (*Channel, bool) {
	v, ok := r.channels.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Channel), true
}

// Clear stops every channel, empties the registry and rejects later adds.
// The stopped channels are returned so callers can wait on them.
func (r *Registry) Clear() []*Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true

	var stopped []*Channel
	r.channels.Range(func(key, value interface{}) bool {
		r.channels.Delete(key)
		ch := value.(*Channel)
		ch.Stop()
		stopped = append(stopped, ch)
		return true
	})
	return stopped
}

// Targets returns the registered targets in ascending order
func (r *Registry) Targets() []TargetID {
	var ids []TargetID
	r.channels.Range(func(key, _ interface{}) bool {
		ids = append(ids, key.(TargetID))
		return true
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of registered targets
func (r *Registry) Len() int {
	n := 0
	r.channels.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// Stats returns statistics for every channel, ordered by target
func (r *Registry) Stats() []ChannelStats {
	var stats []ChannelStats
	for _, id := range r.Targets() {
		if ch, ok := r.Get(id); ok {
			stats = append(stats, ch.Stats())
		}
	}
	return stats
}
