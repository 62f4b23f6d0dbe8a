// Package subscription tracks the channels a consumer wants active.
//
// The registry is an insertion-ordered set. Its contents are replayed to the
// server after every successful (re)connection, in insertion order.
package subscription

import "sync"

// Registry is an insertion-ordered set of channel names. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	channels []string
	index    map[string]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]struct{}),
	}
}

// Add tracks channel. Returns false if it was already tracked.
func (r *Registry) Add(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[channel]; ok {
		return false
	}
	r.index[channel] = struct{}{}
	r.channels = append(r.channels, channel)
	return true
}

// Remove stops tracking channel. Returns false if it was not tracked.
func (r *Registry) Remove(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[channel]; !ok {
		return false
	}
	delete(r.index, channel)
	for i, c := range r.channels {
		if c == channel {
			r.channels = append(r.channels[:i:i], r.channels[i+1:]...)
			break
		}
	}
	return true
}

// Channels returns a copy of the tracked channels in insertion order.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.channels))
	copy(out, r.channels)
	return out
}

// Len returns the number of tracked channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// Clear stops tracking every channel.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.channels = nil
	r.index = make(map[string]struct{})
}
