// Package subscribers maintains the set of chat ids that receive alerts.
package subscribers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/quantfold/smasentinel/internal/logger"
)

// Store persists subscriber membership changes.
type Store interface {
	AddSubscriber(chatID int64) error
	RemoveSubscriber(chatID int64) error
	LoadSubscribers() ([]int64, error)
}

// Registry is a concurrency-safe subscriber set with write-through
// persistence. Command handlers mutate it while the dispatcher reads
// point-in-time snapshots.
type Registry struct {
	mu      sync.Mutex
	members map[int64]struct{}
	store   Store
}

// New creates a registry backed by store and loads persisted members.
// A nil store keeps the registry purely in memory.
func New(store Store) (*Registry, error) {
	r := &Registry{
		members: make(map[int64]struct{}),
		store:   store,
	}
	if store != nil {
		ids, err := store.LoadSubscribers()
		if err != nil {
			return nil, fmt.Errorf("failed to load subscribers: %w", err)
		}
		for _, id := range ids {
			r.members[id] = struct{}{}
		}
		if len(ids) > 0 {
			logger.Info("Loaded %d persisted subscribers", len(ids))
		}
	}
	return r, nil
}

// Add subscribes a chat id. Returns false if it was already subscribed.
func (r *Registry) Add(chatID int64) (bool, error) {
	if chatID <= 0 {
		return false, fmt.Errorf("invalid chat id: %d", chatID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[chatID]; exists {
		return false, nil
	}
	if r.store != nil {
		if err := r.store.AddSubscriber(chatID); err != nil {
			return false, err
		}
	}
	r.members[chatID] = struct{}{}
	logger.Info("Chat %d subscribed (%d total)", chatID, len(r.members))
	return true, nil
}

// Remove unsubscribes a chat id. Returns false if it was not subscribed.
func (r *Registry) Remove(chatID int64) (bool, error) {
	if chatID <= 0 {
		return false, fmt.Errorf("invalid chat id: %d", chatID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[chatID]; !exists {
		return false, nil
	}
	if r.store != nil {
		if err := r.store.RemoveSubscriber(chatID); err != nil {
			return false, err
		}
	}
	delete(r.members, chatID)
	logger.Info("Chat %d unsubscribed (%d total)", chatID, len(r.members))
	return true, nil
}

// Contains reports whether a chat id is subscribed.
func (r *Registry) Contains(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.members[chatID]
	return exists
}

// Snapshot returns the current members in ascending order.
func (r *Registry) Snapshot() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int64, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Count returns the number of subscribers.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}
