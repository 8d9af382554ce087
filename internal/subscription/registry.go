package subscription

import (
	"sort"
	"strings"
	"sync"

	"candleflow/internal/domain"
)

// Registry tracks which users belong to which (symbol, interval) group.
// Both views (group -> users, user -> groups) stay consistent under concurrent
// mutation. Group membership is set-valued: subscribing twice is a no-op.
//
// The state is sharded by group key so unrelated groups never contend on the
// same lock.
type Registry struct {
	shards [shardCount]shard

	userMu sync.RWMutex
	byUser map[string]map[string]domain.Subscription // userID -> groupKey -> subscription
}

const shardCount = 32

type shard struct {
	mu     sync.RWMutex
	groups map[string]map[string]struct{} // groupKey -> set of userIDs
}

// NewRegistry creates an empty subscription registry.
func NewRegistry() *Registry {
	r := &Registry{byUser: make(map[string]map[string]domain.Subscription)}
	for i := range r.shards {
		r.shards[i].groups = make(map[string]map[string]struct{})
	}
	return r
}

func (r *Registry) shardFor(groupKey string) *shard {
	var h uint32 = 2166136261
	for i := 0; i < len(groupKey); i++ {
		h ^= uint32(groupKey[i])
		h *= 16777619
	}
	return &r.shards[h%shardCount]
}

// Subscribe adds the user to the (symbol, interval) group. Returns true if the
// subscription was newly added, false if it already existed.
func (r *Registry) Subscribe(userID, symbol string, interval domain.Interval) bool {
	key := domain.GroupKey(symbol, interval)

	s := r.shardFor(key)
	s.mu.Lock()
	members, ok := s.groups[key]
	if !ok {
		members = make(map[string]struct{})
		s.groups[key] = members
	}
	_, existed := members[userID]
	members[userID] = struct{}{}
	s.mu.Unlock()

	r.userMu.Lock()
	groups, ok := r.byUser[userID]
	if !ok {
		groups = make(map[string]domain.Subscription)
		r.byUser[userID] = groups
	}
	groups[key] = domain.Subscription{
		UserID:   userID,
		Symbol:   strings.ToLower(strings.TrimSpace(symbol)),
		Interval: interval,
		GroupKey: key,
	}
	r.userMu.Unlock()

	return !existed
}

// Unsubscribe removes the user from every interval group of the given symbol.
// Returns false if no matching subscription existed; that is a no-op, not an
// error.
func (r *Registry) Unsubscribe(userID, symbol string) bool {
	prefix := domain.GroupKey(symbol, "") // lower-cased symbol + "@"

	r.userMu.Lock()
	groups := r.byUser[userID]
	var removed []string
	for key := range groups {
		if strings.HasPrefix(key, prefix) {
			removed = append(removed, key)
			delete(groups, key)
		}
	}
	if len(groups) == 0 {
		delete(r.byUser, userID)
	}
	r.userMu.Unlock()

	for _, key := range removed {
		s := r.shardFor(key)
		s.mu.Lock()
		if members, ok := s.groups[key]; ok {
			delete(members, userID)
			if len(members) == 0 {
				delete(s.groups, key)
			}
		}
		s.mu.Unlock()
	}

	return len(removed) > 0
}

// UnsubscribeAll removes every subscription held by the user. Used on client
// disconnect.
func (r *Registry) UnsubscribeAll(userID string) int {
	r.userMu.Lock()
	groups := r.byUser[userID]
	delete(r.byUser, userID)
	r.userMu.Unlock()

	for key := range groups {
		s := r.shardFor(key)
		s.mu.Lock()
		if members, ok := s.groups[key]; ok {
			delete(members, userID)
			if len(members) == 0 {
				delete(s.groups, key)
			}
		}
		s.mu.Unlock()
	}
	return len(groups)
}

// GetAllSubscriptions returns the user's subscriptions sorted by group key.
func (r *Registry) GetAllSubscriptions(userID string) []domain.Subscription {
	r.userMu.RLock()
	groups := r.byUser[userID]
	subs := make([]domain.Subscription, 0, len(groups))
	for _, sub := range groups {
		subs = append(subs, sub)
	}
	r.userMu.RUnlock()

	sort.Slice(subs, func(i, j int) bool { return subs[i].GroupKey < subs[j].GroupKey })
	return subs
}

// Members returns a snapshot of the user IDs currently subscribed to the group.
func (r *Registry) Members(groupKey string) []string {
	s := r.shardFor(groupKey)
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]string, 0, len(s.groups[groupKey]))
	for userID := range s.groups[groupKey] {
		members = append(members, userID)
	}
	return members
}
