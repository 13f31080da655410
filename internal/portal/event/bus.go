// Package event carries committed account state to observers. The engines
// publish a snapshot after every successful transaction; subscribers hold no
// core state and can come and go freely. This replaces the live-document
// listener the portal UI used to point at the store directly.
package event

import (
	"sync"
	"time"

	"github.com/nexusbq/portal/internal/portal/domain"
)

// AccountUpdate is one committed-state notification for a single account.
type AccountUpdate struct {
	AccountID   string
	Account     domain.Account
	CommittedAt time.Time
}

const subscriberBuffer = 8

// Bus is an in-process publish/subscribe hub keyed by account id.
// Publishing never blocks: a subscriber that stops draining its channel
// misses updates rather than stalling the engines.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch chan AccountUpdate
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[*subscriber]struct{})}
}

// Subscribe registers interest in one account's committed updates. The
// returned cancel func must be called to release the subscription; the
// channel is closed once cancelled.
func (b *Bus) Subscribe(accountID string) (<-chan AccountUpdate, func()) {
	sub := &subscriber{ch: make(chan AccountUpdate, subscriberBuffer)}

	b.mu.Lock()
	set, ok := b.subs[accountID]
	if !ok {
		set = make(map[*subscriber]struct{})
		b.subs[accountID] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if set, ok := b.subs[accountID]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(b.subs, accountID)
				}
			}
			b.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish fans an update out to the account's subscribers. Slow subscribers
// with a full buffer are skipped.
func (b *Bus) Publish(update AccountUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[update.AccountID] {
		select {
		case sub.ch <- update:
		default:
		}
	}
}
