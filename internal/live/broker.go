// Package live implements reactive reads over the local store: a
// table-change broker plus query subscriptions that recompute whenever
// a table they touched changes, so callers never poll or invalidate
// by hand.
package live

import "sync"

// Broker fans table-change notifications out to query subscriptions.
// The store's change listener feeds Publish after every committed
// write transaction.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan struct{}]struct{}
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan struct{}]struct{})}
}

// Publish signals every subscription watching any of the given tables.
// Signals coalesce: a slow subscriber sees at least one wake-up, not
// one per publish.
func (b *Broker) Publish(tables []string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[chan struct{}]struct{})
	for _, table := range tables {
		for ch := range b.subs[table] {
			if _, dup := seen[ch]; dup {
				continue
			}
			seen[ch] = struct{}{}
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

func (b *Broker) subscribe(tables []string, ch chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, table := range tables {
		set, ok := b.subs[table]
		if !ok {
			set = make(map[chan struct{}]struct{})
			b.subs[table] = set
		}
		set[ch] = struct{}{}
	}
}

func (b *Broker) unsubscribe(ch chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for table, set := range b.subs {
		delete(set, ch)
		if len(set) == 0 {
			delete(b.subs, table)
		}
	}
}
