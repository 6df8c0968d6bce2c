// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package stream

import (
	"sort"
	"sync"

	"github.com/pterm/pterm"
)

// Hub fans events out to subscribers. Listeners are never removed implicitly:
// whoever subscribes must close the returned Subscription.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]subscriber
	log    *pterm.Logger
}

type subscriber struct {
	kinds []Kind
	fn    Handler
}

func (s subscriber) wants(k Kind) bool {
	if len(s.kinds) == 0 {
		return true
	}
	for _, want := range s.kinds {
		if want == k {
			return true
		}
	}
	return false
}

// NewHub creates an empty hub.
func NewHub(log *pterm.Logger) *Hub {
	return &Hub{subs: make(map[uint64]subscriber), log: log}
}

// Subscribe registers fn for the given kinds, or for every kind when none are
// given.
func (h *Hub) Subscribe(fn Handler, kinds ...Kind) *Subscription {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = subscriber{kinds: append([]Kind(nil), kinds...), fn: fn}
	h.mu.Unlock()

	return newSubscription(func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	})
}

// Publish delivers ev synchronously to every matching subscriber in
// registration order. A panicking handler is logged and skipped.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	ids := make([]uint64, 0, len(h.subs))
	for id, s := range h.subs {
		if s.wants(ev.Kind) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]Handler, len(ids))
	for i, id := range ids {
		handlers[i] = h.subs[id].fn
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		h.deliver(fn, ev)
	}
}

func (h *Hub) deliver(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("event subscriber panicked", h.log.Args("kind", ev.Kind.String(), "panic", r))
		}
	}()
	fn(ev)
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	once   sync.Once
	remove func()
}

func newSubscription(remove func()) *Subscription {
	return &Subscription{remove: remove}
}

// NewSubscription wraps an arbitrary removal function in a Subscription so
// other transports can hand out the same handle type.
func NewSubscription(remove func()) *Subscription { return newSubscription(remove) }

// Close removes exactly the listener this handle registered. Repeated calls
// are no-ops.
func (s *Subscription) Close() error {
	if s == nil {
		return nil
	}
	s.once.Do(s.remove)
	return nil
}
