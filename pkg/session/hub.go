package session

import (
	"sync/atomic"

	"github.com/cornelk/hashmap"
	"github.com/srg/photonctl/internal/ringchan"
)

// DefaultSubscriptionBuffer is used when Subscribe is called with a non-positive buffer.
const DefaultSubscriptionBuffer = 16

// Hub fans state snapshots out to observers. A slow observer never blocks the
// session: its oldest pending snapshots are dropped instead.
type Hub struct {
	subs   *hashmap.Map[uint64, *Subscription]
	nextID atomic.Uint64
	closed atomic.Bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: hashmap.New[uint64, *Subscription]()}
}

// Subscription is one observer registration.
type Subscription struct {
	id  uint64
	hub *Hub
	ch  *ringchan.RingChannel[State]
}

// C delivers snapshots in the order they were published. It is closed when the
// subscription or the hub is closed.
func (s *Subscription) C() <-chan State {
	return s.ch.C()
}

// Close removes the observer. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.subs.Del(s.id)
	s.ch.Close()
}

// Subscribe registers an observer keeping at most buffer undelivered snapshots.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriptionBuffer
	}
	sub := &Subscription{
		id:  h.nextID.Add(1),
		hub: h,
		ch:  ringchan.New[State](buffer),
	}
	if h.closed.Load() {
		sub.ch.Close()
		return sub
	}
	h.subs.Set(sub.id, sub)
	return sub
}

// SubscribeFrom registers an observer whose first delivery is initial.
func (h *Hub) SubscribeFrom(buffer int, initial State) *Subscription {
	sub := h.Subscribe(buffer)
	sub.ch.Send(initial)
	return sub
}

// Broadcast delivers st to every observer.
func (h *Hub) Broadcast(st State) {
	h.subs.Range(func(_ uint64, sub *Subscription) bool {
		sub.ch.Send(st)
		return true
	})
}

// Len returns the number of registered observers.
func (h *Hub) Len() int {
	return h.subs.Len()
}

// Close closes every subscription; later subscriptions start closed.
func (h *Hub) Close() {
	h.closed.Store(true)
	var subs []*Subscription
	h.subs.Range(func(_ uint64, sub *Subscription) bool {
		subs = append(subs, sub)
		return true
	})
	for _, sub := range subs {
		sub.Close()
	}
}
