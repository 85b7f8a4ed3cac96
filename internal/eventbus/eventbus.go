// Package eventbus assigns each mutation a monotonic per-process sequence
// number and fans it out to subscribers with bounded-buffer,
// drop-on-overflow delivery: an event that does not fit in a subscriber's
// full buffer is dropped for that subscriber only, the subscription stays
// open, and the subscriber is not told about the gap. Grounded on the
// teacher pack's bounded-queue idiom (pkg/ingest/queue/engine.go)
// generalized from a single global channel to per-subscriber channels so
// one slow SSE client cannot starve the rest.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/agentation/broker/internal/logger"
	"github.com/agentation/broker/internal/metrics"
	"github.com/agentation/broker/internal/store"
)

// subscriberCapacity bounds how many undelivered events a subscriber may
// queue before new events are dropped for it.
const subscriberCapacity = 256

// Bus assigns sequence numbers to events, persists them through Store, and
// fans them out to live subscribers. It does not retain events itself;
// replay beyond what a subscriber's buffer held is served from Store.
type Bus struct {
	store store.Store
	seq   int64

	mu   sync.Mutex
	subs map[int64]*subscription
	next int64
}

type subscription struct {
	id        int64
	sessionID string // empty means "all sessions"
	ch        chan store.Event
	dropped   uint64
}

// New constructs a Bus over the given store. The sequence counter starts
// at the highest sequence already recorded, so a process restart against a
// durable store resumes numbering rather than colliding with old events.
func New(ctx context.Context, st store.Store) (*Bus, error) {
	b := &Bus{store: st, subs: map[int64]*subscription{}}

	last, err := highestSequence(ctx, st)
	if err != nil {
		return nil, err
	}
	b.seq = last
	return b, nil
}

func highestSequence(ctx context.Context, st store.Store) (int64, error) {
	evs, err := st.GetEventsSinceGlobal(ctx, 0, 0)
	if err != nil {
		return 0, err
	}
	var max int64
	for _, ev := range evs {
		if ev.Sequence > max {
			max = ev.Sequence
		}
	}
	return max, nil
}

// Publish assigns the next sequence number to ev, persists it, and
// delivers it to every live subscriber whose scope matches. The caller
// supplies everything except Sequence.
func (b *Bus) Publish(ctx context.Context, ev store.Event) (store.Event, error) {
	ev.Sequence = atomic.AddInt64(&b.seq, 1)

	persisted, err := b.store.AppendEvent(ctx, ev)
	if err != nil {
		return store.Event{}, err
	}
	metrics.EventSequenceHighWaterMark.Set(float64(persisted.Sequence))

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if sub.sessionID != "" && sub.sessionID != persisted.SessionID {
			continue
		}
		select {
		case sub.ch <- persisted:
		default:
			atomic.AddUint64(&sub.dropped, 1)
			metrics.SubscriberDroppedEvents.Inc()
			logger.Warn("eventbus subscriber buffer full, dropping event",
				"subscriber", sub.id, "sequence", persisted.Sequence)
		}
	}
	return persisted, nil
}

// Subscription is a live feed plus the means to stop receiving further
// events. Missed events are replayed from the Store with ReplaySession or
// ReplayAll.
type Subscription struct {
	C      <-chan store.Event
	cancel func()
}

// Close stops delivery and releases the subscriber's buffer.
func (s *Subscription) Close() { s.cancel() }

// SubscribeSession opens a feed scoped to one session. The feed carries
// only events published after the call; callers replay durable history
// with ReplaySession before consuming C (the Last-Event-ID reconnection
// semantics).
func (b *Bus) SubscribeSession(sessionID string) *Subscription {
	return b.subscribe(sessionID)
}

// SubscribeAll opens a feed spanning every session.
func (b *Bus) SubscribeAll() *Subscription {
	return b.subscribe("")
}

func (b *Bus) subscribe(sessionID string) *Subscription {
	b.mu.Lock()
	id := b.next
	b.next++
	sub := &subscription{id: id, sessionID: sessionID, ch: make(chan store.Event, subscriberCapacity)}
	b.subs[id] = sub
	b.mu.Unlock()
	metrics.EventBusSubscribers.Inc()

	closeOnce := sync.Once{}
	cancel := func() {
		closeOnce.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			metrics.EventBusSubscribers.Dec()
		})
	}
	return &Subscription{C: sub.ch, cancel: cancel}
}

// ReplaySession returns durable events for sessionID strictly after
// lastSequence, for Last-Event-ID based SSE reconnection.
func (b *Bus) ReplaySession(ctx context.Context, sessionID string, lastSequence int64) ([]store.Event, error) {
	return b.store.GetEventsSince(ctx, sessionID, lastSequence, 0)
}

// ReplayAll returns durable events across every session strictly after
// lastSequence.
func (b *Bus) ReplayAll(ctx context.Context, lastSequence int64) ([]store.Event, error) {
	return b.store.GetEventsSinceGlobal(ctx, lastSequence, 0)
}
