package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/aegis/internal/log"
)

// Store persists events for subscribers that reconnect. Optional — a Bus
// with a nil Store still fans out live events, it just can't replay.
type Store interface {
	Save(event *Event) error
	GetPending(missionID string, types []Type) ([]*Event, error)
	MarkDelivered(eventID string) error
}

// Backpressure tuning: how many times (and how long) to retry a send to a
// subscriber whose buffer is momentarily full before disconnecting it.
const (
	maxBackpressureRetries = 3
	backpressureRetryDelay = 10 * time.Millisecond
	subscriberBufferSize   = 100
)

// Subscription is one subscriber's channel plus its type filter.
type Subscription struct {
	Ch     chan Event
	Types  []Type
	Target string // mission id, or GlobalTarget
}

// Bus is the subscription registry and publisher of spec §4.5. Subscribers
// are keyed by mission id plus the reserved GlobalTarget key.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]*Subscription
	store       Store
	dropped     uint64
}

// NewBus creates a new event bus, optionally backed by a persistence Store.
func NewBus(store Store) *Bus {
	return &Bus{
		subscribers: make(map[string][]*Subscription),
		store:       store,
	}
}

// Subscribe creates a subscription for the given mission id (or
// GlobalTarget) and type filter. A nil/empty Types filter receives every
// event type.
func (b *Bus) Subscribe(target string, types []Type) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		Ch:     make(chan Event, subscriberBufferSize),
		Types:  types,
		Target: target,
	}
	b.subscribers[target] = append(b.subscribers[target], sub)
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

func (b *Bus) removeLocked(sub *Subscription) {
	subs, ok := b.subscribers[sub.Target]
	if !ok {
		return
	}
	for i, s := range subs {
		if s == sub {
			close(s.Ch)
			b.subscribers[sub.Target] = append(subs[:i], subs[i+1:]...)
			if len(b.subscribers[sub.Target]) == 0 {
				delete(b.subscribers, sub.Target)
			}
			return
		}
	}
}

// CleanupMission drops every subscriber registered under missionID. Called
// once a mission's terminal event has been delivered (spec §4.5).
func (b *Bus) CleanupMission(missionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range append([]*Subscription{}, b.subscribers[missionID]...) {
		b.removeLocked(sub)
	}
}

// Publish persists (if a Store is configured) and fans out an event to
// every subscriber of its mission plus every global subscriber. Publish
// never blocks on a slow subscriber: a full subscriber buffer hands off to a
// background retry-then-disconnect goroutine instead of stalling the
// producer (spec §4.5, §5).
func (b *Bus) Publish(evt Event) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now()
	}

	if b.store != nil {
		if err := b.store.Save(&evt); err != nil {
			log.WithComponent("events").Warn().Err(err).
				Str("event_type", string(evt.Type)).
				Str("mission_id", evt.MissionID).
				Msg("failed to persist event")
		}
	}

	b.mu.RLock()
	var targets []*Subscription
	targets = append(targets, b.subscribers[evt.MissionID]...)
	targets = append(targets, b.subscribers[GlobalTarget]...)
	b.mu.RUnlock()

	for _, sub := range targets {
		if matches(evt.Type, sub.Types) {
			b.sendWithBackpressure(sub, evt)
		}
	}
}

// sendWithBackpressure makes one non-blocking attempt to deliver evt. If the
// subscriber's buffer is full, the retry-then-disconnect sequence runs on a
// separate goroutine so a slow subscriber never stalls the publisher's
// caller (the mission scheduling loop, in particular).
func (b *Bus) sendWithBackpressure(sub *Subscription, evt Event) {
	select {
	case sub.Ch <- evt:
		return
	default:
	}

	go b.retryThenDrop(sub, evt)
}

func (b *Bus) retryThenDrop(sub *Subscription, evt Event) {
	for retry := 1; retry <= maxBackpressureRetries; retry++ {
		time.Sleep(backpressureRetryDelay)
		select {
		case sub.Ch <- evt:
			return
		default:
		}
	}

	atomic.AddUint64(&b.dropped, 1)
	log.WithComponent("events").Warn().
		Str("event_type", string(evt.Type)).
		Str("mission_id", evt.MissionID).
		Msg("disconnecting subscriber: outbound buffer full")
	b.Unsubscribe(sub)
}

// GetPendingEvents returns events not yet marked delivered for a target,
// when a Store is configured.
func (b *Bus) GetPendingEvents(missionID string, types []Type) ([]*Event, error) {
	if b.store == nil {
		return nil, nil
	}
	return b.store.GetPending(missionID, types)
}

// MarkDelivered marks an event as delivered in the Store, if configured.
func (b *Bus) MarkDelivered(eventID string) error {
	if b.store == nil {
		return nil
	}
	return b.store.MarkDelivered(eventID)
}

// DroppedCount returns how many events have been dropped due to
// persistently-full subscriber buffers.
func (b *Bus) DroppedCount() uint64 {
	return atomic.LoadUint64(&b.dropped)
}

func matches(t Type, filter []Type) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == t {
			return true
		}
	}
	return false
}
