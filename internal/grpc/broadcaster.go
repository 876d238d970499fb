package grpc

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mr1hm/pest-forecast/internal/models"
)

const subscriberBuffer = 100

// AlertFilter selects the alerts a stream subscriber receives. Zero fields
// match everything.
type AlertFilter struct {
	PestType    string
	MinCategory models.RiskCategory
}

func (f AlertFilter) Matches(a *models.RiskAlert) bool {
	if f.PestType != "" && !strings.EqualFold(f.PestType, a.PestType) {
		return false
	}
	return f.MinCategory == "" || a.Category.AtLeast(f.MinCategory)
}

// DropMetrics is told about every alert a slow subscriber missed.
type DropMetrics interface {
	AlertDropped(category string)
}

type subscriber struct {
	ch      chan *models.RiskAlert
	filter  AlertFilter
	dropped atomic.Uint64
}

// Broadcaster fans risk alerts out to stream subscribers, each behind its own
// filter. Subscribers that fall behind miss alerts instead of blocking the
// publisher; alerts they filtered out never take buffer space.
type Broadcaster struct {
	subscribers map[uint64]*subscriber
	nextID      atomic.Uint64
	dropped     atomic.Uint64
	metrics     DropMetrics
	mu          sync.RWMutex
}

type BroadcasterOption func(*Broadcaster)

func WithDropMetrics(m DropMetrics) BroadcasterOption {
	return func(b *Broadcaster) { b.metrics = m }
}

func NewBroadcaster(opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		subscribers: make(map[uint64]*subscriber),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Broadcaster) Subscribe(filter AlertFilter) (uint64, <-chan *models.RiskAlert) {
	id := b.nextID.Add(1)
	sub := &subscriber{
		ch:     make(chan *models.RiskAlert, subscriberBuffer),
		filter: filter,
	}

	b.mu.Lock()
	b.subscribers[id] = sub
	b.mu.Unlock()

	return id, sub.ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	if ok {
		close(sub.ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()

	if ok {
		if n := sub.dropped.Load(); n > 0 {
			slog.Warn("alert subscriber missed alerts", "subscriber_id", id, "dropped", n)
		}
	}
}

func (b *Broadcaster) Broadcast(a *models.RiskAlert) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if !sub.filter.Matches(a) {
			continue
		}
		select {
		case sub.ch <- a:
		default:
			sub.dropped.Add(1)
			b.dropped.Add(1)
			if b.metrics != nil {
				b.metrics.AlertDropped(string(a.Category))
			}
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped counts deliveries skipped because a subscriber buffer was full.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes all subscriber channels, causing streams to exit gracefully
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}
