// Package stream fans freshly persisted weather records out to live subscribers.
package stream

import (
	"sync"
	"sync/atomic"

	"github.com/mr1hm/go-drought-forecast/internal/models"
)

const subscriberBuffer = 32

type subscriber struct {
	ch     chan *models.WeatherRecord
	filter *models.Coordinates
}

type Broadcaster struct {
	subscribers map[uint64]subscriber
	nextID      atomic.Uint64
	dropped     atomic.Uint64
	closed      bool
	mu          sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]subscriber),
	}
}

// Subscribe registers a listener. A non-nil filter restricts delivery to
// records tagged with that location.
func (b *Broadcaster) Subscribe(filter *models.Coordinates) (uint64, <-chan *models.WeatherRecord) {
	id := b.nextID.Add(1)
	ch := make(chan *models.WeatherRecord, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subscribers[id] = subscriber{ch: ch, filter: filter}
	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if sub, ok := b.subscribers[id]; ok {
		close(sub.ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

// Publish delivers r to every matching subscriber without blocking;
// subscribers with a full buffer miss the record.
func (b *Broadcaster) Publish(r *models.WeatherRecord) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if sub.filter != nil && (r.Location == nil || !sub.filter.Matches(*r.Location)) {
			continue
		}
		select {
		case sub.ch <- r:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped is the number of deliveries skipped because a subscriber was full.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Close ends every subscription and rejects new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}
