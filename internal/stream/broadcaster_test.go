package stream

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mr1hm/go-drought-forecast/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	harare   = models.Coordinates{Latitude: -17.8292, Longitude: 31.0522}
	bulawayo = models.Coordinates{Latitude: -20.1325, Longitude: 28.6265}
)

func record(id int64, loc *models.Coordinates) *models.WeatherRecord {
	return &models.WeatherRecord{ID: id, Location: loc}
}

func TestBroadcaster_SubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	id, ch := b.Subscribe(nil)
	if b.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber, got %d", b.SubscriberCount())
	}

	b.Unsubscribe(id)
	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", b.SubscriberCount())
	}

	// Channel should be closed
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed")
		}
	default:
		t.Error("channel should be closed and readable")
	}
}

func TestBroadcaster_Publish(t *testing.T) {
	b := NewBroadcaster()

	id, ch := b.Subscribe(nil)
	defer b.Unsubscribe(id)

	b.Publish(record(42, &harare))

	select {
	case received := <-ch:
		if received.ID != 42 {
			t.Errorf("expected ID 42, got %d", received.ID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for record")
	}
}

func TestBroadcaster_LocationFilter(t *testing.T) {
	b := NewBroadcaster()

	id, ch := b.Subscribe(&harare)
	defer b.Unsubscribe(id)

	b.Publish(record(1, &bulawayo))
	b.Publish(record(2, nil))
	b.Publish(record(3, &harare))

	select {
	case received := <-ch:
		if received.ID != 3 {
			t.Errorf("expected only the Harare record, got %d", received.ID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for record")
	}

	select {
	case extra := <-ch:
		t.Errorf("unexpected extra record %d", extra.ID)
	default:
	}
}

func TestBroadcaster_ConcurrentSubscribePublish(t *testing.T) {
	b := NewBroadcaster()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, ch := b.Subscribe(nil)
			done := make(chan struct{})
			// Drain channel to prevent blocking
			go func() {
				defer close(done)
				for range ch {
				}
			}()
			time.Sleep(5 * time.Millisecond)
			b.Unsubscribe(id)
			<-done
		}()
	}

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			b.Publish(record(int64(n), &harare))
		}(i)
	}

	wg.Wait()

	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", b.SubscriberCount())
	}
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster()

	var channels []<-chan *models.WeatherRecord
	for i := 0; i < 5; i++ {
		_, ch := b.Subscribe(nil)
		channels = append(channels, ch)
	}

	b.Close()

	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after close, got %d", b.SubscriberCount())
	}
	for i, ch := range channels {
		select {
		case _, ok := <-ch:
			if ok {
				t.Errorf("channel %d should be closed", i)
			}
		default:
			t.Errorf("channel %d should be closed and readable", i)
		}
	}

	// Subscribing after Close yields an already-closed channel.
	_, late := b.Subscribe(nil)
	if _, ok := <-late; ok {
		t.Error("expected late subscription to be closed")
	}
}

func TestBroadcaster_SlowSubscriber(t *testing.T) {
	b := NewBroadcaster()

	id, ch := b.Subscribe(nil)
	defer b.Unsubscribe(id)

	for i := 0; i < subscriberBuffer+1; i++ {
		b.Publish(record(int64(i), nil))
	}

	count := 0
	for {
		select {
		case <-ch:
			count++
		default:
			goto done
		}
	}
done:

	if count != subscriberBuffer {
		t.Errorf("expected %d buffered records, got %d", subscriberBuffer, count)
	}
	if b.Dropped() != 1 {
		t.Errorf("expected 1 dropped delivery, got %d", b.Dropped())
	}
}
