package bus

import (
	"sync"
	"testing"
	"time"
)

func drain(t *testing.T, sub *Subscription, want int, timeout time.Duration) []Change {
	t.Helper()

	var got []Change
	deadline := time.After(timeout)
	for len(got) < want {
		select {
		case c, ok := <-sub.Changes():
			if !ok {
				return got
			}
			got = append(got, c)
		case <-deadline:
			t.Fatalf("timed out after %v waiting for %d notifications, got %d", timeout, want, len(got))
		}
	}
	return got
}

func TestBus_PublishReachesSubscriber(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe()
	defer sub.Unsubscribe()

	b.Publish(ChangeJobCreated)
	b.Publish(ChangeJobUpdated)

	got := drain(t, sub, 2, time.Second)
	if got[0] != ChangeJobCreated || got[1] != ChangeJobUpdated {
		t.Errorf("received %v, want [job.created job.updated]", got)
	}
}

func TestBus_PublishReachesAllSubscribers(t *testing.T) {
	b := New()
	defer b.Close()

	subs := []*Subscription{b.Subscribe(), b.Subscribe(), b.Subscribe()}
	b.Publish(ChangeEventAppended)

	for i, sub := range subs {
		got := drain(t, sub, 1, time.Second)
		if got[0] != ChangeEventAppended {
			t.Errorf("subscriber %d received %v, want event.appended", i, got[0])
		}
	}
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe()
	if n := b.SubscriberCount(); n != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", n)
	}

	sub.Unsubscribe()
	if n := b.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount() after unsubscribe = %d, want 0", n)
	}

	// Channel is closed; a receive completes immediately.
	if _, ok := <-sub.Changes(); ok {
		t.Error("expected closed channel after Unsubscribe")
	}

	// Publishing to a bus with no subscribers must not panic.
	b.Publish(ChangeJobUpdated)
}

func TestBus_UnsubscribeIsIdempotent(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe()
	sub.Unsubscribe()
	sub.Unsubscribe()
}

func TestBus_SlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe()
	defer sub.Unsubscribe()

	// Nobody drains sub; publish far past its buffer. Delivery is
	// best-effort so every call must return promptly.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*10; i++ {
			b.Publish(ChangeJobUpdated)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestBus_CloseClosesSubscriberChannels(t *testing.T) {
	b := New()
	sub := b.Subscribe()

	if err := b.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	if _, ok := <-sub.Changes(); ok {
		t.Error("expected subscriber channel closed after bus Close")
	}

	if err := b.Close(); err == nil {
		t.Error("second Close() should report an error")
	}

	// Publish after close is dropped, not a panic.
	b.Publish(ChangeJobCreated)

	// Subscribe after close hands back a closed channel.
	late := b.Subscribe()
	if _, ok := <-late.Changes(); ok {
		t.Error("expected closed channel for subscription on closed bus")
	}
}

func TestBus_ConcurrentSubscribePublishUnsubscribe(t *testing.T) {
	b := New()
	defer b.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sub := b.Subscribe()
				sub.Unsubscribe()
			}
		}()

		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Publish(ChangeJobUpdated)
			}
		}()
	}

	wg.Wait()

	if n := b.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount() after churn = %d, want 0", n)
	}
}
