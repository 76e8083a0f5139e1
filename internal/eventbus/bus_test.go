package eventbus

import (
	"testing"
	"time"
)

func TestPublishFanout(t *testing.T) {
	t.Parallel()
	b := New()
	c1, u1 := b.Subscribe(2)
	c2, u2 := b.Subscribe(2)
	defer u1()
	defer u2()

	b.Publish(Event{Type: "clone.step", Data: "Cloning Roles"})

	for _, ch := range []<-chan Event{c1, c2} {
		select {
		case e := <-ch:
			if e.Type != "clone.step" || e.Time.IsZero() {
				t.Fatalf("unexpected event: %+v", e)
			}
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"})
	b.Publish(Event{Type: "c"})

	if got := b.(Counted).Dropped(); got != 2 {
		t.Fatalf("Dropped() = %d, want 2", got)
	}
}

func TestUnsubscribeClosesAndIsIdempotent(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	// Publishing after unsubscribe must not panic.
	b.Publish(Event{Type: "late"})
}
