package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("socket.", 10)
	defer unsub()

	b.Publish(Event{Kind: "socket.connected", Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != "socket.connected" {
			t.Errorf("got kind %q, want socket.connected", evt.Kind)
		}
		if evt.ID == "" {
			t.Error("event ID not assigned at publish time")
		}
		if evt.Timestamp.IsZero() {
			t.Error("event timestamp not assigned at publish time")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPrefixFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("push.", 10)
	defer unsub()

	b.Publish(Event{Kind: "socket.connected"})
	b.Publish(Event{Kind: "push.message"})

	select {
	case evt := <-ch:
		if evt.Kind != "push.message" {
			t.Errorf("got kind %q, want push.message", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// The socket event must not have been delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("push.", 10)
	unsub()

	b.Publish(Event{Kind: "push.message"})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("push.", 1)
	defer unsub()

	b.Publish(Event{Kind: "push.one"})
	// Buffer is full; this one is dropped instead of blocking.
	b.Publish(Event{Kind: "push.two"})

	evt := <-ch
	if evt.Kind != "push.one" {
		t.Errorf("got %q, want push.one", evt.Kind)
	}
}

func TestSharedIDAcrossSubscribers(t *testing.T) {
	b := New()
	ch1, unsub1 := b.Subscribe("push.", 1)
	defer unsub1()
	ch2, unsub2 := b.Subscribe("", 1)
	defer unsub2()

	b.Publish(Event{Kind: "push.message"})

	e1 := <-ch1
	e2 := <-ch2
	if e1.ID != e2.ID {
		t.Errorf("subscriber IDs differ: %q vs %q", e1.ID, e2.ID)
	}
}
