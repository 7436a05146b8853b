package stream

import (
	"context"
	"testing"
	"time"
)

func drain(t *testing.T, ch <-chan string, n int) []string {
	t.Helper()
	var out []string
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case event, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed after %d events, wanted %d", len(out), n)
			}
			out = append(out, event)
		case <-timeout:
			t.Fatalf("timed out after %d events, wanted %d", len(out), n)
		}
	}
	return out
}

func TestStream_PublishSubscribeOrder(t *testing.T) {
	hub := NewHub()
	s := hub.Create("msg-1", nil)

	ch := s.Subscribe("client-1")
	s.Publish("a")
	s.Publish("b")
	s.Publish("c")

	got := drain(t, ch, 3)
	for i, want := range []string{"a", "b", "c"} {
		if got[i] != want {
			t.Errorf("event %d = %q, want %q", i, got[i], want)
		}
	}
}

func TestStream_CatchupReplay(t *testing.T) {
	hub := NewHub()
	s := hub.Create("msg-1", nil)

	s.Publish("a")
	s.Publish("b")

	// Late subscriber sees the full sequence
	ch := s.Subscribe("late")
	s.Publish("c")

	got := drain(t, ch, 3)
	for i, want := range []string{"a", "b", "c"} {
		if got[i] != want {
			t.Errorf("event %d = %q, want %q", i, got[i], want)
		}
	}
}

func TestStream_SubscribeAfterClose(t *testing.T) {
	hub := NewHub()
	s := hub.Create("msg-1", nil)

	s.Publish("a")
	s.Close()

	ch := s.Subscribe("late")
	got := drain(t, ch, 1)
	if got[0] != "a" {
		t.Errorf("replay = %q, want a", got[0])
	}
	if _, ok := <-ch; ok {
		t.Errorf("channel should be closed after replay")
	}
}

func TestStream_CloseEndsSubscribers(t *testing.T) {
	hub := NewHub()
	s := hub.Create("msg-1", nil)

	ch := s.Subscribe("client-1")
	s.Close()
	s.Publish("dropped")

	if _, ok := <-ch; ok {
		t.Errorf("expected closed channel, got event")
	}
}

func TestStream_UnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()
	s := hub.Create("msg-1", nil)

	ch := s.Subscribe("client-1")
	s.Unsubscribe("client-1")
	s.Publish("a")

	if _, ok := <-ch; ok {
		t.Errorf("expected closed channel after unsubscribe")
	}
}

func TestHub_CreateIsIdempotent(t *testing.T) {
	hub := NewHub()
	first := hub.Create("msg-1", nil)
	second := hub.Create("msg-1", nil)
	if first != second {
		t.Errorf("Create returned a second stream for the same message")
	}
}

func TestHub_CancelInvokesProducerCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	hub.Create("msg-1", cancel)

	if !hub.Cancel("msg-1") {
		t.Fatalf("Cancel reported no stream")
	}
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("producer context not cancelled")
	}

	if hub.Cancel("missing") {
		t.Errorf("Cancel reported a stream for an unknown message")
	}
}

func TestHub_Remove(t *testing.T) {
	hub := NewHub()
	hub.Create("msg-1", nil)
	hub.Remove("msg-1")
	if hub.Get("msg-1") != nil {
		t.Errorf("stream still registered after Remove")
	}
}
