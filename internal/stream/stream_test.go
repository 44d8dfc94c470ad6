package stream

import (
	"context"
	"testing"
	"time"
)

func TestPublishReachesSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New()
	ch := s.Subscribe(ctx)
	if s.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", s.Subscribers())
	}

	want := DecisionEvent{VaultID: "vault-1", Resource: "document:1", Permission: "viewer", Subject: "user:alice", Allowed: true}
	s.Publish(want)

	got := <-ch
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New()
	s.Subscribe(ctx) // nobody drains this one

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Publish(DecisionEvent{VaultID: "vault-1", Allowed: true})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Publish blocked on a slow subscriber")
	}
}

func TestSubscribeCleanupOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := New()
	ch := s.Subscribe(ctx)
	cancel()

	// the channel closes once the cleanup goroutine runs
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				if s.Subscribers() != 0 {
					t.Fatalf("subscriber not removed")
				}
				return
			}
		case <-deadline:
			t.Fatalf("subscription never cleaned up")
		}
	}
}
