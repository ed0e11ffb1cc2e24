package chat

import (
	"errors"
	"testing"
)

func TestSessionLifecycle(t *testing.T) {
	sess := NewSession()
	if sess.State() != StateAnonymous {
		t.Fatalf("new session state = %v, want anonymous", sess.State())
	}
	if sess.UserID() != 0 {
		t.Fatalf("anonymous user id = %d, want 0", sess.UserID())
	}

	if err := sess.Authenticate(42); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if sess.State() != StateAuthenticated {
		t.Fatalf("state after authenticate = %v", sess.State())
	}
	if sess.UserID() != 42 {
		t.Fatalf("user id = %d, want 42", sess.UserID())
	}

	if err := sess.Authenticate(43); !errors.Is(err, ErrAlreadyAuthenticated) {
		t.Fatalf("second authenticate = %v, want ErrAlreadyAuthenticated", err)
	}

	sess.Close()
	if sess.State() != StateClosed {
		t.Fatalf("state after close = %v", sess.State())
	}
	if err := sess.Authenticate(44); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("authenticate after close = %v, want ErrSessionClosed", err)
	}
	// Idempotent.
	sess.Close()
}

func TestSessionChannelSet(t *testing.T) {
	sess := NewSession()

	// Anonymous sessions never accumulate live channels.
	sess.addChannel(1)
	if sess.JoinedChannel(1) {
		t.Fatal("anonymous session joined a channel")
	}

	if err := sess.Authenticate(1); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	sess.addChannel(1)
	sess.addChannel(2)
	if !sess.JoinedChannel(1) || !sess.JoinedChannel(2) {
		t.Fatal("expected live subscriptions to channels 1 and 2")
	}
	if got := len(sess.Channels()); got != 2 {
		t.Fatalf("len(Channels()) = %d, want 2", got)
	}

	sess.removeChannel(1)
	if sess.JoinedChannel(1) {
		t.Fatal("channel 1 still live after remove")
	}

	sess.Close()
	if len(sess.Channels()) != 0 {
		t.Fatal("live set survived close")
	}
}

func TestSessionEnqueue(t *testing.T) {
	sess := NewSession()
	for i := 0; i < DefaultQueueSize; i++ {
		if err := sess.Enqueue([]byte("frame")); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := sess.Enqueue([]byte("overflow")); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("enqueue on full queue = %v, want ErrQueueFull", err)
	}

	sess.Close()
	if err := sess.Enqueue([]byte("late")); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("enqueue after close = %v, want ErrSessionClosed", err)
	}

	// The write pump drains buffered frames and then observes the close.
	var drained int
	for range sess.Outbound() {
		drained++
	}
	if drained != DefaultQueueSize {
		t.Fatalf("drained %d frames, want %d", drained, DefaultQueueSize)
	}
}
