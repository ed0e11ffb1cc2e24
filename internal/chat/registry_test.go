package chat

import "testing"

func TestRegistrySubscribeIdempotent(t *testing.T) {
	reg := NewRegistry()
	sess := NewSession()

	reg.Subscribe(sess, 7)
	reg.Subscribe(sess, 7)
	if got := len(reg.SubscribersOf(7)); got != 1 {
		t.Fatalf("subscribers = %d, want 1", got)
	}

	reg.Unsubscribe(sess, 7)
	if got := len(reg.SubscribersOf(7)); got != 0 {
		t.Fatalf("subscribers after unsubscribe = %d, want 0", got)
	}
	// Unsubscribing an absent session is a no-op.
	reg.Unsubscribe(sess, 7)
}

func TestRegistrySnapshotIsolation(t *testing.T) {
	reg := NewRegistry()
	a, b := NewSession(), NewSession()
	reg.Subscribe(a, 1)
	reg.Subscribe(b, 1)

	snapshot := reg.SubscribersOf(1)
	reg.Unsubscribe(a, 1)
	if len(snapshot) != 2 {
		t.Fatalf("snapshot changed under mutation: len = %d", len(snapshot))
	}
	if len(reg.SubscribersOf(1)) != 1 {
		t.Fatal("live set not updated")
	}
}

func TestRegistryTeardown(t *testing.T) {
	reg := NewRegistry()
	leaving, staying := NewSession(), NewSession()
	reg.Subscribe(leaving, 1)
	reg.Subscribe(leaving, 2)
	reg.Subscribe(staying, 2)

	removed := reg.Teardown(leaving)
	if len(removed) != 2 {
		t.Fatalf("teardown removed %d channels, want 2", len(removed))
	}
	seen := map[int64]bool{}
	for _, id := range removed {
		seen[id] = true
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("teardown channel ids = %v", removed)
	}

	if len(reg.SubscribersOf(1)) != 0 {
		t.Fatal("channel 1 still has subscribers")
	}
	subs := reg.SubscribersOf(2)
	if len(subs) != 1 || subs[0].ID() != staying.ID() {
		t.Fatal("channel 2 lost its remaining subscriber")
	}

	if got := reg.Teardown(leaving); len(got) != 0 {
		t.Fatalf("second teardown removed %v, want nothing", got)
	}
}
