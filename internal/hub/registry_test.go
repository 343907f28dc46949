package hub

import (
	"errors"
	"testing"
)

type testWriter struct {
	writes int
	closed bool
	fail   bool
}

func (w *testWriter) Write(message []byte) error {
	w.writes++
	if w.fail {
		return errTest
	}
	return nil
}

func (w *testWriter) Close() error {
	w.closed = true
	return nil
}

var errTest = errors.New("test")

func TestRegistry_RegisterAndDeregister(t *testing.T) {
	r := NewRegistry()
	c1 := &Conn{SID: "s1", Writer: &testWriter{}}

	r.Register("u", c1)
	if got := r.ConnectionsFor("u"); len(got) != 1 {
		t.Fatalf("expected 1 connection, got %d", len(got))
	}

	r.Deregister(c1)
	if got := r.ConnectionsFor("u"); len(got) != 0 {
		t.Fatalf("expected 0 connections, got %d", len(got))
	}

	// deregistering again is a no-op
	r.Deregister(c1)
}

func TestRegistry_MultiDevice(t *testing.T) {
	r := NewRegistry()
	c1 := &Conn{SID: "s1", Writer: &testWriter{}}
	c2 := &Conn{SID: "s2", Writer: &testWriter{}}

	r.Register("u", c1)
	r.Register("u", c2)
	if got := r.ConnectionsFor("u"); len(got) != 2 {
		t.Fatalf("expected 2 connections, got %d", len(got))
	}

	r.Deregister(c1)
	got := r.ConnectionsFor("u")
	if len(got) != 1 || got[0] != c2 {
		t.Fatalf("expected only c2 to remain")
	}
}

func TestRegistry_ReidentifyReplacesAssociation(t *testing.T) {
	r := NewRegistry()
	c1 := &Conn{SID: "s1", Writer: &testWriter{}}

	r.Register("alice", c1)
	r.Register("bob", c1)

	if got := r.ConnectionsFor("alice"); len(got) != 0 {
		t.Fatalf("expected alice to have no connections, got %d", len(got))
	}
	if got := r.ConnectionsFor("bob"); len(got) != 1 {
		t.Fatalf("expected bob to have 1 connection, got %d", len(got))
	}
}

func TestRegistry_OfflineUserIsEmpty(t *testing.T) {
	r := NewRegistry()
	if got := r.ConnectionsFor("nobody"); len(got) != 0 {
		t.Fatalf("expected empty set, got %d", len(got))
	}
}
