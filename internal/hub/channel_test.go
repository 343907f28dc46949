package hub

import "testing"

func TestChannels_PublishExcludesOrigin(t *testing.T) {
	cs := NewChannels(nil)
	wa, wb := &testWriter{}, &testWriter{}
	a := &Conn{SID: "a", Writer: wa}
	b := &Conn{SID: "b", Writer: wb}

	cs.Subscribe("g1", a)
	cs.Subscribe("g1", b)

	delivered := cs.Publish("g1", []byte("x"), a)
	if delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}
	if wa.writes != 0 {
		t.Fatalf("expected no echo to origin, got %d writes", wa.writes)
	}
	if wb.writes != 1 {
		t.Fatalf("expected 1 write to b, got %d", wb.writes)
	}
}

func TestChannels_GroupIsolation(t *testing.T) {
	cs := NewChannels(nil)
	wb := &testWriter{}
	a := &Conn{SID: "a", Writer: &testWriter{}}
	b := &Conn{SID: "b", Writer: wb}

	cs.Subscribe("g1", a)
	cs.Subscribe("g2", b)

	cs.Publish("g1", []byte("x"), a)
	if wb.writes != 0 {
		t.Fatalf("expected no cross-group delivery, got %d writes", wb.writes)
	}
}

func TestChannels_SubscribeIsIdempotent(t *testing.T) {
	cs := NewChannels(nil)
	wb := &testWriter{}
	a := &Conn{SID: "a", Writer: &testWriter{}}
	b := &Conn{SID: "b", Writer: wb}

	cs.Subscribe("g1", a)
	cs.Subscribe("g1", b)
	cs.Subscribe("g1", b)

	if got := cs.Publish("g1", []byte("x"), a); got != 1 {
		t.Fatalf("expected 1 delivery after duplicate subscribe, got %d", got)
	}
	if wb.writes != 1 {
		t.Fatalf("expected exactly 1 write, got %d", wb.writes)
	}
}

func TestChannels_FailedDeliveryReapsSubscriber(t *testing.T) {
	var dead []*Conn
	cs := NewChannels(func(c *Conn) { dead = append(dead, c) })

	wa, wb, wc := &testWriter{}, &testWriter{fail: true}, &testWriter{}
	a := &Conn{SID: "a", Writer: wa}
	b := &Conn{SID: "b", Writer: wb}
	c := &Conn{SID: "c", Writer: wc}

	cs.Subscribe("g1", a)
	cs.Subscribe("g1", b)
	cs.Subscribe("g1", c)

	delivered := cs.Publish("g1", []byte("x"), a)
	if delivered != 1 {
		t.Fatalf("expected 1 successful delivery, got %d", delivered)
	}
	if wc.writes != 1 {
		t.Fatalf("failure for b must not abort delivery to c")
	}
	if !wb.closed {
		t.Fatalf("expected failed connection to be closed")
	}
	if len(dead) != 1 || dead[0] != b {
		t.Fatalf("expected cleanup hook for b")
	}
}

func TestChannels_UnsubscribeAll(t *testing.T) {
	cs := NewChannels(nil)
	wb := &testWriter{}
	a := &Conn{SID: "a", Writer: &testWriter{}}
	b := &Conn{SID: "b", Writer: wb}

	cs.Subscribe("g1", b)
	cs.Subscribe("g2", b)
	cs.Subscribe("g1", a)

	cs.UnsubscribeAll(b)
	if cs.Subscribed("g1", b) || cs.Subscribed("g2", b) {
		t.Fatalf("expected b in no subscriber sets")
	}

	cs.Publish("g1", []byte("x"), a)
	cs.Publish("g2", []byte("x"), a)
	if wb.writes != 0 {
		t.Fatalf("expected no deliveries to unsubscribed connection, got %d", wb.writes)
	}

	// idempotent
	cs.UnsubscribeAll(b)
}

func TestChannels_PublishToUnknownGroupIsNoop(t *testing.T) {
	cs := NewChannels(nil)
	if got := cs.Publish("missing", []byte("x"), nil); got != 0 {
		t.Fatalf("expected 0 deliveries, got %d", got)
	}
}
