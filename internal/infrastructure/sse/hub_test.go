package sse

import "testing"

func TestSubscribeAndBroadcast(t *testing.T) {
	h := NewHub()
	c := h.Subscribe("client-1")
	if h.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", h.ClientCount())
	}

	h.Broadcast("capture-decision", []byte(`{"id_captura":42}`))
	msg := <-c.Messages()
	if msg.Event != "capture-decision" {
		t.Fatalf("unexpected event %q", msg.Event)
	}
	if string(msg.Data) != `{"id_captura":42}` {
		t.Fatalf("unexpected payload %s", msg.Data)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	c := h.Subscribe("client-1")
	h.Unsubscribe("client-1")
	if h.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", h.ClientCount())
	}
	if _, open := <-c.Messages(); open {
		t.Fatal("expected channel to be closed")
	}
}

func TestSlowClientDropsMessages(t *testing.T) {
	h := NewHub()
	c := h.Subscribe("slow")
	for i := 0; i < 100; i++ {
		h.Broadcast("capture-decision", []byte("{}"))
	}
	// Broadcast never blocks; the slow client keeps at most its buffer.
	if got := len(c.messages); got > cap(c.messages) {
		t.Fatalf("expected at most %d buffered messages, got %d", cap(c.messages), got)
	}
	if len(c.messages) == 0 {
		t.Fatal("expected some buffered messages")
	}
}

func TestSubscribeReplacesExistingClient(t *testing.T) {
	h := NewHub()
	old := h.Subscribe("ui")
	replacement := h.Subscribe("ui")
	if h.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", h.ClientCount())
	}
	if _, open := <-old.Messages(); open {
		t.Fatal("expected replaced client channel to be closed")
	}
	h.Broadcast("capture-decision", []byte("{}"))
	select {
	case msg := <-replacement.Messages():
		if msg == nil {
			t.Fatal("expected message on replacement client")
		}
	default:
		t.Fatal("expected replacement client to receive broadcast")
	}
}
