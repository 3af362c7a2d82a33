package ws

import "testing"

func TestHubBroadcastReachesRoomClients(t *testing.T) {
	hub := NewHub()
	a := hub.Register("r1")
	b := hub.Register("r1")
	other := hub.Register("r2")

	hub.Broadcast("r1", []byte("hola"))

	for _, ch := range []chan []byte{a, b} {
		select {
		case payload := <-ch:
			if string(payload) != "hola" {
				t.Fatalf("unexpected payload: %s", payload)
			}
		default:
			t.Fatal("expected payload on room client")
		}
	}
	select {
	case <-other:
		t.Fatal("payload leaked to another room")
	default:
	}
}

func TestHubUnregisterClosesChannel(t *testing.T) {
	hub := NewHub()
	ch := hub.Register("r1")
	hub.Unregister("r1", ch)

	if _, open := <-ch; open {
		t.Fatal("expected channel to be closed")
	}
	if hub.ClientCount("r1") != 0 {
		t.Fatal("expected empty room to be dropped")
	}

	// double unregister is a no-op
	hub.Unregister("r1", ch)
}

func TestHubSlowClientSkipped(t *testing.T) {
	hub := NewHub()
	ch := hub.Register("r1")
	for i := 0; i < cap(ch); i++ {
		hub.Broadcast("r1", []byte("x"))
	}

	// buffer is full; this frame is dropped instead of blocking
	hub.Broadcast("r1", []byte("y"))
	if hub.ClientCount("r1") != 1 {
		t.Fatal("client should remain registered")
	}
}
