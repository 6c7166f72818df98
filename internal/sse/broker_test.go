package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "document.created", Data: map[string]string{"path": "a.html"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: document.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"path":"a.html"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

// drain collects every message currently buffered on ch.
func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func countType(msgs []string, typ string) int {
	n := 0
	for _, m := range msgs {
		if strings.HasPrefix(m, "event: "+typ+"\n") {
			n++
		}
	}
	return n
}

func TestPublishDocumentEvent_OutlineCoalesced(t *testing.T) {
	b := NewBroker(200 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Leading edge for a.html, then two changes inside its window.
	b.PublishDocumentEvent("created", "a.html")
	b.PublishDocumentEvent("updated", "a.html")
	b.PublishDocumentEvent("updated", "a.html")
	// Another path has its own window.
	b.PublishDocumentEvent("updated", "b.html")

	time.Sleep(50 * time.Millisecond)
	msgs := drain(ch)
	if n := countType(msgs, TypeDocumentCreated) + countType(msgs, TypeDocumentUpdated); n != 4 {
		t.Errorf("document events = %d, want 4", n)
	}
	if n := countType(msgs, TypeOutlineUpdated); n != 2 {
		t.Errorf("leading outline events = %d, want 2", n)
	}

	// The window closes and the pending changes to a.html are announced once.
	time.Sleep(250 * time.Millisecond)
	msgs = drain(ch)
	if n := countType(msgs, TypeOutlineUpdated); n != 1 {
		t.Fatalf("trailing outline events = %d, want 1: %q", n, msgs)
	}
	if !strings.Contains(msgs[0], `"path":"a.html"`) {
		t.Errorf("trailing event for wrong path: %q", msgs[0])
	}
}

func TestPublishDocumentEvent_DeleteCancelsPendingOutline(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDocumentEvent("created", "gone.html")
	b.PublishDocumentEvent("updated", "gone.html")
	b.PublishDocumentEvent("deleted", "gone.html")
	time.Sleep(200 * time.Millisecond)

	msgs := drain(ch)
	if n := countType(msgs, TypeOutlineUpdated); n != 1 {
		t.Errorf("outline events = %d, want only the leading one: %q", n, msgs)
	}
}

func TestPublishDocumentEvent_DeleteHasNoOutline(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDocumentEvent("deleted", "gone.html")
	b.PublishDocumentEvent("bogus", "gone.html")
	time.Sleep(50 * time.Millisecond)
	msgs := drain(ch)

	if len(msgs) != 1 || countType(msgs, TypeDocumentDeleted) != 1 {
		t.Errorf("msgs = %q, want a single document.deleted", msgs)
	}
}

func TestEventIDsIncrease(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "one", Data: 1})
	b.Publish(Event{Type: "two", Data: 2})
	time.Sleep(50 * time.Millisecond)

	msgs := drain(ch)
	if len(msgs) != 2 {
		t.Fatalf("msgs = %q", msgs)
	}
	if !strings.Contains(msgs[0], "\nid: 1\n") || !strings.Contains(msgs[1], "\nid: 2\n") {
		t.Errorf("ids not sequential: %q", msgs)
	}
}

func TestPublishSessionSynced(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishSessionSynced(SessionSynced{Session: "abc", Headings: 3, Assigned: 1})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "event: session.synced\n") {
			t.Errorf("unexpected event %q", s)
		}
		if !strings.Contains(s, `"session":"abc"`) || !strings.Contains(s, `"headings":3`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: "document.updated", Data: map[string]string{"path": "x.html"}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: document.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestSSEHandler_Heartbeat(t *testing.T) {
	b := NewBroker(time.Second, WithHeartbeat(10*time.Millisecond))
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	b.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), ": keepalive\n\n") {
		t.Errorf("no heartbeat in %q", w.Body.String())
	}
}

func TestCloseStopsPendingOutlineTimers(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := NewBroker(time.Hour)
	b.PublishDocumentEvent("created", "a.html")
	b.PublishDocumentEvent("updated", "a.html")
	b.Close()
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Overfilling the client buffer must not block the loop.
	for i := 0; i < clientBuffer+6; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: "document.updated", Data: map[string]string{"path": "x.html"}})
	b.PublishDocumentEvent("updated", "x.html")
}
