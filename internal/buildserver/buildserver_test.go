package buildserver

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"
)

func TestServerBroadcastsStageEventsToConnectedClients(t *testing.T) {
	srv := New()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	ws, err := websocket.Dial(url, "", ts.URL)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ws.Close()

	// Give the handler goroutine a moment to register the client before
	// the observed event would otherwise be dropped as "no subscriber yet".
	time.Sleep(10 * time.Millisecond)

	srv.Observe("my_target", "splice")

	var got Event
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := websocket.JSON.Receive(ws, &got); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if got.Target != "my_target" || got.Stage != "splice" {
		t.Errorf("expected {my_target splice}, got %+v", got)
	}
}

func TestObserveWithNoClientsDoesNotBlock(t *testing.T) {
	srv := New()
	done := make(chan struct{})
	go func() {
		srv.Observe("t", "resolve")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Observe blocked with no connected clients")
	}
}
