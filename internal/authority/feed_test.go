package authority

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func TestFeedReceivesEvents(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		if err := wsjson.Write(r.Context(), conn, FeedEvent{Type: "move", Move: "e7e5"}); err != nil {
			t.Errorf("write event: %v", err)
			return
		}
		<-done
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(done) })

	events := make(chan *FeedEvent, 1)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	feed := NewFeed(wsURL, 0, func(ev *FeedEvent) {
		select {
		case events <- ev:
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := feed.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if feed.State() != FeedConnected {
		t.Fatalf("state = %s, want connected", feed.State())
	}

	select {
	case ev := <-events:
		if ev.Type != "move" || ev.Move != "e7e5" {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no event received")
	}

	if err := feed.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestFeedConnectFailure(t *testing.T) {
	feed := NewFeed("ws://127.0.0.1:1/ws/moves", 0, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := feed.Connect(ctx); err == nil {
		t.Fatal("expected dial failure")
	}
	if feed.State() != FeedFailed {
		t.Fatalf("state = %s, want failed", feed.State())
	}
}
