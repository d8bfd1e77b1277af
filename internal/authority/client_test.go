package authority

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kapu/lanchess/internal/board"
)

func newTestService(t *testing.T, handler http.Handler) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, WithTimeout(2*time.Second), WithRetry(3))
	return srv, client
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestBoardFetch(t *testing.T) {
	grid := make([][]string, 8)
	for i := range grid {
		grid[i] = make([]string, 8)
	}
	grid[0][4] = "k"
	grid[7][4] = "K"

	mux := http.NewServeMux()
	mux.HandleFunc("/get/board", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"board": grid})
	})
	_, client := newTestService(t, mux)

	got, err := client.Board(context.Background())
	if err != nil {
		t.Fatalf("Board: %v", err)
	}
	if len(got) != 8 || got[0][4] != "k" || got[7][4] != "K" {
		t.Fatalf("unexpected grid: %v", got)
	}
}

func TestStatsFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/get/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"color":           "black",
			"castling_rights": "KQkq",
			"en_passant":      "e3",
			"halfmove":        0,
			"fullmove":        1,
			"ply":             1,
			"check":           false,
			"checkmate":       false,
			"draw":            false,
		})
	})
	_, client := newTestService(t, mux)

	stats, err := client.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.ActiveColor != board.Black || stats.CastlingRights != "KQkq" || stats.EnPassantTarget != "e3" || stats.Ply != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Terminal() {
		t.Fatal("ongoing game reported terminal")
	}
}

func TestProposeMoveRejection(t *testing.T) {
	var gotMove string
	mux := http.NewServeMux()
	mux.HandleFunc("/move", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Move string `json:"move"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode move request: %v", err)
		}
		gotMove = req.Move
		writeJSON(t, w, map[string]any{"success": false})
	})
	_, client := newTestService(t, mux)

	ok, err := client.ProposeMove(context.Background(), "E2E5")
	if err != nil {
		t.Fatalf("ProposeMove: %v", err)
	}
	if ok {
		t.Fatal("rejected move reported as accepted")
	}
	if gotMove != "e2e5" {
		t.Fatalf("wire move = %q, want lowercased e2e5", gotMove)
	}
}

func TestEngineMoveFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ai_move", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"success": false})
	})
	_, client := newTestService(t, mux)

	if _, err := client.EngineMove(context.Background()); err == nil {
		t.Fatal("expected error for a failed engine move")
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/get/turn", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(t, w, map[string]any{"color": "white"})
	})
	_, client := newTestService(t, mux)

	turn, err := client.Turn(context.Background())
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if turn != board.White {
		t.Fatalf("turn = %s, want white", turn)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("server saw %d calls, want 3", got)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/get/turn", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad request", http.StatusBadRequest)
	})
	_, client := newTestService(t, mux)

	if _, err := client.Turn(context.Background()); err == nil {
		t.Fatal("expected error for a 400 response")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("server saw %d calls, want 1 (4xx is not retryable)", got)
	}
}

func TestRetarget(t *testing.T) {
	first := http.NewServeMux()
	first.HandleFunc("/get/turn", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"color": "white"})
	})
	second := http.NewServeMux()
	second.HandleFunc("/get/turn", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"color": "black"})
	})

	_, client := newTestService(t, first)
	other := httptest.NewServer(second)
	t.Cleanup(other.Close)

	turn, err := client.Turn(context.Background())
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if turn != board.White {
		t.Fatalf("turn = %s, want white before retarget", turn)
	}

	client.Retarget(other.URL + "/")
	if client.BaseURL() != other.URL {
		t.Fatalf("BaseURL = %q, want %q (trailing slash trimmed)", client.BaseURL(), other.URL)
	}
	turn, err = client.Turn(context.Background())
	if err != nil {
		t.Fatalf("Turn after retarget: %v", err)
	}
	if turn != board.Black {
		t.Fatalf("turn = %s, want black after retarget", turn)
	}
}

func TestJoinSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/session/join", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode join request: %v", err)
		}
		if req.ID == "gone" {
			writeJSON(t, w, map[string]any{"error": "session closed"})
			return
		}
		writeJSON(t, w, map[string]any{"color": "black"})
	})
	_, client := newTestService(t, mux)

	color, err := client.JoinSession(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("JoinSession: %v", err)
	}
	if color != "black" {
		t.Fatalf("assigned color = %q, want black", color)
	}

	if _, err := client.JoinSession(context.Background(), "gone"); err == nil {
		t.Fatal("expected join failure for a closed session")
	}
}

func TestListSessions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/session/list", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"local": map[string]any{"id": "mine", "color": "white"},
			"others": []map[string]any{
				{"id": "s-2", "addr": "192.168.0.7", "port": 5000},
			},
		})
	})
	_, client := newTestService(t, mux)

	local, others, err := client.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if local == nil || local.ID != "mine" {
		t.Fatalf("local = %+v, want id mine", local)
	}
	if len(others) != 1 || others[0].ID != "s-2" || others[0].Port != 5000 {
		t.Fatalf("others = %+v", others)
	}
}

func TestCreateSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/session/create", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"id": "s-1", "color": "white"})
	})
	_, client := newTestService(t, mux)

	info, err := client.CreateSession(context.Background(), "white")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if info.ID != "s-1" || info.Color != "white" {
		t.Fatalf("session info = %+v", info)
	}
}
