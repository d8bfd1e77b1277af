package authority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/kapu/lanchess/internal/board"
)

var (
	// ErrRejected means the authority processed the request and said no
	// (illegal move, failed reset). Distinct from transport failures.
	ErrRejected = errors.New("request rejected by game service")

	// ErrJoinFailed covers session-join refusals (full, gone).
	ErrJoinFailed = errors.New("session join failed")
)

// Client speaks to the remote authority over HTTP. The base URL can be
// retargeted after a session join so every subsequent request goes to the
// session host instead of the default origin.
type Client struct {
	mu      sync.RWMutex
	baseURL string

	http           *fasthttp.Client
	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 8},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Retarget points every subsequent request at a new base URL.
func (c *Client) Retarget(baseURL string) {
	c.mu.Lock()
	c.baseURL = strings.TrimRight(baseURL, "/")
	c.mu.Unlock()
}

// BaseURL returns the current request target.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// Board fetches the full 8x8 snapshot grid.
func (c *Client) Board(ctx context.Context) ([][]string, error) {
	var resp boardResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/get/board", nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Board, nil
}

// Stats fetches the companion state query.
func (c *Client) Stats(ctx context.Context) (board.Stats, error) {
	var resp statsResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/get/stats", nil, &resp, true); err != nil {
		return board.Stats{}, err
	}
	return board.Stats{
		ActiveColor:     parseColor(resp.Color),
		CastlingRights:  resp.CastlingRights,
		EnPassantTarget: resp.EnPassant,
		HalfmoveClock:   resp.Halfmove,
		FullmoveNumber:  resp.Fullmove,
		Ply:             resp.Ply,
		InCheck:         resp.Check,
		Checkmate:       resp.Checkmate,
		Draw:            resp.Draw,
		Winner:          resp.Winner,
	}, nil
}

// Turn fetches the active color.
func (c *Client) Turn(ctx context.Context) (board.Color, error) {
	var resp turnResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/get/turn", nil, &resp, true); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("turn query: %s", resp.Error)
	}
	return parseColor(resp.Color), nil
}

// ProposeMove submits a coordinate move ("e2e4", "e7e8q"). A false return
// with nil error is a rejection: the move is illegal per the authority.
func (c *Client) ProposeMove(ctx context.Context, move string) (bool, error) {
	req := moveRequest{Move: strings.ToLower(strings.TrimSpace(move))}
	var resp moveResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/move", req, &resp, false); err != nil {
		return false, err
	}
	return resp.Success, nil
}

// CheckMove asks whether from→to would be legal. Used only to gate entry
// into the promotion-choice state.
func (c *Client) CheckMove(ctx context.Context, from, to string) (bool, error) {
	req := checkMoveRequest{From: from, To: to}
	var resp checkMoveResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/check_move", req, &resp, false); err != nil {
		return false, err
	}
	return resp.Legal, nil
}

// EngineMove asks the automated opponent to move. Returns the move it made.
func (c *Client) EngineMove(ctx context.Context) (string, error) {
	var resp moveResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/ai_move", nil, &resp, false); err != nil {
		return "", err
	}
	if !resp.Success || strings.TrimSpace(resp.Move) == "" {
		return "", ErrRejected
	}
	return resp.Move, nil
}

// Reset reloads the initial position.
func (c *Client) Reset(ctx context.Context) error {
	var resp simpleResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/reset", nil, &resp, false); err != nil {
		return err
	}
	if !resp.Success {
		return ErrRejected
	}
	return nil
}

// Undo rolls back exactly one half-move.
func (c *Client) Undo(ctx context.Context) error {
	var resp simpleResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/undo", nil, &resp, false); err != nil {
		return err
	}
	if !resp.Success {
		return ErrRejected
	}
	return nil
}

// CreateSession opens a hosted session; the creator gets the requested
// color and remains its own authority.
func (c *Client) CreateSession(ctx context.Context, color string) (SessionInfo, error) {
	req := createSessionRequest{Color: color}
	var resp createSessionResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/session/create", req, &resp, false); err != nil {
		return SessionInfo{}, err
	}
	return SessionInfo{ID: resp.ID, Color: resp.Color}, nil
}

// ListSessions enumerates the locally hosted session (if any) and peers.
func (c *Client) ListSessions(ctx context.Context) (*SessionInfo, []SessionInfo, error) {
	var resp listSessionsResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/session/list", nil, &resp, true); err != nil {
		return nil, nil, err
	}
	return resp.Local, resp.Others, nil
}

// JoinSession joins a discovered session and returns the assigned color.
// Callers must Retarget the client at the descriptor's host afterwards.
func (c *Client) JoinSession(ctx context.Context, id string) (string, error) {
	req := joinSessionRequest{ID: id}
	var resp joinSessionResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/session/join", req, &resp, false); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrJoinFailed, resp.Error)
	}
	if resp.Color == "" {
		return "", ErrJoinFailed
	}
	return resp.Color, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	url := c.BaseURL() + path
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(url)
	req.Header.SetContentType("application/json")

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry {
		attempts = c.retryMax
		if attempts <= 0 {
			attempts = 1
		}
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		deadline := c.computeDeadline(ctx)
		err := c.http.DoDeadline(req, resp, deadline)
		if err != nil {
			if attempt == attempts || !retry {
				return fmt.Errorf("request failed: %w", err)
			}
			lastErr = err
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			body := string(resp.Body())
			err := fmt.Errorf("game service error: status=%d body=%s", status, truncate(body, 512))
			if attempt == attempts || !retry || !shouldRetryStatus(status) {
				return err
			}
			lastErr = err
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func parseColor(s string) board.Color {
	if strings.EqualFold(strings.TrimSpace(s), "black") || strings.EqualFold(strings.TrimSpace(s), "b") {
		return board.Black
	}
	return board.White
}
