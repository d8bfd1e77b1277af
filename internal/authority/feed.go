package authority

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kapu/lanchess/internal/obslog"
)

// FeedState tracks the move-feed connection lifecycle.
type FeedState string

const (
	FeedDisconnected FeedState = "disconnected"
	FeedConnecting   FeedState = "connecting"
	FeedConnected    FeedState = "connected"
	FeedReconnecting FeedState = "reconnecting"
	FeedFailed       FeedState = "failed"
)

// EventCallback receives pushed events from the session host.
type EventCallback func(ev *FeedEvent)

// Feed subscribes to the session host's move events over a websocket so a
// networked client learns about the peer's move without waiting for the
// next turn poll. Polling remains the fallback when the feed is down.
type Feed struct {
	wsURL string

	conn   *websocket.Conn
	state  FeedState
	stateM sync.RWMutex

	onEvent EventCallback

	maxReconnectAttempts int
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc

	logger *zap.Logger
}

func NewFeed(wsURL string, maxReconnectAttempts int, onEvent EventCallback) *Feed {
	return &Feed{
		wsURL:                wsURL,
		state:                FeedDisconnected,
		onEvent:              onEvent,
		maxReconnectAttempts: maxReconnectAttempts,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
		logger:               obslog.L(),
	}
}

// Connect dials the host and starts the listen and ping loops.
func (f *Feed) Connect(ctx context.Context) error {
	f.stateM.Lock()
	if f.state == FeedConnected || f.state == FeedConnecting {
		f.stateM.Unlock()
		return nil
	}
	f.stateM.Unlock()

	f.rootCtx, f.rootCancel = context.WithCancel(context.Background())
	f.setState(FeedConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, f.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		f.setState(FeedFailed)
		f.scheduleReconnect()
		return err
	}

	f.conn = conn
	f.setState(FeedConnected)

	f.wg.Add(2)
	go f.listen()
	go f.pingLoop()
	return nil
}

func (f *Feed) listen() {
	defer f.wg.Done()
	for {
		select {
		case <-f.stopCh:
			return
		default:
		}
		if f.conn == nil {
			return
		}
		var ev FeedEvent
		if err := wsjson.Read(f.rootCtx, f.conn, &ev); err != nil {
			if f.isStopping() {
				return
			}
			f.setState(FeedDisconnected)
			_ = f.closeConn(websocket.StatusGoingAway, "reconnect")
			f.scheduleReconnect()
			return
		}
		if f.onEvent != nil {
			f.onEvent(&ev)
		}
	}
}

func (f *Feed) pingLoop() {
	defer f.wg.Done()
	t := time.NewTicker(f.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-f.stopCh:
			return
		case <-t.C:
			if f.conn == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(f.rootCtx, 3*time.Second)
			err := f.conn.Ping(ctx)
			cancel()
			if err != nil {
				failures++
				if failures >= 2 {
					if f.isStopping() {
						return
					}
					f.setState(FeedDisconnected)
					_ = f.closeConn(websocket.StatusGoingAway, "ping failure")
					f.scheduleReconnect()
					failures = 0
				}
				continue
			}
			failures = 0
		}
	}
}

func (f *Feed) scheduleReconnect() {
	if f.maxReconnectAttempts <= 0 {
		return
	}
	f.setState(FeedReconnecting)

	go func() {
		for attempt := 1; attempt <= f.maxReconnectAttempts; attempt++ {
			select {
			case <-f.stopCh:
				return
			case <-time.After(backoffDuration(attempt)):
			}

			dialCtx, cancel := context.WithTimeout(f.rootCtx, 10*time.Second)
			conn, _, err := websocket.Dial(dialCtx, f.wsURL, &websocket.DialOptions{
				CompressionMode: websocket.CompressionNoContextTakeover,
			})
			cancel()
			if err != nil {
				continue
			}

			f.conn = conn
			f.setState(FeedConnected)

			f.wg.Add(2)
			go f.listen()
			go f.pingLoop()
			return
		}
		f.setState(FeedFailed)
		f.logger.Warn("move_feed_failed", zap.String("url", f.wsURL))
	}()
}

// State returns the current connection state.
func (f *Feed) State() FeedState {
	f.stateM.RLock()
	defer f.stateM.RUnlock()
	return f.state
}

func (f *Feed) setState(state FeedState) {
	f.stateM.Lock()
	f.state = state
	f.stateM.Unlock()
}

// Close tears the feed down and waits for its loops to exit.
func (f *Feed) Close(ctx context.Context) error {
	f.stopOnce.Do(func() { close(f.stopCh) })
	_ = f.closeConn(websocket.StatusNormalClosure, "close")

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		if f.rootCancel != nil {
			f.rootCancel()
		}
		return nil
	}
}

func (f *Feed) closeConn(code websocket.StatusCode, reason string) error {
	if f.conn == nil {
		return nil
	}
	defer func() { f.conn = nil }()
	return f.conn.Close(code, reason)
}

func (f *Feed) isStopping() bool {
	select {
	case <-f.stopCh:
		return true
	default:
		return false
	}
}
