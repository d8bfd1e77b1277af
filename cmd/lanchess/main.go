package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	termbox "github.com/nsf/termbox-go"
	"go.uber.org/zap"

	"github.com/kapu/lanchess/internal/anim"
	"github.com/kapu/lanchess/internal/authority"
	"github.com/kapu/lanchess/internal/board"
	appcfg "github.com/kapu/lanchess/internal/config"
	"github.com/kapu/lanchess/internal/discovery"
	"github.com/kapu/lanchess/internal/obslog"
	"github.com/kapu/lanchess/internal/render"
	"github.com/kapu/lanchess/internal/session"

	"github.com/google/uuid"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer obslog.Sync()

	term := render.NewTerm()
	if err := term.Init(); err != nil {
		log.Fatalf("terminal error: %v", err)
	}
	defer term.Close()

	if err := run(cfg, term); err != nil {
		term.Close()
		log.Fatalf("lanchess: %v", err)
	}
}

// app bundles the loop-owned state. Everything in here is touched only from
// the main event loop; timers and network callbacks are posted onto it.
type app struct {
	cfg    *appcfg.AppConfig
	term   *render.Term
	client *authority.Client
	ctrl   *session.Controller

	tasks   chan func()
	events  chan termbox.Event
	signals chan os.Signal

	feed      *authority.Feed
	announcer *discovery.Announcer
}

func run(cfg *appcfg.AppConfig, term *render.Term) error {
	ctx := context.Background()

	a := &app{
		cfg:     cfg,
		term:    term,
		client:  authority.NewClient(cfg.ServerURL),
		tasks:   make(chan func(), 128),
		events:  make(chan termbox.Event, 16),
		signals: make(chan os.Signal, 1),
	}
	signal.Notify(a.signals, os.Interrupt, syscall.SIGTERM)
	post := func(fn func()) { a.tasks <- fn }
	sched := &anim.TimerScheduler{Post: post}

	mirror := board.NewMirror()
	seq := anim.NewSequencer(term, sched)

	human := board.White
	if cfg.HumanColor == "black" {
		human = board.Black
	}
	a.ctrl = session.NewController(ctx, cfg.Mode, human, a.client, mirror, seq, sched)

	go func() {
		for {
			a.events <- termbox.PollEvent()
		}
	}()

	if cfg.Mode == appcfg.ModeLAN {
		ok, err := a.runBrowser(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil // user quit from the browser screen
		}
	}

	if err := a.ctrl.Start(); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}
	return a.runBoard(ctx)
}

// runBoard is the main play loop.
func (a *app) runBoard(ctx context.Context) error {
	redraw := time.NewTicker(50 * time.Millisecond)
	defer redraw.Stop()

	var turnPoll *time.Ticker
	if a.cfg.Mode == appcfg.ModeLAN {
		turnPoll = time.NewTicker(a.cfg.TurnPoll)
		defer turnPoll.Stop()
	} else {
		turnPoll = time.NewTicker(time.Hour)
		turnPoll.Stop()
	}

	defer func() {
		if a.announcer != nil {
			a.announcer.Stop()
		}
		if a.feed != nil {
			cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = a.feed.Close(cctx)
		}
	}()

	a.term.DrawBoard(a.ctrl)
	for {
		select {
		case fn := <-a.tasks:
			fn()
		case <-redraw.C:
		case <-turnPoll.C:
			a.ctrl.PollTurn()
		case <-a.signals:
			return nil
		case ev := <-a.events:
			if quit := a.handleEvent(ev); quit {
				return nil
			}
		}
		a.term.DrawBoard(a.ctrl)
	}
}

func (a *app) handleEvent(ev termbox.Event) (quit bool) {
	if ev.Type == termbox.EventMouse && ev.Key == termbox.MouseLeft {
		if sq, ok := a.term.SquareAt(ev.MouseX, ev.MouseY); ok {
			a.ctrl.HandleSquare(sq)
		}
		return false
	}
	if ev.Type != termbox.EventKey {
		return false
	}

	if a.ctrl.Phase() == session.PhasePromotion {
		switch ev.Ch {
		case 'q':
			a.ctrl.ChoosePromotion(board.Queen)
		case 'r':
			a.ctrl.ChoosePromotion(board.Rook)
		case 'b':
			a.ctrl.ChoosePromotion(board.Bishop)
		case 'n':
			a.ctrl.ChoosePromotion(board.Knight)
		}
		return false
	}

	switch {
	case ev.Key == termbox.KeyEsc || ev.Key == termbox.KeyCtrlC || ev.Ch == 'q':
		return true
	case ev.Ch == 'r':
		if err := a.ctrl.Reset(); err != nil {
			a.term.SetStatus("reset failed: " + err.Error())
		} else {
			a.term.SetStatus("")
		}
	case ev.Ch == 'u':
		if err := a.ctrl.Undo(); err != nil {
			a.term.SetStatus(err.Error())
		} else {
			a.term.SetStatus("")
		}
	case ev.Ch == 's':
		path, err := render.SaveSnapshot(a.cfg.SnapshotDir, a.ctrl.Mirror())
		if err != nil {
			a.term.SetStatus("snapshot failed: " + err.Error())
		} else {
			a.term.SetStatus("snapshot saved: " + path)
		}
	}
	return false
}

// runBrowser shows the session-browser screen until the user hosts a
// session, joins one, or quits. Returns false when the user quit.
func (a *app) runBrowser(ctx context.Context) (bool, error) {
	browser, err := discovery.NewBrowser(a.cfg.DiscoveryPort, 3*a.cfg.AnnounceInterval)
	if err != nil {
		return false, err
	}
	browser.Start()
	defer browser.Stop()

	user, err := appcfg.LoadUserFile(a.cfg.UserFile)
	if err != nil {
		obslog.L().Warn("user_file_error", zap.Error(err))
		user = &appcfg.UserFile{}
	}
	message := ""
	if user.LastJoin != nil {
		message = "press j to rejoin " + user.LastJoin.HostURL
	}

	poll := time.NewTicker(a.cfg.BrowsePoll)
	defer poll.Stop()

	cursor := 0
	for {
		local, others := browser.Sessions()
		if cursor >= len(others) {
			cursor = len(others) - 1
		}
		if cursor < 0 {
			cursor = 0
		}
		a.term.DrawBrowser(local, others, cursor, message)

		select {
		case <-poll.C:
			continue
		case fn := <-a.tasks:
			fn()
			continue
		case <-a.signals:
			if a.announcer != nil {
				a.announcer.Stop()
			}
			return false, nil
		case ev := <-a.events:
			if ev.Type != termbox.EventKey {
				continue
			}
			switch {
			case ev.Key == termbox.KeyEsc || ev.Key == termbox.KeyCtrlC || ev.Ch == 'q':
				if a.announcer != nil {
					a.announcer.Stop()
				}
				return false, nil
			case ev.Key == termbox.KeyArrowUp:
				cursor--
			case ev.Key == termbox.KeyArrowDown:
				cursor++
			case ev.Ch == 'h':
				if local != nil {
					message = "already hosting"
					continue
				}
				if err := a.hostSession(ctx, browser); err != nil {
					message = "host failed: " + err.Error()
					continue
				}
				message = "hosting - waiting for a peer; press enter to sit at the board"
			case ev.Ch == 'j' && user.LastJoin != nil:
				if err := a.rejoin(ctx, user.LastJoin); err != nil {
					message = "rejoin failed: " + err.Error()
					continue
				}
				return true, nil
			case ev.Key == termbox.KeyEnter:
				if local != nil {
					// Host takes their seat; the peer's moves arrive by poll.
					return true, nil
				}
				if len(others) == 0 {
					message = "nothing to join yet"
					continue
				}
				if err := a.join(ctx, others[cursor], user); err != nil {
					// Join failure leaves the browser screen unchanged.
					message = "join failed: " + err.Error()
					continue
				}
				return true, nil
			}
		}
	}
}

func (a *app) hostSession(ctx context.Context, browser *discovery.Browser) error {
	info, err := a.client.CreateSession(ctx, a.cfg.HumanColor)
	if err != nil {
		return err
	}
	if info.Color == "black" {
		a.ctrl.SetAssignment(board.Black)
	} else {
		a.ctrl.SetAssignment(board.White)
	}

	addr, err := authorityAddr(a.cfg.ServerURL)
	if err != nil {
		return err
	}
	desc := discovery.Descriptor{
		SessionID:  info.ID,
		InstanceID: uuid.NewString(),
		Name:       a.cfg.PlayerName,
		HostColor:  info.Color,
		Addr:       addr,
	}
	browser.SetLocal(&desc)

	target := fmt.Sprintf("255.255.255.255:%d", a.cfg.DiscoveryPort)
	announcer := discovery.NewAnnouncer(target, desc, a.cfg.AnnounceInterval)
	if err := announcer.Start(); err != nil {
		return err
	}
	a.announcer = announcer
	return nil
}

func (a *app) join(ctx context.Context, desc discovery.Descriptor, user *appcfg.UserFile) error {
	// The join handshake still goes to the host directly.
	a.client.Retarget(desc.HostURL())
	color, err := a.client.JoinSession(ctx, desc.SessionID)
	if err != nil {
		a.client.Retarget(a.cfg.ServerURL)
		return err
	}
	a.finishJoin(desc.SessionID, desc.HostURL(), color)

	user.LastJoin = &appcfg.JoinRecord{SessionID: desc.SessionID, HostURL: desc.HostURL(), Color: color}
	if err := appcfg.SaveUserFile(a.cfg.UserFile, user); err != nil {
		obslog.L().Warn("join_record_save_error", zap.Error(err))
	}
	return nil
}

func (a *app) rejoin(ctx context.Context, rec *appcfg.JoinRecord) error {
	a.client.Retarget(rec.HostURL)
	color, err := a.client.JoinSession(ctx, rec.SessionID)
	if err != nil {
		a.client.Retarget(a.cfg.ServerURL)
		return err
	}
	a.finishJoin(rec.SessionID, rec.HostURL, color)
	return nil
}

func (a *app) finishJoin(sessionID, hostURL, color string) {
	if color == "black" {
		a.ctrl.SetAssignment(board.Black)
	} else {
		a.ctrl.SetAssignment(board.White)
	}
	obslog.L().Info("session_joined",
		zap.String("session_id", sessionID),
		zap.String("host", hostURL),
		zap.String("color", color),
	)

	// Push feed is best effort; the turn poll covers its absence.
	wsURL := "ws" + hostURL[len("http"):] + "/ws/moves"
	a.feed = authority.NewFeed(wsURL, 5, func(ev *authority.FeedEvent) {
		if ev != nil && ev.Type == "move" {
			a.tasks <- a.ctrl.Refresh
		}
	})
	cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.feed.Connect(cctx); err != nil {
		obslog.L().Warn("move_feed_connect_error", zap.Error(err))
	}
}

// authorityAddr extracts host:port from the configured server URL for the
// discovery announcement.
func authorityAddr(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	host := u.Host
	if host == "" {
		return "", fmt.Errorf("server url %q has no host", serverURL)
	}
	if u.Port() == "" {
		host += ":80"
	}
	// Replace loopback with the LAN-facing address so peers can reach us.
	if u.Hostname() == "127.0.0.1" || u.Hostname() == "localhost" {
		host = discovery.LocalIP() + ":" + portOrDefault(u)
	}
	return host, nil
}

func portOrDefault(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	return "80"
}
