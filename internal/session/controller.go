package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/lanchess/internal/anim"
	"github.com/kapu/lanchess/internal/board"
	"github.com/kapu/lanchess/internal/config"
	"github.com/kapu/lanchess/internal/obslog"
)

// Phase is the interaction state gating gestures.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSelected
	PhasePromotion
	PhaseConfirming
	PhaseGameOver
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSelected:
		return "selected"
	case PhasePromotion:
		return "promotion"
	case PhaseConfirming:
		return "confirming"
	case PhaseGameOver:
		return "game-over"
	}
	return "unknown"
}

// Delays applied on top of the animation settle time.
const (
	// EngineReplyDelay spaces the automated reply out after a human move
	// settles, so the reply does not appear instantaneous.
	EngineReplyDelay = 1000 * time.Millisecond

	// InitialEngineDelay is the kick when the automated side opens the
	// game, long enough for the entry cascade to finish.
	InitialEngineDelay = 2010 * time.Millisecond
)

var (
	// ErrUndoUnavailable means the human has not completed a move yet.
	ErrUndoUnavailable = errors.New("no move to undo yet")

	// ErrUndoInconsistent means the second half of a two-ply undo failed
	// after the first succeeded. The board is deliberately left
	// unrefreshed; a reset recovers.
	ErrUndoInconsistent = errors.New("undo left the game in an inconsistent state; reset to recover")
)

// Authority is the slice of the game service the controller depends on.
type Authority interface {
	Board(ctx context.Context) ([][]string, error)
	Stats(ctx context.Context) (board.Stats, error)
	Turn(ctx context.Context) (board.Color, error)
	ProposeMove(ctx context.Context, move string) (bool, error)
	CheckMove(ctx context.Context, from, to string) (bool, error)
	EngineMove(ctx context.Context) (string, error)
	Reset(ctx context.Context) error
	Undo(ctx context.Context) error
}

// PendingPromotion holds a move awaiting the promotion-kind choice. While
// set, every other gesture is suppressed.
type PendingPromotion struct {
	From board.Square
	To   board.Square
}

// Controller owns one game session: the board mirror, the turn/mode state
// machine, and the flows against the remote authority. All methods must be
// called from the owning event loop; scheduled callbacks are expected to be
// marshalled back onto that loop by the Scheduler.
type Controller struct {
	mode   config.Mode
	human  board.Color
	auth   Authority
	mirror *board.Mirror
	seq    *anim.Sequencer
	sched  anim.Scheduler
	logger *zap.Logger

	ctx context.Context

	phase    Phase
	selected board.Square
	pending  *PendingPromotion
	active   board.Color
	ply      int
}

func NewController(ctx context.Context, mode config.Mode, human board.Color, auth Authority, mirror *board.Mirror, seq *anim.Sequencer, sched anim.Scheduler) *Controller {
	return &Controller{
		mode:   mode,
		human:  human,
		auth:   auth,
		mirror: mirror,
		seq:    seq,
		sched:  sched,
		logger: obslog.L(),
		ctx:    ctx,
		phase:  PhaseIdle,
		active: board.White,
	}
}

// SetAssignment records the side the human controls (LAN join/create).
func (c *Controller) SetAssignment(color board.Color) { c.human = color }

// Phase returns the current interaction phase.
func (c *Controller) Phase() Phase { return c.phase }

// Selected returns the currently selected square, if any.
func (c *Controller) Selected() (board.Square, bool) {
	return c.selected, c.phase == PhaseSelected
}

// Pending returns the promotion awaiting a choice, if any.
func (c *Controller) Pending() *PendingPromotion { return c.pending }

// ActiveColor returns the side to move as last confirmed.
func (c *Controller) ActiveColor() board.Color { return c.active }

// Mirror exposes the board mirror for rendering.
func (c *Controller) Mirror() *board.Mirror { return c.mirror }

// Start performs the initial load: snapshot, stats, entry cascade, and,
// when the automated side opens the game, the delayed first engine move.
func (c *Controller) Start() error {
	if err := c.reload(true); err != nil {
		return err
	}
	if c.mode == config.ModeEngine && c.phase != PhaseGameOver && c.active != c.human {
		c.sched.After(InitialEngineDelay, c.requestEngineMove)
	}
	return nil
}

// HandleSquare is the gesture entry point.
func (c *Controller) HandleSquare(sq board.Square) {
	if !sq.Valid() {
		return
	}
	switch c.phase {
	case PhaseGameOver, PhaseConfirming, PhasePromotion:
		return
	case PhaseIdle:
		p, ok := c.mirror.Occupant(sq)
		if !ok || !c.mayControl(p.Color) {
			return
		}
		c.selected = sq
		c.phase = PhaseSelected
	case PhaseSelected:
		mover, ok := c.mirror.Occupant(c.selected)
		if !ok {
			// Selection went stale under a reload.
			c.phase = PhaseIdle
			return
		}
		if p, occupied := c.mirror.Occupant(sq); occupied && p.Color == mover.Color {
			c.selected = sq
			return
		}
		c.attemptMove(c.selected, sq)
	}
}

// mayControl applies the mode/color/turn gating rule.
func (c *Controller) mayControl(color board.Color) bool {
	if color != c.active {
		return false
	}
	if c.mode == config.ModeLocal {
		return true
	}
	return color == c.human
}

func (c *Controller) attemptMove(from, to board.Square) {
	// The 300ms settle timer is the serialization point for moves on the
	// same board; refuse to resolve a second attempt under it.
	if c.seq.Busy() {
		return
	}
	if board.IsPromotion(c.mirror, from, to) {
		legal, err := c.auth.CheckMove(c.ctx, from.String(), to.String())
		if err != nil {
			c.logger.Warn("promotion_precheck_error", zap.Error(err))
			return
		}
		if !legal {
			c.rejectAttempt(to)
			return
		}
		c.pending = &PendingPromotion{From: from, To: to}
		c.phase = PhasePromotion
		return
	}
	c.submitMove(board.Move{From: from, To: to})
}

// ChoosePromotion supplies the promotion kind and sends the move.
func (c *Controller) ChoosePromotion(kind board.PieceKind) {
	if c.phase != PhasePromotion || c.pending == nil {
		return
	}
	mv := board.Move{From: c.pending.From, To: c.pending.To, Promotion: kind}
	c.pending = nil
	c.submitMove(mv)
}

func (c *Controller) submitMove(mv board.Move) {
	c.phase = PhaseConfirming
	ok, err := c.auth.ProposeMove(c.ctx, mv.Encode())
	if err != nil {
		c.logger.Warn("move_request_error", zap.String("move", mv.Encode()), zap.Error(err))
		c.phase = PhaseIdle
		return
	}
	if !ok {
		c.rejectAttempt(mv.To)
		return
	}
	c.confirmMove(mv)
}

func (c *Controller) rejectAttempt(target board.Square) {
	c.seq.Flash(target)
	c.phase = PhaseIdle
	c.logger.Info("move_rejected", zap.String("target", target.String()))
}

// confirmMove plays a confirmed move: derive effects against the pre-move
// mirror, apply provisionally, animate, and only then flip the turn.
func (c *Controller) confirmMove(mv board.Move) {
	mover, ok := c.mirror.Occupant(mv.From)
	if !ok {
		// Mirror disagrees with the confirmation; resynchronize.
		c.Refresh()
		return
	}
	effects := board.DeriveEffects(c.mirror, mv)
	c.mirror.ApplyMove(mv, effects)
	c.phase = PhaseIdle
	c.active = c.active.Opposite()
	c.ply++
	c.logger.Info("move_confirmed",
		zap.String("move", mv.Encode()),
		zap.String("active", string(c.active)),
		zap.Int("ply", c.ply),
	)
	if err := c.seq.PlayMove(mv, mover, effects, c.afterSettle); err != nil {
		// Should be unreachable given the Busy gate; resynchronize.
		c.logger.Error("animation_refused", zap.Error(err))
		c.Refresh()
	}
}

// afterSettle runs once the primary translation lands: refresh stats, then
// schedule the automated reply when it is the engine's turn.
func (c *Controller) afterSettle() {
	stats, err := c.auth.Stats(c.ctx)
	if err != nil {
		c.logger.Warn("stats_refresh_error", zap.Error(err))
		return
	}
	c.applyStats(stats)
	if c.mode == config.ModeEngine && c.phase != PhaseGameOver && c.active != c.human {
		c.sched.After(EngineReplyDelay, c.requestEngineMove)
	}
}

func (c *Controller) applyStats(stats board.Stats) {
	c.mirror.SetStats(stats)
	c.active = stats.ActiveColor
	c.ply = stats.Ply
	if stats.Terminal() {
		c.phase = PhaseGameOver
		c.pending = nil
		c.logger.Info("game_over",
			zap.Bool("checkmate", stats.Checkmate),
			zap.Bool("draw", stats.Draw),
			zap.String("winner", stats.Winner),
		)
	}
}

// requestEngineMove asks the automated opponent to move and animates the
// result.
func (c *Controller) requestEngineMove() {
	if c.phase == PhaseGameOver || c.seq.Busy() {
		return
	}
	mvStr, err := c.auth.EngineMove(c.ctx)
	if err != nil {
		c.logger.Warn("engine_move_error", zap.Error(err))
		return
	}
	mv, err := board.ParseMove(mvStr)
	if err != nil {
		c.logger.Warn("engine_move_unparseable", zap.String("move", mvStr), zap.Error(err))
		c.Refresh()
		return
	}
	c.confirmMove(mv)
}

// PollTurn checks whether the peer has moved (LAN mode fallback when the
// push feed is down). A flip to our color triggers a full reload.
func (c *Controller) PollTurn() {
	if c.mode != config.ModeLAN || c.phase == PhaseGameOver || c.seq.Busy() {
		return
	}
	if c.active == c.human {
		return
	}
	turn, err := c.auth.Turn(c.ctx)
	if err != nil {
		c.logger.Debug("turn_poll_error", zap.Error(err))
		return
	}
	if turn == c.human {
		c.Refresh()
	}
}

// Refresh reloads board and stats wholesale, superseding any in-flight
// animation. A failure leaves the previous mirror displayed.
func (c *Controller) Refresh() {
	if err := c.reload(false); err != nil {
		c.logger.Warn("refresh_error", zap.Error(err))
	}
}

func (c *Controller) reload(cascade bool) error {
	grid, err := c.auth.Board(c.ctx)
	if err != nil {
		return fmt.Errorf("board fetch: %w", err)
	}
	stats, err := c.auth.Stats(c.ctx)
	if err != nil {
		return fmt.Errorf("stats fetch: %w", err)
	}
	if err := c.mirror.LoadSnapshot(grid); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	c.pending = nil
	c.phase = PhaseIdle
	c.applyStats(stats)
	if cascade {
		c.seq.Populate(c.mirror)
	} else {
		c.seq.Sync(c.mirror)
	}
	return nil
}

// Reset reloads the initial position.
func (c *Controller) Reset() error {
	if err := c.auth.Reset(c.ctx); err != nil {
		c.logger.Warn("reset_error", zap.Error(err))
		return err
	}
	return c.reload(true)
}

// UndoAvailable reports whether an undo may be invoked. The ply threshold
// differs by one depending on which color the human controls, because the
// automated side's opening move also counts.
func (c *Controller) UndoAvailable() bool {
	if c.mode == config.ModeEngine {
		if c.human == board.White {
			return c.ply >= 2
		}
		return c.ply >= 3
	}
	return c.ply >= 1
}

// Undo rolls back the last user-visible action. In engine mode that is two
// half-moves (the automated reply and the human's own move) applied
// both-or-neither: if the second call fails after the first succeeded the
// board is left unrefreshed and ErrUndoInconsistent reported.
func (c *Controller) Undo() error {
	if !c.UndoAvailable() {
		return ErrUndoUnavailable
	}
	if c.mode == config.ModeEngine {
		if err := c.auth.Undo(c.ctx); err != nil {
			c.logger.Warn("undo_error", zap.Error(err))
			return fmt.Errorf("undo: %w", err)
		}
		if err := c.auth.Undo(c.ctx); err != nil {
			c.logger.Error("undo_inconsistent", zap.Error(err))
			return ErrUndoInconsistent
		}
	} else {
		if err := c.auth.Undo(c.ctx); err != nil {
			c.logger.Warn("undo_error", zap.Error(err))
			return fmt.Errorf("undo: %w", err)
		}
	}
	return c.reload(false)
}
