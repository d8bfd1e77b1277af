package anim

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/lanchess/internal/board"
	"github.com/kapu/lanchess/internal/obslog"
)

// Timing constants, preserved for behavioral parity with the original
// client. Dependent state transitions key off SettleTime.
const (
	FadeDuration  = 200 * time.Millisecond
	SlideDuration = 300 * time.Millisecond
	EntryStagger  = 50 * time.Millisecond
	SettleTime    = SlideDuration
)

// ErrInFlight is returned when a move animation is requested while the
// previous one has not settled. The session state machine normally prevents
// this; the sequencer refuses anyway rather than corrupt square bookkeeping.
var ErrInFlight = errors.New("move animation already in flight")

// Surface is the rendering side the sequencer drives. Implementations own
// the visuals only; the board mirror is never touched from here.
type Surface interface {
	SetPiece(sq board.Square, p board.Piece)
	ClearSquare(sq board.Square)
	BeginFade(sq board.Square)
	EndFade(sq board.Square)
	BeginSlide(from, to board.Square, p board.Piece)
	EndSlide(from, to board.Square, p board.Piece)
	Flash(sq board.Square)
}

// Sequencer turns a move plus its derived effects into an ordered, timed
// visual sequence. One move may be in flight at a time per board; a full
// mirror reload supersedes whatever is still running.
type Sequencer struct {
	surface Surface
	sched   Scheduler
	logger  *zap.Logger

	busy bool
	gen  uint64
}

func NewSequencer(surface Surface, sched Scheduler) *Sequencer {
	return &Sequencer{surface: surface, sched: sched, logger: obslog.L()}
}

// Busy reports whether a move animation has not yet settled.
func (s *Sequencer) Busy() bool { return s.busy }

// Supersede invalidates all scheduled visual steps. Straggling timers may
// still fire but will find a newer generation and do nothing.
func (s *Sequencer) Supersede() {
	s.gen++
	s.busy = false
}

// Sync redraws every square from the mirror immediately, with no stagger.
// Used after resets, undos and peer refreshes.
func (s *Sequencer) Sync(m *board.Mirror) {
	s.Supersede()
	for rank := 0; rank < 8; rank++ {
		for file := 0; file < 8; file++ {
			s.surface.ClearSquare(board.Sq(file, rank))
		}
	}
	for _, pl := range m.Occupied() {
		s.surface.SetPiece(pl.Square, pl.Piece)
	}
}

// Populate plays the initial cascade: each piece appears EntryStagger times
// its position in the mirror's entry order.
func (s *Sequencer) Populate(m *board.Mirror) {
	s.Supersede()
	gen := s.gen
	for rank := 0; rank < 8; rank++ {
		for file := 0; file < 8; file++ {
			s.surface.ClearSquare(board.Sq(file, rank))
		}
	}
	for i, pl := range m.EntryOrder() {
		pl := pl
		s.sched.After(time.Duration(i)*EntryStagger, func() {
			if gen != s.gen {
				return
			}
			s.surface.SetPiece(pl.Square, pl.Piece)
		})
	}
}

// PlayMove animates a confirmed (or optimistic) move. landed is the piece
// that ends up on the destination, already reflecting any promotion choice.
// onSettled runs once the primary translation completes at +300ms.
func (s *Sequencer) PlayMove(mv board.Move, mover board.Piece, effects []board.Effect, onSettled func()) error {
	if s.busy {
		return ErrInFlight
	}
	s.busy = true
	gen := s.gen

	landed := mover
	for _, e := range effects {
		switch e.Kind {
		case board.EffectCapture, board.EffectEnPassant:
			fade := e.Fade
			s.surface.BeginFade(fade)
			s.sched.After(FadeDuration, func() {
				if gen != s.gen {
					return
				}
				s.surface.EndFade(fade)
				s.surface.ClearSquare(fade)
			})
		case board.EffectCastle:
			rookFrom, rookTo := e.From, e.To
			rook := board.Piece{Color: mover.Color, Kind: board.Rook}
			s.surface.BeginSlide(rookFrom, rookTo, rook)
			s.sched.After(SlideDuration, func() {
				if gen != s.gen {
					return
				}
				s.surface.EndSlide(rookFrom, rookTo, rook)
				s.surface.ClearSquare(rookFrom)
				s.surface.SetPiece(rookTo, rook)
			})
		case board.EffectPromote:
			if e.NewKind != 0 {
				landed.Kind = e.NewKind
			}
		}
	}

	s.surface.BeginSlide(mv.From, mv.To, mover)
	s.sched.After(SlideDuration, func() {
		if gen != s.gen {
			// Superseded mid-flight; a full reload already replaced the
			// visuals, but the in-flight flag must not stay stuck.
			return
		}
		s.surface.EndSlide(mv.From, mv.To, mover)
		s.surface.ClearSquare(mv.From)
		s.surface.SetPiece(mv.To, landed)
		s.busy = false
		if onSettled != nil {
			onSettled()
		}
	})

	s.logger.Debug("animation_start",
		zap.String("move", mv.Encode()),
		zap.Int("effects", len(effects)),
	)
	return nil
}

// Flash marks a square with the error indicator.
func (s *Sequencer) Flash(sq board.Square) { s.surface.Flash(sq) }
