package board

// EffectKind classifies the ancillary visual consequence of a move.
type EffectKind string

const (
	EffectCapture   EffectKind = "capture"
	EffectEnPassant EffectKind = "en-passant"
	EffectCastle    EffectKind = "castle"
	EffectPromote   EffectKind = "promote"
)

// Effect is an advisory descriptor consumed by the animation sequencer. It
// never decides legality; the authority's snapshot remains ground truth.
type Effect struct {
	Kind EffectKind

	// Fade is the square whose occupant fades out (capture, en-passant).
	Fade Square

	// From/To describe the companion rook relocation (castle).
	From Square
	To   Square

	// NewKind is the piece kind rendered at the destination (promote).
	NewKind PieceKind
}

// IsPromotion reports whether moving the occupant of from to to would reach
// the farthest rank for its color with a pawn. Callers gate the
// promotion-choice state on this before any move request is sent.
func IsPromotion(m *Mirror, from, to Square) bool {
	p, ok := m.Occupant(from)
	if !ok || p.Kind != Pawn {
		return false
	}
	if p.Color == White {
		return to.Rank == 7
	}
	return to.Rank == 0
}

// DeriveEffects classifies a proposed move against the pre-move mirror and
// returns the visual effects the sequencer should play alongside it.
// Rules are evaluated in order: direct capture, en-passant, castling,
// promotion. Capture and en-passant are mutually exclusive; castling never
// co-occurs with pawn effects.
func DeriveEffects(m *Mirror, mv Move) []Effect {
	mover, ok := m.Occupant(mv.From)
	if !ok {
		return nil
	}
	var effects []Effect

	fileDelta := mv.To.File - mv.From.File
	rankDelta := mv.To.Rank - mv.From.Rank
	target, occupied := m.Occupant(mv.To)

	switch {
	case occupied && target.Color != mover.Color:
		effects = append(effects, Effect{Kind: EffectCapture, Fade: mv.To})
	case mover.Kind == Pawn && !occupied && abs(fileDelta) == 1 && abs(rankDelta) == 1:
		// The captured pawn sits beside the destination, on the origin rank.
		effects = append(effects, Effect{
			Kind: EffectEnPassant,
			Fade: Sq(mv.To.File, mv.From.Rank),
		})
	}

	if mover.Kind == King && abs(fileDelta) == 2 {
		rank := mv.From.Rank
		if fileDelta > 0 {
			effects = append(effects, Effect{Kind: EffectCastle, From: Sq(7, rank), To: Sq(5, rank)})
		} else {
			effects = append(effects, Effect{Kind: EffectCastle, From: Sq(0, rank), To: Sq(3, rank)})
		}
	}

	if IsPromotion(m, mv.From, mv.To) {
		effects = append(effects, Effect{Kind: EffectPromote, NewKind: mv.Promotion})
	}

	return effects
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
