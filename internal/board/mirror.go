package board

import (
	"fmt"
	"sort"
)

// Mirror is the locally held copy of the authoritative board. It always
// carries exactly 64 squares; a nil occupant means the square is empty.
// Snapshots replace it wholesale. Provisional edits made while an animation
// is in flight are overwritten by the next confirmed snapshot.
type Mirror struct {
	occ   map[Square]*Piece
	stats Stats
}

// NewMirror returns an empty mirror with all 64 squares present.
func NewMirror() *Mirror {
	m := &Mirror{occ: make(map[Square]*Piece, 64)}
	for rank := 0; rank < 8; rank++ {
		for file := 0; file < 8; file++ {
			m.occ[Sq(file, rank)] = nil
		}
	}
	return m
}

// LoadSnapshot rebuilds the mirror from an authoritative 8x8 grid. Row 0 is
// rank 8 and column 0 is the a-file, matching the wire format. The grid is
// never diffed against the previous contents; a snapshot is ground truth.
func (m *Mirror) LoadSnapshot(grid [][]string) error {
	if len(grid) != 8 {
		return fmt.Errorf("snapshot has %d rows, want 8", len(grid))
	}
	next := make(map[Square]*Piece, 64)
	for row := 0; row < 8; row++ {
		if len(grid[row]) != 8 {
			return fmt.Errorf("snapshot row %d has %d columns, want 8", row, len(grid[row]))
		}
		for col := 0; col < 8; col++ {
			sq := Sq(col, 7-row)
			p, ok, err := PieceFromSymbol(grid[row][col])
			if err != nil {
				return fmt.Errorf("snapshot square %s: %w", sq, err)
			}
			if ok {
				cp := p
				next[sq] = &cp
			} else {
				next[sq] = nil
			}
		}
	}
	m.occ = next
	return nil
}

// Occupant returns the piece on sq, if any.
func (m *Mirror) Occupant(sq Square) (Piece, bool) {
	p := m.occ[sq]
	if p == nil {
		return Piece{}, false
	}
	return *p, true
}

// SetStats stores the latest companion stats beside the occupancy.
func (m *Mirror) SetStats(s Stats) { m.stats = s }

// Stats returns the last stored companion stats.
func (m *Mirror) Stats() Stats { return m.stats }

// ApplyMove performs the provisional occupancy update for a confirmed move
// so the next inference runs against the post-move position. The update is
// advisory; the next LoadSnapshot supersedes it.
func (m *Mirror) ApplyMove(mv Move, effects []Effect) {
	p := m.occ[mv.From]
	if p == nil {
		return
	}
	landed := *p
	for _, e := range effects {
		switch e.Kind {
		case EffectCapture, EffectEnPassant:
			m.occ[e.Fade] = nil
		case EffectCastle:
			if rook := m.occ[e.From]; rook != nil {
				m.occ[e.To] = rook
				m.occ[e.From] = nil
			}
		case EffectPromote:
			if e.NewKind != 0 {
				landed.Kind = e.NewKind
			}
		}
	}
	m.occ[mv.From] = nil
	m.occ[mv.To] = &landed
}

// Occupied returns all occupied squares with their pieces, ordered by
// square index. Used for wholesale redraws.
func (m *Mirror) Occupied() []Placement {
	out := make([]Placement, 0, 32)
	for sq, p := range m.occ {
		if p != nil {
			out = append(out, Placement{Square: sq, Piece: *p})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Square.Index() < out[j].Square.Index() })
	return out
}

// Placement pairs a square with its occupant.
type Placement struct {
	Square Square
	Piece  Piece
}

// EntryOrder returns placements in the cascade order used for the initial
// population: white pieces by ascending kind code, black by descending.
// The ordering is purely cosmetic.
func (m *Mirror) EntryOrder() []Placement {
	var white, black []Placement
	for _, pl := range m.Occupied() {
		if pl.Piece.Color == White {
			white = append(white, pl)
		} else {
			black = append(black, pl)
		}
	}
	sort.SliceStable(white, func(i, j int) bool { return white[i].Piece.Kind < white[j].Piece.Kind })
	sort.SliceStable(black, func(i, j int) bool { return black[i].Piece.Kind > black[j].Piece.Kind })
	return append(white, black...)
}
