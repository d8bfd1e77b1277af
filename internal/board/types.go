package board

import (
	"fmt"
	"strings"
)

// Color is a side of the board.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Opposite returns the other side.
func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

// PieceKind is one of the six chess piece types. The value is the uppercase
// symbol letter, which doubles as the kind code used for the entry cascade
// ordering.
type PieceKind byte

const (
	Pawn   PieceKind = 'P'
	Knight PieceKind = 'N'
	Bishop PieceKind = 'B'
	Rook   PieceKind = 'R'
	Queen  PieceKind = 'Q'
	King   PieceKind = 'K'
)

func (k PieceKind) String() string { return string(rune(k)) }

// Piece is an occupant of a square.
type Piece struct {
	Color Color
	Kind  PieceKind
}

// Symbol returns the single-letter wire symbol: uppercase for white,
// lowercase for black.
func (p Piece) Symbol() string {
	s := string(rune(p.Kind))
	if p.Color == Black {
		return strings.ToLower(s)
	}
	return s
}

// PieceFromSymbol parses a wire symbol ("P".."k"). Blank means empty.
func PieceFromSymbol(sym string) (Piece, bool, error) {
	sym = strings.TrimSpace(sym)
	if sym == "" {
		return Piece{}, false, nil
	}
	if len(sym) != 1 {
		return Piece{}, false, fmt.Errorf("invalid piece symbol %q", sym)
	}
	c := White
	b := sym[0]
	if b >= 'a' && b <= 'z' {
		c = Black
		b -= 'a' - 'A'
	}
	switch PieceKind(b) {
	case Pawn, Knight, Bishop, Rook, Queen, King:
		return Piece{Color: c, Kind: PieceKind(b)}, true, nil
	}
	return Piece{}, false, fmt.Errorf("invalid piece symbol %q", sym)
}

// Square is a board coordinate. File 0 is the a-file, Rank 0 is rank 1.
type Square struct {
	File int
	Rank int
}

// Sq builds a square from file and rank indices.
func Sq(file, rank int) Square { return Square{File: file, Rank: rank} }

// Valid reports whether the square lies on the board.
func (s Square) Valid() bool {
	return s.File >= 0 && s.File < 8 && s.Rank >= 0 && s.Rank < 8
}

// String renders the coordinate name, e.g. "e4".
func (s Square) String() string {
	return fmt.Sprintf("%c%c", 'a'+s.File, '1'+s.Rank)
}

// Index returns a stable 0..63 ordinal (a1=0, b1=1, ... h8=63).
func (s Square) Index() int { return s.Rank*8 + s.File }

// ParseSquare parses a coordinate name like "e4".
func ParseSquare(name string) (Square, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) != 2 {
		return Square{}, fmt.Errorf("invalid square %q", name)
	}
	sq := Square{File: int(name[0] - 'a'), Rank: int(name[1] - '1')}
	if !sq.Valid() {
		return Square{}, fmt.Errorf("invalid square %q", name)
	}
	return sq, nil
}

// Move is an outgoing move proposal. Promotion is zero for ordinary moves.
type Move struct {
	From      Square
	To        Square
	Promotion PieceKind
}

// Encode renders the 4- or 5-character coordinate form, e.g. "e7e8q".
func (m Move) Encode() string {
	s := m.From.String() + m.To.String()
	if m.Promotion != 0 {
		s += strings.ToLower(string(rune(m.Promotion)))
	}
	return s
}

// ParseMove parses the 4- or 5-character coordinate form.
func ParseMove(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 4 && len(s) != 5 {
		return Move{}, fmt.Errorf("invalid move %q", s)
	}
	from, err := ParseSquare(s[:2])
	if err != nil {
		return Move{}, fmt.Errorf("invalid move %q: %w", s, err)
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return Move{}, fmt.Errorf("invalid move %q: %w", s, err)
	}
	mv := Move{From: from, To: to}
	if len(s) == 5 {
		p, ok, err := PieceFromSymbol(strings.ToUpper(s[4:]))
		if err != nil || !ok {
			return Move{}, fmt.Errorf("invalid promotion in %q", s)
		}
		mv.Promotion = p.Kind
	}
	return mv, nil
}

// Stats mirrors the authority's companion state query.
type Stats struct {
	ActiveColor     Color
	CastlingRights  string
	EnPassantTarget string // square name or "-"
	HalfmoveClock   int
	FullmoveNumber  int
	Ply             int
	InCheck         bool
	Checkmate       bool
	Draw            bool
	Winner          string
}

// Terminal reports whether the game has ended.
func (s Stats) Terminal() bool { return s.Checkmate || s.Draw }
