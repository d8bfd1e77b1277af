package render

import (
	"testing"

	"github.com/kapu/lanchess/internal/board"
)

func TestSquareAtMapsMouseToBoard(t *testing.T) {
	term := NewTerm()

	// Top-left cell is a8: row 0 on screen is rank 8.
	sq, ok := term.SquareAt(originX, originY)
	if !ok || sq != board.Sq(0, 7) {
		t.Fatalf("top-left = %v ok=%v, want a8", sq, ok)
	}

	// Bottom-right cell is h1.
	sq, ok = term.SquareAt(originX+7*cellW+cellW-1, originY+7*cellH+cellH-1)
	if !ok || sq != board.Sq(7, 0) {
		t.Fatalf("bottom-right = %v ok=%v, want h1", sq, ok)
	}

	// Every position inside one cell maps to the same square.
	for dx := 0; dx < cellW; dx++ {
		for dy := 0; dy < cellH; dy++ {
			sq, ok := term.SquareAt(originX+2*cellW+dx, originY+3*cellH+dy)
			if !ok || sq != board.Sq(2, 4) {
				t.Fatalf("cell interior (%d,%d) = %v ok=%v, want c5", dx, dy, sq, ok)
			}
		}
	}
}

func TestSquareAtRejectsOutside(t *testing.T) {
	term := NewTerm()
	outside := [][2]int{
		{0, 0},
		{originX - 1, originY},
		{originX, originY - 1},
		{originX + 8*cellW, originY},
		{originX, originY + 8*cellH},
	}
	for _, pos := range outside {
		if sq, ok := term.SquareAt(pos[0], pos[1]); ok {
			t.Fatalf("position (%d,%d) mapped to %v, want miss", pos[0], pos[1], sq)
		}
	}
}

func TestSurfaceBookkeeping(t *testing.T) {
	term := NewTerm()
	sq := board.Sq(4, 3)
	p := board.Piece{Color: board.White, Kind: board.Pawn}

	term.SetPiece(sq, p)
	if got, ok := term.pieces[sq]; !ok || got != p {
		t.Fatalf("pieces[e4] = %v ok=%v", got, ok)
	}

	term.BeginFade(sq)
	if !term.fading[sq] {
		t.Fatal("fade flag not set")
	}
	term.ClearSquare(sq)
	if _, ok := term.pieces[sq]; ok {
		t.Fatal("piece survived ClearSquare")
	}
	if term.fading[sq] {
		t.Fatal("fade flag survived ClearSquare")
	}

	from, to := board.Sq(4, 0), board.Sq(6, 0)
	king := board.Piece{Color: board.White, Kind: board.King}
	term.BeginSlide(from, to, king)
	if len(term.slides) != 1 {
		t.Fatalf("slides = %d, want 1", len(term.slides))
	}
	term.EndSlide(from, to, king)
	if len(term.slides) != 0 {
		t.Fatalf("slides = %d after EndSlide, want 0", len(term.slides))
	}
}
