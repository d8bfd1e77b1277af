package board

import "testing"

// gridFromRows expands compact row strings ('.' = empty) into the wire grid.
// Row 0 is rank 8.
func gridFromRows(rows [8]string) [][]string {
	grid := make([][]string, 8)
	for r, row := range rows {
		grid[r] = make([]string, 8)
		for c := 0; c < 8; c++ {
			if row[c] != '.' {
				grid[r][c] = string(row[c])
			}
		}
	}
	return grid
}

func startGrid() [][]string {
	return gridFromRows([8]string{
		"rnbqkbnr",
		"pppppppp",
		"........",
		"........",
		"........",
		"........",
		"PPPPPPPP",
		"RNBQKBNR",
	})
}

func TestNewMirrorHasAllSquares(t *testing.T) {
	m := NewMirror()
	if len(m.occ) != 64 {
		t.Fatalf("mirror holds %d squares, want 64", len(m.occ))
	}
	if got := len(m.Occupied()); got != 0 {
		t.Fatalf("fresh mirror has %d occupants, want 0", got)
	}
}

func TestLoadSnapshotOrientation(t *testing.T) {
	m := NewMirror()
	if err := m.LoadSnapshot(startGrid()); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	// Row 0 of the wire grid is rank 8, so the black king sits on e8.
	p, ok := m.Occupant(Sq(4, 7))
	if !ok || p != (Piece{Color: Black, Kind: King}) {
		t.Fatalf("e8 = %+v ok=%v, want black king", p, ok)
	}
	p, ok = m.Occupant(Sq(4, 0))
	if !ok || p != (Piece{Color: White, Kind: King}) {
		t.Fatalf("e1 = %+v ok=%v, want white king", p, ok)
	}
	if _, ok := m.Occupant(Sq(4, 3)); ok {
		t.Fatal("e4 should be empty in the initial position")
	}
	if got := len(m.Occupied()); got != 32 {
		t.Fatalf("initial position has %d occupants, want 32", got)
	}
}

func TestLoadSnapshotIdempotent(t *testing.T) {
	m := NewMirror()
	if err := m.LoadSnapshot(startGrid()); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	first := m.Occupied()
	if err := m.LoadSnapshot(startGrid()); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	second := m.Occupied()

	if len(first) != len(second) {
		t.Fatalf("occupancy changed on reload: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("placement %d changed on reload: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestLoadSnapshotReplacesWholesale(t *testing.T) {
	m := NewMirror()
	if err := m.LoadSnapshot(startGrid()); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	sparse := gridFromRows([8]string{
		"....k...",
		"........",
		"........",
		"........",
		"........",
		"........",
		"........",
		"....K...",
	})
	if err := m.LoadSnapshot(sparse); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if got := len(m.Occupied()); got != 2 {
		t.Fatalf("after replace %d occupants, want 2", got)
	}
	if _, ok := m.Occupant(Sq(0, 0)); ok {
		t.Fatal("a1 should have been cleared by the new snapshot")
	}
}

func TestLoadSnapshotRejectsBadShape(t *testing.T) {
	m := NewMirror()
	if err := m.LoadSnapshot(make([][]string, 7)); err == nil {
		t.Fatal("expected error for 7-row grid")
	}
	grid := startGrid()
	grid[3] = grid[3][:7]
	if err := m.LoadSnapshot(grid); err == nil {
		t.Fatal("expected error for short row")
	}
	grid = startGrid()
	grid[0][0] = "xx"
	if err := m.LoadSnapshot(grid); err == nil {
		t.Fatal("expected error for bad symbol")
	}
}

func TestApplyMoveCapture(t *testing.T) {
	m := NewMirror()
	grid := gridFromRows([8]string{
		"....k...",
		"........",
		"........",
		"...p....",
		"....P...",
		"........",
		"........",
		"....K...",
	})
	if err := m.LoadSnapshot(grid); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	mv := Move{From: Sq(4, 3), To: Sq(3, 4)} // e4xd5
	effects := DeriveEffects(m, mv)
	m.ApplyMove(mv, effects)

	p, ok := m.Occupant(Sq(3, 4))
	if !ok || p != (Piece{Color: White, Kind: Pawn}) {
		t.Fatalf("d5 = %+v ok=%v, want white pawn", p, ok)
	}
	if _, ok := m.Occupant(Sq(4, 3)); ok {
		t.Fatal("e4 should be vacated")
	}
}

func TestApplyMoveCastleRelocatesRook(t *testing.T) {
	m := NewMirror()
	grid := gridFromRows([8]string{
		"....k...",
		"........",
		"........",
		"........",
		"........",
		"........",
		"........",
		"....K..R",
	})
	if err := m.LoadSnapshot(grid); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	mv := Move{From: Sq(4, 0), To: Sq(6, 0)} // e1g1
	effects := DeriveEffects(m, mv)
	m.ApplyMove(mv, effects)

	if p, ok := m.Occupant(Sq(6, 0)); !ok || p.Kind != King {
		t.Fatalf("g1 = %+v ok=%v, want king", p, ok)
	}
	if p, ok := m.Occupant(Sq(5, 0)); !ok || p.Kind != Rook {
		t.Fatalf("f1 = %+v ok=%v, want rook", p, ok)
	}
	if _, ok := m.Occupant(Sq(7, 0)); ok {
		t.Fatal("h1 should be vacated")
	}
}

func TestApplyMovePromotion(t *testing.T) {
	m := NewMirror()
	grid := gridFromRows([8]string{
		"....k...",
		"P.......",
		"........",
		"........",
		"........",
		"........",
		"........",
		"....K...",
	})
	if err := m.LoadSnapshot(grid); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	mv := Move{From: Sq(0, 6), To: Sq(0, 7), Promotion: Queen} // a7a8q
	effects := DeriveEffects(m, mv)
	m.ApplyMove(mv, effects)

	p, ok := m.Occupant(Sq(0, 7))
	if !ok || p != (Piece{Color: White, Kind: Queen}) {
		t.Fatalf("a8 = %+v ok=%v, want white queen", p, ok)
	}
}

func TestEntryOrder(t *testing.T) {
	m := NewMirror()
	grid := gridFromRows([8]string{
		"r...k...",
		"p.......",
		"........",
		"........",
		"........",
		"........",
		"P.......",
		"R...K...",
	})
	if err := m.LoadSnapshot(grid); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	order := m.EntryOrder()
	if len(order) != 6 {
		t.Fatalf("entry order has %d entries, want 6", len(order))
	}
	// White ascends by kind code: K(75) < P(80) < R(82). Black descends.
	wantKinds := []PieceKind{King, Pawn, Rook, Rook, Pawn, King}
	wantColors := []Color{White, White, White, Black, Black, Black}
	for i, pl := range order {
		if pl.Piece.Kind != wantKinds[i] || pl.Piece.Color != wantColors[i] {
			t.Fatalf("entry %d = %s %s, want %s %s",
				i, pl.Piece.Color, pl.Piece.Kind, wantColors[i], wantKinds[i])
		}
	}
}
