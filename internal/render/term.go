package render

import (
	"fmt"
	"time"

	termbox "github.com/nsf/termbox-go"

	"github.com/kapu/lanchess/internal/anim"
	"github.com/kapu/lanchess/internal/board"
	"github.com/kapu/lanchess/internal/discovery"
	"github.com/kapu/lanchess/internal/session"
)

// Cell geometry of one board square on the terminal grid.
const (
	cellW = 5
	cellH = 2

	originX = 2
	originY = 1

	flashDuration = 600 * time.Millisecond
)

var glyphs = map[board.Piece]rune{
	{Color: board.White, Kind: board.King}:   '♔',
	{Color: board.White, Kind: board.Queen}:  '♕',
	{Color: board.White, Kind: board.Rook}:   '♖',
	{Color: board.White, Kind: board.Bishop}: '♗',
	{Color: board.White, Kind: board.Knight}: '♘',
	{Color: board.White, Kind: board.Pawn}:   '♙',
	{Color: board.Black, Kind: board.King}:   '♚',
	{Color: board.Black, Kind: board.Queen}:  '♛',
	{Color: board.Black, Kind: board.Rook}:   '♜',
	{Color: board.Black, Kind: board.Bishop}: '♝',
	{Color: board.Black, Kind: board.Knight}: '♞',
	{Color: board.Black, Kind: board.Pawn}:   '♟',
}

type slide struct {
	from, to board.Square
	piece    board.Piece
	started  time.Time
}

// Term is the terminal rendering surface. It implements anim.Surface and is
// owned by the main event loop; no method is safe for concurrent use.
type Term struct {
	pieces  map[board.Square]board.Piece
	fading  map[board.Square]bool
	flashes map[board.Square]time.Time
	slides  []slide

	status string
}

func NewTerm() *Term {
	return &Term{
		pieces:  make(map[board.Square]board.Piece),
		fading:  make(map[board.Square]bool),
		flashes: make(map[board.Square]time.Time),
	}
}

// Init starts termbox with mouse input enabled.
func (t *Term) Init() error {
	if err := termbox.Init(); err != nil {
		return fmt.Errorf("terminal init: %w", err)
	}
	termbox.SetInputMode(termbox.InputEsc | termbox.InputMouse)
	return nil
}

// Close restores the terminal.
func (t *Term) Close() { termbox.Close() }

// SetStatus sets the one-line message under the board.
func (t *Term) SetStatus(s string) { t.status = s }

// anim.Surface

func (t *Term) SetPiece(sq board.Square, p board.Piece) { t.pieces[sq] = p }

func (t *Term) ClearSquare(sq board.Square) {
	delete(t.pieces, sq)
	delete(t.fading, sq)
}

func (t *Term) BeginFade(sq board.Square) { t.fading[sq] = true }

func (t *Term) EndFade(sq board.Square) { delete(t.fading, sq) }

func (t *Term) BeginSlide(from, to board.Square, p board.Piece) {
	t.slides = append(t.slides, slide{from: from, to: to, piece: p, started: time.Now()})
}

func (t *Term) EndSlide(from, to board.Square, p board.Piece) {
	for i, s := range t.slides {
		if s.from == from && s.to == to && s.piece == p {
			t.slides = append(t.slides[:i], t.slides[i+1:]...)
			return
		}
	}
}

func (t *Term) Flash(sq board.Square) {
	t.flashes[sq] = time.Now().Add(flashDuration)
}

var _ anim.Surface = (*Term)(nil)

// SquareAt maps a terminal mouse position to a board square.
func (t *Term) SquareAt(x, y int) (board.Square, bool) {
	col := (x - originX) / cellW
	row := (y - originY) / cellH
	if x < originX || y < originY || col < 0 || col > 7 || row < 0 || row > 7 {
		return board.Square{}, false
	}
	// Row 0 on screen is rank 8.
	return board.Sq(col, 7-row), true
}

// DrawBoard renders the board screen: squares, pieces, in-flight visuals,
// selection, flashes, and the status/prompt lines.
func (t *Term) DrawBoard(ctrl *session.Controller) {
	termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
	now := time.Now()

	for rank := 0; rank < 8; rank++ {
		for file := 0; file < 8; file++ {
			sq := board.Sq(file, rank)
			bg := squareColor(sq)
			if deadline, ok := t.flashes[sq]; ok {
				if now.Before(deadline) {
					bg = termbox.ColorRed
				} else {
					delete(t.flashes, sq)
				}
			}
			if sel, ok := ctrl.Selected(); ok && sel == sq {
				bg = termbox.ColorCyan
			}
			fg := termbox.ColorBlack
			if t.fading[sq] {
				fg = termbox.ColorDarkGray
			}
			ch := ' '
			if p, ok := t.pieces[sq]; ok {
				ch = glyphs[p]
			}
			drawSquare(sq, ch, fg, bg)
		}
	}

	// Transient clones ride on top, linearly interpolated over the slide.
	for _, s := range t.slides {
		progress := float64(now.Sub(s.started)) / float64(anim.SlideDuration)
		if progress > 1 {
			progress = 1
		}
		fx, fy := squareCenter(s.from)
		tx, ty := squareCenter(s.to)
		x := fx + int(float64(tx-fx)*progress)
		y := fy + int(float64(ty-fy)*progress)
		termbox.SetCell(x, y, glyphs[s.piece], termbox.ColorWhite|termbox.AttrBold, termbox.ColorDefault)
	}

	t.drawFrame()
	t.drawStatus(ctrl)
	termbox.Flush()
}

func (t *Term) drawFrame() {
	for file := 0; file < 8; file++ {
		x := originX + file*cellW + cellW/2
		termbox.SetCell(x, originY+8*cellH, rune('a'+file), termbox.ColorWhite, termbox.ColorDefault)
	}
	for rank := 0; rank < 8; rank++ {
		y := originY + (7-rank)*cellH + cellH/2
		termbox.SetCell(originX-2, y, rune('1'+rank), termbox.ColorWhite, termbox.ColorDefault)
	}
}

func (t *Term) drawStatus(ctrl *session.Controller) {
	y := originY + 8*cellH + 2
	stats := ctrl.Mirror().Stats()

	line := fmt.Sprintf("turn: %s", ctrl.ActiveColor())
	if stats.InCheck {
		line += "  check!"
	}
	switch ctrl.Phase() {
	case session.PhaseGameOver:
		switch {
		case stats.Checkmate:
			line = fmt.Sprintf("checkmate - %s wins  [r]eset  [u]ndo", stats.Winner)
		case stats.Draw:
			line = "draw  [r]eset  [u]ndo"
		}
	case session.PhasePromotion:
		line = "promote to: [q]ueen [r]ook [b]ishop k[n]ight"
	}
	printLine(originX, y, line)
	printLine(originX, y+1, fmt.Sprintf("castling %s  ep %s  half %d  full %d",
		stats.CastlingRights, stats.EnPassantTarget, stats.HalfmoveClock, stats.FullmoveNumber))
	if t.status != "" {
		printLine(originX, y+2, t.status)
	}
}

// DrawBrowser renders the session-browser screen.
func (t *Term) DrawBrowser(local *discovery.Descriptor, others []discovery.Descriptor, cursor int, message string) {
	termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
	printLine(2, 1, "LAN sessions  [enter] join  [h]ost  [q]uit")
	y := 3
	if local != nil {
		printLine(2, y, fmt.Sprintf("* %s (%s) hosted here, waiting for a peer", local.Name, local.HostColor))
		y += 2
	}
	if len(others) == 0 {
		printLine(2, y, "no sessions discovered yet...")
	}
	for i, d := range others {
		marker := "  "
		if i == cursor {
			marker = "> "
		}
		printLine(2, y+i, fmt.Sprintf("%s%s @ %s (host plays %s)", marker, d.Name, d.Addr, d.HostColor))
	}
	if message != "" {
		printLine(2, y+len(others)+2, message)
	}
	termbox.Flush()
}

func squareColor(sq board.Square) termbox.Attribute {
	if (sq.File+sq.Rank)%2 == 0 {
		return termbox.ColorGreen
	}
	return termbox.ColorYellow
}

func drawSquare(sq board.Square, ch rune, fg, bg termbox.Attribute) {
	x0 := originX + sq.File*cellW
	y0 := originY + (7-sq.Rank)*cellH
	for dy := 0; dy < cellH; dy++ {
		for dx := 0; dx < cellW; dx++ {
			c := ' '
			if dx == cellW/2 && dy == cellH/2 {
				c = ch
			}
			termbox.SetCell(x0+dx, y0+dy, c, fg, bg)
		}
	}
}

func squareCenter(sq board.Square) (int, int) {
	return originX + sq.File*cellW + cellW/2, originY + (7-sq.Rank)*cellH + cellH/2
}

func printLine(x, y int, s string) {
	for i, r := range s {
		termbox.SetCell(x+i, y, r, termbox.ColorWhite, termbox.ColorDefault)
	}
}
