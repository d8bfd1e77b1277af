package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/kapu/lanchess/internal/board"
)

const (
	snapshotSquare = 48
	lightColor     = "#f0d9b5"
	darkColor      = "#b58863"
)

// RenderPNG exports the mirror as a PNG image: the checkerboard is built as
// SVG and rasterized, piece symbols are stamped on top. Deterministic for a
// given mirror.
func RenderPNG(m *board.Mirror) ([]byte, error) {
	size := snapshotSquare * 8

	icon, err := oksvg.ReadIconStream(strings.NewReader(boardSVG(snapshotSquare)))
	if err != nil {
		return nil, fmt.Errorf("parse board svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	for _, pl := range m.Occupied() {
		stampPiece(img, pl)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveSnapshot writes the exported board under dir and returns the path.
func SaveSnapshot(dir string, m *board.Mirror) (string, error) {
	raw, err := RenderPNG(m)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("board-%s.png", uuid.NewString()))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// boardSVG builds the 8x8 checkerboard document. Row 0 is rank 8.
func boardSVG(squareSize int) string {
	size := squareSize * 8
	var b strings.Builder
	fmt.Fprintf(&b,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		size, size, size, size)
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			fill := lightColor
			if (row+col)%2 == 1 {
				fill = darkColor
			}
			fmt.Fprintf(&b,
				`<rect x="%d" y="%d" width="%d" height="%d" fill="%s" />`,
				col*squareSize, row*squareSize, squareSize, squareSize, fill)
		}
	}
	b.WriteString("</svg>")
	return b.String()
}

func stampPiece(img *image.RGBA, pl board.Placement) {
	col := pl.Square.File
	row := 7 - pl.Square.Rank

	fg := color.RGBA{255, 255, 255, 255}
	outline := color.RGBA{0, 0, 0, 255}
	if pl.Piece.Color == board.Black {
		fg, outline = outline, fg
	}

	label := pl.Piece.Kind.String()
	face := basicfont.Face7x13
	x := col*snapshotSquare + snapshotSquare/2 - face.Advance/2
	y := row*snapshotSquare + snapshotSquare/2 + face.Height/2

	// Single-pixel offset stamp keeps the letter readable on both square
	// colors without a real font asset.
	for _, off := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		d := font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(outline),
			Face: face,
			Dot:  fixed.P(x+off[0], y+off[1]),
		}
		d.DrawString(label)
	}
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
}
