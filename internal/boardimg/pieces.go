package boardimg

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	chesslib "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

type pieceCacheKey struct {
	piece chesslib.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

// renderPieceImage rasterizes one piece glyph at the given square size.
// Glyphs are generated SVG silhouettes on a 45x45 viewbox, cached per
// piece and size.
func renderPieceImage(piece chesslib.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	svg := pieceSVG(piece)
	icon, err := oksvg.ReadIconStream(bytes.NewReader([]byte(svg)))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}

func pieceSVG(piece chesslib.Piece) string {
	fill, stroke := "#f6f6f4", "#2b2b2b"
	if piece.Color() == chesslib.Black {
		fill, stroke = "#2b2b2b", "#0e0e0e"
	}
	return fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45"><g fill="%s" stroke="%s" stroke-width="1.5" stroke-linejoin="round">%s</g></svg>`,
		fill, stroke, glyphBody(piece.Type()))
}

// glyphBody returns flat silhouettes rather than full staunton
// artwork; at square resolution the outline is what reads.
func glyphBody(t chesslib.PieceType) string {
	switch t {
	case chesslib.King:
		return `<rect x="20.5" y="5" width="4" height="10" rx="1"/>` +
			`<rect x="17" y="8" width="11" height="4" rx="1"/>` +
			`<path d="M 13 38 C 12 26 16 20 22.5 15 C 29 20 33 26 32 38 Z"/>` +
			`<rect x="10" y="36" width="25" height="5" rx="2"/>`
	case chesslib.Queen:
		return `<polygon points="11,20 15,12 19,19 22.5,10 26,19 30,12 34,20 31,30 14,30"/>` +
			`<circle cx="11" cy="11" r="2.2"/><circle cx="22.5" cy="8" r="2.2"/><circle cx="34" cy="11" r="2.2"/>` +
			`<path d="M 14 30 L 13 38 H 32 L 31 30 Z"/>` +
			`<rect x="10" y="36" width="25" height="5" rx="2"/>`
	case chesslib.Rook:
		return `<path d="M 13 10 H 17 V 13 H 20 V 10 H 25 V 13 H 28 V 10 H 32 V 17 H 13 Z"/>` +
			`<path d="M 15 17 L 14 36 H 31 L 30 17 Z"/>` +
			`<rect x="11" y="35" width="23" height="6" rx="2"/>`
	case chesslib.Bishop:
		return `<circle cx="22.5" cy="9" r="2.5"/>` +
			`<path d="M 22.5 12 C 28 16 30 21 30 26 C 30 31 27 34 22.5 34 C 18 34 15 31 15 26 C 15 21 17 16 22.5 12 Z"/>` +
			`<path d="M 22.5 17 L 26 23 L 22.5 29" fill="none"/>` +
			`<rect x="12" y="35" width="21" height="5" rx="2"/>`
	case chesslib.Knight:
		return `<path d="M 14 38 C 14 28 16 23 20 19 L 15 21 C 13 21 12 18 14 16 L 22 9 C 28 9 32 14 32 22 L 32 38 Z"/>` +
			`<rect x="11" y="36" width="24" height="5" rx="2"/>`
	default: // pawn
		return `<circle cx="22.5" cy="13" r="5.5"/>` +
			`<path d="M 17 37 C 17 28 19 24 22.5 20 C 26 24 28 28 28 37 Z"/>` +
			`<rect x="13" y="35" width="19" height="5" rx="2"/>`
	}
}
