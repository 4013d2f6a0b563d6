// Package boardimg renders a chess position to PNG for attaching to a
// report message, typically the position where the day's worst blunder
// was played.
package boardimg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"math"

	chesslib "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/park285/chess-daily-coach/internal/domain"
)

const (
	squareSize    = 64
	boardSquares  = 8
	boardSize     = squareSize * boardSquares
	sideMargin    = 28
	captionHeight = 40
	bottomMargin  = 28
)

var (
	lightSquare     = color.RGBA{233, 207, 163, 255}
	darkSquare      = color.RGBA{187, 136, 96, 255}
	playedFill      = color.NRGBA{R: 219, G: 80, B: 74, A: 110}
	bestArrowColor  = color.NRGBA{R: 76, G: 175, B: 110, A: 190}
	captionBarColor = color.NRGBA{R: 28, G: 31, B: 46, A: 255}
	captionText     = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	coordinateText  = color.NRGBA{R: 60, G: 44, B: 28, A: 255}
	backgroundColor = color.RGBA{244, 240, 232, 255}
)

type Move struct {
	From chesslib.Square
	To   chesslib.Square
}

type Options struct {
	// Played marks the move actually made; its squares get a red tint.
	Played *Move
	// Best draws an arrow for the engine's preferred move.
	Best *Move
	// Flipped renders from Black's point of view.
	Flipped bool
	Caption string
}

// RenderPNG draws the position with overlays and encodes it as PNG.
func RenderPNG(ctx context.Context, board *chesslib.Board, opts Options) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	totalWidth := boardSize + sideMargin*2
	totalHeight := boardSize + captionHeight + bottomMargin
	origin := image.Point{X: sideMargin, Y: captionHeight}

	img := image.NewRGBA(image.Rect(0, 0, totalWidth, totalHeight))
	fillRect(img, img.Bounds(), backgroundColor, false)

	drawCaption(img, opts.Caption, totalWidth)
	drawSquares(img, origin, opts.Flipped)
	if opts.Played != nil {
		drawSquareOverlay(img, opts.Played.From, origin, opts.Flipped, playedFill)
		drawSquareOverlay(img, opts.Played.To, origin, opts.Flipped, playedFill)
	}
	if err := drawPieces(img, board, origin, opts.Flipped); err != nil {
		return nil, err
	}
	if opts.Best != nil {
		drawArrow(img, opts.Best.From, opts.Best.To, origin, opts.Flipped, bestArrowColor)
	}
	drawCoordinates(img, origin, opts.Flipped)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// BlunderBoard replays a game up to the moment just before the given
// blunder and returns the board with render options marking the played
// and preferred moves.
func BlunderBoard(game domain.Game, b domain.Blunder) (*chesslib.Board, Options, error) {
	if b.Ply < 1 || b.Ply > len(game.MovesUCI) {
		return nil, Options{}, fmt.Errorf("blunder ply %d outside game %s", b.Ply, game.ID)
	}

	g := chesslib.NewGame()
	for _, mv := range game.MovesUCI[:b.Ply-1] {
		if err := g.PushNotationMove(mv, chesslib.UCINotation{}, nil); err != nil {
			return nil, Options{}, fmt.Errorf("replay game %s: apply %q: %w", game.ID, mv, err)
		}
	}

	opts := Options{Flipped: game.Color == domain.Black}
	if mv, err := parseUCISquares(b.MoveUCI); err == nil {
		opts.Played = &mv
	}
	if mv, err := parseUCISquares(b.BestMoveUCI); err == nil {
		opts.Best = &mv
	}
	move := b.MoveSAN
	if move == "" {
		move = b.MoveUCI
	}
	opts.Caption = fmt.Sprintf("Blunder: %s (lost %.1f pawns)", move, float64(b.SwingCP)/100)

	return g.Position().Board(), opts, nil
}

func parseUCISquares(uci string) (Move, error) {
	if len(uci) < 4 {
		return Move{}, fmt.Errorf("short uci move %q", uci)
	}
	from, err := squareAt(uci[0], uci[1])
	if err != nil {
		return Move{}, err
	}
	to, err := squareAt(uci[2], uci[3])
	if err != nil {
		return Move{}, err
	}
	return Move{From: from, To: to}, nil
}

func squareAt(fileCh, rankCh byte) (chesslib.Square, error) {
	if fileCh < 'a' || fileCh > 'h' || rankCh < '1' || rankCh > '8' {
		return 0, fmt.Errorf("bad square %c%c", fileCh, rankCh)
	}
	return chesslib.NewSquare(chesslib.File(fileCh-'a'), chesslib.Rank(rankCh-'1')), nil
}

func drawCaption(img *image.RGBA, caption string, totalWidth int) {
	bar := image.Rect(0, 0, totalWidth, captionHeight-8)
	fillRect(img, bar, captionBarColor, false)
	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13}
	drawCenteredString(drawer, bar, caption, captionText)
}

func drawSquares(img *image.RGBA, origin image.Point, flipped bool) {
	for f := 0; f < boardSquares; f++ {
		for r := 0; r < boardSquares; r++ {
			sq := chesslib.NewSquare(chesslib.File(f), chesslib.Rank(r))
			fillRect(img, squareRect(sq, origin, flipped), squareColor(sq), false)
		}
	}
}

func drawPieces(img *image.RGBA, board *chesslib.Board, origin image.Point, flipped bool) error {
	for sq, piece := range board.SquareMap() {
		if piece == chesslib.NoPiece {
			continue
		}
		glyph, err := renderPieceImage(piece, squareSize)
		if err != nil {
			return err
		}
		imagedraw.Draw(img, squareRect(sq, origin, flipped), glyph, image.Point{}, imagedraw.Over)
	}
	return nil
}

func drawSquareOverlay(img *image.RGBA, sq chesslib.Square, origin image.Point, flipped bool, clr color.Color) {
	fillRect(img, squareRect(sq, origin, flipped), clr, true)
}

func drawArrow(img *image.RGBA, from, to chesslib.Square, origin image.Point, flipped bool, clr color.Color) {
	if from == to {
		return
	}
	startRect := squareRect(from, origin, flipped)
	endRect := squareRect(to, origin, flipped)
	start := pointF{
		X: float64(startRect.Min.X + squareSize/2),
		Y: float64(startRect.Min.Y + squareSize/2),
	}
	end := pointF{
		X: float64(endRect.Min.X + squareSize/2),
		Y: float64(endRect.Min.Y + squareSize/2),
	}

	dx := end.X - start.X
	dy := end.Y - start.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	dirX, dirY := dx/length, dy/length
	perpX, perpY := -dirY, dirX

	baseLength := length - float64(squareSize)*0.45
	if baseLength < float64(squareSize)*0.35 {
		baseLength = length * 0.6
	}
	halfWidth := float64(squareSize) * 0.14
	headWidth := float64(squareSize) * 0.3

	baseX := start.X + dirX*baseLength
	baseY := start.Y + dirY*baseLength

	fillQuad(img,
		pointF{X: start.X - perpX*halfWidth, Y: start.Y - perpY*halfWidth},
		pointF{X: start.X + perpX*halfWidth, Y: start.Y + perpY*halfWidth},
		pointF{X: baseX + perpX*halfWidth, Y: baseY + perpY*halfWidth},
		pointF{X: baseX - perpX*halfWidth, Y: baseY - perpY*halfWidth},
		clr)

	fillTriangleF(img,
		end,
		pointF{X: baseX - perpX*headWidth/2, Y: baseY - perpY*headWidth/2},
		pointF{X: baseX + perpX*headWidth/2, Y: baseY + perpY*headWidth/2},
		clr)
}

func drawCoordinates(img *image.RGBA, origin image.Point, flipped bool) {
	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13}
	drawer.Src = image.NewUniform(coordinateText)
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()

	for i := 0; i < boardSquares; i++ {
		rank := i
		file := i
		if flipped {
			rank = boardSquares - 1 - i
			file = boardSquares - 1 - i
		}

		// Rank labels down the left edge, top row first.
		rowCenter := origin.Y + (boardSquares-1-i)*squareSize + squareSize/2
		drawCenteredText(drawer, string(rune('1'+rank)), origin.X-sideMargin/2, rowCenter+ascent/2)

		// File labels along the bottom edge.
		colCenter := origin.X + i*squareSize + squareSize/2
		drawCenteredText(drawer, string(rune('a'+file)), colCenter, origin.Y+boardSize+ascent+6)
	}
}

func squareRect(sq chesslib.Square, origin image.Point, flipped bool) image.Rectangle {
	col := int(sq.File())
	row := 7 - int(sq.Rank())
	if flipped {
		col = 7 - col
		row = 7 - row
	}
	x := origin.X + col*squareSize
	y := origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func squareColor(sq chesslib.Square) color.Color {
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return darkSquare
	}
	return lightSquare
}
