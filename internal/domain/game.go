package domain

import "time"

type Color int

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// MoverAt returns the side that played the given 1-based ply.
func MoverAt(ply int) Color {
	if ply%2 == 1 {
		return White
	}
	return Black
}

type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultDraw Result = "draw"
)

// Game is one finished game as normalized from the archive service.
// Immutable once fetched.
type Game struct {
	ID             string
	Color          Color
	Opponent       string
	OpponentRating int
	TimeControl    string
	TimeClass      string
	MovesUCI       []string
	MovesSAN       []string
	Result         Result
	EndReason      string
	EndedAt        time.Time
}

func (g Game) Plies() int { return len(g.MovesUCI) }
