package domain

import (
	"fmt"
	"time"
)

const (
	// mateScale anchors mate-distance scores above every finite
	// centipawn value; shorter mates rank higher.
	mateScale = 32000
	cpClamp   = 29000
)

// Score is one engine evaluation, always from White's perspective.
// Exactly one of the centipawn and mate encodings is meaningful; a
// Score with Unavailable set carries no evaluation at all.
type Score struct {
	CP          int
	Mate        int // moves until mate, signed; 0 means no forced mate
	Unavailable bool
}

func CentipawnScore(cp int) Score { return Score{CP: cp} }

func MateScore(in int) Score { return Score{Mate: in} }

func UnavailableScore() Score { return Score{Unavailable: true} }

func (s Score) IsMate() bool { return !s.Unavailable && s.Mate != 0 }

// Normalized collapses both encodings onto a single signed scale so
// that scores compare side-agnostically: mate-in-N maps to
// ±(mateScale-N) and dominates any finite centipawn value.
func (s Score) Normalized() int {
	if s.Unavailable {
		return 0
	}
	if s.Mate > 0 {
		return mateScale - s.Mate
	}
	if s.Mate < 0 {
		return -mateScale - s.Mate
	}
	cp := s.CP
	if cp > cpClamp {
		cp = cpClamp
	}
	if cp < -cpClamp {
		cp = -cpClamp
	}
	return cp
}

func (s Score) String() string {
	if s.Unavailable {
		return "?"
	}
	if s.Mate != 0 {
		return fmt.Sprintf("#%d", s.Mate)
	}
	return fmt.Sprintf("%+.2f", float64(s.CP)/100)
}

// EvaluatedMove is the engine trace for one ply: the score of the
// position after the move was played, White's perspective.
type EvaluatedMove struct {
	Ply         int // 1-based
	MoveUCI     string
	MoveSAN     string
	Mover       Color
	Score       Score
	BestMoveUCI string
	Depth       int
	SearchTime  time.Duration
	// MaterialCount is the combined non-pawn, non-king material (in
	// pawns) left on the board after the move; used for phase tagging.
	MaterialCount int
}

type Classification int

const (
	ClassifiedBest Classification = iota
	ClassifiedExcellent
	ClassifiedGood
	ClassifiedInaccuracy
	ClassifiedMistake
	ClassifiedBlunder
)

var classificationNames = [...]string{"best", "excellent", "good", "inaccuracy", "mistake", "blunder"}

func (c Classification) String() string {
	if c < ClassifiedBest || c > ClassifiedBlunder {
		return "unknown"
	}
	return classificationNames[c]
}

type Phase int

const (
	PhaseOpening Phase = iota
	PhaseMiddlegame
	PhaseEndgame
)

var phaseNames = [...]string{"opening", "middlegame", "endgame"}

func (p Phase) String() string {
	if p < PhaseOpening || p > PhaseEndgame {
		return "unknown"
	}
	return phaseNames[p]
}

// ClassifiedMove pairs an engine trace entry with its quality label.
// Skipped moves carry no label: an unavailable evaluation on either
// side of the delta makes the ply unclassifiable.
type ClassifiedMove struct {
	EvaluatedMove
	Label   Classification
	Phase   Phase
	LossCP  int
	Skipped bool
}
