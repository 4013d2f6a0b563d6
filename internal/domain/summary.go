package domain

import "time"

type OpeningRecord struct {
	Name   string
	ECO    string
	Games  int
	Wins   int
	Losses int
	Draws  int
}

// Blunder locates one large score swing inside a game.
type Blunder struct {
	GameID      string
	Ply         int
	MoveSAN     string
	MoveUCI     string
	BestMoveUCI string
	SwingCP     int // centipawn loss for the mover, always positive
}

// SessionSummary is the aggregate over every game analyzed in one run.
// It is the terminal analysis artifact the report is synthesized from.
type SessionSummary struct {
	Username string
	From     time.Time
	To       time.Time

	GamesAnalyzed int
	// UnscoredGames had zero classifiable plies (engine unavailable for
	// the whole game); counted above, excluded from rate figures.
	UnscoredGames int
	// ExcludedGames were dropped before evaluation finished (run
	// timeout); not part of GamesAnalyzed.
	ExcludedGames int

	Wins   int
	Losses int
	Draws  int

	Counts          map[Classification]int
	PhaseMistakes   map[Phase]int // mistakes + blunders per phase
	ClassifiedPlies int
	SkippedPlies    int

	Openings      []OpeningRecord // frequency desc, then name asc
	WorstBlunders []Blunder       // swing desc, capped at top-N
}

// ClassifiedRate returns the share of classified plies carrying the
// given label, or 0 when nothing was classified.
func (s SessionSummary) ClassifiedRate(label Classification) float64 {
	if s.ClassifiedPlies == 0 {
		return 0
	}
	return float64(s.Counts[label]) / float64(s.ClassifiedPlies)
}
