package engine

import (
	"github.com/park285/chess-daily-coach/internal/domain"
	"github.com/park285/chess-daily-coach/internal/engine/uci"
)

// NormalizeScore converts an engine response, which scores from the
// side-to-move perspective, into a Score from White's perspective.
// Mate distances keep their own encoding so they outrank any finite
// centipawn value downstream.
func NormalizeScore(resp uci.SearchResponse, sideToMove domain.Color) domain.Score {
	if resp.ScoreMate != 0 {
		mate := resp.ScoreMate
		if sideToMove == domain.Black {
			mate = -mate
		}
		return domain.MateScore(mate)
	}
	cp := resp.ScoreCP
	if sideToMove == domain.Black {
		cp = -cp
	}
	return domain.CentipawnScore(cp)
}

// sideToMoveAfter returns the side to move once the first `plies`
// half-moves of a game have been played.
func sideToMoveAfter(plies int) domain.Color {
	if plies%2 == 0 {
		return domain.White
	}
	return domain.Black
}
