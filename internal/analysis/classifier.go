// Package analysis turns raw engine traces into classified moves and
// folds them into per-session statistics.
package analysis

import (
	"fmt"

	"github.com/park285/chess-daily-coach/internal/domain"
)

// Thresholds are inclusive centipawn-loss upper bounds per label; any
// loss above MistakeCP (or a missed forced mate) is a blunder. They
// must be strictly increasing so classification stays monotonic and
// total.
type Thresholds struct {
	BestCP       int
	ExcellentCP  int
	GoodCP       int
	InaccuracyCP int
	MistakeCP    int
}

func DefaultThresholds() Thresholds {
	return Thresholds{BestCP: 5, ExcellentCP: 20, GoodCP: 50, InaccuracyCP: 100, MistakeCP: 300}
}

type PhaseConfig struct {
	OpeningPlies       int
	EndgameMaterial    int
	EndgameFallbackPly int
}

func DefaultPhaseConfig() PhaseConfig {
	return PhaseConfig{OpeningPlies: 20, EndgameMaterial: 13, EndgameFallbackPly: 60}
}

type Config struct {
	Thresholds      Thresholds
	Phase           PhaseConfig
	BookExemptPlies int
}

func DefaultConfig() Config {
	return Config{Thresholds: DefaultThresholds(), Phase: DefaultPhaseConfig(), BookExemptPlies: 2}
}

// Classify maps the score delta across one move onto a quality label.
// prev is the evaluation before the move, curr after it, both from
// White's perspective. Pure and deterministic: identical inputs always
// yield identical output. ok is false when either side of the delta is
// unavailable; the ply is then unclassifiable.
func Classify(prev, curr domain.Score, mover domain.Color, t Thresholds) (label domain.Classification, lossCP int, ok bool) {
	if prev.Unavailable || curr.Unavailable {
		return 0, 0, false
	}

	loss := prev.Normalized() - curr.Normalized()
	if mover == domain.Black {
		loss = -loss
	}
	if loss < 0 {
		loss = 0
	}

	// A forced mate thrown away is a blunder regardless of how much
	// centipawn advantage is left.
	if missedMate(prev, curr, mover) {
		return domain.ClassifiedBlunder, loss, true
	}

	switch {
	case loss <= t.BestCP:
		return domain.ClassifiedBest, loss, true
	case loss <= t.ExcellentCP:
		return domain.ClassifiedExcellent, loss, true
	case loss <= t.GoodCP:
		return domain.ClassifiedGood, loss, true
	case loss <= t.InaccuracyCP:
		return domain.ClassifiedInaccuracy, loss, true
	case loss <= t.MistakeCP:
		return domain.ClassifiedMistake, loss, true
	default:
		return domain.ClassifiedBlunder, loss, true
	}
}

func missedMate(prev, curr domain.Score, mover domain.Color) bool {
	mateFor := func(s domain.Score) bool {
		if !s.IsMate() {
			return false
		}
		if mover == domain.White {
			return s.Mate > 0
		}
		return s.Mate < 0
	}
	return mateFor(prev) && !mateFor(curr)
}

// PhaseFor tags a ply with its game phase: ply count decides the
// opening, remaining non-pawn material decides the endgame, with a
// ply-count fallback when material is unknown (negative).
func PhaseFor(ply, materialAfter int, cfg PhaseConfig) domain.Phase {
	if ply <= cfg.OpeningPlies {
		return domain.PhaseOpening
	}
	if materialAfter >= 0 {
		if materialAfter <= cfg.EndgameMaterial {
			return domain.PhaseEndgame
		}
		return domain.PhaseMiddlegame
	}
	if cfg.EndgameFallbackPly > 0 && ply >= cfg.EndgameFallbackPly {
		return domain.PhaseEndgame
	}
	return domain.PhaseMiddlegame
}

// ClassifyGame labels every ply of one evaluated game, in ply order.
// The first BookExemptPlies plies count as book moves and classify as
// best; a ply with no usable delta is marked skipped. A trace that
// does not line up with the game is an internal invariant violation
// and aborts the run.
func ClassifyGame(game domain.Game, trace []domain.EvaluatedMove, cfg Config) ([]domain.ClassifiedMove, error) {
	if len(trace) != game.Plies() {
		return nil, &domain.ClassificationError{
			Detail: fmt.Sprintf("game %s: trace covers %d plies, game has %d", game.ID, len(trace), game.Plies()),
		}
	}

	out := make([]domain.ClassifiedMove, 0, len(trace))
	for i, ev := range trace {
		if ev.Ply != i+1 {
			return nil, &domain.ClassificationError{
				Detail: fmt.Sprintf("game %s: trace out of ply order at index %d (ply %d)", game.ID, i, ev.Ply),
			}
		}

		cm := domain.ClassifiedMove{
			EvaluatedMove: ev,
			Phase:         PhaseFor(ev.Ply, ev.MaterialCount, cfg.Phase),
		}

		switch {
		case ev.Ply <= cfg.BookExemptPlies:
			if ev.Score.Unavailable {
				cm.Skipped = true
			} else {
				cm.Label = domain.ClassifiedBest
			}
		case i == 0:
			// No prior score to compare against.
			cm.Skipped = true
		default:
			label, loss, ok := Classify(trace[i-1].Score, ev.Score, ev.Mover, cfg.Thresholds)
			if !ok {
				cm.Skipped = true
			} else {
				cm.Label = label
				cm.LossCP = loss
			}
		}
		out = append(out, cm)
	}
	return out, nil
}
