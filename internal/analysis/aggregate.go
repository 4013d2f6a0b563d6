package analysis

import (
	"sort"
	"time"

	"github.com/park285/chess-daily-coach/internal/domain"
)

// Aggregate folds per-game classifications into one session summary.
// The fold is order independent: all ranked outputs are sorted by
// explicit deterministic keys, so shuffling the input games never
// changes the result. Games present in the input but absent from the
// classified map were dropped mid-run and are counted as excluded.
func Aggregate(username string, from, to time.Time, games []domain.Game, classified map[string][]domain.ClassifiedMove, topBlunders int) domain.SessionSummary {
	sum := domain.SessionSummary{
		Username:      username,
		From:          from,
		To:            to,
		Counts:        make(map[domain.Classification]int),
		PhaseMistakes: make(map[domain.Phase]int),
	}

	openings := make(map[string]*domain.OpeningRecord)
	var blunders []domain.Blunder

	for _, g := range games {
		moves, ok := classified[g.ID]
		if !ok {
			sum.ExcludedGames++
			continue
		}
		sum.GamesAnalyzed++

		switch g.Result {
		case domain.ResultWin:
			sum.Wins++
		case domain.ResultLoss:
			sum.Losses++
		case domain.ResultDraw:
			sum.Draws++
		}

		name, eco := IdentifyOpening(g.MovesUCI)
		key := eco + "|" + name
		rec, found := openings[key]
		if !found {
			rec = &domain.OpeningRecord{Name: name, ECO: eco}
			openings[key] = rec
		}
		rec.Games++
		switch g.Result {
		case domain.ResultWin:
			rec.Wins++
		case domain.ResultLoss:
			rec.Losses++
		case domain.ResultDraw:
			rec.Draws++
		}

		scored := 0
		for _, cm := range moves {
			if cm.Skipped {
				sum.SkippedPlies++
				continue
			}
			// Only the user's own moves feed the statistics; the
			// opponent's mistakes are not coaching material.
			if cm.Mover != g.Color {
				continue
			}
			scored++
			sum.ClassifiedPlies++
			sum.Counts[cm.Label]++
			if cm.Label >= domain.ClassifiedInaccuracy {
				sum.PhaseMistakes[cm.Phase]++
			}
			if cm.Label == domain.ClassifiedBlunder {
				blunders = append(blunders, domain.Blunder{
					GameID:      g.ID,
					Ply:         cm.Ply,
					MoveSAN:     cm.MoveSAN,
					MoveUCI:     cm.MoveUCI,
					BestMoveUCI: cm.BestMoveUCI,
					SwingCP:     cm.LossCP,
				})
			}
		}
		if scored == 0 {
			sum.UnscoredGames++
		}
	}

	sum.Openings = make([]domain.OpeningRecord, 0, len(openings))
	for _, rec := range openings {
		sum.Openings = append(sum.Openings, *rec)
	}
	sort.Slice(sum.Openings, func(i, j int) bool {
		a, b := sum.Openings[i], sum.Openings[j]
		if a.Games != b.Games {
			return a.Games > b.Games
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ECO < b.ECO
	})

	sort.Slice(blunders, func(i, j int) bool {
		a, b := blunders[i], blunders[j]
		if a.SwingCP != b.SwingCP {
			return a.SwingCP > b.SwingCP
		}
		if a.GameID != b.GameID {
			return a.GameID < b.GameID
		}
		return a.Ply < b.Ply
	})
	if topBlunders > 0 && len(blunders) > topBlunders {
		blunders = blunders[:topBlunders]
	}
	sum.WorstBlunders = blunders
	return sum
}
