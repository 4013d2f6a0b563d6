// Package state persists the analysis watermark across runs so the
// pipeline does not re-analyze games it already reported on.
package state

import (
	"context"
	"time"

	"github.com/park285/chess-daily-coach/internal/domain"
)

// Watermark marks the most recently analyzed game. SeenIDs holds the
// ids of games that ended exactly at LastEndTime, so runs triggered
// mid-second do not double-count ties.
type Watermark struct {
	LastEndTime time.Time `json:"last_end_time"`
	SeenIDs     []string  `json:"seen_ids,omitempty"`
}

// Seen reports whether a game with the given id and end time was
// already covered by this watermark.
func (w *Watermark) Seen(id string, endedAt time.Time) bool {
	if w == nil || w.LastEndTime.IsZero() {
		return false
	}
	if endedAt.Before(w.LastEndTime) {
		return true
	}
	if endedAt.After(w.LastEndTime) {
		return false
	}
	for _, seen := range w.SeenIDs {
		if seen == id {
			return true
		}
	}
	return false
}

// Advance folds freshly analyzed games into the watermark. Games older
// than the current mark leave it untouched.
func (w Watermark) Advance(games []domain.Game) Watermark {
	next := Watermark{LastEndTime: w.LastEndTime, SeenIDs: append([]string(nil), w.SeenIDs...)}
	for _, g := range games {
		switch {
		case g.EndedAt.After(next.LastEndTime):
			next.LastEndTime = g.EndedAt
			next.SeenIDs = []string{g.ID}
		case g.EndedAt.Equal(next.LastEndTime):
			next.SeenIDs = append(next.SeenIDs, g.ID)
		}
	}
	return next
}

// Store loads and saves the watermark. Load returns nil without error
// when no watermark has been written yet.
type Store interface {
	Load(ctx context.Context) (*Watermark, error)
	Save(ctx context.Context, wm Watermark) error
}
