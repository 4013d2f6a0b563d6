package report

import (
	"strings"
	"testing"
	"time"

	"github.com/park285/chess-daily-coach/internal/domain"
	"github.com/park285/chess-daily-coach/internal/report/msgcat"
)

func newTestSynthesizer(t *testing.T) *Synthesizer {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return NewSynthesizer(cat)
}

func baseSummary() domain.SessionSummary {
	return domain.SessionSummary{
		Username:        "coach",
		From:            time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC),
		To:              time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC),
		GamesAnalyzed:   3,
		Wins:            1,
		Losses:          2,
		ClassifiedPlies: 100,
		Counts: map[domain.Classification]int{
			domain.ClassifiedBest:      60,
			domain.ClassifiedExcellent: 20,
			domain.ClassifiedGood:      12,
			domain.ClassifiedMistake:   5,
			domain.ClassifiedBlunder:   3,
		},
		PhaseMistakes: map[domain.Phase]int{domain.PhaseMiddlegame: 5, domain.PhaseEndgame: 3},
		Openings: []domain.OpeningRecord{
			{Name: "Ruy Lopez", ECO: "C70", Games: 2, Wins: 1, Losses: 1},
			{Name: "Caro-Kann Defense", ECO: "B12", Games: 1, Losses: 1},
		},
		WorstBlunders: []domain.Blunder{
			{GameID: "g7", Ply: 23, MoveSAN: "Qxb7", MoveUCI: "d5b7", BestMoveUCI: "d5e4", SwingCP: 450},
		},
	}
}

func TestSynthesizeFullReport(t *testing.T) {
	s := newTestSynthesizer(t)
	rep := s.Synthesize(baseSummary(), 24*time.Hour)
	text := rep.Render()

	for _, want := range []string{
		"coach",
		"2026-03-02",
		"3 games analyzed",
		"1W / 2L / 0D",
		"Ruy Lopez (C70): 2 games",
		"Caro-Kann Defense (B12): 1 game,",
		"Qxb7",
		"4.5 pawns",
		"d5e4",
		"Middlegame: 5 mistakes",
		"Endgame: 3 mistakes",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("report missing %q:\n%s", want, text)
		}
	}

	// A big score swing against the user must surface as a key mistake.
	if !strings.Contains(text, "12.") {
		t.Fatalf("blunder at ply 23 not rendered as move 12:\n%s", text)
	}
}

func TestSynthesizeDeterministic(t *testing.T) {
	s := newTestSynthesizer(t)
	first := s.Synthesize(baseSummary(), 24*time.Hour).Render()
	for i := 0; i < 5; i++ {
		if got := s.Synthesize(baseSummary(), 24*time.Hour).Render(); got != first {
			t.Fatalf("render %d differs:\n%s", i, got)
		}
	}
}

func TestSynthesizeEmptySession(t *testing.T) {
	s := newTestSynthesizer(t)
	sum := domain.SessionSummary{Username: "coach", To: time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)}
	rep := s.Synthesize(sum, 24*time.Hour)
	if rep.Empty() {
		t.Fatal("empty session produced an empty report")
	}
	text := rep.Render()
	if !strings.Contains(text, "No new games for coach in the last 24h") {
		t.Fatalf("missing empty-session message:\n%s", text)
	}
	if strings.Contains(text, "Tip of the day") {
		t.Fatalf("tips rendered with no games:\n%s", text)
	}
}

func TestSynthesizeDegradationNotes(t *testing.T) {
	s := newTestSynthesizer(t)
	sum := baseSummary()
	sum.ExcludedGames = 2
	sum.UnscoredGames = 1
	sum.SkippedPlies = 7
	text := s.Synthesize(sum, 24*time.Hour).Render()

	for _, want := range []string{
		"2 games skipped: analysis ran out of time.",
		"1 game could not be scored",
		"7 positions went unevaluated",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("notes missing %q:\n%s", want, text)
		}
	}
}

func TestSynthesizeNoBlunders(t *testing.T) {
	s := newTestSynthesizer(t)
	sum := baseSummary()
	sum.WorstBlunders = nil
	text := s.Synthesize(sum, 24*time.Hour).Render()
	if !strings.Contains(text, "No blunders today") {
		t.Fatalf("missing no-blunder line:\n%s", text)
	}
}

func TestTipKeySelection(t *testing.T) {
	sum := baseSummary()
	if got := tipKey(sum); got != "blunders" {
		t.Fatalf("blunder-heavy day picked %q", got)
	}

	sum.Counts[domain.ClassifiedBlunder] = 1
	sum.Counts[domain.ClassifiedMistake] = 10
	if got := tipKey(sum); got != "mistakes" {
		t.Fatalf("mistake-heavy day picked %q", got)
	}

	sum.Counts[domain.ClassifiedMistake] = 0
	sum.Counts[domain.ClassifiedBlunder] = 0
	if got := tipKey(sum); got != "middlegame" {
		t.Fatalf("middlegame-heavy day picked %q", got)
	}

	sum.PhaseMistakes = map[domain.Phase]int{}
	if got := tipKey(sum); got != "clean" {
		t.Fatalf("clean day picked %q", got)
	}
}

func TestMoveNumber(t *testing.T) {
	if got := moveNumber(1); got != "1." {
		t.Fatalf("ply 1: %q", got)
	}
	if got := moveNumber(2); got != "1..." {
		t.Fatalf("ply 2: %q", got)
	}
	if got := moveNumber(23); got != "12." {
		t.Fatalf("ply 23: %q", got)
	}
}
