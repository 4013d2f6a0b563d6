// Package report turns a session summary into the ordered, rendered
// sections of a daily report.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/park285/chess-daily-coach/internal/domain"
	"github.com/park285/chess-daily-coach/internal/report/msgcat"
)

// Baseline rates a bucket must exceed before its tip is chosen.
const (
	blunderBaseline    = 0.02
	mistakeBaseline    = 0.06
	inaccuracyBaseline = 0.12
)

type Synthesizer struct {
	cat *msgcat.Catalog
}

func NewSynthesizer(cat *msgcat.Catalog) *Synthesizer {
	return &Synthesizer{cat: cat}
}

// Synthesize builds the report for one session. Deterministic: the
// same summary always renders the same report. A session with no
// analyzed games yields a minimal "nothing to review" report rather
// than an empty message.
func (s *Synthesizer) Synthesize(sum domain.SessionSummary, window time.Duration) domain.Report {
	var rep domain.Report

	date := sum.To.Format("2006-01-02")
	if sum.To.IsZero() {
		date = time.Now().UTC().Format("2006-01-02")
	}
	title := s.render("report.title",
		map[string]any{"Username": sum.Username, "Date": date},
		fmt.Sprintf("Daily chess report for %s (%s)", sum.Username, date))

	if sum.GamesAnalyzed == 0 {
		body := s.render("report.empty",
			map[string]any{"Username": sum.Username, "Window": formatWindow(window)},
			fmt.Sprintf("No new games for %s in the last %s.", sum.Username, formatWindow(window)))
		rep.Sections = append(rep.Sections, domain.Section{Title: title, Body: body})
		if notes := s.notesSection(sum); notes != nil {
			rep.Sections = append(rep.Sections, *notes)
		}
		return rep
	}

	rep.Sections = append(rep.Sections, domain.Section{Title: title, Body: s.overviewBody(sum)})
	if sec := s.openingsSection(sum); sec != nil {
		rep.Sections = append(rep.Sections, *sec)
	}
	rep.Sections = append(rep.Sections, s.mistakesSection(sum))
	if sec := s.phasesSection(sum); sec != nil {
		rep.Sections = append(rep.Sections, *sec)
	}
	rep.Sections = append(rep.Sections, s.tipSection(sum))
	if notes := s.notesSection(sum); notes != nil {
		rep.Sections = append(rep.Sections, *notes)
	}
	return rep
}

func (s *Synthesizer) overviewBody(sum domain.SessionSummary) string {
	topRate := int(math.Round(100 * (sum.ClassifiedRate(domain.ClassifiedBest) + sum.ClassifiedRate(domain.ClassifiedExcellent))))
	return s.render("section.overview.body",
		map[string]any{
			"Games":   sum.GamesAnalyzed,
			"Wins":    sum.Wins,
			"Losses":  sum.Losses,
			"Draws":   sum.Draws,
			"TopRate": topRate,
		},
		fmt.Sprintf("%d games analyzed: %dW / %dL / %dD.", sum.GamesAnalyzed, sum.Wins, sum.Losses, sum.Draws))
}

func (s *Synthesizer) openingsSection(sum domain.SessionSummary) *domain.Section {
	if len(sum.Openings) == 0 {
		return nil
	}
	lines := make([]string, 0, len(sum.Openings))
	for _, op := range sum.Openings {
		lines = append(lines, s.render("section.openings.line",
			map[string]any{
				"Name":   op.Name,
				"ECO":    op.ECO,
				"Games":  op.Games,
				"Wins":   op.Wins,
				"Losses": op.Losses,
				"Draws":  op.Draws,
			},
			fmt.Sprintf("%s: %d games, %dW/%dL/%dD", op.Name, op.Games, op.Wins, op.Losses, op.Draws)))
	}
	return &domain.Section{
		Title: s.render("section.openings.title", nil, "Openings"),
		Body:  strings.Join(lines, "\n"),
	}
}

func (s *Synthesizer) mistakesSection(sum domain.SessionSummary) domain.Section {
	title := s.render("section.mistakes.title", nil, "Key mistakes")
	if len(sum.WorstBlunders) == 0 {
		return domain.Section{
			Title: title,
			Body:  s.render("section.mistakes.none", nil, "No blunders today."),
		}
	}
	lines := make([]string, 0, len(sum.WorstBlunders))
	for _, b := range sum.WorstBlunders {
		move := b.MoveSAN
		if move == "" {
			move = b.MoveUCI
		}
		lines = append(lines, s.render("section.mistakes.line",
			map[string]any{
				"MoveNumber": moveNumber(b.Ply),
				"Move":       move,
				"Swing":      fmt.Sprintf("%.1f", float64(b.SwingCP)/100),
				"BestMove":   b.BestMoveUCI,
				"GameID":     b.GameID,
			},
			fmt.Sprintf("Move %s (%s): lost %.1f pawns [game %s]", moveNumber(b.Ply), move, float64(b.SwingCP)/100, b.GameID)))
	}
	return domain.Section{Title: title, Body: strings.Join(lines, "\n")}
}

func (s *Synthesizer) phasesSection(sum domain.SessionSummary) *domain.Section {
	total := 0
	for _, n := range sum.PhaseMistakes {
		total += n
	}
	if total == 0 {
		return nil
	}
	phases := []domain.Phase{domain.PhaseOpening, domain.PhaseMiddlegame, domain.PhaseEndgame}
	lines := make([]string, 0, len(phases))
	for _, ph := range phases {
		n := sum.PhaseMistakes[ph]
		if n == 0 {
			continue
		}
		lines = append(lines, s.render("section.phases.line",
			map[string]any{"Phase": phaseTitle(ph), "Count": n},
			fmt.Sprintf("%s: %d mistakes or worse", phaseTitle(ph), n)))
	}
	return &domain.Section{
		Title: s.render("section.phases.title", nil, "Where it went wrong"),
		Body:  strings.Join(lines, "\n"),
	}
}

func (s *Synthesizer) tipSection(sum domain.SessionSummary) domain.Section {
	return domain.Section{
		Title: s.render("tips.title", nil, "Tip of the day"),
		Body:  s.render("tips."+tipKey(sum), nil, "Review your toughest game move by move."),
	}
}

// tipKey picks the one coaching angle for the day: the most severe
// overrepresented bucket wins, then the dominant losing phase, then a
// clean-day nudge.
func tipKey(sum domain.SessionSummary) string {
	switch {
	case sum.ClassifiedRate(domain.ClassifiedBlunder) > blunderBaseline:
		return "blunders"
	case sum.ClassifiedRate(domain.ClassifiedMistake) > mistakeBaseline:
		return "mistakes"
	case sum.ClassifiedRate(domain.ClassifiedInaccuracy) > inaccuracyBaseline:
		return "inaccuracies"
	}

	type phaseCount struct {
		phase domain.Phase
		n     int
	}
	counts := []phaseCount{
		{domain.PhaseOpening, sum.PhaseMistakes[domain.PhaseOpening]},
		{domain.PhaseMiddlegame, sum.PhaseMistakes[domain.PhaseMiddlegame]},
		{domain.PhaseEndgame, sum.PhaseMistakes[domain.PhaseEndgame]},
	}
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].n > counts[j].n })
	if counts[0].n > 0 {
		switch counts[0].phase {
		case domain.PhaseOpening:
			return "opening"
		case domain.PhaseMiddlegame:
			return "middlegame"
		default:
			return "endgame"
		}
	}
	return "clean"
}

func (s *Synthesizer) notesSection(sum domain.SessionSummary) *domain.Section {
	var lines []string
	if sum.ExcludedGames > 0 {
		lines = append(lines, s.render("section.notes.excluded",
			map[string]any{"Count": sum.ExcludedGames},
			fmt.Sprintf("%d games skipped: analysis ran out of time.", sum.ExcludedGames)))
	}
	if sum.UnscoredGames > 0 {
		lines = append(lines, s.render("section.notes.unscored",
			map[string]any{"Count": sum.UnscoredGames},
			fmt.Sprintf("%d games could not be scored by the engine.", sum.UnscoredGames)))
	}
	if sum.SkippedPlies > 0 {
		lines = append(lines, s.render("section.notes.skipped_plies",
			map[string]any{"Count": sum.SkippedPlies},
			fmt.Sprintf("%d positions went unevaluated.", sum.SkippedPlies)))
	}
	if len(lines) == 0 {
		return nil
	}
	return &domain.Section{
		Title: s.render("section.notes.title", nil, "Notes"),
		Body:  strings.Join(lines, "\n"),
	}
}

func (s *Synthesizer) render(key string, data map[string]any, fallback string) string {
	if s.cat != nil {
		if out, err := s.cat.Render(key, data); err == nil {
			return out
		}
	}
	return fallback
}

// moveNumber renders a ply as standard move-list numbering, with the
// trailing dots marking a black move.
func moveNumber(ply int) string {
	n := (ply + 1) / 2
	if ply%2 == 0 {
		return fmt.Sprintf("%d...", n)
	}
	return fmt.Sprintf("%d.", n)
}

func phaseTitle(p domain.Phase) string {
	switch p {
	case domain.PhaseOpening:
		return "Opening"
	case domain.PhaseEndgame:
		return "Endgame"
	default:
		return "Middlegame"
	}
}

func formatWindow(d time.Duration) string {
	if d <= 0 {
		return "24h"
	}
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return d.Truncate(time.Minute).String()
}
