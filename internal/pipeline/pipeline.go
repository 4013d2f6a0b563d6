// Package pipeline runs one end-to-end daily report: fetch games,
// evaluate, classify, aggregate, synthesize, deliver, then advance the
// watermark.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chess-daily-coach/internal/analysis"
	"github.com/park285/chess-daily-coach/internal/boardimg"
	"github.com/park285/chess-daily-coach/internal/domain"
	"github.com/park285/chess-daily-coach/internal/engine"
	"github.com/park285/chess-daily-coach/internal/obslog"
	"github.com/park285/chess-daily-coach/internal/report"
	"github.com/park285/chess-daily-coach/internal/state"
)

type Outcome int

const (
	// OutcomeReport: a report with analyzed games was delivered.
	OutcomeReport Outcome = iota
	// OutcomeEmpty: nothing to analyze; a minimal report was delivered.
	OutcomeEmpty
	// OutcomeFailed: the run aborted before or during delivery.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReport:
		return "report"
	case OutcomeEmpty:
		return "empty"
	default:
		return "failed"
	}
}

// Fetcher retrieves finished games inside a window, already dedup'd
// against the watermark.
type Fetcher interface {
	GamesSince(ctx context.Context, username string, since, until time.Time, wm *state.Watermark) ([]domain.Game, error)
}

// Evaluator produces per-ply engine traces.
type Evaluator interface {
	EvaluateAll(ctx context.Context, games []domain.Game) (traces []engine.GameTrace, excluded []string, err error)
}

// Sender delivers the rendered report and optional attachments.
type Sender interface {
	SendReport(ctx context.Context, rep domain.Report) error
	SendImage(ctx context.Context, pngData []byte) error
}

type Config struct {
	Username         string
	Lookback         time.Duration
	RunTimeout       time.Duration
	Classify         analysis.Config
	TopBlunders      int
	AttachBoardImage bool
}

type Pipeline struct {
	cfg   Config
	fetch Fetcher
	eval  Evaluator
	synth *report.Synthesizer
	send  Sender
	store state.Store // nil disables watermark dedupe
}

func New(cfg Config, fetch Fetcher, eval Evaluator, synth *report.Synthesizer, send Sender, store state.Store) *Pipeline {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 24 * time.Hour
	}
	return &Pipeline{cfg: cfg, fetch: fetch, eval: eval, synth: synth, send: send, store: store}
}

type Result struct {
	Outcome Outcome
	Summary domain.SessionSummary
	Report  domain.Report
}

// Run executes one report cycle under the configured global timeout.
// The watermark advances only after the report has been delivered, so
// a failed run leaves the next run to cover the same games again.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	if p.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RunTimeout)
		defer cancel()
	}

	runID := uuid.NewString()
	log := obslog.L().With(zap.String("run_id", runID), zap.String("username", p.cfg.Username))
	log.Info("run started", zap.Duration("lookback", p.cfg.Lookback))

	until := time.Now().UTC()
	since := until.Add(-p.cfg.Lookback)

	wm := p.loadWatermark(ctx, log)

	games, retrievalNote, err := p.fetchGames(ctx, log, since, until, wm)
	if err != nil {
		return Result{Outcome: OutcomeFailed}, err
	}

	if len(games) == 0 {
		return p.deliverEmpty(ctx, log, since, until, retrievalNote)
	}

	traces, excluded, err := p.eval.EvaluateAll(ctx, games)
	if err != nil {
		log.Error("evaluation failed", zap.Error(err))
		return Result{Outcome: OutcomeFailed}, err
	}
	if len(excluded) > 0 {
		log.Warn("games excluded by run timeout", zap.Strings("game_ids", excluded))
	}

	byID := make(map[string]domain.Game, len(games))
	for _, g := range games {
		byID[g.ID] = g
	}

	classified := make(map[string][]domain.ClassifiedMove, len(traces))
	for _, tr := range traces {
		moves, err := analysis.ClassifyGame(byID[tr.GameID], tr.Moves, p.cfg.Classify)
		if err != nil {
			// Classifier invariant violations mean the run's data
			// cannot be trusted; abort loudly instead of reporting
			// from it.
			log.Error("classification aborted", zap.Error(err))
			return Result{Outcome: OutcomeFailed}, err
		}
		classified[tr.GameID] = moves
	}

	sum := analysis.Aggregate(p.cfg.Username, since, until, games, classified, p.cfg.TopBlunders)
	rep := p.synth.Synthesize(sum, p.cfg.Lookback)
	if retrievalNote != "" {
		rep.Sections = append(rep.Sections, domain.Section{Title: "Notes", Body: retrievalNote})
	}

	if err := p.send.SendReport(ctx, rep); err != nil {
		log.Error("delivery failed", zap.Error(err))
		return Result{Outcome: OutcomeFailed, Summary: sum, Report: rep}, err
	}

	p.attachBlunderImage(ctx, log, sum, byID)
	p.advanceWatermark(ctx, log, wm, games, classified)

	log.Info("run finished",
		zap.Int("games_analyzed", sum.GamesAnalyzed),
		zap.Int("games_excluded", sum.ExcludedGames),
		zap.Int("classified_plies", sum.ClassifiedPlies))
	return Result{Outcome: OutcomeReport, Summary: sum, Report: rep}, nil
}

func (p *Pipeline) loadWatermark(ctx context.Context, log *zap.Logger) *state.Watermark {
	if p.store == nil {
		return nil
	}
	wm, err := p.store.Load(ctx)
	if err != nil {
		// Duplicate reporting beats silent loss; run without dedupe.
		log.Warn("watermark load failed, running without dedupe", zap.Error(err))
		return nil
	}
	return wm
}

// fetchGames degrades retrieval failure into an empty game list with a
// note, except for context expiry which fails the run.
func (p *Pipeline) fetchGames(ctx context.Context, log *zap.Logger, since, until time.Time, wm *state.Watermark) ([]domain.Game, string, error) {
	games, err := p.fetch.GamesSince(ctx, p.cfg.Username, since, until, wm)
	if err == nil {
		return games, "", nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, "", err
	}
	var re *domain.RetrievalError
	if errors.As(err, &re) {
		log.Error("game retrieval failed, sending degraded report", zap.Error(err))
		return nil, "Game retrieval failed; today's games could not be reviewed.", nil
	}
	return nil, "", err
}

func (p *Pipeline) deliverEmpty(ctx context.Context, log *zap.Logger, since, until time.Time, note string) (Result, error) {
	sum := domain.SessionSummary{Username: p.cfg.Username, From: since, To: until}
	rep := p.synth.Synthesize(sum, p.cfg.Lookback)
	if note != "" {
		rep.Sections = append(rep.Sections, domain.Section{Title: "Notes", Body: note})
	}
	if err := p.send.SendReport(ctx, rep); err != nil {
		log.Error("delivery failed", zap.Error(err))
		return Result{Outcome: OutcomeFailed, Summary: sum, Report: rep}, err
	}
	log.Info("run finished with nothing to analyze")
	return Result{Outcome: OutcomeEmpty, Summary: sum, Report: rep}, nil
}

// attachBlunderImage is best effort: a rendering or send failure must
// not fail a run whose report already went out.
func (p *Pipeline) attachBlunderImage(ctx context.Context, log *zap.Logger, sum domain.SessionSummary, byID map[string]domain.Game) {
	if !p.cfg.AttachBoardImage || len(sum.WorstBlunders) == 0 {
		return
	}
	worst := sum.WorstBlunders[0]
	game, ok := byID[worst.GameID]
	if !ok {
		return
	}
	board, opts, err := boardimg.BlunderBoard(game, worst)
	if err != nil {
		log.Warn("blunder board unavailable", zap.String("game_id", worst.GameID), zap.Error(err))
		return
	}
	png, err := boardimg.RenderPNG(ctx, board, opts)
	if err != nil {
		log.Warn("blunder image render failed", zap.Error(err))
		return
	}
	if err := p.send.SendImage(ctx, png); err != nil {
		log.Warn("blunder image send failed", zap.Error(err))
	}
}

// advanceWatermark folds in only the games that made it into the
// delivered report; excluded games stay eligible if a later window
// still covers them.
func (p *Pipeline) advanceWatermark(ctx context.Context, log *zap.Logger, wm *state.Watermark, games []domain.Game, classified map[string][]domain.ClassifiedMove) {
	if p.store == nil {
		return
	}
	analyzed := make([]domain.Game, 0, len(classified))
	for _, g := range games {
		if _, ok := classified[g.ID]; ok {
			analyzed = append(analyzed, g)
		}
	}
	if len(analyzed) == 0 {
		return
	}
	base := state.Watermark{}
	if wm != nil {
		base = *wm
	}
	next := base.Advance(analyzed)
	if err := p.store.Save(ctx, next); err != nil {
		log.Error("watermark save failed", zap.Error(err))
	}
}
