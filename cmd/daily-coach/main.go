package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/park285/chess-daily-coach/internal/analysis"
	"github.com/park285/chess-daily-coach/internal/archive"
	appcfg "github.com/park285/chess-daily-coach/internal/config"
	"github.com/park285/chess-daily-coach/internal/delivery"
	"github.com/park285/chess-daily-coach/internal/engine"
	"github.com/park285/chess-daily-coach/internal/engine/uci"
	"github.com/park285/chess-daily-coach/internal/obslog"
	"github.com/park285/chess-daily-coach/internal/pipeline"
	"github.com/park285/chess-daily-coach/internal/report"
	"github.com/park285/chess-daily-coach/internal/report/msgcat"
	"github.com/park285/chess-daily-coach/internal/state"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := run(ctx, cfg)
	_ = obslog.L().Sync()
	os.Exit(code)
}

func run(ctx context.Context, cfg *appcfg.AppConfig) int {
	logger := obslog.L()

	headers := func() map[string]string {
		h := map[string]string{}
		if cfg.XUserID != "" {
			h["X-User-Id"] = cfg.XUserID
		}
		if cfg.XUserEmail != "" {
			h["X-User-Email"] = cfg.XUserEmail
		}
		if cfg.XSessionID != "" {
			h["X-Session-Id"] = cfg.XSessionID
		}
		return h
	}
	sender := delivery.NewClient(cfg.IrisBaseURL, cfg.IrisRoom, delivery.WithHeaderProvider(headers))

	fetcher := archive.NewClient()

	eval, err := engine.NewWithBinary(
		cfg.StockfishPath,
		cfg.EnginePoolSize,
		uci.Options{Threads: cfg.EngineThreads, HashMB: cfg.EngineHashMB},
		engine.Config{Depth: cfg.EngineDepth, MoveTimeMS: cfg.EngineMoveTimeMS, Concurrency: cfg.AnalysisConcurrency},
	)
	if err != nil {
		logger.Error("engine init failed", zap.String("binary", cfg.StockfishPath), zap.Error(err))
		return 1
	}
	defer func() { _ = eval.Close() }()

	cat, err := msgcat.New(cfg.ReportTemplates)
	if err != nil {
		logger.Error("message catalog init failed", zap.Error(err))
		return 1
	}
	synth := report.NewSynthesizer(cat)

	store, cleanup := newStateStore(cfg, logger)
	defer cleanup()

	p := pipeline.New(pipeline.Config{
		Username:   cfg.ChessComUsername,
		Lookback:   cfg.LookbackWindow,
		RunTimeout: cfg.RunTimeout,
		Classify: analysis.Config{
			Thresholds: analysis.Thresholds{
				BestCP:       cfg.BestCP,
				ExcellentCP:  cfg.ExcellentCP,
				GoodCP:       cfg.GoodCP,
				InaccuracyCP: cfg.InaccuracyCP,
				MistakeCP:    cfg.MistakeCP,
			},
			Phase: analysis.PhaseConfig{
				OpeningPlies:       cfg.OpeningPlyLimit,
				EndgameMaterial:    cfg.EndgameMaterial,
				EndgameFallbackPly: analysis.DefaultPhaseConfig().EndgameFallbackPly,
			},
			BookExemptPlies: cfg.BookExemptPlies,
		},
		TopBlunders:      cfg.TopBlunders,
		AttachBoardImage: cfg.AttachBoardImage,
	}, fetcher, eval, synth, sender, store)

	res, err := p.Run(ctx)
	if err != nil {
		logger.Error("run failed", zap.String("outcome", res.Outcome.String()), zap.Error(err))
		return 1
	}
	logger.Info("run complete", zap.String("outcome", res.Outcome.String()))
	return 0
}

// newStateStore prefers Redis when configured, falling back to the
// local JSON file. A broken Redis URL downgrades with a warning rather
// than blocking the day's report.
func newStateStore(cfg *appcfg.AppConfig, logger *zap.Logger) (state.Store, func()) {
	if cfg.RedisURL != "" {
		rs, err := state.NewRedisStoreFromURL(cfg.RedisURL)
		if err == nil {
			return rs.PlayerStore(cfg.ChessComUsername), func() { _ = rs.Close() }
		}
		logger.Warn("redis state unavailable, using file store", zap.Error(err))
	}
	if cfg.StateFile != "" {
		return state.NewFileStore(cfg.StateFile), func() {}
	}
	return nil, func() {}
}
