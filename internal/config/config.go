package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ChessComUsername string
	LookbackWindow   time.Duration

	StockfishPath       string
	EngineDepth         int
	EngineMoveTimeMS    int
	EnginePoolSize      int
	EngineThreads       int
	EngineHashMB        int
	AnalysisConcurrency int
	RunTimeout          time.Duration

	// Centipawn-loss thresholds, inclusive upper bounds per label.
	BestCP       int
	ExcellentCP  int
	GoodCP       int
	InaccuracyCP int
	MistakeCP    int

	OpeningPlyLimit  int
	EndgameMaterial  int
	BookExemptPlies  int
	TopBlunders      int
	ReportTemplates  string
	AttachBoardImage bool

	IrisBaseURL string
	IrisRoom    string
	XUserID     string
	XUserEmail  string
	XSessionID  string

	RedisURL  string
	StateFile string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		LookbackWindow:      24 * time.Hour,
		EngineDepth:         12,
		EnginePoolSize:      2,
		EngineThreads:       1,
		EngineHashMB:        128,
		AnalysisConcurrency: 2,
		RunTimeout:          20 * time.Minute,
		BestCP:              5,
		ExcellentCP:         20,
		GoodCP:              50,
		InaccuracyCP:        100,
		MistakeCP:           300,
		OpeningPlyLimit:     20,
		EndgameMaterial:     13,
		BookExemptPlies:     2,
		TopBlunders:         3,
		StateFile:           "state.json",
	}

	cfg.ChessComUsername = strings.TrimSpace(os.Getenv("CHESSCOM_USERNAME"))
	cfg.StockfishPath = strings.TrimSpace(os.Getenv("STOCKFISH_PATH"))

	if v := strings.TrimSpace(os.Getenv("LOOKBACK_HOURS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LookbackWindow = time.Duration(n) * time.Hour
		}
	}
	if v := strings.TrimSpace(os.Getenv("RUN_TIMEOUT_MIN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RunTimeout = time.Duration(n) * time.Minute
		}
	}

	intVar(&cfg.EngineDepth, "ENGINE_DEPTH")
	intVar(&cfg.EngineMoveTimeMS, "ENGINE_MOVETIME_MS")
	intVar(&cfg.EnginePoolSize, "ENGINE_POOL_SIZE")
	intVar(&cfg.EngineThreads, "ENGINE_THREADS")
	intVar(&cfg.EngineHashMB, "ENGINE_HASH_MB")
	intVar(&cfg.AnalysisConcurrency, "ANALYSIS_CONCURRENCY")

	intVar(&cfg.BestCP, "CLASSIFY_BEST_CP")
	intVar(&cfg.ExcellentCP, "CLASSIFY_EXCELLENT_CP")
	intVar(&cfg.GoodCP, "CLASSIFY_GOOD_CP")
	intVar(&cfg.InaccuracyCP, "CLASSIFY_INACCURACY_CP")
	intVar(&cfg.MistakeCP, "CLASSIFY_MISTAKE_CP")

	intVar(&cfg.OpeningPlyLimit, "OPENING_PLY_LIMIT")
	intVar(&cfg.EndgameMaterial, "ENDGAME_MATERIAL")
	intVar(&cfg.BookExemptPlies, "BOOK_EXEMPT_PLIES")
	intVar(&cfg.TopBlunders, "TOP_BLUNDERS")

	cfg.ReportTemplates = strings.TrimSpace(os.Getenv("REPORT_TEMPLATE_DIR"))

	if v := strings.TrimSpace(os.Getenv("ATTACH_BOARD_IMAGE")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AttachBoardImage = b
		}
	}

	cfg.IrisBaseURL = strings.TrimSpace(os.Getenv("IRIS_BASE_URL"))
	cfg.IrisRoom = strings.TrimSpace(os.Getenv("IRIS_ROOM"))
	cfg.XUserID = strings.TrimSpace(os.Getenv("X_USER_ID"))
	cfg.XUserEmail = strings.TrimSpace(os.Getenv("X_USER_EMAIL"))
	cfg.XSessionID = strings.TrimSpace(os.Getenv("X_SESSION_ID"))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	if v := strings.TrimSpace(os.Getenv("STATE_FILE")); v != "" {
		cfg.StateFile = v
	}

	if cfg.ChessComUsername == "" {
		return nil, errors.New("CHESSCOM_USERNAME is required")
	}
	if cfg.StockfishPath == "" {
		return nil, errors.New("STOCKFISH_PATH is required")
	}
	if cfg.IrisBaseURL == "" {
		return nil, errors.New("IRIS_BASE_URL is required")
	}
	if cfg.IrisRoom == "" {
		return nil, errors.New("IRIS_ROOM is required")
	}
	if cfg.EngineDepth <= 0 && cfg.EngineMoveTimeMS <= 0 {
		return nil, errors.New("one of ENGINE_DEPTH or ENGINE_MOVETIME_MS must be positive")
	}
	if !monotonic(cfg.BestCP, cfg.ExcellentCP, cfg.GoodCP, cfg.InaccuracyCP, cfg.MistakeCP) {
		return nil, errors.New("classification thresholds must be strictly increasing")
	}

	return cfg, nil
}

func intVar(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func monotonic(vals ...int) bool {
	for i := 1; i < len(vals); i++ {
		if vals[i] <= vals[i-1] {
			return false
		}
	}
	return true
}
