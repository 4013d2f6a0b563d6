package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CHESSCOM_USERNAME", "coach")
	t.Setenv("STOCKFISH_PATH", "/usr/bin/stockfish")
	t.Setenv("IRIS_BASE_URL", "http://iris.local:3000")
	t.Setenv("IRIS_ROOM", "coach-room")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChessComUsername != "coach" || cfg.StockfishPath != "/usr/bin/stockfish" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.LookbackWindow != 24*time.Hour || cfg.RunTimeout != 20*time.Minute {
		t.Fatalf("windows = %v / %v", cfg.LookbackWindow, cfg.RunTimeout)
	}
	if cfg.EngineDepth != 12 || cfg.EnginePoolSize != 2 || cfg.AnalysisConcurrency != 2 {
		t.Fatalf("engine defaults = %+v", cfg)
	}
	if cfg.BestCP != 5 || cfg.ExcellentCP != 20 || cfg.GoodCP != 50 || cfg.InaccuracyCP != 100 || cfg.MistakeCP != 300 {
		t.Fatalf("thresholds = %+v", cfg)
	}
	if cfg.OpeningPlyLimit != 20 || cfg.EndgameMaterial != 13 || cfg.BookExemptPlies != 2 || cfg.TopBlunders != 3 {
		t.Fatalf("analysis defaults = %+v", cfg)
	}
	if cfg.StateFile != "state.json" || cfg.AttachBoardImage {
		t.Fatalf("state defaults = %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("LOOKBACK_HOURS", "48")
	t.Setenv("RUN_TIMEOUT_MIN", "5")
	t.Setenv("ENGINE_DEPTH", "18")
	t.Setenv("ENGINE_MOVETIME_MS", "400")
	t.Setenv("CLASSIFY_MISTAKE_CP", "250")
	t.Setenv("ATTACH_BOARD_IMAGE", "true")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("STATE_FILE", "/var/lib/coach/state.json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LookbackWindow != 48*time.Hour || cfg.RunTimeout != 5*time.Minute {
		t.Fatalf("windows = %v / %v", cfg.LookbackWindow, cfg.RunTimeout)
	}
	if cfg.EngineDepth != 18 || cfg.EngineMoveTimeMS != 400 || cfg.MistakeCP != 250 {
		t.Fatalf("overrides = %+v", cfg)
	}
	if !cfg.AttachBoardImage || cfg.RedisURL == "" || cfg.StateFile != "/var/lib/coach/state.json" {
		t.Fatalf("overrides = %+v", cfg)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	cases := []string{"CHESSCOM_USERNAME", "STOCKFISH_PATH", "IRIS_BASE_URL", "IRIS_ROOM"}
	for _, missing := range cases {
		t.Run(missing, func(t *testing.T) {
			setRequired(t)
			t.Setenv(missing, "")
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), missing) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestLoadRejectsNonMonotonicThresholds(t *testing.T) {
	setRequired(t)
	t.Setenv("CLASSIFY_GOOD_CP", "15")

	if _, err := Load(); err == nil {
		t.Fatal("non-monotonic thresholds accepted")
	}
}

func TestLoadIgnoresMalformedInts(t *testing.T) {
	setRequired(t)
	t.Setenv("ENGINE_DEPTH", "not-a-number")
	t.Setenv("LOOKBACK_HOURS", "-3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EngineDepth != 12 || cfg.LookbackWindow != 24*time.Hour {
		t.Fatalf("cfg = %+v", cfg)
	}
}
