package uci

import (
	"strings"
	"testing"
	"time"
)

func TestParseInfoScore(t *testing.T) {
	cp, mate, depth, ok := parseInfoScore("info depth 12 seldepth 18 score cp 35 nodes 90125 pv e2e4")
	if !ok || cp != 35 || mate != 0 || depth != 12 {
		t.Fatalf("cp line: cp=%d mate=%d depth=%d ok=%v", cp, mate, depth, ok)
	}

	cp, mate, depth, ok = parseInfoScore("info depth 20 score mate -3 pv h7h8q")
	if !ok || mate != -3 || depth != 20 {
		t.Fatalf("mate line: cp=%d mate=%d depth=%d ok=%v", cp, mate, depth, ok)
	}

	if _, _, _, ok := parseInfoScore("info depth 10 currmove e2e4 currmovenumber 1"); ok {
		t.Fatal("currmove line carried a score")
	}
	if _, _, _, ok := parseInfoScore("info string NNUE evaluation enabled"); ok {
		t.Fatal("string line carried a score")
	}
}

func TestBuildPositionCommand(t *testing.T) {
	if got := buildPositionCommand("", nil); got != "position startpos\n" {
		t.Fatalf("empty fen: %q", got)
	}
	if got := buildPositionCommand("startpos", []string{"e2e4", "e7e5"}); got != "position startpos moves e2e4 e7e5\n" {
		t.Fatalf("startpos with moves: %q", got)
	}
	fen := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	got := buildPositionCommand(fen, []string{"e2e4"})
	if !strings.HasPrefix(got, "position fen "+fen) || !strings.HasSuffix(got, " moves e2e4\n") {
		t.Fatalf("fen with moves: %q", got)
	}
}

func TestBuildGoTokens(t *testing.T) {
	tokens, err := buildGoTokens(Limits{Depth: 12})
	if err != nil || strings.Join(tokens, " ") != "go depth 12" {
		t.Fatalf("depth: %v %v", tokens, err)
	}

	// movetime wins over depth when both are set.
	tokens, err = buildGoTokens(Limits{Depth: 12, MoveTimeMillis: 250})
	if err != nil || strings.Join(tokens, " ") != "go movetime 250" {
		t.Fatalf("movetime: %v %v", tokens, err)
	}

	if _, err := buildGoTokens(Limits{}); err == nil {
		t.Fatal("empty limits accepted")
	}
}

func TestComputeSearchTimeout(t *testing.T) {
	if d := computeSearchTimeout(Limits{MoveTimeMillis: 1000}); d != 9*time.Second {
		t.Fatalf("movetime timeout = %v", d)
	}
	if d := computeSearchTimeout(Limits{Depth: 4}); d != 6*time.Second {
		t.Fatalf("shallow depth floor = %v", d)
	}
	if d := computeSearchTimeout(Limits{Depth: 200}); d != 30*time.Second {
		t.Fatalf("deep depth ceiling = %v", d)
	}
	if d := computeSearchTimeout(Limits{Depth: 30}); d != 9*time.Second {
		t.Fatalf("depth 30 timeout = %v", d)
	}
}
