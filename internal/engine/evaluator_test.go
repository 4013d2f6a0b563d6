package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/park285/chess-daily-coach/internal/domain"
	"github.com/park285/chess-daily-coach/internal/engine/uci"
)

type fakeEngine struct {
	search   func(moves []string) (uci.SearchResponse, error)
	searches int
}

func (e *fakeEngine) Search(ctx context.Context, req uci.SearchRequest) (uci.SearchResponse, error) {
	if err := ctx.Err(); err != nil {
		return uci.SearchResponse{}, err
	}
	e.searches++
	return e.search(req.Moves)
}

func (e *fakeEngine) NewGame(ctx context.Context) error { return ctx.Err() }

type fakePool struct {
	mu       sync.Mutex
	engines  []*fakeEngine
	acquires int
	releases []error
}

func (p *fakePool) Acquire(ctx context.Context) (Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.acquires
	if idx >= len(p.engines) {
		idx = len(p.engines) - 1
	}
	p.acquires++
	return p.engines[idx], nil
}

func (p *fakePool) Release(e Engine, err error) {
	p.mu.Lock()
	p.releases = append(p.releases, err)
	p.mu.Unlock()
}

func (p *fakePool) Close() error { return nil }

func steadyEngine(cp int) *fakeEngine {
	return &fakeEngine{search: func(moves []string) (uci.SearchResponse, error) {
		return uci.SearchResponse{BestMove: "e2e4", ScoreCP: cp, Depth: 12}, nil
	}}
}

var ruyMoves = []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1b5", "a7a6"}

func TestEvaluateGamePlyCompleteness(t *testing.T) {
	pool := &fakePool{engines: []*fakeEngine{steadyEngine(30)}}
	ev := New(pool, Config{Depth: 12})

	game := domain.Game{ID: "g1", MovesUCI: ruyMoves}
	moves, err := ev.EvaluateGame(context.Background(), game)
	if err != nil {
		t.Fatalf("EvaluateGame: %v", err)
	}
	if len(moves) != len(ruyMoves) {
		t.Fatalf("trace has %d plies, game has %d", len(moves), len(ruyMoves))
	}
	for i, m := range moves {
		if m.Ply != i+1 {
			t.Fatalf("ply order broken at %d: %+v", i, m)
		}
		if m.Score.Unavailable {
			t.Fatalf("ply %d unavailable with healthy engine", m.Ply)
		}
		if m.BestMoveUCI == "" || m.Depth == 0 {
			t.Fatalf("ply %d missing search metadata: %+v", m.Ply, m)
		}
	}

	// The engine reports from the side to move; after White's first
	// move the +30 is Black's edge, so White-perspective scores
	// alternate in sign.
	if moves[0].Score.Normalized() != -30 {
		t.Fatalf("ply 1 normalized = %d", moves[0].Score.Normalized())
	}
	if moves[1].Score.Normalized() != 30 {
		t.Fatalf("ply 2 normalized = %d", moves[1].Score.Normalized())
	}
}

func TestEvaluateGameTerminalCheckmate(t *testing.T) {
	eng := steadyEngine(-200)
	pool := &fakePool{engines: []*fakeEngine{eng}}
	ev := New(pool, Config{Depth: 10})

	// Fool's mate: Black mates on ply 4.
	game := domain.Game{ID: "fools", MovesUCI: []string{"f2f3", "e7e5", "g2g4", "d8h4"}}
	moves, err := ev.EvaluateGame(context.Background(), game)
	if err != nil {
		t.Fatalf("EvaluateGame: %v", err)
	}
	if len(moves) != 4 {
		t.Fatalf("plies = %d", len(moves))
	}

	final := moves[3].Score
	if !final.IsMate() || final.Normalized() >= 0 {
		t.Fatalf("mate for black scored %+v", final)
	}
	// The mated final position is never sent to the engine.
	if eng.searches != 3 {
		t.Fatalf("searches = %d", eng.searches)
	}
}

func TestEvaluateGameSwapsWedgedSession(t *testing.T) {
	bad := &fakeEngine{search: func(moves []string) (uci.SearchResponse, error) {
		if len(moves) == 2 {
			return uci.SearchResponse{}, errors.New("engine wedged")
		}
		return uci.SearchResponse{BestMove: "g1f3", ScoreCP: 10, Depth: 8}, nil
	}}
	good := steadyEngine(10)
	pool := &fakePool{engines: []*fakeEngine{bad, good}}
	ev := New(pool, Config{Depth: 8})

	game := domain.Game{ID: "g1", MovesUCI: ruyMoves}
	moves, err := ev.EvaluateGame(context.Background(), game)
	if err != nil {
		t.Fatalf("EvaluateGame: %v", err)
	}
	if len(moves) != len(ruyMoves) {
		t.Fatalf("plies = %d", len(moves))
	}

	// Ply 2 carries the unavailable sentinel, never a neutral score.
	if !moves[1].Score.Unavailable {
		t.Fatalf("failed ply scored: %+v", moves[1])
	}
	for _, m := range []domain.EvaluatedMove{moves[0], moves[2], moves[5]} {
		if m.Score.Unavailable {
			t.Fatalf("healthy ply unavailable: %+v", m)
		}
	}

	// The wedged session went back with its error and a fresh one
	// finished the game.
	if pool.acquires != 2 {
		t.Fatalf("acquires = %d", pool.acquires)
	}
	foundErr := false
	for _, relErr := range pool.releases {
		if relErr != nil {
			foundErr = true
		}
	}
	if !foundErr {
		t.Fatalf("wedged session released clean: %v", pool.releases)
	}
}

func TestEvaluateGameRejectsIllegalMoves(t *testing.T) {
	pool := &fakePool{engines: []*fakeEngine{steadyEngine(0)}}
	ev := New(pool, Config{Depth: 8})

	game := domain.Game{ID: "bad", MovesUCI: []string{"e2e5"}}
	_, err := ev.EvaluateGame(context.Background(), game)
	if err == nil {
		t.Fatal("illegal move accepted")
	}
	var ee *domain.EvaluationError
	if !errors.As(err, &ee) {
		t.Fatalf("error type %T", err)
	}
}

func TestEvaluateAllExcludesCancelledGames(t *testing.T) {
	pool := &fakePool{engines: []*fakeEngine{steadyEngine(0)}}
	ev := New(pool, Config{Depth: 8, Concurrency: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	games := []domain.Game{
		{ID: "b", MovesUCI: ruyMoves},
		{ID: "a", MovesUCI: ruyMoves},
	}
	traces, excluded, err := ev.EvaluateAll(ctx, games)
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if len(traces) != 0 {
		t.Fatalf("traces = %+v", traces)
	}
	if len(excluded) != 2 || excluded[0] != "a" || excluded[1] != "b" {
		t.Fatalf("excluded = %v", excluded)
	}
}

func TestEvaluateAllKeepsInputOrder(t *testing.T) {
	pool := &fakePool{engines: []*fakeEngine{steadyEngine(15)}}
	ev := New(pool, Config{Depth: 8, Concurrency: 3})

	games := []domain.Game{
		{ID: "z", MovesUCI: ruyMoves},
		{ID: "a", MovesUCI: ruyMoves},
		{ID: "m", MovesUCI: ruyMoves},
	}
	traces, excluded, err := ev.EvaluateAll(context.Background(), games)
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if len(excluded) != 0 {
		t.Fatalf("excluded = %v", excluded)
	}
	if len(traces) != 3 || traces[0].GameID != "z" || traces[1].GameID != "a" || traces[2].GameID != "m" {
		t.Fatalf("trace order = %+v", traces)
	}
}

func TestNormalizeScore(t *testing.T) {
	resp := uci.SearchResponse{ScoreCP: 50}
	if got := NormalizeScore(resp, domain.White); got.Normalized() != 50 {
		t.Fatalf("white stm cp = %d", got.Normalized())
	}
	if got := NormalizeScore(resp, domain.Black); got.Normalized() != -50 {
		t.Fatalf("black stm cp = %d", got.Normalized())
	}

	mate := uci.SearchResponse{ScoreMate: 2}
	if got := NormalizeScore(mate, domain.Black); !got.IsMate() || got.Mate != -2 {
		t.Fatalf("black stm mate = %+v", got)
	}
}
