// Package engine evaluates whole games ply by ply against a pooled
// UCI engine, producing the per-move traces the classifier consumes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	chesslib "github.com/corentings/chess/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/chess-daily-coach/internal/domain"
	"github.com/park285/chess-daily-coach/internal/engine/uci"
	"github.com/park285/chess-daily-coach/internal/obslog"
)

// Engine is the per-session search surface; *uci.Session satisfies it
// and tests substitute a fake.
type Engine interface {
	Search(ctx context.Context, req uci.SearchRequest) (uci.SearchResponse, error)
	NewGame(ctx context.Context) error
}

// Pool hands out Engines with exclusive checkout.
type Pool interface {
	Acquire(ctx context.Context) (Engine, error)
	Release(e Engine, err error)
	Close() error
}

type Config struct {
	Depth       int
	MoveTimeMS  int
	Concurrency int
}

type Evaluator struct {
	pool Pool
	cfg  Config
}

func New(pool Pool, cfg Config) *Evaluator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Evaluator{pool: pool, cfg: cfg}
}

// NewWithBinary spawns a real engine pool. A binary that cannot be
// located or started is fatal for the run.
func NewWithBinary(binaryPath string, poolSize int, opt uci.Options, cfg Config) (*Evaluator, error) {
	pool, err := uci.NewPool(uci.PoolConfig{BinaryPath: binaryPath, Capacity: poolSize, Options: opt})
	if err != nil {
		return nil, &domain.EvaluationError{Op: "start engine pool", Fatal: true, Err: err}
	}
	return New(&uciPool{pool: pool}, cfg), nil
}

func (e *Evaluator) Close() error { return e.pool.Close() }

// uciPool adapts the concrete session pool to the Engine interface.
type uciPool struct {
	pool *uci.Pool
}

func (p *uciPool) Acquire(ctx context.Context) (Engine, error) {
	return p.pool.Acquire(ctx)
}

func (p *uciPool) Release(e Engine, err error) {
	if sess, ok := e.(*uci.Session); ok {
		p.pool.Release(sess, err)
		return
	}
	p.pool.Release(nil, err)
}

func (p *uciPool) Close() error { return p.pool.Close() }

// GameTrace is the evaluation outcome for one game.
type GameTrace struct {
	GameID string
	Moves  []domain.EvaluatedMove
}

// EvaluateAll fans games out across the engine pool with bounded
// concurrency. Games cut short by context cancellation are returned in
// excluded rather than with partial traces: a partially evaluated game
// would skew rate figures invisibly. Order of the returned traces
// follows the input game order.
func (e *Evaluator) EvaluateAll(ctx context.Context, games []domain.Game) (traces []GameTrace, excluded []string, err error) {
	var mu sync.Mutex
	done := make(map[string][]domain.EvaluatedMove, len(games))
	var cut []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for _, game := range games {
		game := game
		g.Go(func() error {
			moves, evalErr := e.EvaluateGame(gctx, game)
			if evalErr != nil {
				if errors.Is(evalErr, context.Canceled) || errors.Is(evalErr, context.DeadlineExceeded) {
					mu.Lock()
					cut = append(cut, game.ID)
					mu.Unlock()
					return nil
				}
				return evalErr
			}
			mu.Lock()
			done[game.ID] = moves
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for _, game := range games {
		if moves, ok := done[game.ID]; ok {
			traces = append(traces, GameTrace{GameID: game.ID, Moves: moves})
		}
	}
	sort.Strings(cut)
	return traces, cut, nil
}

// EvaluateGame scores the position after every ply of one game, in
// strict ply order, on a single checked-out session. Every ply gets an
// entry: positions the engine could not score carry the unavailable
// sentinel, never a fabricated neutral value.
func (e *Evaluator) EvaluateGame(ctx context.Context, game domain.Game) ([]domain.EvaluatedMove, error) {
	material, terminal, err := replayGame(game.MovesUCI)
	if err != nil {
		return nil, &domain.EvaluationError{Op: "replay game " + game.ID, Err: err}
	}

	sess, err := e.pool.Acquire(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &domain.EvaluationError{Op: "acquire engine", Fatal: true, Err: err}
	}
	var releaseErr error
	defer func() {
		e.pool.Release(sess, releaseErr)
	}()

	if err := sess.NewGame(ctx); err != nil {
		releaseErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &domain.EvaluationError{Op: "reset engine", Err: err}
	}

	out := make([]domain.EvaluatedMove, 0, len(game.MovesUCI))
	broken := false

	for ply := 1; ply <= len(game.MovesUCI); ply++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		entry := domain.EvaluatedMove{
			Ply:           ply,
			MoveUCI:       game.MovesUCI[ply-1],
			Mover:         domain.MoverAt(ply),
			MaterialCount: material[ply],
		}
		if ply-1 < len(game.MovesSAN) {
			entry.MoveSAN = game.MovesSAN[ply-1]
		}

		if broken {
			entry.Score = domain.UnavailableScore()
			out = append(out, entry)
			continue
		}

		// The final position of a decided game is terminal; the
		// engine has nothing to search there.
		if ply == len(game.MovesUCI) && terminal != terminalNone {
			entry.Score = terminalScore(terminal, ply)
			out = append(out, entry)
			continue
		}

		start := time.Now()
		resp, searchErr := e.searchWithRetry(ctx, sess, game.MovesUCI[:ply])
		if searchErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			obslog.L().Warn("position evaluation unavailable",
				zap.String("game", game.ID),
				zap.Int("ply", ply),
				zap.Error(searchErr))
			entry.Score = domain.UnavailableScore()
			out = append(out, entry)

			// The session may be wedged mid-protocol; swap it out
			// for the remaining plies.
			e.pool.Release(sess, searchErr)
			sess, err = e.pool.Acquire(ctx)
			if err != nil {
				sess = nil
				broken = true
			} else if err := sess.NewGame(ctx); err != nil {
				releaseErr = err
				broken = true
			}
			continue
		}

		entry.Score = NormalizeScore(resp, sideToMoveAfter(ply))
		entry.BestMoveUCI = resp.BestMove
		entry.Depth = resp.Depth
		entry.SearchTime = time.Since(start)
		out = append(out, entry)
	}

	return out, nil
}

func (e *Evaluator) searchWithRetry(ctx context.Context, sess Engine, moves []string) (uci.SearchResponse, error) {
	resp, err := sess.Search(ctx, uci.SearchRequest{Moves: moves, Limits: e.limits()})
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return uci.SearchResponse{}, ctx.Err()
	}
	resp, err2 := sess.Search(ctx, uci.SearchRequest{Moves: moves, Limits: e.reducedLimits()})
	if err2 == nil {
		return resp, nil
	}
	return uci.SearchResponse{}, fmt.Errorf("search failed after reduced-budget retry: %w", err2)
}

func (e *Evaluator) limits() uci.Limits {
	return uci.Limits{Depth: e.cfg.Depth, MoveTimeMillis: e.cfg.MoveTimeMS}
}

// reducedLimits halves the budget for the single local retry.
func (e *Evaluator) reducedLimits() uci.Limits {
	l := e.limits()
	if l.MoveTimeMillis > 0 {
		l.MoveTimeMillis = l.MoveTimeMillis / 2
		if l.MoveTimeMillis < 100 {
			l.MoveTimeMillis = 100
		}
		return l
	}
	l.Depth = l.Depth / 2
	if l.Depth < 4 {
		l.Depth = 4
	}
	return l
}

type terminalKind int

const (
	terminalNone terminalKind = iota
	terminalCheckmate
	terminalDraw
)

// replayGame validates the move sequence and returns the combined
// non-pawn material after each ply (index 0 = starting position) plus
// the terminal state of the final position.
func replayGame(movesUCI []string) ([]int, terminalKind, error) {
	g := chesslib.NewGame()
	notation := chesslib.UCINotation{}

	material := make([]int, 0, len(movesUCI)+1)
	material = append(material, materialCount(g))

	for _, mv := range movesUCI {
		if err := g.PushNotationMove(mv, notation, nil); err != nil {
			return nil, terminalNone, fmt.Errorf("apply move %q: %w", mv, err)
		}
		material = append(material, materialCount(g))
	}

	switch g.Method() {
	case chesslib.Checkmate:
		return material, terminalCheckmate, nil
	}
	if g.Outcome() == chesslib.Draw {
		return material, terminalDraw, nil
	}
	return material, terminalNone, nil
}

var pieceValues = map[chesslib.PieceType]int{
	chesslib.Knight: 3,
	chesslib.Bishop: 3,
	chesslib.Rook:   5,
	chesslib.Queen:  9,
}

func materialCount(g *chesslib.Game) int {
	total := 0
	for _, piece := range g.Position().Board().SquareMap() {
		total += pieceValues[piece.Type()]
	}
	return total
}

// terminalScore synthesizes the final-position score: checkmate is a
// mate-distance score for the side that delivered it, any draw is a
// dead-even centipawn zero.
func terminalScore(kind terminalKind, finalPly int) domain.Score {
	if kind == terminalCheckmate {
		if domain.MoverAt(finalPly) == domain.White {
			return domain.MateScore(1)
		}
		return domain.MateScore(-1)
	}
	return domain.CentipawnScore(0)
}
