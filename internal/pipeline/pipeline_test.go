package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/park285/chess-daily-coach/internal/analysis"
	"github.com/park285/chess-daily-coach/internal/domain"
	"github.com/park285/chess-daily-coach/internal/engine"
	"github.com/park285/chess-daily-coach/internal/report"
	"github.com/park285/chess-daily-coach/internal/report/msgcat"
	"github.com/park285/chess-daily-coach/internal/state"
)

type fakeFetcher struct {
	games []domain.Game
	err   error
	gotWM *state.Watermark
}

func (f *fakeFetcher) GamesSince(ctx context.Context, username string, since, until time.Time, wm *state.Watermark) ([]domain.Game, error) {
	f.gotWM = wm
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.games, f.err
}

type fakeEvaluator struct {
	traces   []engine.GameTrace
	excluded []string
	err      error
}

func (f *fakeEvaluator) EvaluateAll(ctx context.Context, games []domain.Game) ([]engine.GameTrace, []string, error) {
	return f.traces, f.excluded, f.err
}

type fakeSender struct {
	reports []domain.Report
	images  [][]byte
	sendErr error
}

func (f *fakeSender) SendReport(ctx context.Context, rep domain.Report) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.reports = append(f.reports, rep)
	return nil
}

func (f *fakeSender) SendImage(ctx context.Context, png []byte) error {
	f.images = append(f.images, png)
	return nil
}

type fakeStore struct {
	wm      *state.Watermark
	loadErr error
	saved   []state.Watermark
}

func (f *fakeStore) Load(ctx context.Context) (*state.Watermark, error) { return f.wm, f.loadErr }
func (f *fakeStore) Save(ctx context.Context, wm state.Watermark) error {
	f.saved = append(f.saved, wm)
	return nil
}

func testSynth(t *testing.T) *report.Synthesizer {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return report.NewSynthesizer(cat)
}

func testConfig() Config {
	return Config{
		Username:    "coach",
		Lookback:    24 * time.Hour,
		RunTimeout:  time.Minute,
		Classify:    analysis.DefaultConfig(),
		TopBlunders: 3,
	}
}

var ruyMoves = []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1b5", "a7a6"}

func ruyGame(id string, endedAt time.Time) domain.Game {
	return domain.Game{
		ID:       id,
		Color:    domain.White,
		Result:   domain.ResultLoss,
		MovesUCI: ruyMoves,
		MovesSAN: []string{"e4", "e5", "Nf3", "Nc6", "Bb5", "a6"},
		EndedAt:  endedAt,
	}
}

// blunderTrace scores the game so White's fifth ply throws away the
// advantage.
func blunderTrace(id string) engine.GameTrace {
	scores := []domain.Score{
		domain.CentipawnScore(30),
		domain.CentipawnScore(25),
		domain.CentipawnScore(30),
		domain.CentipawnScore(25),
		domain.CentipawnScore(-405),
		domain.CentipawnScore(-395),
	}
	moves := make([]domain.EvaluatedMove, 0, len(scores))
	for i, s := range scores {
		moves = append(moves, domain.EvaluatedMove{
			Ply:           i + 1,
			Mover:         domain.MoverAt(i + 1),
			MoveUCI:       ruyMoves[i],
			Score:         s,
			MaterialCount: 62,
		})
	}
	return engine.GameTrace{GameID: id, Moves: moves}
}

func TestRunDeliversReportAndAdvancesWatermark(t *testing.T) {
	ended := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	fetch := &fakeFetcher{games: []domain.Game{ruyGame("g1", ended)}}
	eval := &fakeEvaluator{traces: []engine.GameTrace{blunderTrace("g1")}}
	send := &fakeSender{}
	store := &fakeStore{}

	p := New(testConfig(), fetch, eval, testSynth(t), send, store)
	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != OutcomeReport {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if len(send.reports) != 1 {
		t.Fatalf("reports sent = %d", len(send.reports))
	}
	text := send.reports[0].Render()
	if !strings.Contains(text, "1 game analyzed") {
		t.Fatalf("report text:\n%s", text)
	}
	if !strings.Contains(text, "4.3 pawns") {
		t.Fatalf("blunder swing missing:\n%s", text)
	}

	if len(store.saved) != 1 {
		t.Fatalf("watermark saves = %d", len(store.saved))
	}
	if !store.saved[0].LastEndTime.Equal(ended) {
		t.Fatalf("watermark = %+v", store.saved[0])
	}
}

func TestRunEmptyWindow(t *testing.T) {
	fetch := &fakeFetcher{}
	send := &fakeSender{}
	store := &fakeStore{}

	p := New(testConfig(), fetch, &fakeEvaluator{}, testSynth(t), send, store)
	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != OutcomeEmpty {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if len(send.reports) != 1 || !strings.Contains(send.reports[0].Render(), "No new games") {
		t.Fatalf("reports = %+v", send.reports)
	}
	if len(store.saved) != 0 {
		t.Fatalf("watermark advanced with no games: %+v", store.saved)
	}
}

func TestRunDegradesRetrievalFailure(t *testing.T) {
	fetch := &fakeFetcher{err: &domain.RetrievalError{Op: "fetch archive", Err: errors.New("boom")}}
	send := &fakeSender{}

	p := New(testConfig(), fetch, &fakeEvaluator{}, testSynth(t), send, nil)
	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != OutcomeEmpty {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if len(send.reports) != 1 || !strings.Contains(send.reports[0].Render(), "Game retrieval failed") {
		t.Fatalf("degradation note missing: %+v", send.reports)
	}
}

func TestRunDeliveryFailureKeepsWatermark(t *testing.T) {
	ended := time.Now().UTC().Add(-time.Hour)
	fetch := &fakeFetcher{games: []domain.Game{ruyGame("g1", ended)}}
	eval := &fakeEvaluator{traces: []engine.GameTrace{blunderTrace("g1")}}
	send := &fakeSender{sendErr: &domain.DeliveryError{Op: "send message", Err: errors.New("relay down")}}
	store := &fakeStore{}

	p := New(testConfig(), fetch, eval, testSynth(t), send, store)
	res, err := p.Run(context.Background())
	if err == nil {
		t.Fatal("delivery failure swallowed")
	}
	if res.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if len(store.saved) != 0 {
		t.Fatalf("watermark advanced after failed delivery: %+v", store.saved)
	}
}

func TestRunExcludedGamesStayOutOfWatermark(t *testing.T) {
	ended := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	late := ended.Add(30 * time.Minute)
	fetch := &fakeFetcher{games: []domain.Game{ruyGame("g1", ended), ruyGame("g2", late)}}
	eval := &fakeEvaluator{traces: []engine.GameTrace{blunderTrace("g1")}, excluded: []string{"g2"}}
	send := &fakeSender{}
	store := &fakeStore{}

	p := New(testConfig(), fetch, eval, testSynth(t), send, store)
	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Summary.ExcludedGames != 1 {
		t.Fatalf("excluded = %d", res.Summary.ExcludedGames)
	}
	if !strings.Contains(send.reports[0].Render(), "1 game skipped: analysis ran out of time") {
		t.Fatalf("timeout note missing:\n%s", send.reports[0].Render())
	}
	if len(store.saved) != 1 || !store.saved[0].LastEndTime.Equal(ended) {
		t.Fatalf("watermark = %+v", store.saved)
	}
}

func TestRunClassificationViolationAborts(t *testing.T) {
	ended := time.Now().UTC().Add(-time.Hour)
	tr := blunderTrace("g1")
	tr.Moves = tr.Moves[:3] // shorter than the game
	fetch := &fakeFetcher{games: []domain.Game{ruyGame("g1", ended)}}
	eval := &fakeEvaluator{traces: []engine.GameTrace{tr}}
	send := &fakeSender{}

	p := New(testConfig(), fetch, eval, testSynth(t), send, nil)
	res, err := p.Run(context.Background())
	if err == nil {
		t.Fatal("broken trace accepted")
	}
	var ce *domain.ClassificationError
	if !errors.As(err, &ce) {
		t.Fatalf("error type %T", err)
	}
	if res.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if len(send.reports) != 0 {
		t.Fatalf("report sent from corrupt data: %+v", send.reports)
	}
}

func TestRunAttachesBlunderImage(t *testing.T) {
	ended := time.Now().UTC().Add(-time.Hour)
	fetch := &fakeFetcher{games: []domain.Game{ruyGame("g1", ended)}}
	eval := &fakeEvaluator{traces: []engine.GameTrace{blunderTrace("g1")}}
	send := &fakeSender{}

	cfg := testConfig()
	cfg.AttachBoardImage = true
	p := New(cfg, fetch, eval, testSynth(t), send, nil)
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(send.images) != 1 {
		t.Fatalf("images sent = %d", len(send.images))
	}
}

func TestRunPassesWatermarkToFetcher(t *testing.T) {
	wm := &state.Watermark{LastEndTime: time.Now().UTC().Add(-2 * time.Hour), SeenIDs: []string{"old"}}
	fetch := &fakeFetcher{}
	store := &fakeStore{wm: wm}

	p := New(testConfig(), fetch, &fakeEvaluator{}, testSynth(t), &fakeSender{}, store)
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fetch.gotWM != wm {
		t.Fatalf("fetcher watermark = %+v", fetch.gotWM)
	}
}
