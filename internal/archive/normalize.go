package archive

import (
	"strings"
	"time"

	chesslib "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/park285/chess-daily-coach/internal/domain"
	"github.com/park285/chess-daily-coach/internal/obslog"
)

// normalizeGame maps one archive entry onto a canonical Game record.
// Variant games, games without movetext, and games the player did not
// take part in are dropped.
func normalizeGame(ag archiveGame, username string) (domain.Game, bool) {
	if ag.Rules != "" && ag.Rules != "chess" {
		return domain.Game{}, false
	}

	var color domain.Color
	var me, opp archivePlayer
	switch {
	case strings.EqualFold(ag.White.Username, username):
		color, me, opp = domain.White, ag.White, ag.Black
	case strings.EqualFold(ag.Black.Username, username):
		color, me, opp = domain.Black, ag.Black, ag.White
	default:
		return domain.Game{}, false
	}

	sans := MovetextSAN(ag.PGN)
	if len(sans) == 0 {
		return domain.Game{}, false
	}
	ucis, err := replaySAN(sans)
	if err != nil {
		obslog.L().Warn("skipping game with unparseable movetext",
			zap.String("url", ag.URL), zap.Error(err))
		return domain.Game{}, false
	}

	return domain.Game{
		ID:             gameIDFromURL(ag.URL),
		Color:          color,
		Opponent:       opp.Username,
		OpponentRating: opp.Rating,
		TimeControl:    ag.TimeControl,
		TimeClass:      ag.TimeClass,
		MovesUCI:       ucis,
		MovesSAN:       sans,
		Result:         resultFor(me.Result),
		EndReason:      endReason(me.Result, opp.Result),
		EndedAt:        time.Unix(ag.EndTime, 0).UTC(),
	}, true
}

// replaySAN pushes the SAN sequence through a fresh game and returns
// the same moves in UCI notation.
func replaySAN(sans []string) ([]string, error) {
	game := chesslib.NewGame()
	notation := chesslib.AlgebraicNotation{}
	for _, san := range sans {
		if err := game.PushNotationMove(san, notation, nil); err != nil {
			return nil, err
		}
	}
	moves := game.Moves()
	ucis := make([]string, 0, len(moves))
	for _, mv := range moves {
		ucis = append(ucis, mv.String())
	}
	return ucis, nil
}

// MovetextSAN extracts the SAN tokens from a PGN body: tag pairs,
// comments, clock annotations, NAGs, move numbers, and the result
// token are stripped.
func MovetextSAN(pgn string) []string {
	var sans []string
	inBrace := false
	for _, line := range strings.Split(pgn, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "[") || strings.HasPrefix(line, "%") {
			continue
		}
		for _, tok := range strings.Fields(line) {
			if inBrace {
				if strings.HasSuffix(tok, "}") {
					inBrace = false
				}
				continue
			}
			if strings.HasPrefix(tok, "{") {
				if !strings.HasSuffix(tok, "}") {
					inBrace = true
				}
				continue
			}
			if strings.HasPrefix(tok, ";") {
				break
			}
			if strings.HasPrefix(tok, "$") {
				continue
			}
			if isResultToken(tok) {
				continue
			}
			// "12." / "12..." prefixes, possibly glued to the move.
			tok = stripMoveNumber(tok)
			if tok == "" {
				continue
			}
			sans = append(sans, tok)
		}
	}
	return sans
}

func stripMoveNumber(tok string) string {
	i := 0
	for i < len(tok) && tok[i] >= '0' && tok[i] <= '9' {
		i++
	}
	if i == 0 {
		return tok
	}
	rest := tok[i:]
	for strings.HasPrefix(rest, ".") {
		rest = rest[1:]
	}
	return rest
}

func isResultToken(tok string) bool {
	switch tok {
	case "1-0", "0-1", "1/2-1/2", "*":
		return true
	default:
		return false
	}
}

func gameIDFromURL(url string) string {
	url = strings.TrimRight(strings.TrimSpace(url), "/")
	if url == "" {
		return ""
	}
	if idx := strings.LastIndex(url, "/"); idx >= 0 {
		return url[idx+1:]
	}
	return url
}

func resultFor(code string) domain.Result {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "win":
		return domain.ResultWin
	case "agreed", "repetition", "stalemate", "insufficient", "50move", "timevsinsufficient":
		return domain.ResultDraw
	default:
		return domain.ResultLoss
	}
}

// endReason prefers the decisive side's result code: the API reports
// "win" for the winner and the reason on the loser's side.
func endReason(mine, theirs string) string {
	mine = strings.ToLower(strings.TrimSpace(mine))
	theirs = strings.ToLower(strings.TrimSpace(theirs))
	if mine == "win" {
		return theirs
	}
	return mine
}
