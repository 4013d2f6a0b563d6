package analysis

import (
	"sync"

	chesslib "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

const unknownOpening = "Unknown opening"

// ECO lookup deeper than this never changes the result; capping the
// replay keeps identification cheap for long games.
const openingLookupPlies = 40

var (
	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

func loadECOBook() *opening.BookECO {
	ecoOnce.Do(func() {
		ecoBook = opening.NewBookECO()
	})
	return ecoBook
}

// IdentifyOpening names the opening of a game by longest-prefix ECO
// lookup over its move list: the deepest prefix still in book wins.
// Games that leave book immediately (or whose moves fail to replay)
// fall back to the unknown bucket.
func IdentifyOpening(movesUCI []string) (name, eco string) {
	if len(movesUCI) > openingLookupPlies {
		movesUCI = movesUCI[:openingLookupPlies]
	}

	book := loadECOBook()
	game := chesslib.NewGame()
	var deepest *opening.Opening
	for _, mv := range movesUCI {
		if err := game.PushNotationMove(mv, chesslib.UCINotation{}, nil); err != nil {
			break
		}
		if found := book.Find(game.Moves()); found != nil {
			deepest = found
		}
	}
	if deepest == nil {
		return unknownOpening, ""
	}
	name = deepest.Title()
	if name == "" {
		name = unknownOpening
	}
	return name, deepest.Code()
}
