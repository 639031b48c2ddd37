package resolve

import (
	"regexp"

	"github.com/voicemate/voicemate/internal/vocab"
	"github.com/voicemate/voicemate/pkg/chess"
)

// Pattern pairs a compiled regex over normalized transcript text with a
// builder that turns the submatches into a [Command]. Screens register
// additional patterns on top of the shared set via [WithPatterns].
type Pattern struct {
	// Name is a human-readable label for logging and metrics.
	Name string

	// Regex is matched against the space-joined normalized token text.
	// Submatches are passed to Build.
	Regex *regexp.Regexp

	// Build converts the submatch slice into a Command. Returning ok=false
	// rejects the match and resolution continues with the next pattern.
	Build func(matches []string) (Command, bool)
}

// pieceAlt is the regex alternation of canonical piece names. The normalizer
// has already collapsed homophones, so only canonical names appear here.
const pieceAlt = `(pawn|knight|bishop|rook|queen|king)`

// squarePat matches a spoken square as separate tokens ("e 4") or as the
// single token the ASR sometimes emits ("e4").
const squarePat = `([a-h]) ?([1-8])`

// basePatterns returns the command grammar shared by every screen.
// Parametrized queries extract their parameters from the matched span.
func basePatterns() []Pattern {
	return []Pattern{
		{
			Name:  "repeat",
			Regex: regexp.MustCompile(`^(?:repeat(?: that)?|say (?:that|it) again)$`),
			Build: metaBuilder(MetaRepeat),
		},
		{
			Name:  "resign",
			Regex: regexp.MustCompile(`^(?:i )?resign$`),
			Build: metaBuilder(MetaResign),
		},
		{
			Name:  "peek",
			Regex: regexp.MustCompile(`^(?:peek|show(?: me)?(?: the)? board)$`),
			Build: metaBuilder(MetaPeek),
		},
		{
			Name:  "confirm-yes",
			Regex: regexp.MustCompile(`^(?:yes|yeah|yep|confirm|correct)$`),
			Build: metaBuilder(MetaConfirmYes),
		},
		{
			Name:  "confirm-no",
			Regex: regexp.MustCompile(`^(?:no|nope|cancel|wrong)$`),
			Build: metaBuilder(MetaConfirmNo),
		},
		{
			Name:  "material",
			Regex: regexp.MustCompile(`^(?:material|whats the material(?: balance)?)$`),
			Build: queryBuilder(QueryMaterialBalance),
		},
		{
			Name:  "evaluation",
			Regex: regexp.MustCompile(`^(?:evaluate|evaluation|eval|whats the (?:evaluation|score))$`),
			Build: queryBuilder(QueryEvaluation),
		},
		{
			Name:  "clock",
			Regex: regexp.MustCompile(`^(?:clock|how much time(?: do i have)?(?: left)?|whats on the clock|whats the time)$`),
			Build: queryBuilder(QueryClockRemaining),
		},
		{
			Name:  "last-move",
			Regex: regexp.MustCompile(`^(?:last move|what was the last move|what did (?:you|he|she|they) play)$`),
			Build: queryBuilder(QueryLastMove),
		},
		{
			Name:  "square-contents",
			Regex: regexp.MustCompile(`^whats on ` + squarePat + `$`),
			Build: func(m []string) (Command, bool) {
				sq := chess.MakeSquare(m[1][0], m[2][0])
				if !sq.Valid() {
					return Command{}, false
				}
				return Command{Kind: KindQuery, Query: QuerySquareContents, Square: sq}, true
			},
		},
		{
			Name:  "piece-location",
			Regex: regexp.MustCompile(`^where (?:is|are) my ` + pieceAlt + `s?$`),
			Build: pieceQueryBuilder(QueryPieceLocation),
		},
		{
			Name:  "legal-moves-for",
			Regex: regexp.MustCompile(`^(?:legal|show) moves for(?: my)? ` + pieceAlt + `s?$`),
			Build: pieceQueryBuilder(QueryLegalMovesFor),
		},
	}
}

// metaBuilder returns a Build func producing a fixed meta action.
func metaBuilder(kind MetaKind) func([]string) (Command, bool) {
	return func([]string) (Command, bool) {
		return Command{Kind: KindMeta, Meta: kind}, true
	}
}

// queryBuilder returns a Build func producing a fixed parameterless query.
func queryBuilder(kind QueryKind) func([]string) (Command, bool) {
	return func([]string) (Command, bool) {
		return Command{Kind: KindQuery, Query: kind}, true
	}
}

// pieceQueryBuilder returns a Build func for queries whose single parameter
// is a piece name captured as matches[1].
func pieceQueryBuilder(kind QueryKind) func([]string) (Command, bool) {
	return func(m []string) (Command, bool) {
		p, ok := vocab.Default().Piece(m[1])
		if !ok {
			return Command{}, false
		}
		return Command{Kind: KindQuery, Query: kind, Piece: p}, true
	}
}

// ReconstructionPatterns returns the extra commands the post-game board
// reconstruction screen recognizes on top of the shared grammar.
func ReconstructionPatterns() []Pattern {
	return []Pattern{
		{
			Name:  "clear-board",
			Regex: regexp.MustCompile(`^clear(?: the)? board$`),
			Build: metaBuilder(MetaClearBoard),
		},
		{
			Name:  "switch-color",
			Regex: regexp.MustCompile(`^switch (?:colors?|sides?)$`),
			Build: metaBuilder(MetaSwitchColor),
		},
		{
			Name:  "submit",
			Regex: regexp.MustCompile(`^(?:submit|done|im done|finished)$`),
			Build: metaBuilder(MetaSubmit),
		},
	}
}

// castleRe matches spoken castling. Queenside must be named; a bare
// "castle" means kingside when only one castling move is legal.
var castleRe = regexp.MustCompile(`^castles?(?: (kingside|short|queenside|long))?$`)
