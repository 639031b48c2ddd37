// Package vocab holds the static spoken-chess vocabulary: the canonical
// tokens the resolver understands and every known spoken variant or ASR
// mishearing that should map onto them.
//
// The table is partitioned the way the normalizer consumes it:
//
//   - compound mishearings — whole phrases the ASR collapses into a single
//     word ("before" for "b four"); these must be expanded before any
//     per-word rule can see their parts.
//   - file letters (a–h) — NATO alphabet and letter-sound variants.
//   - rank words (1–8) — number words and their homophones.
//   - connector-ambiguous words — words that read as a rank digit only when
//     they directly follow a file letter ("for", "to"), and as a connector
//     otherwise.
//   - piece names — including common mishearings ("night" for knight).
//   - connectors — filler words between piece and destination, kept in the
//     token stream and stripped later by the resolver.
//
// The table is immutable after construction. [Default] builds it once per
// process.
package vocab

import (
	"sort"
	"strings"
	"sync"

	"github.com/voicemate/voicemate/pkg/chess"
)

// Compound is a whole-phrase correction applied before any per-word rule.
type Compound struct {
	// Heard is the phrase as the ASR emits it, lowercase.
	Heard string

	// Replacement is the expansion, already in canonical token form.
	Replacement string
}

// Table is the immutable vocabulary lookup structure.
// All methods are safe for concurrent use — the Table is read-only after
// construction.
type Table struct {
	compounds  []Compound
	files      map[string]byte
	ranks      map[string]byte
	connRanks  map[string]byte
	pieces     map[string]chess.PieceType
	connectors map[string]struct{}

	variants      []string
	variantCanon  map[string]string
	pieceVariants map[chess.PieceType][]string
}

var (
	defaultTable     *Table
	defaultTableOnce sync.Once
)

// Default returns the process-wide vocabulary table, building it on first
// call. Subsequent calls return the same pointer.
func Default() *Table {
	defaultTableOnce.Do(func() {
		defaultTable = build()
	})
	return defaultTable
}

// build assembles the English vocabulary table.
func build() *Table {
	t := &Table{
		compounds: []Compound{
			// Longest phrases first so overlapping expansions cannot clip
			// each other.
			{Heard: "be for", Replacement: "b 4"},
			{Heard: "see for", Replacement: "c 4"},
			{Heard: "before", Replacement: "b 4"},
			{Heard: "befour", Replacement: "b 4"},
			{Heard: "anyone", Replacement: "e 1"},
			{Heard: "even", Replacement: "e 7"},
		},
		files: map[string]byte{
			"a": 'a', "ay": 'a', "eh": 'a', "alpha": 'a',
			"b": 'b', "bee": 'b', "be": 'b', "bravo": 'b',
			"c": 'c', "see": 'c', "sea": 'c', "charlie": 'c',
			"d": 'd', "dee": 'd', "delta": 'd',
			"e": 'e', "ee": 'e', "echo": 'e',
			"f": 'f', "ef": 'f', "eff": 'f', "foxtrot": 'f',
			"g": 'g', "gee": 'g', "jee": 'g', "golf": 'g',
			"h": 'h', "aitch": 'h', "ache": 'h', "each": 'h', "hotel": 'h',
		},
		ranks: map[string]byte{
			"1": '1', "one": '1', "won": '1',
			"2": '2', "two": '2',
			"3": '3', "three": '3', "tree": '3', "free": '3',
			"4": '4', "four": '4',
			"5": '5', "five": '5',
			"6": '6', "six": '6', "sicks": '6',
			"7": '7', "seven": '7',
			"8": '8', "eight": '8', "ate": '8',
		},
		// Words that are a rank digit only when they directly follow a file
		// letter, and ordinary connector words everywhere else.
		connRanks: map[string]byte{
			"for":  '4',
			"fore": '4',
			"to":   '2',
			"too":  '2',
		},
		pieces: map[string]chess.PieceType{
			"pawn": chess.Pawn, "pon": chess.Pawn, "prawn": chess.Pawn,
			"knight": chess.Knight, "night": chess.Knight, "nite": chess.Knight,
			"bishop": chess.Bishop,
			"rook":   chess.Rook, "rock": chess.Rook, "brook": chess.Rook, "ruck": chess.Rook,
			"queen": chess.Queen,
			"king":  chess.King,
		},
		connectors: map[string]struct{}{
			"to": {}, "too": {}, "for": {}, "fore": {},
			"takes": {}, "take": {}, "captures": {}, "capture": {},
			"on": {}, "at": {}, "the": {}, "moves": {}, "move": {},
			"goes": {}, "go": {},
		},
	}

	// Compounds: longest heard phrase first.
	sort.SliceStable(t.compounds, func(i, j int) bool {
		return len(t.compounds[i].Heard) > len(t.compounds[j].Heard)
	})

	// Build the flat variant index used by the phonetic fallback and the
	// ASR keyword-boost hints.
	t.variantCanon = make(map[string]string)
	add := func(variant, canonical string) {
		if _, dup := t.variantCanon[variant]; dup {
			return
		}
		t.variantCanon[variant] = canonical
		t.variants = append(t.variants, variant)
	}
	for w, f := range t.files {
		add(w, string(f))
	}
	for w, r := range t.ranks {
		add(w, string(r))
	}
	t.pieceVariants = make(map[chess.PieceType][]string)
	for w, p := range t.pieces {
		add(w, p.String())
		t.pieceVariants[p] = append(t.pieceVariants[p], w)
	}
	for p := range t.pieceVariants {
		sort.Strings(t.pieceVariants[p])
	}
	sort.Strings(t.variants)

	return t
}

// Compounds returns the whole-phrase corrections, longest phrase first.
// The returned slice must not be mutated.
func (t *Table) Compounds() []Compound { return t.compounds }

// File resolves a spoken word to a file letter ('a'–'h').
func (t *Table) File(word string) (byte, bool) {
	f, ok := t.files[strings.ToLower(word)]
	return f, ok
}

// Rank resolves a spoken word to a rank digit ('1'–'8'). Words that are
// ambiguous with connectors ("for", "to") are not resolved here — see
// [Table.ConnectorRank].
func (t *Table) Rank(word string) (byte, bool) {
	r, ok := t.ranks[strings.ToLower(word)]
	return r, ok
}

// ConnectorRank resolves a connector-ambiguous word to a rank digit. The
// caller decides, from token context, whether the digit reading applies.
func (t *Table) ConnectorRank(word string) (byte, bool) {
	r, ok := t.connRanks[strings.ToLower(word)]
	return r, ok
}

// Piece resolves a spoken word (including known mishearings) to a piece type.
func (t *Table) Piece(word string) (chess.PieceType, bool) {
	p, ok := t.pieces[strings.ToLower(word)]
	return p, ok
}

// IsConnector reports whether word is a connector ("to", "takes", …).
func (t *Table) IsConnector(word string) bool {
	_, ok := t.connectors[strings.ToLower(word)]
	return ok
}

// PieceVariants returns every spoken variant of the given piece type,
// sorted. The returned slice must not be mutated.
func (t *Table) PieceVariants(p chess.PieceType) []string {
	return t.pieceVariants[p]
}

// Variants returns every known spoken variant across all partitions,
// sorted. Used as the candidate list for the normalizer's phonetic
// fallback pass. The returned slice must not be mutated.
func (t *Table) Variants() []string { return t.variants }

// Canonical returns the canonical token for a known variant: the file
// letter, the rank digit, or the piece name. ok is false for connectors
// and unknown words.
func (t *Table) Canonical(variant string) (string, bool) {
	c, ok := t.variantCanon[strings.ToLower(variant)]
	return c, ok
}

// KeywordHints returns the vocabulary words worth boosting in the ASR
// engine's recognition hints: piece names and the fixed command keywords.
// Single letters and digits are excluded — boosting those degrades general
// recognition.
func (t *Table) KeywordHints() []string {
	hints := []string{
		"pawn", "knight", "bishop", "rook", "queen", "king",
		"takes", "captures", "castle", "kingside", "queenside",
		"repeat", "resign", "material", "evaluate", "clock",
		"legal", "moves", "cancel", "undo", "submit",
	}
	return hints
}
