package resolve

import (
	"strings"

	"github.com/voicemate/voicemate/internal/vocab"
	"github.com/voicemate/voicemate/pkg/chess"
)

// Option is a functional option for configuring a [Resolver].
type Option func(*Resolver)

// WithTable sets the vocabulary table. Default: [vocab.Default].
func WithTable(t *vocab.Table) Option {
	return func(r *Resolver) { r.table = t }
}

// WithPatterns appends screen-specific command patterns. They are tried
// after the shared grammar, in the order given.
func WithPatterns(patterns ...Pattern) Option {
	return func(r *Resolver) { r.patterns = append(r.patterns, patterns...) }
}

// Resolver maps normalized token sequences onto commands and moves.
// All methods are safe for concurrent use — the Resolver is read-only after
// construction; per-call state lives entirely on the stack.
type Resolver struct {
	table    *vocab.Table
	patterns []Pattern
}

// New returns a Resolver with the shared command grammar plus any
// screen-specific patterns from the options.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		table:    vocab.Default(),
		patterns: basePatterns(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve maps tokens onto exactly one [Outcome]. It is a pure function of
// (tokens, legalMoves, pending) and never blocks.
//
// Priority order, first match wins:
//
//  1. A non-nil pending disambiguation consumes the tokens as a bare
//     file/rank disambiguator; anything that does not uniquely narrow the
//     candidates is Unmatched (the caller decides whether to re-prompt or
//     let the timeout expire).
//  2. Fixed command patterns (shared grammar + screen extras).
//  3. Bare coordinate — exactly a file+rank with no other tokens, valid
//     only as a pawn move to that square.
//  4. Direct-notation containment of each legal move's canonical SAN in
//     the stripped, concatenated token string.
//  5. Piece + destination: a token consistent with the moving piece type
//     and the destination's file and rank (as two tokens or concatenated).
//
// Moves matched by 4 and 5 feed one combined candidate set: zero →
// Unmatched, one → Resolved, more → Ambiguous (after an origin-narrowing
// attempt, so "rook a d one" resolves directly instead of re-asking).
func (r *Resolver) Resolve(tokens []string, legalMoves []string, pending *Pending) Outcome {
	if pending != nil {
		return r.resolvePending(tokens, pending)
	}
	if len(tokens) == 0 {
		return unmatched()
	}

	text := strings.Join(tokens, " ")

	// Step 2: command grammar.
	for _, p := range r.patterns {
		m := p.Regex.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if cmd, ok := p.Build(m); ok {
			return resolved(cmd)
		}
	}

	stripped := r.strip(tokens)
	if len(stripped) == 0 {
		return unmatched()
	}

	// Castling is spoken, never written, so it cannot go through the
	// notation passes below.
	if m := castleRe.FindStringSubmatch(text); m != nil {
		return resolveCastle(m[1], legalMoves)
	}

	// Step 3: bare coordinate → pawn move.
	if sq, ok := bareCoordinate(stripped); ok {
		return resolveBareCoordinate(sq, legalMoves)
	}

	// Steps 4 + 5: combined candidate set.
	spokenPiece := r.spokenPiece(stripped)
	candidates := r.collectCandidates(stripped, spokenPiece, legalMoves)

	switch len(candidates) {
	case 0:
		return unmatched()
	case 1:
		return resolved(MoveCommand(candidates[0]))
	}

	// Same-utterance origin narrowing: the speaker may have already named
	// the origin file ("rook a d one").
	if san, ok := narrowByOrigin(candidates, stripped); ok {
		return resolved(MoveCommand(san))
	}

	// Pawn moves never stay ambiguous; prefer the plain push if present.
	if chess.MovePiece(candidates[0]) == chess.Pawn {
		for _, c := range candidates {
			if chess.Origin(c) == "" {
				return resolved(MoveCommand(c))
			}
		}
		return resolved(MoveCommand(candidates[0]))
	}

	return Outcome{
		Kind:       Ambiguous,
		Candidates: candidates,
		Piece:      chess.MovePiece(candidates[0]),
		Square:     chess.Destination(candidates[0]),
	}
}

// resolvePending narrows an outstanding candidate set with a follow-up
// utterance naming the origin file, rank, or square.
func (r *Resolver) resolvePending(tokens []string, pending *Pending) Outcome {
	for _, tok := range r.strip(tokens) {
		// Skip a repeated piece name ("rook a" → "a" carries the signal).
		if _, isPiece := r.table.Piece(tok); isPiece {
			continue
		}
		if !isOriginToken(tok) {
			continue
		}
		var narrowed []string
		for _, c := range pending.Candidates {
			if originMatches(chess.Origin(c), tok) {
				narrowed = append(narrowed, c)
			}
		}
		if len(narrowed) == 1 {
			return resolved(MoveCommand(narrowed[0]))
		}
	}
	return unmatched()
}

// strip removes connector words from the token sequence.
func (r *Resolver) strip(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if r.table.IsConnector(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// spokenPiece returns the piece type named anywhere in the stripped tokens,
// accepting the vocabulary's homophones (so a stray "night" that escaped
// normalization still counts as a knight).
func (r *Resolver) spokenPiece(stripped []string) chess.PieceType {
	for _, t := range stripped {
		if p, ok := r.table.Piece(t); ok {
			return p
		}
	}
	return chess.NoPiece
}

// collectCandidates runs the direct-notation and piece+destination passes
// over the legal-move list and returns the union, preserving legal-move
// order. When the speaker named a piece, direct-notation containment is
// restricted to moves of that piece so a pawn move's short canonical form
// cannot leak into another piece's utterance.
func (r *Resolver) collectCandidates(stripped []string, spokenPiece chess.PieceType, legalMoves []string) []string {
	concat := strings.Join(stripped, "")
	var out []string
	for _, m := range legalMoves {
		if chess.IsCastle(m) {
			continue
		}
		if spokenPiece != chess.NoPiece && chess.MovePiece(m) != spokenPiece {
			continue
		}
		if r.directMatch(concat, m) || r.pieceDestMatch(stripped, spokenPiece, m) {
			out = append(out, m)
		}
	}
	return out
}

// directMatch reports whether the canonical SAN of m is contained in the
// stripped, concatenated token string.
func (r *Resolver) directMatch(concat, m string) bool {
	c := chess.Canonical(m)
	return c != "" && strings.Contains(concat, c)
}

// pieceDestMatch reports whether the stripped tokens name both the moving
// piece of m and its destination square.
func (r *Resolver) pieceDestMatch(stripped []string, spokenPiece chess.PieceType, m string) bool {
	if spokenPiece == chess.NoPiece || chess.MovePiece(m) != spokenPiece {
		return false
	}
	dst := chess.Destination(m)
	if !dst.Valid() {
		return false
	}
	return containsSquare(stripped, dst)
}

// containsSquare reports whether tokens contain sq as an adjacent
// file+rank pair or as one concatenated token.
func containsSquare(tokens []string, sq chess.Square) bool {
	file, rank := string(sq.File()), string(sq.Rank())
	for i, t := range tokens {
		if t == string(sq) {
			return true
		}
		if t == file && i+1 < len(tokens) && tokens[i+1] == rank {
			return true
		}
	}
	return false
}

// bareCoordinate reports whether stripped is exactly one square: either a
// single concatenated token ("e4") or a file token followed by a rank token.
func bareCoordinate(stripped []string) (chess.Square, bool) {
	switch len(stripped) {
	case 1:
		t := stripped[0]
		if len(t) == 2 {
			if sq := chess.MakeSquare(t[0], t[1]); sq.Valid() {
				return sq, true
			}
		}
	case 2:
		if len(stripped[0]) == 1 && len(stripped[1]) == 1 {
			if sq := chess.MakeSquare(stripped[0][0], stripped[1][0]); sq.Valid() {
				return sq, true
			}
		}
	}
	return "", false
}

// resolveBareCoordinate applies "move a pawn to this square" semantics: the
// bare coordinate is valid only as a pawn move. The plain push (no origin
// hint) wins over captures, so pawns never trigger ambiguity.
func resolveBareCoordinate(sq chess.Square, legalMoves []string) Outcome {
	var pawnMoves []string
	for _, m := range legalMoves {
		if chess.MovePiece(m) == chess.Pawn && chess.Destination(m) == sq {
			pawnMoves = append(pawnMoves, m)
		}
	}
	switch len(pawnMoves) {
	case 0:
		return unmatched()
	case 1:
		return resolved(MoveCommand(pawnMoves[0]))
	}
	for _, m := range pawnMoves {
		if chess.Origin(m) == "" {
			return resolved(MoveCommand(m))
		}
	}
	return resolved(MoveCommand(pawnMoves[0]))
}

// resolveCastle picks the legal castling move matching the spoken side.
// With no side named, a lone legal castling move is taken; two legal
// castling moves without a side stay unmatched rather than guessing.
func resolveCastle(side string, legalMoves []string) Outcome {
	var castles []string
	for _, m := range legalMoves {
		if chess.IsCastle(m) {
			castles = append(castles, m)
		}
	}
	if len(castles) == 0 {
		return unmatched()
	}

	long := side == "queenside" || side == "long"
	short := side == "kingside" || side == "short"
	for _, m := range castles {
		isLong := strings.Count(chess.Canonical(m), "o") == 3
		if (long && isLong) || (short && !isLong) {
			return resolved(MoveCommand(m))
		}
	}
	if side == "" && len(castles) == 1 {
		return resolved(MoveCommand(castles[0]))
	}
	return unmatched()
}

// narrowByOrigin filters candidates by any origin token (file, rank, or
// square) present in the utterance itself.
func narrowByOrigin(candidates []string, stripped []string) (string, bool) {
	for _, tok := range stripped {
		if !isOriginToken(tok) {
			continue
		}
		var narrowed []string
		for _, c := range candidates {
			if originMatches(chess.Origin(c), tok) {
				narrowed = append(narrowed, c)
			}
		}
		if len(narrowed) == 1 {
			return narrowed[0], true
		}
	}
	return "", false
}

// isOriginToken reports whether tok can serve as an origin disambiguator:
// a file letter, a rank digit, or a full square.
func isOriginToken(tok string) bool {
	switch len(tok) {
	case 1:
		b := tok[0]
		return (b >= 'a' && b <= 'h') || (b >= '1' && b <= '8')
	case 2:
		return chess.MakeSquare(tok[0], tok[1]).Valid()
	}
	return false
}

// originMatches reports whether the SAN origin hint is satisfied by tok.
// A one-character token matches when it appears in the hint ("a" matches
// both "a" and "a1"); a square token must equal the hint.
func originMatches(origin, tok string) bool {
	if origin == "" {
		return false
	}
	if len(tok) == 1 {
		return strings.Contains(origin, tok)
	}
	return origin == tok
}
