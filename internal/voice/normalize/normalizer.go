// Package normalize implements the phonetic normalizer: the first stage of
// the voice pipeline, turning a raw ASR transcript into an ordered stream of
// canonical tokens.
//
// Normalization is deterministic and total — it never fails, and words it
// does not recognize pass through unchanged as opaque tokens. The stages run
// in strict precedence order; earlier stages resolve compound mishearings
// that later single-word substitutions cannot (e.g. "before" must become
// "b 4" as a whole before any per-word digit rule would only catch "four"):
//
//  1. Compound mishearing substitution — whole-phrase corrections from the
//     vocabulary table, longest phrase first, on word boundaries.
//  2. File-letter substitution — NATO/letter-sound variants to the canonical
//     single-letter file token.
//  3. Context-aware connector resolution — "for"/"to" become a rank digit
//     only when the previous normalized token is a file letter; otherwise
//     they stay connector words.
//  4. Rank-word substitution — number words and homophones to digit tokens.
//  5. Piece-name substitution — homophones to canonical piece names.
//
// Connector words are retained in the output (the resolver strips them),
// so bare-coordinate detection still sees original adjacency.
//
// Tokens that survive all table stages unrecognized get one last chance: a
// Double Metaphone + Jaro-Winkler pass against the full variant list, the
// same two-stage strategy used for entity correction elsewhere. Canonical
// tokens map to themselves in the tables, so Normalize is idempotent on its
// own output.
package normalize

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/voicemate/voicemate/internal/vocab"
)

// defaultPhoneticThreshold is the minimum Jaro-Winkler score for a
// phonetically-matched vocabulary variant to be accepted. Tighter than the
// usual entity-matching default because a false positive here corrupts a
// move instead of a proper noun.
const defaultPhoneticThreshold = 0.84

// minPhoneticLen is the shortest token the phonetic fallback considers.
// One- and two-letter tokens produce degenerate metaphone codes.
const minPhoneticLen = 3

// Option is a functional option for configuring a [Normalizer].
type Option func(*Normalizer)

// WithTable sets the vocabulary table. Default: [vocab.Default].
func WithTable(t *vocab.Table) Option {
	return func(n *Normalizer) { n.table = t }
}

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for the
// out-of-table phonetic fallback. Default: 0.84.
func WithPhoneticThreshold(threshold float64) Option {
	return func(n *Normalizer) { n.phoneticThreshold = threshold }
}

// WithoutPhoneticFallback disables the matchr-based fallback stage entirely,
// leaving unknown tokens untouched. Useful for tests that exercise the
// table stages in isolation.
func WithoutPhoneticFallback() Option {
	return func(n *Normalizer) { n.phonetic = false }
}

// Normalizer converts raw transcripts to canonical token sequences.
// All methods are safe for concurrent use — the Normalizer is read-only
// after construction.
type Normalizer struct {
	table             *vocab.Table
	phonetic          bool
	phoneticThreshold float64
}

// New returns a Normalizer configured with the supplied options.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		table:             vocab.Default(),
		phonetic:          true,
		phoneticThreshold: defaultPhoneticThreshold,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Normalize converts raw into the canonical token sequence. It never fails;
// an empty or all-punctuation input yields an empty (nil) slice.
func (n *Normalizer) Normalize(raw string) []string {
	text := clean(raw)
	if text == "" {
		return nil
	}

	// Stage 1: compound mishearings, whole-word bounded, longest first.
	for _, c := range n.table.Compounds() {
		text = replacePhrase(text, c.Heard, c.Replacement)
	}

	words := strings.Fields(text)
	out := make([]string, 0, len(words))

	for _, w := range words {
		// Stage 2: file letters.
		if f, ok := n.table.File(w); ok {
			out = append(out, string(f))
			continue
		}

		// Stage 3: connector-ambiguous words — digit reading only directly
		// after a file-letter token.
		if r, ok := n.table.ConnectorRank(w); ok {
			if len(out) > 0 && isFileToken(out[len(out)-1]) {
				out = append(out, string(r))
			} else {
				out = append(out, w)
			}
			continue
		}

		// Stage 4: rank words.
		if r, ok := n.table.Rank(w); ok {
			out = append(out, string(r))
			continue
		}

		// Stage 5: piece names.
		if p, ok := n.table.Piece(w); ok {
			out = append(out, p.String())
			continue
		}

		// Connectors pass through unchanged; the resolver strips them.
		if n.table.IsConnector(w) {
			out = append(out, w)
			continue
		}

		// Phonetic fallback for everything else.
		if n.phonetic && len(w) >= minPhoneticLen {
			if canon, ok := n.phoneticMatch(w); ok {
				out = append(out, canon)
				continue
			}
		}

		out = append(out, w)
	}

	return out
}

// Text joins a token sequence back into a single normalized string, the
// form the resolver's command grammar matches against.
func Text(tokens []string) string {
	return strings.Join(tokens, " ")
}

// phoneticMatch aligns an out-of-table token with the closest vocabulary
// variant: Double Metaphone code overlap gates the candidates, Jaro-Winkler
// ranks them. Returns the variant's canonical token.
func (n *Normalizer) phoneticMatch(word string) (string, bool) {
	wp, ws := matchr.DoubleMetaphone(word)

	best := ""
	bestScore := 0.0
	for _, v := range n.table.Variants() {
		if len(v) < minPhoneticLen {
			continue
		}
		vp, vs := matchr.DoubleMetaphone(v)
		if !codesOverlap(wp, ws, vp, vs) {
			continue
		}
		if score := matchr.JaroWinkler(word, v, false); score >= n.phoneticThreshold && score > bestScore {
			best = v
			bestScore = score
		}
	}
	if best == "" {
		return "", false
	}
	canon, ok := n.table.Canonical(best)
	return canon, ok
}

// codesOverlap reports whether the two metaphone code pairs share a
// non-empty code.
func codesOverlap(ap, as, bp, bs string) bool {
	for _, a := range [2]string{ap, as} {
		if a == "" {
			continue
		}
		if a == bp || (bs != "" && a == bs) {
			return true
		}
	}
	return false
}

// clean lowercases raw and drops everything except letters, digits, and
// spaces. Apostrophes vanish rather than split ("what's" → "whats").
func clean(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n':
			b.WriteByte(' ')
		case r == '\'' || r == '’':
			// drop
		default:
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// replacePhrase substitutes every whole-word-bounded occurrence of phrase
// in text with replacement.
func replacePhrase(text, phrase, replacement string) string {
	if !strings.Contains(text, phrase) {
		return text
	}
	var b strings.Builder
	for i := 0; i < len(text); {
		j := strings.Index(text[i:], phrase)
		if j < 0 {
			b.WriteString(text[i:])
			break
		}
		start := i + j
		end := start + len(phrase)
		boundedLeft := start == 0 || text[start-1] == ' '
		boundedRight := end == len(text) || text[end] == ' '
		if boundedLeft && boundedRight {
			b.WriteString(text[i:start])
			b.WriteString(replacement)
			i = end
		} else {
			b.WriteString(text[i : start+1])
			i = start + 1
		}
	}
	return b.String()
}

// isFileToken reports whether tok is a canonical single-letter file token.
func isFileToken(tok string) bool {
	return len(tok) == 1 && tok[0] >= 'a' && tok[0] <= 'h'
}
