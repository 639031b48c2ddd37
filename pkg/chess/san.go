package chess

import "strings"

// Canonical strips the decorations SAN carries for human readers — capture
// marks, check/mate suffixes, en-passant annotations — and lowercases the
// result. "Nxf3+" and "Nf3" canonicalize identically, which is what spoken
// matching needs: nobody says the plus sign.
//
// Castling keeps its dashes ("o-o", "o-o-o") so it stays distinguishable
// from coordinate text. Promotion keeps the piece letter ("e8=q" → "e8q").
func Canonical(san string) string {
	var b strings.Builder
	b.Grow(len(san))
	for i := 0; i < len(san); i++ {
		switch san[i] {
		case 'x', '+', '#', '=', '!', '?':
			continue
		}
		b.WriteByte(san[i])
	}
	out := strings.ToLower(b.String())
	out = strings.TrimSuffix(out, " e.p.")
	return out
}

// MovePiece returns the piece type a SAN move string moves.
// Castling moves the king. A move with no leading piece letter is a pawn move.
func MovePiece(san string) PieceType {
	if IsCastle(san) {
		return King
	}
	if len(san) == 0 {
		return NoPiece
	}
	if p := PieceFromLetter(san[0]); p != NoPiece {
		return p
	}
	return Pawn
}

// IsCastle reports whether san is kingside or queenside castling,
// accepting both the letter-O and digit-0 spellings.
func IsCastle(san string) bool {
	s := strings.ToUpper(strings.TrimRight(san, "+#!?"))
	s = strings.ReplaceAll(s, "0", "O")
	return s == "O-O" || s == "O-O-O"
}

// Destination extracts the target square of a SAN move. For castling and
// malformed strings it returns "" — castling has no single spoken target
// square in this design.
//
// The destination is the last file+rank pair in the canonical form, which
// correctly skips origin disambiguators ("Rad1" → d1, "R1d4" → d4) and
// promotion letters ("e8=Q" → e8).
func Destination(san string) Square {
	if IsCastle(san) {
		return ""
	}
	c := Canonical(san)
	for i := len(c) - 2; i >= 0; i-- {
		if sq := MakeSquare(c[i], c[i+1]); sq.Valid() {
			return sq
		}
	}
	return ""
}

// Origin returns the disambiguating origin hint embedded in a SAN move, if
// any: a file letter ("Rad1" → "a"), a rank digit ("R1d4" → "1"), or a full
// square ("Qh4e1" → "h4"). Pawn captures carry their origin file ("exd5" →
// "e"). Returns "" when the move needs no disambiguation.
func Origin(san string) string {
	if IsCastle(san) {
		return ""
	}
	c := Canonical(san)
	dst := Destination(san)
	if dst == "" {
		return ""
	}
	// Remove the leading piece letter (canonical form is lowercase, so test
	// the original string's first byte).
	body := c
	if len(san) > 0 && PieceFromLetter(san[0]) != NoPiece {
		body = c[1:]
	}
	// Everything before the destination square, minus any promotion tail,
	// is the origin hint.
	idx := strings.LastIndex(body, string(dst))
	if idx < 0 {
		return ""
	}
	return body[:idx]
}
