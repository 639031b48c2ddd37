// Package chess defines the shared chess domain types used across all
// voicemate packages: squares, piece types, colors, and the Position
// interface through which the embedding application's rules engine is
// consulted.
//
// The package deliberately contains no move generation or legality checking —
// the rules engine is an external collaborator. What lives here is the
// minimal vocabulary the voice pipeline needs: which squares exist, which
// piece stands where, and how to take apart a move written in Standard
// Algebraic Notation (SAN).
package chess

import "fmt"

// PieceType identifies one of the six chess piece kinds.
type PieceType int

const (
	// NoPiece is the zero value, returned when a square is empty or a SAN
	// string names no piece.
	NoPiece PieceType = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

// String returns the lowercase English name of the piece type.
func (p PieceType) String() string {
	switch p {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	default:
		return "none"
	}
}

// Letter returns the SAN piece letter ("N", "B", "R", "Q", "K").
// Pawns and NoPiece return the empty string, matching SAN convention.
func (p PieceType) Letter() string {
	switch p {
	case Knight:
		return "N"
	case Bishop:
		return "B"
	case Rook:
		return "R"
	case Queen:
		return "Q"
	case King:
		return "K"
	default:
		return ""
	}
}

// PieceFromLetter maps a SAN piece letter to its PieceType.
// Returns NoPiece for anything that is not one of N, B, R, Q, K.
func PieceFromLetter(b byte) PieceType {
	switch b {
	case 'N':
		return Knight
	case 'B':
		return Bishop
	case 'R':
		return Rook
	case 'Q':
		return Queen
	case 'K':
		return King
	default:
		return NoPiece
	}
}

// Color identifies a side.
type Color int

const (
	White Color = iota
	Black
)

// String returns "white" or "black".
func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// Square is a board coordinate in algebraic form ("a1" … "h8").
// The zero value ("") means no square.
type Square string

// MakeSquare builds a Square from a file letter ('a'–'h') and a rank
// digit ('1'–'8'). Returns "" when either component is out of range.
func MakeSquare(file, rank byte) Square {
	if file < 'a' || file > 'h' || rank < '1' || rank > '8' {
		return ""
	}
	return Square([]byte{file, rank})
}

// Valid reports whether s names a real board square.
func (s Square) Valid() bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

// File returns the file letter ('a'–'h'), or 0 for an invalid square.
func (s Square) File() byte {
	if !s.Valid() {
		return 0
	}
	return s[0]
}

// Rank returns the rank digit ('1'–'8'), or 0 for an invalid square.
func (s Square) Rank() byte {
	if !s.Valid() {
		return 0
	}
	return s[1]
}

// Piece pairs a piece type with its color.
type Piece struct {
	Type  PieceType
	Color Color
}

// String returns e.g. "white knight".
func (p Piece) String() string {
	return fmt.Sprintf("%s %s", p.Color, p.Type)
}

// Position is the read-only view of the current game state that the voice
// pipeline consults. It is implemented by the embedding application's rules
// engine; [github.com/voicemate/voicemate/pkg/chess/mock] provides a test
// implementation.
//
// Implementations must be safe for concurrent use — the resolver may be
// invoked from the transcript consumer goroutine while the UI reads the
// same position.
type Position interface {
	// LegalMoves returns the full legal-move list for the side to move,
	// in SAN. The slice must not be mutated by callers.
	LegalMoves() []string

	// PieceAt reports the piece on sq. ok is false when the square is empty
	// or invalid.
	PieceAt(sq Square) (p Piece, ok bool)

	// SideToMove returns the color whose turn it is.
	SideToMove() Color
}
