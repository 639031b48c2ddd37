package screens

import (
	"fmt"
	"strings"

	"github.com/voicemate/voicemate/internal/voice/resolve"
	"github.com/voicemate/voicemate/pkg/chess"
)

// pieceValues is the conventional point count used for the material summary.
var pieceValues = map[chess.PieceType]int{
	chess.Pawn:   1,
	chess.Knight: 3,
	chess.Bishop: 3,
	chess.Rook:   5,
	chess.Queen:  9,
}

// SpokenMove phrases a SAN move for speech: "knight to f3", "rook on a takes
// d1, check", "castle queenside", "pawn to e8, promoting to queen".
func SpokenMove(san string) string {
	if chess.IsCastle(san) {
		if strings.Count(chess.Canonical(san), "o") == 3 {
			return "castle queenside"
		}
		return "castle kingside"
	}

	var b strings.Builder
	b.WriteString(chess.MovePiece(san).String())
	if o := chess.Origin(san); o != "" {
		b.WriteString(" on ")
		b.WriteString(o)
	}
	if strings.Contains(san, "x") {
		b.WriteString(" takes ")
	} else {
		b.WriteString(" to ")
	}
	b.WriteString(string(chess.Destination(san)))

	if i := strings.IndexByte(san, '='); i >= 0 && i+1 < len(san) {
		b.WriteString(", promoting to ")
		b.WriteString(chess.PieceFromLetter(san[i+1]).String())
	}
	if strings.ContainsRune(san, '#') {
		b.WriteString(", checkmate")
	} else if strings.ContainsRune(san, '+') {
		b.WriteString(", check")
	}
	return b.String()
}

// ambiguityPrompt phrases the follow-up question for an ambiguous outcome,
// naming the candidate origins so the player knows what to answer.
func ambiguityPrompt(out resolve.Outcome) string {
	var hints []string
	for _, c := range out.Candidates {
		if o := chess.Origin(c); o != "" {
			hints = append(hints, o)
		}
	}
	q := fmt.Sprintf("Which %s to %s", out.Piece, out.Square)
	if len(hints) == len(out.Candidates) && len(hints) > 0 {
		return q + " — " + spokenList(hints) + "?"
	}
	return q + "? Say the file or rank."
}

// materialSummary phrases the point-count difference from the side to move's
// perspective.
func materialSummary(pos chess.Position) string {
	mine, theirs := 0, 0
	me := pos.SideToMove()
	forEachSquare(func(sq chess.Square) {
		p, ok := pos.PieceAt(sq)
		if !ok {
			return
		}
		if p.Color == me {
			mine += pieceValues[p.Type]
		} else {
			theirs += pieceValues[p.Type]
		}
	})
	switch diff := mine - theirs; {
	case diff > 0:
		return fmt.Sprintf("You are up %s of material.", points(diff))
	case diff < 0:
		return fmt.Sprintf("You are down %s of material.", points(-diff))
	default:
		return "Material is even."
	}
}

// pieceLocations phrases where the side to move's pieces of the given type
// stand.
func pieceLocations(pos chess.Position, piece chess.PieceType) string {
	me := pos.SideToMove()
	var squares []string
	forEachSquare(func(sq chess.Square) {
		if p, ok := pos.PieceAt(sq); ok && p.Type == piece && p.Color == me {
			squares = append(squares, string(sq))
		}
	})
	switch len(squares) {
	case 0:
		return fmt.Sprintf("You have no %ss on the board.", piece)
	case 1:
		return fmt.Sprintf("Your %s is on %s.", piece, squares[0])
	default:
		return fmt.Sprintf("Your %ss are on %s.", piece, spokenList(squares))
	}
}

// squareContents phrases what stands on a square.
func squareContents(pos chess.Position, sq chess.Square) string {
	p, ok := pos.PieceAt(sq)
	if !ok {
		return fmt.Sprintf("%s is empty.", sq)
	}
	return fmt.Sprintf("There is a %s on %s.", p, sq)
}

// legalMovesFor phrases the side to move's legal moves with the given piece.
func legalMovesFor(pos chess.Position, piece chess.PieceType) string {
	var spoken []string
	for _, m := range pos.LegalMoves() {
		if chess.MovePiece(m) == piece {
			spoken = append(spoken, SpokenMove(m))
		}
	}
	switch len(spoken) {
	case 0:
		return fmt.Sprintf("Your %ss have no legal moves.", piece)
	case 1:
		return fmt.Sprintf("One move: %s.", spoken[0])
	default:
		return fmt.Sprintf("%d moves: %s.", len(spoken), spokenList(spoken))
	}
}

// spokenList joins items the way they are read aloud: "a", "a and b",
// "a, b and c".
func spokenList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

// points phrases a material difference: "one point", "three points".
func points(n int) string {
	if n == 1 {
		return "one point"
	}
	return fmt.Sprintf("%d points", n)
}

// forEachSquare visits every board square in file-major order.
func forEachSquare(fn func(chess.Square)) {
	for f := byte('a'); f <= 'h'; f++ {
		for r := byte('1'); r <= '8'; r++ {
			fn(chess.MakeSquare(f, r))
		}
	}
}
