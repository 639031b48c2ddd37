// Package mock provides an in-memory [chess.Position] for tests.
package mock

import (
	"sync"

	"github.com/voicemate/voicemate/pkg/chess"
)

// Position is a hand-assembled board state. Construct one with the fields
// you need; the zero value is an empty board with white to move and no
// legal moves.
//
// All methods are safe for concurrent use.
type Position struct {
	mu     sync.RWMutex
	moves  []string
	pieces map[chess.Square]chess.Piece
	turn   chess.Color
}

// Compile-time interface assertion.
var _ chess.Position = (*Position)(nil)

// New creates a Position with the given legal-move list and white to move.
func New(moves ...string) *Position {
	return &Position{
		moves:  moves,
		pieces: make(map[chess.Square]chess.Piece),
	}
}

// Place puts a piece on sq, replacing whatever was there. Returns the
// Position for chaining.
func (p *Position) Place(sq chess.Square, piece chess.Piece) *Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pieces == nil {
		p.pieces = make(map[chess.Square]chess.Piece)
	}
	p.pieces[sq] = piece
	return p
}

// SetMoves replaces the legal-move list.
func (p *Position) SetMoves(moves ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.moves = moves
}

// SetSideToMove sets whose turn it is.
func (p *Position) SetSideToMove(c chess.Color) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turn = c
}

// LegalMoves implements [chess.Position].
func (p *Position) LegalMoves() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.moves
}

// PieceAt implements [chess.Position].
func (p *Position) PieceAt(sq chess.Square) (chess.Piece, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	piece, ok := p.pieces[sq]
	return piece, ok
}

// SideToMove implements [chess.Position].
func (p *Position) SideToMove() chess.Color {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.turn
}
