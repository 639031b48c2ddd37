// Package resolve implements the command/move resolver: the pure second
// stage of the voice pipeline that turns a normalized token sequence plus
// the current legal-move list into an exact command, an exact move, an
// ambiguous candidate set, or an unmatched outcome.
//
// Resolution never blocks and never fails — every call returns exactly one
// [Outcome] variant. All mutable state (the pending disambiguation) is
// owned elsewhere and passed in by value.
package resolve

import (
	"github.com/voicemate/voicemate/pkg/chess"
)

// CommandKind discriminates the [Command] variants.
type CommandKind int

const (
	// KindMove is a chess move, carried as a SAN string.
	KindMove CommandKind = iota

	// KindQuery is a read-only question about the game state.
	KindQuery

	// KindMeta is a game-flow action (resign, repeat, confirmation, …).
	KindMeta
)

// QueryKind enumerates the parametrized read-only queries.
type QueryKind int

const (
	QueryMaterialBalance QueryKind = iota
	QueryPieceLocation
	QuerySquareContents
	QueryLegalMovesFor
	QueryClockRemaining
	QueryLastMove
	QueryEvaluation
)

// String returns the query kind name used in logs and metric attributes.
func (q QueryKind) String() string {
	switch q {
	case QueryMaterialBalance:
		return "material_balance"
	case QueryPieceLocation:
		return "piece_location"
	case QuerySquareContents:
		return "square_contents"
	case QueryLegalMovesFor:
		return "legal_moves_for"
	case QueryClockRemaining:
		return "clock_remaining"
	case QueryLastMove:
		return "last_move"
	case QueryEvaluation:
		return "evaluation"
	default:
		return "unknown"
	}
}

// MetaKind enumerates the game-flow actions.
type MetaKind int

const (
	MetaRepeat MetaKind = iota
	MetaResign
	MetaPeek
	MetaClearBoard
	MetaSwitchColor
	MetaConfirmYes
	MetaConfirmNo
	MetaSubmit
)

// String returns the meta action name used in logs and metric attributes.
func (m MetaKind) String() string {
	switch m {
	case MetaRepeat:
		return "repeat"
	case MetaResign:
		return "resign"
	case MetaPeek:
		return "peek"
	case MetaClearBoard:
		return "clear_board"
	case MetaSwitchColor:
		return "switch_color"
	case MetaConfirmYes:
		return "confirm_yes"
	case MetaConfirmNo:
		return "confirm_no"
	case MetaSubmit:
		return "submit"
	default:
		return "unknown"
	}
}

// Command is the tagged variant a successful resolution produces.
// Kind selects which of the remaining fields are meaningful.
type Command struct {
	Kind CommandKind

	// Move is the chosen SAN string when Kind is KindMove.
	Move string

	// Query and its parameters, when Kind is KindQuery.
	Query QueryKind

	// Piece parametrizes QueryPieceLocation and QueryLegalMovesFor.
	Piece chess.PieceType

	// Square parametrizes QuerySquareContents.
	Square chess.Square

	// Meta is the action when Kind is KindMeta.
	Meta MetaKind
}

// MoveCommand builds a KindMove command.
func MoveCommand(san string) Command {
	return Command{Kind: KindMove, Move: san}
}

// OutcomeKind discriminates the [Outcome] variants. Exactly one holds per
// resolver call — never both Resolved and Ambiguous.
type OutcomeKind int

const (
	// Unmatched means the utterance maps to nothing; the caller reports
	// "didn't understand" and listening continues.
	Unmatched OutcomeKind = iota

	// Resolved means exactly one command or move was identified.
	Resolved

	// Ambiguous means two or more legal moves match the utterance,
	// differing only by origin square.
	Ambiguous
)

// String returns the outcome kind name used in logs and metric attributes.
func (k OutcomeKind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case Ambiguous:
		return "ambiguous"
	default:
		return "unmatched"
	}
}

// Outcome is the resolver's result.
type Outcome struct {
	Kind OutcomeKind

	// Command is set when Kind is Resolved.
	Command Command

	// Candidates is the ordered ambiguous move list when Kind is Ambiguous,
	// preserving legal-move-list order.
	Candidates []string

	// Piece is the piece type shared by all candidates.
	Piece chess.PieceType

	// Square is the destination square shared by all candidates.
	Square chess.Square
}

// Pending is the resolver's view of an outstanding disambiguation: the
// ambiguous candidates from a previous call. Lifecycle (creation, timeout,
// cancellation) is owned by the disambig package; the resolver only reads it.
type Pending struct {
	Candidates []string
	Piece      chess.PieceType
	Square     chess.Square
}

func resolved(cmd Command) Outcome {
	return Outcome{Kind: Resolved, Command: cmd}
}

func unmatched() Outcome {
	return Outcome{Kind: Unmatched}
}
