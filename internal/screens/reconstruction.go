package screens

import (
	"context"

	"github.com/voicemate/voicemate/internal/voice/normalize"
	"github.com/voicemate/voicemate/internal/voice/resolve"
	"github.com/voicemate/voicemate/internal/voice/session"
)

var _ Handler = (*Reconstruction)(nil)

// Reconstruction is the post-game board-reconstruction screen: the player
// rebuilds the final position from memory by voice. On top of the shared
// grammar it recognizes "clear the board", "switch sides", and "submit",
// forwarded to the hooks registered by the embedding application.
type Reconstruction struct {
	*pipeline
	surface Surface
}

// NewReconstruction builds the reconstruction screen on lane
// "reconstruction".
func NewReconstruction(announce Announcer, surface Surface, norm *normalize.Normalizer, opts ...Option) *Reconstruction {
	return &Reconstruction{
		pipeline: newPipeline(LaneReconstruction, announce, norm, resolve.ReconstructionPatterns(), opts...),
		surface:  surface,
	}
}

// HandleTranscript implements [Handler].
func (r *Reconstruction) HandleTranscript(ctx context.Context, t session.Transcript) {
	cmd, ok := r.process(ctx, t, r.surface.LegalMoves())
	if !ok {
		return
	}
	switch cmd.Kind {
	case resolve.KindMove:
		if err := r.surface.Apply(cmd.Move); err != nil {
			r.log.Warn("reconstruction rejected move", "san", cmd.Move, "error", err)
			r.say(ctx, "That placement is not possible.")
			return
		}
		r.say(ctx, SpokenMove(cmd.Move))

	case resolve.KindQuery:
		r.answerQuery(ctx, r.surface, cmd)

	case resolve.KindMeta:
		r.handleMeta(ctx, cmd.Meta)
		switch cmd.Meta {
		case resolve.MetaClearBoard:
			r.say(ctx, "Board cleared.")
		case resolve.MetaSwitchColor:
			r.say(ctx, "Switched sides.")
		case resolve.MetaSubmit:
			r.say(ctx, "Submitted.")
		}
	}
}
