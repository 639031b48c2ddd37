package screens

import (
	"context"

	"github.com/voicemate/voicemate/internal/voice/normalize"
	"github.com/voicemate/voicemate/internal/voice/resolve"
	"github.com/voicemate/voicemate/internal/voice/session"
)

var _ Handler = (*Game)(nil)

// Game is the live-game screen: spoken moves are applied to the game surface
// and confirmed aloud, queries are answered from the position, and resign /
// peek actions are forwarded to the registered hooks.
type Game struct {
	*pipeline
	surface Surface
}

// NewGame builds the live-game screen on lane "game".
func NewGame(announce Announcer, surface Surface, norm *normalize.Normalizer, opts ...Option) *Game {
	return &Game{
		pipeline: newPipeline(LaneGame, announce, norm, nil, opts...),
		surface:  surface,
	}
}

// HandleTranscript implements [Handler].
func (g *Game) HandleTranscript(ctx context.Context, t session.Transcript) {
	cmd, ok := g.process(ctx, t, g.surface.LegalMoves())
	if !ok {
		return
	}
	switch cmd.Kind {
	case resolve.KindMove:
		g.applyMove(ctx, cmd.Move)
	case resolve.KindQuery:
		g.answerQuery(ctx, g.surface, cmd)
	case resolve.KindMeta:
		g.handleGameMeta(ctx, cmd.Meta)
	}
}

// applyMove plays the move on the surface and confirms it aloud.
func (g *Game) applyMove(ctx context.Context, san string) {
	if err := g.surface.Apply(san); err != nil {
		g.log.Warn("rules engine rejected move", "san", san, "error", err)
		g.say(ctx, "That move is not possible.")
		return
	}
	g.log.Info("move played", "san", san)
	g.say(ctx, SpokenMove(san))
}

// handleGameMeta acknowledges the irreversible actions before forwarding.
func (g *Game) handleGameMeta(ctx context.Context, kind resolve.MetaKind) {
	if kind == resolve.MetaResign {
		g.say(ctx, "You resigned.")
	}
	g.handleMeta(ctx, kind)
}
