package screens

import (
	"context"
	"sync"

	"github.com/voicemate/voicemate/internal/voice/normalize"
	"github.com/voicemate/voicemate/internal/voice/resolve"
	"github.com/voicemate/voicemate/internal/voice/session"
)

var _ Handler = (*Training)(nil)

// Training is a drill screen: the player is expected to find a fixed line of
// moves. A spoken move matching the next expected move is applied and
// confirmed; anything else legal counts as a miss and the position is left
// alone so the player can try again.
type Training struct {
	*pipeline
	surface Surface

	mu       sync.Mutex
	line     []string
	correct  int
	attempts int
}

// NewTraining builds a drill screen on lane "training-<mode>". line is the
// expected move sequence in SAN.
func NewTraining(mode string, announce Announcer, surface Surface, norm *normalize.Normalizer, line []string, opts ...Option) *Training {
	return &Training{
		pipeline: newPipeline(laneTrainingPrefix+mode, announce, norm, nil, opts...),
		surface:  surface,
		line:     append([]string(nil), line...),
	}
}

// HandleTranscript implements [Handler].
func (tr *Training) HandleTranscript(ctx context.Context, t session.Transcript) {
	cmd, ok := tr.process(ctx, t, tr.surface.LegalMoves())
	if !ok {
		return
	}
	switch cmd.Kind {
	case resolve.KindMove:
		tr.attempt(ctx, cmd.Move)
	case resolve.KindQuery:
		tr.answerQuery(ctx, tr.surface, cmd)
	case resolve.KindMeta:
		tr.handleMeta(ctx, cmd.Meta)
	}
}

// attempt scores the spoken move against the drill line.
func (tr *Training) attempt(ctx context.Context, san string) {
	tr.mu.Lock()
	if len(tr.line) == 0 {
		tr.mu.Unlock()
		tr.say(ctx, "The drill is already complete.")
		return
	}
	expected := tr.line[0]
	tr.attempts++
	tr.mu.Unlock()

	if san != expected {
		tr.log.Info("drill miss", "spoken", san, "expected", expected)
		tr.say(ctx, "Not the move I was looking for. Try again.")
		return
	}

	if err := tr.surface.Apply(san); err != nil {
		tr.log.Warn("rules engine rejected drill move", "san", san, "error", err)
		tr.say(ctx, "That move is not possible.")
		return
	}

	tr.mu.Lock()
	tr.correct++
	tr.line = tr.line[1:]
	done := len(tr.line) == 0
	tr.mu.Unlock()
	if done {
		tr.say(ctx, "Correct. Drill complete.")
	} else {
		tr.say(ctx, "Correct.")
	}
}

// Progress returns the number of solved moves and total attempts so far.
func (tr *Training) Progress() (correct, attempts int) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.correct, tr.attempts
}
