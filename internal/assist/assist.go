// Package assist implements an optional language-model pass for utterances
// the rule-based resolver could not match.
//
// The [Corrector] sends the raw transcript to an [llm.Provider] together with
// the current legal-move list and asks the model to pick exactly one move, or
// to decline. The model never gets to invent output: anything that is not
// verbatim on the provided list is discarded, so a confused model degrades to
// "no suggestion" rather than an illegal move.
//
// This stage only runs after the resolver has given up, so its latency never
// sits on the path of a cleanly recognized move.
package assist

import (
	"context"
	"fmt"
	"strings"

	"github.com/voicemate/voicemate/pkg/provider/llm"
)

const (
	defaultTemperature = 0.0
	defaultMaxTokens   = 16

	// noMatchToken is what the model is told to answer when no listed move
	// fits the transcript.
	noMatchToken = "NONE"
)

// systemPromptTemplate is the base system prompt. The legal-move list is
// appended at call time so each request carries the current position.
const systemPromptTemplate = `You are helping a speech interface for playing chess by voice.

The player said something the rule-based matcher could not map to a move.
Your task: decide whether the utterance was an attempt at exactly one of the
legal moves listed below.

Rules:
- Answer with EXACTLY one move from the list, copied verbatim, or the single
  word NONE.
- Be conservative — if the utterance could mean more than one listed move, or
  none of them, answer NONE.
- No explanation, no punctuation, no markdown. One token only.

Legal moves:
%s`

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithTemperature sets the sampling temperature. Default: 0.0 (greedy).
func WithTemperature(temp float64) Option {
	return func(c *Corrector) {
		c.temperature = temp
	}
}

// Corrector maps unmatched utterances onto a legal-move list via an
// [llm.Provider]. It is safe for concurrent use.
//
// Model selection follows the one-provider-per-model pattern: construct the
// [llm.Provider] with the desired model rather than overriding per request.
type Corrector struct {
	llm         llm.Provider
	temperature float64
}

// New returns a [Corrector] backed by the given provider.
func New(provider llm.Provider, opts ...Option) *Corrector {
	c := &Corrector{
		llm:         provider,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Suggest asks the model which legal move, if any, the transcript was an
// attempt at. ok is true only when the model's answer is verbatim on the
// legal list. A declining or unparseable answer yields ok=false with a nil
// error; only transport failures and context cancellation surface as errors.
func (c *Corrector) Suggest(ctx context.Context, transcript string, legal []string) (string, bool, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" || len(legal) == 0 {
		return "", false, nil
	}

	req := llm.CompletionRequest{
		SystemPrompt: buildSystemPrompt(legal),
		Temperature:  c.temperature,
		MaxTokens:    defaultMaxTokens,
		Messages: []llm.Message{
			{Role: "user", Content: transcript},
		},
	}

	resp, err := c.llm.Complete(ctx, req)
	if err != nil {
		return "", false, fmt.Errorf("assist: complete: %w", err)
	}
	if resp == nil {
		return "", false, nil
	}

	answer := stripMarkdown(resp.Content)
	if answer == "" || strings.EqualFold(answer, noMatchToken) {
		return "", false, nil
	}
	for _, san := range legal {
		if answer == san {
			return san, true, nil
		}
	}
	// Anything off the list is discarded.
	return "", false, nil
}

// buildSystemPrompt formats the system prompt with the legal-move list.
func buildSystemPrompt(legal []string) string {
	var sb strings.Builder
	for _, san := range legal {
		sb.WriteString("- ")
		sb.WriteString(san)
		sb.WriteByte('\n')
	}
	return fmt.Sprintf(systemPromptTemplate, sb.String())
}

// stripMarkdown removes optional code fences some models wrap around short
// answers, then trims whitespace.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
