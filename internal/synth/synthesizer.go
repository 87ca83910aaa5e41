// Package synth performs the final-synthesis LM call (spec §4.5): a
// single, independent, no-tools call over the agent loop's collected
// evidence, producing customer-ready text with inline [[n]](ref)
// citations.
package synth

import (
	"context"
	"fmt"
	"strings"

	"github.com/lighthq/helpdesk-rag/internal/model"
)

// Chatter is the no-tools chat capability this package needs,
// satisfied by *llm.Client.
type Chatter interface {
	ChatNoTools(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error)
}

// Temperature is low but non-zero, per spec §4.5.
const Temperature float32 = 0.2

// FallbackText is returned when the LM produces empty text; the
// confidence is then forced to needs_clarification by the caller.
const FallbackText = "I wasn't able to find enough information in the help center to answer that confidently. Could you share a bit more detail, or I can connect you with a teammate?"

// Synthesizer produces the draft answer text ahead of the citation gate.
type Synthesizer struct {
	chat         Chatter
	systemPrompt string
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(chat Chatter, systemPrompt string) *Synthesizer {
	return &Synthesizer{chat: chat, systemPrompt: systemPrompt}
}

// Synthesize runs the final synthesis call over question and the
// articles collected by the agent loop. Returns the draft text and
// whether it is the canned fallback (forces needs_clarification).
func (s *Synthesizer) Synthesize(ctx context.Context, question string, articles map[string]model.Article) (text string, isFallback bool, err error) {
	userPrompt := buildUserPrompt(question, articles)

	raw, err := s.chat.ChatNoTools(ctx, s.systemPrompt, userPrompt, Temperature)
	if err != nil {
		return "", false, fmt.Errorf("synth.Synthesize: %w", err)
	}

	cleaned := stripCodeFence(raw)
	if cleaned == "" {
		return FallbackText, true, nil
	}
	return cleaned, false, nil
}

// buildUserPrompt serializes the question and collected articles into
// the minimal context the synthesis call receives, grounded on the
// teacher's buildUserPrompt section-header style.
func buildUserPrompt(question string, articles map[string]model.Article) string {
	var sb strings.Builder

	sb.WriteString("=== QUESTION ===\n")
	sb.WriteString(question)
	sb.WriteString("\n\n=== COLLECTED ARTICLES ===\n")
	if len(articles) == 0 {
		sb.WriteString("(none retrieved)\n")
	}
	for path, a := range articles {
		title := a.Title
		if title == "" {
			title = path
		}
		sb.WriteString(fmt.Sprintf("--- %s (%s) ---\n%s\n\n", title, path, a.Content))
	}

	sb.WriteString("Cite every factual claim inline as [[n]](ref) where ref is the article's path above, in the order cited. Do not cite anything not listed above.\n")
	return sb.String()
}

// stripCodeFence removes a leading/trailing ``` fence, grounded on the
// teacher's parseGenerationResponse markdown-stripping step.
func stripCodeFence(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	lines := strings.Split(cleaned, "\n")
	if len(lines) >= 3 {
		cleaned = strings.Join(lines[1:len(lines)-1], "\n")
	}
	return strings.TrimSpace(cleaned)
}
