// Package chatadapter translates an inbound chat-platform message into
// the same pipeline input the REST surface uses (spec §4.8's "Chat
// event"), grounded on the teacher's internal/handler/chat.go request-
// shaping section, minus its SSE/streaming/BYOLLM machinery — this
// spec's synthesis step is a single blocking call, not a token stream.
package chatadapter

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/lighthq/helpdesk-rag/internal/model"
	"github.com/lighthq/helpdesk-rag/internal/pipeline"
)

// MaxPriorTurns bounds how many prior thread turns are carried into
// context, per spec §4.8.
const MaxPriorTurns = 10

// MaxTurnChars truncates each prior turn to its last N characters.
const MaxTurnChars = 300

// Turn is one prior message in the thread.
type Turn struct {
	Role    string
	Content string
}

// Event is an inbound chat-platform message.
type Event struct {
	UserID         string
	ThreadKey      string
	Text           string
	FileReferences []string
	PriorTurns     []Turn
}

// botMentionPattern strips a leading @mention of the bot itself
// (e.g. "<@U123ABC> how do I...") before the text reaches the agent.
var botMentionPattern = regexp.MustCompile(`^\s*<@[\w-]+>\s*`)

// EscalationProcessor persists and publishes escalation drafts,
// satisfied by *escalation.Service.
type EscalationProcessor interface {
	Process(ctx context.Context, requestID string, d *model.EscalationDraft) error
}

// Renderer is the external chat-platform renderer: Handle hands off
// the grounded answer for it to post back into the thread. The
// renderer is responsible for attaching feedback affordances (helpful
// / not helpful) that reference RequestID.
type Renderer interface {
	Render(ctx context.Context, event Event, requestID string, answer model.GroundedAnswer) error
}

// Deps bundles what Handle needs to run the pipeline.
type Deps struct {
	Loop            pipeline.AgentLoop
	Synth           pipeline.Synthesizer
	Escalations     EscalationProcessor
	PipelineVersion string
	Mode            string
}

// Handle strips the bot mention, builds thread context from the prior
// turns (bounded to MaxPriorTurns, each truncated to its last
// MaxTurnChars), runs the shared pipeline, and hands the grounded
// answer off to renderer.
func Handle(ctx context.Context, event Event, deps Deps, renderer Renderer, requestID string) error {
	question := stripBotMention(event.Text)
	threadContext := buildThreadContext(event.PriorTurns)

	outcome, err := pipeline.Run(ctx, question, threadContext, deps.Loop, deps.Synth, requestID, deps.Mode, deps.PipelineVersion)
	if err != nil {
		return fmt.Errorf("chatadapter.Handle: %w", err)
	}

	if outcome.Answer.Escalation != nil && deps.Escalations != nil {
		if err := deps.Escalations.Process(ctx, requestID, outcome.Answer.Escalation); err != nil {
			slog.Error("chatadapter: escalation processing failed", "request_id", requestID, "error", err)
		}
	}

	if err := renderer.Render(ctx, event, requestID, outcome.Answer); err != nil {
		return fmt.Errorf("chatadapter.Handle: render: %w", err)
	}
	return nil
}

func stripBotMention(text string) string {
	return botMentionPattern.ReplaceAllString(text, "")
}

// buildThreadContext renders the last MaxPriorTurns prior turns (each
// truncated to its last MaxTurnChars) into the single string the
// agent loop seeds as thread context.
func buildThreadContext(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}
	if len(turns) > MaxPriorTurns {
		turns = turns[len(turns)-MaxPriorTurns:]
	}

	var sb strings.Builder
	for _, t := range turns {
		content := t.Content
		if len(content) > MaxTurnChars {
			content = content[len(content)-MaxTurnChars:]
		}
		sb.WriteString(t.Role)
		sb.WriteString(": ")
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	return sb.String()
}
