package chatadapter

import (
	"context"
	"strings"
	"testing"

	"github.com/lighthq/helpdesk-rag/internal/agent"
	"github.com/lighthq/helpdesk-rag/internal/model"
)

type fakeLoop struct {
	gotQuestion string
	result      *agent.Result
}

func (f *fakeLoop) Run(ctx context.Context, question, threadContext string) (*agent.Result, error) {
	f.gotQuestion = question
	return f.result, nil
}

type fakeSynth struct{}

func (f *fakeSynth) Synthesize(ctx context.Context, question string, articles map[string]model.Article) (string, bool, error) {
	return "Yes. [[1]](a.md)", false, nil
}

type fakeRenderer struct {
	rendered   bool
	gotRequest string
	gotAnswer  model.GroundedAnswer
}

func (f *fakeRenderer) Render(ctx context.Context, event Event, requestID string, answer model.GroundedAnswer) error {
	f.rendered = true
	f.gotRequest = requestID
	f.gotAnswer = answer
	return nil
}

func TestHandle_StripsBotMention(t *testing.T) {
	loop := &fakeLoop{result: &agent.Result{Articles: map[string]model.Article{"a.md": {Path: "a.md"}}}}
	renderer := &fakeRenderer{}

	event := Event{UserID: "u1", ThreadKey: "t1", Text: "<@U123ABC> does it support SSO?"}
	err := Handle(context.Background(), event, Deps{Loop: loop, Synth: &fakeSynth{}}, renderer, "req-1")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if loop.gotQuestion != "does it support SSO?" {
		t.Errorf("question = %q, want bot mention stripped", loop.gotQuestion)
	}
	if !renderer.rendered {
		t.Error("renderer was not called")
	}
	if renderer.gotRequest != "req-1" {
		t.Errorf("request id = %q", renderer.gotRequest)
	}
}

func TestBuildThreadContext_TruncatesAndBounds(t *testing.T) {
	turns := make([]Turn, 0, MaxPriorTurns+3)
	for i := 0; i < MaxPriorTurns+3; i++ {
		turns = append(turns, Turn{Role: "user", Content: "turn"})
	}
	turns = append(turns, Turn{Role: "user", Content: strings.Repeat("x", MaxTurnChars+50)})

	ctx := buildThreadContext(turns)
	lines := 0
	for _, r := range ctx {
		if r == '\n' {
			lines++
		}
	}
	if lines != MaxPriorTurns {
		t.Errorf("lines = %d, want %d (bounded to MaxPriorTurns)", lines, MaxPriorTurns)
	}
	if !strings.HasSuffix(ctx, "user: "+strings.Repeat("x", MaxTurnChars)+"\n") {
		t.Errorf("last turn not truncated to its last %d characters: %q", MaxTurnChars, ctx)
	}
}
