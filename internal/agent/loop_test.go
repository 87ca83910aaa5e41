package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/lighthq/helpdesk-rag/internal/llm"
	"github.com/lighthq/helpdesk-rag/internal/tools"
)

// scriptedChat returns one llm.ChatResult per call, in order, looping
// on the last entry if Run calls it more times than scripted (used to
// drive the S_fail turn-budget-exhaustion path).
type scriptedChat struct {
	turns []llm.ChatResult
	calls int
}

func (s *scriptedChat) Chat(ctx context.Context, systemPrompt string, transcript []llm.Message, toolDecls []llm.ToolDeclaration) (llm.ChatResult, error) {
	i := s.calls
	s.calls++
	if i >= len(s.turns) {
		i = len(s.turns) - 1
	}
	return s.turns[i], nil
}

func articlesTool(name string, paths ...string) tools.Tool {
	type view struct {
		Path    string `json:"path"`
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	views := make([]view, len(paths))
	for i, p := range paths {
		views[i] = view{Path: p, Title: p, Content: "content of " + p}
	}
	body, _ := json.Marshal(views)
	return &fakeTool{name: name, result: string(body)}
}

type fakeTool struct {
	name   string
	result string
}

func (f *fakeTool) Name() string                { return f.name }
func (f *fakeTool) Description() string         { return "fake" }
func (f *fakeTool) InputSchema() map[string]any { return map[string]any{"type": "object"} }
func (f *fakeTool) Execute(ctx context.Context, rawArgs json.RawMessage) (string, error) {
	return f.result, nil
}

func newTestLoop(chat ChatClient, toolList ...tools.Tool) *Loop {
	registry := tools.NewRegistry().Register(toolList...)
	dispatcher := tools.NewDispatcher(registry)
	return NewLoop(registry, dispatcher, chat, "system prompt", 0)
}

func TestLoop_Run_S3NoToolResponse_EndsLoopImmediately(t *testing.T) {
	chat := &scriptedChat{turns: []llm.ChatResult{
		{Text: "Here's your answer, no tools needed."},
	}}
	loop := newTestLoop(chat)

	result, err := loop.Run(context.Background(), "question", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Turns != 1 {
		t.Errorf("Turns = %d, want 1", result.Turns)
	}
	if result.Exhausted {
		t.Error("Exhausted = true, want false for a clean S3 finish")
	}
	if len(result.Articles) != 0 {
		t.Errorf("Articles = %v, want empty", result.Articles)
	}
}

func TestLoop_Run_DispatchesToolCallsAndCollectsEvidence(t *testing.T) {
	chat := &scriptedChat{turns: []llm.ChatResult{
		{ToolCalls: []llm.ToolCall{{Name: "fetch_articles", Args: map[string]any{"paths": []string{"billing/multi-currency.md"}}}}},
		{Text: "Final answer citing the article."},
	}}
	loop := newTestLoop(chat, articlesTool("fetch_articles", "billing/multi-currency.md"))

	result, err := loop.Run(context.Background(), "question", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Turns != 2 {
		t.Errorf("Turns = %d, want 2", result.Turns)
	}
	if _, ok := result.Articles["billing/multi-currency.md"]; !ok {
		t.Errorf("Articles = %v, want billing/multi-currency.md collected", result.Articles)
	}
	if len(result.Paths) != 1 || result.Paths[0] != "billing/multi-currency.md" {
		t.Errorf("Paths = %v, want [billing/multi-currency.md]", result.Paths)
	}
}

func TestLoop_Run_TurnBudgetExhausted_ReturnsSFail(t *testing.T) {
	alwaysCallsTool := llm.ChatResult{ToolCalls: []llm.ToolCall{{Name: "fetch_articles", Args: map[string]any{"paths": []string{}}}}}
	chat := &scriptedChat{turns: []llm.ChatResult{alwaysCallsTool}}
	loop := newTestLoop(chat, articlesTool("fetch_articles"))
	loop.maxTurns = 3

	result, err := loop.Run(context.Background(), "question", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Exhausted {
		t.Error("Exhausted = false, want true after exceeding max_turns")
	}
	if result.Turns != 3 {
		t.Errorf("Turns = %d, want 3 (maxTurns)", result.Turns)
	}
}

func TestLoop_Run_SeedsThreadContextAsFirstMessage(t *testing.T) {
	chat := &scriptedChat{turns: []llm.ChatResult{{Text: "answer"}}}
	loop := newTestLoop(chat)

	result, err := loop.Run(context.Background(), "question", "prior turn: hi")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Transcript) < 2 {
		t.Fatalf("Transcript = %v, want at least thread-context + question", result.Transcript)
	}
	if result.Transcript[0].Text != "prior turn: hi" {
		t.Errorf("Transcript[0] = %+v, want thread context first", result.Transcript[0])
	}
	if result.Transcript[1].Text != "question" {
		t.Errorf("Transcript[1] = %+v, want the question second", result.Transcript[1])
	}
}

func TestLoop_Run_NoThreadContext_SeedsQuestionOnly(t *testing.T) {
	chat := &scriptedChat{turns: []llm.ChatResult{{Text: "answer"}}}
	loop := newTestLoop(chat)

	result, err := loop.Run(context.Background(), "question", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Transcript) == 0 || result.Transcript[0].Text != "question" {
		t.Errorf("Transcript[0] = %+v, want the bare question", result.Transcript[0])
	}
}
