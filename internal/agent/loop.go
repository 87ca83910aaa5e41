// Package agent drives the multi-turn tool-use conversation described
// in spec §4.4: a bounded state machine (S0 start, S1 ask LM, S2
// dispatch, S3 no-tool response, S_fail turn-budget exhausted) rather
// than a recursive callback chain, so termination and the collected-
// evidence invariant are explicit.
package agent

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/lighthq/helpdesk-rag/internal/llm"
	"github.com/lighthq/helpdesk-rag/internal/model"
	"github.com/lighthq/helpdesk-rag/internal/reqstate"
	"github.com/lighthq/helpdesk-rag/internal/tools"
)

// MaxTurns is the loop counter ceiling (spec: max_turns = 8).
const MaxTurns = 8

// ChatClient is the tool-capable chat call the loop needs from an LM
// client, satisfied by *llm.Client.
type ChatClient interface {
	Chat(ctx context.Context, systemPrompt string, transcript []llm.Message, tools []llm.ToolDeclaration) (llm.ChatResult, error)
}

// Result is everything S3/S_fail hands to final synthesis (§4.5).
type Result struct {
	Transcript []llm.Message
	Articles   map[string]model.Article
	Paths      []string
	Escalation *model.EscalationDraft
	Turns      int
	Exhausted  bool // true on S_fail
}

// Loop drives one request's agent conversation.
type Loop struct {
	registry     *tools.Registry
	dispatcher   *tools.Dispatcher
	chat         ChatClient
	systemPrompt string
	maxTurns     int
}

// NewLoop creates a Loop. maxTurns <= 0 uses MaxTurns.
func NewLoop(registry *tools.Registry, dispatcher *tools.Dispatcher, chat ChatClient, systemPrompt string, maxTurns int) *Loop {
	if maxTurns <= 0 {
		maxTurns = MaxTurns
	}
	return &Loop{registry: registry, dispatcher: dispatcher, chat: chat, systemPrompt: systemPrompt, maxTurns: maxTurns}
}

// articleEvidence is the wire shape both fetch_articles and
// search_articles emit; search_articles' extra similarity field is
// simply ignored when decoding into this type.
type articleEvidence struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Run executes S0 through S3/S_fail for one question and returns the
// collected transcript, evidence, and any escalation draft.
func (l *Loop) Run(ctx context.Context, question string, threadContext string) (*Result, error) {
	state := reqstate.New()
	ctx = reqstate.WithState(ctx, state)

	// S0: transcript seed.
	transcript := make([]llm.Message, 0, 4)
	if threadContext != "" {
		transcript = append(transcript, llm.Message{Role: "user", Text: threadContext})
	}
	transcript = append(transcript, llm.Message{Role: "user", Text: question})

	decls := declarationsFor(l.registry)
	articles := make(map[string]model.Article)
	counter := 0

	for {
		counter++
		if counter > l.maxTurns {
			return l.finish(transcript, articles, state, counter-1, true), nil
		}

		// S1: ask LM.
		resp, err := l.chat.Chat(ctx, l.systemPrompt, transcript, decls)
		if err != nil {
			return nil, err
		}

		if len(resp.ToolCalls) == 0 {
			// S3: no-tool response.
			transcript = append(transcript, llm.Message{Role: "model", Text: resp.Text})
			return l.finish(transcript, articles, state, counter, false), nil
		}

		// S2: dispatch every call this turn, order as emitted.
		for _, call := range resp.ToolCalls {
			transcript = append(transcript, llm.Message{Role: "model", CallName: call.Name, CallArgs: call.Args})
		}
		results, err := l.dispatchTurn(ctx, resp.ToolCalls)
		if err != nil {
			return nil, err
		}
		for i, res := range results {
			transcript = append(transcript, llm.Message{Role: "function", Name: resp.ToolCalls[i].Name, Text: res.Content})
			collectEvidence(articles, res.Content)
		}
		// Return to S1.
	}
}

// dispatchTurn runs every tool call emitted in one turn. Parallelism
// is permitted by the spec, not required; an errgroup runs them
// concurrently, grounded on the teacher's own errgroup use in
// internal/service/retriever.go and internal/handler/chat.go. Results
// are collected back into emitted order once all finish.
func (l *Loop) dispatchTurn(ctx context.Context, calls []llm.ToolCall) ([]tools.Result, error) {
	results := make([]tools.Result, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			args, err := json.Marshal(call.Args)
			if err != nil {
				args = json.RawMessage("{}")
			}
			results[i] = l.dispatcher.Execute(gctx, tools.Call{Name: call.Name, Args: args})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (l *Loop) finish(transcript []llm.Message, articles map[string]model.Article, state *reqstate.State, turns int, exhausted bool) *Result {
	paths := make([]string, 0, len(articles))
	for p := range articles {
		paths = append(paths, p)
	}
	if exhausted {
		slog.Warn("agent loop exhausted max_turns without a final response", "turns", turns)
	}
	return &Result{
		Transcript: transcript,
		Articles:   articles,
		Paths:      paths,
		Escalation: state.Escalation(),
		Turns:      turns,
		Exhausted:  exhausted,
	}
}

func declarationsFor(registry *tools.Registry) []llm.ToolDeclaration {
	all := registry.All()
	decls := make([]llm.ToolDeclaration, 0, len(all))
	for _, t := range all {
		decls = append(decls, llm.ToolDeclaration{Name: t.Name(), Description: t.Description(), InputSchema: t.InputSchema()})
	}
	return decls
}

// collectEvidence decodes a tool result's JSON array of articles, if
// it is one, into the collected-evidence map keyed by path. Error
// results and non-array results (e.g. knowledge_base's hierarchy
// string) decode to nothing and are silently skipped.
func collectEvidence(articles map[string]model.Article, content string) {
	var views []articleEvidence
	if err := json.Unmarshal([]byte(content), &views); err != nil {
		return
	}
	for _, v := range views {
		if v.Path == "" {
			continue
		}
		articles[v.Path] = model.Article{Path: v.Path, Title: v.Title, Content: v.Content}
	}
}
