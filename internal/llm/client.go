// Package llm wraps the Vertex AI Gemini client for the two call
// shapes the agent loop and final synthesis need: tool-capable chat
// turns and a single no-tools synthesis call, plus query embedding.
package llm

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/lighthq/helpdesk-rag/internal/gcpclient"
)

// ToolDeclaration is the subset of internal/tools.Tool this package
// needs to build a genai.FunctionDeclaration, kept dependency-free of
// the tools package to avoid import cycles with callers that also
// import tools.
type ToolDeclaration struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Message is one transcript entry. Role is "user", "model", or
// "function" (a tool result keyed by Name).
type Message struct {
	Role     string
	Text     string
	CallID   string
	CallName string
	CallArgs map[string]any
	Name     string // function result name, when Role == "function"
}

// ToolCall is one function call the model emitted in a turn.
type ToolCall struct {
	Name string
	Args map[string]any
}

// ChatResult is one turn's output: either assistant text (no tool
// calls) or one or more tool calls to dispatch.
type ChatResult struct {
	Text      string
	ToolCalls []ToolCall
}

// Client wraps a Vertex AI Gemini model for chat and embedding calls.
type Client struct {
	client         *genai.Client
	chatModel      string
	embeddingModel string
}

// NewClient creates a Client against project/location, grounded on
// the teacher's gcpclient.NewGenAIAdapter SDK path. Chat, ChatNoTools,
// and Embed all retry through gcpclient.WithRetry on 429s, matching
// the teacher's EmbeddingAdapter/GenAIAdapter backoff.
func NewClient(ctx context.Context, project, location, chatModel, embeddingModel string) (*Client, error) {
	client, err := genai.NewClient(ctx, project, location)
	if err != nil {
		return nil, fmt.Errorf("llm.NewClient: %w", err)
	}
	return &Client{client: client, chatModel: chatModel, embeddingModel: embeddingModel}, nil
}

// Close closes the underlying client.
func (c *Client) Close() {
	c.client.Close()
}

// Chat sends the transcript with the given tool declarations attached
// and returns either assistant text or the tool calls the model chose
// to make. systemPrompt is the agent loop's fixed system prompt (§6).
func (c *Client) Chat(ctx context.Context, systemPrompt string, transcript []Message, tools []ToolDeclaration) (ChatResult, error) {
	model := c.client.GenerativeModel(c.chatModel)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	if len(tools) > 0 {
		model.Tools = []*genai.Tool{toGenaiTool(tools)}
	}

	cs := model.StartChat()
	cs.History = toGenaiHistory(transcript[:len(transcript)-1])

	last := transcript[len(transcript)-1]
	resp, err := gcpclient.WithRetry(ctx, "llm.Chat", func() (*genai.GenerateContentResponse, error) {
		return cs.SendMessage(ctx, lastTurnParts(last)...)
	})
	if err != nil {
		return ChatResult{}, fmt.Errorf("llm.Chat: %w", err)
	}
	return parseChatResponse(resp)
}

// ChatNoTools performs the final-synthesis call: a single independent
// turn with no tools available (spec §4.5).
func (c *Client) ChatNoTools(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error) {
	model := c.client.GenerativeModel(c.chatModel)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	model.Temperature = &temperature

	resp, err := gcpclient.WithRetry(ctx, "llm.ChatNoTools", func() (*genai.GenerateContentResponse, error) {
		return model.GenerateContent(ctx, genai.Text(userPrompt))
	})
	if err != nil {
		return "", fmt.Errorf("llm.ChatNoTools: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String(), nil
}

// maxEmbedInput caps the text sent to the embedding model, matching the
// teacher's EmbeddingAdapter truncation before the Vertex AI call.
const maxEmbedInput = 8000

// Embed embeds a single query string using RETRIEVAL_QUERY task type,
// implementing tools.QueryEmbedder.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(text) > maxEmbedInput {
		text = text[:maxEmbedInput]
	}

	model := c.client.EmbeddingModel(c.embeddingModel)
	model.TaskType = "RETRIEVAL_QUERY"

	resp, err := gcpclient.WithRetry(ctx, "llm.Embed", func() (*genai.EmbedContentResponse, error) {
		return model.EmbedContent(ctx, genai.Text(text))
	})
	if err != nil {
		return nil, fmt.Errorf("llm.Embed: %w", err)
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("llm.Embed: empty embedding returned")
	}
	return resp.Embedding.Values, nil
}

func toGenaiTool(decls []ToolDeclaration) *genai.Tool {
	fds := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, d := range decls {
		fds = append(fds, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  toGenaiSchema(d.InputSchema),
		})
	}
	return &genai.Tool{FunctionDeclarations: fds}
}

func toGenaiSchema(raw map[string]any) *genai.Schema {
	if raw == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	s := &genai.Schema{Type: schemaType(raw["type"])}
	if props, ok := raw["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, v := range props {
			if pm, ok := v.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(pm)
			}
		}
	}
	if items, ok := raw["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}
	if req, ok := raw["required"].([]string); ok {
		s.Required = req
	}
	return s
}

func schemaType(t any) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "array":
		return genai.TypeArray
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeObject
	}
}

func toGenaiHistory(msgs []Message) []*genai.Content {
	history := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, toGenaiContent(m))
	}
	return history
}

func lastTurnParts(m Message) []genai.Part {
	return toGenaiContent(m).Parts
}

func toGenaiContent(m Message) *genai.Content {
	switch m.Role {
	case "function":
		return &genai.Content{
			Role: "function",
			Parts: []genai.Part{genai.FunctionResponse{
				Name:     m.Name,
				Response: map[string]any{"result": m.Text},
			}},
		}
	case "model":
		if m.CallName != "" {
			return &genai.Content{
				Role: "model",
				Parts: []genai.Part{genai.FunctionCall{
					Name: m.CallName,
					Args: m.CallArgs,
				}},
			}
		}
		return &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Text)}}
	default:
		return &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Text)}}
	}
}

func parseChatResponse(resp *genai.GenerateContentResponse) (ChatResult, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ChatResult{}, nil
	}
	var text strings.Builder
	var calls []ToolCall
	for _, p := range resp.Candidates[0].Content.Parts {
		switch v := p.(type) {
		case genai.Text:
			text.WriteString(string(v))
		case genai.FunctionCall:
			calls = append(calls, ToolCall{Name: v.Name, Args: v.Args})
		}
	}
	return ChatResult{Text: text.String(), ToolCalls: calls}, nil
}
