package tools

import (
	"context"
	"encoding/json"
)

// ManifestSource supplies the curated article hierarchy. Per spec §4.2
// this never errors: a fetch failure resolves to the last cached value,
// or the empty string on a cold cache.
type ManifestSource interface {
	GetHierarchy(ctx context.Context) string
}

// KnowledgeBaseTool implements the knowledge_base tool: no inputs,
// returns the hierarchy manifest text. Intended as the first call for
// any product question (spec §6 agent system prompt).
type KnowledgeBaseTool struct {
	manifest ManifestSource
}

// NewKnowledgeBaseTool creates a KnowledgeBaseTool.
func NewKnowledgeBaseTool(manifest ManifestSource) *KnowledgeBaseTool {
	return &KnowledgeBaseTool{manifest: manifest}
}

func (t *KnowledgeBaseTool) Name() string        { return "knowledge_base" }
func (t *KnowledgeBaseTool) Description() string {
	return "Returns the curated help-article hierarchy (titles grouped by category with stable URLs). Call this first for any product question."
}
func (t *KnowledgeBaseTool) InputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *KnowledgeBaseTool) Execute(ctx context.Context, _ json.RawMessage) (string, error) {
	return t.manifest.GetHierarchy(ctx), nil
}
