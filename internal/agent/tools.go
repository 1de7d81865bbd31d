package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yubzen/globetrip/internal/providers"
)

var errInvalidArguments = errors.New("tool arguments are not a JSON object")

type Tool struct {
	Name        string
	Description string
	Schema      map[string]any
	Execute     func(ctx context.Context, args json.RawMessage) (any, error)
}

type ToolSet struct {
	ordered []Tool
	byName  map[string]Tool
}

func NewToolSet(tools ...Tool) ToolSet {
	byName := make(map[string]Tool, len(tools))
	ordered := make([]Tool, 0, len(tools))
	for _, t := range tools {
		name := strings.TrimSpace(strings.ToLower(t.Name))
		if name == "" || t.Execute == nil {
			continue
		}
		t.Name = name
		ordered = append(ordered, t)
		byName[name] = t
	}
	return ToolSet{
		ordered: ordered,
		byName:  byName,
	}
}

func (t ToolSet) Get(name string) (Tool, bool) {
	if t.byName == nil {
		return Tool{}, false
	}
	tool, ok := t.byName[strings.ToLower(strings.TrimSpace(name))]
	return tool, ok
}

func (t ToolSet) Len() int { return len(t.ordered) }

func (t ToolSet) Names() []string {
	out := make([]string, 0, len(t.ordered))
	for _, tool := range t.ordered {
		out = append(out, tool.Name)
	}
	return out
}

func (t ToolSet) PromptBlock() string {
	if len(t.ordered) == 0 {
		return ""
	}
	lines := make([]string, 0, len(t.ordered)+2)
	lines = append(lines, "Available tools (enforced at runtime):")
	for _, tool := range t.ordered {
		lines = append(lines, fmt.Sprintf("- %s: %s", tool.Name, strings.TrimSpace(tool.Description)))
	}
	lines = append(lines, "Only call the tools listed above. Tool results are JSON objects with a status field.")
	return strings.Join(lines, "\n")
}

// ProviderTools converts the tool set to provider tool definitions.
func (t ToolSet) ProviderTools() []providers.Tool {
	out := make([]providers.Tool, 0, len(t.ordered))
	for _, tool := range t.ordered {
		schema := tool.Schema
		if schema == nil {
			schema = Object(nil)
		}
		out = append(out, providers.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	return out
}

// Object builds a JSON Schema object with the given properties.
func Object(props map[string]any, required ...string) map[string]any {
	if props == nil {
		props = map[string]any{}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func String(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func Integer(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

func Number(description string) map[string]any {
	return map[string]any{"type": "number", "description": description}
}

func Boolean(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}

func Array(description string, items map[string]any) map[string]any {
	return map[string]any{"type": "array", "description": description, "items": items}
}

// unwrapArguments accepts either a JSON object or a JSON string containing
// one, which some models emit.
func unwrapArguments(raw json.RawMessage) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return json.RawMessage("{}"), nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, err
		}
		raw = bytes.TrimSpace([]byte(inner))
	}
	if len(raw) == 0 || raw[0] != '{' {
		return nil, errInvalidArguments
	}
	return raw, nil
}

func parseToolArguments(raw json.RawMessage) (map[string]any, error) {
	obj, err := unwrapArguments(raw)
	if err != nil {
		return nil, err
	}
	params := map[string]any{}
	if err := json.Unmarshal(obj, &params); err != nil {
		return nil, err
	}
	return params, nil
}

// DecodeArgs decodes tool arguments into v.
func DecodeArgs(raw json.RawMessage, v any) error {
	obj, err := unwrapArguments(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(obj, v); err != nil {
		return fmt.Errorf("decode tool arguments: %w", err)
	}
	return nil
}

// toolError is what the model sees when a tool cannot run.
func toolError(reason string, err error) map[string]any {
	out := map[string]any{"status": "error", "reason": reason}
	if err != nil {
		out["detail"] = err.Error()
	}
	return out
}
