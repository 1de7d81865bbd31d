package providers

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
)

type Message struct {
	Role       string // "user" | "assistant" | "system" | "tool"
	Content    string
	ToolCallID string
	ToolCalls  []ToolCall
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"input_schema"`
}

// Request is one completion round trip. Zero Temperature and MaxTokens leave
// the provider defaults in place.
type Request struct {
	Model       string
	Messages    []Message
	Tools       []Tool
	Temperature float64
	MaxTokens   int
}

type CompletionResponse struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
}

type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (CompletionResponse, error)
	ListModels(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

type ProviderAuthError struct {
	ProviderName string
	Msg          string
}

func (e *ProviderAuthError) Error() string {
	return e.Msg
}

func authError(name string) error {
	return &ProviderAuthError{ProviderName: name, Msg: "API key not found. Run `globetrip auth set " + name + "` to store one."}
}

func ValidateCredential(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("credential is empty")
	}
	return nil
}

type modelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// DiscoverModels lists a provider's models, trimmed, deduplicated and sorted.
func DiscoverModels(ctx context.Context, p modelLister) ([]string, error) {
	raw, err := p.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, m := range raw {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}
