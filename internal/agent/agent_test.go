package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yubzen/globetrip/internal/providers"
)

// scriptedProvider replays canned completions and records every request.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []providers.CompletionResponse
	err       error
	requests  []providers.Request
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, r providers.Request) (providers.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, r)
	if p.err != nil {
		return providers.CompletionResponse{}, p.err
	}
	if len(p.responses) == 0 {
		return providers.CompletionResponse{Text: "done"}, nil
	}
	next := p.responses[0]
	p.responses = p.responses[1:]
	return next, nil
}

func (p *scriptedProvider) ListModels(ctx context.Context) ([]string, error) { return nil, nil }
func (p *scriptedProvider) Ping(ctx context.Context) error                   { return nil }

func call(id, name, args string) providers.ToolCall {
	return providers.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

func echoTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: "Echo the location.",
		Schema:      Object(map[string]any{"location": String("City name.")}, "location"),
		Execute: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Location string `json:"location"`
			}
			if err := DecodeArgs(args, &in); err != nil {
				return nil, err
			}
			return map[string]any{"status": "success", "location": in.Location}, nil
		},
	}
}

func TestAgentRunExecutesToolCalls(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: []providers.CompletionResponse{
		{ToolCalls: []providers.ToolCall{call("c1", "resolve_airports", `{"location":"Lagos"}`)}},
		{Text: "Lagos is served by LOS."},
	}}
	a := &Agent{
		ID:           AgentIntake,
		Model:        "test-model",
		Provider:     provider,
		Instructions: "Help plan trips.",
		Tools:        NewToolSet(echoTool("resolve_airports")),
	}

	events, err := a.Run(context.Background(), nil, "Where do I fly from? key=abc123")
	require.NoError(t, err)
	assert.Equal(t, "Lagos is served by LOS.", FinalText(events))

	resp, ok := ToolResponse(events, "resolve_airports")
	require.True(t, ok)
	assert.Equal(t, "Lagos", resp.(map[string]any)["location"])

	require.Len(t, provider.requests, 2)
	first := provider.requests[0]
	assert.Contains(t, first.Messages[0].Content, "Available tools")
	assert.NotContains(t, first.Messages[1].Content, "abc123")
	require.Len(t, first.Tools, 1)

	second := provider.requests[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, "tool", second[3].Role)
	assert.Equal(t, "c1", second[3].ToolCallID)
	assert.JSONEq(t, `{"status":"success","location":"Lagos"}`, second[3].Content)
}

func TestAgentRunReportsToolProblemsToModel(t *testing.T) {
	t.Parallel()

	failing := Tool{
		Name: "update_trip_plan",
		Execute: func(ctx context.Context, args json.RawMessage) (any, error) {
			return nil, errors.New("store offline")
		},
	}
	provider := &scriptedProvider{responses: []providers.CompletionResponse{
		{ToolCalls: []providers.ToolCall{
			call("c1", "book_hotel", `{}`),
			call("c2", "update_trip_plan", `[1,2]`),
			call("c3", "update_trip_plan", `{}`),
		}},
		{Text: "Sorry, something went wrong."},
	}}
	a := &Agent{ID: AgentIntake, Model: "m", Provider: provider, Instructions: "x", Tools: NewToolSet(failing)}

	events, err := a.Run(context.Background(), nil, "hi")
	require.NoError(t, err)

	calls := ToolInvocations(events)
	require.Len(t, calls, 3)
	assert.Equal(t, "unknown_tool", calls[0].Response.(map[string]any)["reason"])
	assert.Equal(t, "invalid_arguments", calls[1].Response.(map[string]any)["reason"])
	assert.Equal(t, "tool_failed", calls[2].Response.(map[string]any)["reason"])
	assert.Equal(t, "store offline", calls[2].Response.(map[string]any)["detail"])
}

func TestAgentRunTurnLimit(t *testing.T) {
	t.Parallel()

	loop := providers.CompletionResponse{ToolCalls: []providers.ToolCall{call("c", "resolve_airports", `{"location":"Rome"}`)}}
	provider := &scriptedProvider{responses: []providers.CompletionResponse{loop, loop, loop}}
	a := &Agent{
		ID:           AgentIntake,
		Model:        "m",
		Provider:     provider,
		Instructions: "x",
		Tools:        NewToolSet(echoTool("resolve_airports")),
		MaxTurns:     2,
	}

	events, err := a.Run(context.Background(), nil, "hi")
	require.ErrorIs(t, err, ErrMaxTurns)
	assert.Len(t, ToolInvocations(events), 2)
	assert.Equal(t, EventError, events[len(events)-1].Type)
}

func TestAgentValidate(t *testing.T) {
	t.Parallel()

	var nilAgent *Agent
	assert.ErrorIs(t, nilAgent.Validate(), ErrAgentNotReady)
	assert.Error(t, (&Agent{ID: "x", Model: "m"}).Validate())
	assert.Error(t, (&Agent{ID: "x", Provider: &scriptedProvider{}, Instructions: "i"}).Validate())
	assert.NoError(t, (&Agent{ID: "x", Model: "m", Provider: &scriptedProvider{}, Instructions: "i"}).Validate())
}

func TestParseToolArgumentsSupportsJSONStringPayload(t *testing.T) {
	t.Parallel()

	encoded, err := json.Marshal(`{"location":"Houston, Texas","adults":2}`)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	params, err := parseToolArguments(json.RawMessage(encoded))
	if err != nil {
		t.Fatalf("parseToolArguments: %v", err)
	}
	if got := params["location"]; got != "Houston, Texas" {
		t.Fatalf("expected location Houston, Texas, got %#v", got)
	}

	var in struct {
		Adults int `json:"adults"`
	}
	if err := DecodeArgs(json.RawMessage(encoded), &in); err != nil {
		t.Fatalf("DecodeArgs: %v", err)
	}
	if in.Adults != 2 {
		t.Fatalf("expected 2 adults, got %d", in.Adults)
	}

	if _, err := parseToolArguments(json.RawMessage(`"not json"`)); err == nil {
		t.Fatal("expected a string without an object to be rejected")
	}
	if params, err := parseToolArguments(nil); err != nil || len(params) != 0 {
		t.Fatalf("expected empty arguments to decode as {}, got %v %v", params, err)
	}
}
