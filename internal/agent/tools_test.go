package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func noop(ctx context.Context, args json.RawMessage) (any, error) { return nil, nil }

func TestNewToolSetNormalizesNames(t *testing.T) {
	t.Parallel()

	set := NewToolSet(
		Tool{Name: " Update_Trip_Plan ", Description: "Merge trip facts.", Execute: noop},
		Tool{Name: "", Execute: noop},
		Tool{Name: "no_executor"},
		Tool{Name: "resolve_airports", Description: "Find airports.", Execute: noop},
	)

	if got := set.Names(); strings.Join(got, ",") != "update_trip_plan,resolve_airports" {
		t.Fatalf("unexpected names: %v", got)
	}
	if _, ok := set.Get("UPDATE_TRIP_PLAN"); !ok {
		t.Fatal("expected case-insensitive lookup")
	}
	if _, ok := set.Get("no_executor"); ok {
		t.Fatal("tools without Execute should be dropped")
	}
}

func TestToolSetPromptAndProviderTools(t *testing.T) {
	t.Parallel()

	if NewToolSet().PromptBlock() != "" {
		t.Fatal("empty tool set should not add a prompt block")
	}

	set := NewToolSet(
		Tool{Name: "record_flight_search_result", Description: "Store a flight result.", Execute: noop},
		Tool{
			Name:    "resolve_airports",
			Schema:  Object(map[string]any{"location": String("City.")}, "location"),
			Execute: noop,
		},
	)
	block := set.PromptBlock()
	if !strings.Contains(block, "- record_flight_search_result: Store a flight result.") {
		t.Fatalf("prompt block missing tool line: %q", block)
	}

	tools := set.ProviderTools()
	if len(tools) != 2 {
		t.Fatalf("expected 2 provider tools, got %d", len(tools))
	}
	empty := tools[0].InputSchema.(map[string]any)
	if empty["type"] != "object" {
		t.Fatalf("expected default object schema, got %#v", empty)
	}
	schema := tools[1].InputSchema.(map[string]any)
	if req := schema["required"].([]string); len(req) != 1 || req[0] != "location" {
		t.Fatalf("unexpected required list: %#v", schema["required"])
	}
}
