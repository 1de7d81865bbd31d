package agent

import (
	"encoding/json"
	"time"
)

type EventType int

const (
	EventToolCall EventType = iota
	EventText
	EventDone
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventToolCall:
		return "tool_call"
	case EventText:
		return "text"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// ToolInvocation records one tool call made by an agent and what the tool
// handed back.
type ToolInvocation struct {
	Name     string          `json:"name"`
	Args     json.RawMessage `json:"args"`
	Response any             `json:"response"`
}

type Event struct {
	Type   EventType
	Agent  string
	Detail string
	Text   string
	Tool   *ToolInvocation
	At     time.Time
}

// FinalText returns the agent's last text reply, or "" when it only called
// tools.
func FinalText(events []Event) string {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == EventText {
			return events[i].Text
		}
	}
	return ""
}

// ToolResponse returns the response of the last call to the named tool.
func ToolResponse(events []Event, name string) (any, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		if ev := events[i]; ev.Type == EventToolCall && ev.Tool != nil && ev.Tool.Name == name {
			return ev.Tool.Response, true
		}
	}
	return nil, false
}

func ToolInvocations(events []Event) []ToolInvocation {
	var out []ToolInvocation
	for _, ev := range events {
		if ev.Type == EventToolCall && ev.Tool != nil {
			out = append(out, *ev.Tool)
		}
	}
	return out
}
