package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yubzen/globetrip/internal/logging"
	"github.com/yubzen/globetrip/internal/providers"
	"github.com/yubzen/globetrip/internal/redact"
)

const DefaultMaxTurns = 8

var (
	ErrAgentNotReady = errors.New("agent is not initialized")
	ErrUnknownAgent  = errors.New("unknown agent")
	ErrMaxTurns      = errors.New("agent exceeded its turn limit")
)

type Agent struct {
	ID           string
	Model        string
	Provider     providers.Provider
	Instructions string
	Tools        ToolSet
	Temperature  float64
	MaxTokens    int
	MaxTurns     int
	Logger       *slog.Logger
}

func (a *Agent) Validate() error {
	if a == nil {
		return ErrAgentNotReady
	}
	if a.Provider == nil {
		return fmt.Errorf("%s agent provider is not configured", a.ID)
	}
	if strings.TrimSpace(a.Model) == "" {
		return fmt.Errorf("%s agent model is empty", a.ID)
	}
	if strings.TrimSpace(a.Instructions) == "" {
		return fmt.Errorf("%s agent instructions are empty", a.ID)
	}
	return nil
}

func (a *Agent) systemPrompt() string {
	prompt := strings.TrimSpace(a.Instructions)
	if block := a.Tools.PromptBlock(); block != "" {
		prompt += "\n\n" + block
	}
	return prompt
}

// Run sends message to the model and executes tool calls until the model
// answers with text or MaxTurns completions have been spent. Events are
// returned even when Run fails part way.
func (a *Agent) Run(ctx context.Context, history []providers.Message, message string) ([]Event, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	log := a.Logger
	if log == nil {
		log = logging.Discard()
	}
	maxTurns := a.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	messages := make([]providers.Message, 0, len(history)+2)
	messages = append(messages, providers.Message{Role: "system", Content: a.systemPrompt()})
	for _, h := range history {
		h.Content = redact.Clean(h.Content)
		messages = append(messages, h)
	}
	messages = append(messages, providers.Message{Role: "user", Content: redact.Clean(message)})

	var events []Event
	fail := func(err error) ([]Event, error) {
		err = normalizeCancellationErr(err)
		events = append(events, Event{Type: EventError, Agent: a.ID, Detail: err.Error(), At: time.Now()})
		return events, err
	}

	for turn := 0; turn < maxTurns; turn++ {
		if err := checkContextCancelled(ctx); err != nil {
			return fail(err)
		}

		resp, err := a.Provider.Complete(ctx, providers.Request{
			Model:       a.Model,
			Messages:    messages,
			Tools:       a.Tools.ProviderTools(),
			Temperature: a.Temperature,
			MaxTokens:   a.MaxTokens,
		})
		if err != nil {
			return fail(err)
		}

		if len(resp.ToolCalls) == 0 {
			text := redact.Clean(strings.TrimSpace(resp.Text))
			events = append(events,
				Event{Type: EventText, Agent: a.ID, Text: text, At: time.Now()},
				Event{Type: EventDone, Agent: a.ID, Detail: resp.StopReason, At: time.Now()},
			)
			log.Debug("agent finished", "turns", turn+1, "tool_calls", len(ToolInvocations(events)))
			return events, nil
		}

		messages = append(messages, providers.Message{
			Role:      "assistant",
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			response, err := a.callTool(ctx, call)
			if err != nil {
				return fail(err)
			}
			events = append(events, Event{
				Type:   EventToolCall,
				Agent:  a.ID,
				Detail: call.Name,
				Tool:   &ToolInvocation{Name: call.Name, Args: call.Arguments, Response: response},
				At:     time.Now(),
			})

			content, err := json.Marshal(response)
			if err != nil {
				content, _ = json.Marshal(toolError("unencodable_result", err))
			}
			messages = append(messages, providers.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    redact.Clean(string(content)),
			})
		}
	}

	log.Warn("agent turn limit reached", "max_turns", maxTurns)
	return fail(fmt.Errorf("%w: %s after %d turns", ErrMaxTurns, a.ID, maxTurns))
}

// callTool runs one tool call. Tool failures are reported to the model as
// error results; only cancellation aborts the run.
func (a *Agent) callTool(ctx context.Context, call providers.ToolCall) (any, error) {
	log := a.Logger
	if log == nil {
		log = logging.Discard()
	}
	tool, ok := a.Tools.Get(call.Name)
	if !ok {
		log.Warn("agent called unknown tool", "tool", call.Name)
		return toolError("unknown_tool", fmt.Errorf("%q is not available to %s", call.Name, a.ID)), nil
	}
	if _, err := unwrapArguments(call.Arguments); err != nil {
		log.Warn("agent sent malformed tool arguments", "tool", call.Name, "preview", redact.Clean(string(call.Arguments)))
		return toolError("invalid_arguments", err), nil
	}

	response, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		if IsUserCancelled(err) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		log.Warn("tool failed", "tool", call.Name, "error", err)
		return toolError("tool_failed", err), nil
	}
	return response, nil
}
