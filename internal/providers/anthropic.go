package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
	defaultAnthropicTokens  = 8192
)

type Anthropic struct {
	BaseURL string
	Client  *http.Client
}

func NewAnthropic(baseURL string) *Anthropic {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultAnthropicBaseURL
	}
	return &Anthropic{BaseURL: strings.TrimRight(baseURL, "/"), Client: &http.Client{}}
}

func (p *Anthropic) Name() string {
	return "anthropic"
}

// Ping lists models with the stored key.
func (p *Anthropic) Ping(ctx context.Context) error {
	_, err := p.ListModels(ctx)
	return err
}

func (p *Anthropic) headers(key string) map[string]string {
	return map[string]string{"x-api-key": key, "anthropic-version": anthropicVersion}
}

func (p *Anthropic) ListModels(ctx context.Context) ([]string, error) {
	key, err := credentialFor(p.Name())
	if err != nil {
		return nil, err
	}
	var result struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := doJSON(ctx, p.Client, p.Name(), http.MethodGet, p.BaseURL+"/models", p.headers(key), nil, &result); err != nil {
		return nil, err
	}
	models := make([]string, 0, len(result.Data))
	for _, item := range result.Data {
		models = append(models, item.ID)
	}
	return models, nil
}

type anthropicBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
	Stream      bool               `json:"stream"`
}

type anthropicResponse struct {
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
}

// anthropicMessages splits out the system prompt and converts the rest.
// Consecutive tool results are sent back as one user turn, which is what the
// Messages API expects after a multi-tool assistant turn.
func anthropicMessages(messages []Message) (string, []anthropicMessage) {
	var system []string
	var out []anthropicMessage
	for _, m := range messages {
		switch {
		case m.Role == "system":
			system = append(system, strings.TrimSpace(m.Content))
		case m.Role == "tool":
			block := anthropicBlock{Type: "tool_result", ToolUseID: m.ToolCallID, Content: m.Content}
			if n := len(out); n > 0 && out[n-1].Role == "user" && out[n-1].Content[0].Type == "tool_result" {
				out[n-1].Content = append(out[n-1].Content, block)
				continue
			}
			out = append(out, anthropicMessage{Role: "user", Content: []anthropicBlock{block}})
		case m.Role == "assistant" && len(m.ToolCalls) > 0:
			var blocks []anthropicBlock
			if strings.TrimSpace(m.Content) != "" {
				blocks = append(blocks, anthropicBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				input := tc.Arguments
				if len(input) == 0 {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, anthropicBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: input})
			}
			out = append(out, anthropicMessage{Role: "assistant", Content: blocks})
		default:
			out = append(out, anthropicMessage{Role: m.Role, Content: []anthropicBlock{{Type: "text", Text: m.Content}}})
		}
	}
	return strings.TrimSpace(strings.Join(system, "\n")), out
}

func (p *Anthropic) Complete(ctx context.Context, r Request) (CompletionResponse, error) {
	key, err := credentialFor(p.Name())
	if err != nil {
		return CompletionResponse{}, err
	}

	req := anthropicRequest{
		Model:       r.Model,
		MaxTokens:   r.MaxTokens,
		Temperature: r.Temperature,
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultAnthropicTokens
	}
	req.System, req.Messages = anthropicMessages(r.Messages)
	for _, t := range r.Tools {
		req.Tools = append(req.Tools, anthropicTool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}

	var result anthropicResponse
	if err := doJSON(ctx, p.Client, p.Name(), http.MethodPost, p.BaseURL+"/messages", p.headers(key), req, &result); err != nil {
		return CompletionResponse{}, err
	}

	out := CompletionResponse{StopReason: result.StopReason}
	var texts []string
	for _, block := range result.Content {
		switch block.Type {
		case "text":
			if text := strings.TrimSpace(block.Text); text != "" {
				texts = append(texts, text)
			}
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: block.ID, Name: block.Name, Arguments: block.Input})
		}
	}
	out.Text = strings.Join(texts, "\n")
	if out.Text == "" && len(out.ToolCalls) == 0 {
		return CompletionResponse{}, errors.New("empty response from anthropic")
	}
	return out, nil
}
