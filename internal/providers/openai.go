package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI talks to any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	BaseURL      string
	KeyName      string // credential name, e.g. "openai" or "openrouter"
	Client       *http.Client
	ExtraHeaders map[string]string
}

func NewOpenAI(baseURL, keyName string) *OpenAI {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if strings.TrimSpace(keyName) == "" {
		keyName = "openai"
	}
	return &OpenAI{
		BaseURL: strings.TrimRight(baseURL, "/"),
		KeyName: keyName,
		Client:  &http.Client{},
	}
}

func (p *OpenAI) Name() string {
	return p.KeyName
}

// Ping lists models with the stored key.
func (p *OpenAI) Ping(ctx context.Context) error {
	_, err := p.ListModels(ctx)
	return err
}

func (p *OpenAI) headers(key string) map[string]string {
	h := map[string]string{"Authorization": "Bearer " + key}
	for k, v := range p.ExtraHeaders {
		h[k] = v
	}
	return h
}

// ListModels lists the endpoint's models. Models whose prompt price is
// reported as "0" (OpenRouter does this) are labelled [free].
func (p *OpenAI) ListModels(ctx context.Context) ([]string, error) {
	key, err := credentialFor(p.KeyName)
	if err != nil {
		return nil, err
	}
	var result struct {
		Data []struct {
			ID      string `json:"id"`
			Pricing *struct {
				Prompt string `json:"prompt"`
			} `json:"pricing"`
		} `json:"data"`
	}
	if err := doJSON(ctx, p.Client, p.KeyName, http.MethodGet, p.BaseURL+"/models", p.headers(key), nil, &result); err != nil {
		return nil, err
	}
	models := make([]string, 0, len(result.Data))
	for _, m := range result.Data {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			continue
		}
		if m.Pricing != nil && strings.TrimSpace(m.Pricing.Prompt) == "0" {
			id += " [free]"
		}
		models = append(models, id)
	}
	return models, nil
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    *string          `json:"content"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAIFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content   *string          `json:"content"`
			ToolCalls []openAIToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func openAIMessages(messages []Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(messages))
	for _, m := range messages {
		content := m.Content
		msg := openAIMessage{Role: m.Role, Content: &content}
		if m.Role == "tool" {
			msg.ToolCallID = m.ToolCallID
		}
		if m.Role == "assistant" && len(m.ToolCalls) > 0 {
			if strings.TrimSpace(content) == "" {
				msg.Content = nil
			}
			for _, tc := range m.ToolCalls {
				var call openAIToolCall
				call.ID = tc.ID
				call.Type = "function"
				call.Function.Name = tc.Name
				call.Function.Arguments = string(tc.Arguments)
				if call.Function.Arguments == "" {
					call.Function.Arguments = "{}"
				}
				msg.ToolCalls = append(msg.ToolCalls, call)
			}
		}
		out = append(out, msg)
	}
	return out
}

func (p *OpenAI) Complete(ctx context.Context, r Request) (CompletionResponse, error) {
	key, err := credentialFor(p.KeyName)
	if err != nil {
		return CompletionResponse{}, err
	}

	req := openAIRequest{
		Model:       r.Model,
		Messages:    openAIMessages(r.Messages),
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
	}
	for _, t := range r.Tools {
		req.Tools = append(req.Tools, openAITool{
			Type:     "function",
			Function: openAIFunction{Name: t.Name, Description: t.Description, Parameters: t.InputSchema},
		})
	}

	var result openAIResponse
	if err := doJSON(ctx, p.Client, p.KeyName, http.MethodPost, p.BaseURL+"/chat/completions", p.headers(key), req, &result); err != nil {
		return CompletionResponse{}, err
	}
	if len(result.Choices) == 0 {
		return CompletionResponse{}, errors.New("empty response from " + p.KeyName)
	}

	choice := result.Choices[0]
	out := CompletionResponse{StopReason: choice.FinishReason}
	if choice.Message.Content != nil {
		out.Text = strings.TrimSpace(*choice.Message.Content)
	}
	for _, tc := range choice.Message.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		if len(bytes.TrimSpace(args)) == 0 {
			args = json.RawMessage("{}")
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}
	if out.Text == "" && len(out.ToolCalls) == 0 {
		return CompletionResponse{}, errors.New("empty response from " + p.KeyName)
	}
	return out, nil
}
