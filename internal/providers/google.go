package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

const defaultGoogleBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type Google struct {
	BaseURL string
	Client  *http.Client
}

func NewGoogle(baseURL string) *Google {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultGoogleBaseURL
	}
	return &Google{BaseURL: strings.TrimRight(baseURL, "/"), Client: &http.Client{}}
}

func (p *Google) Name() string {
	return "google"
}

// Ping lists models with the stored key.
func (p *Google) Ping(ctx context.Context) error {
	_, err := p.ListModels(ctx)
	return err
}

// ListModels lists the Gemini models that support generateContent.
func (p *Google) ListModels(ctx context.Context) ([]string, error) {
	key, err := credentialFor(p.Name())
	if err != nil {
		return nil, err
	}
	var result struct {
		Models []struct {
			Name    string   `json:"name"`
			Methods []string `json:"supportedGenerationMethods"`
		} `json:"models"`
	}
	if err := doJSON(ctx, p.Client, p.Name(), http.MethodGet, p.BaseURL+"/models", googleHeaders(key), nil, &result); err != nil {
		return nil, err
	}
	var models []string
	for _, m := range result.Models {
		if slices.Contains(m.Methods, "generateContent") {
			models = append(models, strings.TrimPrefix(m.Name, "models/"))
		}
	}
	return models, nil
}

func googleHeaders(key string) map[string]string {
	return map[string]string{"x-goog-api-key": key}
}

type googlePart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *googleFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *googleFunctionResponse `json:"functionResponse,omitempty"`
}

type googleFunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type googleFunctionResponse struct {
	Name     string      `json:"name"`
	Response interface{} `json:"response"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

// googleContents converts the conversation. Gemini has no call ids, so tool
// results are matched back to the function name of the call they answer.
func googleContents(messages []Message) (*googleContent, []googleContent) {
	var system *googleContent
	var contents []googleContent
	callNames := map[string]string{}

	for _, m := range messages {
		switch m.Role {
		case "system":
			system = &googleContent{Parts: []googlePart{{Text: m.Content}}}
		case "tool":
			var response interface{}
			if err := json.Unmarshal([]byte(m.Content), &response); err != nil {
				response = map[string]string{"content": m.Content}
			}
			if _, ok := response.(map[string]interface{}); !ok {
				response = map[string]interface{}{"content": response}
			}
			contents = append(contents, googleContent{
				Role: "user",
				Parts: []googlePart{{FunctionResponse: &googleFunctionResponse{
					Name:     callNames[m.ToolCallID],
					Response: response,
				}}},
			})
		case "assistant":
			var parts []googlePart
			if strings.TrimSpace(m.Content) != "" {
				parts = append(parts, googlePart{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				callNames[tc.ID] = tc.Name
				parts = append(parts, googlePart{FunctionCall: &googleFunctionCall{Name: tc.Name, Args: tc.Arguments}})
			}
			contents = append(contents, googleContent{Role: "model", Parts: parts})
		default:
			contents = append(contents, googleContent{Role: "user", Parts: []googlePart{{Text: m.Content}}})
		}
	}
	return system, contents
}

type googleFunctionDecl struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

type googleTool struct {
	FunctionDeclarations []googleFunctionDecl `json:"function_declarations"`
}

type googleGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type googleRequest struct {
	Contents          []googleContent         `json:"contents"`
	SystemInstruction *googleContent          `json:"system_instruction,omitempty"`
	GenerationConfig  *googleGenerationConfig `json:"generationConfig,omitempty"`
	Tools             []googleTool            `json:"tools,omitempty"`
}

func (p *Google) Complete(ctx context.Context, r Request) (CompletionResponse, error) {
	key, err := credentialFor(p.Name())
	if err != nil {
		return CompletionResponse{}, err
	}

	var req googleRequest
	req.SystemInstruction, req.Contents = googleContents(r.Messages)
	if r.Temperature > 0 || r.MaxTokens > 0 {
		req.GenerationConfig = &googleGenerationConfig{Temperature: r.Temperature, MaxOutputTokens: r.MaxTokens}
	}
	if len(r.Tools) > 0 {
		var decls []googleFunctionDecl
		for _, t := range r.Tools {
			decls = append(decls, googleFunctionDecl{Name: t.Name, Description: t.Description, Parameters: t.InputSchema})
		}
		req.Tools = []googleTool{{FunctionDeclarations: decls}}
	}

	var result struct {
		Candidates []struct {
			Content      googleContent `json:"content"`
			FinishReason string        `json:"finishReason"`
		} `json:"candidates"`
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", p.BaseURL, r.Model)
	err = doJSON(ctx, p.Client, p.Name(), http.MethodPost, url, googleHeaders(key), req, &result)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusBadRequest && strings.Contains(statusErr.Body, "API key not valid") {
		return CompletionResponse{}, &ProviderAuthError{ProviderName: p.Name(), Msg: "Unauthorized: invalid API key for google"}
	}
	if err != nil {
		return CompletionResponse{}, err
	}
	if len(result.Candidates) == 0 {
		return CompletionResponse{}, errors.New("empty response from google")
	}

	candidate := result.Candidates[0]
	out := CompletionResponse{StopReason: candidate.FinishReason}
	var texts []string
	for i, part := range candidate.Content.Parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
		if part.FunctionCall != nil {
			args := part.FunctionCall.Args
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        fmt.Sprintf("call_%d_%s", i, part.FunctionCall.Name),
				Name:      part.FunctionCall.Name,
				Arguments: args,
			})
		}
	}
	out.Text = strings.TrimSpace(strings.Join(texts, "\n"))
	if out.Text == "" && len(out.ToolCalls) == 0 {
		return CompletionResponse{}, errors.New("empty response from google")
	}
	return out, nil
}
