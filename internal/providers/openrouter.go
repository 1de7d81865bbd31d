package providers

import "strings"

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	openRouterReferer        = "https://github.com/yubzen/globetrip"
	openRouterTitle          = "globetrip"
)

// NewOpenRouter returns an OpenAI-compatible client for OpenRouter, sending
// the attribution headers OpenRouter asks for.
func NewOpenRouter(baseURL, keyName string) *OpenAI {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	if strings.TrimSpace(keyName) == "" {
		keyName = "openrouter"
	}
	p := NewOpenAI(baseURL, keyName)
	p.ExtraHeaders = map[string]string{
		"HTTP-Referer": openRouterReferer,
		"X-Title":      openRouterTitle,
	}
	return p
}
