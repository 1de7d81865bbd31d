package providers

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindOpenAICompat Kind = "openai"
	KindAnthropic    Kind = "anthropic"
	KindGoogle       Kind = "google"
	KindOpenRouter   Kind = "openrouter"
)

// KnownKeyNames lists the credential names the CLI manages.
var KnownKeyNames = []string{"anthropic", "openai", "openrouter", "google", "searchapi"}

type Config struct {
	Kind    Kind
	KeyName string
	BaseURL string
}

func New(cfg Config) (Provider, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(string(cfg.Kind))))
	switch kind {
	case KindOpenAICompat, "openai_compat":
		return NewOpenAI(cfg.BaseURL, strings.TrimSpace(cfg.KeyName)), nil
	case KindAnthropic:
		return NewAnthropic(cfg.BaseURL), nil
	case KindGoogle:
		return NewGoogle(cfg.BaseURL), nil
	case KindOpenRouter:
		return NewOpenRouter(cfg.BaseURL, strings.TrimSpace(cfg.KeyName)), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
}
