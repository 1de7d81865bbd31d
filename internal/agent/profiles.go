package agent

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultTimeout = 120 * time.Second

// Profile is the per-agent model configuration read from agents.yaml. Empty
// provider, model and base_url fall back to the [llm] config section.
type Profile struct {
	Provider         string  `yaml:"provider,omitempty"`
	Model            string  `yaml:"model,omitempty"`
	BaseURL          string  `yaml:"base_url,omitempty"`
	Temperature      float64 `yaml:"temperature,omitempty"`
	MaxTokens        int     `yaml:"max_tokens,omitempty"`
	TimeoutSeconds   int     `yaml:"timeout_seconds,omitempty"`
	InstructionsFile string  `yaml:"instructions_file,omitempty"`
	MaxTurns         int     `yaml:"max_turns,omitempty"`
	// Conversational agents see the session's earlier messages.
	Conversational bool `yaml:"conversational,omitempty"`
}

func (p Profile) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return defaultTimeout
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

type Profiles map[string]Profile

func DefaultProfiles() Profiles {
	return Profiles{
		AgentIntake:               {Temperature: 0.2, MaxTokens: 1000, TimeoutSeconds: 60, Conversational: true},
		AgentVisaSearch:           {MaxTokens: 1000, TimeoutSeconds: 90, MaxTurns: 2},
		AgentFlightSummary:        {MaxTokens: 2000, TimeoutSeconds: 90, MaxTurns: 4},
		AgentAccommodationSummary: {MaxTokens: 2000, TimeoutSeconds: 90, MaxTurns: 4},
		AgentActivitySearch:       {Temperature: 0.3, MaxTokens: 3000, TimeoutSeconds: 120, MaxTurns: 2},
		AgentDayItinerary:         {Temperature: 0.3, MaxTokens: 2000, TimeoutSeconds: 120, MaxTurns: 2},
		AgentTripSummary:          {Temperature: 0.4, MaxTokens: 2500, TimeoutSeconds: 120, MaxTurns: 2},
	}
}

// overlay copies the fields set in o over p.
func (p Profile) overlay(o Profile) Profile {
	if o.Provider != "" {
		p.Provider = o.Provider
	}
	if o.Model != "" {
		p.Model = o.Model
	}
	if o.BaseURL != "" {
		p.BaseURL = o.BaseURL
	}
	if o.Temperature != 0 {
		p.Temperature = o.Temperature
	}
	if o.MaxTokens != 0 {
		p.MaxTokens = o.MaxTokens
	}
	if o.TimeoutSeconds != 0 {
		p.TimeoutSeconds = o.TimeoutSeconds
	}
	if o.InstructionsFile != "" {
		p.InstructionsFile = o.InstructionsFile
	}
	if o.MaxTurns != 0 {
		p.MaxTurns = o.MaxTurns
	}
	if o.Conversational {
		p.Conversational = true
	}
	return p
}

// ParseProfiles decodes agents.yaml content over the defaults.
func ParseProfiles(data []byte) (Profiles, error) {
	var file map[string]Profile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse agent profiles: %w", err)
	}
	out := DefaultProfiles()
	for id, p := range file {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		out[id] = out[id].overlay(p)
	}
	return out, nil
}

// LoadProfiles reads agents.yaml. A missing file yields the defaults.
func LoadProfiles(path string) (Profiles, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultProfiles(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultProfiles(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read agent profiles: %w", err)
	}
	return ParseProfiles(data)
}

// Resolve returns the profile for id with provider, model and base URL
// filled from fallback where unset.
func (ps Profiles) Resolve(id string, fallback Profile) (Profile, bool) {
	p, ok := ps[id]
	if !ok {
		return Profile{}, false
	}
	if p.Provider == "" {
		p.Provider = fallback.Provider
		if p.BaseURL == "" {
			p.BaseURL = fallback.BaseURL
		}
	}
	if p.Model == "" {
		p.Model = fallback.Model
	}
	return p, true
}

// Marshal renders profiles as agents.yaml content.
func (ps Profiles) Marshal() ([]byte, error) {
	return yaml.Marshal(map[string]Profile(ps))
}
