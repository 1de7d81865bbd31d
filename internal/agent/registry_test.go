package agent

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yubzen/globetrip/internal/providers"
)

type memoryTranscript struct {
	mu   sync.Mutex
	msgs map[string][]providers.Message
}

func (m *memoryTranscript) AgentMessages(ctx context.Context, sessionID, agentID string) ([]providers.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]providers.Message(nil), m.msgs[sessionID+"/"+agentID]...), nil
}

func (m *memoryTranscript) AppendAgentMessage(ctx context.Context, sessionID, agentID, role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.msgs == nil {
		m.msgs = map[string][]providers.Message{}
	}
	key := sessionID + "/" + agentID
	m.msgs[key] = append(m.msgs[key], providers.Message{Role: role, Content: content})
	return nil
}

func TestProfilesParseAndResolve(t *testing.T) {
	t.Parallel()

	profiles, err := ParseProfiles([]byte(`
intake:
  provider: anthropic
  model: claude-test
  temperature: 0.1
visa_search:
  timeout_seconds: 30
custom_agent:
  model: x
`))
	require.NoError(t, err)

	fallback := Profile{Provider: "openai", Model: "gpt-test", BaseURL: "https://llm.test/v1"}

	intake, ok := profiles.Resolve(AgentIntake, fallback)
	require.True(t, ok)
	assert.Equal(t, "anthropic", intake.Provider)
	assert.Equal(t, "claude-test", intake.Model)
	assert.Empty(t, intake.BaseURL, "an explicit provider keeps its own default endpoint")
	assert.Equal(t, 0.1, intake.Temperature)
	assert.Equal(t, 1000, intake.MaxTokens, "unset fields keep the built-in default")
	assert.True(t, intake.Conversational)

	visa, ok := profiles.Resolve(AgentVisaSearch, fallback)
	require.True(t, ok)
	assert.Equal(t, "openai", visa.Provider)
	assert.Equal(t, "gpt-test", visa.Model)
	assert.Equal(t, "https://llm.test/v1", visa.BaseURL)
	assert.Equal(t, 30*time.Second, visa.Timeout())

	_, ok = profiles.Resolve("unknown", fallback)
	assert.False(t, ok)

	_, err = ParseProfiles([]byte("intake: [unclosed"))
	assert.Error(t, err)
}

func TestLoadProfilesMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	profiles, err := LoadProfiles(filepath.Join(t.TempDir(), "agents.yaml"))
	require.NoError(t, err)
	for _, id := range IDs() {
		assert.Contains(t, profiles, id)
	}
	assert.Equal(t, defaultTimeout, Profile{}.Timeout())
}

func TestLoadInstructions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	assert.Equal(t, DefaultInstructions(AgentVisaSearch), LoadInstructions(dir, AgentVisaSearch, ""))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "visa_search.md"), []byte("Role file."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.md"), []byte("Custom file."), 0o644))
	assert.Equal(t, "Role file.", LoadInstructions(dir, AgentVisaSearch, ""))
	assert.Equal(t, "Custom file.", LoadInstructions(dir, AgentVisaSearch, "custom.md"))
	assert.Equal(t, "Role file.", LoadInstructions(dir, AgentVisaSearch, "missing.md"))
}

func TestRegistryInvokeConversational(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{}
	transcript := &memoryTranscript{}
	var sessionSeen string
	reg := NewRegistry(RegistryConfig{
		Fallback:    Profile{Provider: "scripted", Model: "m"},
		NewProvider: func(Profile) (providers.Provider, error) { return provider, nil },
		Transcript:  transcript,
	})
	reg.Bind(AgentIntake, NewToolSet(Tool{
		Name: "noop",
		Execute: func(ctx context.Context, _ json.RawMessage) (any, error) {
			sessionSeen, _ = SessionFromContext(ctx)
			return nil, nil
		},
	}))

	provider.responses = []providers.CompletionResponse{
		{ToolCalls: []providers.ToolCall{call("c1", "noop", `{}`)}},
		{Text: "Where are you flying from?"},
	}
	_, err := reg.Invoke(context.Background(), AgentIntake, "s-1", "I want to go to Lisbon")
	require.NoError(t, err)
	assert.Equal(t, "s-1", sessionSeen)

	provider.responses = []providers.CompletionResponse{{Text: "Great."}}
	events, err := reg.Invoke(context.Background(), AgentIntake, "s-1", "From Porto")
	require.NoError(t, err)
	assert.Equal(t, "Great.", FinalText(events))

	last := provider.requests[len(provider.requests)-1].Messages
	require.Len(t, last, 4)
	assert.Equal(t, "I want to go to Lisbon", last[1].Content)
	assert.Equal(t, "Where are you flying from?", last[2].Content)
	assert.Equal(t, "From Porto", last[3].Content)

	history, _ := transcript.AgentMessages(context.Background(), "s-1", AgentIntake)
	assert.Len(t, history, 4)
}

func TestRegistryErrors(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(RegistryConfig{
		Fallback: Profile{Provider: "scripted", Model: "m"},
		NewProvider: func(Profile) (providers.Provider, error) {
			return nil, errors.New("no such provider")
		},
	})

	_, err := reg.Invoke(context.Background(), "travel_agent", "s", "hi")
	assert.ErrorIs(t, err, ErrUnknownAgent)

	_, err = reg.Invoke(context.Background(), AgentTripSummary, "s", "hi")
	assert.ErrorContains(t, err, "no such provider")

	noModel := NewRegistry(RegistryConfig{
		Fallback:    Profile{Provider: "scripted"},
		NewProvider: func(Profile) (providers.Provider, error) { return &scriptedProvider{}, nil },
	})
	_, _, err = noModel.Build(AgentTripSummary)
	assert.ErrorContains(t, err, "model is empty")
}

func TestWatchProfilesReloads(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte("intake:\n  model: first\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan Profiles, 4)
	done, err := WatchProfiles(ctx, path, nil, func(p Profiles) { reloaded <- p })
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("intake:\n  model: second\n"), 0o644))

	select {
	case p := <-reloaded:
		assert.Equal(t, "second", p[AgentIntake].Model)
	case <-time.After(5 * time.Second):
		t.Fatal("profiles were not reloaded")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
