package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yubzen/globetrip/internal/logging"
	"github.com/yubzen/globetrip/internal/providers"
)

// Invoker runs one agent turn for a session and returns everything the agent
// did. Pipelines depend on this interface only.
type Invoker interface {
	Invoke(ctx context.Context, agentID, sessionID, message string) ([]Event, error)
}

// Transcript persists conversational agents' messages per session.
type Transcript interface {
	AgentMessages(ctx context.Context, sessionID, agentID string) ([]providers.Message, error)
	AppendAgentMessage(ctx context.Context, sessionID, agentID, role, content string) error
}

type ProviderFactory func(Profile) (providers.Provider, error)

// DefaultProviderFactory builds providers through providers.New.
func DefaultProviderFactory(p Profile) (providers.Provider, error) {
	return providers.New(providers.Config{Kind: providers.Kind(p.Provider), BaseURL: p.BaseURL})
}

type RegistryConfig struct {
	Profiles Profiles
	// Fallback supplies provider, model and base URL for profiles without them.
	Fallback    Profile
	RolesDir    string
	NewProvider ProviderFactory
	Transcript  Transcript
	Logger      *slog.Logger
}

// Registry builds agents from profiles and bound tool sets. It is safe for
// concurrent use; profiles may be swapped while invocations run.
type Registry struct {
	mu          sync.RWMutex
	profiles    Profiles
	fallback    Profile
	rolesDir    string
	tools       map[string]ToolSet
	newProvider ProviderFactory
	transcript  Transcript
	logger      *slog.Logger
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Profiles == nil {
		cfg.Profiles = DefaultProfiles()
	}
	if cfg.NewProvider == nil {
		cfg.NewProvider = DefaultProviderFactory
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &Registry{
		profiles:    cfg.Profiles,
		fallback:    cfg.Fallback,
		rolesDir:    cfg.RolesDir,
		tools:       map[string]ToolSet{},
		newProvider: cfg.NewProvider,
		transcript:  cfg.Transcript,
		logger:      cfg.Logger,
	}
}

// Bind attaches the tools an agent may call.
func (r *Registry) Bind(agentID string, tools ToolSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[agentID] = tools
}

func (r *Registry) SetProfiles(p Profiles) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles = p
}

func (r *Registry) Profile(agentID string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profiles.Resolve(agentID, r.fallback)
}

// Watch hot-reloads profiles from path until ctx is done.
func (r *Registry) Watch(ctx context.Context, path string) (<-chan struct{}, error) {
	return WatchProfiles(ctx, path, r.logger, r.SetProfiles)
}

// Build assembles a ready-to-run agent.
func (r *Registry) Build(agentID string) (*Agent, Profile, error) {
	profile, ok := r.Profile(agentID)
	if !ok {
		return nil, Profile{}, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	provider, err := r.newProvider(profile)
	if err != nil {
		return nil, profile, fmt.Errorf("%s agent: %w", agentID, err)
	}

	r.mu.RLock()
	tools := r.tools[agentID]
	r.mu.RUnlock()

	a := &Agent{
		ID:           agentID,
		Model:        profile.Model,
		Provider:     provider,
		Instructions: LoadInstructions(r.rolesDir, agentID, profile.InstructionsFile),
		Tools:        tools,
		Temperature:  profile.Temperature,
		MaxTokens:    profile.MaxTokens,
		MaxTurns:     profile.MaxTurns,
		Logger:       r.logger.With("agent", agentID),
	}
	if err := a.Validate(); err != nil {
		return nil, profile, err
	}
	return a, profile, nil
}

func (r *Registry) Invoke(ctx context.Context, agentID, sessionID, message string) ([]Event, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	a, profile, err := r.Build(agentID)
	if err != nil {
		return nil, err
	}
	log := logging.ForSession(r.logger, sessionID).With("agent", agentID)
	a.Logger = log

	ctx, cancel := context.WithTimeout(WithSession(ctx, sessionID), profile.Timeout())
	defer cancel()

	var history []providers.Message
	if profile.Conversational && r.transcript != nil {
		history, err = r.transcript.AgentMessages(ctx, sessionID, agentID)
		if err != nil {
			return nil, fmt.Errorf("load %s history: %w", agentID, err)
		}
	}

	start := time.Now()
	log.Info("agent invoked", "model", profile.Model, "provider", profile.Provider, "history", len(history))
	events, runErr := a.Run(ctx, history, message)
	if runErr != nil {
		if errors.Is(runErr, context.DeadlineExceeded) {
			runErr = fmt.Errorf("%s agent timed out after %s: %w", agentID, profile.Timeout(), runErr)
		}
		log.Warn("agent run failed", "elapsed", time.Since(start), "error", runErr)
		return events, runErr
	}
	log.Info("agent completed", "elapsed", time.Since(start), "tool_calls", len(ToolInvocations(events)))

	if profile.Conversational && r.transcript != nil {
		if err := r.transcript.AppendAgentMessage(ctx, sessionID, agentID, "user", message); err != nil {
			return events, fmt.Errorf("save %s message: %w", agentID, err)
		}
		if reply := FinalText(events); reply != "" {
			if err := r.transcript.AppendAgentMessage(ctx, sessionID, agentID, "assistant", reply); err != nil {
				return events, fmt.Errorf("save %s reply: %w", agentID, err)
			}
		}
	}
	return events, nil
}
