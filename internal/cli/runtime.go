package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yubzen/globetrip/internal/agent"
	"github.com/yubzen/globetrip/internal/config"
	"github.com/yubzen/globetrip/internal/logging"
	"github.com/yubzen/globetrip/internal/pipeline"
	"github.com/yubzen/globetrip/internal/search"
	"github.com/yubzen/globetrip/internal/state"
)

const watcherShutdownTimeout = 3 * time.Second

// Options carries the root command's persistent flags.
type Options struct {
	ConfigPath string
	DBPath     string
}

func (o *Options) load() (*config.Config, error) {
	path := config.GetConfigPath()
	if o != nil && strings.TrimSpace(o.ConfigPath) != "" {
		path = o.ConfigPath
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if o != nil && strings.TrimSpace(o.DBPath) != "" {
		cfg.Defaults.DBPath = o.DBPath
	}
	return cfg, nil
}

// Runtime is the wiring shared by every command that touches sessions.
type Runtime struct {
	Config   *config.Config
	DB       *state.DB
	Registry *agent.Registry
	Search   *search.Client
	Logger   *slog.Logger

	cancel   context.CancelFunc
	watching <-chan struct{}
	logClose io.Closer
}

func (r *Runtime) Close() {
	if r == nil {
		return
	}
	if r.cancel != nil {
		r.cancel()
	}
	if r.watching != nil {
		select {
		case <-r.watching:
		case <-time.After(watcherShutdownTimeout):
			fmt.Fprintln(os.Stderr, "timed out waiting for profile watcher shutdown")
		}
	}
	if r.DB != nil {
		_ = r.DB.Close()
	}
	if r.logClose != nil {
		_ = r.logClose.Close()
	}
}

// NewPlanner builds a planner over the runtime and binds its tools to the
// agent registry. Progress is sent to updates when it is non-nil, and the
// caller must keep draining it while the planner runs.
func (r *Runtime) NewPlanner(updates chan<- pipeline.StepUpdate) *pipeline.Planner {
	p := pipeline.New(pipeline.Config{
		Store:            r.DB,
		Agents:           r.Registry,
		Search:           r.Search,
		Logger:           r.Logger,
		ChunkSize:        r.Config.Itinerary.ChunkSize,
		MaxNeighborhoods: r.Config.Itinerary.MaxNeighborhoodsPerDay,
		Updates:          updates,
	})
	p.BindTools(r.Registry)
	return p
}

func openRuntime(ctx context.Context, opts *Options) (*Runtime, error) {
	cfg, err := opts.load()
	if err != nil {
		return nil, err
	}
	return bootstrapRuntime(ctx, cfg)
}

func bootstrapRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	for _, p := range []string{cfg.Defaults.DBPath, cfg.Logging.File} {
		if strings.TrimSpace(p) == "" || p == ":memory:" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", filepath.Dir(p), err)
		}
	}

	rt := &Runtime{Config: cfg}
	ctx, rt.cancel = context.WithCancel(ctx)

	logger, closer, err := logging.Open(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Logger, rt.logClose = logger, closer

	db, err := state.Connect(cfg.Defaults.DBPath)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.DB = db

	profiles, err := agent.LoadProfiles(cfg.Defaults.AgentsFile)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Registry = agent.NewRegistry(agent.RegistryConfig{
		Profiles: profiles,
		Fallback: agent.Profile{
			Provider: cfg.LLM.Provider,
			Model:    cfg.LLM.Model,
			BaseURL:  cfg.LLM.BaseURL,
		},
		RolesDir:   cfg.Defaults.RolesDir,
		Transcript: db,
		Logger:     logger,
	})
	if _, err := os.Stat(filepath.Dir(cfg.Defaults.AgentsFile)); err == nil {
		done, err := rt.Registry.Watch(ctx, cfg.Defaults.AgentsFile)
		if err != nil {
			logger.Warn("agent profiles will not reload", "path", cfg.Defaults.AgentsFile, "error", err)
		} else {
			rt.watching = done
		}
	}

	rt.Search = search.NewClient(search.Config{
		BaseURL:     cfg.Search.BaseURL,
		Timeout:     time.Duration(cfg.Search.TimeoutSeconds) * time.Second,
		Currency:    cfg.Search.Currency,
		HotelEngine: cfg.Search.HotelProvider,
	}, logger)

	return rt, nil
}
