// Package pipeline drives the per-domain planning stages for a session:
// derive tasks, search, then apply. Stages run strictly in sequence and each
// one persists the session before the next reads it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yubzen/globetrip/internal/agent"
	"github.com/yubzen/globetrip/internal/logging"
	"github.com/yubzen/globetrip/internal/planning"
	"github.com/yubzen/globetrip/internal/search"
	"github.com/yubzen/globetrip/internal/state"
	"github.com/yubzen/globetrip/internal/trip"
)

const (
	StageDerive = "derive"
	StageSearch = "search"
	StageApply  = "apply"

	previewLen = 200
)

var ErrNoSession = errors.New("no session in context")

// Store is the persistence the planner needs. *state.DB satisfies it.
type Store interface {
	LoadSession(ctx context.Context, id string) (*trip.Session, error)
	SaveSession(ctx context.Context, s *trip.Session) error
	RecordStageRun(ctx context.Context, run state.StageRun) (state.StageRun, error)
}

// Searcher is the external data provider surface. *search.Client satisfies it.
type Searcher interface {
	Flights(ctx context.Context, q search.FlightQuery) search.FlightsResult
	Stays(ctx context.Context, q search.StayQuery) search.StaysResult
	Airports(ctx context.Context, location string) search.AirportsResult
	Calendar(ctx context.Context, q search.CalendarQuery) search.CalendarResult
}

type StepUpdate struct {
	Domain trip.Domain
	Stage  string
	Status string // running, done, skipped, failed
	Msg    string
}

// Outcome is the result of one stage as reported to callers.
type Outcome struct {
	Domain trip.Domain
	Stage  string
	Result planning.Result
}

type FlightApplier func(trip.PlannerState, trip.FlightState) (trip.FlightState, planning.Result)

type Config struct {
	Store  Store
	Agents agent.Invoker
	Search Searcher
	Logger *slog.Logger
	// Now defaults to time.Now; visa lead times are counted from it.
	Now              func() time.Time
	ChunkSize        int
	MaxNeighborhoods int
	Updates          chan<- StepUpdate
	ApplyFlights     FlightApplier
}

// Planner owns the live sessions it drives. Tools invoked by agents during a
// stage mutate the same in-memory session the stage reads afterwards.
type Planner struct {
	store            Store
	agents           agent.Invoker
	search           Searcher
	logger           *slog.Logger
	now              func() time.Time
	chunkSize        int
	maxNeighborhoods int
	updates          chan<- StepUpdate
	applyFlights     FlightApplier

	mu   sync.Mutex
	live map[string]*trip.Session
}

func New(cfg Config) *Planner {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = planning.DefaultChunkSize
	}
	if cfg.MaxNeighborhoods <= 0 {
		cfg.MaxNeighborhoods = planning.DefaultNeighborhoodsCap
	}
	if cfg.ApplyFlights == nil {
		cfg.ApplyFlights = planning.ApplyFlightResults
	}
	return &Planner{
		store:            cfg.Store,
		agents:           cfg.Agents,
		search:           cfg.Search,
		logger:           cfg.Logger,
		now:              cfg.Now,
		chunkSize:        cfg.ChunkSize,
		maxNeighborhoods: cfg.MaxNeighborhoods,
		updates:          cfg.Updates,
		applyFlights:     cfg.ApplyFlights,
		live:             map[string]*trip.Session{},
	}
}

func (p *Planner) emit(u StepUpdate) {
	if p == nil || p.updates == nil {
		return
	}
	p.updates <- u
}

// Session returns the live session for id, loading it on first use.
func (p *Planner) Session(ctx context.Context, id string) (*trip.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.live[id]; ok {
		return s, nil
	}
	s, err := p.store.LoadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	p.live[id] = s
	return s, nil
}

// Forget drops the live copy so the next access reloads from the store.
func (p *Planner) Forget(id string) {
	p.mu.Lock()
	delete(p.live, id)
	p.mu.Unlock()
}

func (p *Planner) save(ctx context.Context, s *trip.Session) error {
	if err := p.store.SaveSession(ctx, s); err != nil {
		return fmt.Errorf("persist session %s: %w", s.ID, err)
	}
	return nil
}

// mutate runs fn against the session named by ctx and persists the result.
func (p *Planner) mutate(ctx context.Context, fn func(s *trip.Session) (planning.Result, error)) (planning.Result, error) {
	id, ok := agent.SessionFromContext(ctx)
	if !ok {
		return planning.Result{}, ErrNoSession
	}
	s, err := p.Session(ctx, id)
	if err != nil {
		return planning.Result{}, err
	}
	res, err := fn(s)
	if err != nil {
		return res, err
	}
	return res, p.save(ctx, s)
}

// stageRun tracks one stage from start to its recorded outcome.
type stageRun struct {
	p       *Planner
	session string
	domain  trip.Domain
	stage   string
	started time.Time
	log     *slog.Logger
}

func (p *Planner) begin(s *trip.Session, d trip.Domain, stage string) *stageRun {
	log := logging.ForDomain(logging.ForSession(p.logger, s.ID), string(d)).With("stage", stage)
	log.Info("stage started", "phase", s.Phase(d))
	p.emit(StepUpdate{Domain: d, Stage: stage, Status: "running"})
	return &stageRun{p: p, session: s.ID, domain: d, stage: stage, started: p.now(), log: log}
}

func (r *stageRun) finish(ctx context.Context, res planning.Result, detail string) Outcome {
	status := "done"
	switch res.Status {
	case planning.StatusSkipped:
		status = "skipped"
		r.log.Info("stage skipped", "reason", res.Reason)
	case planning.StatusError:
		status = "failed"
		r.log.Warn("stage failed", "reason", res.Reason, "detail", detail)
	default:
		r.log.Info("stage finished",
			"created", res.Created, "results", res.Results, "updated", res.Updated, "elapsed", time.Since(r.started))
	}
	if len(res.Duplicates) > 0 {
		r.log.Warn("duplicate results for tasks; first result wins", "task_ids", res.Duplicates)
	}
	r.p.emit(StepUpdate{Domain: r.domain, Stage: r.stage, Status: status, Msg: res.Reason})

	if _, err := r.p.store.RecordStageRun(ctx, state.StageRun{
		SessionID:  r.session,
		Domain:     string(r.domain),
		Stage:      r.stage,
		Status:     string(res.Status),
		Reason:     res.Reason,
		Detail:     detail,
		Created:    res.Created,
		Updated:    res.Updated,
		StartedAt:  r.started,
		FinishedAt: r.p.now(),
	}); err != nil {
		r.log.Warn("record stage run failed", "error", err)
	}
	return Outcome{Domain: r.domain, Stage: r.stage, Result: res}
}

// fatal reports whether an agent error must abort the whole run. Anything
// else only costs the current task its summary.
func fatal(ctx context.Context, err error) bool {
	return agent.IsUserCancelled(err) || ctx.Err() != nil
}

// RunAll runs every domain pipeline in order: visa timing feeds flight dates,
// flights feed the stay window, stays feed the itinerary base.
func (p *Planner) RunAll(ctx context.Context, sessionID string) ([]Outcome, error) {
	s, err := p.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	planner, err := s.Planner()
	if err != nil {
		return nil, err
	}
	if planner.Status == trip.StatusIntake {
		run := p.begin(s, trip.DomainVisa, StageDerive)
		res := planning.Result{Status: planning.StatusSkipped, Reason: planning.ReasonIntakeIncomplete}
		return []Outcome{run.finish(ctx, res, "planner is still in intake")}, nil
	}

	var all []Outcome
	for _, step := range []func(context.Context, string) ([]Outcome, error){
		p.RunVisa,
		p.RunFlights,
		p.RunAccommodation,
		p.RunActivities,
		p.RunSummary,
	} {
		out, err := step(ctx, sessionID)
		all = append(all, out...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}
