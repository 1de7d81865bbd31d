package pipeline

import (
	"context"
	"strings"

	"github.com/yubzen/globetrip/internal/agent"
	"github.com/yubzen/globetrip/internal/planning"
	"github.com/yubzen/globetrip/internal/trip"
)

const (
	ReasonSummaryFailed = "summary_failed"
	ReasonEmptySummary  = "empty_summary"
)

// summaryRequest is the full picture handed to the trip summary agent.
type summaryRequest struct {
	Planner       trip.PlannerState                  `json:"planner"`
	Visa          trip.VisaState                     `json:"visa"`
	Flights       []trip.TravelerFlightChoice        `json:"flights"`
	Accommodation []trip.TravelerAccommodationChoice `json:"accommodation"`
	Itinerary     []trip.DayItineraryItem            `json:"itinerary"`
	Costs         trip.CostSummary                   `json:"costs"`
}

// Costs computes the cost summary from the current domain state without
// touching the session.
func (p *Planner) Costs(ctx context.Context, sessionID string) (trip.CostSummary, error) {
	s, err := p.Session(ctx, sessionID)
	if err != nil {
		return trip.CostSummary{}, err
	}
	return costsOf(s)
}

func costsOf(s *trip.Session) (trip.CostSummary, error) {
	planner, err := s.Planner()
	if err != nil {
		return trip.CostSummary{}, err
	}
	v, err := s.Visa()
	if err != nil {
		return trip.CostSummary{}, err
	}
	f, err := s.Flights()
	if err != nil {
		return trip.CostSummary{}, err
	}
	a, err := s.Accommodation()
	if err != nil {
		return trip.CostSummary{}, err
	}
	return planning.ComputeCostSummary(planner, v, f, a), nil
}

// RunSummary rebuilds the summary slot. Unlike the other domains it always
// runs from scratch, since it only reflects the state of the others.
func (p *Planner) RunSummary(ctx context.Context, sessionID string) ([]Outcome, error) {
	s, err := p.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Phase(trip.DomainSummary) != trip.PhaseNotStarted {
		if err := s.Reset(trip.DomainSummary); err != nil {
			return nil, err
		}
	}
	var out []Outcome

	run := p.begin(s, trip.DomainSummary, StageDerive)
	costs, err := costsOf(s)
	if err != nil {
		return out, err
	}
	if err := s.SaveSummary(trip.SummaryState{Costs: costs}); err != nil {
		return out, err
	}
	if err := s.Advance(trip.DomainSummary, trip.PhaseTasksDerived); err != nil {
		return out, err
	}
	if err := p.save(ctx, s); err != nil {
		return out, err
	}
	out = append(out, run.finish(ctx, planning.Result{Status: planning.StatusSuccess, Updated: len(costs.CurrencyTotals)}, ""))

	run = p.begin(s, trip.DomainSummary, StageSearch)
	narrative, res, err := p.narrate(ctx, s, costs, run)
	if err != nil {
		return out, err
	}
	if err := s.Advance(trip.DomainSummary, trip.PhaseResultsSearched); err != nil {
		return out, err
	}
	out = append(out, run.finish(ctx, res, ""))

	run = p.begin(s, trip.DomainSummary, StageApply)
	if err := s.SaveSummary(trip.SummaryState{Costs: costs, Narrative: narrative}); err != nil {
		return out, err
	}
	if err := s.Advance(trip.DomainSummary, trip.PhaseApplied); err != nil {
		return out, err
	}
	if err := p.save(ctx, s); err != nil {
		return out, err
	}
	out = append(out, run.finish(ctx, planning.Result{Status: planning.StatusSuccess}, ""))
	return out, nil
}

func (p *Planner) narrate(ctx context.Context, s *trip.Session, costs trip.CostSummary, run *stageRun) (string, planning.Result, error) {
	req := summaryRequest{Costs: costs}
	var err error
	if req.Planner, err = s.Planner(); err != nil {
		return "", planning.Result{}, err
	}
	if req.Visa, err = s.Visa(); err != nil {
		return "", planning.Result{}, err
	}
	f, err := s.Flights()
	if err != nil {
		return "", planning.Result{}, err
	}
	a, err := s.Accommodation()
	if err != nil {
		return "", planning.Result{}, err
	}
	acts, err := s.Activities()
	if err != nil {
		return "", planning.Result{}, err
	}
	req.Flights = f.TravelerFlights
	req.Accommodation = a.TravelerAccommodations
	req.Itinerary = acts.DayPlan

	events, err := p.agents.Invoke(ctx, agent.AgentTripSummary, s.ID, payload("Write the trip summary.", req))
	if err != nil {
		if fatal(ctx, err) {
			return "", planning.Result{}, err
		}
		run.log.Warn("trip summary agent failed", "error", err)
		return "", planning.Result{Status: planning.StatusError, Reason: ReasonSummaryFailed}, nil
	}
	text := strings.TrimSpace(agent.FinalText(events))
	if text == "" {
		return "", planning.Result{Status: planning.StatusSkipped, Reason: ReasonEmptySummary}, nil
	}
	return text, planning.Result{Status: planning.StatusSuccess}, nil
}
