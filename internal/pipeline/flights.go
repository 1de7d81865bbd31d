package pipeline

import (
	"context"
	"fmt"

	"github.com/yubzen/globetrip/internal/agent"
	"github.com/yubzen/globetrip/internal/logging"
	"github.com/yubzen/globetrip/internal/planning"
	"github.com/yubzen/globetrip/internal/search"
	"github.com/yubzen/globetrip/internal/trip"
)

// RunFlights derives flight tasks, searches and summarizes each pending task,
// then joins the results onto the travelers.
func (p *Planner) RunFlights(ctx context.Context, sessionID string) ([]Outcome, error) {
	s, err := p.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var out []Outcome

	if s.Phase(trip.DomainFlights) == trip.PhaseNotStarted {
		o, err := p.deriveFlights(ctx, s)
		if err != nil {
			return out, err
		}
		out = append(out, o)
		if !o.Result.OK() {
			return out, nil
		}
	}
	if s.Phase(trip.DomainFlights) == trip.PhaseTasksDerived {
		o, err := p.searchFlights(ctx, s)
		if err != nil {
			return out, err
		}
		out = append(out, o)
	}
	if s.Phase(trip.DomainFlights) == trip.PhaseResultsSearched {
		o, err := p.applyFlightResults(ctx, s)
		if err != nil {
			return out, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (p *Planner) deriveFlights(ctx context.Context, s *trip.Session) (Outcome, error) {
	run := p.begin(s, trip.DomainFlights, StageDerive)
	planner, err := s.Planner()
	if err != nil {
		return Outcome{}, err
	}
	v, err := s.Visa()
	if err != nil {
		return Outcome{}, err
	}
	f, err := s.Flights()
	if err != nil {
		return Outcome{}, err
	}

	f, res := planning.DeriveFlightTasks(planner, v, f)
	if !res.OK() {
		return run.finish(ctx, res, ""), nil
	}
	if err := s.SaveFlights(f); err != nil {
		return Outcome{}, err
	}
	if err := s.Advance(trip.DomainFlights, trip.PhaseTasksDerived); err != nil {
		return Outcome{}, err
	}
	if err := p.save(ctx, s); err != nil {
		return Outcome{}, err
	}
	return run.finish(ctx, res, ""), nil
}

// partyFor splits the travelers on a task into adults (seniors included) and
// children. A task always searches for at least one adult.
func partyFor(planner trip.PlannerState, indexes []int) (adults, children int) {
	travelers := planner.Demographics.Travelers
	for _, idx := range indexes {
		if idx < 0 || idx >= len(travelers) {
			continue
		}
		if travelers[idx].Role == trip.RoleChild {
			children++
		} else {
			adults++
		}
	}
	if adults == 0 {
		adults = 1
	}
	return adults, children
}

func (p *Planner) searchFlights(ctx context.Context, s *trip.Session) (Outcome, error) {
	run := p.begin(s, trip.DomainFlights, StageSearch)
	planner, err := s.Planner()
	if err != nil {
		return Outcome{}, err
	}
	f, err := s.Flights()
	if err != nil {
		return Outcome{}, err
	}

	pending := planning.PendingTasks(f.SearchTasks, f.SearchResults)
	canonical := map[string][]trip.FlightOption{}
	var attempted []trip.FlightSearchTask
	failures := 0

	for _, task := range pending {
		log := logging.ForTask(run.log, task.TaskID)
		adults, children := partyFor(planner, task.TravelerIndexes)
		found := p.search.Flights(ctx, search.FlightQuery{
			DepartureID:  task.OriginCity,
			ArrivalID:    task.DestinationCity,
			OutboundDate: task.DepartureDate(),
			ReturnDate:   task.ReturnDate(),
			Adults:       adults,
			Children:     children,
			TravelClass:  task.CabinPreference,
		})
		attempted = append(attempted, task)
		if !found.OK() {
			failures++
			log.Warn("flight search failed", "reason", found.Reason, "status_code", found.StatusCode)
			continue
		}
		options := planning.CanonicalFlightOptions(found.Options)
		canonical[task.TaskID] = options
		log.Info("flight options found", "raw", len(found.Options), "canonical", len(options))
		if len(options) == 0 {
			continue
		}

		msg := payload(
			"Summarise these flight options and call record_flight_search_result exactly once.",
			map[string]any{"task": task, "canonical_options": options, "raw_option_count": len(found.Options)},
		)
		if _, err := p.agents.Invoke(ctx, agent.AgentFlightSummary, s.ID, msg); err != nil {
			if fatal(ctx, err) {
				return Outcome{}, err
			}
			log.Warn("flight summary agent failed", "error", err)
		}
	}

	// Reload: the summary agent records results through its tool.
	f, err = s.Flights()
	if err != nil {
		return Outcome{}, err
	}
	recorded := planning.ResultTaskIDs(f.SearchResults)
	stubs := 0
	for _, task := range attempted {
		if recorded[task.TaskID] {
			continue
		}
		f.SearchResults = append(f.SearchResults, planning.StubFlightResult(task, canonical[task.TaskID]))
		stubs++
		run.log.Info("flight summary missing; stub recorded", "task_id", task.TaskID)
	}
	repairFlightOptions(&f, canonical)
	if err := s.SaveFlights(f); err != nil {
		return Outcome{}, err
	}
	if err := s.Advance(trip.DomainFlights, trip.PhaseResultsSearched); err != nil {
		return Outcome{}, err
	}
	if err := p.save(ctx, s); err != nil {
		return Outcome{}, err
	}

	res := planning.Result{Status: planning.StatusSuccess, Results: len(f.SearchResults), Created: stubs}
	return run.finish(ctx, res, fmt.Sprintf("%d searched, %d search failures, %d stubs", len(attempted), failures, stubs)), nil
}

// repairFlightOptions fills results recorded without options from the
// canonical options of their task.
func repairFlightOptions(f *trip.FlightState, canonical map[string][]trip.FlightOption) {
	for i := range f.SearchResults {
		r := &f.SearchResults[i]
		if len(r.Options) == 0 && len(canonical[r.TaskID]) > 0 {
			r.Options = canonical[r.TaskID]
		}
	}
}

func (p *Planner) applyFlightResults(ctx context.Context, s *trip.Session) (Outcome, error) {
	run := p.begin(s, trip.DomainFlights, StageApply)
	planner, err := s.Planner()
	if err != nil {
		return Outcome{}, err
	}
	f, err := s.Flights()
	if err != nil {
		return Outcome{}, err
	}

	snapshot := append([]trip.FlightSearchResult(nil), f.SearchResults...)
	applied, res := p.applyFlights(planner, f)
	if len(applied.SearchResults) == 0 && len(snapshot) > 0 {
		run.log.Warn("apply dropped flight results; restoring snapshot", "results", len(snapshot))
		applied.SearchResults = snapshot
	}
	if err := s.SaveFlights(applied); err != nil {
		return Outcome{}, err
	}
	if err := s.Advance(trip.DomainFlights, trip.PhaseApplied); err != nil {
		return Outcome{}, err
	}
	if err := p.save(ctx, s); err != nil {
		return Outcome{}, err
	}
	return run.finish(ctx, res, ""), nil
}
