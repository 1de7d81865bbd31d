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

func (p *Planner) RunAccommodation(ctx context.Context, sessionID string) ([]Outcome, error) {
	s, err := p.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var out []Outcome

	if s.Phase(trip.DomainAccommodation) == trip.PhaseNotStarted {
		o, err := p.deriveAccommodation(ctx, s)
		if err != nil {
			return out, err
		}
		out = append(out, o)
		if !o.Result.OK() {
			return out, nil
		}
	}
	if s.Phase(trip.DomainAccommodation) == trip.PhaseTasksDerived {
		o, err := p.searchAccommodation(ctx, s)
		if err != nil {
			return out, err
		}
		out = append(out, o)
	}
	if s.Phase(trip.DomainAccommodation) == trip.PhaseResultsSearched {
		o, err := p.applyAccommodation(ctx, s)
		if err != nil {
			return out, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (p *Planner) deriveAccommodation(ctx context.Context, s *trip.Session) (Outcome, error) {
	run := p.begin(s, trip.DomainAccommodation, StageDerive)
	planner, err := s.Planner()
	if err != nil {
		return Outcome{}, err
	}
	f, err := s.Flights()
	if err != nil {
		return Outcome{}, err
	}
	a, err := s.Accommodation()
	if err != nil {
		return Outcome{}, err
	}

	a, res := planning.DeriveAccommodationTasks(planner, f, a)
	if !res.OK() {
		return run.finish(ctx, res, ""), nil
	}
	if err := s.SaveAccommodation(a); err != nil {
		return Outcome{}, err
	}
	if err := s.Advance(trip.DomainAccommodation, trip.PhaseTasksDerived); err != nil {
		return Outcome{}, err
	}
	if err := p.save(ctx, s); err != nil {
		return Outcome{}, err
	}
	return run.finish(ctx, res, ""), nil
}

func (p *Planner) searchAccommodation(ctx context.Context, s *trip.Session) (Outcome, error) {
	run := p.begin(s, trip.DomainAccommodation, StageSearch)
	a, err := s.Accommodation()
	if err != nil {
		return Outcome{}, err
	}

	canonical := map[string][]trip.AccommodationOption{}
	var attempted []trip.AccommodationSearchTask
	empty := 0

	for _, task := range planning.PendingTasks(a.SearchTasks, a.SearchResults) {
		log := logging.ForTask(run.log, task.TaskID)
		found := p.search.Stays(ctx, search.StayQuery{
			Location:       task.Location,
			CheckInDate:    task.CheckInDate,
			CheckOutDate:   task.CheckOutDate,
			Adults:         task.Adults,
			Children:       task.Children,
			PreferredTypes: task.PreferredTypes,
		})
		attempted = append(attempted, task)
		if !found.OK() {
			empty++
			log.Warn("stay search failed", "reason", found.Reason, "engine", found.Engine, "status_code", found.StatusCode)
			continue
		}

		fits := planning.FilterByCapacity(found.Options, task.PartySize())
		options := planning.CanonicalStayOptions(fits)
		canonical[task.TaskID] = options
		log.Info("stay options found", "engine", found.Engine, "raw", len(found.Options), "fit", len(fits), "canonical", len(options))
		if len(options) == 0 {
			empty++
			log.Warn("no stay fits the party", "party_size", task.PartySize())
			continue
		}

		msg := payload(
			"Summarise these accommodation options and call record_accommodation_search_result exactly once.",
			map[string]any{"task": task, "engine": found.Engine, "canonical_options": options, "raw_option_count": len(found.Options)},
		)
		if _, err := p.agents.Invoke(ctx, agent.AgentAccommodationSummary, s.ID, msg); err != nil {
			if fatal(ctx, err) {
				return Outcome{}, err
			}
			log.Warn("accommodation summary agent failed", "error", err)
		}
	}

	a, err = s.Accommodation()
	if err != nil {
		return Outcome{}, err
	}
	recorded := planning.ResultTaskIDs(a.SearchResults)
	stubs := 0
	for _, task := range attempted {
		if recorded[task.TaskID] {
			continue
		}
		a.SearchResults = append(a.SearchResults, planning.StubStayResult(task, canonical[task.TaskID]))
		stubs++
		run.log.Info("accommodation summary missing; stub recorded", "task_id", task.TaskID)
	}
	repairStayOptions(&a, canonical)
	if err := s.SaveAccommodation(a); err != nil {
		return Outcome{}, err
	}
	if err := s.Advance(trip.DomainAccommodation, trip.PhaseResultsSearched); err != nil {
		return Outcome{}, err
	}
	if err := p.save(ctx, s); err != nil {
		return Outcome{}, err
	}

	res := planning.Result{Status: planning.StatusSuccess, Results: len(a.SearchResults), Created: stubs}
	return run.finish(ctx, res, fmt.Sprintf("%d searched, %d without options, %d stubs", len(attempted), empty, stubs)), nil
}

// repairStayOptions restores canonical options on results the summary agent
// recorded without any usable option. A chosen type that none of the options
// carry is cleared.
func repairStayOptions(a *trip.AccommodationState, canonical map[string][]trip.AccommodationOption) {
	for i := range a.SearchResults {
		r := &a.SearchResults[i]
		if len(r.Options) == 0 && len(canonical[r.TaskID]) > 0 {
			r.Options = canonical[r.TaskID]
		}
		if r.ChosenOptionType == "" {
			continue
		}
		match := false
		for _, o := range r.Options {
			if o.OptionType == r.ChosenOptionType {
				match = true
				break
			}
		}
		if !match {
			r.ChosenOptionType = ""
		}
	}
}

func (p *Planner) applyAccommodation(ctx context.Context, s *trip.Session) (Outcome, error) {
	run := p.begin(s, trip.DomainAccommodation, StageApply)
	planner, err := s.Planner()
	if err != nil {
		return Outcome{}, err
	}
	a, err := s.Accommodation()
	if err != nil {
		return Outcome{}, err
	}
	a, res := planning.ApplyAccommodationResults(planner, a)
	if err := s.SaveAccommodation(a); err != nil {
		return Outcome{}, err
	}
	if err := s.Advance(trip.DomainAccommodation, trip.PhaseApplied); err != nil {
		return Outcome{}, err
	}
	if err := p.save(ctx, s); err != nil {
		return Outcome{}, err
	}
	return run.finish(ctx, res, ""), nil
}
