package pipeline

import (
	"context"
	"fmt"

	"github.com/yubzen/globetrip/internal/agent"
	"github.com/yubzen/globetrip/internal/logging"
	"github.com/yubzen/globetrip/internal/planning"
	"github.com/yubzen/globetrip/internal/trip"
)

// RunActivities researches activities and then builds the day plan chunk by
// chunk.
func (p *Planner) RunActivities(ctx context.Context, sessionID string) ([]Outcome, error) {
	s, err := p.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var out []Outcome

	if s.Phase(trip.DomainActivities) == trip.PhaseNotStarted {
		o, err := p.deriveActivities(ctx, s)
		if err != nil {
			return out, err
		}
		out = append(out, o)
		if !o.Result.OK() {
			return out, nil
		}
	}
	if s.Phase(trip.DomainActivities) == trip.PhaseTasksDerived {
		o, err := p.searchActivities(ctx, s)
		if err != nil {
			return out, err
		}
		out = append(out, o)
	}
	if s.Phase(trip.DomainActivities) == trip.PhaseResultsSearched {
		o, err := p.applyActivities(ctx, s)
		if err != nil {
			return out, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (p *Planner) deriveActivities(ctx context.Context, s *trip.Session) (Outcome, error) {
	run := p.begin(s, trip.DomainActivities, StageDerive)
	planner, err := s.Planner()
	if err != nil {
		return Outcome{}, err
	}
	f, err := s.Flights()
	if err != nil {
		return Outcome{}, err
	}
	acts, err := s.Activities()
	if err != nil {
		return Outcome{}, err
	}

	acts, res := planning.DeriveActivityTasks(planner, f, acts)
	if !res.OK() {
		return run.finish(ctx, res, ""), nil
	}
	if err := s.SaveActivities(acts); err != nil {
		return Outcome{}, err
	}
	if err := s.Advance(trip.DomainActivities, trip.PhaseTasksDerived); err != nil {
		return Outcome{}, err
	}
	if err := p.save(ctx, s); err != nil {
		return Outcome{}, err
	}
	return run.finish(ctx, res, ""), nil
}

func (p *Planner) searchActivities(ctx context.Context, s *trip.Session) (Outcome, error) {
	run := p.begin(s, trip.DomainActivities, StageSearch)
	acts, err := s.Activities()
	if err != nil {
		return Outcome{}, err
	}

	recorded, dropped := 0, 0
	for _, task := range planning.PendingTasks(acts.SearchTasks, acts.SearchResults) {
		log := logging.ForTask(run.log, task.TaskID)
		events, err := p.agents.Invoke(ctx, agent.AgentActivitySearch, s.ID, payload(task.Prompt, task))
		if err != nil {
			if fatal(ctx, err) {
				return Outcome{}, err
			}
			log.Warn("activity search agent failed", "error", err)
			continue
		}
		text := agent.FinalText(events)
		var findings planning.ActivityFindings
		if err := decodeReply(text, &findings); err != nil {
			log.Warn("activity reply is not valid JSON", "error", err, "preview", planning.Preview(text, previewLen))
			continue
		}
		findings.TaskID = task.TaskID

		current, err := s.Activities()
		if err != nil {
			return Outcome{}, err
		}
		next, res := planning.RecordActivityResult(current, findings)
		if !res.OK() {
			log.Warn("activity result rejected", "reason", res.Reason)
			continue
		}
		if res.Dropped > 0 {
			log.Info("dropped unusable activity options", "dropped", res.Dropped)
		}
		dropped += res.Dropped
		if err := s.SaveActivities(next); err != nil {
			return Outcome{}, err
		}
		if err := p.save(ctx, s); err != nil {
			return Outcome{}, err
		}
		recorded++
	}

	if err := s.Advance(trip.DomainActivities, trip.PhaseResultsSearched); err != nil {
		return Outcome{}, err
	}
	if err := p.save(ctx, s); err != nil {
		return Outcome{}, err
	}
	final, err := s.Activities()
	if err != nil {
		return Outcome{}, err
	}
	res := planning.Result{Status: planning.StatusSuccess, Results: len(final.SearchResults), Updated: recorded, Dropped: dropped}
	return run.finish(ctx, res, fmt.Sprintf("%d of %d tasks recorded", recorded, len(final.SearchTasks))), nil
}

func (p *Planner) applyActivities(ctx context.Context, s *trip.Session) (Outcome, error) {
	run := p.begin(s, trip.DomainActivities, StageApply)
	acts, err := s.Activities()
	if err != nil {
		return Outcome{}, err
	}
	acts, res := planning.ApplyActivityResults(acts)
	if err := s.SaveActivities(acts); err != nil {
		return Outcome{}, err
	}
	if err := p.save(ctx, s); err != nil {
		return Outcome{}, err
	}

	added, err := p.buildItinerary(ctx, s, run)
	if err != nil {
		return Outcome{}, err
	}
	if err := s.Advance(trip.DomainActivities, trip.PhaseApplied); err != nil {
		return Outcome{}, err
	}
	if err := p.save(ctx, s); err != nil {
		return Outcome{}, err
	}

	final, err := s.Activities()
	if err != nil {
		return Outcome{}, err
	}
	if res.Status == planning.StatusSkipped && added > 0 {
		res = planning.Result{Status: planning.StatusSuccess}
	}
	res.Updated = len(final.DayPlan)
	return run.finish(ctx, res, fmt.Sprintf("%d itinerary items added", added)), nil
}

// itineraryRequest is what the day planner sees for one chunk of dates.
type itineraryRequest struct {
	Days                []planning.CalendarDay  `json:"days"`
	BaseCity            string                  `json:"base_city"`
	BaseNeighborhood    string                  `json:"base_neighborhood,omitempty"`
	Travelers           []trip.Traveler         `json:"travelers"`
	Preferences         trip.Preferences        `json:"preferences"`
	ActivitySuggestions []trip.ActivityOption   `json:"activity_suggestions"`
	AlreadyPlanned      []trip.DayItineraryItem `json:"already_planned"`
}

// buildItinerary asks the day planner for each chunk of the calendar and keeps
// the items that pass the itinerary filter. A chunk whose reply cannot be
// parsed is skipped; the rest of the trip is still planned.
func (p *Planner) buildItinerary(ctx context.Context, s *trip.Session, run *stageRun) (int, error) {
	planner, err := s.Planner()
	if err != nil {
		return 0, err
	}
	f, err := s.Flights()
	if err != nil {
		return 0, err
	}
	a, err := s.Accommodation()
	if err != nil {
		return 0, err
	}
	acts, err := s.Activities()
	if err != nil {
		return 0, err
	}

	calendar := planning.BuildCalendar(planner, f)
	if len(calendar) == 0 {
		run.log.Info("no calendar for itinerary")
		return 0, nil
	}

	var suggestions []trip.ActivityOption
	for _, r := range acts.SearchResults {
		suggestions = append(suggestions, r.Options...)
	}
	travelers := make([]int, len(planner.Demographics.Travelers))
	for i := range travelers {
		travelers[i] = i
	}

	filter := planning.NewItineraryFilter(p.maxNeighborhoods)
	filter.Seed(acts.DayPlan)
	base := planning.BaseNeighborhood(a)
	added := 0

	for i, chunk := range planning.ChunkDays(calendar, p.chunkSize) {
		log := run.log.With("chunk", i, "first_date", chunk[0].Date)
		current, err := s.Activities()
		if err != nil {
			return added, err
		}
		req := itineraryRequest{
			Days:                chunk,
			BaseCity:            planner.TripDetails.Destination,
			BaseNeighborhood:    base,
			Travelers:           planner.Demographics.Travelers,
			Preferences:         planner.Preferences,
			ActivitySuggestions: suggestions,
			AlreadyPlanned:      current.DayPlan,
		}
		events, err := p.agents.Invoke(ctx, agent.AgentDayItinerary, s.ID, payload("Plan these days.", req))
		if err != nil {
			if fatal(ctx, err) {
				return added, err
			}
			log.Warn("day itinerary agent failed", "error", err)
			continue
		}
		text := agent.FinalText(events)
		items, err := planning.ParseItineraryItems(stripFences(text))
		if err != nil {
			log.Warn("itinerary reply skipped", "error", err, "preview", planning.Preview(text, previewLen))
			continue
		}

		accepted := 0
		for _, item := range items {
			day, reason := filter.Accept(item, travelers)
			if reason != "" {
				log.Debug("itinerary item rejected", "name", item.Name, "date", item.Date, "reason", reason)
				continue
			}
			current.DayPlan = append(current.DayPlan, day)
			accepted++
		}
		if err := s.SaveActivities(current); err != nil {
			return added, err
		}
		if err := p.save(ctx, s); err != nil {
			return added, err
		}
		added += accepted
		log.Info("itinerary chunk merged", "proposed", len(items), "accepted", accepted)
	}
	return added, nil
}
