package pipeline

import (
	"context"
	"fmt"

	"github.com/yubzen/globetrip/internal/agent"
	"github.com/yubzen/globetrip/internal/logging"
	"github.com/yubzen/globetrip/internal/planning"
	"github.com/yubzen/globetrip/internal/trip"
)

// RunVisa advances the visa domain as far as its phase allows.
func (p *Planner) RunVisa(ctx context.Context, sessionID string) ([]Outcome, error) {
	s, err := p.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var out []Outcome

	if s.Phase(trip.DomainVisa) == trip.PhaseNotStarted {
		o, err := p.deriveVisa(ctx, s)
		if err != nil {
			return out, err
		}
		out = append(out, o)
		if !o.Result.OK() {
			return out, nil
		}
	}
	if s.Phase(trip.DomainVisa) == trip.PhaseTasksDerived {
		o, err := p.searchVisa(ctx, s)
		if err != nil {
			return out, err
		}
		out = append(out, o)
	}
	if s.Phase(trip.DomainVisa) == trip.PhaseResultsSearched {
		o, err := p.applyVisa(ctx, s)
		if err != nil {
			return out, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (p *Planner) deriveVisa(ctx context.Context, s *trip.Session) (Outcome, error) {
	run := p.begin(s, trip.DomainVisa, StageDerive)
	planner, err := s.Planner()
	if err != nil {
		return Outcome{}, err
	}
	v, err := s.Visa()
	if err != nil {
		return Outcome{}, err
	}

	v, res := planning.AssessVisaRequirements(planner, v)
	if !res.OK() {
		return run.finish(ctx, res, ""), nil
	}
	v, res = planning.DeriveVisaTasks(planner, v)
	if !res.OK() {
		return run.finish(ctx, res, ""), nil
	}
	if err := s.SaveVisa(v); err != nil {
		return Outcome{}, err
	}
	if err := s.Advance(trip.DomainVisa, trip.PhaseTasksDerived); err != nil {
		return Outcome{}, err
	}
	if err := p.save(ctx, s); err != nil {
		return Outcome{}, err
	}
	return run.finish(ctx, res, ""), nil
}

func (p *Planner) searchVisa(ctx context.Context, s *trip.Session) (Outcome, error) {
	run := p.begin(s, trip.DomainVisa, StageSearch)
	v, err := s.Visa()
	if err != nil {
		return Outcome{}, err
	}

	recorded := 0
	for _, task := range planning.PendingTasks(v.SearchTasks, v.SearchResults) {
		log := logging.ForTask(run.log, task.TaskID)
		events, err := p.agents.Invoke(ctx, agent.AgentVisaSearch, s.ID, payload(task.Prompt, task))
		if err != nil {
			if fatal(ctx, err) {
				return Outcome{}, err
			}
			log.Warn("visa search agent failed", "error", err)
			continue
		}
		text := agent.FinalText(events)
		var findings planning.VisaFindings
		if err := decodeReply(text, &findings); err != nil {
			log.Warn("visa reply is not valid JSON", "error", err, "preview", planning.Preview(text, previewLen))
			continue
		}
		findings.TaskID = task.TaskID

		current, err := s.Visa()
		if err != nil {
			return Outcome{}, err
		}
		next, res := planning.RecordVisaResult(current, findings)
		if !res.OK() {
			log.Warn("visa result rejected", "reason", res.Reason)
			continue
		}
		if err := s.SaveVisa(next); err != nil {
			return Outcome{}, err
		}
		if err := p.save(ctx, s); err != nil {
			return Outcome{}, err
		}
		recorded++
	}

	if err := s.Advance(trip.DomainVisa, trip.PhaseResultsSearched); err != nil {
		return Outcome{}, err
	}
	if err := p.save(ctx, s); err != nil {
		return Outcome{}, err
	}
	final, err := s.Visa()
	if err != nil {
		return Outcome{}, err
	}
	res := planning.Result{Status: planning.StatusSuccess, Results: len(final.SearchResults), Updated: recorded}
	return run.finish(ctx, res, fmt.Sprintf("%d of %d tasks recorded", recorded, len(final.SearchTasks))), nil
}

func (p *Planner) applyVisa(ctx context.Context, s *trip.Session) (Outcome, error) {
	run := p.begin(s, trip.DomainVisa, StageApply)
	v, err := s.Visa()
	if err != nil {
		return Outcome{}, err
	}
	v, res := planning.ApplyVisaResults(v, p.now())
	if err := s.SaveVisa(v); err != nil {
		return Outcome{}, err
	}
	if err := s.Advance(trip.DomainVisa, trip.PhaseApplied); err != nil {
		return Outcome{}, err
	}
	if err := p.save(ctx, s); err != nil {
		return Outcome{}, err
	}
	detail := ""
	if v.EarliestSafeDepartureDate != "" {
		detail = "earliest safe departure " + v.EarliestSafeDepartureDate
	}
	return run.finish(ctx, res, detail), nil
}
