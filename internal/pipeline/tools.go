package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/yubzen/globetrip/internal/agent"
	"github.com/yubzen/globetrip/internal/planning"
	"github.com/yubzen/globetrip/internal/search"
	"github.com/yubzen/globetrip/internal/trip"
)

const (
	ToolUpdateTripPlan                    = "update_trip_plan"
	ToolResolveAirports                   = "resolve_airports"
	ToolFlightsCalendar                   = "flights_calendar"
	ToolMarkReadyForPlanning              = "mark_ready_for_planning"
	ToolReadFlightsForTraveler            = "read_flights_for_traveler"
	ToolRecordFlightSearchResult          = "record_flight_search_result"
	ToolRecordAccommodationSearchResult   = "record_accommodation_search_result"
	ToolRecordTravelerAccommodationChoice = "record_traveler_accommodation_choice"
)

// Binder receives tool sets per agent. *agent.Registry satisfies it.
type Binder interface {
	Bind(agentID string, tools agent.ToolSet)
}

// BindTools attaches the planner's tools to every agent that uses them.
func (p *Planner) BindTools(b Binder) {
	for _, id := range agent.IDs() {
		if set := p.Tools(id); set.Len() > 0 {
			b.Bind(id, set)
		}
	}
}

// Tools returns the tool set for one agent.
func (p *Planner) Tools(agentID string) agent.ToolSet {
	switch agentID {
	case agent.AgentIntake:
		return agent.NewToolSet(
			p.updateTripPlanTool(),
			p.resolveAirportsTool(),
			p.flightsCalendarTool(),
			p.markReadyTool(),
			p.readFlightsTool(),
			p.travelerStayChoiceTool(),
		)
	case agent.AgentFlightSummary:
		return agent.NewToolSet(p.recordFlightTool())
	case agent.AgentAccommodationSummary:
		return agent.NewToolSet(p.recordStayTool(), p.travelerStayChoiceTool())
	case agent.AgentTripSummary:
		return agent.NewToolSet(p.readFlightsTool())
	}
	return agent.NewToolSet()
}

// intakeResponse tells the intake agent where the planner stands after an
// update.
type intakeResponse struct {
	planning.Result
	PlannerStatus  trip.Status `json:"planner_status"`
	IntakeComplete bool        `json:"intake_complete"`
}

func (p *Planner) updatePlanner(ctx context.Context, fn func(trip.PlannerState) (trip.PlannerState, planning.Result)) (intakeResponse, error) {
	var out intakeResponse
	_, err := p.mutate(ctx, func(s *trip.Session) (planning.Result, error) {
		current, err := s.Planner()
		if err != nil {
			return planning.Result{}, err
		}
		next, res := fn(current)
		out = intakeResponse{Result: res, PlannerStatus: next.Status, IntakeComplete: trip.IsIntakeComplete(next)}
		if res.Status == planning.StatusError {
			return res, nil
		}
		return res, s.SavePlanner(next)
	})
	return out, err
}

func (p *Planner) updateTripPlanTool() agent.Tool {
	traveler := agent.Object(map[string]any{
		"role":                agent.String("adult, child or senior"),
		"age":                 agent.Integer("Age in years"),
		"nationality":         agent.String("Passport nationality"),
		"origin":              agent.String("City this traveler departs from when it differs from the trip origin"),
		"origin_airport_code": agent.String("IATA code for the traveler's origin"),
		"interests":           agent.Array("Interests", agent.String("")),
		"mobility_needs":      agent.Array("Mobility needs", agent.String("")),
		"dietary_needs":       agent.Array("Dietary needs", agent.String("")),
	})
	return agent.Tool{
		Name:        ToolUpdateTripPlan,
		Description: "Merge newly learned trip facts into the plan. Send only the fields you learned.",
		Schema: agent.Object(map[string]any{
			"trip_details": agent.Object(map[string]any{
				"destination":              agent.String("Destination city or country"),
				"origin":                   agent.String("Departure city"),
				"origin_airport_code":      agent.String("IATA code of the departure airport"),
				"destination_airport_code": agent.String("IATA code of the arrival airport"),
				"start_date":               agent.String("YYYY-MM-DD"),
				"end_date":                 agent.String("YYYY-MM-DD"),
				"flexible_dates":           agent.Boolean("Whether the dates may move"),
			}),
			"demographics": agent.Object(map[string]any{
				"adults":      agent.Integer("Number of adults"),
				"children":    agent.Integer("Number of children"),
				"seniors":     agent.Integer("Number of seniors"),
				"nationality": agent.Array("Nationalities in the party", agent.String("")),
				"travelers":   agent.Array("Per-traveler details, in a stable order", traveler),
			}),
			"preferences": agent.Object(map[string]any{
				"budget_mode":               agent.String("economy, standard or luxury"),
				"total_budget":              agent.Number("Total budget"),
				"pace":                      agent.String("relaxed, moderate or packed"),
				"interests":                 agent.Array("Shared interests", agent.String("")),
				"special_requests":          agent.Array("Special requests", agent.String("")),
				"notes":                     agent.String("Free-form notes"),
				"accommodation_preferences": agent.Array("Preferred stay types", agent.String("")),
				"neighborhood_preferences":  agent.Array("Neighborhoods to stay in", agent.String("")),
				"neighborhood_avoid":        agent.Array("Neighborhoods to avoid", agent.String("")),
				"must_do":                   agent.Array("Must-do activities", agent.String("")),
				"nice_to_have":              agent.Array("Nice-to-have activities", agent.String("")),
			}),
		}),
		Execute: func(ctx context.Context, args json.RawMessage) (any, error) {
			var update planning.TripUpdate
			if err := agent.DecodeArgs(args, &update); err != nil {
				return nil, err
			}
			return p.updatePlanner(ctx, func(current trip.PlannerState) (trip.PlannerState, planning.Result) {
				return planning.UpdateTripPlan(current, update)
			})
		},
	}
}

func (p *Planner) markReadyTool() agent.Tool {
	return agent.Tool{
		Name:        ToolMarkReadyForPlanning,
		Description: "Move the trip from intake to planning once every required detail is known.",
		Schema:      agent.Object(nil),
		Execute: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return p.updatePlanner(ctx, planning.MarkReadyForPlanning)
		},
	}
}

func (p *Planner) resolveAirportsTool() agent.Tool {
	return agent.Tool{
		Name:        ToolResolveAirports,
		Description: "Find candidate airport codes for a city or place name.",
		Schema:      agent.Object(map[string]any{"location": agent.String("City or place name")}, "location"),
		Execute: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Location string `json:"location"`
			}
			if err := agent.DecodeArgs(args, &in); err != nil {
				return nil, err
			}
			if strings.TrimSpace(in.Location) == "" {
				return nil, errors.New("location is required")
			}
			return p.search.Airports(ctx, in.Location), nil
		},
	}
}

func (p *Planner) flightsCalendarTool() agent.Tool {
	return agent.Tool{
		Name:        ToolFlightsCalendar,
		Description: "Cheapest fare per departure and return date across a date window.",
		Schema: agent.Object(map[string]any{
			"departure_id":        agent.String("Origin airport code"),
			"arrival_id":          agent.String("Destination airport code"),
			"outbound_date_start": agent.String("YYYY-MM-DD"),
			"outbound_date_end":   agent.String("YYYY-MM-DD"),
			"return_date_start":   agent.String("YYYY-MM-DD"),
			"return_date_end":     agent.String("YYYY-MM-DD"),
			"adults":              agent.Integer("Number of adults"),
		}, "departure_id", "arrival_id", "outbound_date_start"),
		Execute: func(ctx context.Context, args json.RawMessage) (any, error) {
			var q search.CalendarQuery
			if err := agent.DecodeArgs(args, &q); err != nil {
				return nil, err
			}
			return p.search.Calendar(ctx, q), nil
		},
	}
}

func (p *Planner) readFlightsTool() agent.Tool {
	return agent.Tool{
		Name:        ToolReadFlightsForTraveler,
		Description: "Show the flight tasks and chosen flights for one traveler.",
		Schema:      agent.Object(map[string]any{"traveler_index": agent.Integer("Zero-based traveler index")}, "traveler_index"),
		Execute: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				TravelerIndex int `json:"traveler_index"`
			}
			if err := agent.DecodeArgs(args, &in); err != nil {
				return nil, err
			}
			id, ok := agent.SessionFromContext(ctx)
			if !ok {
				return nil, ErrNoSession
			}
			s, err := p.Session(ctx, id)
			if err != nil {
				return nil, err
			}
			planner, err := s.Planner()
			if err != nil {
				return nil, err
			}
			f, err := s.Flights()
			if err != nil {
				return nil, err
			}
			return planning.FlightsForTraveler(planner, f, in.TravelerIndex), nil
		},
	}
}

func optionsSchema(description string) map[string]any {
	return agent.Array(description, agent.Object(map[string]any{
		"option_type": agent.String("The canonical label of the option"),
	}, "option_type"))
}

func (p *Planner) recordFlightTool() agent.Tool {
	return agent.Tool{
		Name:        ToolRecordFlightSearchResult,
		Description: "Record the summarised flight options for one flight search task.",
		Schema: agent.Object(map[string]any{
			"task_id":                  agent.String("The task being summarised"),
			"summary":                  agent.String("Short summary of the options"),
			"options":                  optionsSchema("The options you were given, option_type cheapest, fastest or balanced"),
			"best_price_hint":          agent.String("Price hint"),
			"best_time_hint":           agent.String("Timing hint"),
			"cheap_but_long_hint":      agent.String("Trade-off hint"),
			"recommended_option_label": agent.String("Label of the recommended option"),
			"notes":                    agent.String("Notes"),
			"chosen_option_type":       agent.String("cheapest, fastest or balanced"),
			"selection_reason":         agent.String("Why that option fits"),
		}, "task_id", "summary"),
		Execute: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in planning.FlightFindings
			if err := agent.DecodeArgs(args, &in); err != nil {
				return nil, err
			}
			return p.mutate(ctx, func(s *trip.Session) (planning.Result, error) {
				f, err := s.Flights()
				if err != nil {
					return planning.Result{}, err
				}
				next, res := planning.RecordFlightResult(f, in)
				if !res.OK() {
					return res, nil
				}
				return res, s.SaveFlights(next)
			})
		},
	}
}

func (p *Planner) recordStayTool() agent.Tool {
	return agent.Tool{
		Name:        ToolRecordAccommodationSearchResult,
		Description: "Record the summarised accommodation options for one stay task.",
		Schema: agent.Object(map[string]any{
			"task_id":                  agent.String("The task being summarised"),
			"summary":                  agent.String("Short summary of the options"),
			"options":                  optionsSchema("The options you were given"),
			"best_price_hint":          agent.String("Price hint"),
			"best_location_hint":       agent.String("Location hint"),
			"family_friendly_hint":     agent.String("Family hint"),
			"neighborhood_hint":        agent.String("Neighborhood hint"),
			"recommended_option_label": agent.String("Label of the recommended option"),
			"notes":                    agent.String("Notes"),
			"chosen_option_type":       agent.String("cheapest, best_location, family_friendly, balanced or luxury"),
			"selection_reason":         agent.String("Why that option fits"),
		}, "task_id", "summary"),
		Execute: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in planning.AccommodationFindings
			if err := agent.DecodeArgs(args, &in); err != nil {
				return nil, err
			}
			return p.mutate(ctx, func(s *trip.Session) (planning.Result, error) {
				a, err := s.Accommodation()
				if err != nil {
					return planning.Result{}, err
				}
				next, res := planning.RecordAccommodationResult(a, in)
				if !res.OK() {
					return res, nil
				}
				return res, s.SaveAccommodation(next)
			})
		},
	}
}

func (p *Planner) travelerStayChoiceTool() agent.Tool {
	return agent.Tool{
		Name:        ToolRecordTravelerAccommodationChoice,
		Description: "Pin a different accommodation option type for some travelers on one stay task.",
		Schema: agent.Object(map[string]any{
			"task_id":            agent.String("The stay task"),
			"traveler_indexes":   agent.Array("Travelers the choice applies to", agent.Integer("")),
			"chosen_option_type": agent.String("cheapest, best_location, family_friendly, balanced or luxury"),
			"notes":              agent.String("Why these travelers chose it"),
		}, "task_id", "traveler_indexes", "chosen_option_type"),
		Execute: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in trip.AccommodationOverride
			if err := agent.DecodeArgs(args, &in); err != nil {
				return nil, err
			}
			return p.mutate(ctx, func(s *trip.Session) (planning.Result, error) {
				a, err := s.Accommodation()
				if err != nil {
					return planning.Result{}, err
				}
				next, res := planning.RecordTravelerAccommodationChoice(a, in)
				if !res.OK() {
					return res, nil
				}
				if s.Phase(trip.DomainAccommodation) == trip.PhaseApplied {
					planner, err := s.Planner()
					if err != nil {
						return res, err
					}
					next, _ = planning.ApplyAccommodationResults(planner, next)
				}
				return res, s.SaveAccommodation(next)
			})
		},
	}
}
