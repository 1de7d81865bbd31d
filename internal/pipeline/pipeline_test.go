package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yubzen/globetrip/internal/agent"
	"github.com/yubzen/globetrip/internal/planning"
	"github.com/yubzen/globetrip/internal/search"
	"github.com/yubzen/globetrip/internal/state"
	"github.com/yubzen/globetrip/internal/trip"
)

type handler func(ctx context.Context, msg string) ([]agent.Event, error)

// fakeInvoker plays every agent with a scripted handler. Handlers run with the
// session on the context, the way the registry invokes real agents.
type fakeInvoker struct {
	mu       sync.Mutex
	handlers map[string]handler
	calls    map[string][]string
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{handlers: map[string]handler{}, calls: map[string][]string{}}
}

func (f *fakeInvoker) on(agentID string, h handler) { f.handlers[agentID] = h }

func (f *fakeInvoker) Invoke(ctx context.Context, agentID, sessionID, msg string) ([]agent.Event, error) {
	f.mu.Lock()
	f.calls[agentID] = append(f.calls[agentID], msg)
	h, ok := f.handlers[agentID]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no handler for %s", agentID)
	}
	return h(agent.WithSession(ctx, sessionID), msg)
}

func (f *fakeInvoker) messages(agentID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls[agentID]...)
}

type fakeSearch struct {
	mu      sync.Mutex
	flights func(search.FlightQuery) search.FlightsResult
	stays   func(search.StayQuery) search.StaysResult
	queries []search.FlightQuery
}

var missingConfig = search.Outcome{Status: search.StatusError, Reason: search.ReasonMissingConfiguration}

func (f *fakeSearch) Flights(_ context.Context, q search.FlightQuery) search.FlightsResult {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.flights == nil {
		return search.FlightsResult{Outcome: missingConfig, Query: q}
	}
	return f.flights(q)
}

func (f *fakeSearch) Stays(_ context.Context, q search.StayQuery) search.StaysResult {
	if f.stays == nil {
		return search.StaysResult{Outcome: missingConfig, Query: q}
	}
	return f.stays(q)
}

func (f *fakeSearch) Airports(_ context.Context, location string) search.AirportsResult {
	return search.AirportsResult{
		Outcome:    search.Outcome{Status: search.StatusSuccess},
		Location:   location,
		Candidates: []search.Airport{{Code: "LHR", Name: "Heathrow", City: "London"}},
	}
}

func (f *fakeSearch) Calendar(_ context.Context, q search.CalendarQuery) search.CalendarResult {
	return search.CalendarResult{Outcome: search.Outcome{Status: search.StatusSuccess}, Query: q}
}

var today = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestPlanner(t *testing.T, inv agent.Invoker, srch Searcher, tweak ...func(*Config)) (*Planner, *state.DB) {
	t.Helper()
	db, err := state.Connect(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := Config{Store: db, Agents: inv, Search: srch, Now: func() time.Time { return today }}
	for _, fn := range tweak {
		fn(&cfg)
	}
	return New(cfg), db
}

// readyPlanner is a London trip for two Dutch adults flying from Amsterdam and
// an American child flying from New York.
func readyPlanner() trip.PlannerState {
	p := trip.NewPlannerState()
	p.TripDetails = trip.TripDetails{
		Destination:            "London",
		Origin:                 "Amsterdam",
		OriginAirportCode:      "AMS",
		DestinationAirportCode: "LHR",
		StartDate:              "2025-06-01",
		EndDate:                "2025-06-05",
	}
	p.Demographics = trip.Demographics{
		Adults:   2,
		Children: 1,
		Travelers: []trip.Traveler{
			{Role: trip.RoleAdult, Nationality: "NL"},
			{Role: trip.RoleAdult, Nationality: "NL"},
			{Role: trip.RoleChild, Nationality: "US", OriginAirportCode: "JFK"},
		},
	}
	p.Status = trip.StatusPlanning
	return p
}

func seedSession(t *testing.T, db *state.DB, planner trip.PlannerState) string {
	t.Helper()
	ctx := context.Background()
	s, err := db.CreateSession(ctx)
	require.NoError(t, err)
	require.NoError(t, s.SavePlanner(planner))
	require.NoError(t, db.SaveSession(ctx, s))
	return s.ID
}

func text(s string) []agent.Event {
	return []agent.Event{{Type: agent.EventText, Text: s}}
}

// callTool runs one of the planner's tools the way an agent turn would and
// returns the event the registry would have reported.
func callTool(t *testing.T, ctx context.Context, p *Planner, agentID, name string, args any) agent.Event {
	t.Helper()
	tool, ok := p.Tools(agentID).Get(name)
	require.True(t, ok, "tool %s not bound to %s", name, agentID)
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	resp, err := tool.Execute(ctx, raw)
	require.NoError(t, err)
	return agent.Event{Type: agent.EventToolCall, Agent: agentID, Tool: &agent.ToolInvocation{Name: name, Args: raw, Response: resp}}
}

// summaryMessage is the part of a summary request the fakes care about.
type summaryMessage struct {
	Task struct {
		TaskID string `json:"task_id"`
	} `json:"task"`
	CanonicalOptions []json.RawMessage `json:"canonical_options"`
}

func decodeMessage(t *testing.T, msg string) summaryMessage {
	t.Helper()
	var m summaryMessage
	require.NoError(t, decodeReply(msg, &m))
	return m
}

func ptr[T any](v T) *T { return &v }

func stages(out []Outcome) []string {
	var s []string
	for _, o := range out {
		s = append(s, string(o.Domain)+"/"+o.Stage+"/"+string(o.Result.Status))
	}
	return s
}

func TestRunVisaAppliesFindings(t *testing.T) {
	t.Parallel()

	inv := newFakeInvoker()
	inv.on(agent.AgentVisaSearch, func(_ context.Context, msg string) ([]agent.Event, error) {
		if strings.Contains(msg, `"nationality": "US"`) {
			return text("```json\n" + `{"task_id": "ignored", "summary": "Visa required. Apply for a Tourist visa online.", "processing_time_hint": "10-15 days", "fee_hint": "GBP 115"}` + "\n```"), nil
		}
		return text(`Here you go: {"summary": "No visa required for stays under six months."}`), nil
	})
	p, db := newTestPlanner(t, inv, &fakeSearch{})
	id := seedSession(t, db, readyPlanner())
	ctx := context.Background()

	out, err := p.RunVisa(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"visa/derive/success", "visa/search/success", "visa/apply/success"}, stages(out))

	p.Forget(id)
	s, err := p.Session(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, trip.PhaseApplied, s.Phase(trip.DomainVisa))

	v, err := s.Visa()
	require.NoError(t, err)
	require.Len(t, v.SearchTasks, 2)
	require.Len(t, v.SearchResults, 2)
	assert.Equal(t, v.SearchTasks[1].TaskID, v.SearchResults[1].TaskID)
	assert.Equal(t, "2025-03-29", v.EarliestSafeDepartureDate)

	require.Len(t, v.Requirements, 3)
	require.NotNil(t, v.Requirements[0].NeedsVisa)
	assert.False(t, *v.Requirements[0].NeedsVisa)
	require.NotNil(t, v.Requirements[2].NeedsVisa)
	assert.True(t, *v.Requirements[2].NeedsVisa)
	assert.Equal(t, "Tourist Visa", v.Requirements[2].VisaType)
	assert.Equal(t, "GBP 115", v.Requirements[2].Cost)

	runs, err := db.StageRuns(ctx, id)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "earliest safe departure 2025-03-29", runs[2].Detail)
}

func TestRunVisaIsPhaseGated(t *testing.T) {
	t.Parallel()

	inv := newFakeInvoker()
	inv.on(agent.AgentVisaSearch, func(context.Context, string) ([]agent.Event, error) {
		return text(`{"summary": "No visa required."}`), nil
	})
	p, db := newTestPlanner(t, inv, &fakeSearch{})
	id := seedSession(t, db, readyPlanner())
	ctx := context.Background()

	_, err := p.RunVisa(ctx, id)
	require.NoError(t, err)
	require.Len(t, inv.messages(agent.AgentVisaSearch), 2)

	out, err := p.RunVisa(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Len(t, inv.messages(agent.AgentVisaSearch), 2)

	s, err := p.Session(ctx, id)
	require.NoError(t, err)
	v, err := s.Visa()
	require.NoError(t, err)
	assert.Len(t, v.SearchTasks, 2)
}

func TestRunVisaSkipsUnparseableReplies(t *testing.T) {
	t.Parallel()

	inv := newFakeInvoker()
	inv.on(agent.AgentVisaSearch, func(_ context.Context, msg string) ([]agent.Event, error) {
		if strings.Contains(msg, `"nationality": "US"`) {
			return nil, errors.New("provider unavailable")
		}
		return text("I could not find anything useful."), nil
	})
	p, db := newTestPlanner(t, inv, &fakeSearch{})
	id := seedSession(t, db, readyPlanner())

	out, err := p.RunVisa(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{"visa/derive/success", "visa/search/success", "visa/apply/skipped"}, stages(out))
	assert.Equal(t, planning.ReasonNoSearchResults, out[2].Result.Reason)
}

func TestRunVisaAbortsOnCancellation(t *testing.T) {
	t.Parallel()

	inv := newFakeInvoker()
	inv.on(agent.AgentVisaSearch, func(context.Context, string) ([]agent.Event, error) {
		return nil, agent.ErrUserCancelled
	})
	p, db := newTestPlanner(t, inv, &fakeSearch{})
	id := seedSession(t, db, readyPlanner())

	_, err := p.RunVisa(context.Background(), id)
	require.ErrorIs(t, err, agent.ErrUserCancelled)

	s, err := p.Session(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, trip.PhaseTasksDerived, s.Phase(trip.DomainVisa))
}

func amsterdamFares(q search.FlightQuery) search.FlightsResult {
	if q.DepartureID != "AMS" {
		return search.FlightsResult{
			Outcome: search.Outcome{Status: search.StatusError, Reason: search.ReasonNon200, StatusCode: 500},
			Query:   q,
		}
	}
	return search.FlightsResult{
		Outcome: search.Outcome{Status: search.StatusSuccess},
		Query:   q,
		Options: []trip.FlightOption{
			{Airlines: []string{"Budget Air"}, Currency: "EUR", PricePerTicketLow: ptr(90.0), DurationMinutes: ptr(300), Source: "other"},
			{Airlines: []string{"KLM"}, Currency: "EUR", PricePerTicketLow: ptr(180.0), DurationMinutes: ptr(75), Source: "other"},
		},
	}
}

func TestRunFlightsRecordsAndStubs(t *testing.T) {
	t.Parallel()

	inv := newFakeInvoker()
	srch := &fakeSearch{flights: amsterdamFares}
	var p *Planner
	inv.on(agent.AgentFlightSummary, func(ctx context.Context, msg string) ([]agent.Event, error) {
		m := decodeMessage(t, msg)
		ev := callTool(t, ctx, p, agent.AgentFlightSummary, ToolRecordFlightSearchResult, map[string]any{
			"task_id":            m.Task.TaskID,
			"summary":            "A cheap slow fare and a quick direct one.",
			"options":            m.CanonicalOptions,
			"chosen_option_type": trip.FlightFastest,
			"selection_reason":   "Short trip, time matters.",
		})
		return []agent.Event{ev, {Type: agent.EventText, Text: "Recorded."}}, nil
	})
	p, db := newTestPlanner(t, inv, srch)
	id := seedSession(t, db, readyPlanner())
	ctx := context.Background()

	out, err := p.RunFlights(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"flights/derive/success", "flights/search/success", "flights/apply/success"}, stages(out))
	assert.Equal(t, 1, out[1].Result.Created, "one stub for the failed search")
	assert.Len(t, inv.messages(agent.AgentFlightSummary), 1)

	require.Len(t, srch.queries, 2)
	assert.Equal(t, 2, srch.queries[0].Adults)
	assert.Equal(t, 0, srch.queries[0].Children)
	assert.Equal(t, "economy", srch.queries[0].TravelClass)
	assert.Equal(t, 1, srch.queries[1].Adults)
	assert.Equal(t, 1, srch.queries[1].Children)

	s, err := p.Session(ctx, id)
	require.NoError(t, err)
	f, err := s.Flights()
	require.NoError(t, err)
	require.Len(t, f.SearchResults, 2)

	stub := f.SearchResults[1]
	assert.Equal(t, "flight_JFK_LHR_1", stub.TaskID)
	assert.Empty(t, stub.Options)
	assert.Empty(t, stub.ChosenOptionType)
	assert.Contains(t, stub.Summary, "no summary was recorded")

	require.Len(t, f.TravelerFlights, 3)
	for _, idx := range []int{0, 1} {
		c := f.TravelerFlights[idx]
		require.NotNil(t, c.ChosenOption)
		assert.Equal(t, trip.FlightFastest, c.ChosenOption.OptionType)
		assert.Equal(t, []string{"KLM"}, c.ChosenOption.Airlines)
		assert.Len(t, c.OtherOptions, 2)
	}
	assert.Equal(t, "flight_JFK_LHR_1", f.TravelerFlights[2].TaskID)
	assert.Nil(t, f.TravelerFlights[2].ChosenOption)
}

func TestRunFlightsTwiceKeepsTasks(t *testing.T) {
	t.Parallel()

	inv := newFakeInvoker()
	inv.on(agent.AgentFlightSummary, func(context.Context, string) ([]agent.Event, error) {
		return text("No tool call this time."), nil
	})
	srch := &fakeSearch{flights: amsterdamFares}
	p, db := newTestPlanner(t, inv, srch)
	id := seedSession(t, db, readyPlanner())
	ctx := context.Background()

	_, err := p.RunFlights(ctx, id)
	require.NoError(t, err)
	require.Len(t, srch.queries, 2)
	require.Len(t, inv.messages(agent.AgentFlightSummary), 1)

	p.Forget(id)
	out, err := p.RunFlights(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Len(t, srch.queries, 2)
	assert.Len(t, inv.messages(agent.AgentFlightSummary), 1)

	s, err := p.Session(ctx, id)
	require.NoError(t, err)
	f, err := s.Flights()
	require.NoError(t, err)
	assert.Len(t, f.SearchTasks, 2)
	assert.Len(t, f.SearchResults, 2)
	assert.Equal(t, trip.PhaseApplied, s.Phase(trip.DomainFlights))
}

func TestRunFlightsDefaultsToBalancedWithoutSummary(t *testing.T) {
	t.Parallel()

	inv := newFakeInvoker()
	inv.on(agent.AgentFlightSummary, func(context.Context, string) ([]agent.Event, error) {
		return text("I summarised them but forgot to call the tool."), nil
	})
	planner := readyPlanner()
	planner.Demographics.Travelers[2].OriginAirportCode = ""
	p, db := newTestPlanner(t, inv, &fakeSearch{flights: amsterdamFares})
	id := seedSession(t, db, planner)
	ctx := context.Background()

	_, err := p.RunFlights(ctx, id)
	require.NoError(t, err)

	s, err := p.Session(ctx, id)
	require.NoError(t, err)
	f, err := s.Flights()
	require.NoError(t, err)
	require.Len(t, f.SearchTasks, 1)
	require.Len(t, f.SearchResults, 1)
	assert.Equal(t, trip.FlightBalanced, f.SearchResults[0].ChosenOptionType)
	require.Len(t, f.SearchResults[0].Options, 3)

	require.Len(t, f.TravelerFlights, 3)
	require.NotNil(t, f.TravelerFlights[2].ChosenOption)
	assert.Equal(t, trip.FlightBalanced, f.TravelerFlights[2].ChosenOption.OptionType)
	assert.Equal(t, []string{"Budget Air"}, f.TravelerFlights[2].ChosenOption.Airlines)
}

func TestRunFlightsUsesVisaSafeDeparture(t *testing.T) {
	t.Parallel()

	planner := readyPlanner()
	planner.TripDetails.StartDate = "2025-03-20"
	planner.TripDetails.EndDate = "2025-03-24"
	planner.TripDetails.FlexibleDates = true

	srch := &fakeSearch{}
	p, db := newTestPlanner(t, newFakeInvoker(), srch)
	id := seedSession(t, db, planner)
	ctx := context.Background()

	s, err := p.Session(ctx, id)
	require.NoError(t, err)
	require.NoError(t, s.SaveVisa(trip.VisaState{EarliestSafeDepartureDate: "2025-03-29"}))

	_, err = p.RunFlights(ctx, id)
	require.NoError(t, err)
	require.NotEmpty(t, srch.queries)
	assert.Equal(t, "2025-03-29", srch.queries[0].OutboundDate)
	assert.Equal(t, "2025-04-02", srch.queries[0].ReturnDate)
}

func TestApplyFlightsRestoresDroppedResults(t *testing.T) {
	t.Parallel()

	clobber := func(_ trip.PlannerState, f trip.FlightState) (trip.FlightState, planning.Result) {
		f.SearchResults = nil
		return f, planning.Result{Status: planning.StatusSuccess}
	}
	inv := newFakeInvoker()
	inv.on(agent.AgentFlightSummary, func(context.Context, string) ([]agent.Event, error) {
		return text(""), nil
	})
	p, db := newTestPlanner(t, inv, &fakeSearch{flights: amsterdamFares}, func(c *Config) {
		c.ApplyFlights = clobber
	})
	id := seedSession(t, db, readyPlanner())
	ctx := context.Background()

	_, err := p.RunFlights(ctx, id)
	require.NoError(t, err)

	p.Forget(id)
	s, err := p.Session(ctx, id)
	require.NoError(t, err)
	f, err := s.Flights()
	require.NoError(t, err)
	assert.Len(t, f.SearchResults, 2)
	assert.Equal(t, trip.PhaseApplied, s.Phase(trip.DomainFlights))
}

func TestRunFlightsSkipsWithoutAirportCode(t *testing.T) {
	t.Parallel()

	planner := readyPlanner()
	planner.TripDetails.DestinationAirportCode = ""
	p, db := newTestPlanner(t, newFakeInvoker(), &fakeSearch{})
	id := seedSession(t, db, planner)

	out, err := p.RunFlights(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, planning.ReasonMissingDestinationAirportCode, out[0].Result.Reason)

	s, err := p.Session(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, trip.PhaseNotStarted, s.Phase(trip.DomainFlights))
}

func londonStays(q search.StayQuery) search.StaysResult {
	return search.StaysResult{
		Outcome: search.Outcome{Status: search.StatusSuccess},
		Engine:  search.EngineHotels,
		Query:   q,
		Options: []trip.AccommodationOption{
			{Name: "Tiny Flat", StayType: "apartment", Currency: "GBP", TotalPriceLow: ptr(200.0), MaxGuests: ptr(2), Rating: ptr(4.9)},
			{Name: "Family Inn", StayType: "hotel", Currency: "GBP", TotalPriceLow: ptr(300.0), MaxGuests: ptr(4), Rating: ptr(4.5), Neighborhood: "Bloomsbury"},
			{Name: "Grand Hotel", StayType: "hotel", Currency: "GBP", TotalPriceLow: ptr(500.0), Rating: ptr(4.8), Neighborhood: "Mayfair"},
		},
	}
}

func TestRunAccommodationRepairsAndOverrides(t *testing.T) {
	t.Parallel()

	inv := newFakeInvoker()
	var p *Planner
	inv.on(agent.AgentAccommodationSummary, func(ctx context.Context, msg string) ([]agent.Event, error) {
		m := decodeMessage(t, msg)
		require.Len(t, m.CanonicalOptions, 2, "the flat is too small for the party")
		recorded := callTool(t, ctx, p, agent.AgentAccommodationSummary, ToolRecordAccommodationSearchResult, map[string]any{
			"task_id":            m.Task.TaskID,
			"summary":            "Two hotels fit the family.",
			"options":            []any{},
			"chosen_option_type": trip.StayLuxury,
		})
		pinned := callTool(t, ctx, p, agent.AgentAccommodationSummary, ToolRecordTravelerAccommodationChoice, map[string]any{
			"task_id":            m.Task.TaskID,
			"traveler_indexes":   []int{2},
			"chosen_option_type": trip.StayBestLocation,
		})
		return []agent.Event{recorded, pinned}, nil
	})
	p, db := newTestPlanner(t, inv, &fakeSearch{stays: londonStays})
	id := seedSession(t, db, readyPlanner())
	ctx := context.Background()

	out, err := p.RunAccommodation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"accommodation/derive/success", "accommodation/search/success", "accommodation/apply/success"}, stages(out))

	s, err := p.Session(ctx, id)
	require.NoError(t, err)
	a, err := s.Accommodation()
	require.NoError(t, err)
	require.Len(t, a.SearchTasks, 1)
	assert.Equal(t, 2, a.SearchTasks[0].Adults)
	assert.Equal(t, 1, a.SearchTasks[0].Children)

	require.Len(t, a.SearchResults, 1)
	r := a.SearchResults[0]
	require.Len(t, r.Options, 2)
	assert.Empty(t, r.ChosenOptionType, "luxury is not among the options")

	require.Len(t, a.TravelerAccommodations, 3)
	assert.Equal(t, "Family Inn", a.TravelerAccommodations[0].ChosenOption.Name)
	assert.Equal(t, "Grand Hotel", a.TravelerAccommodations[2].ChosenOption.Name)
	assert.Equal(t, trip.StayBestLocation, a.TravelerAccommodations[2].ChosenOptionType)
}

func TestRunAccommodationStubsWhenNothingFits(t *testing.T) {
	t.Parallel()

	tooSmall := func(q search.StayQuery) search.StaysResult {
		return search.StaysResult{
			Outcome: search.Outcome{Status: search.StatusSuccess},
			Engine:  search.EngineHotels,
			Query:   q,
			Options: []trip.AccommodationOption{{Name: "Tiny Flat", MaxGuests: ptr(2), TotalPriceLow: ptr(200.0)}},
		}
	}
	inv := newFakeInvoker()
	p, db := newTestPlanner(t, inv, &fakeSearch{stays: tooSmall})
	id := seedSession(t, db, readyPlanner())
	ctx := context.Background()

	out, err := p.RunAccommodation(ctx, id)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, 1, out[1].Result.Created)
	assert.Empty(t, inv.messages(agent.AgentAccommodationSummary))

	s, err := p.Session(ctx, id)
	require.NoError(t, err)
	a, err := s.Accommodation()
	require.NoError(t, err)
	require.Len(t, a.SearchResults, 1)
	assert.Empty(t, a.SearchResults[0].Options)
	assert.Empty(t, a.SearchResults[0].ChosenOptionType)
	for _, c := range a.TravelerAccommodations {
		assert.Nil(t, c.ChosenOption)
	}
}

func TestStayChoiceAfterApplyRebuildsChoices(t *testing.T) {
	t.Parallel()

	inv := newFakeInvoker()
	inv.on(agent.AgentAccommodationSummary, func(context.Context, string) ([]agent.Event, error) {
		return nil, errors.New("model overloaded")
	})
	p, db := newTestPlanner(t, inv, &fakeSearch{stays: londonStays})
	id := seedSession(t, db, readyPlanner())
	ctx := context.Background()

	_, err := p.RunAccommodation(ctx, id)
	require.NoError(t, err)

	s, err := p.Session(ctx, id)
	require.NoError(t, err)
	a, err := s.Accommodation()
	require.NoError(t, err)
	require.Len(t, a.SearchResults, 1)
	assert.Empty(t, a.SearchResults[0].ChosenOptionType, "no balanced stay among the canonical options")
	assert.Equal(t, "Family Inn", a.TravelerAccommodations[0].ChosenOption.Name)

	callTool(t, agent.WithSession(ctx, id), p, agent.AgentIntake, ToolRecordTravelerAccommodationChoice, map[string]any{
		"task_id":            a.SearchTasks[0].TaskID,
		"traveler_indexes":   []int{0, 1},
		"chosen_option_type": trip.StayBestLocation,
	})

	a, err = s.Accommodation()
	require.NoError(t, err)
	assert.Equal(t, "Grand Hotel", a.TravelerAccommodations[0].ChosenOption.Name)
	assert.Equal(t, "Grand Hotel", a.TravelerAccommodations[1].ChosenOption.Name)
}

func TestRunActivitiesBuildsItinerary(t *testing.T) {
	t.Parallel()

	chunks := []string{
		`{"items": [
			{"date": "2025-06-01", "slot": "afternoon", "name": "British Museum", "neighborhood": "Bloomsbury", "city": "London"},
			{"date": "2025-06-02", "slot": "morning", "name": "Tower of London", "neighborhood": "Tower Hill", "city": "London", "url": "https://www.hrp.org.uk/tower-of-london/"}
		]}`,
		"```json\n" + `[
			{"date": "2025-06-03", "slot": "morning", "name": "british museum ", "city": "London"},
			{"date": "2025-06-04", "slot": "morning", "name": "The Tower again", "url": "https://www.hrp.org.uk/tower-of-london/"},
			{"date": "2025-06-03", "slot": "afternoon", "name": "Hyde Park", "neighborhood": "Mayfair", "city": "London"},
			{"date": "2025-06-03", "slot": "sunset", "name": "Thames cruise"}
		]` + "\n```",
		"Sorry, I could not plan the last day.",
	}

	inv := newFakeInvoker()
	inv.on(agent.AgentActivitySearch, func(context.Context, string) ([]agent.Event, error) {
		return text("```json\n" + `{"summary": "Museums and parks.", "options": [{"name": "British Museum", "category": "museum"}, {"name": "  "}]}` + "\n```"), nil
	})
	var mu sync.Mutex
	call := 0
	inv.on(agent.AgentDayItinerary, func(context.Context, string) ([]agent.Event, error) {
		mu.Lock()
		defer mu.Unlock()
		reply := chunks[call]
		call++
		return text(reply), nil
	})
	p, db := newTestPlanner(t, inv, &fakeSearch{}, func(c *Config) { c.ChunkSize = 2 })
	id := seedSession(t, db, readyPlanner())
	ctx := context.Background()

	out, err := p.RunActivities(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"activities/derive/success", "activities/search/success", "activities/apply/success"}, stages(out))
	assert.Equal(t, 1, out[1].Result.Dropped)
	assert.Equal(t, 3, out[2].Result.Updated)

	msgs := inv.messages(agent.AgentDayItinerary)
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[1], "Tower of London", "later chunks see what is already planned")

	s, err := p.Session(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, trip.PhaseApplied, s.Phase(trip.DomainActivities))
	acts, err := s.Activities()
	require.NoError(t, err)

	var names []string
	for _, it := range acts.DayPlan {
		names = append(names, it.Activity.Name)
		assert.Equal(t, []int{0, 1, 2}, it.TravelerIndexes)
		assert.Equal(t, "*", it.TaskID)
	}
	assert.Equal(t, []string{"British Museum", "Tower of London", "Hyde Park"}, names)
	require.Len(t, acts.SearchResults, 1)
	assert.Len(t, acts.SearchResults[0].Options, 1)
	assert.Contains(t, acts.OverallSummary, "Museums and parks.")
}

func TestRunAllStopsDuringIntake(t *testing.T) {
	t.Parallel()

	inv := newFakeInvoker()
	p, db := newTestPlanner(t, inv, &fakeSearch{})
	ctx := context.Background()
	s, err := db.CreateSession(ctx)
	require.NoError(t, err)

	out, err := p.RunAll(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, planning.StatusSkipped, out[0].Result.Status)
	assert.Equal(t, planning.ReasonIntakeIncomplete, out[0].Result.Reason)
	assert.Empty(t, inv.messages(agent.AgentVisaSearch))

	runs, err := db.StageRuns(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "skipped", runs[0].Status)
}

func TestRunAllReportsProgress(t *testing.T) {
	t.Parallel()

	inv := newFakeInvoker()
	for _, id := range agent.IDs() {
		inv.on(id, func(context.Context, string) ([]agent.Event, error) { return text(""), nil })
	}
	updates := make(chan StepUpdate, 256)
	p, db := newTestPlanner(t, inv, &fakeSearch{flights: amsterdamFares, stays: londonStays}, func(c *Config) {
		c.Updates = updates
	})
	id := seedSession(t, db, readyPlanner())

	out, err := p.RunAll(context.Background(), id)
	require.NoError(t, err)
	close(updates)

	running, finished := 0, 0
	for u := range updates {
		if u.Status == "running" {
			running++
		} else {
			finished++
		}
	}
	assert.Equal(t, len(out), running)
	assert.Equal(t, len(out), finished)

	var domains []trip.Domain
	for _, o := range out {
		if len(domains) == 0 || domains[len(domains)-1] != o.Domain {
			domains = append(domains, o.Domain)
		}
	}
	assert.Equal(t, []trip.Domain{trip.DomainVisa, trip.DomainFlights, trip.DomainAccommodation, trip.DomainActivities, trip.DomainSummary}, domains)
}

func TestChatUpdatesPlanner(t *testing.T) {
	t.Parallel()

	inv := newFakeInvoker()
	var p *Planner
	inv.on(agent.AgentIntake, func(ctx context.Context, _ string) ([]agent.Event, error) {
		ev := callTool(t, ctx, p, agent.AgentIntake, ToolUpdateTripPlan, map[string]any{
			"trip_details": map[string]any{
				"destination":              "London",
				"origin":                   "Amsterdam",
				"origin_airport_code":      "AMS",
				"destination_airport_code": "LHR",
				"start_date":               "2025-06-01",
				"end_date":                 "2025-06-05",
			},
			"demographics": map[string]any{
				"adults":    1,
				"travelers": []map[string]any{{"role": "adult", "nationality": "NL"}},
			},
		})
		resp, ok := ev.Tool.Response.(intakeResponse)
		require.True(t, ok)
		assert.True(t, resp.IntakeComplete)
		return []agent.Event{ev, {Type: agent.EventText, Text: "London it is. Ready to plan."}}, nil
	})
	p, db := newTestPlanner(t, inv, &fakeSearch{})
	ctx := context.Background()
	s, err := db.CreateSession(ctx)
	require.NoError(t, err)

	turn, err := p.Chat(ctx, s.ID, "  Two of us? No, just me. London in June.  ")
	require.NoError(t, err)
	assert.Equal(t, "London it is. Ready to plan.", turn.Reply)
	assert.Equal(t, []string{ToolUpdateTripPlan}, turn.Tools)
	assert.Equal(t, trip.StatusPlanning, turn.Planner.Status)
	assert.Equal(t, []string{"Two of us? No, just me. London in June."}, inv.messages(agent.AgentIntake))

	stored, err := db.LoadSession(ctx, s.ID)
	require.NoError(t, err)
	planner, err := stored.Planner()
	require.NoError(t, err)
	assert.Equal(t, "London", planner.TripDetails.Destination)
}

func TestChatRollsBackFailedTurn(t *testing.T) {
	t.Parallel()

	inv := newFakeInvoker()
	var p *Planner
	inv.on(agent.AgentIntake, func(ctx context.Context, _ string) ([]agent.Event, error) {
		callTool(t, ctx, p, agent.AgentIntake, ToolUpdateTripPlan, map[string]any{
			"trip_details": map[string]any{"destination": "Paris"},
		})
		return nil, errors.New("stream interrupted")
	})
	p, db := newTestPlanner(t, inv, &fakeSearch{})
	ctx := context.Background()
	s, err := db.CreateSession(ctx)
	require.NoError(t, err)

	_, err = p.Chat(ctx, s.ID, "Paris please")
	require.Error(t, err)

	live, err := p.Session(ctx, s.ID)
	require.NoError(t, err)
	planner, err := live.Planner()
	require.NoError(t, err)
	assert.Empty(t, planner.TripDetails.Destination)

	stored, err := db.LoadSession(ctx, s.ID)
	require.NoError(t, err)
	planner, err = stored.Planner()
	require.NoError(t, err)
	assert.Empty(t, planner.TripDetails.Destination)
}

func TestIntakeToolsNeedSession(t *testing.T) {
	t.Parallel()

	p, _ := newTestPlanner(t, newFakeInvoker(), &fakeSearch{})
	tool, ok := p.Tools(agent.AgentIntake).Get(ToolMarkReadyForPlanning)
	require.True(t, ok)
	_, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrNoSession)

	airports, ok := p.Tools(agent.AgentIntake).Get(ToolResolveAirports)
	require.True(t, ok)
	_, err = airports.Execute(context.Background(), json.RawMessage(`{"location": " "}`))
	assert.Error(t, err)
	resp, err := airports.Execute(context.Background(), json.RawMessage(`{"location": "London"}`))
	require.NoError(t, err)
	assert.Equal(t, "LHR", resp.(search.AirportsResult).Candidates[0].Code)
}

func TestBindToolsCoversToolUsers(t *testing.T) {
	t.Parallel()

	p, _ := newTestPlanner(t, newFakeInvoker(), &fakeSearch{})
	b := recordingBinder{}
	p.BindTools(b)

	assert.Contains(t, b, agent.AgentIntake)
	assert.Equal(t, []string{ToolRecordFlightSearchResult}, b[agent.AgentFlightSummary])
	assert.NotContains(t, b, agent.AgentVisaSearch)
	assert.NotContains(t, b, agent.AgentDayItinerary)
}

type recordingBinder map[string][]string

func (r recordingBinder) Bind(agentID string, tools agent.ToolSet) { r[agentID] = tools.Names() }

func TestRunSummaryRecomputes(t *testing.T) {
	t.Parallel()

	inv := newFakeInvoker()
	narratives := []string{"Four days of museums in London.", "  "}
	var mu sync.Mutex
	inv.on(agent.AgentTripSummary, func(context.Context, string) ([]agent.Event, error) {
		mu.Lock()
		defer mu.Unlock()
		n := narratives[0]
		narratives = narratives[1:]
		return text(n), nil
	})
	p, db := newTestPlanner(t, inv, &fakeSearch{})
	id := seedSession(t, db, readyPlanner())
	ctx := context.Background()

	s, err := p.Session(ctx, id)
	require.NoError(t, err)
	require.NoError(t, s.SaveFlights(trip.FlightState{
		SearchTasks: []trip.FlightSearchTask{{TaskID: "flight_AMS_LHR_0", TravelerIndexes: []int{0, 1}}},
		SearchResults: []trip.FlightSearchResult{{
			TaskID:           "flight_AMS_LHR_0",
			ChosenOptionType: trip.FlightCheapest,
			Options:          []trip.FlightOption{{OptionType: trip.FlightCheapest, Currency: "EUR", PricePerTicketLow: ptr(100.0)}},
		}},
	}))

	out, err := p.RunSummary(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"summary/derive/success", "summary/search/success", "summary/apply/success"}, stages(out))

	sum, err := s.Summary()
	require.NoError(t, err)
	assert.Equal(t, "Four days of museums in London.", sum.Narrative)
	require.Contains(t, sum.Costs.CurrencyTotals, "EUR")
	assert.InDelta(t, 200.0, *sum.Costs.CurrencyTotals["EUR"].FlightsLow, 0.001)

	costs, err := p.Costs(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, sum.Costs, costs)

	out, err = p.RunSummary(ctx, id)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, ReasonEmptySummary, out[1].Result.Reason)
	sum, err = s.Summary()
	require.NoError(t, err)
	assert.Empty(t, sum.Narrative)
	assert.Equal(t, trip.PhaseApplied, s.Phase(trip.DomainSummary))
}

func TestDecodeReply(t *testing.T) {
	t.Parallel()

	var got struct {
		Summary string `json:"summary"`
	}
	require.NoError(t, decodeReply("```json\n{\"summary\": \"fenced\"}\n```", &got))
	assert.Equal(t, "fenced", got.Summary)
	require.NoError(t, decodeReply(`Sure! {"summary": "in prose"} Hope that helps.`, &got))
	assert.Equal(t, "in prose", got.Summary)
	assert.ErrorIs(t, decodeReply("nothing here", &got), errNoJSONObject)
}
