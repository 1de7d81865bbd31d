package planning

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yubzen/globetrip/internal/trip"
)

func fp(v float64) *float64 { return &v }
func ip(v int) *int         { return &v }

func TestSplitChosenFallsBackToFirst(t *testing.T) {
	t.Parallel()

	options := []trip.FlightOption{
		{OptionType: trip.FlightCheapest, Notes: "a"},
		{OptionType: trip.FlightFastest, Notes: "b"},
		{OptionType: trip.FlightCheapest, Notes: "c"},
	}

	chosen, others := SplitChosen(options, "luxury")
	require.NotNil(t, chosen)
	assert.Equal(t, "a", chosen.Notes)
	assert.Equal(t, []string{"b", "c"}, []string{others[0].Notes, others[1].Notes})

	chosen, others = SplitChosen(options, trip.FlightCheapest)
	assert.Equal(t, "a", chosen.Notes)
	require.Len(t, others, 2)
	assert.Equal(t, "c", others[1].Notes)

	chosen, others = SplitChosen([]trip.FlightOption{}, trip.FlightCheapest)
	assert.Nil(t, chosen)
	assert.Empty(t, others)
}

func TestRecordFlightResultRejectsUnknownTask(t *testing.T) {
	t.Parallel()

	f := trip.FlightState{SearchTasks: []trip.FlightSearchTask{{TaskID: "flight_AMS_LHR_0"}}}
	got, res := RecordFlightResult(f, FlightFindings{TaskID: "flight_XXX_LHR_9", Summary: "nope"})
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, ReasonUnknownTaskID, res.Reason)
	assert.Empty(t, got.SearchResults)

	v := trip.VisaState{}
	gotVisa, res := RecordVisaResult(v, VisaFindings{TaskID: "NL_London_0"})
	assert.Equal(t, ReasonUnknownTaskID, res.Reason)
	assert.Empty(t, gotVisa.SearchResults)
}

func TestRecordFlightResultDropsBadOptions(t *testing.T) {
	t.Parallel()

	f := trip.FlightState{SearchTasks: []trip.FlightSearchTask{{TaskID: "f0", Prompt: "find flights"}}}
	got, res := RecordFlightResult(f, FlightFindings{
		TaskID: "f0",
		Options: []json.RawMessage{
			json.RawMessage(`{"option_type":"cheapest","price_per_ticket_low":120}`),
			json.RawMessage(`{"option_type":"scenic"}`),
			json.RawMessage(`{"option_type":`),
		},
		ChosenOptionType: "scenic",
	})
	require.True(t, res.OK())
	assert.Equal(t, 2, res.Dropped)
	require.Len(t, got.SearchResults, 1)
	assert.Len(t, got.SearchResults[0].Options, 1)
	assert.Empty(t, got.SearchResults[0].ChosenOptionType)
	assert.Equal(t, "find flights", got.SearchResults[0].Query)
}

func TestApplyFlightResultsBuildsChoices(t *testing.T) {
	t.Parallel()

	p := plannerFixture()
	f := trip.FlightState{
		SearchTasks: []trip.FlightSearchTask{
			{TaskID: "f0", TravelerIndexes: []int{0, 2}},
			{TaskID: "f1", TravelerIndexes: []int{1, 3}},
		},
		SearchResults: []trip.FlightSearchResult{
			{
				TaskID:           "f0",
				Summary:          "Direct flights daily.",
				BestPriceHint:    "~120 EUR",
				ChosenOptionType: trip.FlightFastest,
				Options: []trip.FlightOption{
					{OptionType: trip.FlightCheapest},
					{OptionType: trip.FlightFastest},
				},
			},
			{TaskID: "f0", Summary: "duplicate"},
		},
	}

	got, res := ApplyFlightResults(p, f)
	require.True(t, res.OK())
	assert.Equal(t, []string{"f0"}, res.Duplicates)
	assert.Contains(t, got.OverallSummary, "- Task f0: Direct flights daily. Price hint: ~120 EUR")

	require.Len(t, got.TravelerFlights, 2)
	assert.Equal(t, 0, got.TravelerFlights[0].TravelerIndex)
	assert.Equal(t, 2, got.TravelerFlights[1].TravelerIndex)
	assert.Equal(t, trip.FlightFastest, got.TravelerFlights[0].ChosenOption.OptionType)
	assert.Len(t, got.TravelerFlights[0].OtherOptions, 1)

	_, res = ApplyFlightResults(p, trip.FlightState{})
	assert.Equal(t, ReasonNoSearchResults, res.Reason)
}

func TestApplyAccommodationResultsHonoursOverrides(t *testing.T) {
	t.Parallel()

	p := plannerFixture()
	a := trip.AccommodationState{
		SearchTasks: []trip.AccommodationSearchTask{{TaskID: "stay_London_0", TravelerIndexes: []int{0, 1, 2, 3}}},
		SearchResults: []trip.AccommodationSearchResult{{
			TaskID:           "stay_London_0",
			ChosenOptionType: trip.StayCheapest,
			Options: []trip.AccommodationOption{
				{OptionType: trip.StayCheapest, Name: "Budget Inn"},
				{OptionType: trip.StayLuxury, Name: "The Grand"},
			},
		}},
	}

	a, res := RecordTravelerAccommodationChoice(a, trip.AccommodationOverride{
		TaskID: "stay_London_0", TravelerIndexes: []int{3}, ChosenOptionType: trip.StayLuxury,
	})
	require.True(t, res.OK())

	_, res = RecordTravelerAccommodationChoice(a, trip.AccommodationOverride{TaskID: "stay_Paris_0", ChosenOptionType: trip.StayLuxury})
	assert.Equal(t, ReasonUnknownTaskID, res.Reason)
	_, res = RecordTravelerAccommodationChoice(a, trip.AccommodationOverride{TaskID: "stay_London_0", ChosenOptionType: "castle"})
	assert.Equal(t, ReasonInvalidOptionType, res.Reason)

	got, res := ApplyAccommodationResults(p, a)
	require.True(t, res.OK())
	require.Len(t, got.TravelerAccommodations, 4)
	assert.Equal(t, "Budget Inn", got.TravelerAccommodations[0].ChosenOption.Name)
	assert.Equal(t, "The Grand", got.TravelerAccommodations[3].ChosenOption.Name)
	assert.Equal(t, "Chosen by traveler override.", got.TravelerAccommodations[3].SelectionReason)
}

func TestApplyVisaResults(t *testing.T) {
	t.Parallel()

	today := time.Date(2025, 11, 1, 15, 0, 0, 0, time.UTC)
	v := trip.VisaState{
		Requirements: []trip.VisaRequirement{{TravelerIndex: 0, Destination: "LHR"}},
		SearchTasks: []trip.VisaSearchTask{
			{TaskID: "NL_London_0", TravelerIndexes: []int{0}},
			{TaskID: "IN_London_1", TravelerIndexes: []int{1}, Nationality: "IN", DestinationCountry: "London"},
		},
		SearchResults: []trip.VisaSearchResult{
			{TaskID: "NL_London_0", Summary: "Dutch citizens do not require a visa; an Electronic Travel Authorization is needed."},
			{
				TaskID:             "IN_London_1",
				Summary:            "Standard Visitor Visa required before travel.",
				Notes:              "Apply online.",
				ProcessingTimeHint: "Usually 15 to 21 days",
				FeeHint:            "GBP 127",
			},
		},
	}

	got, res := ApplyVisaResults(v, today)
	require.True(t, res.OK())
	require.Len(t, got.Requirements, 2)

	nl := got.Requirements[0]
	require.NotNil(t, nl.NeedsVisa)
	assert.False(t, *nl.NeedsVisa)
	assert.Equal(t, "Electronic Travel Authorization (ETA)", nl.VisaType)

	in := got.Requirements[1]
	assert.Equal(t, 1, in.TravelerIndex)
	require.NotNil(t, in.NeedsVisa)
	assert.True(t, *in.NeedsVisa)
	assert.Equal(t, "Standard Visitor Visa", in.VisaType)
	assert.Equal(t, "GBP 127", in.Cost)
	assert.Equal(t, "Standard Visitor Visa required before travel.\n\nApply online.", in.AdditionalNotes)
	assert.Equal(t, "2025-11-22", got.EarliestSafeDepartureDate)

	// applying again must not duplicate notes
	again, _ := ApplyVisaResults(got, today)
	assert.Equal(t, in.AdditionalNotes, again.Requirements[1].AdditionalNotes)
}

func TestApplyVisaResultsKeepsNoVisaVerdict(t *testing.T) {
	t.Parallel()

	no := false
	v := trip.VisaState{
		Requirements:  []trip.VisaRequirement{{TravelerIndex: 0, NeedsVisa: &no}},
		SearchTasks:   []trip.VisaSearchTask{{TaskID: "t", TravelerIndexes: []int{0}}},
		SearchResults: []trip.VisaSearchResult{{TaskID: "t", Summary: "Visa required for stays over 90 days."}},
	}
	got, _ := ApplyVisaResults(v, time.Now())
	assert.False(t, *got.Requirements[0].NeedsVisa)
}

func TestApplyVisaResultsClampsLeadTime(t *testing.T) {
	t.Parallel()

	today := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		hint string
		want string
	}{
		{hint: "up to 365 days", want: "2025-05-01"},
		{hint: "0 days", want: "2025-01-02"},
	}
	for _, tt := range tests {
		v := trip.VisaState{
			SearchTasks:   []trip.VisaSearchTask{{TaskID: "t", TravelerIndexes: []int{0}}},
			SearchResults: []trip.VisaSearchResult{{TaskID: "t", ProcessingTimeHint: tt.hint}},
		}
		got, _ := ApplyVisaResults(v, today)
		assert.Equal(t, tt.want, got.EarliestSafeDepartureDate, tt.hint)
	}
}

func TestFlightsForTravelerIncludesPendingTasks(t *testing.T) {
	t.Parallel()

	p := plannerFixture()
	f := trip.FlightState{
		SearchTasks: []trip.FlightSearchTask{
			{TaskID: "f0", TravelerIndexes: []int{0}, RecommendedDepartureDate: "2025-12-05", OriginalDepartureDate: "2025-12-01"},
			{TaskID: "f1", TravelerIndexes: []int{0, 1}},
			{TaskID: "f2", TravelerIndexes: []int{1}},
		},
		SearchResults: []trip.FlightSearchResult{{TaskID: "f0", Options: []trip.FlightOption{{OptionType: trip.FlightBalanced}}}},
	}

	view := FlightsForTraveler(p, f, 0)
	require.NotNil(t, view.Traveler)
	require.Len(t, view.Tasks, 2)
	assert.Equal(t, "2025-12-05", view.Tasks[0].DepartureDate)
	require.NotNil(t, view.Tasks[0].Result)
	assert.Equal(t, trip.FlightBalanced, view.Tasks[0].Result.ChosenOption.OptionType)
	assert.Nil(t, view.Tasks[1].Result)

	assert.Nil(t, FlightsForTraveler(p, f, 42).Traveler)
}

func TestCanonicalFlightOptionsIgnoresOrder(t *testing.T) {
	t.Parallel()

	raw := []trip.FlightOption{
		{Notes: "slow-cheap", PricePerTicketLow: fp(90), DurationMinutes: ip(900)},
		{Notes: "fast-pricey", PricePerTicketLow: fp(400), DurationMinutes: ip(80)},
		{Notes: "middle", PricePerTicketLow: fp(150), DurationMinutes: ip(200), Source: "best"},
	}
	reversed := []trip.FlightOption{raw[2], raw[1], raw[0]}

	for _, in := range [][]trip.FlightOption{raw, reversed} {
		out := CanonicalFlightOptions(in)
		require.Len(t, out, 3)
		byType := map[string]string{}
		for _, o := range out {
			byType[o.OptionType] = o.Notes
		}
		assert.Equal(t, "slow-cheap", byType[trip.FlightCheapest])
		assert.Equal(t, "fast-pricey", byType[trip.FlightFastest])
		assert.Equal(t, "middle", byType[trip.FlightBalanced])
	}
	assert.Empty(t, raw[0].OptionType, "input must not be mutated")
}

func TestCanonicalStayOptions(t *testing.T) {
	t.Parallel()

	raw := []trip.AccommodationOption{
		{Name: "Mid", TotalPriceLow: fp(600), Rating: fp(8.1)},
		{Name: "Cheap", TotalPriceLow: fp(300), Rating: fp(7.0)},
		{Name: "Top", TotalPriceLow: fp(1500), Rating: fp(9.6)},
		{Name: "Small", TotalPriceLow: fp(200), MaxGuests: ip(2)},
	}
	fitting := FilterByCapacity(raw, 4)
	require.Len(t, fitting, 3)

	out := CanonicalStayOptions(fitting)
	require.Len(t, out, 3)
	assert.Equal(t, "Cheap", out[0].Name)
	assert.Equal(t, trip.StayCheapest, out[0].OptionType)
	assert.Equal(t, "Top", out[1].Name)
	assert.Equal(t, trip.StayBestLocation, out[1].OptionType)
	assert.Equal(t, "Mid", out[2].Name)
	assert.Equal(t, trip.StayBalanced, out[2].OptionType)
}

func TestStubResults(t *testing.T) {
	t.Parallel()

	task := trip.FlightSearchTask{TaskID: "f0", OriginCity: "AMS", DestinationCity: "LHR"}
	stub := StubFlightResult(task, []trip.FlightOption{{OptionType: trip.FlightBalanced}})
	assert.Equal(t, "f0", stub.TaskID)
	assert.Equal(t, trip.FlightBalanced, stub.ChosenOptionType)
	assert.Contains(t, stub.Summary, "AMS to LHR")

	empty := StubStayResult(trip.AccommodationSearchTask{TaskID: "s0"}, nil)
	assert.Empty(t, empty.ChosenOptionType)
	assert.Contains(t, empty.Summary, "the destination")
}

func TestPendingTasks(t *testing.T) {
	t.Parallel()

	tasks := []trip.FlightSearchTask{{TaskID: "a"}, {TaskID: "b"}, {TaskID: "c"}}
	results := []trip.FlightSearchResult{{TaskID: "b"}}
	pending := PendingTasks(tasks, results)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].TaskID)
	assert.Equal(t, "c", pending[1].TaskID)
}
