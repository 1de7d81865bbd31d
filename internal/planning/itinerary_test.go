package planning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yubzen/globetrip/internal/trip"
)

func TestItineraryFilterDedupesAcrossChunks(t *testing.T) {
	t.Parallel()

	all := []int{0, 1}
	filter := NewItineraryFilter(0)

	chunk1 := []ProposedItem{
		{Date: "2025-12-02", Slot: "morning", Name: "British Museum", URL: "https://britishmuseum.org"},
		{Date: "2025-12-02", Slot: "morning", Name: "Hotel breakfast"},
	}
	chunk2 := []ProposedItem{
		{Date: "2025-12-05", Slot: "afternoon", Name: "The British Museum (again)", URL: "https://britishmuseum.org"},
		{Date: "2025-12-05", Slot: "morning", Name: "Hotel breakfast"},
	}

	var accepted []trip.DayItineraryItem
	var rejected []string
	for _, chunk := range [][]ProposedItem{chunk1, chunk2} {
		for _, item := range chunk {
			got, reason := filter.Accept(item, all)
			if reason != "" {
				rejected = append(rejected, reason)
				continue
			}
			accepted = append(accepted, got)
		}
	}

	require.Len(t, accepted, 3)
	assert.Equal(t, []string{RejectDuplicateURL}, rejected)

	museums := 0
	breakfasts := 0
	for _, it := range accepted {
		if it.Activity.URL == "https://britishmuseum.org" {
			museums++
		}
		if it.Activity.Name == "Hotel breakfast" {
			breakfasts++
		}
	}
	assert.Equal(t, 1, museums)
	assert.Equal(t, 2, breakfasts)
	assert.Equal(t, "*", accepted[0].TaskID)
	assert.Equal(t, all, accepted[0].TravelerIndexes)
}

func TestItineraryFilterDedupesByNameAndCity(t *testing.T) {
	t.Parallel()

	filter := NewItineraryFilter(2)
	_, reason := filter.Accept(ProposedItem{Date: "2025-12-02", Slot: "evening", Name: "Borough Market", City: "London"}, nil)
	assert.Empty(t, reason)
	_, reason = filter.Accept(ProposedItem{Date: "2025-12-03", Slot: "morning", Name: " borough market ", City: "london"}, nil)
	assert.Equal(t, RejectDuplicate, reason)
	_, reason = filter.Accept(ProposedItem{Date: "2025-12-03", Slot: "morning", Name: "Borough Market", City: "Leeds"}, nil)
	assert.Empty(t, reason)
}

func TestItineraryFilterCapsNeighborhoods(t *testing.T) {
	t.Parallel()

	filter := NewItineraryFilter(2)
	items := []ProposedItem{
		{Date: "2025-12-02", Slot: "morning", Name: "A", Neighborhood: "Soho"},
		{Date: "2025-12-02", Slot: "afternoon", Name: "B", Neighborhood: "Camden"},
		{Date: "2025-12-02", Slot: "evening", Name: "C", Neighborhood: "Greenwich"},
		{Date: "2025-12-02", Slot: "evening", Name: "D", Neighborhood: "soho"},
		{Date: "2025-12-03", Slot: "morning", Name: "E", Neighborhood: "Greenwich"},
	}
	var reasons []string
	for _, it := range items {
		_, reason := filter.Accept(it, nil)
		reasons = append(reasons, reason)
	}
	assert.Equal(t, []string{"", "", RejectNeighborhood, "", ""}, reasons)
}

func TestItineraryFilterRejectsInvalidItems(t *testing.T) {
	t.Parallel()

	filter := NewItineraryFilter(2)
	for _, item := range []ProposedItem{
		{Date: "2025-12-02", Slot: "brunch", Name: "A"},
		{Date: "02/12/2025", Slot: "morning", Name: "A"},
		{Date: "2025-12-02", Slot: "morning", Name: "   "},
	} {
		_, reason := filter.Accept(item, nil)
		assert.Equal(t, RejectInvalid, reason)
	}
}

func TestItineraryFilterSeed(t *testing.T) {
	t.Parallel()

	filter := NewItineraryFilter(2)
	filter.Seed([]trip.DayItineraryItem{{
		Date:     "2025-12-02",
		Slot:     trip.SlotMorning,
		Activity: trip.ActivityOption{Name: "Tower of London", URL: "https://hrp.org.uk/tower"},
	}})
	_, reason := filter.Accept(ProposedItem{Date: "2025-12-04", Slot: "morning", Name: "Tower", URL: "https://hrp.org.uk/tower"}, nil)
	assert.Equal(t, RejectDuplicateURL, reason)
}

func TestParseItineraryItems(t *testing.T) {
	t.Parallel()

	items, err := ParseItineraryItems(`{"items":[{"date":"2025-12-02","slot":"morning","name":"A"},42]}`)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "A", items[0].Name)

	items, err = ParseItineraryItems(` [{"date":"2025-12-02","slot":"evening","name":"B"}] `)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "evening", items[0].Slot)

	_, err = ParseItineraryItems("Sure! Here is your plan.")
	assert.ErrorIs(t, err, ErrUnparseableItinerary)
}

func TestBuildCalendarAndChunks(t *testing.T) {
	t.Parallel()

	p := plannerFixture()
	p.TripDetails.StartDate = "2025-12-01"
	p.TripDetails.EndDate = "2025-12-07"
	f := trip.FlightState{
		TravelerFlights: []trip.TravelerFlightChoice{{ChosenOption: &trip.FlightOption{
			OutboundArrivalTime: "2025-12-01T20:15",
			ReturnDepartureTime: "2025-12-07T08:05",
		}}},
	}

	days := BuildCalendar(p, f)
	require.Len(t, days, 7)
	assert.Equal(t, DayArrival, days[0].Kind)
	assert.True(t, days[0].ArrivesLate)
	assert.Equal(t, DayFull, days[3].Kind)
	assert.Equal(t, DayDeparture, days[6].Kind)
	assert.True(t, days[6].LeavesEarly)

	chunks := ChunkDays(days, 3)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[2], 1)
	assert.Equal(t, "2025-12-07", chunks[2][0].Date)
}

func TestPreview(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", Preview("short", 10))
	assert.Equal(t, "abc...", Preview("abcdef", 3))
	assert.Equal(t, "caf...", Preview("café au lait", 4))
	assert.Equal(t, "...", Preview("日本", 2))
}
