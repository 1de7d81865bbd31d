package planning

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yubzen/globetrip/internal/trip"
)

const (
	DayArrival          = "arrival"
	DayFull             = "full"
	DayDeparture        = "departure"
	DayArrivalDeparture = "arrival_departure"

	DefaultChunkSize        = 3
	DefaultNeighborhoodsCap = 2

	lateArrivalHour    = 18
	earlyDepartureHour = 10
)

type CalendarDay struct {
	Date        string `json:"date"`
	Kind        string `json:"kind"`
	ArrivesLate bool   `json:"arrives_late"`
	LeavesEarly bool   `json:"leaves_early"`
}

// flightBounds finds the earliest outbound arrival and the latest return
// departure across every traveler's chosen flight.
func flightBounds(f trip.FlightState) (arrival, departure time.Time) {
	for _, c := range f.TravelerFlights {
		if c.ChosenOption == nil {
			continue
		}
		if t, ok := parseTimestamp(c.ChosenOption.OutboundArrivalTime); ok {
			if arrival.IsZero() || t.Before(arrival) {
				arrival = t
			}
		}
		if t, ok := parseTimestamp(c.ChosenOption.ReturnDepartureTime); ok {
			if t.After(departure) {
				departure = t
			}
		}
	}
	return arrival, departure
}

// BuildCalendar lays out one entry per date of the flight-aware stay window.
func BuildCalendar(p trip.PlannerState, f trip.FlightState) []CalendarDay {
	startStr, endStr := StayWindow(p, f)
	start, ok := parseDate(startStr)
	if !ok {
		return nil
	}
	end, ok := parseDate(endStr)
	if !ok || end.Before(start) {
		end = start
	}

	arrival, departure := flightBounds(f)
	arrivesLate := !arrival.IsZero() && arrival.Hour() >= lateArrivalHour
	leavesEarly := !departure.IsZero() && departure.Hour() < earlyDepartureHour

	var days []CalendarDay
	for d := start; !d.After(end); d = addDays(d, 1) {
		day := CalendarDay{Date: formatDate(d), Kind: DayFull}
		first, last := d.Equal(start), d.Equal(end)
		switch {
		case first && last:
			day.Kind = DayArrivalDeparture
		case first:
			day.Kind = DayArrival
		case last:
			day.Kind = DayDeparture
		}
		day.ArrivesLate = first && arrivesLate
		day.LeavesEarly = last && leavesEarly
		days = append(days, day)
	}
	return days
}

// ChunkDays splits the calendar into consecutive groups of at most size days.
func ChunkDays(days []CalendarDay, size int) [][]CalendarDay {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var chunks [][]CalendarDay
	for i := 0; i < len(days); i += size {
		chunks = append(chunks, days[i:min(i+size, len(days))])
	}
	return chunks
}

// ProposedItem is a raw itinerary item as emitted by the planning agent.
type ProposedItem struct {
	Date            string `json:"date"`
	Slot            string `json:"slot"`
	Name            string `json:"name"`
	Notes           string `json:"notes,omitempty"`
	TaskID          string `json:"task_id,omitempty"`
	Neighborhood    string `json:"neighborhood,omitempty"`
	City            string `json:"city,omitempty"`
	URL             string `json:"url,omitempty"`
	TravelerIndexes []int  `json:"traveler_indexes,omitempty"`
}

var ErrUnparseableItinerary = errors.New("itinerary response is neither an items object nor a list")

// ParseItineraryItems reads an {"items": [...]} object, falling back to a bare
// list. Individual items that do not decode are dropped.
func ParseItineraryItems(text string) ([]ProposedItem, error) {
	text = strings.TrimSpace(text)

	var raw []json.RawMessage
	var wrapper struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal([]byte(text), &wrapper); err == nil && wrapper.Items != nil {
		raw = wrapper.Items
	} else if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, ErrUnparseableItinerary
	}

	items := make([]ProposedItem, 0, len(raw))
	for _, r := range raw {
		var item ProposedItem
		if err := json.Unmarshal(r, &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// Preview trims text for log lines.
func Preview(text string, n int) string {
	if len(text) <= n {
		return text
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

const (
	RejectInvalid      = "invalid"
	RejectDuplicateURL = "duplicate_url"
	RejectDuplicate    = "duplicate_name"
	RejectNeighborhood = "neighborhood_cap"
)

var mealWords = []string{"breakfast", "lunch", "dinner"}

func isMeal(name string) bool {
	lower := strings.ToLower(name)
	for _, w := range mealWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func nameKey(name, city string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + strings.ToLower(strings.TrimSpace(city))
}

// ItineraryFilter accepts itinerary items across chunks. A URL is accepted
// once per trip, a name and city pair once per trip unless it is a meal, and
// each date holds at most maxNeighborhoods distinct neighborhoods.
type ItineraryFilter struct {
	maxNeighborhoods int
	urls             map[string]bool
	names            map[string]bool
	neighborhoods    map[string]map[string]bool
}

func NewItineraryFilter(maxNeighborhoods int) *ItineraryFilter {
	if maxNeighborhoods <= 0 {
		maxNeighborhoods = DefaultNeighborhoodsCap
	}
	return &ItineraryFilter{
		maxNeighborhoods: maxNeighborhoods,
		urls:             map[string]bool{},
		names:            map[string]bool{},
		neighborhoods:    map[string]map[string]bool{},
	}
}

// Seed registers items that are already part of the day plan.
func (f *ItineraryFilter) Seed(items []trip.DayItineraryItem) {
	for _, it := range items {
		f.register(it.Date, it.Activity.Name, it.Activity.City, it.Activity.URL, it.Activity.Neighborhood)
	}
}

func (f *ItineraryFilter) register(date, name, city, url, neighborhood string) {
	if u := strings.TrimSpace(url); u != "" {
		f.urls[u] = true
	} else if !isMeal(name) {
		f.names[nameKey(name, city)] = true
	}
	if n := strings.ToLower(strings.TrimSpace(neighborhood)); n != "" {
		set, ok := f.neighborhoods[date]
		if !ok {
			set = map[string]bool{}
			f.neighborhoods[date] = set
		}
		set[n] = true
	}
}

// Accept validates one proposed item and, when it passes, registers it before
// returning so later items in the same chunk see it.
func (f *ItineraryFilter) Accept(item ProposedItem, allTravelers []int) (trip.DayItineraryItem, string) {
	name := strings.TrimSpace(item.Name)
	slot, slotOK := trip.ParseSlot(item.Slot)
	date, dateOK := parseDate(item.Date)
	if !slotOK || !dateOK || name == "" {
		return trip.DayItineraryItem{}, RejectInvalid
	}
	day := formatDate(date)

	url := strings.TrimSpace(item.URL)
	if url != "" {
		if f.urls[url] {
			return trip.DayItineraryItem{}, RejectDuplicateURL
		}
	} else if !isMeal(name) && f.names[nameKey(name, item.City)] {
		return trip.DayItineraryItem{}, RejectDuplicate
	}

	if n := strings.ToLower(strings.TrimSpace(item.Neighborhood)); n != "" {
		set := f.neighborhoods[day]
		if !set[n] && len(set) >= f.maxNeighborhoods {
			return trip.DayItineraryItem{}, RejectNeighborhood
		}
	}

	f.register(day, name, item.City, url, item.Neighborhood)

	travelers := item.TravelerIndexes
	if len(travelers) == 0 {
		travelers = append([]int(nil), allTravelers...)
	}
	taskID := strings.TrimSpace(item.TaskID)
	if taskID == "" {
		taskID = "*"
	}
	return trip.DayItineraryItem{
		Date:            day,
		Slot:            slot,
		TravelerIndexes: travelers,
		TaskID:          taskID,
		Activity: trip.ActivityOption{
			Name:         name,
			Neighborhood: strings.TrimSpace(item.Neighborhood),
			City:         strings.TrimSpace(item.City),
			URL:          url,
		},
		Notes: strings.TrimSpace(item.Notes),
	}, ""
}

// BaseNeighborhood picks the neighborhood of the first chosen stay, falling
// back to its location label.
func BaseNeighborhood(a trip.AccommodationState) string {
	for _, c := range a.TravelerAccommodations {
		if c.ChosenOption == nil {
			continue
		}
		if c.ChosenOption.Neighborhood != "" {
			return c.ChosenOption.Neighborhood
		}
		if c.ChosenOption.LocationLabel != "" {
			return c.ChosenOption.LocationLabel
		}
	}
	return ""
}
