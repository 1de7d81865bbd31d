package trip

type ActivityOption struct {
	Name                      string   `json:"name"`
	Category                  string   `json:"category,omitempty"`
	LocationLabel             string   `json:"location_label,omitempty"`
	Neighborhood              string   `json:"neighborhood,omitempty"`
	City                      string   `json:"city,omitempty"`
	Country                   string   `json:"country,omitempty"`
	Latitude                  *float64 `json:"latitude,omitempty"`
	Longitude                 *float64 `json:"longitude,omitempty"`
	DurationMinutes           *int     `json:"duration_minutes,omitempty"`
	PricePerPersonLow         *float64 `json:"price_per_person_low,omitempty"`
	PricePerPersonHigh        *float64 `json:"price_per_person_high,omitempty"`
	Currency                  string   `json:"currency,omitempty"`
	IsFree                    *bool    `json:"is_free,omitempty"`
	TicketRequired            *bool    `json:"ticket_required,omitempty"`
	BookingRequired           *bool    `json:"booking_required,omitempty"`
	SuitableForAdults         *bool    `json:"suitable_for_adults,omitempty"`
	SuitableForChildren       *bool    `json:"suitable_for_children,omitempty"`
	SuitableForMobilityIssues *bool    `json:"suitable_for_mobility_issues,omitempty"`
	OpeningHoursHint          string   `json:"opening_hours_hint,omitempty"`
	DistanceFromBaseHint      string   `json:"distance_from_base_hint,omitempty"`
	Rating                    *float64 `json:"rating,omitempty"`
	RatingCount               *int     `json:"rating_count,omitempty"`
	URL                       string   `json:"url,omitempty"`
	BookingURL                string   `json:"booking_url,omitempty"`
	Notes                     string   `json:"notes,omitempty"`
}

type ActivitySearchTask struct {
	TaskID          string   `json:"task_id"`
	TravelerIndexes []int    `json:"traveler_indexes"`
	Location        string   `json:"location,omitempty"`
	DateStart       string   `json:"date_start,omitempty"`
	DateEnd         string   `json:"date_end,omitempty"`
	Interests       []string `json:"interests,omitempty"`
	MustDo          []string `json:"must_do,omitempty"`
	NiceToHave      []string `json:"nice_to_have,omitempty"`
	BudgetMode      string   `json:"budget_mode,omitempty"`
	Prompt          string   `json:"prompt,omitempty"`
	Purpose         string   `json:"purpose,omitempty"`
}

func (t ActivitySearchTask) ID() string       { return t.TaskID }
func (t ActivitySearchTask) Travelers() []int { return t.TravelerIndexes }

type ActivitySearchResult struct {
	TaskID             string           `json:"task_id"`
	Query              string           `json:"query,omitempty"`
	Options            []ActivityOption `json:"options"`
	Summary            string           `json:"summary,omitempty"`
	BudgetHint         string           `json:"budget_hint,omitempty"`
	FamilyFriendlyHint string           `json:"family_friendly_hint,omitempty"`
	NeighborhoodHint   string           `json:"neighborhood_hint,omitempty"`
}

func (r ActivitySearchResult) ID() string { return r.TaskID }

type Slot string

const (
	SlotMorning   Slot = "morning"
	SlotAfternoon Slot = "afternoon"
	SlotEvening   Slot = "evening"
)

func ParseSlot(s string) (Slot, bool) {
	switch Slot(s) {
	case SlotMorning, SlotAfternoon, SlotEvening:
		return Slot(s), true
	}
	return "", false
}

// DayItineraryItem is one accepted slot of the day plan. At most two distinct
// neighborhoods appear per date and a non-meal attraction appears once per
// trip; both are enforced while the plan is assembled.
type DayItineraryItem struct {
	Date            string         `json:"date"`
	Slot            Slot           `json:"slot"`
	TravelerIndexes []int          `json:"traveler_indexes"`
	TaskID          string         `json:"task_id"`
	Activity        ActivityOption `json:"activity"`
	Notes           string         `json:"notes,omitempty"`
}

type ActivityState struct {
	SearchTasks    []ActivitySearchTask   `json:"search_tasks"`
	SearchResults  []ActivitySearchResult `json:"search_results"`
	DayPlan        []DayItineraryItem     `json:"day_plan"`
	OverallSummary string                 `json:"overall_summary,omitempty"`
}

func (a ActivityState) Task(taskID string) (ActivitySearchTask, bool) {
	for _, t := range a.SearchTasks {
		if t.TaskID == taskID {
			return t, true
		}
	}
	return ActivitySearchTask{}, false
}
