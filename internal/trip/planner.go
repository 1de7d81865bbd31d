package trip

import "strings"

type Status string

const (
	StatusIntake    Status = "intake"
	StatusPlanning  Status = "planning"
	StatusBooked    Status = "booked"
	StatusCompleted Status = "completed"
)

const (
	BudgetEconomy  = "economy"
	BudgetStandard = "standard"
	BudgetLuxury   = "luxury"
)

type TravelerRole string

const (
	RoleAdult  TravelerRole = "adult"
	RoleChild  TravelerRole = "child"
	RoleSenior TravelerRole = "senior"
)

type TripDetails struct {
	Destination            string `json:"destination,omitempty"`
	Origin                 string `json:"origin,omitempty"`
	OriginAirportCode      string `json:"origin_airport_code,omitempty"`
	DestinationAirportCode string `json:"destination_airport_code,omitempty"`
	StartDate              string `json:"start_date,omitempty"`
	EndDate                string `json:"end_date,omitempty"`
	FlexibleDates          bool   `json:"flexible_dates"`
}

// Traveler is addressed everywhere by its position in Demographics.Travelers.
// Entries are never reordered or removed once a task references them.
type Traveler struct {
	Role                TravelerRole `json:"role"`
	Age                 *int         `json:"age,omitempty"`
	Nationality         string       `json:"nationality,omitempty"`
	Origin              string       `json:"origin,omitempty"`
	OriginAirportCode   string       `json:"origin_airport_code,omitempty"`
	LuggageCount        *int         `json:"luggage_count,omitempty"`
	Interests           []string     `json:"interests,omitempty"`
	MobilityNeeds       []string     `json:"mobility_needs,omitempty"`
	DietaryNeeds        []string     `json:"dietary_needs,omitempty"`
	SensoryNeeds        []string     `json:"sensory_needs,omitempty"`
	SpecialRequirements []string     `json:"special_requirements,omitempty"`
}

type Demographics struct {
	Adults      int        `json:"adults"`
	Children    int        `json:"children"`
	Seniors     int        `json:"seniors"`
	Nationality []string   `json:"nationality,omitempty"`
	Travelers   []Traveler `json:"travelers"`
}

func (d Demographics) Headcount() int {
	return d.Adults + d.Children + d.Seniors
}

type Preferences struct {
	BudgetMode  string   `json:"budget_mode,omitempty"`
	TotalBudget *float64 `json:"total_budget,omitempty"`
	Pace        string   `json:"pace,omitempty"`
	Interests   []string `json:"interests,omitempty"`

	SpecialRequests []string `json:"special_requests,omitempty"`
	Notes           string   `json:"notes,omitempty"`

	AccommodationPreferences []string `json:"accommodation_preferences,omitempty"`
	RoomConfiguration        string   `json:"room_configuration,omitempty"`
	NeighborhoodPreferences  []string `json:"neighborhood_preferences,omitempty"`
	NeighborhoodAvoid        []string `json:"neighborhood_avoid,omitempty"`

	MobilityConstraints []string `json:"mobility_constraints,omitempty"`
	DietaryRequirements []string `json:"dietary_requirements,omitempty"`
	SensoryNeeds        []string `json:"sensory_needs,omitempty"`
	MustDo              []string `json:"must_do,omitempty"`
	NiceToHave          []string `json:"nice_to_have,omitempty"`

	TransportPreferences  []string `json:"transport_preferences,omitempty"`
	AirportPickupRequired *bool    `json:"airport_pickup_required,omitempty"`
	LuggageCount          *int     `json:"luggage_count,omitempty"`
	DailyRhythm           string   `json:"daily_rhythm,omitempty"`
}

type PlannerState struct {
	TripDetails  TripDetails  `json:"trip_details"`
	Demographics Demographics `json:"demographics"`
	Preferences  Preferences  `json:"preferences"`
	Status       Status       `json:"status"`
}

func NewPlannerState() PlannerState {
	return PlannerState{
		Demographics: Demographics{Adults: 1, Travelers: []Traveler{}},
		Preferences:  Preferences{BudgetMode: BudgetStandard, Pace: "moderate"},
		Status:       StatusIntake,
	}
}

// TravelerOrigin resolves the origin a traveler flies from: their own airport
// code or city first, then the trip-level airport code or city.
func (p PlannerState) TravelerOrigin(idx int) string {
	if idx >= 0 && idx < len(p.Demographics.Travelers) {
		t := p.Demographics.Travelers[idx]
		if t.OriginAirportCode != "" {
			return t.OriginAirportCode
		}
		if t.Origin != "" {
			return t.Origin
		}
	}
	if p.TripDetails.OriginAirportCode != "" {
		return p.TripDetails.OriginAirportCode
	}
	return p.TripDetails.Origin
}

func IsIntakeComplete(p PlannerState) bool {
	td, demo, pref := p.TripDetails, p.Demographics, p.Preferences

	hasTripOrigin := td.Origin != "" || td.OriginAirportCode != ""
	hasTravelerOrigins := len(demo.Travelers) > 0
	for _, t := range demo.Travelers {
		if t.Origin == "" && t.OriginAirportCode == "" {
			hasTravelerOrigins = false
			break
		}
	}
	if !hasTripOrigin && !hasTravelerOrigins {
		return false
	}

	if strings.TrimSpace(td.Destination) == "" || td.StartDate == "" || td.EndDate == "" || pref.BudgetMode == "" {
		return false
	}

	nationalityKnown := len(demo.Nationality) > 0
	if !nationalityKnown {
		nationalityKnown = true
		for _, t := range demo.Travelers {
			if t.Nationality == "" {
				nationalityKnown = false
				break
			}
		}
	}
	if !nationalityKnown {
		return false
	}

	return demo.Headcount() == 0 || len(demo.Travelers) >= demo.Headcount()
}
