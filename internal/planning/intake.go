package planning

import (
	"sort"
	"strings"

	"github.com/yubzen/globetrip/internal/trip"
)

type TripDetailsUpdate struct {
	Destination            *string `json:"destination,omitempty"`
	Origin                 *string `json:"origin,omitempty"`
	OriginAirportCode      *string `json:"origin_airport_code,omitempty"`
	DestinationAirportCode *string `json:"destination_airport_code,omitempty"`
	StartDate              *string `json:"start_date,omitempty"`
	EndDate                *string `json:"end_date,omitempty"`
	FlexibleDates          *bool   `json:"flexible_dates,omitempty"`
}

type DemographicsUpdate struct {
	Adults      *int            `json:"adults,omitempty"`
	Children    *int            `json:"children,omitempty"`
	Seniors     *int            `json:"seniors,omitempty"`
	Nationality []string        `json:"nationality,omitempty"`
	Travelers   []trip.Traveler `json:"travelers,omitempty"`
}

type PreferencesUpdate struct {
	BudgetMode               *string  `json:"budget_mode,omitempty"`
	TotalBudget              *float64 `json:"total_budget,omitempty"`
	Pace                     *string  `json:"pace,omitempty"`
	Interests                []string `json:"interests,omitempty"`
	SpecialRequests          []string `json:"special_requests,omitempty"`
	Notes                    *string  `json:"notes,omitempty"`
	AccommodationPreferences []string `json:"accommodation_preferences,omitempty"`
	RoomConfiguration        *string  `json:"room_configuration,omitempty"`
	NeighborhoodPreferences  []string `json:"neighborhood_preferences,omitempty"`
	NeighborhoodAvoid        []string `json:"neighborhood_avoid,omitempty"`
	MobilityConstraints      []string `json:"mobility_constraints,omitempty"`
	DietaryRequirements      []string `json:"dietary_requirements,omitempty"`
	SensoryNeeds             []string `json:"sensory_needs,omitempty"`
	MustDo                   []string `json:"must_do,omitempty"`
	NiceToHave               []string `json:"nice_to_have,omitempty"`
	TransportPreferences     []string `json:"transport_preferences,omitempty"`
	AirportPickupRequired    *bool    `json:"airport_pickup_required,omitempty"`
	LuggageCount             *int     `json:"luggage_count,omitempty"`
	DailyRhythm              *string  `json:"daily_rhythm,omitempty"`
}

// TripUpdate is a partial planner update as sent by the intake agent. Nil
// fields and empty lists leave the current value alone.
type TripUpdate struct {
	TripDetails  *TripDetailsUpdate  `json:"trip_details,omitempty"`
	Demographics *DemographicsUpdate `json:"demographics,omitempty"`
	Preferences  *PreferencesUpdate  `json:"preferences,omitempty"`
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setList(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = append([]string(nil), src...)
	}
}

func mergeTripDetails(td *trip.TripDetails, u *TripDetailsUpdate) {
	if u == nil {
		return
	}
	setString(&td.Destination, u.Destination)
	setString(&td.Origin, u.Origin)
	setString(&td.OriginAirportCode, u.OriginAirportCode)
	setString(&td.DestinationAirportCode, u.DestinationAirportCode)
	setString(&td.StartDate, u.StartDate)
	setString(&td.EndDate, u.EndDate)
	if u.FlexibleDates != nil {
		td.FlexibleDates = *u.FlexibleDates
	}
}

func validRole(r trip.TravelerRole) bool {
	return r == trip.RoleAdult || r == trip.RoleChild || r == trip.RoleSenior
}

// mergeTraveler overlays the incoming traveler onto base. Incoming strings and
// lists win only when non-empty.
func mergeTraveler(base, in trip.Traveler) trip.Traveler {
	out := base
	if validRole(in.Role) {
		out.Role = in.Role
	}
	if in.Age != nil {
		out.Age = in.Age
	}
	if in.LuggageCount != nil {
		out.LuggageCount = in.LuggageCount
	}
	if in.Nationality != "" {
		out.Nationality = in.Nationality
	}
	if in.Origin != "" {
		out.Origin = in.Origin
	}
	if in.OriginAirportCode != "" {
		out.OriginAirportCode = in.OriginAirportCode
	}
	setList(&out.Interests, in.Interests)
	setList(&out.MobilityNeeds, in.MobilityNeeds)
	setList(&out.DietaryNeeds, in.DietaryNeeds)
	setList(&out.SensoryNeeds, in.SensoryNeeds)
	setList(&out.SpecialRequirements, in.SpecialRequirements)
	return out
}

// mergeTravelers merges incoming travelers by position. Entries without a
// valid role are ignored.
func mergeTravelers(base []trip.Traveler, incoming []trip.Traveler) []trip.Traveler {
	out := append([]trip.Traveler(nil), base...)
	pos := 0
	for _, in := range incoming {
		if !validRole(in.Role) {
			continue
		}
		if pos < len(out) {
			out[pos] = mergeTraveler(out[pos], in)
		} else {
			out = append(out, mergeTraveler(trip.Traveler{}, in))
		}
		pos++
	}
	return out
}

// inferTravelers builds a traveler list from the aggregate counts when none
// were given.
func inferTravelers(p trip.PlannerState) []trip.Traveler {
	demo := p.Demographics
	nationality := ""
	if len(demo.Nationality) > 0 {
		nationality = demo.Nationality[0]
	}
	var out []trip.Traveler
	add := func(role trip.TravelerRole, n int) {
		for i := 0; i < n; i++ {
			out = append(out, trip.Traveler{
				Role:              role,
				Nationality:       nationality,
				Origin:            p.TripDetails.Origin,
				OriginAirportCode: p.TripDetails.OriginAirportCode,
			})
		}
	}
	add(trip.RoleAdult, demo.Adults)
	add(trip.RoleChild, demo.Children)
	add(trip.RoleSenior, demo.Seniors)
	return out
}

func travelerNationalities(travelers []trip.Traveler) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range travelers {
		if t.Nationality != "" && !seen[t.Nationality] {
			seen[t.Nationality] = true
			out = append(out, t.Nationality)
		}
	}
	sort.Strings(out)
	return out
}

func mergeDemographics(p *trip.PlannerState, u *DemographicsUpdate) {
	demo := &p.Demographics
	if u != nil {
		if u.Adults != nil {
			demo.Adults = max(0, *u.Adults)
		}
		if u.Children != nil {
			demo.Children = max(0, *u.Children)
		}
		if u.Seniors != nil {
			demo.Seniors = max(0, *u.Seniors)
		}
		setList(&demo.Nationality, u.Nationality)
		if len(u.Travelers) > 0 {
			demo.Travelers = mergeTravelers(demo.Travelers, u.Travelers)
		}
	}
	if len(demo.Travelers) == 0 {
		demo.Travelers = inferTravelers(*p)
	}
	if len(demo.Nationality) == 0 {
		demo.Nationality = travelerNationalities(demo.Travelers)
	}
	if demo.Travelers == nil {
		demo.Travelers = []trip.Traveler{}
	}
}

func appendUnique(dst []string, items []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, d := range dst {
		seen[d] = true
	}
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		dst = append(dst, it)
	}
	return dst
}

func mergePreferences(pref *trip.Preferences, u *PreferencesUpdate) {
	if u == nil {
		return
	}
	if u.BudgetMode != nil {
		pref.BudgetMode = strings.ToLower(strings.TrimSpace(*u.BudgetMode))
		if pref.BudgetMode == trip.BudgetLuxury {
			pref.TotalBudget = nil
		}
	}
	if u.TotalBudget != nil {
		b := *u.TotalBudget
		pref.TotalBudget = &b
	}
	setString(&pref.Pace, u.Pace)
	setList(&pref.Interests, u.Interests)
	pref.SpecialRequests = appendUnique(pref.SpecialRequests, u.SpecialRequests)

	if u.Notes != nil {
		notes := strings.TrimSpace(*u.Notes)
		existing := strings.TrimSpace(pref.Notes)
		switch {
		case notes == "":
		case existing != "" && !strings.Contains(existing, notes):
			pref.Notes = existing + " " + notes
		case existing == "":
			pref.Notes = notes
		}
	}

	setList(&pref.AccommodationPreferences, u.AccommodationPreferences)
	setString(&pref.RoomConfiguration, u.RoomConfiguration)
	setList(&pref.NeighborhoodPreferences, u.NeighborhoodPreferences)
	setList(&pref.NeighborhoodAvoid, u.NeighborhoodAvoid)
	setList(&pref.MobilityConstraints, u.MobilityConstraints)
	setList(&pref.DietaryRequirements, u.DietaryRequirements)
	setList(&pref.SensoryNeeds, u.SensoryNeeds)
	setList(&pref.MustDo, u.MustDo)
	setList(&pref.NiceToHave, u.NiceToHave)
	setList(&pref.TransportPreferences, u.TransportPreferences)
	if u.AirportPickupRequired != nil {
		v := *u.AirportPickupRequired
		pref.AirportPickupRequired = &v
	}
	if u.LuggageCount != nil {
		v := *u.LuggageCount
		pref.LuggageCount = &v
	}
	setString(&pref.DailyRhythm, u.DailyRhythm)
}

// UpdateTripPlan merges a partial update into the planner state. Once intake
// is complete the status moves from intake to planning.
func UpdateTripPlan(p trip.PlannerState, u TripUpdate) (trip.PlannerState, Result) {
	p = clonePlanner(p)
	mergeTripDetails(&p.TripDetails, u.TripDetails)
	mergeDemographics(&p, u.Demographics)
	mergePreferences(&p.Preferences, u.Preferences)

	if p.Status == trip.StatusIntake && trip.IsIntakeComplete(p) {
		p.Status = trip.StatusPlanning
	}
	res := success()
	res.Updated = len(p.Demographics.Travelers)
	return p, res
}

// MarkReadyForPlanning moves an intake session to planning once every
// required intake field is present.
func MarkReadyForPlanning(p trip.PlannerState) (trip.PlannerState, Result) {
	if p.Status != trip.StatusIntake {
		return p, skipped(ReasonNotInIntake)
	}
	if !trip.IsIntakeComplete(p) {
		return p, failed(ReasonIntakeIncomplete, "")
	}
	p.Status = trip.StatusPlanning
	return p, success()
}

// clonePlanner copies the slices the merge writes through so the caller's
// value is never mutated.
func clonePlanner(p trip.PlannerState) trip.PlannerState {
	p.Demographics.Travelers = append([]trip.Traveler(nil), p.Demographics.Travelers...)
	p.Demographics.Nationality = append([]string(nil), p.Demographics.Nationality...)
	p.Preferences.SpecialRequests = append([]string(nil), p.Preferences.SpecialRequests...)
	return p
}
