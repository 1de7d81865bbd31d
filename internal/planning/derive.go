package planning

import (
	"fmt"
	"strings"
	"time"

	"github.com/yubzen/globetrip/internal/trip"
)

const (
	PurposeVisaLookup          = "visa_requirements_lookup"
	PurposeFlightLookup        = "flight_options_lookup"
	PurposeAccommodationLookup = "accommodation_options_lookup"
	PurposeActivityLookup      = "activity_options_lookup"
)

// groups keeps traveler indexes per key in first-seen key order.
type groups[K comparable] struct {
	keys    []K
	members map[K][]int
}

func newGroups[K comparable]() *groups[K] {
	return &groups[K]{members: make(map[K][]int)}
}

func (g *groups[K]) add(key K, idx int) {
	if _, ok := g.members[key]; !ok {
		g.keys = append(g.keys, key)
	}
	g.members[key] = append(g.members[key], idx)
}

func orUnknown(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// AssessVisaRequirements lays down one requirement skeleton per traveler,
// replacing any existing requirements.
func AssessVisaRequirements(p trip.PlannerState, v trip.VisaState) (trip.VisaState, Result) {
	destination := p.TripDetails.DestinationAirportCode
	if destination == "" {
		destination = p.TripDetails.Destination
	}
	travelers := p.Demographics.Travelers
	if destination == "" || len(travelers) == 0 {
		return v, skipped(ReasonMissingDestinationOrTravelers)
	}

	reqs := make([]trip.VisaRequirement, 0, len(travelers))
	for idx, t := range travelers {
		origin := t.Origin
		if origin == "" {
			origin = p.TripDetails.Origin
		}
		reqs = append(reqs, trip.VisaRequirement{
			TravelerIndex: idx,
			Origin:        origin,
			Destination:   destination,
			Nationality:   t.Nationality,
		})
	}
	v.Requirements = reqs

	res := success()
	res.Updated = len(reqs)
	return v, res
}

type visaKey struct {
	nationality string
	destination string
}

// DeriveVisaTasks groups travelers by (nationality, destination) and appends
// one task per group.
func DeriveVisaTasks(p trip.PlannerState, v trip.VisaState) (trip.VisaState, Result) {
	destination := p.TripDetails.Destination
	travelers := p.Demographics.Travelers
	if destination == "" || len(travelers) == 0 {
		return v, skipped(ReasonMissingDestinationOrTravelers)
	}

	g := newGroups[visaKey]()
	for idx, t := range travelers {
		g.add(visaKey{nationality: t.Nationality, destination: destination}, idx)
	}

	created := make([]trip.VisaSearchTask, 0, len(g.keys))
	for _, key := range g.keys {
		taskID := fmt.Sprintf("%s_%s_%d", orUnknown(key.nationality, "unknown"), key.destination, len(v.SearchTasks)+len(created))
		task := trip.VisaSearchTask{
			TaskID:             taskID,
			TravelerIndexes:    g.members[key],
			OriginCountry:      p.TripDetails.Origin,
			DestinationCountry: key.destination,
			Nationality:        key.nationality,
			TravelPurpose:      "tourism",
			Purpose:            PurposeVisaLookup,
		}
		task.Prompt = visaPrompt(task)
		created = append(created, task)
	}
	v.SearchTasks = append(v.SearchTasks, created...)

	res := success()
	res.Created = len(created)
	return v, res
}

func visaPrompt(t trip.VisaSearchTask) string {
	return fmt.Sprintf(
		"Visa requirements, documents, fees, and processing time for a %s traveler going from %s to %s for %s.",
		orUnknown(t.Nationality, "UNKNOWN NATIONALITY"),
		orUnknown(t.OriginCountry, "UNKNOWN ORIGIN"),
		orUnknown(t.DestinationCountry, "UNKNOWN DESTINATION"),
		orUnknown(t.TravelPurpose, "tourism"),
	)
}

// DateShift is the visa-aware travel window recommended for a trip.
type DateShift struct {
	Departure string
	Return    string
	Reason    string
}

const minShiftedTrip = 3 * 24 * time.Hour

// ShiftForVisa moves the departure to the earliest safe departure date when
// that date is later than the requested one. The return date then follows one
// of three rules: if the new departure lands on or after the requested return,
// the return becomes departure plus the original trip length, but never less
// than 3 days; otherwise flexible trips keep their length and fixed
// trips keep their return date.
func ShiftForVisa(departure, ret, safe string, flexible bool) DateShift {
	shift := DateShift{Departure: departure, Return: ret}

	dep, depOK := parseDate(departure)
	safeDep, safeOK := parseDate(safe)
	if !depOK || !safeOK || !safeDep.After(dep) {
		return shift
	}

	shift.Departure = formatDate(safeDep)
	shift.Reason = "Departure date adjusted to respect visa processing timelines; " +
		"earliest safe departure estimated as " + shift.Departure + "."

	retDate, retOK := parseDate(ret)
	if !retOK {
		return shift
	}

	tripLength := retDate.Sub(dep)
	switch {
	case !safeDep.Before(retDate):
		shift.Return = formatDate(safeDep.Add(max(tripLength, minShiftedTrip)))
	case flexible:
		shift.Return = formatDate(safeDep.Add(tripLength))
	}
	return shift
}

// CabinFor maps a budget mode onto a cabin class.
func CabinFor(budgetMode string) string {
	if budgetMode == trip.BudgetLuxury {
		return "business"
	}
	return "economy"
}

type flightKey struct {
	origin      string
	destination string
}

// DeriveFlightTasks groups travelers by (origin, destination airport) and
// appends one visa-aware task per group.
func DeriveFlightTasks(p trip.PlannerState, v trip.VisaState, f trip.FlightState) (trip.FlightState, Result) {
	td := p.TripDetails
	destination := td.DestinationAirportCode
	if destination == "" {
		return f, skipped(ReasonMissingDestinationAirportCode)
	}
	travelers := p.Demographics.Travelers
	if len(travelers) == 0 || td.StartDate == "" {
		return f, skipped(ReasonMissingDestinationTravelersDate)
	}

	originDefault := td.OriginAirportCode
	if originDefault == "" {
		originDefault = td.Origin
	}
	shift := ShiftForVisa(td.StartDate, td.EndDate, v.EarliestSafeDepartureDate, td.FlexibleDates)
	budgetMode := p.Preferences.BudgetMode
	cabin := CabinFor(budgetMode)

	g := newGroups[flightKey]()
	for idx, t := range travelers {
		origin := t.OriginAirportCode
		if origin == "" {
			origin = t.Origin
		}
		if origin == "" {
			origin = originDefault
		}
		g.add(flightKey{origin: origin, destination: destination}, idx)
	}

	created := make([]trip.FlightSearchTask, 0, len(g.keys))
	for _, key := range g.keys {
		indexes := g.members[key]
		task := trip.FlightSearchTask{
			TaskID:                   fmt.Sprintf("flight_%s_%s_%d", orUnknown(key.origin, "unknown"), key.destination, len(f.SearchTasks)+len(created)),
			TravelerIndexes:          indexes,
			OriginCity:               key.origin,
			DestinationCity:          key.destination,
			OriginalDepartureDate:    td.StartDate,
			OriginalReturnDate:       td.EndDate,
			RecommendedDepartureDate: shift.Departure,
			RecommendedReturnDate:    shift.Return,
			VisaTimelineReason:       shift.Reason,
			CabinPreference:          cabin,
			BudgetMode:               budgetMode,
			Purpose:                  PurposeFlightLookup,
		}
		task.Prompt = flightPrompt(task)
		created = append(created, task)
	}
	f.SearchTasks = append(f.SearchTasks, created...)

	res := success()
	res.Created = len(created)
	return f, res
}

func flightPrompt(t trip.FlightSearchTask) string {
	var b strings.Builder
	b.WriteString("Search for typical round-trip flight options for the following context:\n")
	fmt.Fprintf(&b, "- Origin: %s\n", orUnknown(t.OriginCity, "UNKNOWN ORIGIN"))
	fmt.Fprintf(&b, "- Destination: %s\n", orUnknown(t.DestinationCity, "UNKNOWN DESTINATION"))
	fmt.Fprintf(&b, "- Original departure date: %s\n", orUnknown(t.OriginalDepartureDate, "UNKNOWN"))
	fmt.Fprintf(&b, "- Original return date: %s\n", orUnknown(t.OriginalReturnDate, "UNKNOWN"))
	fmt.Fprintf(&b, "- Recommended departure date (visa-aware): %s\n", orUnknown(t.RecommendedDepartureDate, "UNKNOWN"))
	fmt.Fprintf(&b, "- Recommended return date: %s\n", orUnknown(t.RecommendedReturnDate, "UNKNOWN"))
	fmt.Fprintf(&b, "- Cabin preference: %s\n", orUnknown(t.CabinPreference, "unspecified"))
	fmt.Fprintf(&b, "- Budget mode: %s\n", orUnknown(t.BudgetMode, "unspecified"))
	fmt.Fprintf(&b, "- Travelers covered (indexes): %v\n\n", t.TravelerIndexes)
	b.WriteString("Identify:\n")
	b.WriteString("- The cheapest reasonable option (avoid extremely long or multi-day itineraries).\n")
	b.WriteString("- The fastest reasonable option.\n")
	b.WriteString("- A balanced option that trades off time and cost appropriately for the budget mode.\n")
	b.WriteString("For each, provide duration, number of stops, typical carriers, and approximate price range.")
	return b.String()
}

// StayWindow resolves the check-in and check-out dates for the trip. Chosen
// flights win: the earliest outbound arrival and the latest return departure.
// Task dates and then the requested trip dates fill whatever is still unknown.
func StayWindow(p trip.PlannerState, f trip.FlightState) (string, string) {
	var checkIn, checkOut time.Time

	for _, choice := range f.TravelerFlights {
		if choice.ChosenOption == nil {
			continue
		}
		if t, ok := parseTimestamp(choice.ChosenOption.OutboundArrivalTime); ok {
			day := truncateDay(t)
			if checkIn.IsZero() || day.Before(checkIn) {
				checkIn = day
			}
		}
		if t, ok := parseTimestamp(choice.ChosenOption.ReturnDepartureTime); ok {
			day := truncateDay(t)
			if day.After(checkOut) {
				checkOut = day
			}
		}
	}

	var taskIn, taskOut time.Time
	for _, task := range f.SearchTasks {
		if d, ok := parseDate(task.DepartureDate()); ok && (taskIn.IsZero() || d.Before(taskIn)) {
			taskIn = d
		}
		if d, ok := parseDate(task.ReturnDate()); ok && d.After(taskOut) {
			taskOut = d
		}
	}
	if checkIn.IsZero() {
		checkIn = taskIn
	}
	if checkOut.IsZero() {
		checkOut = taskOut
	}

	if checkIn.IsZero() {
		if d, ok := parseDate(p.TripDetails.StartDate); ok {
			checkIn = d
		}
	}
	if checkOut.IsZero() {
		if d, ok := parseDate(p.TripDetails.EndDate); ok {
			checkOut = d
		}
	}

	var in, out string
	if !checkIn.IsZero() {
		in = formatDate(checkIn)
	}
	if !checkOut.IsZero() {
		out = formatDate(checkOut)
	}
	return in, out
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// partyCounts splits the party into adults (seniors included) and children.
func partyCounts(p trip.PlannerState) (int, int) {
	travelers := p.Demographics.Travelers
	if len(travelers) == 0 {
		return p.Demographics.Adults + p.Demographics.Seniors, p.Demographics.Children
	}
	adults, children := 0, 0
	for _, t := range travelers {
		if t.Role == trip.RoleChild {
			children++
		} else {
			adults++
		}
	}
	return adults, children
}

func allTravelerIndexes(p trip.PlannerState) []int {
	out := make([]int, len(p.Demographics.Travelers))
	for i := range out {
		out[i] = i
	}
	return out
}

var rentalMarkers = []string{"apartment", "vacation rental", "vacation_rental", "airbnb", "villa", "home", "penthouse"}

// PreferredStayTypes maps free-text accommodation preferences onto stay types.
func PreferredStayTypes(prefs []string) []string {
	var hotel, rental bool
	for _, raw := range prefs {
		pref := strings.ToLower(raw)
		for _, marker := range rentalMarkers {
			if strings.Contains(pref, marker) {
				rental = true
			}
		}
		if strings.Contains(pref, "hotel") || strings.Contains(pref, "resort") {
			hotel = true
		}
	}
	switch {
	case rental && hotel:
		return []string{"hotel", "vacation_rental"}
	case rental:
		return []string{"vacation_rental"}
	default:
		return []string{"hotel"}
	}
}

// DeriveAccommodationTasks appends a single stay task covering every traveler.
func DeriveAccommodationTasks(p trip.PlannerState, f trip.FlightState, a trip.AccommodationState) (trip.AccommodationState, Result) {
	location := p.TripDetails.Destination
	checkIn, checkOut := StayWindow(p, f)
	if location == "" || checkIn == "" || checkOut == "" || len(p.Demographics.Travelers) == 0 {
		return a, skipped(ReasonMissingDestinationOrDates)
	}

	adults, children := partyCounts(p)
	prefs := p.Preferences
	special := append([]string(nil), prefs.SpecialRequests...)
	special = append(special, prefs.MobilityConstraints...)

	task := trip.AccommodationSearchTask{
		TaskID:                  fmt.Sprintf("stay_%s_%d", location, len(a.SearchTasks)),
		TravelerIndexes:         allTravelerIndexes(p),
		Location:                location,
		CheckInDate:             checkIn,
		CheckOutDate:            checkOut,
		BudgetMode:              prefs.BudgetMode,
		PreferredTypes:          PreferredStayTypes(prefs.AccommodationPreferences),
		NeighborhoodPreferences: prefs.NeighborhoodPreferences,
		NeighborhoodAvoid:       prefs.NeighborhoodAvoid,
		RoomConfiguration:       prefs.RoomConfiguration,
		SpecialRequirements:     special,
		Adults:                  adults,
		Children:                children,
		Purpose:                 PurposeAccommodationLookup,
	}
	task.Prompt = fmt.Sprintf(
		"Find accommodation in %s from %s to %s for %d adult(s) and %d child(ren). Budget mode: %s. Preferred stay types: %s.",
		task.Location, task.CheckInDate, task.CheckOutDate, task.Adults, task.Children,
		orUnknown(task.BudgetMode, "unspecified"), strings.Join(task.PreferredTypes, ", "),
	)
	a.SearchTasks = append(a.SearchTasks, task)

	res := success()
	res.Created = 1
	return a, res
}

// DeriveActivityTasks appends a single activity task for the stay window,
// merging trip-level and per-traveler interests.
func DeriveActivityTasks(p trip.PlannerState, f trip.FlightState, acts trip.ActivityState) (trip.ActivityState, Result) {
	location := p.TripDetails.Destination
	start, end := StayWindow(p, f)
	if location == "" || start == "" || end == "" || len(p.Demographics.Travelers) == 0 {
		return acts, skipped(ReasonMissingDestinationOrDates)
	}

	var interests []string
	seen := map[string]bool{}
	addInterest := func(items []string) {
		for _, it := range items {
			key := strings.ToLower(strings.TrimSpace(it))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			interests = append(interests, strings.TrimSpace(it))
		}
	}
	addInterest(p.Preferences.Interests)
	for _, t := range p.Demographics.Travelers {
		addInterest(t.Interests)
	}

	task := trip.ActivitySearchTask{
		TaskID:          fmt.Sprintf("activities_%s_%d", location, len(acts.SearchTasks)),
		TravelerIndexes: allTravelerIndexes(p),
		Location:        location,
		DateStart:       start,
		DateEnd:         end,
		Interests:       interests,
		MustDo:          p.Preferences.MustDo,
		NiceToHave:      p.Preferences.NiceToHave,
		BudgetMode:      p.Preferences.BudgetMode,
		Purpose:         PurposeActivityLookup,
	}
	task.Prompt = fmt.Sprintf(
		"Activities and attractions in %s between %s and %s matching interests: %s.",
		location, start, end, orUnknown(strings.Join(interests, ", "), "general sightseeing"),
	)
	acts.SearchTasks = append(acts.SearchTasks, task)

	res := success()
	res.Created = 1
	return acts, res
}
