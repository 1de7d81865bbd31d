package planning

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yubzen/globetrip/internal/trip"
)

type kinded interface{ Kind() string }

// SplitChosen returns the first option whose type matches chosenType and the
// remaining options in their original order. Without a match the first option
// is chosen.
func SplitChosen[O kinded](options []O, chosenType string) (*O, []O) {
	var chosen *O
	others := make([]O, 0, len(options))
	for _, o := range options {
		if chosenType != "" && chosen == nil && o.Kind() == chosenType {
			c := o
			chosen = &c
			continue
		}
		others = append(others, o)
	}
	if chosen == nil && len(options) > 0 {
		c := options[0]
		return &c, append(make([]O, 0, len(options)-1), options[1:]...)
	}
	return chosen, others
}

// firstResults indexes results by task id. The first result for a task wins;
// task ids seen more than once are reported back.
func firstResults[R interface{ ID() string }](results []R) (map[string]R, []string) {
	out := make(map[string]R, len(results))
	var dups []string
	reported := map[string]bool{}
	for _, r := range results {
		if _, ok := out[r.ID()]; ok {
			if !reported[r.ID()] {
				dups = append(dups, r.ID())
				reported[r.ID()] = true
			}
			continue
		}
		out[r.ID()] = r
	}
	return out, dups
}

type hint struct {
	label string
	value string
}

func summaryLine(taskID, summary string, hints ...hint) string {
	var parts []string
	if s := strings.TrimSpace(summary); s != "" {
		parts = append(parts, s)
	}
	for _, h := range hints {
		if h.value != "" {
			parts = append(parts, h.label+": "+h.value)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "- Task " + taskID + ": " + strings.Join(parts, " ")
}

func containsIndex(indexes []int, idx int) bool {
	for _, i := range indexes {
		if i == idx {
			return true
		}
	}
	return false
}

// ApplyFlightResults rebuilds the overall summary and the per-traveler flight
// choices from the recorded results.
func ApplyFlightResults(p trip.PlannerState, f trip.FlightState) (trip.FlightState, Result) {
	if len(f.SearchResults) == 0 {
		return f, skipped(ReasonNoSearchResults)
	}

	var lines []string
	for _, r := range f.SearchResults {
		line := summaryLine(r.TaskID, r.Summary,
			hint{"Price hint", r.BestPriceHint},
			hint{"Time hint", r.BestTimeHint},
			hint{"Recommended", r.RecommendedOptionLabel},
		)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > 0 {
		f.OverallSummary = strings.Join(lines, "\n")
	}

	byTask, dups := firstResults(f.SearchResults)
	choices := []trip.TravelerFlightChoice{}
	for idx := range p.Demographics.Travelers {
		for _, task := range f.SearchTasks {
			if !containsIndex(task.TravelerIndexes, idx) {
				continue
			}
			r, ok := byTask[task.TaskID]
			if !ok {
				continue
			}
			chosen, others := SplitChosen(r.Options, r.ChosenOptionType)
			choices = append(choices, trip.TravelerFlightChoice{
				TravelerIndex:          idx,
				TaskID:                 task.TaskID,
				Summary:                r.Summary,
				BestPriceHint:          r.BestPriceHint,
				BestTimeHint:           r.BestTimeHint,
				CheapButLongHint:       r.CheapButLongHint,
				RecommendedOptionLabel: r.RecommendedOptionLabel,
				Notes:                  r.Notes,
				ChosenOptionType:       r.ChosenOptionType,
				SelectionReason:        r.SelectionReason,
				ChosenOption:           chosen,
				OtherOptions:           others,
			})
		}
	}
	f.TravelerFlights = choices

	res := success()
	res.Results = len(f.SearchResults)
	res.Updated = len(choices)
	res.Duplicates = dups
	return f, res
}

func overrideFor(overrides []trip.AccommodationOverride, taskID string, idx int) (trip.AccommodationOverride, bool) {
	var found trip.AccommodationOverride
	ok := false
	for _, o := range overrides {
		if o.TaskID == taskID && containsIndex(o.TravelerIndexes, idx) {
			found, ok = o, true
		}
	}
	return found, ok
}

// ApplyAccommodationResults mirrors ApplyFlightResults for stays. Traveler
// overrides replace the result's chosen option type for the travelers they
// name.
func ApplyAccommodationResults(p trip.PlannerState, a trip.AccommodationState) (trip.AccommodationState, Result) {
	if len(a.SearchResults) == 0 {
		return a, skipped(ReasonNoSearchResults)
	}

	var lines []string
	for _, r := range a.SearchResults {
		line := summaryLine(r.TaskID, r.Summary,
			hint{"Price hint", r.BestPriceHint},
			hint{"Location hint", r.BestLocationHint},
			hint{"Family hint", r.FamilyFriendlyHint},
			hint{"Neighborhood hint", r.NeighborhoodHint},
			hint{"Recommended", r.RecommendedOptionLabel},
		)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > 0 {
		a.OverallSummary = strings.Join(lines, "\n")
	}

	byTask, dups := firstResults(a.SearchResults)
	choices := []trip.TravelerAccommodationChoice{}
	for idx := range p.Demographics.Travelers {
		for _, task := range a.SearchTasks {
			if !containsIndex(task.TravelerIndexes, idx) {
				continue
			}
			r, ok := byTask[task.TaskID]
			if !ok {
				continue
			}
			chosenType, reason, notes := r.ChosenOptionType, r.SelectionReason, r.Notes
			if o, ok := overrideFor(a.TravelerOverrides, task.TaskID, idx); ok {
				chosenType = o.ChosenOptionType
				reason = "Chosen by traveler override."
				if o.Notes != "" {
					notes = o.Notes
				}
			}
			chosen, others := SplitChosen(r.Options, chosenType)
			choices = append(choices, trip.TravelerAccommodationChoice{
				TravelerIndex:          idx,
				TaskID:                 task.TaskID,
				Summary:                r.Summary,
				BestPriceHint:          r.BestPriceHint,
				BestLocationHint:       r.BestLocationHint,
				FamilyFriendlyHint:     r.FamilyFriendlyHint,
				NeighborhoodHint:       r.NeighborhoodHint,
				RecommendedOptionLabel: r.RecommendedOptionLabel,
				Notes:                  notes,
				ChosenOptionType:       chosenType,
				SelectionReason:        reason,
				ChosenOption:           chosen,
				OtherOptions:           others,
			})
		}
	}
	a.TravelerAccommodations = choices

	res := success()
	res.Results = len(a.SearchResults)
	res.Updated = len(choices)
	res.Duplicates = dups
	return a, res
}

// ApplyActivityResults refreshes the activity overall summary. The day plan is
// owned by itinerary synthesis.
func ApplyActivityResults(acts trip.ActivityState) (trip.ActivityState, Result) {
	if len(acts.SearchResults) == 0 {
		return acts, skipped(ReasonNoSearchResults)
	}
	var lines []string
	for _, r := range acts.SearchResults {
		line := summaryLine(r.TaskID, r.Summary,
			hint{"Budget hint", r.BudgetHint},
			hint{"Family hint", r.FamilyFriendlyHint},
			hint{"Neighborhood hint", r.NeighborhoodHint},
		)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > 0 {
		acts.OverallSummary = strings.Join(lines, "\n")
	}
	res := success()
	res.Results = len(acts.SearchResults)
	res.Updated = len(acts.DayPlan)
	return acts, res
}

const (
	minVisaLeadDays = 1
	maxVisaLeadDays = 120
)

var digitsRE = regexp.MustCompile(`\d+`)

// maxDayHint returns the largest integer mentioned in a processing hint.
func maxDayHint(hint string) (int, bool) {
	found := false
	best := 0
	for _, m := range digitsRE.FindAllString(hint, -1) {
		n, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		if !found || n > best {
			best = n
			found = true
		}
	}
	return best, found
}

func newBool(b bool) *bool { return &b }

// ApplyVisaResults mines each result's summary and notes for visa facts and
// folds them onto the requirements of the travelers its task covers. When any
// processing hint mentions a number, earliest_safe_departure_date is set to
// today plus the largest such number of days, clamped to [1, 120].
func ApplyVisaResults(v trip.VisaState, today time.Time) (trip.VisaState, Result) {
	if len(v.SearchResults) == 0 {
		return v, skipped(ReasonNoSearchResults)
	}

	tasks := make(map[string]trip.VisaSearchTask, len(v.SearchTasks))
	for _, t := range v.SearchTasks {
		tasks[t.TaskID] = t
	}
	reqs := append([]trip.VisaRequirement(nil), v.Requirements...)
	reqIndex := make(map[int]int, len(reqs))
	for i, r := range reqs {
		reqIndex[r.TravelerIndex] = i
	}

	updated := map[int]bool{}
	var dayHints []int

	for _, result := range v.SearchResults {
		task, ok := tasks[result.TaskID]
		if !ok {
			continue
		}

		var corpusParts []string
		if result.Summary != "" {
			corpusParts = append(corpusParts, strings.ToLower(result.Summary))
		}
		if result.Notes != "" {
			corpusParts = append(corpusParts, strings.ToLower(result.Notes))
		}
		corpus := strings.Join(corpusParts, " ")

		var chunks []string
		if s := strings.TrimSpace(result.Summary); s != "" {
			chunks = append(chunks, s)
		}
		if s := strings.TrimSpace(result.Notes); s != "" {
			chunks = append(chunks, s)
		}
		combined := strings.Join(chunks, "\n\n")

		if result.ProcessingTimeHint != "" {
			if n, ok := maxDayHint(result.ProcessingTimeHint); ok {
				dayHints = append(dayHints, n)
			}
		}

		for _, idx := range task.TravelerIndexes {
			pos, ok := reqIndex[idx]
			if !ok {
				reqs = append(reqs, trip.VisaRequirement{
					TravelerIndex: idx,
					Origin:        task.OriginCountry,
					Destination:   task.DestinationCountry,
					Nationality:   task.Nationality,
				})
				pos = len(reqs) - 1
				reqIndex[idx] = pos
			}
			req := &reqs[pos]

			switch {
			case strings.Contains(corpus, "no visa required") || strings.Contains(corpus, "do not require a visa"):
				req.NeedsVisa = newBool(false)
			case strings.Contains(corpus, "visa required") || strings.Contains(corpus, "require a visa"):
				if req.NeedsVisa == nil {
					req.NeedsVisa = newBool(true)
				}
			}

			switch {
			case strings.Contains(corpus, "standard visitor visa"):
				req.VisaType = "Standard Visitor Visa"
			case strings.Contains(corpus, "tourist visa"):
				req.VisaType = "Tourist Visa"
			case strings.Contains(corpus, "electronic travel authorization") || strings.Contains(corpus, " eta "):
				req.VisaType = "Electronic Travel Authorization (ETA)"
			}

			if result.ProcessingTimeHint != "" {
				req.ProcessingTime = result.ProcessingTimeHint
			}
			if result.FeeHint != "" {
				req.Cost = result.FeeHint
			}

			if combined != "" {
				existing := strings.TrimSpace(req.AdditionalNotes)
				switch {
				case existing == "":
					req.AdditionalNotes = combined
				case !strings.Contains(existing, combined):
					req.AdditionalNotes = existing + "\n\n" + combined
				}
			}
			updated[idx] = true
		}
	}
	v.Requirements = reqs

	if len(dayHints) > 0 {
		days := dayHints[0]
		for _, d := range dayHints[1:] {
			if d > days {
				days = d
			}
		}
		days = max(minVisaLeadDays, min(days, maxVisaLeadDays))
		v.EarliestSafeDepartureDate = formatDate(addDays(truncateDay(today), days))
	}

	res := success()
	res.Results = len(v.SearchResults)
	res.Updated = len(updated)
	return v, res
}
