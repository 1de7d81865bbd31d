package planning

import (
	"encoding/json"
	"strings"

	"github.com/yubzen/globetrip/internal/trip"
)

// VisaFindings is what a visa search agent reports for one task.
type VisaFindings struct {
	TaskID             string   `json:"task_id"`
	Summary            string   `json:"summary"`
	ProcessingTimeHint string   `json:"processing_time_hint,omitempty"`
	FeeHint            string   `json:"fee_hint,omitempty"`
	Notes              string   `json:"notes,omitempty"`
	Sources            []string `json:"sources,omitempty"`
}

type FlightFindings struct {
	TaskID                 string            `json:"task_id"`
	Summary                string            `json:"summary"`
	Options                []json.RawMessage `json:"options,omitempty"`
	BestPriceHint          string            `json:"best_price_hint,omitempty"`
	BestTimeHint           string            `json:"best_time_hint,omitempty"`
	CheapButLongHint       string            `json:"cheap_but_long_hint,omitempty"`
	RecommendedOptionLabel string            `json:"recommended_option_label,omitempty"`
	Notes                  string            `json:"notes,omitempty"`
	ChosenOptionType       string            `json:"chosen_option_type,omitempty"`
	SelectionReason        string            `json:"selection_reason,omitempty"`
}

type AccommodationFindings struct {
	TaskID                 string            `json:"task_id"`
	Summary                string            `json:"summary"`
	Options                []json.RawMessage `json:"options,omitempty"`
	BestPriceHint          string            `json:"best_price_hint,omitempty"`
	BestLocationHint       string            `json:"best_location_hint,omitempty"`
	FamilyFriendlyHint     string            `json:"family_friendly_hint,omitempty"`
	NeighborhoodHint       string            `json:"neighborhood_hint,omitempty"`
	RecommendedOptionLabel string            `json:"recommended_option_label,omitempty"`
	Notes                  string            `json:"notes,omitempty"`
	ChosenOptionType       string            `json:"chosen_option_type,omitempty"`
	SelectionReason        string            `json:"selection_reason,omitempty"`
}

type ActivityFindings struct {
	TaskID             string            `json:"task_id"`
	Summary            string            `json:"summary"`
	Options            []json.RawMessage `json:"options,omitempty"`
	BudgetHint         string            `json:"budget_hint,omitempty"`
	FamilyFriendlyHint string            `json:"family_friendly_hint,omitempty"`
	NeighborhoodHint   string            `json:"neighborhood_hint,omitempty"`
	Query              string            `json:"query,omitempty"`
}

// decodeOptions parses each option independently and drops the ones that do
// not decode or fail keep.
func decodeOptions[O any](raw []json.RawMessage, keep func(*O) bool) ([]O, int) {
	out := make([]O, 0, len(raw))
	dropped := 0
	for _, r := range raw {
		var opt O
		if err := json.Unmarshal(r, &opt); err != nil || !keep(&opt) {
			dropped++
			continue
		}
		out = append(out, opt)
	}
	return out, dropped
}

func validFlightOption(o *trip.FlightOption) bool {
	switch o.OptionType {
	case trip.FlightCheapest, trip.FlightFastest, trip.FlightBalanced:
		return true
	}
	return false
}

var stayTypes = map[string]bool{
	"hotel": true, "vacation_rental": true, "bnb": true, "hostel": true, "apartment": true, "other": true,
}

func validStayOption(o *trip.AccommodationOption) bool {
	if !trip.IsStayOptionType(o.OptionType) {
		return false
	}
	if o.StayType == "" {
		o.StayType = "other"
	}
	return stayTypes[o.StayType]
}

func validActivityOption(o *trip.ActivityOption) bool {
	return strings.TrimSpace(o.Name) != ""
}

func ParseFlightOptions(raw []json.RawMessage) ([]trip.FlightOption, int) {
	return decodeOptions(raw, validFlightOption)
}

func ParseStayOptions(raw []json.RawMessage) ([]trip.AccommodationOption, int) {
	return decodeOptions(raw, validStayOption)
}

func ParseActivityOptions(raw []json.RawMessage) ([]trip.ActivityOption, int) {
	return decodeOptions(raw, validActivityOption)
}

// RecordVisaResult appends a result for a known task. Unknown task ids are
// rejected and leave the state untouched.
func RecordVisaResult(v trip.VisaState, in VisaFindings) (trip.VisaState, Result) {
	task, ok := v.Task(in.TaskID)
	if !ok {
		return v, failed(ReasonUnknownTaskID, in.TaskID)
	}
	v.SearchResults = append(v.SearchResults, trip.VisaSearchResult{
		TaskID:             in.TaskID,
		Query:              task.Prompt,
		Jurisdiction:       task.DestinationCountry,
		Summary:            in.Summary,
		Sources:            in.Sources,
		ProcessingTimeHint: in.ProcessingTimeHint,
		FeeHint:            in.FeeHint,
		Notes:              in.Notes,
	})
	res := success()
	res.TaskID = in.TaskID
	res.Results = len(v.SearchResults)
	return v, res
}

func RecordFlightResult(f trip.FlightState, in FlightFindings) (trip.FlightState, Result) {
	task, ok := f.Task(in.TaskID)
	if !ok {
		return f, failed(ReasonUnknownTaskID, in.TaskID)
	}
	options, dropped := ParseFlightOptions(in.Options)
	chosen := in.ChosenOptionType
	if chosen != "" && !validFlightOption(&trip.FlightOption{OptionType: chosen}) {
		chosen = ""
	}
	f.SearchResults = append(f.SearchResults, trip.FlightSearchResult{
		TaskID:                 in.TaskID,
		Query:                  task.Prompt,
		Options:                options,
		Summary:                in.Summary,
		BestPriceHint:          in.BestPriceHint,
		BestTimeHint:           in.BestTimeHint,
		CheapButLongHint:       in.CheapButLongHint,
		RecommendedOptionLabel: in.RecommendedOptionLabel,
		Notes:                  in.Notes,
		ChosenOptionType:       chosen,
		SelectionReason:        in.SelectionReason,
	})
	res := success()
	res.TaskID = in.TaskID
	res.Results = len(f.SearchResults)
	res.Dropped = dropped
	return f, res
}

func RecordAccommodationResult(a trip.AccommodationState, in AccommodationFindings) (trip.AccommodationState, Result) {
	task, ok := a.Task(in.TaskID)
	if !ok {
		return a, failed(ReasonUnknownTaskID, in.TaskID)
	}
	options, dropped := ParseStayOptions(in.Options)
	chosen := in.ChosenOptionType
	if !trip.IsStayOptionType(chosen) {
		chosen = ""
	}
	a.SearchResults = append(a.SearchResults, trip.AccommodationSearchResult{
		TaskID:                 in.TaskID,
		Query:                  task.Prompt,
		Options:                options,
		Summary:                in.Summary,
		BestPriceHint:          in.BestPriceHint,
		BestLocationHint:       in.BestLocationHint,
		FamilyFriendlyHint:     in.FamilyFriendlyHint,
		NeighborhoodHint:       in.NeighborhoodHint,
		RecommendedOptionLabel: in.RecommendedOptionLabel,
		Notes:                  in.Notes,
		ChosenOptionType:       chosen,
		SelectionReason:        in.SelectionReason,
	})
	res := success()
	res.TaskID = in.TaskID
	res.Results = len(a.SearchResults)
	res.Dropped = dropped
	return a, res
}

func RecordActivityResult(acts trip.ActivityState, in ActivityFindings) (trip.ActivityState, Result) {
	task, ok := acts.Task(in.TaskID)
	if !ok {
		return acts, failed(ReasonUnknownTaskID, in.TaskID)
	}
	options, dropped := ParseActivityOptions(in.Options)
	query := in.Query
	if query == "" {
		query = task.Prompt
	}
	acts.SearchResults = append(acts.SearchResults, trip.ActivitySearchResult{
		TaskID:             in.TaskID,
		Query:              query,
		Options:            options,
		Summary:            in.Summary,
		BudgetHint:         in.BudgetHint,
		FamilyFriendlyHint: in.FamilyFriendlyHint,
		NeighborhoodHint:   in.NeighborhoodHint,
	})
	res := success()
	res.TaskID = in.TaskID
	res.Results = len(acts.SearchResults)
	res.Dropped = dropped
	return acts, res
}

// RecordTravelerAccommodationChoice pins a chosen option type for a subset of
// the travelers on one task. A later pin for the same task and traveler wins.
func RecordTravelerAccommodationChoice(a trip.AccommodationState, o trip.AccommodationOverride) (trip.AccommodationState, Result) {
	if _, ok := a.Task(o.TaskID); !ok {
		return a, failed(ReasonUnknownTaskID, o.TaskID)
	}
	if !trip.IsStayOptionType(o.ChosenOptionType) {
		return a, failed(ReasonInvalidOptionType, o.TaskID)
	}
	a.TravelerOverrides = append(append([]trip.AccommodationOverride(nil), a.TravelerOverrides...), o)
	res := success()
	res.TaskID = o.TaskID
	res.Updated = len(o.TravelerIndexes)
	return a, res
}

// ResultTaskIDs returns the set of task ids that already carry a result.
func ResultTaskIDs[R interface{ ID() string }](results []R) map[string]bool {
	out := make(map[string]bool, len(results))
	for _, r := range results {
		out[r.ID()] = true
	}
	return out
}

// PendingTasks returns the tasks that have no recorded result yet, in order.
func PendingTasks[T interface{ ID() string }, R interface{ ID() string }](tasks []T, results []R) []T {
	done := ResultTaskIDs(results)
	var out []T
	for _, t := range tasks {
		if !done[t.ID()] {
			out = append(out, t)
		}
	}
	return out
}
