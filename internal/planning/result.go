// Package planning holds the deterministic half of trip planning: task
// derivation, result recording, canonicalization, reconciliation of results
// into per-traveler choices, itinerary filtering and cost aggregation.
//
// Functions here take and return typed domain state by value and never
// perform I/O. Expected outcomes (a skipped derivation, an unknown task id)
// are reported through Result rather than Go errors.
package planning

type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

const (
	ReasonMissingDestinationOrTravelers   = "missing_destination_or_travelers"
	ReasonMissingDestinationAirportCode   = "missing_destination_airport_code"
	ReasonMissingDestinationTravelersDate = "missing_destination_travelers_or_start_date"
	ReasonMissingDestinationOrDates       = "missing_destination_or_dates"
	ReasonUnknownTaskID                   = "unknown_task_id"
	ReasonInvalidOptionType               = "invalid_option_type"
	ReasonNoSearchResults                 = "no_search_results"
	ReasonNotInIntake                     = "not_in_intake"
	ReasonIntakeIncomplete                = "intake_incomplete"
)

// Result is the status-tagged outcome of a planning operation. It doubles as
// the JSON response handed back to agents for tool calls.
type Result struct {
	Status  Status `json:"status"`
	Reason  string `json:"reason,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
	Created int    `json:"num_tasks_created,omitempty"`
	Results int    `json:"num_results,omitempty"`
	Updated int    `json:"num_updated,omitempty"`
	Dropped int    `json:"num_dropped_options,omitempty"`
	// Duplicates lists task ids that carry more than one search result.
	Duplicates []string `json:"duplicate_task_ids,omitempty"`
}

func success() Result { return Result{Status: StatusSuccess} }

func skipped(reason string) Result { return Result{Status: StatusSkipped, Reason: reason} }

func failed(reason, taskID string) Result {
	return Result{Status: StatusError, Reason: reason, TaskID: taskID}
}

func (r Result) OK() bool { return r.Status == StatusSuccess }
