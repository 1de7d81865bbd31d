package planning

import (
	"fmt"

	"github.com/yubzen/globetrip/internal/trip"
)

// StubFlightResult stands in for a result the summarization step never
// recorded. It carries the canonical options so apply still has something to
// join against.
func StubFlightResult(task trip.FlightSearchTask, canonical []trip.FlightOption) trip.FlightSearchResult {
	r := trip.FlightSearchResult{
		TaskID:  task.TaskID,
		Query:   task.Prompt,
		Options: canonical,
		Summary: fmt.Sprintf("Fallback flight options for %s to %s built directly from provider data; no summary was recorded.",
			orUnknown(task.OriginCity, "unknown origin"), orUnknown(task.DestinationCity, "unknown destination")),
	}
	if len(canonical) > 0 {
		r.ChosenOptionType = trip.FlightBalanced
		r.SelectionReason = "Defaulted to the balanced option because no summary was recorded."
	}
	return r
}

func StubStayResult(task trip.AccommodationSearchTask, canonical []trip.AccommodationOption) trip.AccommodationSearchResult {
	r := trip.AccommodationSearchResult{
		TaskID:  task.TaskID,
		Query:   task.Prompt,
		Options: canonical,
		Summary: fmt.Sprintf("Fallback accommodation options in %s built directly from provider data; no summary was recorded.",
			orUnknown(task.Location, "the destination")),
	}
	if len(canonical) > 0 {
		r.ChosenOptionType = trip.StayBalanced
		r.SelectionReason = "Defaulted to the balanced option because no summary was recorded."
	}
	return r
}
