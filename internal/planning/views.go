package planning

import "github.com/yubzen/globetrip/internal/trip"

type TravelerFlightTask struct {
	TaskID          string `json:"task_id"`
	Origin          string `json:"origin"`
	Destination     string `json:"destination"`
	TravelerIndexes []int  `json:"traveler_indexes"`
	DepartureDate   string `json:"departure_date"`
	ReturnDate      string `json:"return_date"`

	// Result is nil until a search result for the task has been recorded.
	Result *trip.TravelerFlightChoice `json:"result"`
}

type TravelerFlights struct {
	TravelerIndex int                  `json:"traveler_index"`
	Traveler      *trip.Traveler       `json:"traveler"`
	Tasks         []TravelerFlightTask `json:"tasks"`
}

// FlightsForTraveler joins the planner and flight state for one traveler,
// listing every task that covers them whether or not it has a result yet.
func FlightsForTraveler(p trip.PlannerState, f trip.FlightState, idx int) TravelerFlights {
	view := TravelerFlights{TravelerIndex: idx, Tasks: []TravelerFlightTask{}}
	if idx >= 0 && idx < len(p.Demographics.Travelers) {
		t := p.Demographics.Travelers[idx]
		view.Traveler = &t
	}

	byTask, _ := firstResults(f.SearchResults)
	for _, task := range f.SearchTasks {
		if !containsIndex(task.TravelerIndexes, idx) {
			continue
		}
		entry := TravelerFlightTask{
			TaskID:          task.TaskID,
			Origin:          task.OriginCity,
			Destination:     task.DestinationCity,
			TravelerIndexes: task.TravelerIndexes,
			DepartureDate:   task.DepartureDate(),
			ReturnDate:      task.ReturnDate(),
		}
		if r, ok := byTask[task.TaskID]; ok {
			chosen, others := SplitChosen(r.Options, r.ChosenOptionType)
			entry.Result = &trip.TravelerFlightChoice{
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
			}
		}
		view.Tasks = append(view.Tasks, entry)
	}
	return view
}
