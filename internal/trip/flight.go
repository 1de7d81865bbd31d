package trip

const (
	FlightCheapest = "cheapest"
	FlightFastest  = "fastest"
	FlightBalanced = "balanced"
)

type FlightLeg struct {
	Airline          string `json:"airline,omitempty"`
	FlightNumber     string `json:"flight_number,omitempty"`
	DepartureAirport string `json:"departure_airport,omitempty"`
	DepartureTime    string `json:"departure_time,omitempty"`
	ArrivalAirport   string `json:"arrival_airport,omitempty"`
	ArrivalTime      string `json:"arrival_time,omitempty"`
	DurationMinutes  *int   `json:"duration_minutes,omitempty"`
}

type FlightOption struct {
	OptionType          string      `json:"option_type"`
	Airlines            []string    `json:"airlines,omitempty"`
	Currency            string      `json:"currency,omitempty"`
	PricePerTicketLow   *float64    `json:"price_per_ticket_low,omitempty"`
	PricePerTicketHigh  *float64    `json:"price_per_ticket_high,omitempty"`
	TotalPriceLow       *float64    `json:"total_price_low,omitempty"`
	TotalPriceHigh      *float64    `json:"total_price_high,omitempty"`
	DurationMinutes     *int        `json:"duration_minutes,omitempty"`
	Stops               *int        `json:"stops,omitempty"`
	Legs                []FlightLeg `json:"legs,omitempty"`
	OutboundArrivalTime string      `json:"outbound_arrival_time,omitempty"`
	ReturnDepartureTime string      `json:"return_departure_time,omitempty"`
	Source              string      `json:"source,omitempty"`
	BookingURL          string      `json:"booking_url,omitempty"`
	Notes               string      `json:"notes,omitempty"`
}

func (o FlightOption) Kind() string { return o.OptionType }

type FlightSearchTask struct {
	TaskID                   string `json:"task_id"`
	TravelerIndexes          []int  `json:"traveler_indexes"`
	OriginCity               string `json:"origin_city,omitempty"`
	DestinationCity          string `json:"destination_city,omitempty"`
	OriginalDepartureDate    string `json:"original_departure_date,omitempty"`
	OriginalReturnDate       string `json:"original_return_date,omitempty"`
	RecommendedDepartureDate string `json:"recommended_departure_date,omitempty"`
	RecommendedReturnDate    string `json:"recommended_return_date,omitempty"`
	VisaTimelineReason       string `json:"visa_timeline_reason,omitempty"`
	CabinPreference          string `json:"cabin_preference,omitempty"`
	BudgetMode               string `json:"budget_mode,omitempty"`
	FlexibilityHint          string `json:"flexibility_hint,omitempty"`
	Prompt                   string `json:"prompt,omitempty"`
	Purpose                  string `json:"purpose,omitempty"`
}

func (t FlightSearchTask) ID() string       { return t.TaskID }
func (t FlightSearchTask) Travelers() []int { return t.TravelerIndexes }

func (t FlightSearchTask) DepartureDate() string {
	if t.RecommendedDepartureDate != "" {
		return t.RecommendedDepartureDate
	}
	return t.OriginalDepartureDate
}

func (t FlightSearchTask) ReturnDate() string {
	if t.RecommendedReturnDate != "" {
		return t.RecommendedReturnDate
	}
	return t.OriginalReturnDate
}

type FlightSearchResult struct {
	TaskID                 string         `json:"task_id"`
	Query                  string         `json:"query,omitempty"`
	Options                []FlightOption `json:"options"`
	Summary                string         `json:"summary,omitempty"`
	BestPriceHint          string         `json:"best_price_hint,omitempty"`
	BestTimeHint           string         `json:"best_time_hint,omitempty"`
	CheapButLongHint       string         `json:"cheap_but_long_hint,omitempty"`
	RecommendedOptionLabel string         `json:"recommended_option_label,omitempty"`
	Notes                  string         `json:"notes,omitempty"`
	ChosenOptionType       string         `json:"chosen_option_type,omitempty"`
	SelectionReason        string         `json:"selection_reason,omitempty"`
}

func (r FlightSearchResult) ID() string { return r.TaskID }

type TravelerFlightChoice struct {
	TravelerIndex          int            `json:"traveler_index"`
	TaskID                 string         `json:"task_id"`
	Summary                string         `json:"summary,omitempty"`
	BestPriceHint          string         `json:"best_price_hint,omitempty"`
	BestTimeHint           string         `json:"best_time_hint,omitempty"`
	CheapButLongHint       string         `json:"cheap_but_long_hint,omitempty"`
	RecommendedOptionLabel string         `json:"recommended_option_label,omitempty"`
	Notes                  string         `json:"notes,omitempty"`
	ChosenOptionType       string         `json:"chosen_option_type,omitempty"`
	SelectionReason        string         `json:"selection_reason,omitempty"`
	ChosenOption           *FlightOption  `json:"chosen_option,omitempty"`
	OtherOptions           []FlightOption `json:"other_options"`
}

type FlightState struct {
	SearchTasks     []FlightSearchTask     `json:"search_tasks"`
	SearchResults   []FlightSearchResult   `json:"search_results"`
	OverallSummary  string                 `json:"overall_summary,omitempty"`
	TravelerFlights []TravelerFlightChoice `json:"traveler_flights"`
}

func (f FlightState) Task(taskID string) (FlightSearchTask, bool) {
	for _, t := range f.SearchTasks {
		if t.TaskID == taskID {
			return t, true
		}
	}
	return FlightSearchTask{}, false
}
