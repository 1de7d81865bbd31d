package trip

type VisaRequirement struct {
	TravelerIndex           int      `json:"traveler_index"`
	Origin                  string   `json:"origin,omitempty"`
	Destination             string   `json:"destination,omitempty"`
	Nationality             string   `json:"nationality,omitempty"`
	NeedsVisa               *bool    `json:"needs_visa,omitempty"`
	VisaType                string   `json:"visa_type,omitempty"`
	ProcessingTime          string   `json:"processing_time,omitempty"`
	Cost                    string   `json:"cost,omitempty"`
	Validity                string   `json:"validity,omitempty"`
	EntryConditions         []string `json:"entry_conditions,omitempty"`
	DocumentsRequired       []string `json:"documents_required,omitempty"`
	WhereToApply            string   `json:"where_to_apply,omitempty"`
	AppointmentRequirements string   `json:"appointment_requirements,omitempty"`
	AdditionalNotes         string   `json:"additional_notes,omitempty"`
}

type VisaSearchTask struct {
	TaskID             string `json:"task_id"`
	TravelerIndexes    []int  `json:"traveler_indexes"`
	OriginCountry      string `json:"origin_country,omitempty"`
	DestinationCountry string `json:"destination_country,omitempty"`
	Nationality        string `json:"nationality,omitempty"`
	TravelPurpose      string `json:"travel_purpose,omitempty"`
	Prompt             string `json:"prompt,omitempty"`
	Purpose            string `json:"purpose,omitempty"`
}

func (t VisaSearchTask) ID() string       { return t.TaskID }
func (t VisaSearchTask) Travelers() []int { return t.TravelerIndexes }

type VisaSearchResult struct {
	TaskID             string   `json:"task_id"`
	Query              string   `json:"query,omitempty"`
	Jurisdiction       string   `json:"jurisdiction,omitempty"`
	Summary            string   `json:"summary,omitempty"`
	Sources            []string `json:"sources,omitempty"`
	ProcessingTimeHint string   `json:"processing_time_hint,omitempty"`
	FeeHint            string   `json:"fee_hint,omitempty"`
	Notes              string   `json:"notes,omitempty"`
}

func (r VisaSearchResult) ID() string { return r.TaskID }

type VisaState struct {
	Requirements              []VisaRequirement  `json:"requirements"`
	OverallSummary            string             `json:"overall_summary,omitempty"`
	SearchTasks               []VisaSearchTask   `json:"search_tasks"`
	SearchResults             []VisaSearchResult `json:"search_results"`
	EarliestSafeDepartureDate string             `json:"earliest_safe_departure_date,omitempty"`
}

func (v VisaState) Task(taskID string) (VisaSearchTask, bool) {
	for _, t := range v.SearchTasks {
		if t.TaskID == taskID {
			return t, true
		}
	}
	return VisaSearchTask{}, false
}
