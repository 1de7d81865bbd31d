package trip

const (
	StayCheapest       = "cheapest"
	StayBestLocation   = "best_location"
	StayFamilyFriendly = "family_friendly"
	StayBalanced       = "balanced"
	StayLuxury         = "luxury"
)

func IsStayOptionType(s string) bool {
	switch s {
	case StayCheapest, StayBestLocation, StayFamilyFriendly, StayBalanced, StayLuxury:
		return true
	}
	return false
}

type AccommodationOption struct {
	OptionType         string   `json:"option_type"`
	StayType           string   `json:"stay_type,omitempty"`
	Provider           string   `json:"provider,omitempty"`
	Name               string   `json:"name,omitempty"`
	Description        string   `json:"description,omitempty"`
	LocationLabel      string   `json:"location_label,omitempty"`
	Neighborhood       string   `json:"neighborhood,omitempty"`
	City               string   `json:"city,omitempty"`
	Country            string   `json:"country,omitempty"`
	Currency           string   `json:"currency,omitempty"`
	NightlyPriceLow    *float64 `json:"nightly_price_low,omitempty"`
	NightlyPriceHigh   *float64 `json:"nightly_price_high,omitempty"`
	TotalPriceLow      *float64 `json:"total_price_low,omitempty"`
	TotalPriceHigh     *float64 `json:"total_price_high,omitempty"`
	Rating             *float64 `json:"rating,omitempty"`
	RatingCount        *int     `json:"rating_count,omitempty"`
	MaxGuests          *int     `json:"max_guests,omitempty"`
	Bedrooms           *int     `json:"bedrooms,omitempty"`
	Beds               *int     `json:"beds,omitempty"`
	Bathrooms          *float64 `json:"bathrooms,omitempty"`
	Amenities          []string `json:"amenities,omitempty"`
	CancellationPolicy string   `json:"cancellation_policy,omitempty"`
	URL                string   `json:"url,omitempty"`
	Notes              string   `json:"notes,omitempty"`
}

func (o AccommodationOption) Kind() string { return o.OptionType }

type AccommodationSearchTask struct {
	TaskID                  string   `json:"task_id"`
	TravelerIndexes         []int    `json:"traveler_indexes"`
	Location                string   `json:"location,omitempty"`
	CheckInDate             string   `json:"check_in_date,omitempty"`
	CheckOutDate            string   `json:"check_out_date,omitempty"`
	BudgetMode              string   `json:"budget_mode,omitempty"`
	PreferredTypes          []string `json:"preferred_types,omitempty"`
	NeighborhoodPreferences []string `json:"neighborhood_preferences,omitempty"`
	NeighborhoodAvoid       []string `json:"neighborhood_avoid,omitempty"`
	RoomConfiguration       string   `json:"room_configuration,omitempty"`
	SpecialRequirements     []string `json:"special_requirements,omitempty"`
	Adults                  int      `json:"adults"`
	Children                int      `json:"children"`
	Prompt                  string   `json:"prompt,omitempty"`
	Purpose                 string   `json:"purpose,omitempty"`
}

func (t AccommodationSearchTask) ID() string       { return t.TaskID }
func (t AccommodationSearchTask) Travelers() []int { return t.TravelerIndexes }

// PartySize is the guest count used for capacity filtering.
func (t AccommodationSearchTask) PartySize() int {
	return t.Adults + t.Children
}

type AccommodationSearchResult struct {
	TaskID                 string                `json:"task_id"`
	Query                  string                `json:"query,omitempty"`
	Options                []AccommodationOption `json:"options"`
	Summary                string                `json:"summary,omitempty"`
	BestPriceHint          string                `json:"best_price_hint,omitempty"`
	BestLocationHint       string                `json:"best_location_hint,omitempty"`
	FamilyFriendlyHint     string                `json:"family_friendly_hint,omitempty"`
	NeighborhoodHint       string                `json:"neighborhood_hint,omitempty"`
	RecommendedOptionLabel string                `json:"recommended_option_label,omitempty"`
	Notes                  string                `json:"notes,omitempty"`
	ChosenOptionType       string                `json:"chosen_option_type,omitempty"`
	SelectionReason        string                `json:"selection_reason,omitempty"`
}

func (r AccommodationSearchResult) ID() string { return r.TaskID }

type TravelerAccommodationChoice struct {
	TravelerIndex          int                   `json:"traveler_index"`
	TaskID                 string                `json:"task_id"`
	Summary                string                `json:"summary,omitempty"`
	BestPriceHint          string                `json:"best_price_hint,omitempty"`
	BestLocationHint       string                `json:"best_location_hint,omitempty"`
	FamilyFriendlyHint     string                `json:"family_friendly_hint,omitempty"`
	NeighborhoodHint       string                `json:"neighborhood_hint,omitempty"`
	RecommendedOptionLabel string                `json:"recommended_option_label,omitempty"`
	Notes                  string                `json:"notes,omitempty"`
	ChosenOptionType       string                `json:"chosen_option_type,omitempty"`
	SelectionReason        string                `json:"selection_reason,omitempty"`
	ChosenOption           *AccommodationOption  `json:"chosen_option,omitempty"`
	OtherOptions           []AccommodationOption `json:"other_options"`
}

type AccommodationState struct {
	SearchTasks            []AccommodationSearchTask     `json:"search_tasks"`
	SearchResults          []AccommodationSearchResult   `json:"search_results"`
	OverallSummary         string                        `json:"overall_summary,omitempty"`
	TravelerAccommodations []TravelerAccommodationChoice `json:"traveler_accommodations"`
	// TravelerOverrides pins a chosen option type for specific travelers on a
	// task, taking precedence over the result's chosen_option_type.
	TravelerOverrides []AccommodationOverride `json:"traveler_overrides,omitempty"`
}

type AccommodationOverride struct {
	TaskID           string `json:"task_id"`
	TravelerIndexes  []int  `json:"traveler_indexes"`
	ChosenOptionType string `json:"chosen_option_type"`
	Notes            string `json:"notes,omitempty"`
}

func (a AccommodationState) Task(taskID string) (AccommodationSearchTask, bool) {
	for _, t := range a.SearchTasks {
		if t.TaskID == taskID {
			return t, true
		}
	}
	return AccommodationSearchTask{}, false
}
