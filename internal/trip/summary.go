package trip

// CurrencyTotals holds the aggregated price range for one currency bucket.
// Zero totals are reported as nil.
type CurrencyTotals struct {
	FlightsLow        *float64 `json:"flights_low"`
	FlightsHigh       *float64 `json:"flights_high"`
	AccommodationLow  *float64 `json:"accommodation_low"`
	AccommodationHigh *float64 `json:"accommodation_high"`
	GrandTotalLow     *float64 `json:"grand_total_low"`
	GrandTotalHigh    *float64 `json:"grand_total_high"`
}

type VisaFeeHint struct {
	TravelerIndex int    `json:"traveler_index"`
	Nationality   string `json:"nationality,omitempty"`
	Origin        string `json:"origin,omitempty"`
	Destination   string `json:"destination,omitempty"`
	Cost          string `json:"cost"`
}

type BudgetSummary struct {
	Mode        string   `json:"mode,omitempty"`
	TotalBudget *float64 `json:"total_budget"`
}

type CostSummary struct {
	CurrencyTotals map[string]CurrencyTotals `json:"currency_totals"`
	VisaFeeHints   []VisaFeeHint             `json:"visa_fee_hints"`
	Budget         BudgetSummary             `json:"budget"`
}

type SummaryState struct {
	Costs     CostSummary `json:"costs"`
	Narrative string      `json:"narrative,omitempty"`
}
