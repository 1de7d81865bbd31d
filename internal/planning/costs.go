package planning

import (
	"github.com/yubzen/globetrip/internal/trip"
)

const UnknownCurrency = "UNKNOWN"

type currencySums struct {
	flightsLow, flightsHigh             float64
	accommodationLow, accommodationHigh float64
}

type costLedger struct {
	order   []string
	buckets map[string]*currencySums
}

func (l *costLedger) bucket(currency string) *currencySums {
	if currency == "" {
		currency = UnknownCurrency
	}
	b, ok := l.buckets[currency]
	if !ok {
		b = &currencySums{}
		l.buckets[currency] = b
		l.order = append(l.order, currency)
	}
	return b
}

func scaled(v *float64, n int) *float64 {
	if v == nil {
		return nil
	}
	out := *v * float64(n)
	return &out
}

func (l *costLedger) addFlights(f trip.FlightState) {
	tasks := make(map[string]trip.FlightSearchTask, len(f.SearchTasks))
	for _, t := range f.SearchTasks {
		tasks[t.TaskID] = t
	}
	for _, r := range f.SearchResults {
		task, ok := tasks[r.TaskID]
		if !ok {
			continue
		}
		chosen, _ := SplitChosen(r.Options, r.ChosenOptionType)
		if chosen == nil {
			continue
		}
		party := max(1, len(task.TravelerIndexes))
		low := firstNonNil(chosen.TotalPriceLow, scaled(chosen.PricePerTicketLow, party), scaled(chosen.PricePerTicketHigh, party))
		high := firstNonNil(chosen.TotalPriceHigh, scaled(chosen.PricePerTicketHigh, party), scaled(chosen.PricePerTicketLow, party))

		b := l.bucket(chosen.Currency)
		if low != nil {
			b.flightsLow += *low
		}
		if high != nil {
			b.flightsHigh += *high
		}
	}
}

func nonZero(v *float64) *float64 {
	if v == nil || *v == 0 {
		return nil
	}
	return v
}

func (l *costLedger) addAccommodation(a trip.AccommodationState) {
	tasks := make(map[string]bool, len(a.SearchTasks))
	for _, t := range a.SearchTasks {
		tasks[t.TaskID] = true
	}
	for _, r := range a.SearchResults {
		if !tasks[r.TaskID] {
			continue
		}
		chosen, _ := SplitChosen(r.Options, r.ChosenOptionType)
		if chosen == nil {
			continue
		}
		low := firstNonNil(nonZero(chosen.TotalPriceLow), chosen.NightlyPriceLow)
		high := firstNonNil(nonZero(chosen.TotalPriceHigh), chosen.NightlyPriceHigh)

		b := l.bucket(chosen.Currency)
		if low != nil {
			b.accommodationLow += *low
		}
		if high != nil {
			b.accommodationHigh += *high
		}
	}
}

func orNil(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

// ComputeCostSummary totals chosen flight and stay prices per currency. Flight
// totals fall back to the per-ticket price times the task's party size; stays
// fall back from total to nightly prices. Visa fees stay as text hints.
func ComputeCostSummary(p trip.PlannerState, v trip.VisaState, f trip.FlightState, a trip.AccommodationState) trip.CostSummary {
	ledger := &costLedger{buckets: map[string]*currencySums{}}
	ledger.addFlights(f)
	ledger.addAccommodation(a)

	totals := make(map[string]trip.CurrencyTotals, len(ledger.order))
	for _, code := range ledger.order {
		b := ledger.buckets[code]
		totals[code] = trip.CurrencyTotals{
			FlightsLow:        orNil(b.flightsLow),
			FlightsHigh:       orNil(b.flightsHigh),
			AccommodationLow:  orNil(b.accommodationLow),
			AccommodationHigh: orNil(b.accommodationHigh),
			GrandTotalLow:     orNil(b.flightsLow + b.accommodationLow),
			GrandTotalHigh:    orNil(b.flightsHigh + b.accommodationHigh),
		}
	}

	fees := []trip.VisaFeeHint{}
	for _, req := range v.Requirements {
		if req.Cost == "" {
			continue
		}
		fees = append(fees, trip.VisaFeeHint{
			TravelerIndex: req.TravelerIndex,
			Nationality:   req.Nationality,
			Origin:        req.Origin,
			Destination:   req.Destination,
			Cost:          req.Cost,
		})
	}

	return trip.CostSummary{
		CurrencyTotals: totals,
		VisaFeeHints:   fees,
		Budget: trip.BudgetSummary{
			Mode:        p.Preferences.BudgetMode,
			TotalBudget: p.Preferences.TotalBudget,
		},
	}
}
