package planning

import (
	"sort"

	"github.com/yubzen/globetrip/internal/trip"
)

const maxCanonicalStays = 3

func firstNonNil(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func flightPrice(o trip.FlightOption) *float64 {
	return firstNonNil(o.PricePerTicketLow, o.TotalPriceLow, o.PricePerTicketHigh, o.TotalPriceHigh)
}

// CanonicalFlightOptions picks the cheapest, fastest and balanced options out
// of raw provider options. Options without a price or duration are left out of
// the respective ranking; balanced prefers the provider's own "best" tier.
func CanonicalFlightOptions(raw []trip.FlightOption) []trip.FlightOption {
	if len(raw) == 0 {
		return nil
	}

	cheapest, fastest, best := -1, -1, -1
	for i, o := range raw {
		if p := flightPrice(o); p != nil {
			if cheapest < 0 || *p < *flightPrice(raw[cheapest]) {
				cheapest = i
			}
		}
		if o.DurationMinutes != nil {
			if fastest < 0 || *o.DurationMinutes < *raw[fastest].DurationMinutes {
				fastest = i
			}
		}
		if best < 0 && o.Source == "best" {
			best = i
		}
	}

	balanced := best
	if balanced < 0 {
		balanced = cheapest
	}
	if balanced < 0 {
		balanced = 0
	}

	var out []trip.FlightOption
	seen := map[string]bool{}
	tag := func(idx int, kind string) {
		if idx < 0 || seen[kind] {
			return
		}
		seen[kind] = true
		o := raw[idx]
		o.OptionType = kind
		out = append(out, o)
	}
	tag(cheapest, trip.FlightCheapest)
	tag(fastest, trip.FlightFastest)
	tag(balanced, trip.FlightBalanced)
	return out
}

// FilterByCapacity drops stays that declare fewer guests than the party.
func FilterByCapacity(raw []trip.AccommodationOption, partySize int) []trip.AccommodationOption {
	out := make([]trip.AccommodationOption, 0, len(raw))
	for _, o := range raw {
		if o.MaxGuests != nil && *o.MaxGuests < partySize {
			continue
		}
		out = append(out, o)
	}
	return out
}

func stayPrice(o trip.AccommodationOption) float64 {
	if p := firstNonNil(o.TotalPriceLow, o.TotalPriceHigh); p != nil {
		return *p
	}
	if p := firstNonNil(o.NightlyPriceLow, o.NightlyPriceHigh); p != nil {
		return *p
	}
	return 0
}

func stayRating(o trip.AccommodationOption) float64 {
	if o.Rating == nil {
		return 0
	}
	return *o.Rating
}

// CanonicalStayOptions selects up to three stays: the cheapest, the best rated
// when it differs from the cheapest, and balanced fillers taken in price order.
// Callers apply FilterByCapacity first.
func CanonicalStayOptions(raw []trip.AccommodationOption) []trip.AccommodationOption {
	if len(raw) == 0 {
		return nil
	}

	order := make([]int, len(raw))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return stayPrice(raw[order[a]]) < stayPrice(raw[order[b]])
	})

	used := map[int]bool{}
	var out []trip.AccommodationOption
	take := func(idx int, kind string) {
		used[idx] = true
		o := raw[idx]
		o.OptionType = kind
		out = append(out, o)
	}

	cheapest := order[0]
	take(cheapest, trip.StayCheapest)

	bestRated := 0
	for i := range raw {
		if stayRating(raw[i]) > stayRating(raw[bestRated]) {
			bestRated = i
		}
	}
	if bestRated != cheapest {
		take(bestRated, trip.StayBestLocation)
	}

	for _, idx := range order {
		if len(out) >= maxCanonicalStays {
			break
		}
		if used[idx] {
			continue
		}
		take(idx, trip.StayBalanced)
	}
	return out
}
