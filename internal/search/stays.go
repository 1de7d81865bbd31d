package search

import (
	"context"
	"net/url"
	"strings"

	"github.com/yubzen/globetrip/internal/trip"
)

const (
	EngineHotels = "google_hotels"
	EngineAirbnb = "airbnb"

	providerHotels  = "searchapi_hotels"
	providerRentals = "searchapi_rentals"

	stayHotel  = "hotel"
	stayRental = "vacation_rental"
	stayOther  = "other"
)

// ChooseStayEngine picks the stay engine for a task. A valid override wins;
// otherwise any rental-like preferred type selects airbnb.
func ChooseStayEngine(preferredTypes []string, override string) string {
	switch o := strings.ToLower(strings.TrimSpace(override)); o {
	case EngineHotels, EngineAirbnb:
		return o
	}
	for _, t := range preferredTypes {
		t = strings.ToLower(t)
		if strings.Contains(t, "apartment") || strings.Contains(t, "vacation") || strings.Contains(t, "airbnb") {
			return EngineAirbnb
		}
	}
	return EngineHotels
}

type StayQuery struct {
	Location       string   `json:"location"`
	CheckInDate    string   `json:"check_in_date"`
	CheckOutDate   string   `json:"check_out_date"`
	Adults         int      `json:"adults,omitempty"`
	Children       int      `json:"children,omitempty"`
	PreferredTypes []string `json:"preferred_types,omitempty"`
	Currency       string   `json:"currency,omitempty"`
}

type StaysResult struct {
	Outcome
	Engine  string                     `json:"engine"`
	Query   StayQuery                  `json:"query"`
	Options []trip.AccommodationOption `json:"options"`
}

type extractedPrice struct {
	ExtractedPrice      *float64 `json:"extracted_price"`
	ExtractedLowest     *float64 `json:"extracted_lowest"`
	ExtractedTotalPrice *float64 `json:"extracted_total_price"`
}

func (p *extractedPrice) amount() *float64 {
	if p == nil {
		return nil
	}
	if p.ExtractedPrice != nil {
		return p.ExtractedPrice
	}
	return p.ExtractedLowest
}

// property covers the fields globetrip reads from both google_hotels and
// airbnb listings. Unknown fields are ignored.
type property struct {
	Name          string          `json:"name"`
	Title         string          `json:"title"`
	Type          string          `json:"type"`
	Description   string          `json:"description"`
	Link          string          `json:"link"`
	Neighborhood  string          `json:"neighborhood"`
	PricePerNight *extractedPrice `json:"price_per_night"`
	RatePerNight  *extractedPrice `json:"rate_per_night"`
	TotalPrice    *extractedPrice `json:"total_price"`
	TotalRate     *extractedPrice `json:"total_rate"`
	Price         *extractedPrice `json:"price"`
	Rating        *float64        `json:"rating"`
	OverallRating *float64        `json:"overall_rating"`
	Reviews       *int            `json:"reviews"`
	Amenities     []string        `json:"amenities"`
	Guests        *int            `json:"guests"`
	Bedrooms      *int            `json:"bedrooms"`
	Beds          *int            `json:"beds"`
	Bathrooms     *float64        `json:"bathrooms"`
	Cancellation  string          `json:"cancellation_policy"`
}

func firstPrice(prices ...*extractedPrice) *float64 {
	for _, p := range prices {
		if v := p.amount(); v != nil {
			return v
		}
	}
	return nil
}

func pair(v *float64) (*float64, *float64) {
	if v == nil {
		return nil, nil
	}
	low, high := *v, *v
	return &low, &high
}

func stayTypeOf(engine, declared string) string {
	if engine == EngineAirbnb {
		return stayRental
	}
	d := strings.ToLower(declared)
	switch {
	case d == "" || strings.Contains(d, "hotel"):
		return stayHotel
	case strings.Contains(d, "vacation") || strings.Contains(d, "rental"):
		return stayRental
	}
	return stayOther
}

func normalizeProperty(p property, engine string, q StayQuery) trip.AccommodationOption {
	opt := trip.AccommodationOption{
		StayType:           stayTypeOf(engine, p.Type),
		Provider:           providerHotels,
		Name:               strings.TrimSpace(p.Name),
		Description:        strings.TrimSpace(p.Description),
		Neighborhood:       strings.TrimSpace(p.Neighborhood),
		LocationLabel:      q.Location,
		City:               q.Location,
		Currency:           q.Currency,
		RatingCount:        p.Reviews,
		MaxGuests:          p.Guests,
		Bedrooms:           p.Bedrooms,
		Beds:               p.Beds,
		Bathrooms:          p.Bathrooms,
		Amenities:          p.Amenities,
		CancellationPolicy: p.Cancellation,
		URL:                p.Link,
	}
	if engine == EngineAirbnb {
		opt.Provider = providerRentals
	}
	if opt.Name == "" {
		opt.Name = strings.TrimSpace(p.Title)
	}

	opt.Rating = p.Rating
	if opt.Rating == nil {
		opt.Rating = p.OverallRating
	}

	nightly := firstPrice(p.PricePerNight, p.RatePerNight)
	total := firstPrice(p.TotalPrice, p.TotalRate)
	if p.Price != nil {
		if nightly == nil {
			nightly = p.Price.ExtractedPrice
		}
		if total == nil {
			total = p.Price.ExtractedTotalPrice
		}
	}
	opt.NightlyPriceLow, opt.NightlyPriceHigh = pair(nightly)
	opt.TotalPriceLow, opt.TotalPriceHigh = pair(total)
	return opt
}

// Stays searches hotels or rentals for the query, choosing the engine from
// the client's configured override and the query's preferred types.
func (c *Client) Stays(ctx context.Context, q StayQuery) StaysResult {
	q.Currency = c.currencyOr(q.Currency)
	engine := ChooseStayEngine(q.PreferredTypes, c.hotelEngine)

	params := url.Values{}
	setString(params, "q", q.Location)
	setString(params, "check_in_date", q.CheckInDate)
	setString(params, "check_out_date", q.CheckOutDate)
	setInt(params, "adults", q.Adults)
	setInt(params, "children", q.Children)
	setString(params, "currency", q.Currency)

	var raw struct {
		Properties []property `json:"properties"`
	}
	out := StaysResult{Engine: engine, Query: q, Options: []trip.AccommodationOption{}}
	out.Outcome = c.get(ctx, engine, params, &raw)
	if !out.OK() {
		return out
	}
	for _, p := range raw.Properties {
		opt := normalizeProperty(p, engine, q)
		if opt.Name == "" && opt.URL == "" {
			continue
		}
		out.Options = append(out.Options, opt)
	}
	c.logger.Info("stay search normalized", "engine", engine, "location", q.Location, "options", len(out.Options))
	return out
}
