package search

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"github.com/yubzen/globetrip/internal/trip"
)

const (
	engineFlights         = "google_flights"
	engineFlightsCalendar = "google_flights_calendar"

	SourceBest  = "best"
	SourceOther = "other"
)

type FlightQuery struct {
	DepartureID   string `json:"departure_id"`
	ArrivalID     string `json:"arrival_id"`
	OutboundDate  string `json:"outbound_date"`
	ReturnDate    string `json:"return_date,omitempty"`
	Adults        int    `json:"adults,omitempty"`
	Children      int    `json:"children,omitempty"`
	InfantsInSeat int    `json:"infants_in_seat,omitempty"`
	TravelClass   string `json:"travel_class,omitempty"`
	Currency      string `json:"currency,omitempty"`
}

type FlightsResult struct {
	Outcome
	Query   FlightQuery         `json:"query"`
	Options []trip.FlightOption `json:"options"`
}

type flightSegment struct {
	DepartureAirport struct {
		ID   string `json:"id"`
		Date string `json:"date"`
		Time string `json:"time"`
	} `json:"departure_airport"`
	ArrivalAirport struct {
		ID   string `json:"id"`
		Date string `json:"date"`
		Time string `json:"time"`
	} `json:"arrival_airport"`
	Duration     *int   `json:"duration"`
	Airline      string `json:"airline"`
	FlightNumber string `json:"flight_number"`
}

type flightItinerary struct {
	Flights       []flightSegment `json:"flights"`
	TotalDuration *int            `json:"total_duration"`
	Price         *float64        `json:"price"`
	BookingToken  string          `json:"booking_token"`
}

type flightsResponse struct {
	BestFlights  []flightItinerary `json:"best_flights"`
	OtherFlights []flightItinerary `json:"other_flights"`
}

func flightParams(q FlightQuery, currency string) url.Values {
	params := url.Values{}
	setString(params, "departure_id", q.DepartureID)
	setString(params, "arrival_id", q.ArrivalID)
	setString(params, "outbound_date", q.OutboundDate)
	setString(params, "return_date", q.ReturnDate)
	setInt(params, "adults", q.Adults)
	setInt(params, "children", q.Children)
	setInt(params, "infants_in_seat", q.InfantsInSeat)
	setString(params, "travel_class", q.TravelClass)
	setString(params, "currency", currency)
	return params
}

// Flights searches priced itineraries. Best flights come first, each option
// tagged with the list it came from.
func (c *Client) Flights(ctx context.Context, q FlightQuery) FlightsResult {
	q.Currency = c.currencyOr(q.Currency)
	var raw flightsResponse
	out := FlightsResult{Query: q, Options: []trip.FlightOption{}}
	out.Outcome = c.get(ctx, engineFlights, flightParams(q, q.Currency), &raw)
	if !out.OK() {
		return out
	}

	for _, it := range raw.BestFlights {
		out.Options = append(out.Options, normalizeItinerary(it, SourceBest, q.Currency, q.ArrivalID))
	}
	for _, it := range raw.OtherFlights {
		out.Options = append(out.Options, normalizeItinerary(it, SourceOther, q.Currency, q.ArrivalID))
	}
	c.logger.Info("flight search normalized",
		"departure_id", q.DepartureID,
		"arrival_id", q.ArrivalID,
		"options", len(out.Options))
	return out
}

func stamp(date, clock string) string {
	switch {
	case date == "":
		return clock
	case clock == "":
		return date
	}
	return date + "T" + clock
}

// returnStart is the index of the first segment leaving destination, or -1
// when the itinerary holds only the outbound leg.
func returnStart(segs []flightSegment, destination string) int {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return -1
	}
	for i := 1; i < len(segs); i++ {
		if strings.EqualFold(segs[i].DepartureAirport.ID, destination) {
			return i
		}
	}
	return -1
}

func normalizeItinerary(it flightItinerary, source, currency, destination string) trip.FlightOption {
	opt := trip.FlightOption{
		Source:   source,
		Currency: currency,
		Legs:     make([]trip.FlightLeg, 0, len(it.Flights)),
	}
	if it.Price != nil {
		price := *it.Price
		low, high := price, price
		opt.PricePerTicketLow = &low
		opt.PricePerTicketHigh = &high
	}

	airlines := map[string]bool{}
	sum, haveSum := 0, false
	for _, seg := range it.Flights {
		opt.Legs = append(opt.Legs, trip.FlightLeg{
			Airline:          seg.Airline,
			FlightNumber:     seg.FlightNumber,
			DepartureAirport: seg.DepartureAirport.ID,
			DepartureTime:    stamp(seg.DepartureAirport.Date, seg.DepartureAirport.Time),
			ArrivalAirport:   seg.ArrivalAirport.ID,
			ArrivalTime:      stamp(seg.ArrivalAirport.Date, seg.ArrivalAirport.Time),
			DurationMinutes:  seg.Duration,
		})
		if a := strings.TrimSpace(seg.Airline); a != "" {
			airlines[a] = true
		}
		if seg.Duration != nil {
			sum += *seg.Duration
			haveSum = true
		}
	}
	for a := range airlines {
		opt.Airlines = append(opt.Airlines, a)
	}
	sort.Strings(opt.Airlines)

	switch {
	case it.TotalDuration != nil:
		d := *it.TotalDuration
		opt.DurationMinutes = &d
	case haveSum:
		opt.DurationMinutes = &sum
	}

	outbound := len(opt.Legs)
	if k := returnStart(it.Flights, destination); k > 0 {
		outbound = k
		opt.ReturnDepartureTime = opt.Legs[k].DepartureTime
	}
	stops := max(outbound-1, 0)
	opt.Stops = &stops
	if outbound > 0 {
		opt.OutboundArrivalTime = opt.Legs[outbound-1].ArrivalTime
	}
	return opt
}

type CalendarQuery struct {
	DepartureID       string `json:"departure_id"`
	ArrivalID         string `json:"arrival_id"`
	OutboundDateStart string `json:"outbound_date_start"`
	OutboundDateEnd   string `json:"outbound_date_end,omitempty"`
	ReturnDateStart   string `json:"return_date_start,omitempty"`
	ReturnDateEnd     string `json:"return_date_end,omitempty"`
	Adults            int    `json:"adults,omitempty"`
	Currency          string `json:"currency,omitempty"`
}

type CalendarEntry struct {
	Departure     string   `json:"departure"`
	Return        string   `json:"return,omitempty"`
	Price         *float64 `json:"price"`
	HasNoFlights  bool     `json:"has_no_flights"`
	IsLowestPrice bool     `json:"is_lowest_price"`
}

type CalendarResult struct {
	Outcome
	Query   CalendarQuery   `json:"query"`
	Entries []CalendarEntry `json:"entries"`
}

// Calendar returns the cheapest fare per date pair across a date window.
func (c *Client) Calendar(ctx context.Context, q CalendarQuery) CalendarResult {
	q.Currency = c.currencyOr(q.Currency)
	params := url.Values{}
	setString(params, "departure_id", q.DepartureID)
	setString(params, "arrival_id", q.ArrivalID)
	setString(params, "outbound_date", q.OutboundDateStart)
	setString(params, "outbound_date_start", q.OutboundDateStart)
	setString(params, "outbound_date_end", q.OutboundDateEnd)
	setString(params, "return_date", q.ReturnDateStart)
	setString(params, "return_date_start", q.ReturnDateStart)
	setString(params, "return_date_end", q.ReturnDateEnd)
	setInt(params, "adults", q.Adults)
	setString(params, "currency", q.Currency)

	var raw struct {
		Calendar []CalendarEntry `json:"calendar"`
	}
	out := CalendarResult{Query: q, Entries: []CalendarEntry{}}
	out.Outcome = c.get(ctx, engineFlightsCalendar, params, &raw)
	if out.OK() && raw.Calendar != nil {
		out.Entries = raw.Calendar
	}
	return out
}
