package search

import (
	"context"
	"net/url"
	"strings"
)

// placeholderArrival is only there to make google_flights return its
// airports block for the departure location.
const placeholderArrival = "LHR"

type Airport struct {
	Code    string `json:"code"`
	Name    string `json:"name,omitempty"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

type AirportsResult struct {
	Outcome
	Location   string    `json:"location"`
	Candidates []Airport `json:"candidates"`
}

// Airports resolves a free-text location to candidate airport codes.
func (c *Client) Airports(ctx context.Context, location string) AirportsResult {
	location = strings.TrimSpace(location)
	params := url.Values{}
	params.Set("departure_id", location)
	params.Set("arrival_id", placeholderArrival)
	params.Set("outbound_date", c.now().AddDate(1, 0, 0).Format("2006-01-02"))

	var raw struct {
		Airports []Airport `json:"airports"`
	}
	out := AirportsResult{Location: location, Candidates: []Airport{}}
	out.Outcome = c.get(ctx, engineFlights, params, &raw)
	if !out.OK() {
		return out
	}

	seen := map[string]bool{}
	for _, a := range raw.Airports {
		a.Code = strings.ToUpper(strings.TrimSpace(a.Code))
		if a.Code == "" || seen[a.Code] {
			continue
		}
		seen[a.Code] = true
		out.Candidates = append(out.Candidates, a)
	}
	c.logger.Info("airports resolved", "location", location, "candidates", len(out.Candidates))
	return out
}
