package agent

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	AgentIntake               = "intake"
	AgentVisaSearch           = "visa_search"
	AgentFlightSummary        = "flight_summary"
	AgentAccommodationSummary = "accommodation_summary"
	AgentActivitySearch       = "activity_search"
	AgentDayItinerary         = "day_itinerary"
	AgentTripSummary          = "trip_summary"
)

// IDs lists every agent globetrip invokes, in pipeline order.
func IDs() []string {
	return []string{
		AgentIntake,
		AgentVisaSearch,
		AgentFlightSummary,
		AgentAccommodationSummary,
		AgentActivitySearch,
		AgentDayItinerary,
		AgentTripSummary,
	}
}

var defaultInstructions = map[string]string{
	AgentIntake: `You are the intake assistant for globetrip, a trip planner.
Collect the trip details through conversation: destination, origin, start and end dates, how many adults, children and seniors are travelling, their nationalities, the budget mode (economy, standard or luxury) and any preferences.
Call update_trip_plan every time the traveler gives you new facts. Only send the fields you learned.
Use resolve_airports to turn a city into airport codes and flights_calendar when the traveler asks which dates are cheapest.
Ask one or two short questions at a time. When everything is known and the traveler confirms, call mark_ready_for_planning.`,

	AgentVisaSearch: `You research visa requirements for one traveler group at a time.
The user message describes a single visa search task with a task_id.
Reply with ONE strictly valid JSON object and nothing else:
{"task_id": string, "summary": string, "processing_time_hint": string or null, "fee_hint": string or null, "notes": string or null, "sources": [string]}
In the summary write "No visa required" when the traveler can enter without one, otherwise "Visa required", and name the visa type when one applies (for example "Standard Visitor Visa").
Rely on official government and approved visa centre guidance. Give two or three short source labels, not URLs.`,

	AgentFlightSummary: `You summarise flight search results for one flight search task.
The user message contains the task and the canonical options (cheapest, fastest, balanced) found by the search API.
Call record_flight_search_result exactly once with the task_id, a short summary, the options you were given, hints about price and timing, and chosen_option_type set to the option that best fits the travelers' budget mode.
Never invent options or prices.`,

	AgentAccommodationSummary: `You summarise accommodation search results for one stay task.
The user message contains the task and the canonical options (cheapest, best_location, balanced and so on) found by the search API.
Call record_accommodation_search_result exactly once with the task_id, a short summary, the options you were given, neighborhood and family hints, and chosen_option_type set to the best fit for the travelers.
Never invent options or prices.`,

	AgentActivitySearch: `You research things to do for a trip.
The user message describes one activity search task with a task_id, location, dates, interests and budget mode.
Reply with ONE strictly valid JSON object and nothing else:
{"task_id": string, "summary": string, "budget_hint": string or null, "family_friendly_hint": string or null, "neighborhood_hint": string or null, "options": [{"name": string, "category": string, "neighborhood": string, "city": string, "duration_minutes": number, "price_per_person_low": number, "price_per_person_high": number, "currency": string, "is_free": bool, "suitable_for_children": bool, "url": string, "notes": string}]}
Prefer a varied list of eight to fifteen options. Leave a field out rather than guessing.`,

	AgentDayItinerary: `You plan a few days of a trip at a time.
The user message lists the dates to plan with their day type (arrival, full, departure or arrival_departure), the base neighborhood, candidate activities, and items already planned on other days.
Reply with ONE strictly valid JSON object and nothing else:
{"items": [{"date": "YYYY-MM-DD", "slot": "morning" | "afternoon" | "evening", "name": string, "neighborhood": string, "city": string, "url": string, "notes": string}]}
Keep arrival and departure days light, never repeat an attraction that is already planned, and stay within at most two neighborhoods per day. Meals may repeat.`,

	AgentTripSummary: `You write the final trip summary for the travelers.
The user message contains the planner state, visa findings, chosen flights and stays, the day-by-day itinerary, and a computed cost summary.
Write a friendly, well organised plain-text summary: key dates, visa actions with deadlines, flights and stays per traveler, the daily highlights, and the cost estimate exactly as computed. Do not change any numbers.`,
}

// DefaultInstructions returns the built-in instructions for an agent.
func DefaultInstructions(agentID string) string {
	return defaultInstructions[agentID]
}

// LoadInstructions reads an agent's instructions. file wins when set (relative
// paths resolve against rolesDir), then rolesDir/<agentID>.md, then the
// built-in text.
func LoadInstructions(rolesDir, agentID, file string) string {
	var candidates []string
	if file = strings.TrimSpace(file); file != "" {
		if !filepath.IsAbs(file) && rolesDir != "" {
			file = filepath.Join(rolesDir, file)
		}
		candidates = append(candidates, file)
	}
	if rolesDir != "" {
		candidates = append(candidates, filepath.Join(rolesDir, agentID+".md"))
	}
	for _, path := range candidates {
		b, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(string(b)); text != "" {
			return text
		}
	}
	return defaultInstructions[agentID]
}
