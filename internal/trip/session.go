package trip

import (
	"encoding/json"
	"fmt"
	"sync"
)

const phasesKey = "phases"

// Session owns the planner record and one slot per domain. Slots hold the
// encoded domain state and are only ever swapped whole, so a value returned
// by a getter never aliases what the session stores.
type Session struct {
	ID string

	mu      sync.Mutex
	planner json.RawMessage
	slots   map[Domain]json.RawMessage
	phases  map[Domain]Phase
}

func NewSession(id string) *Session {
	s := &Session{
		ID:     id,
		slots:  make(map[Domain]json.RawMessage),
		phases: make(map[Domain]Phase),
	}
	raw, _ := json.Marshal(NewPlannerState())
	s.planner = raw
	return s
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, err
	}
	return v, nil
}

func load[T any](s *Session, d Domain) (T, error) {
	s.mu.Lock()
	raw := s.slots[d]
	s.mu.Unlock()
	v, err := decode[T](raw)
	if err != nil {
		return v, fmt.Errorf("decode %s slot: %w", d, err)
	}
	return v, nil
}

func store[T any](s *Session, d Domain, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s slot: %w", d, err)
	}
	s.mu.Lock()
	s.slots[d] = raw
	s.mu.Unlock()
	return nil
}

func (s *Session) Planner() (PlannerState, error) {
	s.mu.Lock()
	raw := s.planner
	s.mu.Unlock()
	p, err := decode[PlannerState](raw)
	if err != nil {
		return p, fmt.Errorf("decode planner: %w", err)
	}
	return p, nil
}

func (s *Session) SavePlanner(p PlannerState) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode planner: %w", err)
	}
	s.mu.Lock()
	s.planner = raw
	s.mu.Unlock()
	return nil
}

func (s *Session) Visa() (VisaState, error) {
	return load[VisaState](s, DomainVisa)
}

func (s *Session) SaveVisa(v VisaState) error {
	return store(s, DomainVisa, v)
}

func (s *Session) Flights() (FlightState, error) {
	return load[FlightState](s, DomainFlights)
}

func (s *Session) SaveFlights(v FlightState) error {
	return store(s, DomainFlights, v)
}

func (s *Session) Accommodation() (AccommodationState, error) {
	return load[AccommodationState](s, DomainAccommodation)
}

func (s *Session) SaveAccommodation(v AccommodationState) error {
	return store(s, DomainAccommodation, v)
}

func (s *Session) Activities() (ActivityState, error) {
	return load[ActivityState](s, DomainActivities)
}

func (s *Session) SaveActivities(v ActivityState) error {
	return store(s, DomainActivities, v)
}

func (s *Session) Summary() (SummaryState, error) {
	return load[SummaryState](s, DomainSummary)
}

func (s *Session) SaveSummary(v SummaryState) error {
	return store(s, DomainSummary, v)
}

// Slot returns the encoded state of a domain, or nil when it was never written.
func (s *Session) Slot(d Domain) json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw := s.slots[d]
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

func (s *Session) Phase(d Domain) Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.phases[d]; ok {
		return p
	}
	return PhaseNotStarted
}

// Advance moves d forward exactly one phase.
func (s *Session) Advance(d Domain, to Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	from, ok := s.phases[d]
	if !ok {
		from = PhaseNotStarted
	}
	if err := checkTransition(from, to); err != nil {
		return fmt.Errorf("%s: %w", d, err)
	}
	s.phases[d] = to
	return nil
}

// Reset clears the domain slot and returns it to not_started.
func (s *Session) Reset(d Domain) error {
	if _, err := ParseDomain(string(d)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, d)
	delete(s.phases, d)
	return nil
}

// Snapshot renders the persisted wire shape: planner fields at the top level,
// each written domain under its own key, and the phase map under "phases".
func (s *Session) Snapshot() (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var planner map[string]json.RawMessage
	if err := json.Unmarshal(s.planner, &planner); err != nil {
		return nil, fmt.Errorf("decode planner: %w", err)
	}
	out := make(map[string]json.RawMessage, len(planner)+len(s.slots)+1)
	for k, v := range planner {
		out[k] = v
	}
	for d, raw := range s.slots {
		out[string(d)] = append(json.RawMessage(nil), raw...)
	}
	if len(s.phases) > 0 {
		phases := make(map[string]Phase, len(s.phases))
		for d, p := range s.phases {
			phases[string(d)] = p
		}
		raw, err := json.Marshal(phases)
		if err != nil {
			return nil, err
		}
		out[phasesKey] = raw
	}
	return out, nil
}

func (s *Session) MarshalJSON() ([]byte, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return json.Marshal(snap)
}

// Restore rebuilds a session from its wire shape. Every domain slot is decoded
// into its record type so a corrupt slot fails here instead of mid-pipeline.
func Restore(id string, data []byte) (*Session, error) {
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	s := NewSession(id)

	plannerFields := map[string]json.RawMessage{}
	for _, key := range []string{"trip_details", "demographics", "preferences", "status"} {
		if v, ok := wire[key]; ok {
			plannerFields[key] = v
		}
	}
	if len(plannerFields) > 0 {
		raw, err := json.Marshal(plannerFields)
		if err != nil {
			return nil, err
		}
		p := NewPlannerState()
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode planner: %w", err)
		}
		if err := s.SavePlanner(p); err != nil {
			return nil, err
		}
	}

	for _, d := range Domains {
		raw, ok := wire[string(d)]
		if !ok || len(raw) == 0 || string(raw) == "null" {
			continue
		}
		if err := validateSlot(d, raw); err != nil {
			return nil, fmt.Errorf("restore session %s: %w", id, err)
		}
		s.slots[d] = append(json.RawMessage(nil), raw...)
	}

	if raw, ok := wire[phasesKey]; ok {
		var phases map[string]Phase
		if err := json.Unmarshal(raw, &phases); err != nil {
			return nil, fmt.Errorf("decode phases: %w", err)
		}
		for name, p := range phases {
			d, err := ParseDomain(name)
			if err != nil {
				return nil, err
			}
			if p.rank() < 0 {
				return nil, fmt.Errorf("%w: unknown phase %q for %s", ErrPhaseOrder, p, d)
			}
			s.phases[d] = p
		}
	}
	return s, nil
}

func validateSlot(d Domain, raw json.RawMessage) error {
	var err error
	switch d {
	case DomainVisa:
		_, err = decode[VisaState](raw)
	case DomainFlights:
		_, err = decode[FlightState](raw)
	case DomainAccommodation:
		_, err = decode[AccommodationState](raw)
	case DomainActivities:
		_, err = decode[ActivityState](raw)
	case DomainSummary:
		_, err = decode[SummaryState](raw)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDomain, d)
	}
	if err != nil {
		return fmt.Errorf("decode %s slot: %w", d, err)
	}
	return nil
}
