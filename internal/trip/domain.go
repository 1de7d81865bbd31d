package trip

import (
	"errors"
	"fmt"
)

type Domain string

const (
	DomainVisa          Domain = "visa"
	DomainFlights       Domain = "flights"
	DomainAccommodation Domain = "accommodation"
	DomainActivities    Domain = "activities"
	DomainSummary       Domain = "summary"
)

// Domains lists the domain slots in pipeline order.
var Domains = []Domain{DomainVisa, DomainFlights, DomainAccommodation, DomainActivities, DomainSummary}

func ParseDomain(s string) (Domain, error) {
	for _, d := range Domains {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDomain, s)
}

type Phase string

const (
	PhaseNotStarted      Phase = "not_started"
	PhaseTasksDerived    Phase = "tasks_derived"
	PhaseResultsSearched Phase = "results_searched"
	PhaseApplied         Phase = "applied"
)

var phaseOrder = []Phase{PhaseNotStarted, PhaseTasksDerived, PhaseResultsSearched, PhaseApplied}

var (
	ErrPhaseOrder    = errors.New("phase transition out of order")
	ErrUnknownDomain = errors.New("unknown domain")
)

func (p Phase) rank() int {
	for i, candidate := range phaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

// Next returns the phase that directly follows p.
func (p Phase) Next() (Phase, bool) {
	r := p.rank()
	if r < 0 || r+1 >= len(phaseOrder) {
		return "", false
	}
	return phaseOrder[r+1], true
}

// AtLeast reports whether p has reached target.
func (p Phase) AtLeast(target Phase) bool {
	return p.rank() >= target.rank()
}

func checkTransition(from, to Phase) error {
	next, ok := from.Next()
	if !ok || next != to {
		return fmt.Errorf("%w: %s -> %s", ErrPhaseOrder, from, to)
	}
	return nil
}
