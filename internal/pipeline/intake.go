package pipeline

import (
	"context"
	"strings"

	"github.com/yubzen/globetrip/internal/agent"
	"github.com/yubzen/globetrip/internal/trip"
)

// Turn is the outcome of one intake exchange.
type Turn struct {
	Reply   string
	Planner trip.PlannerState
	Tools   []string
}

// Chat feeds one line to the intake agent. The agent updates the planner
// through its tools; when the turn fails the session is rolled back to where
// it stood before the line was sent.
func (p *Planner) Chat(ctx context.Context, sessionID, line string) (Turn, error) {
	s, err := p.Session(ctx, sessionID)
	if err != nil {
		return Turn{}, err
	}
	before, err := s.MarshalJSON()
	if err != nil {
		return Turn{}, err
	}
	events, err := p.agents.Invoke(ctx, agent.AgentIntake, sessionID, strings.TrimSpace(line))
	if err != nil {
		p.rollback(context.WithoutCancel(ctx), sessionID, before)
		return Turn{}, err
	}
	s, err = p.Session(ctx, sessionID)
	if err != nil {
		return Turn{}, err
	}
	planner, err := s.Planner()
	if err != nil {
		return Turn{}, err
	}
	turn := Turn{Reply: agent.FinalText(events), Planner: planner}
	for _, inv := range agent.ToolInvocations(events) {
		turn.Tools = append(turn.Tools, inv.Name)
	}
	return turn, nil
}

func (p *Planner) rollback(ctx context.Context, sessionID string, snapshot []byte) {
	restored, err := trip.Restore(sessionID, snapshot)
	if err != nil {
		p.logger.Error("rollback failed", "session_id", sessionID, "error", err)
		return
	}
	p.mu.Lock()
	p.live[sessionID] = restored
	p.mu.Unlock()
	if err := p.save(ctx, restored); err != nil {
		p.logger.Error("rollback failed", "session_id", sessionID, "error", err)
	}
}
