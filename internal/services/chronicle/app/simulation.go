package server

import (
	"context"
	"log"

	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/session"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/world"
	"github.com/louisbranch/statecraft/internal/services/chronicle/simclient"
)

// SimulationClient is the subset of simclient.Client the runtime calls.
type SimulationClient interface {
	AdvanceMonth(ctx context.Context) (simclient.Turn, error)
	Zones(ctx context.Context) ([]world.Zone, error)
	WorldState(ctx context.Context) (simclient.WorldState, error)
}

// Simulation turns parsed simulation responses into session frames.
type Simulation struct {
	client SimulationClient
}

var _ session.Simulation = (*Simulation)(nil)

// NewSimulation adapts a simulation client to the session's port.
func NewSimulation(client SimulationClient) *Simulation {
	return &Simulation{client: client}
}

func (a *Simulation) AdvanceTurn(ctx context.Context) (session.Turn, error) {
	turn, err := a.client.AdvanceMonth(ctx)
	if err != nil {
		return session.Turn{}, err
	}
	if turn.Dropped > 0 {
		log.Printf("chronicle: dropped %d malformed zone/event entries for %s", turn.Dropped, turn.Date)
	}
	return session.Turn{
		Frame:       world.NewFrame(turn.Date, turn.World, turn.Zones),
		Events:      turn.Events,
		UnreadCount: turn.UnreadCount,
	}, nil
}

func (a *Simulation) LoadFrame(ctx context.Context) (*world.Frame, error) {
	state, err := a.client.WorldState(ctx)
	if err != nil {
		return nil, err
	}
	zones, err := a.client.Zones(ctx)
	if err != nil {
		return nil, err
	}
	return world.NewFrame(state.Date, state.World, zones), nil
}
