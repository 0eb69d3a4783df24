package server

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/calendar"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/world"
	"github.com/louisbranch/statecraft/internal/services/chronicle/simclient"
)

type fakeSimClient struct {
	mu     sync.Mutex
	state  simclient.WorldState
	zones  []world.Zone
	turns  []simclient.Turn
	err    error
	zoneEr error
}

func (f *fakeSimClient) AdvanceMonth(context.Context) (simclient.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return simclient.Turn{}, f.err
	}
	if len(f.turns) == 0 {
		return simclient.Turn{}, errors.New("no scripted turn")
	}
	turn := f.turns[0]
	f.turns = f.turns[1:]
	return turn, nil
}

func (f *fakeSimClient) Zones(context.Context) ([]world.Zone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.zoneEr != nil {
		return nil, f.zoneEr
	}
	return f.zones, nil
}

func (f *fakeSimClient) WorldState(context.Context) (simclient.WorldState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return simclient.WorldState{}, f.err
	}
	return f.state, nil
}

func (f *fakeSimClient) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func TestSimulationLoadFrameCombinesWorldAndZones(t *testing.T) {
	t.Parallel()

	client := &fakeSimClient{
		state: simclient.WorldState{Date: calendar.Date{Year: 2025, Month: 5}, World: world.World{Status: "running"}},
		zones: []world.Zone{{ID: "z1", DominantPower: "USA"}, {ID: "z2"}},
	}
	frame, err := NewSimulation(client).LoadFrame(context.Background())
	if err != nil {
		t.Fatalf("load frame: %v", err)
	}
	if frame.Date != (calendar.Date{Year: 2025, Month: 5}) || frame.World.Status != "running" {
		t.Fatalf("frame = %+v", frame)
	}
	if len(frame.Zones) != 2 || frame.Zones["z1"].DominantPower != "USA" {
		t.Fatalf("zones = %+v", frame.Zones)
	}
}

func TestSimulationLoadFrameZoneError(t *testing.T) {
	t.Parallel()

	client := &fakeSimClient{zoneEr: errors.New("boom")}
	if _, err := NewSimulation(client).LoadFrame(context.Background()); err == nil {
		t.Fatal("expected zone error")
	}
}

func TestSimulationAdvanceTurn(t *testing.T) {
	t.Parallel()

	unread := 4
	client := &fakeSimClient{turns: []simclient.Turn{{
		Date:        calendar.Date{Year: 2025, Month: 2},
		Zones:       []world.Zone{{ID: "z1"}},
		UnreadCount: &unread,
		Dropped:     1,
	}}}
	turn, err := NewSimulation(client).AdvanceTurn(context.Background())
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if turn.Frame == nil || turn.Frame.Date != (calendar.Date{Year: 2025, Month: 2}) {
		t.Fatalf("frame = %+v", turn.Frame)
	}
	if _, ok := turn.Frame.Zones["z1"]; !ok {
		t.Fatal("expected z1 in frame")
	}
	if turn.UnreadCount == nil || *turn.UnreadCount != 4 {
		t.Fatalf("unread = %v", turn.UnreadCount)
	}

	client.fail(errors.New("down"))
	if _, err := NewSimulation(client).AdvanceTurn(context.Background()); err == nil {
		t.Fatal("expected advance error")
	}
}
