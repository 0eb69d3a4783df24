// Package diff compares consecutive zone snapshots and folds in raw
// simulation events, producing the facts a tick generated.
package diff

import (
	"sort"

	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/catalog"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/fact"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/world"
)

// Engine computes facts using Catalog to decide which raw events are supported.
// The zero value uses the default catalog.
type Engine struct {
	Catalog *catalog.Catalog
}

var defaultEngine = Engine{Catalog: catalog.Default()}

// ComputeFacts diffs previous against current and appends one SourcedEvent
// per supported raw event, using the default catalog.
func ComputeFacts(previous, current []world.Zone, events []fact.RawEvent) []fact.Fact {
	return defaultEngine.ComputeFacts(previous, current, events)
}

// Frames is ComputeFacts over two frames. A nil previous frame is the initial
// load: no zone facts are derived, only sourced events.
func (e Engine) Frames(previous, current *world.Frame, events []fact.RawEvent) []fact.Fact {
	if previous == nil {
		return e.ComputeFacts(nil, nil, events)
	}
	return e.ComputeFacts(previous.ZoneList(), current.ZoneList(), events)
}

// ComputeFacts is deterministic: the same inputs always produce the same
// facts in the same order. Zone facts are sorted by zone id, then kind, then
// power; sourced events follow in input order.
func (e Engine) ComputeFacts(previous, current []world.Zone, events []fact.RawEvent) []fact.Fact {
	before := make(map[string]world.Zone, len(previous))
	for _, z := range previous {
		before[z.ID] = z
	}

	after := make(map[string]world.Zone, len(current))
	ids := make([]string, 0, len(current))
	for _, z := range current {
		if _, dup := after[z.ID]; !dup {
			ids = append(ids, z.ID)
		}
		after[z.ID] = z
	}
	sort.Strings(ids)

	var facts []fact.Fact
	for _, id := range ids {
		curr := after[id]
		prev, matched := before[id]
		if !matched {
			continue
		}
		facts = append(facts, zoneFacts(prev, curr)...)
	}

	cat := e.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	for _, ev := range events {
		if !cat.Supports(ev.Type) {
			continue
		}
		facts = append(facts, fact.FromEvent(ev))
	}
	return facts
}

func zoneFacts(prev, curr world.Zone) []fact.Fact {
	name := curr.DisplayName()
	if prev.MalformedPowers || curr.MalformedPowers {
		return influenceFacts(prev, curr, name)
	}

	var facts []fact.Fact
	if prev.DominantPower != curr.DominantPower {
		facts = append(facts, fact.DominationChange{
			ZoneID:        curr.ID,
			ZoneName:      name,
			PreviousPower: prev.DominantPower,
			NewPower:      curr.DominantPower,
		})
	}

	previousContesters := world.NewPowerSet(prev.ContestedBy...)
	currentContesters := world.NewPowerSet(curr.ContestedBy...)
	if started := currentContesters.Minus(previousContesters); len(started) > 0 {
		facts = append(facts, fact.ContestationStarted{
			ZoneID:     curr.ID,
			ZoneName:   name,
			Contesters: started,
		})
	}
	if resolved := previousContesters.Minus(currentContesters); len(resolved) > 0 && curr.DominantPower != "" {
		facts = append(facts, fact.ContestationResolved{
			ZoneID:           curr.ID,
			ZoneName:         name,
			FormerContesters: resolved,
			Controller:       curr.DominantPower,
		})
	}

	return append(facts, influenceFacts(prev, curr, name)...)
}

// influenceFacts reports swings for powers with a level on both ticks.
func influenceFacts(prev, curr world.Zone, name string) []fact.Fact {
	var facts []fact.Fact
	powers := make([]world.PowerID, 0, len(curr.InfluenceLevels))
	for power := range curr.InfluenceLevels {
		if _, ok := prev.InfluenceLevels[power]; ok {
			powers = append(powers, power)
		}
	}
	sort.Slice(powers, func(i, j int) bool { return powers[i] < powers[j] })
	for _, power := range powers {
		delta := curr.InfluenceLevels[power] - prev.InfluenceLevels[power]
		if abs(delta) < fact.SwingThreshold {
			continue
		}
		facts = append(facts, fact.InfluenceSwing{
			ZoneID:   curr.ID,
			ZoneName: name,
			Power:    power,
			Delta:    delta,
		})
	}
	return facts
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
