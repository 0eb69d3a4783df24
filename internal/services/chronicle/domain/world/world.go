// Package world holds the validated zone and country shapes the chronicle
// diffs between ticks.
//
// Values in this package are built once at the simulation boundary and then
// treated as immutable: a Frame is replaced wholesale, never edited.
package world

import (
	"sort"
	"strings"

	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/calendar"
)

const (
	maxPowerIDLength = 16
	minInfluence     = 0
	maxInfluence     = 100
)

// PowerID identifies a great power (for example "USA", "CHN").
type PowerID string

// ParsePower normalizes raw into a PowerID. Blank or malformed ids are rejected.
func ParsePower(raw string) (PowerID, bool) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if value == "" || len(value) > maxPowerIDLength {
		return "", false
	}
	for _, r := range value {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return "", false
		}
	}
	return PowerID(value), true
}

// PowerSet is a sorted, duplicate-free list of powers.
type PowerSet []PowerID

// NewPowerSet builds a set from ids, dropping blanks and duplicates.
func NewPowerSet(ids ...PowerID) PowerSet {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[PowerID]struct{}, len(ids))
	set := make(PowerSet, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		set = append(set, id)
	}
	sort.Slice(set, func(i, j int) bool { return set[i] < set[j] })
	if len(set) == 0 {
		return nil
	}
	return set
}

// Contains reports whether id is a member.
func (s PowerSet) Contains(id PowerID) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= id })
	return i < len(s) && s[i] == id
}

// Minus returns the members of s absent from other.
func (s PowerSet) Minus(other PowerSet) PowerSet {
	var out PowerSet
	for _, id := range s {
		if !other.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

// Strings returns the members as plain strings.
func (s PowerSet) Strings() []string {
	out := make([]string, len(s))
	for i, id := range s {
		out[i] = string(id)
	}
	return out
}

// Zone is one influence region at a single tick.
type Zone struct {
	ID                    string
	Name                  string
	DominantPower         PowerID // empty when nobody dominates
	ContestedBy           PowerSet
	InfluenceLevels       map[PowerID]int
	HasOil                bool
	HasStrategicResources bool

	// MalformedPowers is set when the simulation sent a dominant power or
	// contester that failed ParsePower. DominantPower and ContestedBy are
	// then incomplete and must not be compared against another tick.
	MalformedPowers bool
}

// DisplayName returns Name, falling back to the id.
func (z Zone) DisplayName() string {
	if name := strings.TrimSpace(z.Name); name != "" {
		return name
	}
	return z.ID
}

// ClampInfluence bounds an influence level to 0..100.
func ClampInfluence(level int) int {
	if level < minInfluence {
		return minInfluence
	}
	if level > maxInfluence {
		return maxInfluence
	}
	return level
}

// Country is the subset of per-country world state the chronicle reads.
type Country struct {
	ID    string
	Name  string
	Power PowerID
}

// World is the non-zone part of a snapshot. Status is the simulation's own
// game status string, passed through untouched.
type World struct {
	Countries []Country
	Status    string
}

// CountryName resolves a country id to its display name, or the id itself.
func (w World) CountryName(id string) string {
	for _, c := range w.Countries {
		if c.ID == id && strings.TrimSpace(c.Name) != "" {
			return c.Name
		}
	}
	return id
}

// Frame is a complete snapshot of world and zone state for one month.
type Frame struct {
	Date  calendar.Date
	World World
	Zones map[string]Zone
}

// NewFrame indexes zones by id. Later duplicates of an id win.
func NewFrame(date calendar.Date, w World, zones []Zone) *Frame {
	index := make(map[string]Zone, len(zones))
	for _, z := range zones {
		if z.ID == "" {
			continue
		}
		index[z.ID] = z
	}
	return &Frame{Date: date, World: w, Zones: index}
}

// ZoneList returns the frame's zones ordered by id.
func (f *Frame) ZoneList() []Zone {
	if f == nil {
		return nil
	}
	out := make([]Zone, 0, len(f.Zones))
	for _, z := range f.Zones {
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
