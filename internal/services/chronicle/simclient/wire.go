package simclient

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/calendar"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/fact"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/world"
)

// Wire shapes of the simulation service. Everything is decoded loosely and
// validated in parse*, where malformed entries are dropped.

type dateJSON struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type countryJSON struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Power string `json:"power"`
}

type worldJSON struct {
	Countries []countryJSON `json:"countries"`
	Status    string        `json:"status"`
}

type zoneJSON struct {
	ID                    string             `json:"id"`
	Name                  string             `json:"name"`
	DominantPower         *string            `json:"dominant_power"`
	ContestedBy           []string           `json:"contested_by"`
	InfluenceLevels       map[string]float64 `json:"influence_levels"`
	HasOil                bool               `json:"has_oil"`
	HasStrategicResources bool               `json:"has_strategic_resources"`
}

type eventJSON struct {
	ID          json.RawMessage `json:"id"`
	Type        string          `json:"type"`
	EventType   string          `json:"event_type"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	CountryID   string          `json:"country_id"`
	CountryIDs  []string        `json:"country_ids"`
	ZoneID      string          `json:"zone_id"`
}

type advanceResponse struct {
	CurrentDate      *dateJSON         `json:"current_date"`
	World            worldJSON         `json:"world"`
	Zones            []json.RawMessage `json:"zones"`
	Events           []json.RawMessage `json:"events"`
	UnreadEventCount *int              `json:"unread_event_count"`
}

type zonesResponse struct {
	Zones []json.RawMessage `json:"zones"`
}

type worldResponse struct {
	CurrentDate *dateJSON `json:"current_date"`
	World       worldJSON `json:"world"`
}

func parseDate(d *dateJSON) (calendar.Date, bool) {
	if d == nil {
		return calendar.Date{}, false
	}
	date := calendar.Date{Year: d.Year, Month: d.Month}
	return date, date.Valid()
}

func parseWorld(w worldJSON) world.World {
	out := world.World{Status: strings.TrimSpace(w.Status)}
	for _, c := range w.Countries {
		id := strings.ToUpper(strings.TrimSpace(c.ID))
		if id == "" {
			continue
		}
		power, _ := world.ParsePower(c.Power)
		out.Countries = append(out.Countries, world.Country{ID: id, Name: strings.TrimSpace(c.Name), Power: power})
	}
	return out
}

// parseZones decodes each zone independently and returns the valid ones with
// the number dropped.
func parseZones(raw []json.RawMessage) ([]world.Zone, int) {
	zones := make([]world.Zone, 0, len(raw))
	dropped := 0
	for _, item := range raw {
		var z zoneJSON
		if err := json.Unmarshal(item, &z); err != nil {
			dropped++
			continue
		}
		zone, ok := parseZone(z)
		if !ok {
			dropped++
			continue
		}
		zones = append(zones, zone)
	}
	return zones, dropped
}

func parseZone(z zoneJSON) (world.Zone, bool) {
	id := strings.TrimSpace(z.ID)
	if id == "" {
		return world.Zone{}, false
	}
	zone := world.Zone{
		ID:                    id,
		Name:                  strings.TrimSpace(z.Name),
		HasOil:                z.HasOil,
		HasStrategicResources: z.HasStrategicResources,
	}
	if z.DominantPower != nil && strings.TrimSpace(*z.DominantPower) != "" {
		power, ok := world.ParsePower(*z.DominantPower)
		if !ok {
			zone.MalformedPowers = true
		}
		zone.DominantPower = power
	}

	var contesters []world.PowerID
	for _, raw := range z.ContestedBy {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		power, ok := world.ParsePower(raw)
		if !ok {
			zone.MalformedPowers = true
			continue
		}
		contesters = append(contesters, power)
	}
	zone.ContestedBy = world.NewPowerSet(contesters...)

	if len(z.InfluenceLevels) > 0 {
		zone.InfluenceLevels = make(map[world.PowerID]int, len(z.InfluenceLevels))
		for raw, level := range z.InfluenceLevels {
			power, ok := world.ParsePower(raw)
			if !ok || math.IsNaN(level) || math.IsInf(level, 0) {
				continue
			}
			zone.InfluenceLevels[power] = world.ClampInfluence(int(math.Round(level)))
		}
	}
	return zone, true
}

// parseEvents decodes each event independently; events without a usable type
// are dropped.
func parseEvents(raw []json.RawMessage) ([]fact.RawEvent, int) {
	events := make([]fact.RawEvent, 0, len(raw))
	dropped := 0
	for _, item := range raw {
		var e eventJSON
		if err := json.Unmarshal(item, &e); err != nil {
			dropped++
			continue
		}
		eventType := e.Type
		if strings.TrimSpace(eventType) == "" {
			eventType = e.EventType
		}
		ev, ok := fact.ParseRawEvent(fact.RawEventInput{
			ID:          eventID(e.ID),
			Type:        eventType,
			Title:       e.Title,
			Description: e.Description,
			CountryID:   e.CountryID,
			CountryIDs:  e.CountryIDs,
			ZoneID:      e.ZoneID,
		})
		if !ok {
			dropped++
			continue
		}
		events = append(events, ev)
	}
	return events, dropped
}

// eventID accepts string or numeric ids.
func eventID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
