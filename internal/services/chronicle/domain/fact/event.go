package fact

import (
	"strings"
)

// RawEvent is a simulation event that passed boundary validation. Its Type is
// normalized but not yet known to be supported.
type RawEvent struct {
	ID          string
	Type        string
	Title       string
	Description string
	CountryIDs  []string
	ZoneID      string
}

// RawEventInput is the loosely shaped event as decoded from the service.
type RawEventInput struct {
	ID          string
	Type        string
	Title       string
	Description string
	CountryID   string
	CountryIDs  []string
	ZoneID      string
}

// ParseRawEvent validates in. Events without a usable type are rejected so
// the caller can drop them.
func ParseRawEvent(in RawEventInput) (RawEvent, bool) {
	eventType := NormalizeType(in.Type)
	if eventType == "" {
		return RawEvent{}, false
	}

	var countries []string
	seen := make(map[string]struct{})
	for _, raw := range append([]string{in.CountryID}, in.CountryIDs...) {
		id := strings.ToUpper(strings.TrimSpace(raw))
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		countries = append(countries, id)
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = eventType
	}
	return RawEvent{
		ID:          strings.TrimSpace(in.ID),
		Type:        eventType,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		CountryIDs:  countries,
		ZoneID:      strings.TrimSpace(in.ZoneID),
	}, true
}

// NormalizeType lower-cases a raw type token and joins words with underscores.
func NormalizeType(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return ""
	}
	return strings.Join(strings.FieldsFunc(value, func(r rune) bool {
		return r == ' ' || r == '-' || r == '.' || r == '_'
	}), "_")
}
