package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/fact"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/notification"
)

// ErrInvalidOverride indicates a malformed catalog override entry.
var ErrInvalidOverride = errors.New("invalid catalog override")

type overrideFile struct {
	Events   map[string]eventOverride   `yaml:"events"`
	Displays map[string]displayOverride `yaml:"displays"`
	Disabled []string                   `yaml:"disabled"`
}

type eventOverride struct {
	Type       string `yaml:"type"`
	Priority   string `yaml:"priority"`
	Escalation *int   `yaml:"escalation"`
}

type displayOverride struct {
	Icon     *string `yaml:"icon"`
	Sound    *string `yaml:"sound"`
	Animated *bool   `yaml:"animated"`
	Alerting *bool   `yaml:"alerting"`
}

// Load reads YAML overrides from path and merges them onto Default. An empty
// path returns Default unchanged.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog overrides: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse merges YAML overrides onto Default.
//
//	events:
//	  cyberattack: {type: attack, priority: high, escalation: 2}
//	  attack: {priority: critical}
//	displays:
//	  peace: {alerting: true}
//	disabled: [election]
func Parse(data []byte) (*Catalog, error) {
	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode catalog yaml: %w", err)
	}

	c := Default().clone()
	for raw, override := range file.Events {
		rawType := fact.NormalizeType(raw)
		if rawType == "" {
			return nil, fmt.Errorf("%w: blank event type", ErrInvalidOverride)
		}
		kind, known := c.events[rawType]
		if t := strings.TrimSpace(override.Type); t != "" {
			kind.Type = notification.Type(fact.NormalizeType(t))
		}
		if !known && kind.Type == "" {
			return nil, fmt.Errorf("%w: event %q needs a type", ErrInvalidOverride, rawType)
		}
		if override.Priority != "" {
			p, ok := notification.ParsePriority(override.Priority)
			if !ok {
				return nil, fmt.Errorf("%w: event %q priority %q", ErrInvalidOverride, rawType, override.Priority)
			}
			kind.Priority = p
		}
		if kind.Priority == "" {
			kind.Priority = notification.PriorityMedium
		}
		if override.Escalation != nil {
			level := *override.Escalation
			if level < EscalationNone || level > maxEscalationLevel {
				return nil, fmt.Errorf("%w: event %q escalation %d", ErrInvalidOverride, rawType, level)
			}
			kind.Escalation = level
		}
		c.events[rawType] = kind
	}

	for raw, override := range file.Displays {
		t := notification.Type(fact.NormalizeType(raw))
		if t == "" {
			return nil, fmt.Errorf("%w: blank display type", ErrInvalidOverride)
		}
		d := c.Display(t)
		if override.Icon != nil {
			d.Icon = strings.TrimSpace(*override.Icon)
		}
		if override.Sound != nil {
			d.Sound = strings.TrimSpace(*override.Sound)
		}
		if override.Animated != nil {
			d.Animated = *override.Animated
		}
		if override.Alerting != nil {
			d.Alerting = *override.Alerting
		}
		c.displays[t] = d
	}

	for _, raw := range file.Disabled {
		delete(c.events, fact.NormalizeType(raw))
	}
	return c, nil
}
