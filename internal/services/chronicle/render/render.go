// Package render turns facts into localized notification copy using
// golang.org/x/text message catalogs.
package render

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	// Registers the chronicle message catalogs with x/text.
	_ "github.com/louisbranch/statecraft/internal/platform/i18n/catalog"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/fact"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/world"
)

const (
	defaultGenericTitle = "World update"
	defaultGenericBody  = "Something changed in the world."
	defaultNoPower      = "no power"
)

// Localizer is the minimal message-printer contract required by the renderer.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// Copy is the title and message of one notification.
type Copy struct {
	Title   string
	Message string
}

var supported = []language.Tag{language.English, language.MustParse("pt-BR")}

var matcher = language.NewMatcher(supported)

// NewLocalizer returns a printer for the closest supported locale, falling
// back to English for blank or unknown locales.
func NewLocalizer(locale string) *message.Printer {
	return message.NewPrinter(MatchLocale(locale))
}

// MatchLocale resolves locale to one of the registered catalog languages.
func MatchLocale(locale string) language.Tag {
	if strings.TrimSpace(locale) == "" {
		return language.English
	}
	_, index, confidence := matcher.Match(language.Make(locale))
	if confidence == language.No {
		return language.English
	}
	return supported[index]
}

// Fact renders copy for f. Unknown fact types get generic copy.
func Fact(loc Localizer, f fact.Fact) Copy {
	switch v := f.(type) {
	case fact.DominationChange:
		return dominationChange(loc, v)
	case fact.ContestationStarted:
		return Copy{
			Title:   localize(loc, "chronicle.contestation_started.title", v.ZoneName),
			Message: localize(loc, "chronicle.contestation_started.body", powers(loc, v.Contesters), v.ZoneName),
		}
	case fact.ContestationResolved:
		return Copy{
			Title:   localize(loc, "chronicle.contestation_resolved.title", v.ZoneName),
			Message: localize(loc, "chronicle.contestation_resolved.body", string(v.Controller), v.ZoneName, powers(loc, v.FormerContesters)),
		}
	case fact.InfluenceSwing:
		if v.Surge() {
			return Copy{
				Title:   localize(loc, "chronicle.influence_surge.title", v.ZoneName),
				Message: localize(loc, "chronicle.influence_surge.body", string(v.Power), v.Delta, v.ZoneName),
			}
		}
		return Copy{
			Title:   localize(loc, "chronicle.influence_collapse.title", v.ZoneName),
			Message: localize(loc, "chronicle.influence_collapse.body", string(v.Power), -v.Delta, v.ZoneName),
		}
	case fact.SourcedEvent:
		return sourcedEvent(loc, v)
	default:
		return genericCopy(loc)
	}
}

func dominationChange(loc Localizer, f fact.DominationChange) Copy {
	title := localize(loc, "chronicle.domination_change.title", f.ZoneName)
	var body string
	switch {
	case f.PreviousPower == "":
		body = localize(loc, "chronicle.domination_change.body_gained", string(f.NewPower), f.ZoneName)
	case f.NewPower == "":
		body = localize(loc, "chronicle.domination_change.body_lost", string(f.PreviousPower), f.ZoneName)
	default:
		body = localize(loc, "chronicle.domination_change.body", string(f.NewPower), f.ZoneName, string(f.PreviousPower))
	}
	return Copy{Title: title, Message: body}
}

func sourcedEvent(loc Localizer, f fact.SourcedEvent) Copy {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		title = localizeWithFallback(loc, "chronicle.event.title", defaultGenericTitle)
	}
	body := strings.TrimSpace(f.Description)
	if body == "" {
		if len(f.CountryIDs) > 0 {
			body = localize(loc, "chronicle.event.body_countries", strings.Join(f.CountryIDs, ", "))
		} else {
			body = localizeWithFallback(loc, "chronicle.event.body", defaultGenericBody)
		}
	}
	return Copy{Title: title, Message: body}
}

func powers(loc Localizer, set world.PowerSet) string {
	if len(set) == 0 {
		return localizeWithFallback(loc, "chronicle.power.none", defaultNoPower)
	}
	return strings.Join(set.Strings(), ", ")
}

func genericCopy(loc Localizer) Copy {
	return Copy{
		Title:   localizeWithFallback(loc, "chronicle.generic.title", defaultGenericTitle),
		Message: localizeWithFallback(loc, "chronicle.generic.body", defaultGenericBody),
	}
}

func localize(loc Localizer, key message.Reference, args ...any) string {
	if loc == nil {
		loc = message.NewPrinter(language.English)
	}
	return loc.Sprintf(key, args...)
}

func localizeWithFallback(loc Localizer, key string, fallback string) string {
	value := strings.TrimSpace(localize(loc, key))
	if value == "" || value == key {
		return fallback
	}
	return value
}
