// Package classify maps free-text queries to a result domain.
//
// Classification is a deterministic, case-insensitive keyword match.
// Rules are checked in a fixed priority order — accommodation, then
// dining, then activities, then itinerary — and the first rule with a
// matching keyword wins. Input with no domain signal classifies as
// general. The function is total: it never fails and never returns a
// value outside the closed domain set.
package classify

import (
	"strings"

	"github.com/wayfarer-labs/wayfarer/internal/domain"
)

type rule struct {
	domain   domain.Domain
	keywords []string
}

// Priority order is load-bearing: earlier rules win ties.
var rules = []rule{
	{domain.DomainAccommodation, []string{
		"hotel", "hostel", "accommodation", "stay", "lodging", "resort",
		"airbnb", "bnb", "guesthouse", "motel", "sleep",
	}},
	{domain.DomainDining, []string{
		"restaurant", "food", "eat", "dinner", "lunch", "breakfast",
		"dining", "cafe", "coffee", "bar", "cuisine", "brunch",
	}},
	{domain.DomainActivities, []string{
		"activity", "activities", "things to do", "museum", "tour",
		"attraction", "hike", "hiking", "beach", "park", "nightlife",
		"shopping", "sightseeing",
	}},
	{domain.DomainItinerary, []string{
		"itinerary", "plan", "trip", "days in", "schedule", "route",
		"weekend in",
	}},
}

// Classify returns the single best-matching domain for the input text.
func Classify(text string) domain.Domain {
	lowered := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lowered, kw) {
				return r.domain
			}
		}
	}
	return domain.DomainGeneral
}
