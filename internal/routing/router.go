// Package routing maps completed sessions to result-view paths.
package routing

import (
	"net/url"

	"github.com/wayfarer-labs/wayfarer/internal/domain"
)

// View paths the frontend serves. Itinerary and general queries share
// one view.
const (
	PathHotels      = "/hotels"
	PathRestaurants = "/restaurants"
	PathActivities  = "/activities"
	PathItinerary   = "/itinerary"
)

func basePath(d domain.Domain) string {
	switch d {
	case domain.DomainAccommodation:
		return PathHotels
	case domain.DomainDining:
		return PathRestaurants
	case domain.DomainActivities:
		return PathActivities
	case domain.DomainItinerary, domain.DomainGeneral:
		return PathItinerary
	}
	return ""
}

// RouteFor returns the destination path for a completed session,
// parameterized by sessionId and, when known, cityName. It returns ""
// only for a domain outside the closed enumeration, which classification
// cannot produce.
func RouteFor(d domain.Domain, sessionID, city string) string {
	base := basePath(d)
	if base == "" {
		return ""
	}

	q := url.Values{}
	q.Set("sessionId", sessionID)
	if city != "" {
		q.Set("cityName", city)
	}
	return base + "?" + q.Encode()
}
