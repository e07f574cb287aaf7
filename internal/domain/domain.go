// Package domain contains core domain types for the Wayfarer gateway.
package domain

// Domain is the closed category of travel result a query is asking about.
type Domain string

const (
	DomainAccommodation Domain = "accommodation"
	DomainDining        Domain = "dining"
	DomainActivities    Domain = "activities"
	DomainItinerary     Domain = "itinerary"
	DomainGeneral       Domain = "general"
)

// Domains lists every valid domain value.
func Domains() []Domain {
	return []Domain{
		DomainAccommodation,
		DomainDining,
		DomainActivities,
		DomainItinerary,
		DomainGeneral,
	}
}

// Valid reports whether d is one of the closed enumeration values.
func (d Domain) Valid() bool {
	switch d {
	case DomainAccommodation, DomainDining, DomainActivities, DomainItinerary, DomainGeneral:
		return true
	}
	return false
}

// ParseDomain maps a string to a Domain, defaulting to general for
// anything outside the closed set.
func ParseDomain(s string) Domain {
	d := Domain(s)
	if d.Valid() {
		return d
	}
	return DomainGeneral
}
