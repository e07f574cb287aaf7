package routing

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarer-labs/wayfarer/internal/domain"
)

func TestRouteFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		domain    domain.Domain
		sessionID string
		city      string
		wantPath  string
		wantCity  string
	}{
		{"accommodation with city", domain.DomainAccommodation, "abc123", "Lisbon", PathHotels, "Lisbon"},
		{"dining without city", domain.DomainDining, "xyz789", "", PathRestaurants, ""},
		{"activities", domain.DomainActivities, "a1", "Porto", PathActivities, "Porto"},
		{"general goes to itinerary", domain.DomainGeneral, "q1", "", PathItinerary, ""},
		{"itinerary", domain.DomainItinerary, "q2", "Kyoto", PathItinerary, "Kyoto"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := RouteFor(tt.domain, tt.sessionID, tt.city)
			u, err := url.Parse(got)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, u.Path)
			assert.Equal(t, tt.sessionID, u.Query().Get("sessionId"))
			assert.Equal(t, tt.wantCity, u.Query().Get("cityName"))
		})
	}
}

func TestRouteForUnknownDomain(t *testing.T) {
	t.Parallel()
	assert.Empty(t, RouteFor(domain.Domain("spaceflight"), "s1", ""))
}

func TestRouteForEscapesCityName(t *testing.T) {
	t.Parallel()
	got := RouteFor(domain.DomainAccommodation, "s1", "Rio de Janeiro")
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "Rio de Janeiro", u.Query().Get("cityName"))
}
