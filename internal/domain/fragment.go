package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyFragment is returned when a decoded fragment carries none of
// the known result keys or metadata.
var ErrEmptyFragment = errors.New("fragment carries no known fields")

// Hotel is one accommodation result.
type Hotel struct {
	Name          string  `json:"name"`
	Area          string  `json:"area,omitempty"`
	PricePerNight float64 `json:"price_per_night,omitempty"`
	Rating        float64 `json:"rating,omitempty"`
	Description   string  `json:"description,omitempty"`
}

// Restaurant is one dining result.
type Restaurant struct {
	Name        string  `json:"name"`
	Cuisine     string  `json:"cuisine,omitempty"`
	Area        string  `json:"area,omitempty"`
	PriceLevel  string  `json:"price_level,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Activity is one point-of-interest result.
type Activity struct {
	Name        string  `json:"name"`
	Category    string  `json:"category,omitempty"`
	Area        string  `json:"area,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	Description string  `json:"description,omitempty"`
}

// CityInfo is general destination context returned alongside results.
type CityInfo struct {
	City        string `json:"city"`
	Country     string `json:"country,omitempty"`
	Summary     string `json:"summary,omitempty"`
	BestSeason  string `json:"best_season,omitempty"`
	KnownFor    string `json:"known_for,omitempty"`
	Walkability string `json:"walkability,omitempty"`
}

// ResultData accumulates domain-specific result collections for a
// session. Fields are additive: once populated, a field is only ever
// replaced by a newer non-empty value for the same key.
type ResultData struct {
	Hotels      []Hotel      `json:"hotels,omitempty"`
	Restaurants []Restaurant `json:"restaurants,omitempty"`
	Activities  []Activity   `json:"activities,omitempty"`
	GeneralCity *CityInfo    `json:"general_city_data,omitempty"`
}

func (d *ResultData) merge(f *Fragment) {
	if len(f.Hotels) > 0 {
		d.Hotels = f.Hotels
	}
	if len(f.Restaurants) > 0 {
		d.Restaurants = f.Restaurants
	}
	if len(f.Activities) > 0 {
		d.Activities = f.Activities
	}
	if f.GeneralCity != nil && f.GeneralCity.City != "" {
		d.GeneralCity = f.GeneralCity
	}
}

// Fragment is one partial-update record from the upstream assistant
// stream: any subset of the result collections plus optional session
// metadata (detected city, corrected domain).
type Fragment struct {
	Hotels      []Hotel      `json:"hotels,omitempty"`
	Restaurants []Restaurant `json:"restaurants,omitempty"`
	Activities  []Activity   `json:"activities,omitempty"`
	GeneralCity *CityInfo    `json:"general_city_data,omitempty"`
	City        string       `json:"city,omitempty"`
	Domain      string       `json:"domain,omitempty"`
}

// Empty reports whether the fragment carries nothing the session model
// understands.
func (f *Fragment) Empty() bool {
	return len(f.Hotels) == 0 &&
		len(f.Restaurants) == 0 &&
		len(f.Activities) == 0 &&
		f.GeneralCity == nil &&
		f.City == "" &&
		f.Domain == ""
}

// DecodeFragment validates one raw chunk at the boundary. Malformed
// JSON and fragments with no recognized fields are rejected so the
// ingestor can discard them without touching merged data.
func DecodeFragment(raw []byte) (*Fragment, error) {
	var f Fragment
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode fragment: %w", err)
	}
	if f.Empty() {
		return nil, ErrEmptyFragment
	}
	return &f, nil
}
