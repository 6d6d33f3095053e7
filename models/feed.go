package models

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type Links struct {
	Next string `json:"next,omitempty"`
	Prev string `json:"prev,omitempty"`
	Self string `json:"self,omitempty"`
}

type EstimatedDiameter struct {
	Min float64 `json:"estimated_diameter_min"`
	Max float64 `json:"estimated_diameter_max"`
}

// RelativeVelocity holds decimal strings exactly as the API sends them
type RelativeVelocity struct {
	KilometersPerSecond string `json:"kilometers_per_second"`
	KilometersPerHour   string `json:"kilometers_per_hour"`
	MilesPerHour        string `json:"miles_per_hour"`
}

func (v RelativeVelocity) KmPerSecond() (decimal.Decimal, error) {
	return parseDecimal("kilometers_per_second", v.KilometersPerSecond)
}

// MissDistance holds decimal strings exactly as the API sends them
type MissDistance struct {
	Astronomical string `json:"astronomical"`
	Lunar        string `json:"lunar"`
	Kilometers   string `json:"kilometers"`
	Miles        string `json:"miles"`
}

func (m MissDistance) Km() (decimal.Decimal, error) {
	return parseDecimal("kilometers", m.Kilometers)
}

func (m MissDistance) LunarDistances() (decimal.Decimal, error) {
	return parseDecimal("lunar", m.Lunar)
}

func (m MissDistance) AU() (decimal.Decimal, error) {
	return parseDecimal("astronomical", m.Astronomical)
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s %q: %w", field, value, err)
	}
	return d, nil
}

type CloseApproachEvent struct {
	Date         string           `json:"close_approach_date"`
	DateFull     string           `json:"close_approach_date_full"`
	Epoch        int64            `json:"epoch_date_close_approach"`
	Velocity     RelativeVelocity `json:"relative_velocity"`
	MissDistance MissDistance     `json:"miss_distance"`
	OrbitingBody string           `json:"orbiting_body"`
}

// NearEarthObject is one asteroid entry of the feed
type NearEarthObject struct {
	Links              Links                        `json:"links"`
	ID                 string                       `json:"id"`
	NeoReferenceID     string                       `json:"neo_reference_id"`
	Name               string                       `json:"name"`
	NasaJplURL         string                       `json:"nasa_jpl_url"`
	AbsoluteMagnitudeH float64                      `json:"absolute_magnitude_h"`
	EstimatedDiameter  map[string]EstimatedDiameter `json:"estimated_diameter"`
	PotentiallyHazard  bool                         `json:"is_potentially_hazardous_asteroid"`
	CloseApproaches    []CloseApproachEvent         `json:"close_approach_data"`
	IsSentryObject     bool                         `json:"is_sentry_object"`
}

// Diameter returns the estimated size range for a unit such as "meters"
func (o NearEarthObject) Diameter(unit string) (EstimatedDiameter, bool) {
	d, ok := o.EstimatedDiameter[unit]
	return d, ok
}

// FeedResponse is the decoded body of a feed request. It is not modified
// after DecodeFeedResponse returns.
type FeedResponse struct {
	Links            Links                        `json:"links"`
	ElementCount     int                          `json:"element_count"`
	NearEarthObjects map[string][]NearEarthObject `json:"near_earth_objects"`

	raw []byte
}

// DecodeFeedResponse decodes a feed body and keeps the original bytes
func DecodeFeedResponse(body []byte) (*FeedResponse, error) {
	var resp FeedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.NearEarthObjects == nil {
		return nil, fmt.Errorf("missing near_earth_objects")
	}
	resp.raw = append([]byte(nil), body...)
	return &resp, nil
}

// Raw returns the body exactly as it was received
func (r *FeedResponse) Raw() string {
	return string(r.raw)
}

// Dates returns the date keys in ascending order
func (r *FeedResponse) Dates() []string {
	dates := lo.Keys(r.NearEarthObjects)
	sort.Strings(dates)
	return dates
}

// Objects flattens every object in date order, keeping the per-date order
func (r *FeedResponse) Objects() []NearEarthObject {
	return lo.Flatten(lo.Map(r.Dates(), func(date string, _ int) []NearEarthObject {
		return r.NearEarthObjects[date]
	}))
}
