package frame

import (
	"neofeed/models"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ObjectView is the per-object state a presentation layer draws from
type ObjectView struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Date              string          `json:"date"`
	DiameterMinMeters float64         `json:"diameterMinMeters"`
	DiameterMaxMeters float64         `json:"diameterMaxMeters"`
	Hazardous         bool            `json:"hazardous"`
	ClosestApproach   string          `json:"closestApproach,omitempty"`
	MissDistanceKm    decimal.Decimal `json:"missDistanceKm"`
	Approaches        int             `json:"approaches"`
}

// State is owned by the frame loop and handed to every update function
type State struct {
	// Tick counts completed scheduler passes
	Tick uint64

	// Generation increases each time materialized state is replaced
	Generation uint64

	Range     models.DateRange
	Response  *models.FeedResponse
	Objects   []ObjectView
	LastError error

	// Requested is the range most recently submitted by the frame side
	Requested models.DateRange
	Waiting   int
}

// Replace clears everything derived from the previous result and
// materializes resp in its place
func (s *State) Replace(result models.BridgeResult) {
	s.Generation++
	s.Range = result.Range
	s.Response = nil
	s.Objects = nil
	s.LastError = nil

	if result.Failed() {
		s.LastError = result.Err
		return
	}
	s.Response = result.Response
	s.Objects = Materialize(result.Response)
}

// Materialize builds object views in date order. Unparseable miss distances
// leave MissDistanceKm at zero.
func Materialize(resp *models.FeedResponse) []ObjectView {
	if resp == nil {
		return nil
	}
	var views []ObjectView
	for _, date := range resp.Dates() {
		for _, obj := range resp.NearEarthObjects[date] {
			views = append(views, view(date, obj))
		}
	}
	return views
}

func view(date string, obj models.NearEarthObject) ObjectView {
	v := ObjectView{
		ID:         obj.ID,
		Name:       obj.Name,
		Date:       date,
		Hazardous:  obj.PotentiallyHazard,
		Approaches: len(obj.CloseApproaches),
	}
	if d, ok := obj.Diameter("meters"); ok {
		v.DiameterMinMeters = d.Min
		v.DiameterMaxMeters = d.Max
	}

	type approach struct {
		date string
		km   decimal.Decimal
	}
	parsed := lo.FilterMap(obj.CloseApproaches, func(e models.CloseApproachEvent, _ int) (approach, bool) {
		km, err := e.MissDistance.Km()
		return approach{date: e.Date, km: km}, err == nil
	})
	if len(parsed) > 0 {
		closest := lo.MinBy(parsed, func(a, b approach) bool {
			return a.km.LessThan(b.km)
		})
		v.ClosestApproach = closest.date
		v.MissDistanceKm = closest.km
	}
	return v
}
