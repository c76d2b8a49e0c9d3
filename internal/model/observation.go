// Package model defines the observation and point-set types shared by every analysis stage.
package model

import (
	"math"

	"github.com/twpayne/go-geom"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Coord is a planar coordinate pair. X holds longitude and Y latitude for geographic data.
type Coord struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Observation is one parking-search measurement at a point.
type Observation struct {
	ID             string        `json:"id" yaml:"id"`
	Country        string        `json:"country,omitempty" yaml:"country,omitempty"`
	State          string        `json:"state,omitempty" yaml:"state,omitempty"`
	City           string        `json:"city,omitempty" yaml:"city,omitempty"`
	County         string        `json:"county,omitempty" yaml:"county,omitempty"`
	Lat            float64       `json:"lat" yaml:"lat"`
	Lon            float64       `json:"lon" yaml:"lon"`
	AvgTimeToPark  float64       `json:"avg_time_to_park" yaml:"avg_time_to_park"` // minutes
	TotalSearching int           `json:"total_searching" yaml:"total_searching"`
	Boundary       string        `json:"boundary,omitempty" yaml:"boundary,omitempty"` // raw polygon string as ingested
	Polygon        *geom.Polygon `json:"-" yaml:"-"`
}

// Coord returns the observation location as (lon, lat).
func (o Observation) Coord() Coord {
	return Coord{X: o.Lon, Y: o.Lat}
}

// PointSet is an ordered, read-only collection of observations.
type PointSet struct {
	obs []Observation
}

// NewPointSet copies obs into a new PointSet.
func NewPointSet(obs []Observation) PointSet {
	cp := make([]Observation, len(obs))
	copy(cp, obs)
	return PointSet{obs: cp}
}

// Len returns the number of observations.
func (p PointSet) Len() int { return len(p.obs) }

// At returns the i-th observation.
func (p PointSet) At(i int) Observation { return p.obs[i] }

// Observations returns a copy of the underlying observations.
func (p PointSet) Observations() []Observation {
	cp := make([]Observation, len(p.obs))
	copy(cp, p.obs)
	return cp
}

// Coords returns the (lon, lat) of every observation in order.
func (p PointSet) Coords() []Coord {
	out := make([]Coord, len(p.obs))
	for i, o := range p.obs {
		out[i] = o.Coord()
	}
	return out
}

// Values returns the target variable (average time to park) in order.
func (p PointSet) Values() []float64 {
	out := make([]float64, len(p.obs))
	for i, o := range p.obs {
		out[i] = o.AvgTimeToPark
	}
	return out
}

// HasDuplicates reports whether two observations share identical coordinates.
func (p PointSet) HasDuplicates() bool {
	seen := make(map[Coord]struct{}, len(p.obs))
	for _, o := range p.obs {
		c := o.Coord()
		if _, ok := seen[c]; ok {
			return true
		}
		seen[c] = struct{}{}
	}
	return false
}

// Dedup returns a PointSet without coincident locations, keeping the first
// observation at each (lat, lon), along with the IDs of dropped observations.
func (p PointSet) Dedup() (PointSet, []string) {
	seen := make(map[Coord]struct{}, len(p.obs))
	kept := make([]Observation, 0, len(p.obs))
	var dropped []string
	for _, o := range p.obs {
		c := o.Coord()
		if _, ok := seen[c]; ok {
			dropped = append(dropped, o.ID)
			continue
		}
		seen[c] = struct{}{}
		kept = append(kept, o)
	}
	return PointSet{obs: kept}, dropped
}

// Summary describes the distribution of the target variable.
type Summary struct {
	Count          int     `json:"count" yaml:"count"`
	Mean           float64 `json:"mean" yaml:"mean"`
	Variance       float64 `json:"variance" yaml:"variance"`
	StdDev         float64 `json:"std_dev" yaml:"std_dev"`
	Min            float64 `json:"min" yaml:"min"`
	Max            float64 `json:"max" yaml:"max"`
	TotalSearching int     `json:"total_searching" yaml:"total_searching"`
}

// Summary computes descriptive statistics of the target variable.
// The variance is the unbiased sample variance; it is zero for fewer than two points.
func (p PointSet) Summary() Summary {
	s := Summary{Count: len(p.obs)}
	if s.Count == 0 {
		return s
	}
	vals := p.Values()
	for _, o := range p.obs {
		s.TotalSearching += o.TotalSearching
	}
	s.Min = floats.Min(vals)
	s.Max = floats.Max(vals)
	if s.Count == 1 {
		s.Mean = vals[0]
		return s
	}
	s.Mean, s.Variance = stat.MeanVariance(vals, nil)
	s.StdDev = math.Sqrt(s.Variance)
	return s
}
