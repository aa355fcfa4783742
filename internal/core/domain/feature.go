package domain

import (
	"time"

	"github.com/paulmach/orb"
)

// Feature is one geofence entry loaded from a GeoJSON file.
type Feature struct {
	Index      int          `json:"index"`
	Geometry   orb.Geometry `json:"-"`
	Properties Properties   `json:"properties"`
	SourceID   string       `json:"src_file"`
	SourceDir  string       `json:"-"`
}

// IsArea reports whether the feature takes part in containment.
func (f *Feature) IsArea() bool {
	switch f.Geometry.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return true
	}
	return false
}

// Name returns the feature's display name.
func (f *Feature) Name() (string, bool) {
	return f.Properties.DisplayName()
}

// FeatureSet is an immutable, ordered snapshot of loaded features. Order is
// directory order, then file order, then position within the file.
type FeatureSet struct {
	Features []Feature `json:"features"`
	Version  uint64    `json:"version"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Len returns the number of features, tolerating a nil set.
func (s *FeatureSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Features)
}

// AreaCount returns how many features are polygons or multipolygons.
func (s *FeatureSet) AreaCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for i := range s.Features {
		if s.Features[i].IsArea() {
			n++
		}
	}
	return n
}
