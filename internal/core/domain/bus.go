package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/buger/jsonparser"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// BusStatus is the operational state shown to viewers.
type BusStatus string

const (
	StatusAvailable   BusStatus = "available"
	StatusOnStop      BusStatus = "on_stop"
	StatusFull        BusStatus = "full"
	StatusUnavailable BusStatus = "unavailable"
)

// Valid reports whether s is one of the known statuses.
func (s BusStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusOnStop, StatusFull, StatusUnavailable:
		return true
	}
	return false
}

// ParseBusStatus validates a raw status string.
func ParseBusStatus(raw string) (BusStatus, error) {
	s := BusStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// Property keys written into every stored location so that older clients
// reading the raw GeoJSON find the name.
const (
	PropLocationName    = "current_location_name"
	PropCurrentLocation = "Current Location"
	PropTimestamp       = "timestamp"
)

// DefaultSeats is the capacity given to buses provisioned without one.
const DefaultSeats = 40

// Bus is a tracked vehicle.
type Bus struct {
	ID             int64        `json:"id"`
	Code           string       `json:"code"`
	Route          string       `json:"route"`
	SeatsTotal     int          `json:"seats_total"`
	SeatsAvailable int          `json:"seats_available"`
	Status         BusStatus    `json:"status"`
	Location       *BusLocation `json:"current_location"`
	UpdatedAt      time.Time    `json:"updated_at"`
	// Version counts committed writes. Stores reject a Save whose Version
	// no longer matches the stored record.
	Version int64 `json:"version"`
}

// LocationName returns the resolved name of the last location, if any.
func (b *Bus) LocationName() string {
	if b.Location == nil {
		return ""
	}
	return b.Location.Name
}

// Clone returns a deep copy.
func (b *Bus) Clone() *Bus {
	if b == nil {
		return nil
	}
	out := *b
	if b.Location != nil {
		loc := *b.Location
		loc.Properties = b.Location.Properties.Clone()
		out.Location = &loc
	}
	return &out
}

// MarshalJSON adds current_location_name next to the raw location.
func (b Bus) MarshalJSON() ([]byte, error) {
	type alias Bus
	var name *string
	if b.Location != nil && b.Location.Name != "" {
		n := b.Location.Name
		name = &n
	}
	return json.Marshal(struct {
		alias
		LocationName *string `json:"current_location_name"`
	}{alias(b), name})
}

// BusLocation is the last reported position of a bus. It is stored and
// served as a GeoJSON Point feature.
type BusLocation struct {
	Point      GeoPoint
	Name       string
	Properties Properties
}

// MarshalJSON renders the location as a GeoJSON Feature.
func (l BusLocation) MarshalJSON() ([]byte, error) {
	props := l.Properties
	if props == nil {
		props = Properties{}
	}
	return json.Marshal(struct {
		Type       string          `json:"type"`
		Geometry   json.RawMessage `json:"geometry"`
		Properties Properties      `json:"properties"`
	}{
		Type:       "Feature",
		Geometry:   pointGeometryJSON(l.Point),
		Properties: props,
	})
}

// UnmarshalJSON reads a GeoJSON Point feature.
func (l *BusLocation) UnmarshalJSON(data []byte) error {
	pt, props, err := DecodePointFeature(data)
	if err != nil {
		return err
	}
	l.Point = pt
	l.Properties = props
	l.Name, _ = props.GetString(PropLocationName)
	return nil
}

func pointGeometryJSON(p GeoPoint) json.RawMessage {
	b, _ := json.Marshal(geojson.NewGeometry(p.Orb()))
	return b
}

// DecodePointFeature parses a GeoJSON Feature whose geometry is a Point and
// returns the point in (lat, lon) form together with its ordered properties.
func DecodePointFeature(data []byte) (GeoPoint, Properties, error) {
	data = bytes.TrimSpace(data)
	typ, err := jsonparser.GetString(data, "type")
	if err != nil || typ != "Feature" {
		return GeoPoint{}, nil, fmt.Errorf("%w: geojson must be a Feature", ErrInvalidInput)
	}

	rawGeom, _, _, err := jsonparser.Get(data, "geometry")
	if err != nil {
		return GeoPoint{}, nil, fmt.Errorf("%w: geojson feature has no geometry", ErrInvalidInput)
	}
	geom, err := geojson.UnmarshalGeometry(rawGeom)
	if err != nil {
		return GeoPoint{}, nil, fmt.Errorf("%w: geometry: %v", ErrInvalidInput, err)
	}
	pt, ok := geom.Geometry().(orb.Point)
	if !ok {
		return GeoPoint{}, nil, fmt.Errorf("%w: geometry must be a Point, got %s", ErrInvalidInput, geom.Type)
	}

	var props Properties
	rawProps, dataType, _, err := jsonparser.Get(data, "properties")
	if err == nil && dataType == jsonparser.Object {
		if props, err = ParseProperties(rawProps); err != nil {
			return GeoPoint{}, nil, err
		}
	}
	return FromOrb(pt), props, nil
}

// LocationReport is one position update for a bus, as received from a
// conductor device over HTTP or the message bus.
type LocationReport struct {
	BusID          int64
	Point          GeoPoint
	Properties     Properties
	Route          *string
	SeatsAvailable *int
	Status         *BusStatus
	ReceivedAt     time.Time
}

// UpdateResult describes what a location report changed.
type UpdateResult struct {
	Bus                *Bus           `json:"bus"`
	LocationName       string         `json:"current_location_name"`
	ServerResolvedName string         `json:"server_resolved_name,omitempty"`
	ProvidedName       string         `json:"provided_name,omitempty"`
	Resolution         ResolutionKind `json:"resolution"`
}

// SeedBus describes a bus to provision.
type SeedBus struct {
	Code       string `json:"code" yaml:"code" validate:"required,max=64"`
	Route      string `json:"route" yaml:"route" validate:"max=128"`
	SeatsTotal int    `json:"seats_total" yaml:"seats_total" validate:"gte=0"`
}
