package http

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/usecases"
)

// ---- Buses ----

// ListBusesHandler returns all buses ordered by code.
func ListBusesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		buses, err := deps.Buses.List(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}

		offset, limit := pageParams(c)
		page, pg := paginate(buses, offset, limit)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// GetBusHandler returns one bus.
func GetBusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := busIDParam(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		bus, err := deps.Buses.Get(c.UserContext(), id)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(bus)
	}
}

type reportResponse struct {
	Success             bool                  `json:"success"`
	Message             string                `json:"message"`
	CurrentLocationName string                `json:"current_location_name"`
	ServerResolvedName  string                `json:"server_resolved_name,omitempty"`
	ProvidedName        string                `json:"provided_name,omitempty"`
	Resolution          domain.ResolutionKind `json:"resolution"`
	Bus                 *domain.Bus           `json:"bus"`
}

// ReportLocationHandler stores a location report for the bus in the path.
func ReportLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := busIDParam(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		return reportLocation(c, deps, id)
	}
}

// LegacyReportLocationHandler accepts the older body-addressed form where
// bus_id travels in the JSON.
func LegacyReportLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return reportLocation(c, deps, 0)
	}
}

func reportLocation(c *fiber.Ctx, deps *Dependencies, busID int64) error {
	report, err := usecases.DecodeLocationReport(c.Body(), busID)
	if err != nil {
		return errFromDomain(c, err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), deps.writeTimeout())
	defer cancel()

	res, err := deps.Buses.ReportLocation(ctx, report)
	if err != nil {
		return errFromDomain(c, err)
	}
	LoggerFromCtx(c.UserContext()).Debug("location reported",
		"bus_id", res.Bus.ID, "location", res.LocationName, "resolution", res.Resolution)

	return c.JSON(reportResponse{
		Success:             true,
		Message:             "Location updated successfully",
		CurrentLocationName: res.LocationName,
		ServerResolvedName:  res.ServerResolvedName,
		ProvidedName:        res.ProvidedName,
		Resolution:          res.Resolution,
		Bus:                 res.Bus,
	})
}

// ClearLocationHandler stops tracking a bus.
func ClearLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := busIDParam(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), deps.writeTimeout())
		defer cancel()

		bus, err := deps.Buses.ClearLocation(ctx, id)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "message": "Stopped tracking for bus", "bus": bus})
	}
}

// UpdateStatusHandler sets a bus's status.
func UpdateStatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := busIDParam(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		var body struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		status, err := domain.ParseBusStatus(body.Status)
		if err != nil {
			return errFromDomain(c, err)
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), deps.writeTimeout())
		defer cancel()
		bus, err := deps.Buses.UpdateStatus(ctx, id, status)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(bus)
	}
}

// SetSeatsHandler records the number of free seats.
func SetSeatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := busIDParam(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		var body struct {
			SeatsAvailable *int `json:"seats_available"`
		}
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if body.SeatsAvailable == nil {
			return errBadRequest(c, "seats_available is required")
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), deps.writeTimeout())
		defer cancel()
		bus, err := deps.Buses.SetSeatsAvailable(ctx, id, *body.SeatsAvailable)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(bus)
	}
}

func busIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrUnknownBus
	}
	return id, nil
}

// ---- Resolution ----

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type matchedJSON struct {
	Index      int               `json:"index"`
	SrcFile    string            `json:"src_file"`
	Name       *string           `json:"name"`
	Properties domain.Properties `json:"properties"`
}

type nearestJSON struct {
	Index     int     `json:"index"`
	Name      *string `json:"name"`
	SrcFile   string  `json:"src_file"`
	Centroid  latLng  `json:"centroid"`
	DistanceM float64 `json:"distance_m"`
}

type resolveResponse struct {
	Success         bool                  `json:"success"`
	Input           latLng                `json:"input"`
	Kind            domain.ResolutionKind `json:"kind"`
	CheckedFeatures int                   `json:"checked_features"`
	Matched         *matchedJSON          `json:"matched,omitempty"`
	NearestFeatures []nearestJSON         `json:"nearest_features,omitempty"`
}

// ResolveHandler explains how a point resolves against the loaded geofences.
func ResolveHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
		if errLat != nil || errLng != nil {
			return errBadRequest(c, "provide lat and lng query params, e.g. ?lat=14.0931&lng=121.0233")
		}
		pt := domain.GeoPoint{Lat: lat, Lon: lng}
		if err := pt.Validate(); err != nil {
			return errFromDomain(c, err)
		}

		res := deps.Resolver.ResolveCurrent(c.UserContext(), pt)
		out := resolveResponse{
			Success:         true,
			Input:           latLng{Lat: lat, Lng: lng},
			Kind:            res.Kind,
			CheckedFeatures: res.Checked,
		}
		if res.Match != nil {
			f := res.Match.Feature
			out.Matched = &matchedJSON{
				Index:      f.Index,
				SrcFile:    f.SourceID,
				Name:       optional(res.Match.Name, res.Match.Named),
				Properties: f.Properties,
			}
		}
		for _, cand := range res.Candidates {
			out.NearestFeatures = append(out.NearestFeatures, nearestJSON{
				Index:     cand.Feature.Index,
				Name:      optional(cand.Name, cand.Name != ""),
				SrcFile:   cand.Feature.SourceID,
				Centroid:  latLng{Lat: cand.Centroid.Lat, Lng: cand.Centroid.Lon},
				DistanceM: cand.DistanceMeters,
			})
		}
		c.Set("Cache-Control", "no-store")
		return c.JSON(out)
	}
}

func optional(s string, ok bool) *string {
	if !ok {
		return nil
	}
	return &s
}

// ---- Geofences ----

type geoFeature struct {
	Type       string            `json:"type"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties domain.Properties `json:"properties"`
}

type featureCollection struct {
	Type     string       `json:"type"`
	Features []geoFeature `json:"features"`
}

// MapDataHandler returns every loaded geofence followed by the current bus
// positions as one FeatureCollection.
func MapDataHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		set := deps.Features.Current()
		out := featureCollection{Type: "FeatureCollection", Features: make([]geoFeature, 0, set.Len())}
		if set != nil {
			for i := range set.Features {
				f := &set.Features[i]
				if f.Geometry == nil {
					continue
				}
				out.Features = append(out.Features, geoFeature{
					Type:       "Feature",
					Geometry:   geojson.NewGeometry(f.Geometry),
					Properties: f.Properties,
				})
			}
		}

		buses, err := deps.Buses.List(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		for _, b := range buses {
			if b.Location == nil {
				continue
			}
			props := b.Location.Properties.Clone()
			props.Set("source", "bus")
			props.Set("bus_id", b.ID)
			props.Set("code", b.Code)
			props.Set("status", string(b.Status))
			out.Features = append(out.Features, geoFeature{
				Type:       "Feature",
				Geometry:   geojson.NewGeometry(b.Location.Point.Orb()),
				Properties: props,
			})
		}
		return c.JSON(out)
	}
}

// ReloadGeofencesHandler rescans the geofence directories.
func ReloadGeofencesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := deps.Features.Reload(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "stats": stats})
	}
}
