package usecases

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// locationReportInput is the wire form of a location report. Either geojson
// (a Point feature) or lat and lng must be present; geojson wins when both are.
type locationReportInput struct {
	BusID          int64           `json:"bus_id" validate:"gt=0"`
	GeoJSON        json.RawMessage `json:"geojson"`
	Lat            *float64        `json:"lat" validate:"required_without=GeoJSON,omitempty,gte=-90,lte=90"`
	Lng            *float64        `json:"lng" validate:"required_without=GeoJSON,omitempty,gte=-180,lte=180"`
	Route          *string         `json:"route" validate:"omitempty,max=128"`
	SeatsAvailable *int            `json:"seats_available" validate:"omitempty,gte=0"`
	Status         *string         `json:"status" validate:"omitempty,oneof=available on_stop full unavailable"`
}

// DecodeLocationReport parses and validates a JSON location report. A
// non-zero busID overrides any bus_id in the body.
func DecodeLocationReport(data []byte, busID int64) (domain.LocationReport, error) {
	var in locationReportInput
	if err := json.Unmarshal(data, &in); err != nil {
		return domain.LocationReport{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if busID != 0 {
		in.BusID = busID
	}
	if len(in.GeoJSON) > 0 && string(in.GeoJSON) == "null" {
		in.GeoJSON = nil
	}

	if err := validate.Struct(in); err != nil {
		return domain.LocationReport{}, translateValidation(err)
	}

	report := domain.LocationReport{
		BusID:          in.BusID,
		Route:          in.Route,
		SeatsAvailable: in.SeatsAvailable,
		ReceivedAt:     time.Now().UTC(),
	}
	if in.Status != nil {
		st := domain.BusStatus(*in.Status)
		report.Status = &st
	}

	if len(in.GeoJSON) > 0 {
		pt, props, err := domain.DecodePointFeature(in.GeoJSON)
		if err != nil {
			return domain.LocationReport{}, err
		}
		report.Point = pt
		report.Properties = props
	} else {
		report.Point = domain.GeoPoint{Lat: *in.Lat, Lon: *in.Lng}
	}

	if err := report.Point.Validate(); err != nil {
		return domain.LocationReport{}, err
	}
	return report, nil
}

func translateValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	fe := verrs[0]
	switch fe.StructField() {
	case "Status":
		return fmt.Errorf("%w: status must be one of available, on_stop, full, unavailable", domain.ErrInvalidStatus)
	case "SeatsAvailable":
		return fmt.Errorf("%w: seats_available must not be negative", domain.ErrInvalidSeats)
	case "BusID":
		return fmt.Errorf("%w: bus_id is required", domain.ErrInvalidInput)
	case "Lat", "Lng":
		if fe.Tag() == "required_without" {
			return fmt.Errorf("%w: geojson or lat/lng required", domain.ErrInvalidInput)
		}
		return fmt.Errorf("%w: %s out of range", domain.ErrInvalidInput, fe.Field())
	}
	return fmt.Errorf("%w: %s failed %s", domain.ErrInvalidInput, fe.Field(), fe.Tag())
}
