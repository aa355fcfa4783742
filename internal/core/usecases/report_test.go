package usecases_test

import (
	"errors"
	"testing"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/usecases"
)

func TestDecodeLocationReport_LatLng(t *testing.T) {
	r, err := usecases.DecodeLocationReport([]byte(`{"bus_id":3,"lat":14.5,"lng":121.0,"route":"Lipa","seats_available":12,"status":"on_stop"}`), 0)
	if err != nil {
		t.Fatal(err)
	}
	if r.BusID != 3 || r.Point != (domain.GeoPoint{Lat: 14.5, Lon: 121.0}) {
		t.Errorf("unexpected report %+v", r)
	}
	if r.Route == nil || *r.Route != "Lipa" || *r.SeatsAvailable != 12 || *r.Status != domain.StatusOnStop {
		t.Errorf("optional fields not decoded: %+v", r)
	}
	if r.ReceivedAt.IsZero() {
		t.Error("expected received_at")
	}
}

func TestDecodeLocationReport_GeoJSONWins(t *testing.T) {
	body := `{
		"lat": 1, "lng": 1,
		"geojson": {"type":"Feature","geometry":{"type":"Point","coordinates":[121.0233,14.0931]},
		            "properties":{"name":"Laurel","speed":30}}
	}`
	r, err := usecases.DecodeLocationReport([]byte(body), 5)
	if err != nil {
		t.Fatal(err)
	}
	if r.BusID != 5 {
		t.Errorf("path id must override body, got %d", r.BusID)
	}
	if r.Point != (domain.GeoPoint{Lat: 14.0931, Lon: 121.0233}) {
		t.Errorf("expected geojson point, got %+v", r.Point)
	}
	if name, _ := r.Properties.DisplayName(); name != "Laurel" {
		t.Errorf("expected properties kept, got %q", name)
	}
}

func TestDecodeLocationReport_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"not json", `{`, domain.ErrInvalidInput},
		{"no bus", `{"lat":1,"lng":1}`, domain.ErrInvalidInput},
		{"no point", `{"bus_id":1}`, domain.ErrInvalidInput},
		{"lat range", `{"bus_id":1,"lat":95,"lng":1}`, domain.ErrInvalidInput},
		{"lng range", `{"bus_id":1,"lat":1,"lng":-181}`, domain.ErrInvalidInput},
		{"bad status", `{"bus_id":1,"lat":1,"lng":1,"status":"parked"}`, domain.ErrInvalidStatus},
		{"negative seats", `{"bus_id":1,"lat":1,"lng":1,"seats_available":-1}`, domain.ErrInvalidSeats},
		{"not a point", `{"bus_id":1,"geojson":{"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}}`, domain.ErrInvalidInput},
		{"geojson out of range", `{"bus_id":1,"geojson":{"type":"Feature","geometry":{"type":"Point","coordinates":[14.0931,121.0233]}}}`, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := usecases.DecodeLocationReport([]byte(tt.body), 0)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
