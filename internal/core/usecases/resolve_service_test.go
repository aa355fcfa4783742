package usecases_test

import (
	"context"
	"testing"

	"github.com/paulmach/orb"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/usecases"
)

// --- Fixtures ---

func box(cx, cy, half float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{cx - half, cy - half}, {cx + half, cy - half},
		{cx + half, cy + half}, {cx - half, cy + half},
		{cx - half, cy - half},
	}}
}

func named(name string, g orb.Geometry) domain.Feature {
	return domain.Feature{Geometry: g, Properties: domain.Properties{{Key: "name", Value: name}}, SourceID: name + ".geojson"}
}

func featureSet(features ...domain.Feature) *domain.FeatureSet {
	for i := range features {
		features[i].Index = i
	}
	return &domain.FeatureSet{Features: features, Version: 1}
}

// --- Mock FeatureProvider ---

type mockFeatureProvider struct {
	currentFn func() *domain.FeatureSet
}

func (m *mockFeatureProvider) Current() *domain.FeatureSet {
	if m.currentFn != nil {
		return m.currentFn()
	}
	return nil
}

func staticProvider(set *domain.FeatureSet) *mockFeatureProvider {
	return &mockFeatureProvider{currentFn: func() *domain.FeatureSet { return set }}
}

// --- Tests ---

func TestResolve_LaurelScenario(t *testing.T) {
	set := featureSet(named("Laurel", box(121.0233, 14.0931, 0.003)))
	svc := usecases.NewResolveService(staticProvider(set))

	res := svc.ResolveCurrent(context.Background(), domain.GeoPoint{Lat: 14.0931, Lon: 121.0233})
	if res.Kind != domain.ResolutionMatched {
		t.Fatalf("expected matched, got %s", res.Kind)
	}
	if name, ok := res.ServerName(); !ok || name != "Laurel" {
		t.Errorf("expected Laurel, got %q", name)
	}
	if res.Match.Feature.SourceID != "Laurel.geojson" {
		t.Errorf("unexpected source %q", res.Match.Feature.SourceID)
	}
}

func TestResolve_SwappedCoordinatesDoNotMatch(t *testing.T) {
	set := featureSet(named("Laurel", box(121.0233, 14.0931, 0.003)))
	svc := usecases.NewResolveService(staticProvider(set))

	// Latitude and longitude given the wrong way round.
	res := svc.Resolve(context.Background(), domain.GeoPoint{Lat: 121.0233, Lon: 14.0931}, set)
	if res.Kind == domain.ResolutionMatched {
		t.Fatal("swapped coordinates must not match")
	}
}

func TestResolve_FirstMatchWins(t *testing.T) {
	set := featureSet(
		named("A", box(0, 0, 2)),
		named("B", box(0, 0, 1)),
	)
	svc := usecases.NewResolveService(nil)

	res := svc.Resolve(context.Background(), domain.GeoPoint{Lat: 0.5, Lon: 0.5}, set)
	if name, _ := res.ServerName(); name != "A" {
		t.Errorf("expected earlier-loaded A, got %q", name)
	}
	if res.Match.Feature.Index != 0 {
		t.Errorf("expected index 0, got %d", res.Match.Feature.Index)
	}
}

func TestResolve_CheckedStopsAtMatch(t *testing.T) {
	set := featureSet(
		named("Far", box(5, 5, 1)),
		domain.Feature{Geometry: orb.Point{0, 0}},
		named("Here", box(0, 0, 1)),
		named("Later", box(0, 0, 2)),
	)
	res := usecases.NewResolveService(nil).Resolve(context.Background(), domain.GeoPoint{Lat: 0.2, Lon: 0.2}, set)
	if res.Kind != domain.ResolutionMatched {
		t.Fatalf("expected matched, got %s", res.Kind)
	}
	if res.Checked != 3 {
		t.Errorf("expected 3 checked up to the match, got %d", res.Checked)
	}
}

func TestResolve_MultiPolygonAndHole(t *testing.T) {
	holed := box(10, 10, 2)
	holed = append(holed, box(10, 10, 0.5)[0])
	set := featureSet(
		named("Holed", holed),
		named("Islands", orb.MultiPolygon{box(20, 20, 1), box(30, 30, 1)}),
		named("Behind", box(10, 10, 3)),
	)
	svc := usecases.NewResolveService(nil)
	ctx := context.Background()

	if name, _ := svc.Resolve(ctx, domain.GeoPoint{Lat: 30.2, Lon: 30.2}, set).ServerName(); name != "Islands" {
		t.Errorf("expected Islands for second member, got %q", name)
	}
	if name, _ := svc.Resolve(ctx, domain.GeoPoint{Lat: 11.5, Lon: 11.5}, set).ServerName(); name != "Holed" {
		t.Errorf("expected Holed outside its hole, got %q", name)
	}
	// Inside the hole the first feature does not match; the larger one behind it does.
	if name, _ := svc.Resolve(ctx, domain.GeoPoint{Lat: 10, Lon: 10}, set).ServerName(); name != "Behind" {
		t.Errorf("expected Behind inside the hole, got %q", name)
	}
}

func TestResolve_UnnamedMatch(t *testing.T) {
	set := featureSet(domain.Feature{Geometry: box(0, 0, 1), Properties: domain.Properties{{Key: "id", Value: 7.0}}})
	res := usecases.NewResolveService(nil).Resolve(context.Background(), domain.GeoPoint{}, set)
	if res.Kind != domain.ResolutionMatched {
		t.Fatalf("expected matched, got %s", res.Kind)
	}
	if _, ok := res.ServerName(); ok {
		t.Error("unnamed match must not yield a server name")
	}
}

func TestResolve_NearestSortedAndCapped(t *testing.T) {
	var features []domain.Feature
	// Ten boxes spaced along the equator, none containing the origin.
	for i := 10; i >= 1; i-- {
		features = append(features, named(string(rune('A'+i)), box(float64(i), 0, 0.1)))
	}
	set := featureSet(features...)

	res := usecases.NewResolveService(nil).Resolve(context.Background(), domain.GeoPoint{Lat: 0, Lon: 0}, set)
	if res.Kind != domain.ResolutionNearest {
		t.Fatalf("expected nearest, got %s", res.Kind)
	}
	if len(res.Candidates) != domain.MaxCandidates {
		t.Fatalf("expected %d candidates, got %d", domain.MaxCandidates, len(res.Candidates))
	}
	for i := 1; i < len(res.Candidates); i++ {
		if res.Candidates[i-1].DistanceMeters > res.Candidates[i].DistanceMeters {
			t.Errorf("candidates not sorted at %d", i)
		}
	}
	if res.Candidates[0].Name != "B" {
		t.Errorf("expected closest B, got %q", res.Candidates[0].Name)
	}
	if res.Checked != 10 {
		t.Errorf("expected 10 checked, got %d", res.Checked)
	}
}

func TestResolve_NearestTiesKeepSetOrder(t *testing.T) {
	set := featureSet(
		named("East", box(1, 0, 0.1)),
		named("West", box(-1, 0, 0.1)),
		named("North", box(0, 3, 0.1)),
	)
	res := usecases.NewResolveService(nil).Resolve(context.Background(), domain.GeoPoint{}, set)
	if len(res.Candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(res.Candidates))
	}
	got := []string{res.Candidates[0].Name, res.Candidates[1].Name, res.Candidates[2].Name}
	if got[0] != "East" || got[1] != "West" || got[2] != "North" {
		t.Errorf("tie order not stable: %v", got)
	}
}

func TestResolve_SkipsFeaturesWithoutCentroid(t *testing.T) {
	set := featureSet(
		named("Empty", orb.Polygon{orb.Ring{}}),
		named("Point", orb.Point{0.1, 0.1}),
		named("Real", box(5, 5, 1)),
	)
	res := usecases.NewResolveService(nil).Resolve(context.Background(), domain.GeoPoint{}, set)
	if res.Kind != domain.ResolutionNearest {
		t.Fatalf("expected nearest, got %s", res.Kind)
	}
	if len(res.Candidates) != 1 || res.Candidates[0].Name != "Real" {
		t.Errorf("unexpected candidates %+v", res.Candidates)
	}
	// The closing vertex counts: (4+6+6+4+4)/5.
	if res.Candidates[0].Centroid != (domain.GeoPoint{Lat: 4.8, Lon: 4.8}) {
		t.Errorf("unexpected centroid %+v", res.Candidates[0].Centroid)
	}
}

func TestResolve_EmptyWithoutAreas(t *testing.T) {
	svc := usecases.NewResolveService(nil)
	ctx := context.Background()
	pt := domain.GeoPoint{Lat: 14.5, Lon: 121.0}

	if res := svc.Resolve(ctx, pt, nil); res.Kind != domain.ResolutionEmpty {
		t.Errorf("nil set: expected empty, got %s", res.Kind)
	}
	if res := svc.Resolve(ctx, pt, featureSet()); res.Kind != domain.ResolutionEmpty {
		t.Errorf("no features: expected empty, got %s", res.Kind)
	}
	onlyPoints := featureSet(named("Stop", orb.Point{121.0, 14.5}))
	if res := svc.Resolve(ctx, pt, onlyPoints); res.Kind != domain.ResolutionEmpty {
		t.Errorf("points only: expected empty, got %s", res.Kind)
	}
}

func TestResolveCurrent_CapturesSnapshotOnce(t *testing.T) {
	calls := 0
	provider := &mockFeatureProvider{currentFn: func() *domain.FeatureSet {
		calls++
		return featureSet(named("Laurel", box(121.0233, 14.0931, 0.003)))
	}}
	svc := usecases.NewResolveService(provider)
	svc.ResolveCurrent(context.Background(), domain.GeoPoint{Lat: 14.0931, Lon: 121.0233})
	if calls != 1 {
		t.Errorf("expected one snapshot read, got %d", calls)
	}
}
