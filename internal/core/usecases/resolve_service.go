package usecases

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/ports"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/pkg/geospatial"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/pkg/metrics"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/pkg/telemetry"
)

// ResolveService maps coordinates to named geofences.
type ResolveService struct {
	features ports.FeatureProvider
}

// NewResolveService creates a new ResolveService.
func NewResolveService(features ports.FeatureProvider) *ResolveService {
	return &ResolveService{features: features}
}

// ResolveCurrent resolves against the snapshot current at call time. A reload
// that happens during the call does not affect the result.
func (s *ResolveService) ResolveCurrent(ctx context.Context, pt domain.GeoPoint) domain.Resolution {
	var set *domain.FeatureSet
	if s.features != nil {
		set = s.features.Current()
	}
	return s.Resolve(ctx, pt, set)
}

// Resolve returns the first feature in set order whose area contains pt. When
// none does, it ranks area features by the distance from pt to their centroid
// and returns at most domain.MaxCandidates of them, closest first.
func (s *ResolveService) Resolve(ctx context.Context, pt domain.GeoPoint, set *domain.FeatureSet) domain.Resolution {
	_, span := telemetry.Tracer().Start(ctx, telemetry.SpanResolve)
	defer span.End()

	res := resolve(pt, set)

	span.SetAttributes(
		attribute.String("resolution.kind", string(res.Kind)),
		attribute.Int("resolution.checked", res.Checked),
	)
	metrics.Resolutions.WithLabelValues(string(res.Kind)).Inc()
	return res
}

func resolve(pt domain.GeoPoint, set *domain.FeatureSet) domain.Resolution {
	res := domain.Resolution{Point: pt}
	if set == nil {
		res.Kind = domain.ResolutionEmpty
		return res
	}

	target := pt.Orb()
	areas := 0
	for i := range set.Features {
		f := &set.Features[i]
		res.Checked++
		if !f.IsArea() {
			continue
		}
		areas++
		if geospatial.Contains(f.Geometry, target) {
			name, ok := f.Name()
			res.Kind = domain.ResolutionMatched
			res.Match = &domain.Match{Feature: f, Name: name, Named: ok}
			return res
		}
	}

	if areas == 0 {
		res.Kind = domain.ResolutionEmpty
		return res
	}

	res.Kind = domain.ResolutionNearest
	res.Candidates = nearest(pt, set)
	return res
}

func nearest(pt domain.GeoPoint, set *domain.FeatureSet) []domain.Candidate {
	candidates := make([]domain.Candidate, 0, len(set.Features))
	for i := range set.Features {
		f := &set.Features[i]
		if !f.IsArea() {
			continue
		}
		c, ok := geospatial.GeometryCentroid(f.Geometry)
		if !ok {
			continue
		}
		centroid := domain.FromOrb(c)
		name, _ := f.Name()
		candidates = append(candidates, domain.Candidate{
			Feature:        f,
			Name:           name,
			Centroid:       centroid,
			DistanceMeters: geospatial.Distance(pt.Orb(), c),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].DistanceMeters < candidates[j].DistanceMeters
	})
	if len(candidates) > domain.MaxCandidates {
		candidates = candidates[:domain.MaxCandidates]
	}
	return candidates
}
