package geofence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/paulmach/orb/geojson"
	"github.com/sourcegraph/conc/iter"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
)

// DefaultExtensions is used when no extension filter is configured.
var DefaultExtensions = []string{".geojson"}

// LoadStats summarises one load pass.
type LoadStats struct {
	Dirs     int           `json:"dirs"`
	Files    int           `json:"files"`
	Skipped  int           `json:"skipped_files"`
	Features int           `json:"features"`
	Areas    int           `json:"areas"`
	Version  uint64        `json:"version"`
	Duration time.Duration `json:"duration_ns"`
}

var errMalformed = errors.New("malformed geofence file")

type fileResult struct {
	features []domain.Feature
	err      error
}

// LoadDirs scans dirs in order and builds a fresh FeatureSet. Files inside a
// directory are taken in lexical order and parsed concurrently; results are
// appended in scan order regardless of which parse finishes first. Missing
// directories and malformed files are logged and skipped.
func LoadDirs(ctx context.Context, dirs, exts []string, logger *slog.Logger) (*domain.FeatureSet, LoadStats) {
	start := time.Now()
	if logger == nil {
		logger = slog.Default()
	}
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	var (
		stats LoadStats
		files []string
	)
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			logger.Debug("geofence dir not found", "dir", dir)
			continue
		}
		stats.Dirs++
		files = append(files, scanDir(dir, exts)...)
	}
	stats.Files = len(files)

	results := iter.Map(files, func(path *string) fileResult {
		if err := ctx.Err(); err != nil {
			return fileResult{err: err}
		}
		features, err := parseFile(*path)
		return fileResult{features: features, err: err}
	})

	set := &domain.FeatureSet{LoadedAt: time.Now().UTC()}
	for i, res := range results {
		if res.err != nil {
			stats.Skipped++
			logger.Warn("skipping geofence file", "file", files[i], "error", res.err)
			continue
		}
		for _, f := range res.features {
			f.Index = len(set.Features)
			set.Features = append(set.Features, f)
		}
	}

	stats.Features = len(set.Features)
	stats.Areas = set.AreaCount()
	stats.Duration = time.Since(start)
	return set, stats
}

// scanDir lists files with one of the extensions, sorted lexically.
func scanDir(dir string, exts []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
		if err != nil {
			continue
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

// parseFile decodes one GeoJSON file into zero or more features.
func parseFile(path string) ([]domain.Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return parseDocument(data, filepath.Base(path), filepath.Dir(path))
}

func parseDocument(data []byte, sourceID, sourceDir string) ([]domain.Feature, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: invalid json", errMalformed)
	}
	_, dataType, _, err := jsonparser.Get(data)
	if err != nil || dataType != jsonparser.Object {
		return nil, fmt.Errorf("%w: top level is not an object", errMalformed)
	}

	typ, _ := jsonparser.GetString(data, "type")
	switch typ {
	case "FeatureCollection":
		if _, dt, _, err := jsonparser.Get(data, "features"); err != nil || dt != jsonparser.Array {
			return nil, nil
		}
		var (
			out     []domain.Feature
			skipped int
		)
		_, err := jsonparser.ArrayEach(data, func(value []byte, dt jsonparser.ValueType, _ int, _ error) {
			if dt != jsonparser.Object {
				skipped++
				return
			}
			f, err := parseFeature(value)
			if err != nil {
				skipped++
				return
			}
			f.SourceID, f.SourceDir = sourceID, sourceDir
			out = append(out, f)
		}, "features")
		if err != nil {
			return nil, fmt.Errorf("%w: features: %v", errMalformed, err)
		}
		if skipped > 0 {
			slog.Debug("skipped undecodable features", "file", sourceID, "count", skipped)
		}
		return out, nil
	case "Feature":
		f, err := parseFeature(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errMalformed, err)
		}
		f.SourceID, f.SourceDir = sourceID, sourceDir
		return []domain.Feature{f}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported type %q", errMalformed, typ)
	}
}

// parseFeature decodes a single Feature object. A null geometry is kept as a
// nil geometry so the feature still appears in listings.
func parseFeature(data []byte) (domain.Feature, error) {
	var f domain.Feature

	rawGeom, dt, _, err := jsonparser.Get(data, "geometry")
	if err == nil && dt == jsonparser.Object {
		g, err := geojson.UnmarshalGeometry(rawGeom)
		if err != nil {
			return f, fmt.Errorf("geometry: %w", err)
		}
		f.Geometry = g.Geometry()
	}

	rawProps, dt, _, err := jsonparser.Get(data, "properties")
	if err == nil && dt == jsonparser.Object {
		props, err := domain.ParseProperties(rawProps)
		if err != nil {
			return f, err
		}
		f.Properties = props
	}
	return f, nil
}
