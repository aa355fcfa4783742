package geofence

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

const laurelFeature = `{
  "type": "Feature",
  "properties": {"name": "Laurel"},
  "geometry": {"type": "Polygon", "coordinates": [[
    [121.0203, 14.0901], [121.0263, 14.0901], [121.0263, 14.0961], [121.0203, 14.0961], [121.0203, 14.0901]
  ]]}
}`

const collection = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"Bugaan East": ""},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
    {"type": "Feature", "properties": {"name": "Terminal"},
     "geometry": {"type": "Point", "coordinates": [121.01, 14.08]}},
    {"type": "Feature", "properties": {"name": "Islands"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[5,5],[6,5],[6,6],[5,6],[5,5]]]]}},
    {"type": "Feature", "properties": {"name": "Broken"},
     "geometry": {"type": "Polygon", "coordinates": "nope"}}
  ]
}`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDirs_OrderAndProvenance(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()

	writeFile(t, first, "b.geojson", laurelFeature)
	writeFile(t, first, "a.geojson", collection)
	writeFile(t, first, "ignored.json", laurelFeature)
	writeFile(t, second, "a.geojson", `{"type":"Feature","properties":{"name":"Second"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}`)

	set, stats := LoadDirs(context.Background(), []string{first, second}, nil, nil)

	wantNames := []string{"Bugaan East", "Terminal", "Islands", "Laurel", "Second"}
	if len(set.Features) != len(wantNames) {
		t.Fatalf("expected %d features, got %d", len(wantNames), len(set.Features))
	}
	for i, want := range wantNames {
		f := set.Features[i]
		if got, _ := f.Name(); got != want {
			t.Errorf("feature %d: name %q, want %q", i, got, want)
		}
		if f.Index != i {
			t.Errorf("feature %d: index %d", i, f.Index)
		}
	}

	if set.Features[0].SourceID != "a.geojson" || set.Features[3].SourceID != "b.geojson" {
		t.Errorf("unexpected source ids: %q, %q", set.Features[0].SourceID, set.Features[3].SourceID)
	}
	if set.Features[4].SourceDir != second {
		t.Errorf("expected last feature from second dir, got %q", set.Features[4].SourceDir)
	}
	if set.Features[1].IsArea() {
		t.Error("point feature must not be an area")
	}
	if stats.Files != 3 || stats.Dirs != 2 || stats.Skipped != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.Areas != 4 {
		t.Errorf("expected 4 areas, got %d", stats.Areas)
	}
}

func TestLoadDirs_SkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "1-bad.geojson", `{"type": "Feature",`)
	writeFile(t, dir, "2-array.geojson", `[1,2,3]`)
	writeFile(t, dir, "3-unknown.geojson", `{"type":"Topology"}`)
	writeFile(t, dir, "4-good.geojson", laurelFeature)
	writeFile(t, dir, "5-empty.geojson", `{"type":"FeatureCollection","features":[]}`)

	set, stats := LoadDirs(context.Background(), []string{dir, filepath.Join(dir, "missing")}, []string{"geojson"}, nil)

	if stats.Skipped != 3 {
		t.Errorf("expected 3 skipped files, got %d", stats.Skipped)
	}
	if len(set.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(set.Features))
	}
	if name, _ := set.Features[0].Name(); name != "Laurel" {
		t.Errorf("unexpected feature %q", name)
	}
}

func TestStore_ReloadSwapsSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "laurel.geojson", laurelFeature)

	store := NewStore([]string{dir}, nil, nil)
	if store.Current().Len() != 0 {
		t.Fatal("expected empty snapshot before reload")
	}

	if _, err := store.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	old := store.Current()
	if old.Len() != 1 || old.Version != 1 {
		t.Fatalf("unexpected snapshot: len=%d version=%d", old.Len(), old.Version)
	}

	writeFile(t, dir, "more.geojson", collection)
	stats, err := store.Reload(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Version != 2 {
		t.Errorf("expected version 2, got %d", stats.Version)
	}

	// The old snapshot is never mutated.
	if old.Len() != 1 {
		t.Errorf("old snapshot changed: len=%d", old.Len())
	}
	if store.Current().Len() != 4 {
		t.Errorf("expected 4 features after reload, got %d", store.Current().Len())
	}
	if last, ok := store.LastStats(); !ok || last.Version != 2 {
		t.Errorf("unexpected last stats %+v", last)
	}
}

func TestStore_ConcurrentReloads(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "laurel.geojson", laurelFeature)
	store := NewStore([]string{dir}, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Reload(context.Background()); err != nil {
				t.Error(err)
			}
			_ = store.Current().Len()
		}()
	}
	wg.Wait()

	if store.Current().Len() != 1 {
		t.Errorf("expected 1 feature, got %d", store.Current().Len())
	}
}

func TestStore_CancelledReloadKeepsOldSet(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "laurel.geojson", laurelFeature)
	store := NewStore([]string{dir}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Reload(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if store.Current().Len() != 0 {
		t.Error("cancelled reload must not swap the snapshot")
	}
}
