package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	setDefaults(v, "test")
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatal(err)
	}
	return &cfg
}

func TestDefaultsValidate(t *testing.T) {
	cfg := defaultConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.Store.Driver != DriverSQLite {
		t.Errorf("expected sqlite default, got %q", cfg.Store.Driver)
	}
	if len(cfg.Geofence.Dirs) != 2 || cfg.Geofence.Extensions[0] != ".geojson" {
		t.Errorf("unexpected geofence defaults %+v", cfg.Geofence)
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Server.Port = 0
	cfg.Store.Driver = "mongo"
	cfg.Geofence.Extensions = []string{"geojson"}
	cfg.Housekeeping.Status = "parked"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"server.port", "store.driver", "geofence.extensions", "housekeeping.status"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestValidate_DriverRequirements(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Store.Driver = DriverPostgres
	cfg.Database.Host = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "database.host") {
		t.Errorf("expected database.host error, got %v", err)
	}

	cfg = defaultConfig(t)
	cfg.Store.Driver = DriverRedis
	cfg.Redis.Addr = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "redis.addr") {
		t.Errorf("expected redis.addr error, got %v", err)
	}
}

func TestLoadFleet(t *testing.T) {
	dir := t.TempDir()

	fleet, err := LoadFleet(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(fleet) != 3 || fleet[0].Code != "BUS-001" || fleet[2].SeatsTotal != domain.DefaultSeats {
		t.Errorf("expected default fleet, got %+v", fleet)
	}

	path := filepath.Join(dir, "fleet.yaml")
	body := "buses:\n  - code: LIPA-01\n    route: Lipa - Batangas\n    seats_total: 32\n  - code: LIPA-02\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	fleet, err = LoadFleet(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(fleet) != 2 || fleet[0].Route != "Lipa - Batangas" || fleet[0].SeatsTotal != 32 {
		t.Errorf("unexpected fleet %+v", fleet)
	}

	if err := os.WriteFile(path, []byte("buses:\n  - code: A\n  - code: A\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFleet(path); err == nil {
		t.Error("expected duplicate code error")
	}
}
