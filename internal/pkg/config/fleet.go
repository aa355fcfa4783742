package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
)

type fleetFile struct {
	Buses []domain.SeedBus `yaml:"buses"`
}

// DefaultFleet is provisioned when no seed file exists.
func DefaultFleet() []domain.SeedBus {
	return []domain.SeedBus{
		{Code: "BUS-001", SeatsTotal: domain.DefaultSeats},
		{Code: "BUS-002", SeatsTotal: domain.DefaultSeats},
		{Code: "BUS-003", SeatsTotal: domain.DefaultSeats},
	}
}

// LoadFleet reads the fleet seed file. A missing file yields DefaultFleet.
func LoadFleet(path string) ([]domain.SeedBus, error) {
	if path == "" {
		return DefaultFleet(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultFleet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fleet %s: %w", path, err)
	}

	var f fleetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fleet %s: %w", path, err)
	}
	seen := make(map[string]struct{}, len(f.Buses))
	for i, b := range f.Buses {
		if b.Code == "" {
			return nil, fmt.Errorf("fleet %s: entry %d has no code", path, i)
		}
		if _, dup := seen[b.Code]; dup {
			return nil, fmt.Errorf("fleet %s: duplicate code %q", path, b.Code)
		}
		seen[b.Code] = struct{}{}
	}
	return f.Buses, nil
}
