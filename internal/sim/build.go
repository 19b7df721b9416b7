package sim

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/towerdefense/internal/game/targeting"
)

// Placement is one tower in a BuildOrder.
type Placement struct {
	Type      string         `yaml:"type"`
	X         float64        `yaml:"x"`
	Z         float64        `yaml:"z"`
	Targeting targeting.Mode `yaml:"targeting"`
}

// BuildOrder is an opening layout placed before the first wave.
type BuildOrder struct {
	Placements []Placement `yaml:"placements"`
}

// Validate reports every malformed placement.
func (b *BuildOrder) Validate() error {
	var errs []error
	for i, p := range b.Placements {
		if p.Type == "" {
			errs = append(errs, fmt.Errorf("placement %d: type must not be empty", i))
		}
		if p.Targeting != "" && !p.Targeting.Valid() {
			errs = append(errs, fmt.Errorf("placement %d: unknown targeting mode %q", i, p.Targeting))
		}
	}
	return errors.Join(errs...)
}

// LoadBuildOrder reads a BuildOrder from a YAML file, rejecting unknown fields.
func LoadBuildOrder(path string) (*BuildOrder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading build order: %w", err)
	}
	var b BuildOrder
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("parsing build order %q: %w", path, err)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("validating build order %q: %w", path, err)
	}
	return &b, nil
}

// ApplyBuildOrder places every tower in b, in order. A rejected placement is
// logged and skipped.
//
// Postcondition: Returns the ids of the towers that were built.
func (s *Simulation) ApplyBuildOrder(b *BuildOrder) []string {
	var built []string
	for _, p := range b.Placements {
		res := s.PlaceTower(p.Type, p.X, p.Z)
		if !res.Success {
			s.logger.Warn("build order placement rejected",
				zap.String("type", p.Type),
				zap.Float64("x", p.X),
				zap.Float64("z", p.Z),
				zap.String("reason", res.Reason),
			)
			continue
		}
		if p.Targeting != "" {
			s.SetTargetingMode(res.Tower.ID, p.Targeting)
		}
		built = append(built, res.Tower.ID)
	}
	return built
}
