package sim

import (
	"github.com/cory-johannsen/towerdefense/internal/game/effect"
	"github.com/cory-johannsen/towerdefense/internal/game/health"
	"github.com/cory-johannsen/towerdefense/internal/scripting"
)

const scriptSource = "script"

// Bindings exposes this simulation to Lua hooks. Hooks run inside Tick, so
// the bindings do not take the simulation lock and must not be called from
// anywhere else.
func (s *Simulation) Bindings() scripting.Bindings {
	return scripting.Bindings{
		Entity: s.scriptEntity,
		Damage: func(id string, amount float64, damageType string) float64 {
			res := s.enemies.Damage(id, amount, health.DamageOptions{
				Type:   health.DamageType(damageType),
				Source: scriptSource,
			})
			return res.Dealt + res.Absorbed
		},
		Heal: func(id string, amount float64) float64 {
			return s.health.Heal(id, amount, health.HealOptions{Source: scriptSource}).Healed
		},
		ApplyEffect: func(id, kind string, durationMs float64) bool {
			_, ok := s.effects.Apply(id, effect.Kind(kind), effect.Params{
				DurationMs: durationMs,
				Source:     scriptSource,
			})
			return ok
		},
		AddGold:  func(n int) { s.ledger.AddGold(n) },
		AddScore: func(n int) { s.ledger.AddScore(n) },
	}
}

func (s *Simulation) scriptEntity(id string) (scripting.EntityInfo, bool) {
	if e, ok := s.enemies.Get(id); ok {
		info := scripting.EntityInfo{
			ID:        e.ID,
			Kind:      "enemy",
			Type:      e.Type,
			Health:    e.Health,
			MaxHealth: e.MaxHealth,
			Alive:     e.Active(),
			X:         e.Position.X,
			Z:         e.Position.Z,
		}
		if e.Boss {
			info.Kind = "boss"
		}
		if ent, ok := s.health.Get(id); ok {
			info.Shield = ent.Shield
		}
		return info, true
	}
	if t, ok := s.towers.Get(id); ok {
		return scripting.EntityInfo{
			ID:    t.ID,
			Kind:  "tower",
			Type:  t.Type,
			Alive: true,
			X:     t.Position.X,
			Z:     t.Position.Z,
		}, true
	}
	return scripting.EntityInfo{}, false
}

// AttachScripts loads scriptDir into a VM for this session and routes every
// effect and wave hook to it.
func (s *Simulation) AttachScripts(m *scripting.Manager, scriptDir string, instLimit int) error {
	if err := m.LoadSession(s.id, scriptDir, instLimit, s.Bindings()); err != nil {
		return err
	}
	s.SetHooks(m.Session(s.id))
	return nil
}
