package enemy

import (
	"github.com/cory-johannsen/towerdefense/internal/game/effect"
	"github.com/cory-johannsen/towerdefense/internal/game/health"
)

// abilityBehavior describes one ability. prepare adjusts the health stats
// before registration, spawn runs once after the enemy enters the arena, and
// trigger runs whenever the cooldown reaches zero, which includes the first
// Update after spawning.
type abilityBehavior struct {
	cooldown float64
	prepare  func(s *health.Stats)
	spawn    func(m *Manager, e *Enemy)
	trigger  func(m *Manager, e *Enemy)
}

const (
	burstMultiplier  = 1.5
	burstDurationMs  = 2000
	selfHealFraction = 0.2
	dodgeDurationMs  = 500
	regenFraction    = 0.02
	shieldFraction   = 0.5
)

var abilities = map[Ability]abilityBehavior{
	SpeedBurst: {
		cooldown: 5000,
		trigger: func(m *Manager, e *Enemy) {
			if m.effects == nil {
				return
			}
			m.effects.Apply(e.ID, effect.SpeedBoost, effect.Params{
				Multiplier: burstMultiplier,
				DurationMs: burstDurationMs,
				Source:     e.ID,
			})
		},
	},
	SelfHeal: {
		cooldown: 8000,
		trigger: func(m *Manager, e *Enemy) {
			res := m.health.Heal(e.ID, e.MaxHealth*selfHealFraction, health.HealOptions{Source: e.ID})
			if res.Healed > 0 {
				m.feedback.ShowDamageNumber(e.ID, res.Healed, "heal")
			}
		},
	},
	Dodge: {
		cooldown: 3000,
		trigger: func(m *Manager, e *Enemy) {
			m.health.SetInvulnerable(e.ID, true)
			e.invulnerableLeft = dodgeDurationMs
		},
	},
	Regenerate: {
		prepare: func(s *health.Stats) {
			s.Regeneration += s.MaxHealth * regenFraction
			s.RegenerationRate = 1000
		},
	},
	EnergyShield: {
		spawn: func(m *Manager, e *Enemy) {
			m.health.AddShield(e.ID, e.MaxHealth*shieldFraction)
		},
	},
	Flying: {
		spawn: func(_ *Manager, e *Enemy) { e.Flying = true },
	},
}

// Abilities returns every known ability.
func Abilities() []Ability {
	return []Ability{SpeedBurst, SelfHeal, Dodge, Regenerate, EnergyShield, Flying}
}
