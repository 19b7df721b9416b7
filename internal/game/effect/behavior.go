package effect

import (
	"math"

	"github.com/cory-johannsen/towerdefense/internal/game/health"
)

// target is the entity a behavior acts on.
type target struct {
	id     string
	mods   *Modifiers
	health Health
	router DamageRouter
}

// Behavior is the apply/update/remove triple for one Kind. Remove must
// exactly reverse Apply using what Apply recorded in Instance.applied.
// Update returns the amount dealt or healed for the tick event, and done
// when the instance should end early.
type Behavior struct {
	Apply  func(t target, inst *Instance)
	Update func(t target, inst *Instance) (amount float64, done bool)
	Remove func(t target, inst *Instance)
}

var behaviors = map[Kind]Behavior{
	Slow: {
		Apply: func(t target, inst *Instance) {
			f := 1 - math.Min(0.95, math.Max(0, inst.Params.Amount))
			t.mods.SpeedMultiplier *= f
			inst.applied = f
		},
		Remove: func(t target, inst *Instance) { t.mods.SpeedMultiplier /= inst.applied },
	},
	Poison: {
		Update: damageOverTime(health.Poison),
	},
	Freeze: {
		Apply:  func(t target, _ *Instance) { t.mods.immobilize() },
		Remove: func(t target, _ *Instance) { t.mods.release() },
	},
	Burn: {
		Update: damageOverTime(health.Fire),
	},
	Stun: {
		Apply: func(t target, _ *Instance) {
			t.mods.immobilize()
			t.mods.disarm()
		},
		Remove: func(t target, _ *Instance) {
			t.mods.release()
			t.mods.rearm()
		},
	},
	ArmorReduction: {
		Apply: func(t target, inst *Instance) {
			if t.health != nil {
				inst.applied = -t.health.AdjustArmor(t.id, -inst.Params.Amount)
			}
		},
		Remove: func(t target, inst *Instance) {
			if t.health != nil && inst.applied > 0 {
				t.health.AdjustArmor(t.id, inst.applied)
			}
		},
	},
	DamageBoost: {
		Apply: func(t target, inst *Instance) {
			inst.applied = inst.Params.Multiplier
			t.mods.DamageMultiplier *= inst.applied
		},
		Remove: func(t target, inst *Instance) { t.mods.DamageMultiplier /= inst.applied },
	},
	SpeedBoost: {
		Apply: func(t target, inst *Instance) {
			inst.applied = inst.Params.Multiplier
			t.mods.SpeedMultiplier *= inst.applied
		},
		Remove: func(t target, inst *Instance) { t.mods.SpeedMultiplier /= inst.applied },
	},
	Regeneration: {
		Update: func(t target, inst *Instance) (float64, bool) {
			amount := inst.Params.HealPerSecond * inst.Params.UpdateInterval / 1000
			if t.health == nil {
				return 0, false
			}
			return t.health.Heal(t.id, amount, health.HealOptions{Source: inst.Params.Source}).Healed, false
		},
	},
	Shield: {
		Apply: func(t target, inst *Instance) {
			if t.health != nil {
				inst.base = t.health.Shield(t.id)
				t.health.AddShield(t.id, inst.Params.Amount)
				inst.applied = inst.Params.Amount
			}
		},
		Update: func(t target, inst *Instance) (float64, bool) {
			return 0, t.health == nil || t.health.Shield(t.id) <= inst.base
		},
		Remove: func(t target, inst *Instance) {
			if t.health != nil {
				t.health.DrainShield(t.id, inst.shieldLeft(t.health.Shield(t.id)))
			}
		},
	},
}

func damageOverTime(dt health.DamageType) func(target, *Instance) (float64, bool) {
	return func(t target, inst *Instance) (float64, bool) {
		amount := inst.Params.DamagePerSecond * inst.Params.UpdateInterval / 1000
		opts := health.DamageOptions{Type: dt, Source: inst.Params.Source}
		var res health.DamageResult
		switch {
		case t.router != nil && t.router.Owns(t.id):
			res = t.router.Damage(t.id, amount, opts)
		case t.health != nil:
			res = t.health.DealDamage(t.id, amount, opts)
		default:
			return 0, false
		}
		return res.Dealt + res.Absorbed, false
	}
}

// BehaviorFor returns the behavior registered for k.
func BehaviorFor(k Kind) (Behavior, bool) {
	b, ok := behaviors[k]
	return b, ok
}
