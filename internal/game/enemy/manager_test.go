package enemy_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/towerdefense/internal/game/effect"
	"github.com/cory-johannsen/towerdefense/internal/game/enemy"
	"github.com/cory-johannsen/towerdefense/internal/game/event"
	"github.com/cory-johannsen/towerdefense/internal/game/geom"
	"github.com/cory-johannsen/towerdefense/internal/game/health"
)

type arena struct {
	bus     *event.Bus
	health  *health.Engine
	effects *effect.Engine
	enemies *enemy.Manager
}

func newArena() *arena {
	bus := event.NewBus(nil)
	h := health.NewEngine(health.DefaultConfig(), bus, nil)
	fx := effect.NewEngine(effect.NewRegistry(), h, bus, nil)
	m := enemy.NewManager(h, fx, bus, nil)
	fx.SetDamageRouter(m)
	return &arena{bus: bus, health: h, effects: fx, enemies: m}
}

func basic() enemy.Template {
	return enemy.Template{ID: "basic", Health: 100, Speed: 2, Damage: 1, Bounty: 10, ScoreValue: 10, Size: 1}
}

var straight = []geom.Vec3{geom.Ground(0, 0), geom.Ground(10, 0)}

type feedback struct{ kinds []string }

func (f *feedback) ShowDamageNumber(_ string, _ float64, kind string) {
	f.kinds = append(f.kinds, kind)
}

func TestSpawn_AssignsSequentialIDsAndRegisters(t *testing.T) {
	a := newArena()
	e1 := a.enemies.Spawn(basic(), geom.Ground(0, 0), straight, enemy.Unscaled)
	e2 := a.enemies.Spawn(basic(), geom.Ground(0, 0), straight, enemy.Unscaled)
	assert.Equal(t, "enemy_1", e1.ID)
	assert.Equal(t, "enemy_2", e2.ID)
	assert.True(t, a.health.IsAlive("enemy_1"))
	_, ok := a.effects.Apply("enemy_2", effect.Slow, effect.Params{})
	assert.True(t, ok)
	assert.Equal(t, 2, a.enemies.Count())
}

func TestSpawn_AppliesScale(t *testing.T) {
	a := newArena()
	e := a.enemies.Spawn(basic(), geom.Ground(0, 0), straight, enemy.Scale{Health: 2, Speed: 1.5})
	assert.Equal(t, 200.0, e.MaxHealth)
	assert.Equal(t, 3.0, e.BaseSpeed)
	ent, _ := a.health.Get(e.ID)
	assert.Equal(t, 200.0, ent.MaxHealth)
}

func TestSpawn_BossRegistersAsBoss(t *testing.T) {
	a := newArena()
	tpl := basic()
	tpl.Boss = true
	e := a.enemies.Spawn(tpl, geom.Ground(0, 0), straight, enemy.Unscaled)
	ent, _ := a.health.Get(e.ID)
	assert.Equal(t, "boss", ent.EntityType)
}

func TestUpdate_FollowsPathAndReachesEnd(t *testing.T) {
	a := newArena()
	var reached []enemy.ReachedEnd
	event.On(a.bus, event.EnemyReachedEnd, func(r enemy.ReachedEnd) { reached = append(reached, r) })
	e := a.enemies.Spawn(basic(), geom.Ground(0, 0), straight, enemy.Unscaled)

	a.enemies.Update(1000)
	assert.InDelta(t, 2.0, e.Position.X, 1e-9)
	assert.Equal(t, 1, e.PathIndex)
	assert.Equal(t, 50.0, e.Progress)
	assert.InDelta(t, 2.0, e.Velocity.Len(), 1e-9)

	for range 4 {
		a.enemies.Update(1000)
	}
	assert.True(t, e.ReachedEnd)
	assert.Equal(t, 100.0, e.Progress)
	assert.InDelta(t, 10.0, e.Position.X, 1e-9)
	require.Len(t, reached, 1)
	assert.Equal(t, e.ID, reached[0].EnemyID)
	assert.Equal(t, 1, reached[0].Damage)
	assert.Empty(t, a.enemies.Alive())

	a.enemies.Update(1000)
	assert.Len(t, reached, 1)
}

func TestUpdate_ImmobilizedEnemyStays(t *testing.T) {
	a := newArena()
	e := a.enemies.Spawn(basic(), geom.Ground(0, 0), straight, enemy.Unscaled)
	_, ok := a.effects.Apply(e.ID, effect.Freeze, effect.Params{})
	require.True(t, ok)
	a.enemies.Update(1000)
	assert.Equal(t, 0.0, e.Position.X)
	assert.Equal(t, 0.0, e.Speed())
}

func TestUpdate_SlowHalvesTravel(t *testing.T) {
	a := newArena()
	e := a.enemies.Spawn(basic(), geom.Ground(0, 0), straight, enemy.Unscaled)
	_, ok := a.effects.Apply(e.ID, effect.Slow, effect.Params{Amount: 0.5})
	require.True(t, ok)
	a.enemies.Update(1000)
	assert.InDelta(t, 1.0, e.Position.X, 1e-9)
}

func TestUpdate_DeadEnemyDoesNotMove(t *testing.T) {
	a := newArena()
	e := a.enemies.Spawn(basic(), geom.Ground(0, 0), straight, enemy.Unscaled)
	res := a.enemies.Damage(e.ID, 500, health.DamageOptions{Type: health.True})
	assert.True(t, res.Killed)
	assert.False(t, e.Alive)
	a.enemies.Update(1000)
	assert.Equal(t, 0.0, e.Position.X)
	assert.Equal(t, 0, a.enemies.Count())
}

func TestAbility_SpeedBurstAppliesBoost(t *testing.T) {
	a := newArena()
	var used []enemy.AbilityUsed
	event.On(a.bus, event.AbilityUsed, func(u enemy.AbilityUsed) { used = append(used, u) })
	tpl := basic()
	tpl.Abilities = []enemy.Ability{enemy.SpeedBurst}
	long := []geom.Vec3{geom.Ground(0, 0), geom.Ground(100, 0)}
	e := a.enemies.Spawn(tpl, geom.Ground(0, 0), long, enemy.Unscaled)

	a.enemies.Update(100)
	assert.True(t, a.effects.Has(e.ID, effect.SpeedBoost))
	assert.InDelta(t, 3.0, e.Speed(), 1e-9)
	require.Len(t, used, 1)
	assert.Equal(t, enemy.SpeedBurst, used[0].Ability)

	a.enemies.Update(4000)
	assert.Len(t, used, 1, "cooldown still running")
	a.enemies.Update(1000)
	assert.Len(t, used, 2)
}

func TestAbility_DodgeGrantsBriefInvulnerability(t *testing.T) {
	a := newArena()
	tpl := basic()
	tpl.Abilities = []enemy.Ability{enemy.Dodge}
	e := a.enemies.Spawn(tpl, geom.Ground(0, 0), straight, enemy.Unscaled)

	a.enemies.Update(100)
	res := a.enemies.Damage(e.ID, 30, health.DamageOptions{})
	assert.Equal(t, 0.0, res.Dealt)

	a.enemies.Update(500)
	res = a.enemies.Damage(e.ID, 30, health.DamageOptions{})
	assert.Equal(t, 30.0, res.Dealt)
	assert.Equal(t, 70.0, e.Health)
}

func TestAbility_SelfHeal(t *testing.T) {
	a := newArena()
	fb := &feedback{}
	a.enemies.SetFeedback(fb)
	tpl := basic()
	tpl.Abilities = []enemy.Ability{enemy.SelfHeal}
	e := a.enemies.Spawn(tpl, geom.Ground(0, 0), straight, enemy.Unscaled)

	a.enemies.Damage(e.ID, 50, health.DamageOptions{})
	a.enemies.Update(10)
	assert.Equal(t, 70.0, e.Health)
	assert.Equal(t, []string{"normal", "heal"}, fb.kinds)
}

func TestAbility_EnergyShieldAndRegeneration(t *testing.T) {
	a := newArena()
	shielded := enemy.Template{ID: "shielded", Health: 150, Speed: 1.5, Abilities: []enemy.Ability{enemy.EnergyShield}}
	regen := enemy.Template{ID: "regenerating", Health: 120, Speed: 2, Abilities: []enemy.Ability{enemy.Regenerate}}

	s := a.enemies.Spawn(shielded, geom.Ground(0, 0), straight, enemy.Unscaled)
	ent, _ := a.health.Get(s.ID)
	assert.Equal(t, 75.0, ent.Shield)

	r := a.enemies.Spawn(regen, geom.Ground(0, 0), straight, enemy.Unscaled)
	ent, _ = a.health.Get(r.ID)
	assert.InDelta(t, 2.4, ent.Regeneration, 1e-9)
}

func TestAbility_FlyingSetsFlag(t *testing.T) {
	a := newArena()
	tpl := basic()
	tpl.Abilities = []enemy.Ability{enemy.Flying}
	e := a.enemies.Spawn(tpl, geom.Ground(0, 0), straight, enemy.Unscaled)
	assert.True(t, e.Flying)
}

func TestDamage_ResistancesAndWeaknesses(t *testing.T) {
	a := newArena()
	tpl := enemy.Template{
		ID: "heavy", Health: 300, Speed: 1,
		Resistances: map[string]float64{"physical": 0.5},
		Weaknesses:  map[string]float64{"energy": 1.5},
	}
	e := a.enemies.Spawn(tpl, geom.Ground(0, 0), straight, enemy.Unscaled)
	assert.Equal(t, 20.0, a.enemies.Damage(e.ID, 40, health.DamageOptions{Type: health.Physical}).Dealt)
	assert.Equal(t, 60.0, a.enemies.Damage(e.ID, 40, health.DamageOptions{Type: health.Energy}).Dealt)
	assert.Equal(t, 40.0, a.enemies.Damage(e.ID, 40, health.DamageOptions{Type: health.Fire}).Dealt)
	assert.Equal(t, 180.0, e.Health)
}

func TestDamage_OverTimeHonoursWeakness(t *testing.T) {
	a := newArena()
	tpl := basic()
	tpl.Weaknesses = map[string]float64{"poison": 2}
	e := a.enemies.Spawn(tpl, geom.Ground(0, 0), straight, enemy.Unscaled)
	_, ok := a.effects.Apply(e.ID, effect.Poison, effect.Params{DamagePerSecond: 10, DurationMs: 1000})
	require.True(t, ok)

	a.effects.Update(1000)
	assert.Equal(t, 80.0, e.Health)
	ent, _ := a.health.Get(e.ID)
	assert.Equal(t, 80.0, ent.Health)
}

func TestDamage_ZeroMultiplierIsImmune(t *testing.T) {
	a := newArena()
	tpl := basic()
	tpl.Resistances = map[string]float64{"fire": 0}
	e := a.enemies.Spawn(tpl, geom.Ground(0, 0), straight, enemy.Unscaled)
	assert.Equal(t, 0.0, e.DamageMultiplier(health.Fire))
	assert.Equal(t, 0.0, a.enemies.Damage(e.ID, 50, health.DamageOptions{Type: health.Fire}).Dealt)
	assert.Equal(t, 100.0, e.Health)
	assert.True(t, a.enemies.Owns(e.ID))
	assert.False(t, a.enemies.Owns("tower_1"))
}

func TestRemove_UnregistersEverywhere(t *testing.T) {
	a := newArena()
	e := a.enemies.Spawn(basic(), geom.Ground(0, 0), straight, enemy.Unscaled)
	a.effects.Apply(e.ID, effect.Poison, effect.Params{})
	assert.True(t, a.enemies.Remove(e.ID))
	assert.False(t, a.enemies.Remove(e.ID))
	_, ok := a.health.Get(e.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, a.effects.Stats().Total)
	assert.Empty(t, a.enemies.All())
}

func TestDistanceToEnd(t *testing.T) {
	a := newArena()
	path := []geom.Vec3{geom.Ground(0, 0), geom.Ground(4, 0), geom.Ground(4, 3)}
	e := a.enemies.Spawn(basic(), geom.Ground(0, 0), path, enemy.Unscaled)
	assert.InDelta(t, 7.0, e.DistanceToEnd(), 1e-9)
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("fast.yaml", `
id: fast
name: Fast Enemy
health: 60
speed: 4
damage: 1
bounty: 15
size: 0.8
abilities: [speed_burst]
weaknesses:
  ice: 1.5
`)
	reg, err := enemy.LoadDirectory(dir)
	require.NoError(t, err)
	tpl, ok := reg.Get("fast")
	require.True(t, ok)
	assert.Equal(t, 1.5, tpl.Weaknesses["ice"])
	assert.Equal(t, 15, tpl.ScoreValue, "score defaults to bounty")
	assert.True(t, tpl.Has(enemy.SpeedBurst))
	assert.Equal(t, []string{"fast"}, reg.IDs())

	write("bad.yaml", "id: bad\nhealth: 10\nspeed: 1\nteleport: true\n")
	write("worse.yaml", "id: worse\nhealth: 0\nspeed: 1\nabilities: [burrow]\n")
	write("odd.yaml", "id: odd\nhealth: 10\nspeed: 1\nresistances: {ground: 0}\nweaknesses: {air: 1.5}\n")
	_, err = enemy.LoadDirectory(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
	assert.Contains(t, err.Error(), "unknown ability")
	assert.Contains(t, err.Error(), `resistance "ground" is not a damage type`)
	assert.Contains(t, err.Error(), `weakness "air" is not a damage type`)
}

func TestProperty_DamageMultiplierIsProduct(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := rapid.Float64Range(0.01, 2).Draw(t, "resist")
		w := rapid.Float64Range(0.01, 2).Draw(t, "weak")
		e := &enemy.Enemy{
			Resistances: map[string]float64{"fire": r},
			Weaknesses:  map[string]float64{"fire": w},
		}
		assert.InDelta(t, r*w, e.DamageMultiplier(health.Fire), 1e-12)
		assert.Equal(t, 1.0, e.DamageMultiplier(health.Ice))
	})
}
