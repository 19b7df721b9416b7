package projectile_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/towerdefense/internal/game/dice"
	"github.com/cory-johannsen/towerdefense/internal/game/effect"
	"github.com/cory-johannsen/towerdefense/internal/game/enemy"
	"github.com/cory-johannsen/towerdefense/internal/game/event"
	"github.com/cory-johannsen/towerdefense/internal/game/geom"
	"github.com/cory-johannsen/towerdefense/internal/game/health"
	"github.com/cory-johannsen/towerdefense/internal/game/projectile"
)

type world struct {
	bus         *event.Bus
	health      *health.Engine
	effects     *effect.Engine
	enemies     *enemy.Manager
	projectiles *projectile.Engine
}

func newWorld(cfg projectile.Config) *world {
	bus := event.NewBus(nil)
	h := health.NewEngine(health.DefaultConfig(), bus, nil)
	fx := effect.NewEngine(effect.NewRegistry(), h, bus, nil)
	enemies := enemy.NewManager(h, fx, bus, nil)
	return &world{
		bus:         bus,
		health:      h,
		effects:     fx,
		enemies:     enemies,
		projectiles: projectile.NewEngine(cfg, enemies, fx, dice.NewSeededSource(3), bus, nil),
	}
}

// standing spawns an enemy with no path, so it never moves.
func (w *world) standing(x, z, hp, armor float64) *enemy.Enemy {
	return w.enemies.Spawn(enemy.Template{ID: "dummy", Health: hp, Speed: 1, Armor: armor, Bounty: 5}, geom.Ground(x, z), nil, enemy.Unscaled)
}

func bullet(target *enemy.Enemy, damage float64) projectile.Launch {
	return projectile.Launch{
		TowerID:  "tower-1",
		Type:     projectile.Bullet,
		Start:    geom.Ground(0, 0),
		Target:   target.Position,
		TargetID: target.ID,
		Damage:   damage,
		Speed:    50,
	}
}

func TestBullet_HitsOnceAndIsRemoved(t *testing.T) {
	w := newWorld(projectile.Config{})
	var hits []projectile.Hit
	removed := 0
	event.On(w.bus, event.ProjectileHit, func(h projectile.Hit) { hits = append(hits, h) })
	event.On(w.bus, event.ProjectileRemoved, func(projectile.Removed) { removed++ })

	target := w.standing(5, 0, 100, 0)
	id := w.projectiles.Create(bullet(target, 25))
	assert.Equal(t, "projectile_1", id)

	w.projectiles.Update(50)
	assert.Len(t, hits, 0, "2.5 units short")
	w.projectiles.Update(50)
	require.Len(t, hits, 1)
	assert.Equal(t, target.ID, hits[0].EnemyID)
	assert.Equal(t, 25.0, hits[0].Damage)
	assert.Equal(t, 75.0, target.Health)

	_, ok := w.projectiles.Get(id)
	assert.False(t, ok)
	for range 5 {
		w.projectiles.Update(50)
	}
	assert.Len(t, hits, 1)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 75.0, target.Health)
}

func TestArmorPiercing_UsesTrueDamage(t *testing.T) {
	w := newWorld(projectile.Config{})
	plated := w.standing(5, 0, 100, 100)
	soft := w.standing(5, 5, 100, 100)

	w.projectiles.Create(bullet(plated, 40))
	w.projectiles.Update(100)
	assert.Equal(t, 80.0, plated.Health, "armor 100 halves physical damage")

	l := bullet(soft, 40)
	l.ArmorPiercing = true
	w.projectiles.Create(l)
	w.projectiles.Update(150)
	assert.Equal(t, 60.0, soft.Health)
}

func TestInstant_ResolvesAtCreationAndLingers(t *testing.T) {
	w := newWorld(projectile.Config{})
	target := w.standing(7, 3, 100, 0)
	l := bullet(target, 40)
	l.Type = projectile.Laser
	id := w.projectiles.Create(l)

	assert.Equal(t, 60.0, target.Health)
	p, ok := w.projectiles.Get(id)
	require.True(t, ok)
	assert.Equal(t, target.Position, p.Position)
	assert.True(t, p.HitTargets[target.ID])

	w.projectiles.Update(50)
	_, ok = w.projectiles.Get(id)
	assert.True(t, ok)
	w.projectiles.Update(60)
	_, ok = w.projectiles.Get(id)
	assert.False(t, ok)
	assert.Equal(t, 60.0, target.Health)
}

func TestInstant_DeadTargetIsNotHit(t *testing.T) {
	w := newWorld(projectile.Config{})
	target := w.standing(3, 0, 10, 0)
	w.enemies.Damage(target.ID, 100, health.DamageOptions{})
	require.False(t, target.Alive)

	hits := 0
	event.On(w.bus, event.ProjectileHit, func(projectile.Hit) { hits++ })
	l := bullet(target, 40)
	l.Type = projectile.Lightning
	w.projectiles.Create(l)
	assert.Zero(t, hits)
}

func TestHit_PublishesKillSplashAndChain(t *testing.T) {
	w := newWorld(projectile.Config{})
	var killed []projectile.EnemyKilled
	var splashes []projectile.Splash
	var chains []projectile.Chain
	event.On(w.bus, event.EnemyKilled, func(k projectile.EnemyKilled) { killed = append(killed, k) })
	event.On(w.bus, event.SplashDamage, func(s projectile.Splash) { splashes = append(splashes, s) })
	event.On(w.bus, event.ChainLightning, func(c projectile.Chain) { chains = append(chains, c) })

	target := w.standing(5, 0, 50, 0)
	l := bullet(target, 80)
	l.SplashRadius = 4
	l.SplashDamage = 0.5
	l.Chain = &projectile.ChainPayload{MaxTargets: 3, Reduction: 0.3}
	w.projectiles.Create(l)
	w.projectiles.Update(100)

	require.Len(t, killed, 1)
	assert.Equal(t, "tower-1", killed[0].TowerID)
	require.Len(t, splashes, 1)
	assert.Equal(t, 40.0, splashes[0].Damage)
	assert.Equal(t, 4.0, splashes[0].Radius)
	assert.Equal(t, target.ID, splashes[0].EpicenterID)
	require.Len(t, chains, 1)
	assert.Equal(t, 4.0, chains[0].Range, "splash radius doubles as chain range")
	assert.Equal(t, 3, chains[0].MaxTargets)
}

func TestChain_DefaultRange(t *testing.T) {
	w := newWorld(projectile.Config{})
	var chains []projectile.Chain
	event.On(w.bus, event.ChainLightning, func(c projectile.Chain) { chains = append(chains, c) })
	target := w.standing(5, 0, 500, 0)
	l := bullet(target, 60)
	l.Type = projectile.Lightning
	l.Chain = &projectile.ChainPayload{MaxTargets: 3, Reduction: 0.3}
	w.projectiles.Create(l)
	require.Len(t, chains, 1)
	assert.Equal(t, 10.0, chains[0].Range)
}

func TestHit_AppliesStatusPayloads(t *testing.T) {
	w := newWorld(projectile.Config{})
	target := w.standing(5, 0, 500, 0)
	l := bullet(target, 20)
	l.Type = projectile.Ice
	l.Slow = &projectile.SlowPayload{Duration: 3000, Amount: 0.5}
	l.Poison = &projectile.PoisonPayload{Duration: 5000, DamagePerSecond: 10}
	w.projectiles.Create(l)
	w.projectiles.Update(100)

	assert.True(t, w.effects.Has(target.ID, effect.Slow))
	assert.True(t, w.effects.Has(target.ID, effect.Poison))
	assert.InDelta(t, 0.5, target.Mods.SpeedMultiplier, 1e-9)
}

func TestCannonball_BouncesOnceThenRemoved(t *testing.T) {
	w := newWorld(projectile.Config{})
	var bounces []projectile.Bounce
	event.On(w.bus, event.ProjectileBounce, func(b projectile.Bounce) { bounces = append(bounces, b) })

	target := w.standing(5, 0, 500, 0)
	l := bullet(target, 80)
	l.Type = projectile.Cannonball
	id := w.projectiles.Create(l)
	w.projectiles.Update(50)
	w.projectiles.Update(50)

	require.Len(t, bounces, 1)
	assert.Equal(t, 0, bounces[0].BouncesRemaining)
	p, ok := w.projectiles.Get(id)
	require.True(t, ok, "a bouncing projectile survives its first hit")
	assert.Less(t, p.Velocity.X, 0.0)
	assert.Less(t, p.Velocity.Y, 0.0, "gravity pulls down")
	assert.Equal(t, 420.0, target.Health)

	// A second enemy behind the launch point catches the ricochet.
	back := w.standing(p.Position.X+p.Velocity.X*0.05, p.Position.Z+p.Velocity.Z*0.05, 100, 0)
	w.projectiles.Update(50)
	assert.Equal(t, 20.0, back.Health)
	_, ok = w.projectiles.Get(id)
	assert.False(t, ok)
}

func TestUpdate_ExpiresByLifetimeAndBounds(t *testing.T) {
	w := newWorld(projectile.Config{Width: 20, Height: 20})
	away := projectile.Launch{Type: projectile.Bullet, Start: geom.Ground(0, 0), Target: geom.Ground(1, 0), Speed: 100}
	id := w.projectiles.Create(away)
	for range 3 {
		w.projectiles.Update(100)
	}
	_, ok := w.projectiles.Get(id)
	assert.True(t, ok, "x=30 is on the margin")
	w.projectiles.Update(100)
	_, ok = w.projectiles.Get(id)
	assert.False(t, ok)

	unbounded := newWorld(projectile.Config{})
	id = unbounded.projectiles.Create(away)
	unbounded.projectiles.Update(5000)
	_, ok = unbounded.projectiles.Get(id)
	assert.True(t, ok)
	unbounded.projectiles.Update(1)
	_, ok = unbounded.projectiles.Get(id)
	assert.False(t, ok)
}

func TestHoming_TurnsTowardTargetAtConstantSpeed(t *testing.T) {
	w := newWorld(projectile.Config{})
	target := w.standing(0, 30, 100, 0)
	l := projectile.Launch{Type: projectile.Missile, Start: geom.Ground(0, 0), Target: geom.Ground(10, 0), TargetID: target.ID, Speed: 10, Damage: 1}
	id := w.projectiles.Create(l)
	for range 5 {
		w.projectiles.Update(100)
	}
	p, ok := w.projectiles.Get(id)
	require.True(t, ok)
	assert.Greater(t, p.Velocity.Z, 0.0)
	assert.InDelta(t, 10, p.Velocity.Len(), 1e-9)
	assert.LessOrEqual(t, len(p.Trail), 5, "trail keeps the last 500 ms")
}

func TestUnknownTypeFliesAsBullet(t *testing.T) {
	w := newWorld(projectile.Config{})
	id := w.projectiles.Create(projectile.Launch{Type: "boomerang", Target: geom.Ground(1, 0), Speed: 1})
	p, _ := w.projectiles.Get(id)
	assert.Equal(t, projectile.Bullet, p.Type)
	assert.False(t, projectile.Type("boomerang").Valid())
	assert.Len(t, projectile.Types(), 7)
}

func TestRemoveClearAndStats(t *testing.T) {
	w := newWorld(projectile.Config{})
	a := w.projectiles.Create(projectile.Launch{TowerID: "t1", Type: projectile.Bullet, Target: geom.Ground(1, 0), Speed: 10})
	w.projectiles.Create(projectile.Launch{TowerID: "t2", Type: projectile.Missile, Target: geom.Ground(1, 0), Speed: 30})
	assert.Len(t, w.projectiles.ByTower("t1"), 1)

	st := w.projectiles.Stats()
	assert.Equal(t, 2, st.Active)
	assert.Equal(t, 20.0, st.AverageSpeed)
	assert.Equal(t, 1, st.ByType[projectile.Missile])

	assert.True(t, w.projectiles.Remove(a))
	assert.False(t, w.projectiles.Remove(a))
	w.projectiles.Clear()
	assert.Empty(t, w.projectiles.Active())
	assert.Equal(t, uint64(2), w.projectiles.Stats().Created)
}

func TestProperty_HitSetOnlyGrows(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		w := newWorld(projectile.Config{})
		n := rapid.IntRange(1, 6).Draw(rt, "enemies")
		for i := range n {
			w.standing(float64(i+1)*rapid.Float64Range(0.5, 2).Draw(rt, "gap"), 0, 1000, 0)
		}
		l := projectile.Launch{Type: projectile.Type(rapid.SampledFrom([]string{"bullet", "cannonball", "missile", "ice"}).Draw(rt, "type")),
			Start: geom.Ground(0, 0), Target: geom.Ground(1, 0), Speed: rapid.Float64Range(5, 60).Draw(rt, "speed"), Damage: 1}
		id := w.projectiles.Create(l)
		seen := 0
		for range 40 {
			w.projectiles.Update(50)
			p, ok := w.projectiles.Get(id)
			if !ok {
				return
			}
			if len(p.HitTargets) < seen {
				rt.Fatalf("hit set shrank from %d to %d", seen, len(p.HitTargets))
			}
			seen = len(p.HitTargets)
			if math.IsNaN(p.Position.X) {
				rt.Fatalf("position became NaN")
			}
		}
	})
}
