package sim

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/cory-johannsen/towerdefense/internal/game/economy"
	"github.com/cory-johannsen/towerdefense/internal/game/effect"
	"github.com/cory-johannsen/towerdefense/internal/game/enemy"
	"github.com/cory-johannsen/towerdefense/internal/game/projectile"
	"github.com/cory-johannsen/towerdefense/internal/game/tower"
	"github.com/cory-johannsen/towerdefense/internal/game/wave"
)

// Snapshot is a read-only structural copy of a simulation at one tick.
type Snapshot struct {
	SessionID   string                  `msgpack:"session_id"`
	Level       int                     `msgpack:"level"`
	Map         string                  `msgpack:"map"`
	Tick        uint64                  `msgpack:"tick"`
	TimeMs      float64                 `msgpack:"time_ms"`
	Enemies     []enemy.Enemy           `msgpack:"enemies"`
	Towers      []tower.Tower           `msgpack:"towers"`
	Projectiles []projectile.Projectile `msgpack:"projectiles"`
	Effects     []effect.Instance       `msgpack:"effects"`
	Ledger      economy.Snapshot        `msgpack:"ledger"`
	Wave        wave.Stats              `msgpack:"wave"`
	Queue       []wave.SpawnEvent       `msgpack:"queue"`
	Results     []wave.Results          `msgpack:"results"`
	GameOver    bool                    `msgpack:"game_over"`
}

// Snapshot copies the current state of every engine.
//
// Postcondition: every slice and map in the result is freshly allocated.
func (s *Simulation) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		SessionID: s.id,
		Level:     s.lvl.Number,
		Map:       s.lvl.Map.ID,
		Tick:      s.tick,
		TimeMs:    s.now,
		Effects:   s.effects.All(),
		Ledger:    s.ledger.Snapshot(),
		Wave:      s.waves.Stats(),
		Queue:     s.waves.Queue(),
		Results:   s.waves.Results(),
		GameOver:  s.over,
	}
	for _, e := range s.enemies.All() {
		snap.Enemies = append(snap.Enemies, e.Clone())
	}
	for _, t := range s.towers.All() {
		c := *t
		c.Upgrades = append(c.Upgrades[:0:0], t.Upgrades...)
		c.Mods = nil
		snap.Towers = append(snap.Towers, c)
	}
	for _, p := range s.projectiles.Active() {
		c := *p
		c.HitTargets = make(map[string]bool, len(p.HitTargets))
		for k, v := range p.HitTargets {
			c.HitTargets[k] = v
		}
		c.Trail = append(c.Trail[:0:0], p.Trail...)
		snap.Projectiles = append(snap.Projectiles, c)
	}
	return snap
}

// Marshal encodes snap with msgpack.
func (snap Snapshot) Marshal() ([]byte, error) {
	b, err := msgpack.Marshal(&snap)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return b, nil
}

// UnmarshalSnapshot decodes a snapshot written by Marshal.
func UnmarshalSnapshot(b []byte) (Snapshot, error) {
	var snap Snapshot
	if err := msgpack.Unmarshal(b, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return snap, nil
}
