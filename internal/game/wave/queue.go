// Package wave schedules enemy spawns for the waves of a level, detects wave
// completion and grants wave and level rewards.
package wave

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/cory-johannsen/towerdefense/internal/game/level"
)

// SpawnEvent is one scheduled enemy spawn. ScheduledTime is measured in ms
// from the moment the wave begins spawning.
type SpawnEvent struct {
	EnemyType     string  `msgpack:"enemy_type"`
	ScheduledTime float64 `msgpack:"scheduled_time"`
	Spawned       bool    `msgpack:"spawned"`
	GroupIndex    int     `msgpack:"group_index"`
}

// Expand flattens groups into a spawn queue sorted by ScheduledTime. Events
// due at the same time keep group order.
//
// Postcondition: len(result) equals the sum of every group's Count.
func Expand(groups []level.Group) []SpawnEvent {
	var out []SpawnEvent
	for gi, g := range groups {
		interval := g.Interval
		if interval <= 0 {
			interval = level.DefaultSpawnInterval
		}
		for i := 0; i < g.Count; i++ {
			out = append(out, SpawnEvent{
				EnemyType:     g.Type,
				ScheduledTime: g.Delay + float64(i)*interval,
				GroupIndex:    gi,
			})
		}
	}
	slices.SortStableFunc(out, func(a, b SpawnEvent) int {
		return cmp.Compare(a.ScheduledTime, b.ScheduledTime)
	})
	return out
}

// Describe summarises a wave as "N enemies (type, type)".
func Describe(w level.WaveDefinition) string {
	return fmt.Sprintf("%d enemies (%s)", w.EnemyCount(), strings.Join(w.EnemyTypes(), ", "))
}
