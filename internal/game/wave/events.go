package wave

import (
	"github.com/cory-johannsen/towerdefense/internal/game/event"
	"github.com/cory-johannsen/towerdefense/internal/game/level"
)

// Started is published when a wave is queued and its pre-wave delay begins.
type Started struct {
	Wave         int
	Name         string
	TotalEnemies int
	PreWaveDelay float64
	Boss         bool
}

func (Started) EventType() event.Type { return event.WaveStart }

// SpawningBegan is published when the pre-wave delay ends.
type SpawningBegan struct {
	Wave int
}

func (SpawningBegan) EventType() event.Type { return event.WaveSpawningBegan }

// Spawned is published for every enemy the scheduler creates.
type Spawned struct {
	Wave       int
	EnemyID    string
	EnemyType  string
	GroupIndex int
}

func (Spawned) EventType() event.Type { return event.EnemySpawned }

// Completed carries the results of a finished wave.
type Completed struct {
	Results Results
}

func (Completed) EventType() event.Type { return event.WaveComplete }

// LevelCompleted is published after the last wave of a level.
type LevelCompleted struct {
	Level   int
	Waves   int
	Rewards level.Rewards
}

func (LevelCompleted) EventType() event.Type { return event.LevelComplete }

type Paused struct {
	Wave int
}

func (Paused) EventType() event.Type { return event.WavePaused }

type Resumed struct {
	Wave int
}

func (Resumed) EventType() event.Type { return event.WaveResumed }

// Skipped is published when the remaining spawns of a wave are dropped.
type Skipped struct {
	Wave      int
	Unspawned int
}

func (Skipped) EventType() event.Type { return event.WaveSkipped }
