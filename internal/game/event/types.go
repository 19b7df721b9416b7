package event

// Health engine events.
const (
	DamageTaken        Type = "damageTaken"
	Healed             Type = "healed"
	HealthChanged      Type = "healthChanged"
	StatsModified      Type = "statsModified"
	EntityDied         Type = "entityDied"
	EntityRegistered   Type = "entityRegistered"
	EntityUnregistered Type = "entityUnregistered"
)

// Status effect engine events.
const (
	EffectApplied     Type = "effectApplied"
	EffectRemoved     Type = "effectRemoved"
	EffectTick        Type = "effectTick"
	AllEffectsCleared Type = "allEffectsCleared"
)

// Targeting selector events.
const (
	TargetingModeChanged   Type = "targetingModeChanged"
	TargetingTowerRemoved  Type = "towerRemoved"
	AllTargetingModesReset Type = "allTargetingModesReset"
)

// Projectile engine events.
const (
	ProjectileCreated Type = "projectileCreated"
	ProjectileHit     Type = "projectileHit"
	EnemyKilled       Type = "enemyKilled"
	SplashDamage      Type = "splashDamage"
	ChainLightning    Type = "chainLightning"
	ProjectileBounce  Type = "projectileBounce"
	ProjectileRemoved Type = "projectileRemoved"
)

// Tower engine events.
const (
	TowerPlaced      Type = "towerPlaced"
	TowerBuilt       Type = "towerBuilt"
	TowerUpgraded    Type = "towerUpgraded"
	TowerSold        Type = "towerSold"
	TowerAttack      Type = "towerAttack"
	AllTowersCleared Type = "allTowersCleared"
)

// Wave scheduler events.
const (
	WaveStart         Type = "waveStart"
	WaveSpawningBegan Type = "waveSpawningBegan"
	EnemySpawned      Type = "enemySpawned"
	WaveComplete      Type = "waveComplete"
	LevelComplete     Type = "levelComplete"
	WavePaused        Type = "wavePaused"
	WaveResumed       Type = "waveResumed"
	WaveSkipped       Type = "waveSkipped"
)

// Enemy and economy events.
const (
	EnemyReachedEnd       Type = "enemyReachedEnd"
	AbilityUsed           Type = "abilityUsed"
	ResourceChanged       Type = "resourceChanged"
	InsufficientResources Type = "insufficientResources"
	GameOver              Type = "gameOver"
)
