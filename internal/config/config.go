// Package config provides Viper-based configuration loading for the simulation server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds top-level server settings.
type ServerConfig struct {
	// Mode is the server operation mode: "headless" runs the simulation loop,
	// "validate" loads content and exits.
	Mode string `mapstructure:"mode"`
	// Name identifies this simulation server instance in logs and snapshots.
	Name string `mapstructure:"name"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// SimulationConfig holds tick driver settings.
type SimulationConfig struct {
	// TickInterval is the wall-clock period between simulation ticks.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// MaxDelta clamps the simulated time advanced by a single tick.
	MaxDelta time.Duration `mapstructure:"max_delta"`
	// Seed seeds the deterministic random source; 0 selects the crypto source.
	Seed uint64 `mapstructure:"seed"`
}

// PathfindingConfig holds grid and A* search settings.
type PathfindingConfig struct {
	CellSize        float64       `mapstructure:"cell_size"`
	AllowDiagonal   bool          `mapstructure:"allow_diagonal"`
	HeuristicWeight float64       `mapstructure:"heuristic_weight"`
	MaxSearchNodes  int           `mapstructure:"max_search_nodes"`
	MaxSearchTime   time.Duration `mapstructure:"max_search_time"`
	CacheSize       int           `mapstructure:"cache_size"`
	Clearance       float64       `mapstructure:"clearance"`
}

// CombatConfig holds damage resolution tuning.
type CombatConfig struct {
	// CriticalMultiplier scales critical hits before mitigation.
	CriticalMultiplier float64 `mapstructure:"critical_multiplier"`
	// LowHealthThreshold is the health ratio at or below which an entity counts as low health.
	LowHealthThreshold float64 `mapstructure:"low_health_threshold"`
}

// SmartWeights holds the weights of the composite "smart" targeting score.
type SmartWeights struct {
	Range    float64 `mapstructure:"range"`
	Kill     float64 `mapstructure:"kill"`
	Health   float64 `mapstructure:"health"`
	Progress float64 `mapstructure:"progress"`
	Value    float64 `mapstructure:"value"`
}

// TargetingConfig holds targeting selector settings.
type TargetingConfig struct {
	// DefaultMode is the strategy bound to towers with no explicit mode.
	DefaultMode  string       `mapstructure:"default_mode"`
	SmartWeights SmartWeights `mapstructure:"smart_weights"`
}

// WavesConfig holds wave scheduler timing.
type WavesConfig struct {
	PreWaveDelay   time.Duration `mapstructure:"pre_wave_delay"`
	AutoStart      bool          `mapstructure:"auto_start"`
	AutoStartDelay time.Duration `mapstructure:"auto_start_delay"`
}

// EconomyConfig holds the starting resource ledger.
type EconomyConfig struct {
	StartingGold    int `mapstructure:"starting_gold"`
	StartingEnergy  int `mapstructure:"starting_energy"`
	StartingLives   int `mapstructure:"starting_lives"`
	GoldPerSecond   int `mapstructure:"gold_per_second"`
	EnergyPerSecond int `mapstructure:"energy_per_second"`
}

// ContentConfig holds the YAML content directories.
type ContentConfig struct {
	EffectsDir string `mapstructure:"effects_dir"`
	EnemiesDir string `mapstructure:"enemies_dir"`
	TowersDir  string `mapstructure:"towers_dir"`
	WavesDir   string `mapstructure:"waves_dir"`
	MapsDir    string `mapstructure:"maps_dir"`
	LevelsDir  string `mapstructure:"levels_dir"`
}

// ScriptingConfig holds Lua hook settings.
type ScriptingConfig struct {
	// ScriptDir is the directory of global Lua scripts; empty disables scripting.
	ScriptDir string `mapstructure:"script_dir"`
	// InstructionLimit caps opcodes per hook call; 0 uses the package default.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// PersistenceConfig holds snapshot persistence settings.
type PersistenceConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
}

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Simulation  SimulationConfig  `mapstructure:"simulation"`
	Pathfinding PathfindingConfig `mapstructure:"pathfinding"`
	Combat      CombatConfig      `mapstructure:"combat"`
	Targeting   TargetingConfig   `mapstructure:"targeting"`
	Waves       WavesConfig       `mapstructure:"waves"`
	Economy     EconomyConfig     `mapstructure:"economy"`
	Content     ContentConfig     `mapstructure:"content"`
	Scripting   ScriptingConfig   `mapstructure:"scripting"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Persistence.Enabled {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateSimulation(c.Simulation); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validatePathfinding(c.Pathfinding); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateCombat(c.Combat); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateTargeting(c.Targeting); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateWaves(c.Waves); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateEconomy(c.Economy); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Persistence.Enabled && c.Persistence.SnapshotInterval <= 0 {
		errs = append(errs, "persistence.snapshot_interval must be > 0 when persistence is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	validModes := map[string]bool{"headless": true, "validate": true}
	if !validModes[s.Mode] {
		return fmt.Errorf("server.mode must be one of [headless, validate], got %q", s.Mode)
	}
	if s.Name == "" {
		return errors.New("server.name must not be empty")
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateSimulation(s SimulationConfig) error {
	var errs []string
	if s.TickInterval <= 0 {
		errs = append(errs, fmt.Sprintf("simulation.tick_interval must be > 0, got %s", s.TickInterval))
	}
	if s.MaxDelta <= 0 {
		errs = append(errs, fmt.Sprintf("simulation.max_delta must be > 0, got %s", s.MaxDelta))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validatePathfinding(p PathfindingConfig) error {
	var errs []string
	if p.CellSize < 0.5 {
		errs = append(errs, fmt.Sprintf("pathfinding.cell_size must be >= 0.5, got %g", p.CellSize))
	}
	if p.HeuristicWeight < 0.1 {
		errs = append(errs, fmt.Sprintf("pathfinding.heuristic_weight must be >= 0.1, got %g", p.HeuristicWeight))
	}
	if p.MaxSearchNodes < 1 {
		errs = append(errs, fmt.Sprintf("pathfinding.max_search_nodes must be >= 1, got %d", p.MaxSearchNodes))
	}
	if p.MaxSearchTime <= 0 {
		errs = append(errs, "pathfinding.max_search_time must be > 0")
	}
	if p.CacheSize < 1 {
		errs = append(errs, fmt.Sprintf("pathfinding.cache_size must be >= 1, got %d", p.CacheSize))
	}
	if p.Clearance < 0 {
		errs = append(errs, "pathfinding.clearance must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateCombat(c CombatConfig) error {
	var errs []string
	if c.CriticalMultiplier < 1 {
		errs = append(errs, fmt.Sprintf("combat.critical_multiplier must be >= 1, got %g", c.CriticalMultiplier))
	}
	if c.LowHealthThreshold <= 0 || c.LowHealthThreshold >= 1 {
		errs = append(errs, fmt.Sprintf("combat.low_health_threshold must be in (0, 1), got %g", c.LowHealthThreshold))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateTargeting(t TargetingConfig) error {
	validModes := map[string]bool{
		"closest": true, "strongest": true, "weakest": true, "first": true, "last": true,
		"fastest": true, "slowest": true, "highest_value": true, "random": true, "smart": true,
	}
	if !validModes[t.DefaultMode] {
		return fmt.Errorf("targeting.default_mode %q is not a known targeting mode", t.DefaultMode)
	}
	w := t.SmartWeights
	if w.Range < 0 || w.Kill < 0 || w.Health < 0 || w.Progress < 0 || w.Value < 0 {
		return errors.New("targeting.smart_weights must not be negative")
	}
	return nil
}

func validateWaves(w WavesConfig) error {
	var errs []string
	if w.PreWaveDelay < time.Second {
		errs = append(errs, fmt.Sprintf("waves.pre_wave_delay must be >= 1s, got %s", w.PreWaveDelay))
	}
	if w.AutoStartDelay < time.Second {
		errs = append(errs, fmt.Sprintf("waves.auto_start_delay must be >= 1s, got %s", w.AutoStartDelay))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateEconomy(e EconomyConfig) error {
	var errs []string
	if e.StartingGold < 0 {
		errs = append(errs, "economy.starting_gold must not be negative")
	}
	if e.StartingEnergy < 0 {
		errs = append(errs, "economy.starting_energy must not be negative")
	}
	if e.StartingLives < 1 {
		errs = append(errs, fmt.Sprintf("economy.starting_lives must be >= 1, got %d", e.StartingLives))
	}
	if e.GoldPerSecond < 0 || e.EnergyPerSecond < 0 {
		errs = append(errs, "economy income rates must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with TD_ prefix
	v.SetEnvPrefix("TD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Default returns the configuration produced by defaults alone, without a file.
//
// Postcondition: Returns a Config that passes Validate.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults are static; Unmarshal cannot fail on them.
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "headless")
	v.SetDefault("server.name", "towerdefense")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "towerdefense")
	v.SetDefault("database.password", "towerdefense")
	v.SetDefault("database.name", "towerdefense")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("simulation.tick_interval", "50ms")
	v.SetDefault("simulation.max_delta", "100ms")
	v.SetDefault("simulation.seed", 0)

	v.SetDefault("pathfinding.cell_size", 1.0)
	v.SetDefault("pathfinding.allow_diagonal", true)
	v.SetDefault("pathfinding.heuristic_weight", 1.0)
	v.SetDefault("pathfinding.max_search_nodes", 1000)
	v.SetDefault("pathfinding.max_search_time", "50ms")
	v.SetDefault("pathfinding.cache_size", 100)
	v.SetDefault("pathfinding.clearance", 0.5)

	v.SetDefault("combat.critical_multiplier", 2.0)
	v.SetDefault("combat.low_health_threshold", 0.25)

	v.SetDefault("targeting.default_mode", "closest")
	v.SetDefault("targeting.smart_weights.range", 0.3)
	v.SetDefault("targeting.smart_weights.kill", 0.4)
	v.SetDefault("targeting.smart_weights.health", 0.2)
	v.SetDefault("targeting.smart_weights.progress", 0.2)
	v.SetDefault("targeting.smart_weights.value", 0.1)

	v.SetDefault("waves.pre_wave_delay", "5s")
	v.SetDefault("waves.auto_start", false)
	v.SetDefault("waves.auto_start_delay", "3s")

	v.SetDefault("economy.starting_gold", 100)
	v.SetDefault("economy.starting_energy", 50)
	v.SetDefault("economy.starting_lives", 3)
	v.SetDefault("economy.gold_per_second", 2)
	v.SetDefault("economy.energy_per_second", 1)

	v.SetDefault("content.effects_dir", "content/effects")
	v.SetDefault("content.enemies_dir", "content/enemies")
	v.SetDefault("content.towers_dir", "content/towers")
	v.SetDefault("content.waves_dir", "content/waves")
	v.SetDefault("content.maps_dir", "content/maps")
	v.SetDefault("content.levels_dir", "content/levels")

	v.SetDefault("scripting.script_dir", "content/scripts")
	v.SetDefault("scripting.instruction_limit", 0)

	v.SetDefault("persistence.enabled", false)
	v.SetDefault("persistence.snapshot_interval", "30s")
}
