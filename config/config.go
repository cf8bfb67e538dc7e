package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Security    SecurityConfig    `mapstructure:"security"`
	Battle      BattleConfig      `mapstructure:"battle"`
	Progression ProgressionConfig `mapstructure:"progression"`
	Learnset    LearnsetConfig    `mapstructure:"learnset"`
}

type ServerConfig struct {
	Port  int  `mapstructure:"port"`
	Debug bool `mapstructure:"debug"`
	// AdminKey enables /api/admin when non-empty (X-Admin-Key header).
	AdminKey string `mapstructure:"admin_key"`
	// AdminIPs restricts /api/admin to these addresses or CIDR ranges when set.
	AdminIPs []string `mapstructure:"admin_ips"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type SecurityConfig struct {
	// JWTSecret enables token auth on battle routes when non-empty.
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// BattleConfig holds the game-balance constants of the battle engine.
type BattleConfig struct {
	Level       int     `mapstructure:"level"`
	VarianceMin float64 `mapstructure:"variance_min"`
	VarianceMax float64 `mapstructure:"variance_max"`
	STAB        float64 `mapstructure:"stab"`
	DefaultPP   int     `mapstructure:"default_pp"`

	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"` // 0 = battles never expire
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	RequireRoster bool          `mapstructure:"require_roster"` // only roster slots 1-6 may battle

	DrowsinessPenaltyStep int `mapstructure:"drowsiness_penalty_step"` // percent per count
	DrowsinessPenaltyMax  int `mapstructure:"drowsiness_penalty_max"`  // percent cap
}

type ProgressionConfig struct {
	ExpPerLevel        int `mapstructure:"exp_per_level"`
	UserVictoryExp     int `mapstructure:"user_victory_exp"`
	CreatureVictoryExp int `mapstructure:"creature_victory_exp"`
	// EvolutionLevels maps an evolution stage to the level required to leave it.
	EvolutionLevels map[int]int `mapstructure:"evolution_levels"`
}

type LearnsetConfig struct {
	Provider       string        `mapstructure:"provider"` // catalog | pokeapi
	PokeAPIBaseURL string        `mapstructure:"pokeapi_base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxEntries     int           `mapstructure:"max_entries"`
	MaxCandidates  int           `mapstructure:"max_candidates"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if len(cfg.Progression.EvolutionLevels) == 0 {
		cfg.Progression.EvolutionLevels = DefaultEvolutionLevels()
	}
	return cfg, nil
}

// DefaultEvolutionLevels is stage 1 → 2 at level 5 and stage 2 → 3 at level 10.
func DefaultEvolutionLevels() map[int]int {
	return map[int]int{1: 5, 2: 10}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/studymon.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)

	v.SetDefault("battle.level", 50)
	v.SetDefault("battle.variance_min", 0.85)
	v.SetDefault("battle.variance_max", 1.0)
	v.SetDefault("battle.stab", 1.5)
	v.SetDefault("battle.default_pp", 10)
	v.SetDefault("battle.lock_ttl", "10s")
	v.SetDefault("battle.idle_timeout", "0s")
	v.SetDefault("battle.sweep_interval", "1m")
	v.SetDefault("battle.require_roster", true)
	v.SetDefault("battle.drowsiness_penalty_step", 10)
	v.SetDefault("battle.drowsiness_penalty_max", 50)

	v.SetDefault("progression.exp_per_level", 100)
	v.SetDefault("progression.user_victory_exp", 1)
	v.SetDefault("progression.creature_victory_exp", 5)

	v.SetDefault("learnset.provider", "catalog")
	v.SetDefault("learnset.pokeapi_base_url", "https://pokeapi.co/api/v2")
	v.SetDefault("learnset.timeout", "10s")
	v.SetDefault("learnset.max_entries", 50)
	v.SetDefault("learnset.max_candidates", 20)
	v.SetDefault("learnset.cache_ttl", "24h")
}
