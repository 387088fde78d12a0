package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Game     GameConfig     `mapstructure:"game"`
	Guard    GuardConfig    `mapstructure:"guard"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

type AdminConfig struct {
	DefaultUsername string `mapstructure:"defaultUsername"`
	DefaultPassword string `mapstructure:"defaultPassword"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int    `mapstructure:"expire"` // hours
}

// GameConfig carries the round state machine timings and scoring knobs.
// Delays are configurable to zero so tests can drive transitions
// synchronously.
type GameConfig struct {
	DeckCount     int           `mapstructure:"deckCount"`
	TurnSeconds   int           `mapstructure:"turnSeconds"`
	TossDelay     time.Duration `mapstructure:"tossDelay"`
	DealDelay     time.Duration `mapstructure:"dealDelay"`
	BotMoveDelay  time.Duration `mapstructure:"botMoveDelay"`
	FirstDropPts  int           `mapstructure:"firstDropPoints"`
	MiddleDropPts int           `mapstructure:"middleDropPoints"`
	MaxPoints     int           `mapstructure:"maxPoints"`
	RakePercent   float64       `mapstructure:"rakePercent"`
	JoinOrderToss bool          `mapstructure:"joinOrderToss"`
	DealsPerMatch int           `mapstructure:"dealsPerMatch"`
	PoolThreshold int           `mapstructure:"poolThreshold"`
}

// GuardConfig carries the session/protocol guard knobs.
type GuardConfig struct {
	RateLimitInterval time.Duration `mapstructure:"rateLimitInterval"`
	DedupWindow       time.Duration `mapstructure:"dedupWindow"`
	DedupMaxKeys      int           `mapstructure:"dedupMaxKeys"`
	ReconnectGrace    time.Duration `mapstructure:"reconnectGrace"`
}

var GlobalConfig *Config

func LoadConfig(path string) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	setGameDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file, %s", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}
	GlobalConfig = &cfg
}

func setGameDefaults() {
	viper.SetDefault("game.deckCount", 2)
	viper.SetDefault("game.turnSeconds", 30)
	viper.SetDefault("game.tossDelay", 3*time.Second)
	viper.SetDefault("game.dealDelay", 2*time.Second)
	viper.SetDefault("game.botMoveDelay", 1500*time.Millisecond)
	viper.SetDefault("game.firstDropPoints", 20)
	viper.SetDefault("game.middleDropPoints", 40)
	viper.SetDefault("game.maxPoints", 80)
	viper.SetDefault("game.rakePercent", 0.10)
	viper.SetDefault("game.dealsPerMatch", 2)
	viper.SetDefault("game.poolThreshold", 101)
	viper.SetDefault("guard.rateLimitInterval", 300*time.Millisecond)
	viper.SetDefault("guard.dedupWindow", 30*time.Second)
	viper.SetDefault("guard.dedupMaxKeys", 512)
	viper.SetDefault("guard.reconnectGrace", 30*time.Second)
}

// DefaultGame returns the standing scoring/timing defaults without going
// through viper. Tests use it as a baseline and zero out the delays.
func DefaultGame() GameConfig {
	return GameConfig{
		DeckCount:     2,
		TurnSeconds:   30,
		TossDelay:     3 * time.Second,
		DealDelay:     2 * time.Second,
		BotMoveDelay:  1500 * time.Millisecond,
		FirstDropPts:  20,
		MiddleDropPts: 40,
		MaxPoints:     80,
		RakePercent:   0.10,
		DealsPerMatch: 2,
		PoolThreshold: 101,
	}
}

// DefaultGuard mirrors the guard defaults for tests.
func DefaultGuard() GuardConfig {
	return GuardConfig{
		RateLimitInterval: 300 * time.Millisecond,
		DedupWindow:       30 * time.Second,
		DedupMaxKeys:      512,
		ReconnectGrace:    30 * time.Second,
	}
}
