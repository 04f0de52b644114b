// Package config loads Typephoon's YAML configuration, grouped the way
// spec §6 groups it: db, redis, amqp, game, token, server/cors.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full set of recognized options (spec §6).
type Config struct {
	DB     DatabaseConfig `yaml:"db"`
	Redis  RedisConfig    `yaml:"redis"`
	AMQP   AMQPConfig     `yaml:"amqp"`
	Game   GameConfig     `yaml:"game"`
	Token  TokenConfig    `yaml:"token"`
	Server ServerConfig   `yaml:"server"`
	CORS   CORSConfig     `yaml:"cors"`

	FrontEndEndpoint string `yaml:"front_end_endpoint"`
	ErrorRedirect    string `yaml:"error_redirect"`

	BG     BGConfig     `yaml:"bg"`
	Google GoogleConfig `yaml:"google"`
}

// GoogleConfig holds the OAuth client registration used by AuthService's
// Google provider (spec §1 "OAuth login" non-goal excludes building our
// own identity provider, not calling out to an existing one).
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// DatabaseConfig holds the relational store's DSN parameters.
type DatabaseConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       string `yaml:"db"`
	PoolSize int32  `yaml:"pool_size"`
}

// DSN assembles the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.Username, d.Password, d.Host, d.Port, d.DB,
	)
	if d.PoolSize > 0 {
		dsn += fmt.Sprintf("&pool_max_conns=%d", d.PoolSize)
	}
	return dsn
}

// RedisConfig holds cache connection and TTL parameters (spec §3).
type RedisConfig struct {
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	DB                    int    `yaml:"db"`
	ExpireTime            int    `yaml:"expire_time"`               // seconds, LobbyCacheEntry TTL
	InGameCacheExpireTime int    `yaml:"in_game_cache_expire_time"` // seconds, GameCacheEntry TTL
	ResultCacheExpireTime int    `yaml:"result_cache_expire_time"`  // seconds, result read-cache TTL
}

// Addr returns the host:port pair go-redis expects.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// AMQPConfig holds broker connection and every queue/exchange name (spec §6).
type AMQPConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	VHost    string `yaml:"vhost"`

	PrefetchCount int `yaml:"prefetch_count"`

	LobbyNotifyExchange    string `yaml:"lobby_notify_exchange"`
	LobbyCountdownExchange string `yaml:"lobby_countdown_exchange"`
	GameStartExchange      string `yaml:"game_start_exchange"`
	KeystrokeExchange      string `yaml:"keystroke_exchange"`
	GameCleanupExchange    string `yaml:"game_cleanup_exchange"`

	LobbyCountdownWaitQueue string `yaml:"lobby_countdown_wait_queue"`
	LobbyCountdownQueue     string `yaml:"lobby_countdown_queue"`
	GameStartWaitQueue      string `yaml:"game_start_wait_queue"`
	GameStartQueue          string `yaml:"game_start_queue"`
	GameCleanupWaitQueue    string `yaml:"game_cleanup_wait_queue"`
	GameCleanupQueue        string `yaml:"game_cleanup_queue"`
}

// URL assembles the amqp091-go connection URL.
func (a AMQPConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s", a.User, a.Password, a.Host, a.Port, a.VHost)
}

// GameConfig holds matchmaking/timer parameters (spec §6, §4).
type GameConfig struct {
	StartCountdown   int    `yaml:"start_countdown"` // seconds
	LobbyCountdown   int    `yaml:"lobby_countdown"` // seconds
	PlayerLimit      int    `yaml:"player_limit"`
	CleanupCountdown int    `yaml:"cleanup_countdown"` // seconds
	WordFile         string `yaml:"word_file"`
}

// TokenConfig holds JWT keys and durations (spec §6).
type TokenConfig struct {
	PublicKey       string        `yaml:"public_key"`
	PrivateKey      string        `yaml:"private_key"`
	RefreshEndpoint string        `yaml:"refresh_endpoint"`
	AccessDuration  time.Duration `yaml:"access_duration"`
	RefreshDuration time.Duration `yaml:"refresh_duration"`
}

// ServerConfig holds per-instance identity and bind options.
type ServerConfig struct {
	Port       int    `yaml:"port"`
	ServerName string `yaml:"server_name"`
	LogLevel   string `yaml:"log_level"`
}

// CORSConfig holds the allowed origins for the gin HTTP surface.
type CORSConfig struct {
	AllowOrigins []string `yaml:"allow_origins"`
}

// BGConfig holds SessionConnection/Group timing (spec §5).
type BGConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
}

// Load reads and parses a YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Game.PlayerLimit <= 0 {
		cfg.Game.PlayerLimit = 5
	}
	if cfg.Game.LobbyCountdown <= 0 {
		cfg.Game.LobbyCountdown = 30
	}
	if cfg.Game.StartCountdown <= 0 {
		cfg.Game.StartCountdown = 5
	}
	if cfg.Game.CleanupCountdown <= 0 {
		cfg.Game.CleanupCountdown = 300
	}
	if cfg.Token.AccessDuration <= 0 {
		cfg.Token.AccessDuration = 15 * time.Minute
	}
	if cfg.Token.RefreshDuration <= 0 {
		cfg.Token.RefreshDuration = 7 * 24 * time.Hour
	}
	if cfg.BG.PingInterval <= 0 {
		cfg.BG.PingInterval = 20 * time.Second
	}
	if cfg.AMQP.PrefetchCount <= 0 {
		cfg.AMQP.PrefetchCount = 10
	}
	if cfg.Redis.ExpireTime <= 0 {
		cfg.Redis.ExpireTime = 120
	}
	if cfg.Redis.InGameCacheExpireTime <= 0 {
		cfg.Redis.InGameCacheExpireTime = 3600
	}
	if cfg.Redis.ResultCacheExpireTime <= 0 {
		cfg.Redis.ResultCacheExpireTime = 3600
	}
}
