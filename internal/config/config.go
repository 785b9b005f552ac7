package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "MOS"

type Config struct {
	Addr           string `mapstructure:"addr"`
	LocalStorePath string `mapstructure:"local_store_path"`
	// RemoteBackend selects the snapshot mirror: "postgres", "mongo", or
	// empty for none.
	RemoteBackend string `mapstructure:"remote_backend"`
	DatabaseURL   string `mapstructure:"database_url"`
	MongoURL      string `mapstructure:"mongo_url"`
	MongoDatabase string `mapstructure:"mongo_database"`
	// RedisURL empty = in-process bus.
	RedisURL       string        `mapstructure:"redis_url"`
	BusChannel     string        `mapstructure:"bus_channel"`
	DebounceWindow time.Duration `mapstructure:"debounce_window"`

	JWTSecret          string        `mapstructure:"jwt_secret"`
	AccessTTL          time.Duration `mapstructure:"access_ttl"`
	DefaultAdminSecret string        `mapstructure:"default_admin_secret"`
	CORSOrigin         string        `mapstructure:"cors_origin"`

	MeiliURL       string `mapstructure:"meili_url"`
	MeiliMasterKey string `mapstructure:"meili_master_key"`

	ArchiveEndpoint  string `mapstructure:"archive_endpoint"`
	ArchiveAccessKey string `mapstructure:"archive_access_key"`
	ArchiveSecretKey string `mapstructure:"archive_secret_key"`
	ArchiveBucket    string `mapstructure:"archive_bucket"`
	ArchiveUseSSL    bool   `mapstructure:"archive_use_ssl"`

	// StreamRateLimit is WebSocket upgrades per second per client address.
	StreamRateLimit float64 `mapstructure:"stream_rate_limit"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// SetDefaults registers every key on v, so AutomaticEnv can see them and
// Unmarshal fills the whole struct.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8787")
	v.SetDefault("local_store_path", "./data/content.db")
	v.SetDefault("remote_backend", "")
	v.SetDefault("database_url", "")
	v.SetDefault("mongo_url", "")
	v.SetDefault("mongo_database", "milesofsmiles")
	v.SetDefault("redis_url", "")
	v.SetDefault("bus_channel", "mos:storage")
	v.SetDefault("debounce_window", time.Second)
	v.SetDefault("jwt_secret", "mos-dev-secret")
	v.SetDefault("access_ttl", 12*time.Hour)
	v.SetDefault("default_admin_secret", "admin123")
	v.SetDefault("cors_origin", "*")
	v.SetDefault("meili_url", "")
	v.SetDefault("meili_master_key", "")
	v.SetDefault("archive_endpoint", "")
	v.SetDefault("archive_access_key", "")
	v.SetDefault("archive_secret_key", "")
	v.SetDefault("archive_bucket", "mos-snapshots")
	v.SetDefault("archive_use_ssl", false)
	v.SetDefault("stream_rate_limit", 2.0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// New returns a viper instance with defaults and MOS_* environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.RemoteBackend = strings.ToLower(strings.TrimSpace(cfg.RemoteBackend))
	return cfg, cfg.Validate()
}

// Defaults is the configuration with nothing set.
func Defaults() Config {
	cfg, _ := Load(New())
	return cfg
}

func (c Config) Validate() error {
	switch c.RemoteBackend {
	case "":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("remote_backend postgres needs database_url")
		}
	case "mongo":
		if c.MongoURL == "" {
			return fmt.Errorf("remote_backend mongo needs mongo_url")
		}
	default:
		return fmt.Errorf("unknown remote_backend %q", c.RemoteBackend)
	}
	if c.DebounceWindow <= 0 {
		return fmt.Errorf("debounce_window must be positive")
	}
	if c.AccessTTL <= 0 {
		return fmt.Errorf("access_ttl must be positive")
	}
	return nil
}

// ArchiveEnabled reports whether snapshot archiving has an object store.
func (c Config) ArchiveEnabled() bool {
	return c.ArchiveEndpoint != "" && c.ArchiveBucket != ""
}
