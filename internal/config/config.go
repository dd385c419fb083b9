package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env       string `mapstructure:"env"`
	Port      int    `mapstructure:"port"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	GroupIDPrefix string   `mapstructure:"group_id_prefix"`
}

type FeedConfig struct {
	// Driver selects the live-feed adapter: "mongo" (query + redis
	// change signal) or "kafka" (topic tail).
	Driver        string `mapstructure:"driver"`
	BackfillLimit int64  `mapstructure:"backfill_limit"`
}

type RateLimitConfig struct {
	PerMinute int `mapstructure:"per_minute"`
	Burst     int `mapstructure:"burst"`
}

type DirectoryConfig struct {
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
	CacheTTL        time.Duration
}

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Feed      FeedConfig      `mapstructure:"feed"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Directory DirectoryConfig `mapstructure:"directory"`
}

func (a AppConfig) PortString() string { return strconv.Itoa(a.Port) }

func (a AppConfig) Development() bool {
	return a.Env == "" || a.Env == "dev" || a.Env == "development"
}

// Load reads the yaml config at path and applies APP_ env overrides
// (APP_REDIS_ADDR overrides redis.addr, etc). A missing file is fine;
// defaults and env cover local runs.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8084)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "dancehub")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.prefix", "inbox")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "chat.message-events")
	v.SetDefault("kafka.group_id_prefix", "inbox-service")
	v.SetDefault("feed.driver", "mongo")
	v.SetDefault("feed.backfill_limit", 500)
	v.SetDefault("ratelimit.per_minute", 300)
	v.SetDefault("ratelimit.burst", 20)
	v.SetDefault("directory.cache_ttl_seconds", 300)

	// tolerate a missing file, not a broken one
	if _, statErr := os.Stat(path); statErr == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	c.Directory.CacheTTL = time.Duration(c.Directory.CacheTTLSeconds) * time.Second
	return &c, nil
}
