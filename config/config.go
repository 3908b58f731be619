// Package config loads gateway settings from the environment and an optional
// YAML file. Keys are the plain environment variable names, lower-cased in
// files (users_service_url: http://...).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/unkn0wn-root/quizgate"
	"github.com/unkn0wn-root/quizgate/upstream"
)

type Config struct {
	Port      int    `mapstructure:"port"`
	ClientURL string `mapstructure:"client_url"`

	UsersURL      string `mapstructure:"users_service_url"`
	QuizzingURL   string `mapstructure:"quizzing_service_url"`
	PostsURL      string `mapstructure:"posts_service_url"`
	SchoolsURL    string `mapstructure:"schools_service_url"`
	CoursesURL    string `mapstructure:"courses_service_url"`
	ScoresURL     string `mapstructure:"scores_service_url"`
	DownloadsURL  string `mapstructure:"downloads_service_url"`
	ContactsURL   string `mapstructure:"contacts_service_url"`
	FeedbacksURL  string `mapstructure:"feedbacks_service_url"`
	CommentsURL   string `mapstructure:"comments_service_url"`
	StatisticsURL string `mapstructure:"statistics_service_url"`

	RedisHost      string        `mapstructure:"redis_host"`
	RedisPort      int           `mapstructure:"redis_port"`
	RedisPassword  string        `mapstructure:"redis_password"`
	RedisDB        int           `mapstructure:"redis_db"`
	RedisDisabled  bool          `mapstructure:"redis_disabled"`
	RedisReconnect time.Duration `mapstructure:"cache_redis_reconnect_interval"`

	LogDriver string `mapstructure:"log_driver"`
	LogLevel  string `mapstructure:"log_level"`

	CacheCodec      string        `mapstructure:"cache_codec"`
	CacheLocal      string        `mapstructure:"cache_local_provider"`
	CacheMaxEntries int           `mapstructure:"cache_local_max_entries"`
	CacheTTL        time.Duration `mapstructure:"cache_default_ttl"`

	UpstreamTimeout     time.Duration `mapstructure:"upstream_timeout"`
	UpstreamMaxAttempts int           `mapstructure:"upstream_max_attempts"`
	UpstreamBackoffStep time.Duration `mapstructure:"upstream_backoff_step"`

	RealtimeChannel string `mapstructure:"realtime_redis_channel"`
}

var defaults = map[string]any{
	"port":       5000,
	"client_url": "http://localhost:3000",

	"users_service_url":      "http://localhost:5001",
	"quizzing_service_url":   "http://localhost:5002",
	"posts_service_url":      "http://localhost:5003",
	"schools_service_url":    "http://localhost:5004",
	"courses_service_url":    "http://localhost:5005",
	"scores_service_url":     "http://localhost:5006",
	"downloads_service_url":  "http://localhost:5007",
	"contacts_service_url":   "http://localhost:5008",
	"feedbacks_service_url":  "http://localhost:5009",
	"comments_service_url":   "http://localhost:5010",
	"statistics_service_url": "http://localhost:5011",

	"redis_host":                     "localhost",
	"redis_port":                     6379,
	"redis_password":                 "",
	"redis_db":                       0,
	"redis_disabled":                 false,
	"cache_redis_reconnect_interval": "5s",

	"log_driver": "zap",
	"log_level":  "info",

	"cache_codec":             "json",
	"cache_local_provider":    "fifo",
	"cache_local_max_entries": quizgate.DefaultLocalMaxEntries,
	"cache_default_ttl":       quizgate.DefaultCacheTTL.String(),

	"upstream_timeout":      quizgate.DefaultUpstreamTimeout.String(),
	"upstream_max_attempts": quizgate.DefaultMaxAttempts,
	"upstream_backoff_step": quizgate.DefaultBackoffStep.String(),

	"realtime_redis_channel": "quizgate:events",
}

var (
	LogDrivers     = []string{"zap", "logrus", "slog"}
	LocalProviders = []string{"fifo", "ttlcache", "ristretto", "bigcache"}
	Codecs         = []string{"json", "msgpack", "cbor", "protobuf"}
)

// Load reads path (if set) and then the environment; environment variables
// win over the file. Environment names are the upper-cased keys.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	for name, u := range c.serviceURLs() {
		if u == "" {
			errs = append(errs, fmt.Errorf("%s_SERVICE_URL is empty", strings.ToUpper(name)))
		}
	}
	if c.UpstreamMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("upstream_max_attempts must be >= 1, got %d", c.UpstreamMaxAttempts))
	}
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, errors.New("upstream_timeout must be positive"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("cache_default_ttl must be positive"))
	}
	errs = append(errs,
		oneOf("log_driver", c.LogDriver, LogDrivers),
		oneOf("cache_local_provider", c.CacheLocal, LocalProviders),
		oneOf("cache_codec", c.CacheCodec, Codecs),
	)
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func oneOf(key, val string, allowed []string) error {
	for _, a := range allowed {
		if val == a {
			return nil
		}
	}
	return fmt.Errorf("%s %q not one of %s", key, val, strings.Join(allowed, ", "))
}

func (c *Config) serviceURLs() map[string]string {
	return map[string]string{
		upstream.Users:      c.UsersURL,
		upstream.Quizzing:   c.QuizzingURL,
		upstream.Posts:      c.PostsURL,
		upstream.Schools:    c.SchoolsURL,
		upstream.Courses:    c.CoursesURL,
		upstream.Scores:     c.ScoresURL,
		upstream.Downloads:  c.DownloadsURL,
		upstream.Contacts:   c.ContactsURL,
		upstream.Feedbacks:  c.FeedbacksURL,
		upstream.Comments:   c.CommentsURL,
		upstream.Statistics: c.StatisticsURL,
	}
}

// Targets returns every configured service keyed by name.
func (c *Config) Targets() map[string]upstream.Target {
	urls := c.serviceURLs()
	out := make(map[string]upstream.Target, len(urls))
	for name, u := range urls {
		out[name] = upstream.Target{Name: name, BaseURL: strings.TrimRight(u, "/")}
	}
	return out
}

func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// Policy is the retry policy for proxied requests.
func (c *Config) Policy() upstream.Policy {
	p := upstream.DefaultPolicy()
	p.MaxAttempts = c.UpstreamMaxAttempts
	p.Backoff = upstream.Linear(c.UpstreamBackoffStep)
	p.Timeout = c.UpstreamTimeout
	return p
}
