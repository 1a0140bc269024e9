package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type OAuthClient struct {
	ClientID     string
	ClientSecret string
}

type Publishing struct {
	RefreshLookahead  time.Duration
	TargetTimeout     time.Duration
	StepBackoff       time.Duration
	TargetConcurrency int
	PostConcurrency   int
	SchedulerBatch    int
	VideoPollInterval time.Duration
	VideoPollTimeout  time.Duration
	CreatorInfoTTL    time.Duration
	PageTokenTTL      time.Duration
	// StaleAfter is how long a post may sit in publishing before republish
	// may take it over.
	StaleAfter time.Duration
}

type Config struct {
	Env         string
	Port        string
	LogLevel    string
	LogFormat   string
	ServiceName string

	PostgresURI  string
	RedisURI     string
	NatsURL      string
	OtelEndpoint string

	// SecretKey signs API JWTs. EncryptionKey seals platform tokens at rest.
	SecretKey       string
	EncryptionKey   string
	SchedulerSecret string

	R2 R2

	Instagram OAuthClient
	Facebook  OAuthClient
	Tiktok    OAuthClient
	Google    OAuthClient
	Twitter   OAuthClient

	GraphAPIVersion  string
	LinkedinVersion  string
	SchedulerSpec    string
	TokenRefreshSpec string
	QueueConcurrency int

	Publishing Publishing
}

// LoadConfig reads an optional .env file, then the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Env:         v.GetString("app_env"),
		Port:        v.GetString("port"),
		LogLevel:    v.GetString("log_level"),
		LogFormat:   v.GetString("log_format"),
		ServiceName: v.GetString("service_name"),

		PostgresURI:  v.GetString("postgres_uri"),
		RedisURI:     v.GetString("redis_uri"),
		NatsURL:      v.GetString("nats_url"),
		OtelEndpoint: v.GetString("otel_endpoint"),

		SecretKey:       v.GetString("secret_key"),
		EncryptionKey:   v.GetString("encryption_key"),
		SchedulerSecret: v.GetString("scheduler_secret"),

		R2: R2{
			AccountID:  v.GetString("r2_account_id"),
			AccessKey:  v.GetString("r2_access_key"),
			SecretKey:  v.GetString("r2_secret_key"),
			BucketName: v.GetString("r2_bucket_name"),
			PublicURL:  v.GetString("r2_public_url"),
		},

		Instagram: oauthClient(v, "instagram"),
		Facebook:  oauthClient(v, "facebook"),
		Tiktok:    oauthClient(v, "tiktok"),
		Google:    oauthClient(v, "google"),
		Twitter:   oauthClient(v, "twitter"),

		GraphAPIVersion:  v.GetString("graph_api_version"),
		LinkedinVersion:  v.GetString("linkedin_version"),
		SchedulerSpec:    v.GetString("scheduler_spec"),
		TokenRefreshSpec: v.GetString("token_refresh_spec"),
		QueueConcurrency: v.GetInt("queue_concurrency"),

		Publishing: Publishing{
			RefreshLookahead:  v.GetDuration("refresh_lookahead"),
			TargetTimeout:     v.GetDuration("target_timeout"),
			StepBackoff:       v.GetDuration("step_backoff"),
			TargetConcurrency: v.GetInt("target_concurrency"),
			PostConcurrency:   v.GetInt("post_concurrency"),
			SchedulerBatch:    v.GetInt("scheduler_batch"),
			VideoPollInterval: v.GetDuration("video_poll_interval"),
			VideoPollTimeout:  v.GetDuration("video_poll_timeout"),
			CreatorInfoTTL:    v.GetDuration("creator_info_ttl"),
			PageTokenTTL:      v.GetDuration("page_token_ttl"),
			StaleAfter:        v.GetDuration("stale_after"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "development")
	v.SetDefault("port", "3000")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("service_name", "publish-engine")
	v.SetDefault("redis_uri", "localhost:6379")
	v.SetDefault("graph_api_version", "v21.0")
	v.SetDefault("linkedin_version", "202405")
	v.SetDefault("scheduler_spec", "@every 1m")
	v.SetDefault("token_refresh_spec", "@every 10m")
	v.SetDefault("queue_concurrency", 10)

	v.SetDefault("refresh_lookahead", 7*24*time.Hour)
	v.SetDefault("target_timeout", 2*time.Minute)
	v.SetDefault("step_backoff", 2*time.Second)
	v.SetDefault("target_concurrency", 4)
	v.SetDefault("post_concurrency", 8)
	v.SetDefault("scheduler_batch", 50)
	v.SetDefault("video_poll_interval", 5*time.Second)
	v.SetDefault("video_poll_timeout", 5*time.Minute)
	v.SetDefault("creator_info_ttl", 10*time.Minute)
	v.SetDefault("page_token_ttl", time.Hour)
	v.SetDefault("stale_after", 30*time.Minute)
}

func oauthClient(v *viper.Viper, prefix string) OAuthClient {
	return OAuthClient{
		ClientID:     v.GetString(prefix + "_client_id"),
		ClientSecret: v.GetString(prefix + "_client_secret"),
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.PostgresURI == "" {
		errs = append(errs, errors.New("POSTGRES_URI is required"))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("SECRET_KEY is required"))
	}
	switch len(c.EncryptionKey) {
	case 16, 24, 32:
	default:
		errs = append(errs, fmt.Errorf("ENCRYPTION_KEY must be 16, 24 or 32 bytes, got %d", len(c.EncryptionKey)))
	}

	p := c.Publishing
	if p.TargetTimeout <= 0 {
		errs = append(errs, errors.New("TARGET_TIMEOUT must be positive"))
	}
	if p.RefreshLookahead <= 0 {
		errs = append(errs, errors.New("REFRESH_LOOKAHEAD must be positive"))
	}
	if p.StepBackoff < 0 {
		errs = append(errs, errors.New("STEP_BACKOFF must not be negative"))
	}
	if p.TargetConcurrency < 1 || p.PostConcurrency < 1 {
		errs = append(errs, errors.New("TARGET_CONCURRENCY and POST_CONCURRENCY must be at least 1"))
	}
	if p.StaleAfter < p.TargetTimeout {
		errs = append(errs, errors.New("STALE_AFTER must not be shorter than TARGET_TIMEOUT"))
	}
	if p.SchedulerBatch < 1 {
		errs = append(errs, errors.New("SCHEDULER_BATCH must be at least 1"))
	}
	return errors.Join(errs...)
}
