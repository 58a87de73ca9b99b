package config

import (
	"os"
	"strconv"

	"github.com/spf13/viper"
)

type DBConfig struct {
	Host, User, Password, DBName, SSLMode string
	Port                                  int
}

// BucketConfig points at the S3-compatible bucket (DigitalOcean Spaces,
// MinIO, AWS) holding the rendered object images.
type BucketConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	KeyPrefix string
	AccessKey string
	SecretKey string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type Config struct {
	WebHost string
	WebPort int

	// SiteURL is the public base URL used in verification and reset emails.
	SiteURL string

	BaseDir      string // server working directory: image cache, first-start marker
	TemplateGlob string // gin HTML template glob
	StaticDir    string // static asset directory served under /static
	JWTSecret    string
	SessionExpiryDays int

	RateLimitActive bool

	DB     DBConfig
	Bucket BucketConfig
	Redis  RedisConfig
}

// Load reads the config file (if any) and applies VIZINSPECT_* environment
// overrides for the secrets that should not live on disk.
func Load() (Config, error) {

	viper.SetDefault("web.host", "0.0.0.0")
	viper.SetDefault("web.port", 14005)
	viper.SetDefault("site_url", "http://localhost:14005")
	viper.SetDefault("basedir", ".")
	viper.SetDefault("template_glob", "web/templates/*.html")
	viper.SetDefault("static_dir", "web/static")
	viper.SetDefault("session_expiry_days", 30)
	viper.SetDefault("rate_limit_active", true)
	viper.SetDefault("db.sslmode", "disable")
	viper.SetDefault("bucket.region", "sfo2")
	viper.SetDefault("bucket.endpoint", "https://sfo2.digitaloceanspaces.com")
	viper.SetDefault("redis.addr", "127.0.0.1:6379")

	_ = viper.ReadInConfig() // missing config file is fine, env can supply all

	c := Config{
		WebHost:           viper.GetString("web.host"),
		WebPort:           viper.GetInt("web.port"),
		SiteURL:           viper.GetString("site_url"),
		BaseDir:           viper.GetString("basedir"),
		TemplateGlob:      viper.GetString("template_glob"),
		StaticDir:         viper.GetString("static_dir"),
		JWTSecret:         viper.GetString("jwt_secret"),
		SessionExpiryDays: viper.GetInt("session_expiry_days"),
		RateLimitActive:   viper.GetBool("rate_limit_active"),
		DB: DBConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetInt("db.port"),
			User:     viper.GetString("db.user"),
			Password: viper.GetString("db.password"),
			DBName:   viper.GetString("db.name"),
			SSLMode:  viper.GetString("db.sslmode"),
		},
		Bucket: BucketConfig{
			Endpoint:  viper.GetString("bucket.endpoint"),
			Region:    viper.GetString("bucket.region"),
			Bucket:    viper.GetString("bucket.name"),
			KeyPrefix: viper.GetString("bucket.key_prefix"),
			AccessKey: viper.GetString("bucket.access_key"),
			SecretKey: viper.GetString("bucket.secret_key"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
	}

	// ---- OVERRIDE WITH ENV VARS (STRICT) ----
	if v := os.Getenv("VIZINSPECT_DB_HOST"); v != "" {
		c.DB.Host = v
	}
	if v := os.Getenv("VIZINSPECT_DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.DB.Port = p
		}
	}
	if v := os.Getenv("VIZINSPECT_DB_USER"); v != "" {
		c.DB.User = v
	}
	if v := os.Getenv("VIZINSPECT_DB_PASSWORD"); v != "" {
		c.DB.Password = v
	}
	if v := os.Getenv("VIZINSPECT_DB_NAME"); v != "" {
		c.DB.DBName = v
	}
	if v := os.Getenv("VIZINSPECT_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("VIZINSPECT_BUCKET_ACCESS_KEY"); v != "" {
		c.Bucket.AccessKey = v
	}
	if v := os.Getenv("VIZINSPECT_BUCKET_SECRET_KEY"); v != "" {
		c.Bucket.SecretKey = v
	}
	if v := os.Getenv("VIZINSPECT_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}

	return c, nil
}
