package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr      string
		RateLimit int
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret        string
		Issuer           string
		AccessTTLMinutes int
		RefreshTTLHours  int
		AuthorInviteCode string
		// AdminEmails is a bootstrap setting: the first account registered with one of
		// these addresses becomes admin without any proof of owning it.
		AdminEmails      string
	}
	Storage struct {
		Bucket           string
		KeyPrefix        string
		Region           string
		Endpoint         string
		PublicBaseURL    string
		URLExpiryMinutes int
		MaxUploadMB      int
	}
	AWS struct {
		Profile string
	}
	Log struct {
		Level  string
		Format string
	}
}

// Load reads configuration from environment variables and optional config files.
// Variables use the BLOG_ prefix, e.g. BLOG_AUTH_JWTSECRET.
func Load() (Config, error) {
	// Values already present in the environment win over .env.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("BLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.ratelimit", 20)
	v.SetDefault("database.path", "data/blog.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.issuer", "blog-api")
	v.SetDefault("auth.accessttlminutes", 60)
	v.SetDefault("auth.refreshttlhours", 24*7)
	v.SetDefault("auth.authorinvitecode", "")
	v.SetDefault("auth.adminemails", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "blog-media")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.publicbaseurl", "")
	v.SetDefault("storage.urlexpiryminutes", 60)
	v.SetDefault("storage.maxuploadmb", 5)
	v.SetDefault("aws.profile", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth jwt secret is required (BLOG_AUTH_JWTSECRET)")
	}
	if c.Auth.AccessTTLMinutes <= 0 {
		return fmt.Errorf("auth access ttl must be positive")
	}
	if c.Auth.RefreshTTLHours <= 0 {
		return fmt.Errorf("auth refresh ttl must be positive")
	}
	return nil
}

// AdminEmailList splits the comma separated admin email setting.
func (c Config) AdminEmailList() []string {
	var out []string
	for _, e := range strings.Split(c.Auth.AdminEmails, ",") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.Auth.AccessTTLMinutes) * time.Minute
}

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.Auth.RefreshTTLHours) * time.Hour
}

func (c Config) URLExpiry() time.Duration {
	return time.Duration(c.Storage.URLExpiryMinutes) * time.Minute
}

func (c Config) MaxUploadBytes() int64 {
	return int64(c.Storage.MaxUploadMB) << 20
}
