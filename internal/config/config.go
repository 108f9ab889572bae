package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	AuthModeDev    = "dev"
	AuthModeJWT    = "jwt"
	AuthModeRemote = "remote"

	BlobDriverMemory = "memory"
	BlobDriverS3     = "s3"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Blob     BlobConfig     `mapstructure:"blob"`
	Email    EmailConfig    `mapstructure:"email"`
	SMS      SMSConfig      `mapstructure:"sms"`
	Phone    PhoneConfig    `mapstructure:"phone"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Env             string        `mapstructure:"env"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// DSN vacío => storage in-memory (modo dev).
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

type AuthConfig struct {
	Mode         string `mapstructure:"mode"`
	JWTSecret    string `mapstructure:"jwt_secret"`
	JWTIssuer    string `mapstructure:"jwt_issuer"`
	JWTAudience  string `mapstructure:"jwt_audience"`
	RemoteURL    string `mapstructure:"remote_url"`
	RemoteAPIKey string `mapstructure:"remote_api_key"`
}

type LogConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"`
	File   LogFileConfig `mapstructure:"file"`
}

type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type BlobConfig struct {
	Driver string   `mapstructure:"driver"`
	S3     S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Prefix          string `mapstructure:"prefix"`
}

type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	UseTLS   bool   `mapstructure:"use_tls"`
}

type SMSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Sender  string `mapstructure:"sender"`
}

type PhoneConfig struct {
	DefaultRegion string `mapstructure:"default_region"`
}

// Load lee la configuración en este orden: defaults, config.yaml (opcional),
// .env (opcional) y variables de entorno DEJA_* (ej: DEJA_DATABASE_DSN).
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DEJA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(configPath) != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.env", "development")
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("auth.mode", AuthModeDev)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "")
	v.SetDefault("auth.jwt_audience", "")
	v.SetDefault("auth.remote_url", "")
	v.SetDefault("auth.remote_api_key", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.path", "logs/deja.log")
	v.SetDefault("log.file.max_size_mb", 50)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.compress", true)

	v.SetDefault("blob.driver", BlobDriverMemory)
	v.SetDefault("blob.s3.region", "us-east-1")
	v.SetDefault("blob.s3.endpoint", "")
	v.SetDefault("blob.s3.bucket", "")
	v.SetDefault("blob.s3.access_key_id", "")
	v.SetDefault("blob.s3.secret_access_key", "")
	v.SetDefault("blob.s3.prefix", "prescriptions")

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.host", "")
	v.SetDefault("email.port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from", "")
	v.SetDefault("email.use_tls", false)

	v.SetDefault("sms.enabled", false)
	v.SetDefault("sms.base_url", "")
	v.SetDefault("sms.api_key", "")
	v.SetDefault("sms.sender", "Deja")

	v.SetDefault("phone.default_region", "BR")
}

func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Server.Env, "development")
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production")
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	switch c.Auth.Mode {
	case AuthModeDev:
		if c.IsProduction() {
			return errors.New("auth.mode=dev is not allowed in production")
		}
	case AuthModeJWT:
		if strings.TrimSpace(c.Auth.JWTSecret) == "" {
			return errors.New("auth.jwt_secret is required when auth.mode=jwt")
		}
	case AuthModeRemote:
		if strings.TrimSpace(c.Auth.RemoteURL) == "" {
			return errors.New("auth.remote_url is required when auth.mode=remote")
		}
	default:
		return fmt.Errorf("auth.mode must be dev, jwt or remote, got %q", c.Auth.Mode)
	}

	switch c.Blob.Driver {
	case BlobDriverMemory:
	case BlobDriverS3:
		if strings.TrimSpace(c.Blob.S3.Bucket) == "" {
			return errors.New("blob.s3.bucket is required when blob.driver=s3")
		}
	default:
		return fmt.Errorf("blob.driver must be memory or s3, got %q", c.Blob.Driver)
	}

	if c.Email.Enabled && (strings.TrimSpace(c.Email.Host) == "" || strings.TrimSpace(c.Email.From) == "") {
		return errors.New("email.host and email.from are required when email is enabled")
	}
	if c.SMS.Enabled && strings.TrimSpace(c.SMS.BaseURL) == "" {
		return errors.New("sms.base_url is required when sms is enabled")
	}
	return nil
}
