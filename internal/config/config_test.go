package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DEJA_AUTH_MODE", "")
	t.Setenv("DEJA_SERVER_PORT", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Auth.Mode != AuthModeDev {
		t.Errorf("expected default auth mode dev, got %q", cfg.Auth.Mode)
	}
	if cfg.Blob.Driver != BlobDriverMemory {
		t.Errorf("expected default blob driver memory, got %q", cfg.Blob.Driver)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("expected shutdown timeout 10s, got %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Phone.DefaultRegion != "BR" {
		t.Errorf("expected default phone region BR, got %q", cfg.Phone.DefaultRegion)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DEJA_SERVER_PORT", "9090")
	t.Setenv("DEJA_AUTH_MODE", "jwt")
	t.Setenv("DEJA_AUTH_JWT_SECRET", "s3cret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Auth.Mode != AuthModeJWT || cfg.Auth.JWTSecret != "s3cret" {
		t.Errorf("expected jwt auth with secret, got %+v", cfg.Auth)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Server: ServerConfig{Port: 8080, Env: "development"},
			Auth:   AuthConfig{Mode: AuthModeDev},
			Blob:   BlobConfig{Driver: BlobDriverMemory},
		}
	}

	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"ok", func(c *Config) {}, false},
		{"jwt without secret", func(c *Config) { c.Auth.Mode = AuthModeJWT }, true},
		{"remote without url", func(c *Config) { c.Auth.Mode = AuthModeRemote }, true},
		{"unknown auth mode", func(c *Config) { c.Auth.Mode = "magic" }, true},
		{"dev auth in production", func(c *Config) { c.Server.Env = "production" }, true},
		{"s3 without bucket", func(c *Config) { c.Blob.Driver = BlobDriverS3 }, true},
		{"email without host", func(c *Config) { c.Email.Enabled = true }, true},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(&c)
			err := c.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
