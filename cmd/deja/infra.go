package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"deja/internal/adapters/auth/jwtverifier"
	"deja/internal/adapters/auth/remote"
	blobmem "deja/internal/adapters/blob/memory"
	"deja/internal/adapters/blob/s3store"
	"deja/internal/adapters/notify/email"
	"deja/internal/adapters/notify/push"
	"deja/internal/adapters/notify/sms"
	pg "deja/internal/adapters/storage/postgres"
	"deja/internal/config"
	"deja/internal/platform/httpclient"
	"deja/internal/platform/logger"
	"deja/internal/platform/metrics"
	"deja/internal/ports/auth"
	"deja/internal/ports/blob"
	"deja/internal/ports/notify"
	"deja/internal/router"
)

const remoteTokenTTL = time.Minute

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	opts := logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		App:    "deja",
	}
	if cfg.Log.File.Enabled {
		opts.File = &logger.FileOptions{
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		}
	}
	return cfg, logger.New(opts), nil
}

// openDB devuelve nil sin error cuando no hay DSN: storage in-memory.
func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if cfg.Database.DSN == "" {
		return nil, nil
	}
	db, err := pg.Open(ctx, cfg.Database.DSN, pg.PoolConfig{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func newVerifier(cfg *config.Config, log zerolog.Logger) (auth.AuthVerifier, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeJWT:
		return jwtverifier.New(jwtverifier.Config{
			Secret:   cfg.Auth.JWTSecret,
			Issuer:   cfg.Auth.JWTIssuer,
			Audience: cfg.Auth.JWTAudience,
			Leeway:   30 * time.Second,
		})
	case config.AuthModeRemote:
		client, err := httpclient.New(cfg.Auth.RemoteURL, httpclient.DefaultTimeout,
			httpclient.WithHeader("X-API-Key", cfg.Auth.RemoteAPIKey),
			httpclient.WithLogger(log),
		)
		if err != nil {
			return nil, err
		}
		return remote.New(client, remoteTokenTTL), nil
	default:
		// dev: X-Debug-User-ID
		return nil, nil
	}
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	if cfg.Blob.Driver != config.BlobDriverS3 {
		return blobmem.NewStore(), nil
	}
	return s3store.New(ctx, s3store.Config{
		Endpoint:        cfg.Blob.S3.Endpoint,
		Region:          cfg.Blob.S3.Region,
		Bucket:          cfg.Blob.S3.Bucket,
		AccessKeyID:     cfg.Blob.S3.AccessKeyID,
		SecretAccessKey: cfg.Blob.S3.SecretAccessKey,
		Prefix:          cfg.Blob.S3.Prefix,
	})
}

// newSenders arma un sender por canal. Los deshabilitados devuelven
// error al enviar y el dispatcher lo reporta como fallo del canal.
func newSenders(cfg *config.Config, log zerolog.Logger) (map[notify.Channel]notify.Sender, error) {
	mail, err := email.New(email.Config{
		Enabled:  cfg.Email.Enabled,
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
		UseTLS:   cfg.Email.UseTLS,
	})
	if err != nil {
		return nil, err
	}

	var smsClient *httpclient.Client
	if cfg.SMS.Enabled {
		smsClient, err = httpclient.New(cfg.SMS.BaseURL, httpclient.DefaultTimeout,
			httpclient.WithHeader("X-API-Key", cfg.SMS.APIKey),
			httpclient.WithLogger(log),
		)
		if err != nil {
			return nil, err
		}
	}

	return map[notify.Channel]notify.Sender{
		notify.ChannelEmail: mail,
		notify.ChannelSMS:   sms.New(smsClient, cfg.SMS.Sender, cfg.SMS.Enabled),
		notify.ChannelPush:  push.New(log.With().Str("channel", "push").Logger()),
	}, nil
}

// buildOptions junta todo lo que el router necesita. cleanup cierra la DB.
func buildOptions(ctx context.Context, cfg *config.Config, log zerolog.Logger) (router.Options, func(), error) {
	noop := func() {}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return router.Options{}, noop, err
	}
	cleanup := noop
	if db != nil {
		cleanup = func() { _ = db.Close() }
		if cfg.Database.AutoMigrate {
			if err := pg.Migrate(db, pg.MigrateUp); err != nil {
				cleanup()
				return router.Options{}, noop, fmt.Errorf("auto migrate: %w", err)
			}
			log.Info().Msg("database migrated")
		}
	} else {
		log.Warn().Msg("database.dsn empty: using in-memory storage")
	}

	verifier, err := newVerifier(cfg, log)
	if err != nil {
		cleanup()
		return router.Options{}, noop, err
	}
	files, err := newBlobStore(ctx, cfg)
	if err != nil {
		cleanup()
		return router.Options{}, noop, err
	}
	senders, err := newSenders(cfg, log)
	if err != nil {
		cleanup()
		return router.Options{}, noop, err
	}

	return router.Options{
		AuthVerifier: verifier,
		DB:           db,
		Blob:         files,
		Senders:      senders,
		Metrics:      metrics.New(),
		Logger:       log,
		PhoneRegion:  cfg.Phone.DefaultRegion,
	}, cleanup, nil
}
