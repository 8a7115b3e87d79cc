package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-publish/pkg/simplepublish"
	"github.com/tendant/simple-publish/pkg/simplepublish/repo/memory"
	repopg "github.com/tendant/simple-publish/pkg/simplepublish/repo/postgres"
	fsstorage "github.com/tendant/simple-publish/pkg/simplepublish/storage/fs"
	memorystorage "github.com/tendant/simple-publish/pkg/simplepublish/storage/memory"
	s3storage "github.com/tendant/simple-publish/pkg/simplepublish/storage/s3"
)

// ServerConfig represents server configuration for the simple-publish service
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing
	BaseURL     string `env:"BASE_URL" env-default:"http://localhost:8080"`

	// Database configuration
	DatabaseType string `env:"DATABASE_TYPE" env-default:"memory"` // "memory", "postgres"
	DatabaseURL  string `env:"DATABASE_URL"`
	DBSchema     string `env:"DB_SCHEMA" env-default:"publish"` // Postgres schema to use

	// Content schema registry; empty means the built-in defaults
	SchemaFile string `env:"SCHEMA_FILE"`

	// Media storage configuration
	MediaBackend string   `env:"MEDIA_BACKEND" env-default:"memory"` // "memory", "fs", "s3"
	Media        FSConfig
	S3           S3Config

	// Auth
	JWTSecret string `env:"JWT_SECRET" env-default:"dev-secret"`
}

// FSConfig configures the filesystem media backend
type FSConfig struct {
	BaseDir   string `env:"MEDIA_FS_BASE_DIR" env-default:"./data/media"`
	URLPrefix string `env:"MEDIA_FS_URL_PREFIX" env-default:"http://localhost:8080/media"`
}

// S3Config configures the S3 media backend
type S3Config struct {
	Endpoint        string `env:"AWS_S3_ENDPOINT"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Bucket          string `env:"AWS_S3_BUCKET" env-default:"publish-media"`
	Region          string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`
	PublicBaseURL   string `env:"AWS_S3_PUBLIC_BASE_URL"`
	PresignDuration int    `env:"AWS_S3_PRESIGN_DURATION" env-default:"3600"`
	CreateBucket    bool   `env:"AWS_S3_CREATE_BUCKET" env-default:"false"`
}

// Load reads configuration from the environment.
func Load() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}
	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}
	switch c.MediaBackend {
	case "memory", "fs", "s3":
	default:
		return fmt.Errorf("unsupported media backend: %s", c.MediaBackend)
	}
	return nil
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService() (simplepublish.Service, error) {
	repo, err := c.BuildRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	registry, err := c.buildRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to build registry: %w", err)
	}

	media, err := c.buildMediaBackend()
	if err != nil {
		return nil, fmt.Errorf("failed to build media backend: %w", err)
	}

	gate := simplepublish.NewRoleGate(repo, simplepublish.DefaultGrants())

	return simplepublish.New(
		simplepublish.WithRepository(repo),
		simplepublish.WithCapabilityGate(gate),
		simplepublish.WithRegistry(registry),
		simplepublish.WithMediaStore(media),
		simplepublish.WithBaseURL(c.BaseURL),
	)
}

// BuildRepository creates a Repository based on the configuration
func (c *ServerConfig) BuildRepository() (simplepublish.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil
	case "postgres":
		cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		schema := c.DBSchema
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if schema == "" {
				return nil
			}
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
			return err
		}
		pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		return repopg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func (c *ServerConfig) buildRegistry() (*simplepublish.Registry, error) {
	if c.SchemaFile == "" {
		return simplepublish.DefaultRegistry(), nil
	}
	return simplepublish.LoadRegistry(c.SchemaFile)
}

// buildMediaBackend creates a BlobStore based on the configuration
func (c *ServerConfig) buildMediaBackend() (simplepublish.BlobStore, error) {
	switch c.MediaBackend {
	case "memory":
		return memorystorage.New(), nil
	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir:   c.Media.BaseDir,
			URLPrefix: c.Media.URLPrefix,
		})
	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			PresignDuration:        c.S3.PresignDuration,
			PublicBaseURL:          c.S3.PublicBaseURL,
			CreateBucketIfNotExist: c.S3.CreateBucket,
		})
	default:
		return nil, fmt.Errorf("unsupported media backend: %s", c.MediaBackend)
	}
}

// PingPostgres verifies connectivity to Postgres and optionally sets
// search_path for the session. It fails if the schema (when provided) does
// not exist.
func PingPostgres(databaseURL, schema string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool: %w", err)
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
