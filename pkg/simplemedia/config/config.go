package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-media/internal/logging"
	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/catalog/memory"
	catalogpg "github.com/tendant/simple-media/pkg/simplemedia/catalog/postgres"
	"github.com/tendant/simple-media/pkg/simplemedia/derive"
	"github.com/tendant/simple-media/pkg/simplemedia/layout"
	"github.com/tendant/simple-media/pkg/simplemedia/metrics"
	"github.com/tendant/simple-media/pkg/simplemedia/ranking"
	fsstorage "github.com/tendant/simple-media/pkg/simplemedia/storage/fs"
	memorystorage "github.com/tendant/simple-media/pkg/simplemedia/storage/memory"
	s3storage "github.com/tendant/simple-media/pkg/simplemedia/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:               "8080",
		Environment:        "development",
		DatabaseType:       "memory",
		DBSchema:           "media",
		MediaRoot:          "./media",
		FFmpegPath:         "ffmpeg",
		FFprobePath:        "ffprobe",
		Storage:            StorageConfig{Type: StorageLocal},
		URLPrefix:          simplemedia.DefaultURLPrefix,
		MaxUploadBytes:     simplemedia.DefaultMaxUploadBytes,
		MaxConcurrentJobs:  derive.DefaultMaxConcurrent,
		ThumbnailTimeout:   simplemedia.DefaultThumbnailTimeout,
		EnableEventLogging: true,
		EnableMetrics:      true,
	}
}

// Storage types
const (
	StorageLocal  = "local" // artifacts are served from the media root
	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
)

// ServerConfig represents server configuration for the simple-media service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Catalog configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema to use (default: media)

	// Derivation
	MediaRoot         string
	FFmpegPath        string
	FFprobePath       string
	MaxConcurrentJobs int64
	ThumbnailTimeout  time.Duration
	JobTimeout        time.Duration // zero leaves jobs unbounded

	// Delivery
	Storage        StorageConfig
	URLPrefix      string
	MaxUploadBytes int64

	EnableEventLogging bool
	EnableMetrics      bool
}

// StorageConfig selects where derived artifacts are published
type StorageConfig struct {
	Type string // "local", "memory", "fs", "s3"

	BaseDir string // fs

	Bucket                 string // s3
	Region                 string
	Prefix                 string
	Endpoint               string
	UsePathStyle           bool
	AccessKeyID            string
	SecretAccessKey        string
	CreateBucketIfNotExist bool
}

var schemaPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

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
	if c.DBSchema != "" && !schemaPattern.MatchString(c.DBSchema) {
		return fmt.Errorf("invalid db schema name: %q", c.DBSchema)
	}

	if c.MediaRoot == "" {
		return errors.New("media_root is required")
	}
	if c.FFmpegPath == "" {
		return errors.New("ffmpeg_path is required")
	}
	if c.MaxConcurrentJobs <= 0 {
		return errors.New("max_concurrent_jobs must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("max_upload_bytes must be positive")
	}
	if c.ThumbnailTimeout <= 0 {
		return errors.New("thumbnail_timeout must be positive")
	}
	if c.JobTimeout < 0 {
		return errors.New("job_timeout must not be negative")
	}
	if !strings.HasPrefix(c.URLPrefix, "/") {
		return fmt.Errorf("url_prefix must start with '/': %q", c.URLPrefix)
	}

	switch c.Storage.Type {
	case StorageLocal, StorageMemory:
	case StorageFS:
		if c.Storage.BaseDir == "" {
			return errors.New("filesystem storage requires a base directory")
		}
	case StorageS3:
		if c.Storage.Bucket == "" {
			return errors.New("s3 storage requires a bucket")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	return nil
}

// Runtime holds a built service and the resources it owns.
type Runtime struct {
	Service simplemedia.Service
	Catalog simplemedia.Catalog
	Lister  *ranking.Engine
	// Metrics is nil unless EnableMetrics is set
	Metrics *metrics.Sink

	pool *pgxpool.Pool
}

// Close waits for in-flight ingests and releases the database pool.
func (r *Runtime) Close(ctx context.Context) error {
	err := r.Service.Close(ctx)
	if r.pool != nil {
		r.pool.Close()
	}
	return err
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService(ctx context.Context) (simplemedia.Service, error) {
	rt, err := c.Build(ctx, nil)
	if err != nil {
		return nil, err
	}
	return rt.Service, nil
}

// Build wires the catalog, layout, executor, artifact store, ranking and
// event sinks. registry may be nil, in which case metrics get their own.
func (c *ServerConfig) Build(ctx context.Context, registry *prometheus.Registry) (*Runtime, error) {
	rt := &Runtime{}
	options := []simplemedia.Option{
		simplemedia.WithURLPrefix(c.URLPrefix),
		simplemedia.WithMaxUploadBytes(c.MaxUploadBytes),
		simplemedia.WithThumbnailTimeout(c.ThumbnailTimeout),
		simplemedia.WithJobTimeout(c.JobTimeout),
		simplemedia.WithLogger(logging.WithComponent(slog.Default(), "ingest")),
	}

	catalog, err := c.buildCatalog(ctx, rt)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog: %w", err)
	}
	rt.Catalog = catalog
	options = append(options, simplemedia.WithCatalog(catalog))

	lister, err := ranking.New(catalog)
	if err != nil {
		rt.closePool()
		return nil, err
	}
	rt.Lister = lister
	options = append(options, simplemedia.WithLister(lister))

	lm, err := layout.New(layout.Config{Root: c.MediaRoot})
	if err != nil {
		rt.closePool()
		return nil, fmt.Errorf("failed to prepare media root: %w", err)
	}
	options = append(options, simplemedia.WithLayout(lm))

	ffmpeg := derive.NewFFmpeg(c.FFmpegPath, c.FFprobePath)
	if err := ffmpeg.Available(); err != nil {
		slog.Warn("media engine not available, ingests will fail", "ffmpeg", c.FFmpegPath, "error", err)
	}
	executor, err := derive.New(ffmpeg,
		derive.WithMaxConcurrent(c.MaxConcurrentJobs),
		derive.WithLogger(logging.WithComponent(slog.Default(), "derive")),
	)
	if err != nil {
		rt.closePool()
		return nil, err
	}
	options = append(options, simplemedia.WithExecutor(executor), simplemedia.WithProber(ffmpeg))

	if c.Storage.Type != StorageLocal {
		store, err := c.buildArtifactStore()
		if err != nil {
			rt.closePool()
			return nil, fmt.Errorf("failed to build %s storage: %w", c.Storage.Type, err)
		}
		options = append(options, simplemedia.WithArtifactStore(c.Storage.Type, store))
	}

	var sinks simplemedia.MultiEventSink
	if c.EnableEventLogging {
		sinks = append(sinks, simplemedia.NewLoggingEventSink(logging.WithComponent(slog.Default(), "events")))
	}
	if c.EnableMetrics {
		sink, err := metrics.New(registry)
		if err != nil {
			rt.closePool()
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		rt.Metrics = sink
		sinks = append(sinks, sink)
	}
	if len(sinks) > 0 {
		options = append(options, simplemedia.WithEventSink(sinks))
	}

	svc, err := simplemedia.New(options...)
	if err != nil {
		rt.closePool()
		return nil, err
	}
	rt.Service = svc
	return rt, nil
}

func (r *Runtime) closePool() {
	if r.pool != nil {
		r.pool.Close()
		r.pool = nil
	}
}

// buildCatalog creates a Catalog based on the configuration
func (c *ServerConfig) buildCatalog(ctx context.Context, rt *Runtime) (simplemedia.Catalog, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil
	case "postgres":
		pool, err := newPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, err
		}
		if c.DBSchema != "" {
			if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{c.DBSchema}.Sanitize())); err != nil {
				pool.Close()
				return nil, fmt.Errorf("failed to create schema %s: %w", c.DBSchema, err)
			}
		}
		catalog := catalogpg.NewWithPool(pool)
		if err := catalog.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		rt.pool = pool
		return catalog, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func newPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.ConnConfig.RuntimeParams["search_path"] = schema
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// PingPostgres verifies connectivity to Postgres with the configured search_path.
func PingPostgres(ctx context.Context, databaseURL, schema string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	pool, err := newPool(ctx, databaseURL, schema)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Preflight checks external dependencies before Build. Only a postgres
// catalog has one; the pool Build creates connects lazily.
func (c *ServerConfig) Preflight(ctx context.Context) error {
	if c.DatabaseType != "postgres" {
		return nil
	}
	return PingPostgres(ctx, c.DatabaseURL, c.DBSchema)
}

// buildArtifactStore creates an ArtifactStore based on the storage configuration
func (c *ServerConfig) buildArtifactStore() (simplemedia.ArtifactStore, error) {
	switch c.Storage.Type {
	case StorageMemory:
		return memorystorage.New(), nil
	case StorageFS:
		return fsstorage.New(fsstorage.Config{BaseDir: c.Storage.BaseDir})
	case StorageS3:
		return s3storage.New(s3storage.Config{
			Region:                 c.Storage.Region,
			Bucket:                 c.Storage.Bucket,
			Prefix:                 c.Storage.Prefix,
			AccessKeyID:            c.Storage.AccessKeyID,
			SecretAccessKey:        c.Storage.SecretAccessKey,
			Endpoint:               c.Storage.Endpoint,
			UsePathStyle:           c.Storage.UsePathStyle,
			CreateBucketIfNotExist: c.Storage.CreateBucketIfNotExist,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
}
