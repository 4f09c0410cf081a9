package config

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-media/pkg/simplemedia"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.DatabaseType != "memory" {
		t.Errorf("expected memory catalog, got %q", cfg.DatabaseType)
	}
	if cfg.Storage.Type != StorageLocal {
		t.Errorf("expected local storage, got %q", cfg.Storage.Type)
	}
	if cfg.URLPrefix != simplemedia.DefaultURLPrefix {
		t.Errorf("expected url prefix %q, got %q", simplemedia.DefaultURLPrefix, cfg.URLPrefix)
	}
	if cfg.ThumbnailTimeout != simplemedia.DefaultThumbnailTimeout {
		t.Errorf("expected default thumbnail timeout, got %s", cfg.ThumbnailTimeout)
	}
}

func TestOptions(t *testing.T) {
	cfg, err := Load(
		WithPort("9000"),
		WithEnvironment("testing"),
		WithDatabase("postgres", "postgres://localhost/media"),
		WithDatabaseSchema("videos"),
		WithMediaRoot("/srv/media"),
		WithFFmpeg("/usr/local/bin/ffmpeg", ""),
		WithMaxConcurrentJobs(2),
		WithThumbnailTimeout(time.Second),
		WithJobTimeout(time.Hour),
		WithMaxUploadBytes(10<<20),
		WithURLPrefix("/v2/"),
		WithS3Storage("bucket", ""),
		WithS3Endpoint("http://minio:9000", true, true),
		WithS3Credentials("key", "secret"),
		WithEventLogging(false),
		WithMetrics(false),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := StorageConfig{
		Type:                   StorageS3,
		Bucket:                 "bucket",
		Region:                 "us-east-1",
		Endpoint:               "http://minio:9000",
		UsePathStyle:           true,
		AccessKeyID:            "key",
		SecretAccessKey:        "secret",
		CreateBucketIfNotExist: true,
	}
	if cfg.Storage != want {
		t.Errorf("expected storage %+v, got %+v", want, cfg.Storage)
	}
	if cfg.FFprobePath != "ffprobe" {
		t.Errorf("expected default ffprobe, got %q", cfg.FFprobePath)
	}
	if cfg.URLPrefix != "/v2" {
		t.Errorf("expected /v2, got %q", cfg.URLPrefix)
	}
	if cfg.DatabaseType != "postgres" || cfg.DBSchema != "videos" {
		t.Errorf("unexpected database config %q %q", cfg.DatabaseType, cfg.DBSchema)
	}
}

func TestOptionErrors(t *testing.T) {
	tests := map[string]Option{
		"empty port":           WithPort(""),
		"unknown database":     WithDatabase("mysql", "x"),
		"postgres without url": WithDatabase("postgres", ""),
		"empty media root":     WithMediaRoot(""),
		"empty ffmpeg":         WithFFmpeg("", ""),
		"zero jobs":            WithMaxConcurrentJobs(0),
		"zero thumbnail":       WithThumbnailTimeout(0),
		"zero upload":          WithMaxUploadBytes(0),
		"empty fs dir":         WithFilesystemStorage(""),
		"empty bucket":         WithS3Storage("", "us-east-1"),
		"endpoint without s3":  WithS3Endpoint("http://x", true, false),
	}
	for name, opt := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(opt); err == nil {
				t.Errorf("expected error for %s", name)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*ServerConfig){
		"bad schema":        func(c *ServerConfig) { c.DBSchema = "media; drop table x" },
		"negative job":      func(c *ServerConfig) { c.JobTimeout = -time.Second },
		"relative prefix":   func(c *ServerConfig) { c.URLPrefix = "api" },
		"unknown storage":   func(c *ServerConfig) { c.Storage.Type = "ftp" },
		"postgres no url":   func(c *ServerConfig) { c.DatabaseType = "postgres" },
		"s3 without bucket": func(c *ServerConfig) { c.Storage = StorageConfig{Type: StorageS3} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := defaults()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestBuild_MemoryStack(t *testing.T) {
	cfg, err := Load(
		WithMediaRoot(t.TempDir()),
		WithFFmpeg("ffmpeg-not-installed", "ffprobe-not-installed"),
		WithMemoryStorage(),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	rt, err := cfg.Build(ctx, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer func() {
		if err := rt.Close(ctx); err != nil {
			t.Errorf("close failed: %v", err)
		}
	}()

	if rt.Metrics == nil {
		t.Fatal("expected metrics sink")
	}
	if rt.Lister == nil {
		t.Fatal("expected ranking engine")
	}
	if rt.Catalog == nil {
		t.Fatal("expected catalog")
	}

	categories, err := rt.Service.Categories(ctx)
	if err != nil {
		t.Fatalf("categories failed: %v", err)
	}
	if len(categories) != 0 {
		t.Errorf("expected empty aggregate, got %v", categories)
	}

	page, err := rt.Service.ListPreviews(ctx, simplemedia.ListQuery{Page: 1, Limit: 12})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if page.Pagination.Total != 0 {
		t.Errorf("expected empty listing, got %d", page.Pagination.Total)
	}
}

func TestBuildService_WithoutMetrics(t *testing.T) {
	cfg, err := Load(WithMediaRoot(t.TempDir()), WithMetrics(false), WithEventLogging(false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc, err := cfg.BuildService(context.Background())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if svc == nil {
		t.Fatal("expected service")
	}
}

func TestPreflight(t *testing.T) {
	ctx := context.Background()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Preflight(ctx); err != nil {
		t.Errorf("memory catalog preflight should pass, got %v", err)
	}

	cfg, err = Load(WithDatabase("postgres", "postgres://media@127.0.0.1:1/media?connect_timeout=1"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Preflight(ctx); err == nil {
		t.Error("expected preflight to fail for an unreachable database")
	}
}

func TestPingPostgres_RequiresURL(t *testing.T) {
	if err := PingPostgres(context.Background(), "", "media"); err == nil {
		t.Error("expected error for empty database url")
	}
}
