package config

import (
	"fmt"
	"strings"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the catalog backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithMediaRoot sets the directory holding uploads and derived artifacts
func WithMediaRoot(root string) Option {
	return func(c *ServerConfig) error {
		if root == "" {
			return fmt.Errorf("media root cannot be empty")
		}
		c.MediaRoot = root
		return nil
	}
}

// WithFFmpeg sets the transcoder and probe binaries. An empty probe keeps the default.
func WithFFmpeg(ffmpeg, ffprobe string) Option {
	return func(c *ServerConfig) error {
		if ffmpeg == "" {
			return fmt.Errorf("ffmpeg path cannot be empty")
		}
		c.FFmpegPath = ffmpeg
		if ffprobe != "" {
			c.FFprobePath = ffprobe
		}
		return nil
	}
}

// WithMaxConcurrentJobs bounds concurrently running engine processes
func WithMaxConcurrentJobs(n int64) Option {
	return func(c *ServerConfig) error {
		if n <= 0 {
			return fmt.Errorf("max concurrent jobs must be positive, got: %d", n)
		}
		c.MaxConcurrentJobs = n
		return nil
	}
}

// WithThumbnailTimeout bounds the wait for a thumbnail after the main artifact
func WithThumbnailTimeout(d time.Duration) Option {
	return func(c *ServerConfig) error {
		if d <= 0 {
			return fmt.Errorf("thumbnail timeout must be positive, got: %s", d)
		}
		c.ThumbnailTimeout = d
		return nil
	}
}

// WithJobTimeout bounds the main invocation; zero disables the bound
func WithJobTimeout(d time.Duration) Option {
	return func(c *ServerConfig) error {
		c.JobTimeout = d
		return nil
	}
}

// WithMaxUploadBytes sets the upload size limit
func WithMaxUploadBytes(n int64) Option {
	return func(c *ServerConfig) error {
		if n <= 0 {
			return fmt.Errorf("max upload bytes must be positive, got: %d", n)
		}
		c.MaxUploadBytes = n
		return nil
	}
}

// WithURLPrefix sets the path prefix of artifact URLs stored on records
func WithURLPrefix(prefix string) Option {
	return func(c *ServerConfig) error {
		c.URLPrefix = strings.TrimRight(prefix, "/")
		return nil
	}
}

// WithLocalStorage serves artifacts straight from the media root
func WithLocalStorage() Option {
	return func(c *ServerConfig) error {
		c.Storage = StorageConfig{Type: StorageLocal}
		return nil
	}
}

// WithMemoryStorage publishes artifacts to an in-memory store
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.Storage = StorageConfig{Type: StorageMemory}
		return nil
	}
}

// WithFilesystemStorage publishes artifacts below baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.Storage = StorageConfig{Type: StorageFS, BaseDir: baseDir}
		return nil
	}
}

// WithS3Storage publishes artifacts to an S3 bucket
func WithS3Storage(bucket, region string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("s3 bucket cannot be empty")
		}
		if region == "" {
			region = "us-east-1"
		}
		c.Storage = StorageConfig{Type: StorageS3, Bucket: bucket, Region: region}
		return nil
	}
}

// WithS3Endpoint points the S3 store at an S3-compatible service such as MinIO
func WithS3Endpoint(endpoint string, usePathStyle, createBucket bool) Option {
	return func(c *ServerConfig) error {
		if c.Storage.Type != StorageS3 {
			return fmt.Errorf("s3 endpoint requires s3 storage, have %q", c.Storage.Type)
		}
		c.Storage.Endpoint = endpoint
		c.Storage.UsePathStyle = usePathStyle
		c.Storage.CreateBucketIfNotExist = createBucket
		return nil
	}
}

// WithS3Credentials sets static S3 credentials
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		if c.Storage.Type != StorageS3 {
			return fmt.Errorf("s3 credentials require s3 storage, have %q", c.Storage.Type)
		}
		c.Storage.AccessKeyID = accessKeyID
		c.Storage.SecretAccessKey = secretAccessKey
		return nil
	}
}

// WithEventLogging toggles the logging event sink
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}

// WithMetrics toggles the Prometheus event sink
func WithMetrics(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableMetrics = enabled
		return nil
	}
}
