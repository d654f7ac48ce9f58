package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Storage  StorageConfig  `toml:"storage"`
	Music    MusicConfig    `toml:"music"`
	Logging  LoggingConfig  `toml:"logging"`
	Ngrok    NgrokConfig    `toml:"ngrok"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port            string `toml:"port"`
	Host            string `toml:"host"`
	StaticDir       string `toml:"static_dir"`
	EnableCORS      bool   `toml:"enable_cors"`
	ReadTimeout     int    `toml:"read_timeout_seconds"`
	ShutdownTimeout int    `toml:"shutdown_timeout_seconds"`
	MaxUploadMB     int64  `toml:"max_upload_mb"`
}

// DatabaseConfig contains database-related configuration
type DatabaseConfig struct {
	Path           string `toml:"path"`
	MaxConnections int    `toml:"max_connections"`
	BusyTimeoutMS  int    `toml:"busy_timeout_ms"`
}

// StorageConfig selects where uploaded audio bytes live
type StorageConfig struct {
	Backend   string      `toml:"backend"` // "local" or "minio"
	UploadDir string      `toml:"upload_dir"`
	Minio     MinioConfig `toml:"minio"`
}

// MinioConfig contains S3-compatible object storage settings
type MinioConfig struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	UseSSL    bool   `toml:"use_ssl"`
}

// MusicConfig contains music library configuration
type MusicConfig struct {
	AllowedExtensions      []string `toml:"allowed_extensions"`
	DefaultArtist          string   `toml:"default_artist"`
	DefaultDurationSeconds int      `toml:"default_duration_seconds"`
	ProbeMetadata          bool     `toml:"probe_metadata"`
	WatchUploads           bool     `toml:"watch_uploads"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level          string `toml:"level"`
	Format         string `toml:"format"`
	File           string `toml:"file"`
	MaxSizeMB      int    `toml:"max_size_mb"`
	MaxBackups     int    `toml:"max_backups"`
	MaxAgeDays     int    `toml:"max_age_days"`
	Compress       bool   `toml:"compress"`
	RequestLogging bool   `toml:"request_logging"`
}

// NgrokConfig contains ngrok tunnel configuration
type NgrokConfig struct {
	Enabled      bool   `toml:"enabled"`
	AuthToken    string `toml:"auth_token"`
	Domain       string `toml:"domain"`
	EnableAuth   bool   `toml:"enable_auth"`
	AuthProvider string `toml:"auth_provider"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "5000",
			Host:            "0.0.0.0",
			StaticDir:       "./static",
			EnableCORS:      true,
			ReadTimeout:     60,
			ShutdownTimeout: 10,
			MaxUploadMB:     200,
		},
		Database: DatabaseConfig{
			Path:           "./music_library.db",
			MaxConnections: 5,
			BusyTimeoutMS:  5000,
		},
		Storage: StorageConfig{
			Backend:   "local",
			UploadDir: "./uploads",
			Minio: MinioConfig{
				Endpoint: "localhost:9000",
				Bucket:   "musiclib",
				Region:   "us-east-1",
			},
		},
		Music: MusicConfig{
			AllowedExtensions:      []string{"mp3", "mp4", "m4a", "wav", "flac", "ogg"},
			DefaultArtist:          "Unknown Artist",
			DefaultDurationSeconds: 180,
			ProbeMetadata:          false,
			WatchUploads:           true,
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			File:           "",
			MaxSizeMB:      50,
			MaxBackups:     3,
			MaxAgeDays:     28,
			Compress:       true,
			RequestLogging: true,
		},
		Ngrok: NgrokConfig{
			Enabled:      false,
			AuthToken:    "",
			Domain:       "",
			EnableAuth:   false,
			AuthProvider: "google",
		},
	}
}

// LoadConfig loads configuration from a TOML file, then applies .env and
// environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Config file doesn't exist, create it with defaults
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Created default configuration file at: %s\n", configPath)
	} else if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(configPath), ".env")); err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads variables from path without overriding ones already set.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides configuration values from environment variables. lookup
// is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("MUSICLIB_HOST", &c.Server.Host)
	str("MUSICLIB_PORT", &c.Server.Port)
	str("MUSICLIB_STATIC_DIR", &c.Server.StaticDir)
	str("MUSICLIB_DB_PATH", &c.Database.Path)
	str("MUSICLIB_STORAGE_BACKEND", &c.Storage.Backend)
	str("MUSICLIB_UPLOAD_DIR", &c.Storage.UploadDir)
	str("MUSICLIB_LOG_LEVEL", &c.Logging.Level)
	str("MUSICLIB_LOG_FILE", &c.Logging.File)
	boolean("MUSICLIB_PROBE_METADATA", &c.Music.ProbeMetadata)

	str("MINIO_ENDPOINT", &c.Storage.Minio.Endpoint)
	str("MINIO_ACCESS_KEY", &c.Storage.Minio.AccessKey)
	str("MINIO_SECRET_KEY", &c.Storage.Minio.SecretKey)
	str("MINIO_BUCKET", &c.Storage.Minio.Bucket)

	str("NGROK_AUTHTOKEN", &c.Ngrok.AuthToken)
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# musiclib configuration
# Values can also be overridden from the environment or a .env file next to
# this file (MUSICLIB_PORT, MUSICLIB_DB_PATH, MINIO_ACCESS_KEY, ...).

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server max upload size must be at least 1 MB")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.UploadDir == "" {
			return fmt.Errorf("storage upload dir cannot be empty")
		}
	case "minio":
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.Bucket == "" {
			return fmt.Errorf("minio storage requires endpoint and bucket")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be local or minio)", c.Storage.Backend)
	}

	if len(c.Music.AllowedExtensions) == 0 {
		return fmt.Errorf("at least one allowed audio extension must be specified")
	}
	if c.Music.DefaultDurationSeconds < 0 {
		return fmt.Errorf("default duration cannot be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// GetAddress returns the full server address
func (c *Config) GetAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}

// MaxUploadBytes returns the upload cap in bytes
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB * 1024 * 1024
}

// IsExtensionAllowed reports whether ext (with or without the leading dot)
// is an accepted upload extension. Comparison is case-insensitive.
func (c *Config) IsExtensionAllowed(ext string) bool {
	return c.Music.IsExtensionAllowed(ext)
}

// IsExtensionAllowed reports whether ext is in AllowedExtensions.
func (m MusicConfig) IsExtensionAllowed(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return false
	}
	for _, allowed := range m.AllowedExtensions {
		if strings.ToLower(strings.TrimPrefix(allowed, ".")) == ext {
			return true
		}
	}
	return false
}
