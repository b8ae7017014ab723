package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	video_relay "github.com/alanbriolat/video-relay"
)

// Config holds everything the relay daemon needs. Precedence is environment over YAML file
// over Default(); defaults are seeded in Go rather than envconfig `default` tags so that file
// values survive envconfig.Process.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Server   ServerConfig   `yaml:"server"`
	Telegram TelegramConfig `yaml:"telegram"`
	Uploader UploaderConfig `yaml:"uploader"`
	Fetch    FetchConfig    `yaml:"fetch"`
}

type PipelineConfig struct {
	CacheDir         string `yaml:"cache_dir" envconfig:"CACHE_DIR"`
	MaxResidentFiles int    `yaml:"max_resident_files" envconfig:"MAX_RESIDENT_FILES"`
	OutboxSize       int    `yaml:"outbox_size" envconfig:"OUTBOX_SIZE"`
}

// ServerConfig holds the HTTP API listener configuration. An empty Addr disables the API.
type ServerConfig struct {
	Addr         string        `yaml:"addr" envconfig:"SERVER_ADDR"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
}

// TelegramConfig holds the bot connection. An empty Token disables the Telegram frontend.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"TELEGRAM_BOT_TOKEN"`
	Debug bool   `yaml:"debug" envconfig:"TELEGRAM_DEBUG"`
}

// UploaderConfig selects and configures the video hosting service.
type UploaderConfig struct {
	// Service is which uploader to use: "streamtape" or "s3".
	Service    string           `yaml:"service" envconfig:"UPLOADER_SERVICE"`
	Streamtape StreamtapeConfig `yaml:"streamtape"`
	S3         S3Config         `yaml:"s3"`
}

type StreamtapeConfig struct {
	Login   string `yaml:"login" envconfig:"STREAMTAPE_LOGIN"`
	Key     string `yaml:"key" envconfig:"STREAMTAPE_KEY"`
	BaseURL string `yaml:"base_url" envconfig:"STREAMTAPE_BASE_URL"`
}

type S3Config struct {
	Endpoint   string        `yaml:"endpoint" envconfig:"S3_ENDPOINT"`
	AccessKey  string        `yaml:"access_key" envconfig:"S3_ACCESS_KEY"`
	SecretKey  string        `yaml:"secret_key" envconfig:"S3_SECRET_KEY"`
	Bucket     string        `yaml:"bucket" envconfig:"S3_BUCKET"`
	UseSSL     bool          `yaml:"use_ssl" envconfig:"S3_USE_SSL"`
	LinkExpiry time.Duration `yaml:"link_expiry" envconfig:"S3_LINK_EXPIRY"`
}

// FetchConfig tunes the fetchers that shell out or pick stream qualities.
type FetchConfig struct {
	YTDLPPath string `yaml:"ytdlp_path" envconfig:"YTDLP_PATH"`
	MaxHeight int    `yaml:"max_height" envconfig:"FETCH_MAX_HEIGHT"`
	Retries   int    `yaml:"retries" envconfig:"FETCH_RETRIES"`
}

func Default() Config {
	return Config{
		Pipeline: PipelineConfig{
			CacheDir:         video_relay.DefaultPipelineConfig.CacheDir,
			MaxResidentFiles: video_relay.DefaultPipelineConfig.MaxResidentFiles,
			OutboxSize:       video_relay.DefaultPipelineConfig.OutboxSize,
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8844",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: time.Minute,
		},
		Uploader: UploaderConfig{
			Service: "streamtape",
			Streamtape: StreamtapeConfig{
				BaseURL: "https://api.streamtape.com",
			},
			S3: S3Config{
				UseSSL:     true,
				LinkExpiry: 7 * 24 * time.Hour,
			},
		},
		Fetch: FetchConfig{
			YTDLPPath: "yt-dlp",
			MaxHeight: 1080,
			Retries:   5,
		},
	}
}

// Load reads configuration from the YAML file at path (if non-empty) and then the
// environment, on top of Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	pipeline := c.PipelineConfig()
	if err := pipeline.Validate(); err != nil {
		return err
	}
	switch c.Uploader.Service {
	case "streamtape":
		if c.Uploader.Streamtape.Login == "" || c.Uploader.Streamtape.Key == "" {
			return fmt.Errorf("STREAMTAPE_LOGIN and STREAMTAPE_KEY are required for the streamtape uploader")
		}
	case "s3":
		s3 := c.Uploader.S3
		if s3.Endpoint == "" || s3.AccessKey == "" || s3.SecretKey == "" || s3.Bucket == "" {
			return fmt.Errorf("S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY and S3_BUCKET are required for the s3 uploader")
		}
	default:
		return fmt.Errorf("unknown uploader service %q", c.Uploader.Service)
	}
	if c.Fetch.MaxHeight < 1 {
		return fmt.Errorf("fetch max height must be positive, got %d", c.Fetch.MaxHeight)
	}
	if c.Fetch.Retries < 0 {
		return fmt.Errorf("fetch retries must not be negative, got %d", c.Fetch.Retries)
	}
	return nil
}

// PipelineConfig converts the file/env shape into the pipeline's own config type.
func (c *Config) PipelineConfig() video_relay.PipelineConfig {
	return video_relay.PipelineConfig{
		CacheDir:         c.Pipeline.CacheDir,
		MaxResidentFiles: c.Pipeline.MaxResidentFiles,
		OutboxSize:       c.Pipeline.OutboxSize,
	}
}
