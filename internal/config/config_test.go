package config

import (
	"os"
	"path/filepath"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	assert := assert_.New(t)
	t.Setenv("STREAMTAPE_LOGIN", "login")
	t.Setenv("STREAMTAPE_KEY", "key")

	cfg, err := Load("")
	assert.NoError(err)
	assert.Equal("downloads", cfg.Pipeline.CacheDir)
	assert.Equal(10, cfg.Pipeline.MaxResidentFiles)
	assert.Equal("streamtape", cfg.Uploader.Service)
	assert.Equal("https://api.streamtape.com", cfg.Uploader.Streamtape.BaseURL)
	assert.Equal("yt-dlp", cfg.Fetch.YTDLPPath)
	assert.Equal(1080, cfg.Fetch.MaxHeight)
}

func TestLoadYAMLSurvivesDefaults(t *testing.T) {
	assert := assert_.New(t)
	path := writeConfig(t, `
pipeline:
  cache_dir: /srv/videos
  max_resident_files: 3
uploader:
  streamtape:
    login: yaml-login
    key: yaml-key
`)

	cfg, err := Load(path)
	assert.NoError(err)
	assert.Equal("/srv/videos", cfg.Pipeline.CacheDir)
	assert.Equal(3, cfg.Pipeline.MaxResidentFiles)
	// Untouched sections keep their defaults.
	assert.Equal(64, cfg.Pipeline.OutboxSize)
	assert.Equal("127.0.0.1:8844", cfg.Server.Addr)
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	assert := assert_.New(t)
	path := writeConfig(t, `
pipeline:
  cache_dir: /yaml/path
uploader:
  streamtape:
    login: yaml-login
    key: yaml-key
`)
	t.Setenv("CACHE_DIR", "/env/path")
	t.Setenv("STREAMTAPE_LOGIN", "env-login")
	t.Setenv("FETCH_MAX_HEIGHT", "720")

	cfg, err := Load(path)
	assert.NoError(err)
	assert.Equal("/env/path", cfg.Pipeline.CacheDir)
	assert.Equal("env-login", cfg.Uploader.Streamtape.Login)
	assert.Equal("yaml-key", cfg.Uploader.Streamtape.Key)
	assert.Equal(720, cfg.Fetch.MaxHeight)
}

func TestLoadMissingFile(t *testing.T) {
	assert := assert_.New(t)
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(err)
}

func TestLoadInvalidYAML(t *testing.T) {
	assert := assert_.New(t)
	path := writeConfig(t, "pipeline: [not: a map\n")
	_, err := Load(path)
	assert.Error(err)
}

func TestValidate(t *testing.T) {
	assert := assert_.New(t)
	for name, tc := range map[string]struct {
		mutate  func(*Config)
		wantErr bool
	}{
		"streamtape ok": {
			mutate: func(c *Config) {
				c.Uploader.Streamtape.Login = "login"
				c.Uploader.Streamtape.Key = "key"
			},
		},
		"streamtape missing key": {
			mutate: func(c *Config) {
				c.Uploader.Streamtape.Login = "login"
			},
			wantErr: true,
		},
		"s3 ok": {
			mutate: func(c *Config) {
				c.Uploader.Service = "s3"
				c.Uploader.S3.Endpoint = "minio.example:9000"
				c.Uploader.S3.AccessKey = "access"
				c.Uploader.S3.SecretKey = "secret"
				c.Uploader.S3.Bucket = "videos"
			},
		},
		"s3 missing bucket": {
			mutate: func(c *Config) {
				c.Uploader.Service = "s3"
				c.Uploader.S3.Endpoint = "minio.example:9000"
				c.Uploader.S3.AccessKey = "access"
				c.Uploader.S3.SecretKey = "secret"
			},
			wantErr: true,
		},
		"unknown service": {
			mutate: func(c *Config) {
				c.Uploader.Service = "ftp"
			},
			wantErr: true,
		},
		"bad retention limit": {
			mutate: func(c *Config) {
				c.Uploader.Streamtape.Login = "login"
				c.Uploader.Streamtape.Key = "key"
				c.Pipeline.MaxResidentFiles = 0
			},
			wantErr: true,
		},
		"bad max height": {
			mutate: func(c *Config) {
				c.Uploader.Streamtape.Login = "login"
				c.Uploader.Streamtape.Key = "key"
				c.Fetch.MaxHeight = 0
			},
			wantErr: true,
		},
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(err, name)
			} else {
				assert.NoError(err, name)
			}
		})
	}
}

func TestPipelineConfig(t *testing.T) {
	assert := assert_.New(t)
	cfg := Default()
	cfg.Pipeline.CacheDir = "/srv/videos"
	cfg.Pipeline.MaxResidentFiles = 5

	pipeline := cfg.PipelineConfig()
	assert.Equal("/srv/videos", pipeline.CacheDir)
	assert.Equal(5, pipeline.MaxResidentFiles)
	assert.Equal(64, pipeline.OutboxSize)
	assert.NoError(pipeline.Validate())
}
