package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Settings.LogLevel)
	assert.Equal(t, 10*time.Minute, cfg.Settings.HTTPTimeout)
	assert.Equal(t, DefaultCrawlWorkers, cfg.Settings.CrawlWorkers)
	assert.Equal(t, DefaultCollection, cfg.Archive.Collection)
	assert.Equal(t, "LAADS_TOKEN", cfg.Archive.TokenEnv)
	assert.Equal(t, []string{"MCD43D31", "MCD43D40"}, cfg.Window.Shared)
	assert.Len(t, cfg.Window.Bands, 7)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `archive:
  base_url: https://archive.test/allData/
  token_env: MY_TOKEN
datasets:
  - name: albedo
    product: MCD43D01
    start_date: 2015-06-20
    end_date: 2017-07-12
    exclude: [".xml"]
settings:
  mirror_root: /data/mirror
  log_level: debug
  snapshot_backend: sqlite
  http_timeout: 90s
  rate_limit: 2.5
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "https://archive.test/allData", cfg.Archive.BaseURL)
	assert.Equal(t, "MY_TOKEN", cfg.Archive.TokenEnv)
	assert.Equal(t, DefaultCollection, cfg.Archive.Collection)
	require.Len(t, cfg.Datasets, 1)
	assert.Equal(t, DefaultCollection, cfg.Datasets[0].Collection, "dataset inherits the archive collection")
	assert.Equal(t, "/data/mirror", cfg.Settings.MirrorRoot)
	assert.NotEmpty(t, cfg.Settings.LinkRoot)
	assert.Equal(t, BackendSQLite, cfg.Settings.SnapshotBackend)
	assert.Equal(t, 90*time.Second, cfg.Settings.HTTPTimeout)
	assert.InDelta(t, 2.5, cfg.Settings.RateLimit, 0)
	assert.Equal(t, DefaultTransferAttempts, cfg.Settings.TransferAttempts)

	start, end, err := cfg.Datasets[0].Range()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2015, time.June, 20, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2017, time.July, 12, 0, 0, 0, 0, time.UTC), end)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = LoadConfig("")
	assert.ErrorIs(t, err, errors.ErrEmptyConfigPath)
}

func TestLoadConfigFromReaderErrors(t *testing.T) {
	_, err := LoadConfigFromReader(strings.NewReader("settings: [unclosed"))
	assert.ErrorIs(t, err, errors.ErrConfigParse)

	_, err = LoadConfigFromReader(strings.NewReader("settings:\n  crawl_workers: -1\n"))
	assert.ErrorIs(t, err, errors.ErrConfigValidation)
}

func TestSaveConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Settings.LogLevel = "debug"
	require.NoError(t, cfg.AddDataset(&DatasetConfig{Name: "nbar", Product: "MCD43D04"}))

	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.SaveConfig(configPath))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	loaded, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "debug", loaded.Settings.LogLevel)
	assert.Equal(t, []string{"nbar"}, loaded.DatasetNames())
	assert.True(t, loaded.Settings.CompressSnapshots)

	assert.ErrorIs(t, cfg.SaveConfig(""), errors.ErrEmptyConfigPath)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
		errMsg  string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{
			name:    "non-http base url",
			mutate:  func(c *Config) { c.Archive.BaseURL = "ftp://archive.test" },
			wantErr: errors.ErrConfigValidation,
			errMsg:  "not an http(s) URL",
		},
		{
			name: "duplicate dataset",
			mutate: func(c *Config) {
				c.Datasets = []*DatasetConfig{{Name: "a", Product: "P"}, {Name: "a", Product: "Q"}}
			},
			wantErr: errors.ErrConfigValidation,
			errMsg:  "more than once",
		},
		{
			name:    "dataset without product",
			mutate:  func(c *Config) { c.Datasets = []*DatasetConfig{{Name: "a"}} },
			wantErr: errors.ErrConfigValidation,
			errMsg:  "empty product",
		},
		{
			name:    "bad date",
			mutate:  func(c *Config) { c.Datasets = []*DatasetConfig{{Name: "a", Product: "P", StartDate: "2016/01/01"}} },
			wantErr: errors.ErrConfigValidation,
			errMsg:  "bad start_date",
		},
		{
			name: "reversed dates",
			mutate: func(c *Config) {
				c.Datasets = []*DatasetConfig{{Name: "a", Product: "P", StartDate: "2017-01-01", EndDate: "2016-01-01"}}
			},
			wantErr: errors.ErrInvalidDateRange,
		},
		{
			name:    "band out of range",
			mutate:  func(c *Config) { c.Window.Bands = []int{34} },
			wantErr: errors.ErrConfigValidation,
			errMsg:  "band 34",
		},
		{
			name:    "zero transfer workers",
			mutate:  func(c *Config) { c.Settings.TransferWorkers = 0 },
			wantErr: errors.ErrConfigValidation,
			errMsg:  "worker counts",
		},
		{
			name:    "negative rate limit",
			mutate:  func(c *Config) { c.Settings.RateLimit = -1 },
			wantErr: errors.ErrConfigValidation,
			errMsg:  "rate_limit",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Settings.SnapshotBackend = "postgres" },
			wantErr: errors.ErrConfigValidation,
			errMsg:  "postgres",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Settings.LogLevel = "trace" },
			wantErr: errors.ErrConfigValidation,
			errMsg:  "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestGetDataset(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.AddDataset(&DatasetConfig{Name: "albedo", Product: "MCD43D01"}))
	assert.ErrorIs(t, cfg.AddDataset(&DatasetConfig{Name: "albedo", Product: "X"}), errors.ErrConfigValidation)

	d, err := cfg.GetDataset("albedo")
	require.NoError(t, err)
	assert.Equal(t, "MCD43D01", d.Product)

	_, err = cfg.GetDataset("nope")
	assert.ErrorIs(t, err, errors.ErrUnknownDataset)
}

func TestResolveToken(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Archive.TokenEnv = "MCD43GF_TEST_TOKEN"

	t.Setenv("MCD43GF_TEST_TOKEN", "")
	_, err := cfg.ResolveToken()
	assert.ErrorIs(t, err, errors.ErrMissingCredentials)

	t.Setenv("MCD43GF_TEST_TOKEN", " from-env ")
	tok, err := cfg.ResolveToken()
	require.NoError(t, err)
	assert.Equal(t, "from-env", tok)

	cfg.Archive.Token = "inline"
	tok, err = cfg.ResolveToken()
	require.NoError(t, err)
	assert.Equal(t, "inline", tok)
}

func TestGetDefaultConfigPath(t *testing.T) {
	path, err := GetDefaultConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", filepath.Base(path))
	assert.Equal(t, "mcd43gf", filepath.Base(filepath.Dir(path)))
}
