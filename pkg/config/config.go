// Package config loads, validates and saves the mirror's YAML configuration:
// where the archive lives, which datasets to mirror, how band windows are
// laid out, and the tuning knobs of the crawler, client and transfer engine.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/auth"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/fsutil"
)

// Config represents the application configuration.
type Config struct {
	Archive  ArchiveConfig    `yaml:"archive"`
	Datasets []*DatasetConfig `yaml:"datasets"`
	Window   WindowConfig     `yaml:"window"`
	Settings Settings         `yaml:"settings"`
}

// ArchiveConfig locates the remote archive and its credentials.
type ArchiveConfig struct {
	BaseURL    string `yaml:"base_url"`
	Collection string `yaml:"collection"`
	// Token is used as is; when empty the env variable TokenEnv is read.
	Token    string `yaml:"token,omitempty"`
	TokenEnv string `yaml:"token_env,omitempty"`
}

// DatasetConfig names one product to crawl and mirror.
type DatasetConfig struct {
	Name       string `yaml:"name"`
	Collection string `yaml:"collection,omitempty"`
	Product    string `yaml:"product"`
	// StartDate and EndDate are YYYY-MM-DD, inclusive; empty leaves that side open.
	StartDate string   `yaml:"start_date,omitempty"`
	EndDate   string   `yaml:"end_date,omitempty"`
	Include   []string `yaml:"include,omitempty"`
	Exclude   []string `yaml:"exclude,omitempty"`
}

// WindowConfig describes which products feed each band window.
type WindowConfig struct {
	ProductPrefix string   `yaml:"product_prefix"`
	GroupSize     int      `yaml:"group_size"`
	Shared        []string `yaml:"shared"`
	Bands         []int    `yaml:"bands"`
}

// Settings represents general application settings.
type Settings struct {
	// Storage
	MirrorRoot        string `yaml:"mirror_root,omitempty"`
	LinkRoot          string `yaml:"link_root,omitempty"`
	SnapshotDir       string `yaml:"snapshot_dir,omitempty"`
	ReportDir         string `yaml:"report_dir,omitempty"`
	SnapshotBackend   string `yaml:"snapshot_backend"` // file, sqlite
	CompressSnapshots bool   `yaml:"compress_snapshots"`

	// Crawl and transfer
	CrawlWorkers     int `yaml:"crawl_workers"`
	CrawlChunkSize   int `yaml:"crawl_chunk_size"`
	TransferWorkers  int `yaml:"transfer_workers"`
	TransferAttempts int `yaml:"transfer_attempts"`

	// Network
	RequestAttempts    int           `yaml:"request_attempts"`
	AttemptsPerSession int           `yaml:"attempts_per_session"`
	BackoffBase        time.Duration `yaml:"backoff_base"`
	BackoffIncrement   time.Duration `yaml:"backoff_increment"`
	HTTPTimeout        time.Duration `yaml:"http_timeout"`
	RateLimit          float64       `yaml:"rate_limit"`

	// Output
	OutputFormat string `yaml:"output_format"` // text, json, auto
	LogLevel     string `yaml:"log_level"`     // debug, info, warn, error
	MetricsAddr  string `yaml:"metrics_addr,omitempty"`
}

// Snapshot backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Default configuration values.
const (
	DefaultBaseURL            = "https://ladsweb.modaps.eosdis.nasa.gov/archive/allData"
	DefaultCollection         = "61"
	DefaultCrawlWorkers       = 5
	DefaultCrawlChunkSize     = 50
	DefaultTransferWorkers    = 3
	DefaultTransferAttempts   = 3
	DefaultRequestAttempts    = 10
	DefaultAttemptsPerSession = 3
	DefaultBackoffIncrement   = time.Second
	DefaultHTTPTimeout        = 10 * time.Minute

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Archive: ArchiveConfig{
			BaseURL:    DefaultBaseURL,
			Collection: DefaultCollection,
			TokenEnv:   auth.DefaultTokenEnv,
		},
		Datasets: []*DatasetConfig{},
		Window: WindowConfig{
			ProductPrefix: "MCD43D",
			GroupSize:     3,
			Shared:        []string{"MCD43D31", "MCD43D40"},
			Bands:         []int{1, 2, 3, 4, 5, 6, 7},
		},
		Settings: Settings{
			MirrorRoot:         fsutil.DefaultMirrorRoot(),
			LinkRoot:           fsutil.DefaultLinkRoot(),
			SnapshotDir:        fsutil.DefaultSnapshotDir(),
			ReportDir:          fsutil.DefaultReportDir(),
			SnapshotBackend:    BackendFile,
			CompressSnapshots:  true,
			CrawlWorkers:       DefaultCrawlWorkers,
			CrawlChunkSize:     DefaultCrawlChunkSize,
			TransferWorkers:    DefaultTransferWorkers,
			TransferAttempts:   DefaultTransferAttempts,
			RequestAttempts:    DefaultRequestAttempts,
			AttemptsPerSession: DefaultAttemptsPerSession,
			BackoffIncrement:   DefaultBackoffIncrement,
			HTTPTimeout:        DefaultHTTPTimeout,
			OutputFormat:       "auto",
			LogLevel:           "info",
		},
	}
}

// LoadConfig loads configuration from a file. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// SaveConfig writes the configuration atomically with owner/group read access.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	if err := os.MkdirAll(filepath.Dir(absPath), fsutil.DirModeSecure); err != nil {
		return errors.Wrap(errors.ErrConfigDirectory, err.Error())
	}

	err = fsutil.WriteFileAtomic(absPath, fsutil.FileModeSecure, func(w io.Writer) error {
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(YAMLIndent)
		if err := encoder.Encode(c); err != nil {
			return errors.Wrap(errors.ErrConfigEncode, err.Error())
		}
		return encoder.Close()
	})
	if err != nil {
		return errors.Wrapf(err, "failed to save config to %s", absPath)
	}
	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfigMarshal, err.Error())
	}
	return data, nil
}

// Validate checks if the configuration is valid. Every failure wraps
// ErrConfigValidation.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	if err := validateArchive(c.Archive); err != nil {
		return err
	}
	if err := validateDatasets(c.Datasets); err != nil {
		return err
	}
	if err := validateWindow(c.Window); err != nil {
		return err
	}
	return validateSettings(c.Settings)
}

func validateArchive(a ArchiveConfig) error {
	if a.BaseURL == "" {
		return errors.Wrap(errors.ErrConfigValidation, "archive.base_url is empty")
	}
	if !strings.HasPrefix(a.BaseURL, "http://") && !strings.HasPrefix(a.BaseURL, "https://") {
		return errors.Wrapf(errors.ErrConfigValidation, "archive.base_url %q is not an http(s) URL", a.BaseURL)
	}
	if a.Collection == "" {
		return errors.Wrap(errors.ErrConfigValidation, "archive.collection is empty")
	}
	return nil
}

func validateDatasets(datasets []*DatasetConfig) error {
	names := make(map[string]bool)
	for i, d := range datasets {
		if d == nil {
			return errors.ErrDatasetFieldEmpty(i, "definition")
		}
		if d.Name == "" {
			return errors.ErrDatasetFieldEmpty(i, "name")
		}
		if d.Product == "" {
			return errors.ErrDatasetFieldEmpty(i, "product")
		}
		if names[d.Name] {
			return errors.ErrDatasetExistsWithName(d.Name)
		}
		names[d.Name] = true
		if _, _, err := d.Range(); err != nil {
			return err
		}
	}
	return nil
}

func validateWindow(w WindowConfig) error {
	if w.ProductPrefix == "" {
		return errors.Wrap(errors.ErrConfigValidation, "window.product_prefix is empty")
	}
	if w.GroupSize < 1 {
		return errors.Wrap(errors.ErrConfigValidation, "window.group_size must be at least 1")
	}
	for _, b := range w.Bands {
		if b < 1 || b*w.GroupSize > 99 {
			return errors.Wrapf(errors.ErrConfigValidation, "window band %d: %v", b, errors.ErrBandOutOfRange)
		}
	}
	return nil
}

func validateSettings(s Settings) error {
	invalid := func(err error) error { return errors.Wrap(errors.ErrConfigValidation, err.Error()) }

	if s.CrawlWorkers < 1 || s.TransferWorkers < 1 {
		return invalid(errors.ErrWorkersInvalid)
	}
	if s.CrawlChunkSize < 1 {
		return invalid(errors.ErrChunkSizeInvalid)
	}
	if s.TransferAttempts < 1 || s.RequestAttempts < 1 || s.AttemptsPerSession < 1 {
		return invalid(errors.ErrAttemptsInvalid)
	}
	if s.HTTPTimeout < 0 {
		return invalid(errors.ErrHTTPTimeoutNegative)
	}
	if s.BackoffBase < 0 || s.BackoffIncrement < 0 {
		return errors.Wrap(errors.ErrConfigValidation, "backoff durations cannot be negative")
	}
	if s.RateLimit < 0 {
		return invalid(errors.ErrRateLimitNegative)
	}
	switch s.SnapshotBackend {
	case BackendFile, BackendSQLite:
	default:
		return errors.Wrapf(errors.ErrConfigValidation, "%v: %q", errors.ErrUnknownSnapshotStore, s.SnapshotBackend)
	}
	validFormats := map[string]bool{"text": true, "json": true, "auto": true}
	if !validFormats[s.OutputFormat] {
		return errors.ErrInvalidOutputFormatWithDetails(s.OutputFormat)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(s.LogLevel)] {
		return errors.ErrInvalidLogLevelWithDetails(s.LogLevel)
	}
	return nil
}

// Range parses the dataset's date bounds. Unset bounds are zero.
func (d *DatasetConfig) Range() (start, end time.Time, err error) {
	parse := func(field, v string) (time.Time, error) {
		if v == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return time.Time{}, errors.Wrapf(errors.ErrConfigValidation, "dataset %q: bad %s %q", d.Name, field, v)
		}
		return t, nil
	}
	if start, err = parse("start_date", d.StartDate); err != nil {
		return
	}
	if end, err = parse("end_date", d.EndDate); err != nil {
		return
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		err = fmt.Errorf("dataset %q: %w: %w", d.Name, errors.ErrInvalidDateRange, errors.ErrConfigValidation)
	}
	return
}

// GetDataset returns the named dataset or ErrUnknownDataset.
func (c *Config) GetDataset(name string) (*DatasetConfig, error) {
	for _, d := range c.Datasets {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrUnknownDataset, "%q", name)
}

// DatasetNames lists the configured dataset names in file order.
func (c *Config) DatasetNames() []string {
	names := make([]string, 0, len(c.Datasets))
	for _, d := range c.Datasets {
		names = append(names, d.Name)
	}
	return names
}

// AddDataset appends d, rejecting duplicate names.
func (c *Config) AddDataset(d *DatasetConfig) error {
	for _, existing := range c.Datasets {
		if existing.Name == d.Name {
			return errors.ErrDatasetExistsWithName(d.Name)
		}
	}
	c.Datasets = append(c.Datasets, d)
	return nil
}

// ResolveToken returns the archive token from the config or the environment.
func (c *Config) ResolveToken() (string, error) {
	return auth.ResolveToken(c.Archive.Token, c.Archive.TokenEnv)
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, fsutil.AppName, "config.yaml"), nil
}

// applyDefaults fills in missing values with defaults.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Archive.BaseURL == "" {
		c.Archive.BaseURL = defaults.Archive.BaseURL
	}
	c.Archive.BaseURL = strings.TrimRight(c.Archive.BaseURL, "/")
	if c.Archive.Collection == "" {
		c.Archive.Collection = defaults.Archive.Collection
	}
	if c.Archive.TokenEnv == "" {
		c.Archive.TokenEnv = defaults.Archive.TokenEnv
	}
	for _, d := range c.Datasets {
		if d != nil && d.Collection == "" {
			d.Collection = c.Archive.Collection
		}
	}

	if c.Window.ProductPrefix == "" {
		c.Window.ProductPrefix = defaults.Window.ProductPrefix
	}
	if c.Window.GroupSize == 0 {
		c.Window.GroupSize = defaults.Window.GroupSize
	}
	if c.Window.Shared == nil {
		c.Window.Shared = defaults.Window.Shared
	}
	if len(c.Window.Bands) == 0 {
		c.Window.Bands = defaults.Window.Bands
	}

	s, d := &c.Settings, defaults.Settings
	setString := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	setInt := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}
	setString(&s.MirrorRoot, d.MirrorRoot)
	setString(&s.LinkRoot, d.LinkRoot)
	setString(&s.SnapshotDir, d.SnapshotDir)
	setString(&s.ReportDir, d.ReportDir)
	setString(&s.SnapshotBackend, d.SnapshotBackend)
	setString(&s.OutputFormat, d.OutputFormat)
	setString(&s.LogLevel, d.LogLevel)
	setInt(&s.CrawlWorkers, d.CrawlWorkers)
	setInt(&s.CrawlChunkSize, d.CrawlChunkSize)
	setInt(&s.TransferWorkers, d.TransferWorkers)
	setInt(&s.TransferAttempts, d.TransferAttempts)
	setInt(&s.RequestAttempts, d.RequestAttempts)
	setInt(&s.AttemptsPerSession, d.AttemptsPerSession)
	if s.BackoffIncrement == 0 {
		s.BackoffIncrement = d.BackoffIncrement
	}
	if s.HTTPTimeout == 0 {
		s.HTTPTimeout = d.HTTPTimeout
	}
}
