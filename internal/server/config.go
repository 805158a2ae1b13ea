package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/iwvelando/land-cashflow/internal/config"
	"github.com/iwvelando/land-cashflow/pkg/constants"
	"gopkg.in/yaml.v3"
)

// Config defines runtime parameters for the HTTP server.
type Config struct {
	Address       string               `yaml:"address"`
	MaxUploadSize string               `yaml:"maxUploadSize"`
	Logging       config.LoggingConfig `yaml:"logging"`
	// Source, when set, serves stored projects at /api/projects/{projectID}/cashflow.
	Source         config.SourceConfig `yaml:"source"`
	AllowedOrigins []string            `yaml:"allowedOrigins"`
	Timeouts       Timeouts            `yaml:"timeouts"`

	uploadSizeBytes int64
}

// Timeouts bounds request handling and graceful shutdown.
type Timeouts struct {
	ReadHeader time.Duration `yaml:"readHeader"`
	Write      time.Duration `yaml:"write"`
	Shutdown   time.Duration `yaml:"shutdown"`
}

func defaultConfig() *Config {
	return &Config{
		Address:        constants.DefaultServerAddress,
		MaxUploadSize:  strconv.FormatInt(constants.DefaultMaxUploadSizeBytes, 10),
		AllowedOrigins: []string{"*"},
		Timeouts: Timeouts{
			ReadHeader: constants.DefaultReadHeaderTimeout,
			Write:      constants.DefaultWriteTimeout,
			Shutdown:   constants.DefaultShutdownTimeout,
		},
		uploadSizeBytes: constants.DefaultMaxUploadSizeBytes,
	}
}

// LoadConfig loads the server configuration from YAML. A missing file or an
// empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read server config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse server config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UploadSizeBytes returns the configured upload size in bytes.
func (c *Config) UploadSizeBytes() int64 {
	return c.uploadSizeBytes
}

// SetUploadSizeBytes overrides the configured upload size.
func (c *Config) SetUploadSizeBytes(size int64) {
	if size <= 0 {
		return
	}
	c.uploadSizeBytes = size
	c.MaxUploadSize = strconv.FormatInt(size, 10)
}

func (c *Config) normalize() error {
	defaults := defaultConfig()
	if c.Address == "" {
		c.Address = defaults.Address
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = defaults.AllowedOrigins
	}
	if c.Source.Driver == "" && c.Source.DSN != "" {
		return fmt.Errorf("server source has a DSN but no driver")
	}
	if c.Timeouts.ReadHeader <= 0 {
		c.Timeouts.ReadHeader = defaults.Timeouts.ReadHeader
	}
	if c.Timeouts.Write < 0 {
		return fmt.Errorf("write timeout must not be negative")
	}
	if c.Timeouts.Shutdown <= 0 {
		c.Timeouts.Shutdown = defaults.Timeouts.Shutdown
	}

	size, err := ParseSize(c.MaxUploadSize)
	if err != nil {
		return err
	}
	if size <= 0 {
		size = constants.DefaultMaxUploadSizeBytes
	}
	c.uploadSizeBytes = size
	return nil
}

var sizeUnits = map[string]int64{
	"":   1,
	"B":  1,
	"K":  1 << 10,
	"KB": 1 << 10,
	"M":  1 << 20,
	"MB": 1 << 20,
	"G":  1 << 30,
	"GB": 1 << 30,
}

// ParseSize converts a byte string such as "256K" or "10MB" into bytes. An
// empty string means the default upload size.
func ParseSize(value string) (int64, error) {
	upper := strings.ToUpper(strings.TrimSpace(value))
	if upper == "" {
		return constants.DefaultMaxUploadSizeBytes, nil
	}

	unit := strings.TrimLeft(upper, "0123456789 ")
	digits := strings.TrimSpace(strings.TrimSuffix(upper, unit))
	if digits == "" {
		return 0, fmt.Errorf("invalid size: %s", value)
	}
	multiplier, ok := sizeUnits[strings.TrimSpace(unit)]
	if !ok {
		return 0, fmt.Errorf("unsupported size unit %q", unit)
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value %q: %w", value, err)
	}
	if n > (1<<63-1)/multiplier {
		return 0, fmt.Errorf("size overflow for value %s", value)
	}
	return n * multiplier, nil
}
