// Package pfconfig holds the configuration shared by the paged file, record
// file and linear-hash index layers: where files live on disk, what page
// size they use, and the logger each layer's lifecycle events are written
// to.
package pfconfig

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DefaultPageSize is the fixed page size spec.md requires in production;
// tests may override it via NewWithParams to exercise boundary
// conditions with a smaller page.
const DefaultPageSize = 4096

// DefaultInitialBuckets is the default initial bucket count for a
// newly created linear-hash index when the caller doesn't specify one.
const DefaultInitialBuckets = 4

// Config holds the parameters that govern where and how pagestore's files
// are created, plus the logger the layers are handed at construction
// rather than reaching for a package-global.
type Config struct {
	DataDir               string `json:"datadir"`
	PageSize              int    `json:"pagesize"`
	DefaultInitialBuckets int    `json:"default_initial_buckets"`
	Logger                *zap.SugaredLogger
}

// New constructs a Config with default page size and bucket count.
func New(dataDir string, logger *zap.SugaredLogger) *Config {
	return &Config{
		DataDir:               dataDir,
		PageSize:              DefaultPageSize,
		DefaultInitialBuckets: DefaultInitialBuckets,
		Logger:                logger,
	}
}

// NewWithParams constructs a Config with explicit page size, useful for
// tests that need to exercise small-page boundary conditions.
func NewWithParams(dataDir string, pageSize int, logger *zap.SugaredLogger) *Config {
	return &Config{
		DataDir:               dataDir,
		PageSize:              pageSize,
		DefaultInitialBuckets: DefaultInitialBuckets,
		Logger:                logger,
	}
}

// Load reads configuration from a text file. The loader accepts either JSON
// (e.g. {"datadir":"./DB"}) or a simple key=value / key: value format.
// Whichever form is used, a missing datadir is an error; all other fields
// fall back to their defaults.
func Load(filePath string, logger *zap.SugaredLogger) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty config file")
	}

	var c Config
	if err := json.Unmarshal(data, &c); err == nil && c.DataDir != "" {
		c.Logger = logger
		fillDefaults(&c)
		return &c, nil
	}

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, sep := range []string{"=", ":"} {
			parts := strings.SplitN(line, sep, 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
			applyField(&c, key, val)
			break
		}
	}
	if c.DataDir == "" {
		return nil, errors.New("datadir not found in config")
	}
	c.Logger = logger
	fillDefaults(&c)
	return &c, nil
}

func applyField(c *Config, key, val string) {
	switch key {
	case "datadir":
		c.DataDir = val
	case "pagesize":
		if v, err := strconv.Atoi(val); err == nil {
			c.PageSize = v
		}
	case "default_initial_buckets":
		if v, err := strconv.Atoi(val); err == nil {
			c.DefaultInitialBuckets = v
		}
	}
}

func fillDefaults(c *Config) {
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.DefaultInitialBuckets == 0 {
		c.DefaultInitialBuckets = DefaultInitialBuckets
	}
}
