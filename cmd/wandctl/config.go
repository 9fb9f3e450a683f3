package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/moveparty/wand/internal/zcm1"
)

// Config is the operator-tunable subset of the stack: which devices to match
// and how the registry paces its ticks.
type Config struct {
	VendorID   uint16   `yaml:"vendor_id"`
	ProductIDs []uint16 `yaml:"product_ids"`

	Tick        time.Duration `yaml:"tick"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxFailures int           `yaml:"max_failures"`
}

func defaultConfig() Config {
	return Config{
		VendorID:    zcm1.VendorID,
		ProductIDs:  []uint16{zcm1.ProductIDZCM1, zcm1.ProductIDZCM2},
		Tick:        16 * time.Millisecond,
		Timeout:     10 * time.Millisecond,
		MaxFailures: 10,
	}
}

// loadConfig reads a YAML config file over the defaults. An empty path or a
// missing file yields the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if len(cfg.ProductIDs) == 0 {
		return cfg, fmt.Errorf("config %s: no product IDs", path)
	}
	return cfg, nil
}
