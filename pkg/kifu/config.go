package kifu

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds defaults for the command tools. Flags override it.
type Config struct {
	Workers         int    `json:"workers"`
	To              string `json:"to"`
	ShiftJIS        bool   `json:"shift_jis"`
	ParquetParallel int64  `json:"parquet_parallel"`
}

const configName = "config.json"

func DefaultConfig() Config {
	return Config{Workers: 4, To: "kif", ParquetParallel: 4}
}

// LoadConfig reads path over the defaults; fields missing from the file
// keep their default values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if _, err := ParseFormat(cfg.To); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Workers <= 0 {
		return Config{}, fmt.Errorf("%s: workers must be > 0", path)
	}
	return cfg, nil
}

// FindConfig loads the config.json nearest to the working directory,
// looking in each parent in turn. Without one it returns the defaults.
func FindConfig() (Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}
	for {
		path := filepath.Join(dir, configName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return LoadConfig(path)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return DefaultConfig(), nil
		}
		dir = parent
	}
}
