package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Collection declares a music-token collection the daemon registers at boot.
type Collection struct {
	Name   string `toml:"Name"`
	Symbol string `toml:"Symbol"`
}

type Config struct {
	RPCAddress   string       `toml:"RPCAddress"`
	DataDir      string       `toml:"DataDir"`
	Environment  string       `toml:"Environment"`
	MarketFeeBps uint32       `toml:"MarketFeeBps"`
	FeeOwner     string       `toml:"FeeOwner"`
	RPCAuthToken string       `toml:"RPCAuthToken"`
	Collections  []Collection `toml:"Collections"`
}

const defaultMarketFeeBps = 250

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	// An explicit MarketFeeBps of zero disables the marketplace fee, so the
	// default only applies when the key is absent from the file.
	if !meta.IsDefined("MarketFeeBps") {
		cfg.MarketFeeBps = defaultMarketFeeBps
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "localhost:8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./melodia-data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "dev"
	}
	if cfg.Collections == nil {
		cfg.Collections = []Collection{}
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.MarketFeeBps = defaultMarketFeeBps
	cfg.Collections = []Collection{{Name: "Melodia Music", Symbol: "MELO"}}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}

// Validate rejects configurations the daemon cannot run with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if cfg.MarketFeeBps > 10_000 {
		return fmt.Errorf("config: MarketFeeBps out of range: %d", cfg.MarketFeeBps)
	}
	for _, collection := range cfg.Collections {
		if strings.TrimSpace(collection.Name) == "" {
			return fmt.Errorf("config: collection name required")
		}
	}
	return nil
}
