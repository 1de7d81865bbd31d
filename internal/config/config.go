package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const envPrefix = "GLOBE_"

type Config struct {
	Defaults struct {
		DBPath     string `toml:"db_path"`
		AgentsFile string `toml:"agents_file"`
		RolesDir   string `toml:"roles_dir"`
	} `toml:"defaults"`
	LLM struct {
		Provider string `toml:"provider"`
		Model    string `toml:"model"`
		BaseURL  string `toml:"base_url"`
	} `toml:"llm"`
	Search struct {
		BaseURL        string `toml:"base_url"`
		TimeoutSeconds int    `toml:"timeout_seconds"`
		Currency       string `toml:"currency"`
		HotelProvider  string `toml:"hotel_provider"`
	} `toml:"search"`
	Itinerary struct {
		ChunkSize              int `toml:"chunk_size"`
		MaxNeighborhoodsPerDay int `toml:"max_neighborhoods_per_day"`
	} `toml:"itinerary"`
	Logging struct {
		Level  string `toml:"level"`
		File   string `toml:"file"`
		Format string `toml:"format"`
	} `toml:"logging"`
}

func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "globetrip")
}

func GetConfigPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// Default returns the built-in configuration that config.toml is decoded over.
func Default() *Config {
	var cfg Config
	dir := Dir()

	cfg.Defaults.DBPath = filepath.Join(dir, "globetrip.db")
	cfg.Defaults.AgentsFile = filepath.Join(dir, "agents.yaml")
	cfg.Defaults.RolesDir = filepath.Join(dir, "roles")
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.Model = "claude-sonnet-4-5"
	cfg.Search.BaseURL = "https://www.searchapi.io/api/v1/search"
	cfg.Search.TimeoutSeconds = 15
	cfg.Search.Currency = "USD"
	cfg.Itinerary.ChunkSize = 3
	cfg.Itinerary.MaxNeighborhoodsPerDay = 2
	cfg.Logging.Level = "info"
	cfg.Logging.File = filepath.Join(dir, "globetrip.log")
	cfg.Logging.Format = "json"
	return &cfg
}

// LoadFile decodes path over the defaults and applies GLOBE_* environment
// overrides. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return cfg, err
	}
	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

// ReadFile decodes path over the defaults without environment overrides.
func ReadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	for key, dst := range map[string]*string{
		"LLM_PROVIDER":    &c.LLM.Provider,
		"LLM_MODEL":       &c.LLM.Model,
		"LLM_BASE_URL":    &c.LLM.BaseURL,
		"LOG_LEVEL":       &c.Logging.Level,
		"DB_PATH":         &c.Defaults.DBPath,
		"SEARCH_BASE_URL": &c.Search.BaseURL,
	} {
		if v, ok := lookup(envPrefix + key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}
