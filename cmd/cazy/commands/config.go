package commands

import (
	"errors"
	"fmt"
	"os"

	"cazy-scraper/lib/configutil"
	"cazy-scraper/lib/scrapers/cazy/family"
	"cazy-scraper/lib/scrapers/cazy/genome"
	"cazy-scraper/services/cazy/crawl"
)

type Config struct {
	BaseUrl string `json:"base_url"`
	// genome category -> page relative to base_url
	Genomes map[string]string `json:"genomes"`
	// enzyme class -> family index page relative to base_url
	Enzymes map[string]string `json:"enzymes"`
	// seconds
	RequestTimeout    int    `json:"request_timeout"`
	Workers           int    `json:"workers"`
	UserAgent         string `json:"user_agent"`
	CloudflareBypass  bool   `json:"cloudflare_bypass"`
	RespectRobots     bool   `json:"respect_robots"`
	TaxonomyDb        string `json:"taxonomy_db"`
	LegacyTaxidSchema bool   `json:"legacy_taxid_schema"`
}

const (
	defaultRequestTimeout = 60
	defaultTaxonomyDb     = "taxonomy.db"
)

// LoadConfig reads and validates the config at `path`, problems are
// returned as *crawl.ConfigError.
func LoadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, &crawl.ConfigError{Msg: fmt.Sprintf("config file %s not found", path)}
	}
	if err != nil {
		return Config{}, &crawl.ConfigError{Msg: err.Error()}
	}

	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.TaxonomyDb == "" {
		cfg.TaxonomyDb = defaultTaxonomyDb
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.BaseUrl == "" {
		return &crawl.ConfigError{Msg: "base_url is empty"}
	}
	if len(c.Genomes) == 0 && len(c.Enzymes) == 0 {
		return &crawl.ConfigError{Msg: "neither genomes nor enzymes are configured"}
	}
	if c.RequestTimeout < 0 {
		return &crawl.ConfigError{Msg: "request_timeout must not be negative"}
	}
	for name := range c.Genomes {
		if _, err := genome.ParseCategory(name); err != nil {
			return &crawl.ConfigError{Msg: err.Error()}
		}
	}
	for class := range c.Enzymes {
		if _, ok := family.Abbreviations[class]; !ok {
			return &crawl.ConfigError{Msg: fmt.Sprintf("unknown enzyme class %q, expected one of %v", class, family.Classes)}
		}
	}
	return nil
}

// crawlWorkers prefers --workers over the config.
func (c Config) crawlWorkers() int {
	if *workers != 0 {
		return *workers
	}
	return c.Workers
}
