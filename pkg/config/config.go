package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configName = "config"
	envPrefix  = "FOUNDRY"
)

type Config struct {
	App       AppConfig                 `mapstructure:"app" json:"app"`
	Gateways  map[string]GatewayConfig  `mapstructure:"gateways" json:"gateways"`
	Providers map[string]ProviderConfig `mapstructure:"providers" json:"providers"`
	Models    ModelsConfig              `mapstructure:"models" json:"models"`
	Memory    MemoryConfig              `mapstructure:"memory" json:"memory"`
	Pipeline  PipelineConfig            `mapstructure:"pipeline" json:"pipeline"`
	Images    ImagesConfig              `mapstructure:"images" json:"images"`
	Video     VideoConfig               `mapstructure:"video" json:"video"`
	Export    ExportConfig              `mapstructure:"export" json:"export"`
	Metrics   MetricsConfig             `mapstructure:"metrics" json:"metrics"`
	Logging   LoggingConfig             `mapstructure:"logging" json:"logging"`
}

type AppConfig struct {
	Name      string `mapstructure:"name" json:"name"`
	Workspace string `mapstructure:"workspace" json:"workspace"`
	Owner     string `mapstructure:"owner" json:"owner"`
}

type GatewayConfig struct {
	Token   string `mapstructure:"token" json:"token"`
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key" json:"api_key"`
	BaseURL string `mapstructure:"base_url" json:"base_url,omitempty"`
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
}

// ModelsConfig maps capability tiers to provider model names.
type ModelsConfig struct {
	Fast     string `mapstructure:"fast" json:"fast"`
	Quality  string `mapstructure:"quality" json:"quality"`
	Creative string `mapstructure:"creative" json:"creative"`
}

type MemoryConfig struct {
	Type string `mapstructure:"type" json:"type"`
	Path string `mapstructure:"path" json:"path"`
}

type PipelineConfig struct {
	Retries           int           `mapstructure:"retries" json:"retries"`
	BaseDelay         time.Duration `mapstructure:"base_delay" json:"base_delay"`
	GapAnalysis       bool          `mapstructure:"gap_analysis" json:"gap_analysis"`
	Framing           bool          `mapstructure:"framing" json:"framing"`
	Refinement        bool          `mapstructure:"refinement" json:"refinement"`
	Fast              bool          `mapstructure:"fast" json:"fast"`
	Deliverables      []string      `mapstructure:"deliverables" json:"deliverables"`
	MaxRunsPerOwner   int           `mapstructure:"max_runs_per_owner" json:"max_runs_per_owner"`
	AllowedOwners     []string      `mapstructure:"allowed_owners" json:"allowed_owners"`
	DeniedOwners      []string      `mapstructure:"denied_owners" json:"denied_owners"`
	SearchResults     int           `mapstructure:"search_results" json:"search_results"`
	ScrapeTop         int           `mapstructure:"scrape_top" json:"scrape_top"`
	VideoPollInterval time.Duration `mapstructure:"video_poll_interval" json:"video_poll_interval"`
	PromptsDir        string        `mapstructure:"prompts_dir" json:"prompts_dir"`
}

type ImagesConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Model   string `mapstructure:"model" json:"model"`
}

type VideoConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Model   string `mapstructure:"model" json:"model"`
}

type ExportConfig struct {
	PDF        bool          `mapstructure:"pdf" json:"pdf"`
	Formats    []string      `mapstructure:"formats" json:"formats"`
	PDFTimeout time.Duration `mapstructure:"pdf_timeout" json:"pdf_timeout"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr" json:"addr"`
}

type LoggingConfig struct {
	Events bool   `mapstructure:"events" json:"events"`
	LLMLog string `mapstructure:"llm_log" json:"llm_log"`
}

// LoadConfig reads path (JSON or YAML by extension) or, when path is
// empty, config.{json,yaml} from the working directory. FOUNDRY_* env
// vars override file values, e.g. FOUNDRY_PIPELINE_RETRIES. A missing
// default file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Foundry")
	v.SetDefault("app.workspace", "./workspace")
	v.SetDefault("app.owner", "local")

	v.SetDefault("models.fast", "gpt-4o-mini")
	v.SetDefault("models.quality", "gpt-4o")
	v.SetDefault("models.creative", "gpt-4o")

	v.SetDefault("memory.type", "sqlite")
	v.SetDefault("memory.path", "./foundry.db")

	v.SetDefault("pipeline.retries", 3)
	v.SetDefault("pipeline.base_delay", 10*time.Second)
	v.SetDefault("pipeline.gap_analysis", true)
	v.SetDefault("pipeline.framing", true)
	v.SetDefault("pipeline.refinement", true)
	v.SetDefault("pipeline.fast", false)
	v.SetDefault("pipeline.deliverables", []string{})
	v.SetDefault("pipeline.max_runs_per_owner", 0)
	v.SetDefault("pipeline.allowed_owners", []string{})
	v.SetDefault("pipeline.denied_owners", []string{})
	v.SetDefault("pipeline.search_results", 8)
	v.SetDefault("pipeline.scrape_top", 0)
	v.SetDefault("pipeline.video_poll_interval", 10*time.Second)
	v.SetDefault("pipeline.prompts_dir", "")

	v.SetDefault("images.enabled", false)
	v.SetDefault("images.model", "gpt-image-1")
	v.SetDefault("video.enabled", false)
	v.SetDefault("video.model", "")

	v.SetDefault("metrics.addr", "")

	v.SetDefault("logging.events", true)
	v.SetDefault("logging.llm_log", "logs/llm.jsonl")

	v.SetDefault("export.pdf", false)
	v.SetDefault("export.formats", []string{"html"})
	v.SetDefault("export.pdf_timeout", 60*time.Second)
}

// Validate checks value ranges. Provider presence is checked by the
// commands that need a model.
func (c *Config) Validate() error {
	if c.Pipeline.Retries < 0 {
		return fmt.Errorf("pipeline.retries must not be negative")
	}
	if c.Pipeline.BaseDelay < 0 {
		return fmt.Errorf("pipeline.base_delay must not be negative")
	}
	if c.Pipeline.MaxRunsPerOwner < 0 {
		return fmt.Errorf("pipeline.max_runs_per_owner must not be negative")
	}
	if c.Pipeline.ScrapeTop < 0 || c.Pipeline.SearchResults < 0 {
		return fmt.Errorf("pipeline.scrape_top and pipeline.search_results must not be negative")
	}
	if c.Models.Fast == "" {
		return fmt.Errorf("models.fast is required")
	}
	return nil
}

// GetDefaultProvider returns the first enabled provider in name order.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if p := c.Providers[name]; p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetGateway returns a gateway config if it is enabled and has a token.
func (c *Config) GetGateway(name string) (GatewayConfig, bool) {
	gw, ok := c.Gateways[name]
	if ok && gw.Enabled && gw.Token != "" {
		return gw, true
	}
	return GatewayConfig{}, false
}
