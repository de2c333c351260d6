package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"cuckoominer/internal/logging"
	"cuckoominer/pkg/mining/core"
	"cuckoominer/pkg/mining/discovery"
	"cuckoominer/pkg/mining/factory"
	"cuckoominer/pkg/mining/hardware"
	"cuckoominer/pkg/mining/methods/plugin"
)

// EnvPrefix is prepended to every environment override, e.g. CUCKOO_SIZESHIFT
const EnvPrefix = "CUCKOO"

// NodeConfig is the miner node's configuration
type NodeConfig struct {
	// Consensus parameters
	Ease      uint32 `json:"ease" mapstructure:"ease"`
	Sizeshift uint32 `json:"sizeshift" mapstructure:"sizeshift"`

	// Engine settings
	ThreadCount uint32 `json:"thread_count" mapstructure:"thread_count"`
	TrimRounds  uint32 `json:"trim_rounds" mapstructure:"trim_rounds"`

	// Plugin discovery; an empty BaseDir means the executable's directory
	BaseDir        string   `json:"base_dir" mapstructure:"base_dir"`
	PluginSubdir   string   `json:"plugin_subdir" mapstructure:"plugin_subdir"`
	PreferredOrder []string `json:"preferred_order" mapstructure:"preferred_order"`
	EnableFallback bool     `json:"enable_fallback" mapstructure:"enable_fallback"`

	// Times the loop rebuilds a faulted worker before giving up
	MaxReinit int `json:"max_reinit" mapstructure:"max_reinit"`

	// Status API address, empty disables it
	Listen string `json:"listen" mapstructure:"listen"`

	Log logging.LoggingConfig `json:"log" mapstructure:"log"`
}

// DefaultNodeConfig returns the stock node configuration
func DefaultNodeConfig() *NodeConfig {
	return &NodeConfig{
		Ease:           50,
		Sizeshift:      16,
		ThreadCount:    hardware.DefaultThreadCount,
		TrimRounds:     0,
		PluginSubdir:   discovery.DefaultSubdir,
		PreferredOrder: []string{plugin.Kind},
		MaxReinit:      3,
		Log:            *logging.DefaultConfig(),
	}
}

// Load reads the node configuration. Defaults are overlaid by the optional
// file at path (format chosen by extension) and then by CUCKOO_* variables.
func Load(path string) (*NodeConfig, error) {
	v := viper.New()
	setDefaults(v, DefaultNodeConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &NodeConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *NodeConfig) {
	v.SetDefault("ease", d.Ease)
	v.SetDefault("sizeshift", d.Sizeshift)
	v.SetDefault("thread_count", d.ThreadCount)
	v.SetDefault("trim_rounds", d.TrimRounds)
	v.SetDefault("base_dir", d.BaseDir)
	v.SetDefault("plugin_subdir", d.PluginSubdir)
	v.SetDefault("preferred_order", d.PreferredOrder)
	v.SetDefault("enable_fallback", d.EnableFallback)
	v.SetDefault("max_reinit", d.MaxReinit)
	v.SetDefault("listen", d.Listen)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output", d.Log.Output)
	v.SetDefault("log.max_size", d.Log.MaxSize)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age", d.Log.MaxAge)
}

// Validate checks the configuration describes a buildable worker
func (c *NodeConfig) Validate() error {
	if _, err := c.Params(); err != nil {
		return err
	}
	if err := c.Selection().Validate(); err != nil {
		return fmt.Errorf("invalid engine selection: %w", err)
	}
	if c.MaxReinit < 0 {
		return fmt.Errorf("max_reinit must not be negative, got %d", c.MaxReinit)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Params returns the validated cycle parameters
func (c *NodeConfig) Params() (core.CycleParameters, error) {
	return core.NewCycleParameters(c.Ease, c.Sizeshift)
}

// Selection converts the node settings into an engine selection config
func (c *NodeConfig) Selection() *factory.SelectionConfig {
	return &factory.SelectionConfig{
		PreferredOrder: append([]string(nil), c.PreferredOrder...),
		PluginSubdir:   c.PluginSubdir,
		ThreadCount:    c.ThreadCount,
		TrimRounds:     c.TrimRounds,
		EnableFallback: c.EnableFallback,
	}
}
