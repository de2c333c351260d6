package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cuckoominer/internal/config"
	"cuckoominer/internal/logging"
	"cuckoominer/pkg/mining/worker"
)

var (
	Version   = "dev"
	CommitID  = ""
	BuildTime = ""
)

// rootOptions are the flags shared by every command
type rootOptions struct {
	configPath string
	baseDir    string
	ease       uint32
	sizeshift  uint32
	logLevel   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "cuckoo-miner <command> [flags]",
		Short:         "Cuckoo Cycle mining worker with pluggable engines",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		Example:       "cuckoo-miner mine --config node.yaml --sizeshift 16",
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "node config file (yaml, json or toml)")
	flags.StringVar(&opts.baseDir, "base-dir", "", "directory holding the plugin subdirectory (default: executable dir)")
	flags.Uint32Var(&opts.ease, "ease", 0, "percentage of nodes used as edges")
	flags.Uint32Var(&opts.sizeshift, "sizeshift", 0, "log2 of the graph node count")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")

	rootCmd.SetVersionTemplate(fmt.Sprintf("cuckoo-miner %s %s %s\n", Version, CommitID, BuildTime))
	rootCmd.AddCommand(newPluginsCommand(opts))
	rootCmd.AddCommand(newMineCommand(opts))
	rootCmd.AddCommand(newVerifyCommand(opts))
	return rootCmd
}

// load reads the node config and applies command-line overrides
func (o *rootOptions) load(cmd *cobra.Command) (*config.NodeConfig, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("ease") {
		cfg.Ease = o.ease
	}
	if flags.Changed("sizeshift") {
		cfg.Sizeshift = o.sizeshift
	}
	if flags.Changed("base-dir") {
		cfg.BaseDir = o.baseDir
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.NodeConfig) (*zap.Logger, error) {
	logger, err := logging.NewLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

func resolveBaseDir(cfg *config.NodeConfig) (string, error) {
	if cfg.BaseDir != "" {
		return cfg.BaseDir, nil
	}
	return worker.DefaultBaseDir()
}
