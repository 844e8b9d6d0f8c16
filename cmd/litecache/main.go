package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gophersatwork/litecache"
	"github.com/gophersatwork/litecache/internal/config"
)

var (
	configPath string
	cacheDir   string
	poolName   string
	logLevel   string
	subdivide  bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "litecache",
		Short:         "Inspect and manage a litecache directory",
		Long:          "A command line client for file-backed litecache directories",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "dir", "", "Cache directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&poolName, "pool", "", "Pool name (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, notice, warn, error")
	rootCmd.PersistentFlags().BoolVar(&subdivide, "subdivide", false, "Use two-character shard directories")

	rootCmd.AddCommand(
		getCmd(),
		setCmd(),
		hasCmd(),
		deleteCmd(),
		clearCmd(),
		statsCmd(),
		listCmd(),
		pruneCmd(),
		loadCmd(),
	)
	return rootCmd
}

// openCache builds the cache from the config file, the environment and the
// command line flags, in that order of precedence.
func openCache(cmd *cobra.Command) (*litecache.Cache, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)

	flags := cmd.Flags()
	if flags.Changed("dir") {
		cfg.Cache.Dir = cacheDir
	}
	if flags.Changed("pool") {
		cfg.Cache.Pool = poolName
	}
	if flags.Changed("subdivide") {
		cfg.Cache.Subdivide = subdivide
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: litecache.ReplaceLevelNames,
	}))

	opts, err := cfg.Options(logger)
	if err != nil {
		return nil, err
	}
	return litecache.Open(cfg.Cache.Dir, opts...)
}
