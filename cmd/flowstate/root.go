package main

import (
	"fmt"
	"os"

	"github.com/aretw0/flowstate/internal/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flowstate",
		Short: "Flowstate is a domain-agnostic workflow engine",
		Long: `Flowstate tracks entities through named state machines defined in YAML,
gating transitions with guards and recording an audit history per entity.

Configuration is read from FLOWSTATE_* environment variables; flags override it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags (available to all commands)
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (env FLOWSTATE_LOG_LEVEL)")
	root.PersistentFlags().String("log-format", "", "Log format: text or json (env FLOWSTATE_LOG_FORMAT)")

	root.AddCommand(
		newServeCmd(),
		newValidateCmd(),
		newInspectCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies the flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	overrides := map[string]*string{
		"log-level":  &cfg.LogLevel,
		"log-format": &cfg.LogFormat,
		"addr":       &cfg.Addr,
		"store":      &cfg.Store,
		"file-dir":   &cfg.FileDir,
		"redis-addr": &cfg.Redis.Addr,
		"workflows":  &cfg.Workflows,
	}
	for name, target := range overrides {
		flag := cmd.Flags().Lookup(name)
		if flag != nil && flag.Changed {
			*target = flag.Value.String()
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
