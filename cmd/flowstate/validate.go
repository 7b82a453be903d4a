package main

import (
	"errors"
	"fmt"

	"github.com/aretw0/flowstate/internal/logging"
	"github.com/aretw0/flowstate/pkg/loader"
	"github.com/aretw0/flowstate/pkg/registry"
	"github.com/spf13/cobra"
)

// errInvalid is returned after every failing path has been reported.
var errInvalid = errors.New("validation failed")

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>...",
		Short: "Check workflow definitions for consistency",
		Long: `Loads every YAML definition found at the given files or directories and
reports structural errors: unknown states, duplicate (state, event) pairs,
and guard or hook names missing from the built-in registry.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ld := loader.New(registry.Builtins(logging.NewNop()))
			out := cmd.OutOrStdout()

			failed := false
			for _, path := range args {
				defs, err := ld.Load(path)
				if err != nil {
					fmt.Fprintf(out, "❌ %s: %v\n", path, err)
					failed = true
					continue
				}
				for _, def := range defs {
					fmt.Fprintf(out, "✅ %s (%d states, %d transitions)\n", def.Name, len(def.States), len(def.Transitions))
				}
			}
			if failed {
				return errInvalid
			}
			return nil
		},
	}
}
