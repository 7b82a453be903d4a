package main

import (
	"fmt"

	"github.com/aretw0/flowstate"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of flowstate",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "flowstate version %s\n", flowstate.Version)
		},
	}
}
