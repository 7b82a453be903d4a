package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/flowstate/internal/logging"
	"github.com/aretw0/flowstate/internal/presentation/graph"
	"github.com/aretw0/flowstate/internal/presentation/tui"
	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/aretw0/flowstate/pkg/loader"
	"github.com/aretw0/flowstate/pkg/registry"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <path> [workflow]",
		Short: "Describe workflow definitions",
		Long: `Loads the definitions at path and prints them as markdown (rendered when
writing to a terminal), JSON, or a Mermaid diagram.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runInspect,
	}
	cmd.Flags().StringP("format", "f", "markdown", "Output format: markdown, json or mermaid")
	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "markdown", "json", "mermaid":
	default:
		return fmt.Errorf("unknown format %q (want markdown, json or mermaid)", format)
	}

	defs, err := loader.New(registry.Builtins(logging.NewNop())).Load(args[0])
	if err != nil {
		return err
	}

	var exported []*domain.ExportedWorkflow
	for _, def := range defs {
		if len(args) == 2 && def.Name != args[1] {
			continue
		}
		exported = append(exported, domain.Export(def))
	}
	if len(exported) == 0 {
		if len(args) == 2 {
			return fmt.Errorf("%w: %s", domain.ErrWorkflowNotFound, args[1])
		}
		return fmt.Errorf("no workflow definitions in %s", args[0])
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if len(exported) == 1 {
			return enc.Encode(exported[0])
		}
		return enc.Encode(exported)
	case "mermaid":
		for _, wf := range exported {
			fmt.Fprint(out, graph.GenerateMermaid(wf, nil))
		}
		return nil
	}

	render := tui.NewRenderer(out)
	for _, wf := range exported {
		rendered, err := render(tui.WorkflowMarkdown(wf, nil))
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", wf.Name, err)
		}
		fmt.Fprint(out, rendered)
	}
	return nil
}
