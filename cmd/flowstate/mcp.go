package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/flowstate"
	"github.com/aretw0/flowstate/internal/cli"
	"github.com/aretw0/flowstate/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the Model Context Protocol (MCP) server",
		Long: `Starts the engine as an MCP Server so AI agents can drive workflows as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
		RunE: runMCP,
	}
	cmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	cmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
	cmd.Flags().String("store", "", "Instance store: memory, file or redis (env FLOWSTATE_STORE)")
	cmd.Flags().String("file-dir", "", "Directory of the file store (env FLOWSTATE_FILE_DIR)")
	cmd.Flags().String("redis-addr", "", "Redis address (env FLOWSTATE_REDIS_ADDR)")
	cmd.Flags().StringP("workflows", "w", "", "YAML file or directory of workflow definitions (env FLOWSTATE_WORKFLOWS)")
	return cmd
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// Logs go to stderr so they never corrupt JSON-RPC on stdout.
	logger := cli.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if _, err := app.LoadWorkflows(ctx, cfg.Workflows); err != nil {
		return err
	}

	srv := mcp.NewServer(app.Engine, flowstate.Version, mcp.WithLoader(app.Loader), mcp.WithLogger(logger))

	transport, _ := cmd.Flags().GetString("transport")
	switch transport {
	case "stdio":
		logger.Info("Starting flowstate MCP Server (Stdio)")
		return srv.ServeStdio()
	case "sse":
		port, _ := cmd.Flags().GetInt("port")
		if err := srv.ServeSSE(ctx, port); err != nil {
			return err
		}
		logger.Info("MCP Server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
	}
}
