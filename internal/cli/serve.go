package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/mailwarden/internal/config"
	wardenmcp "github.com/ppiankov/mailwarden/internal/mcp"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP tool server",
	Long: "Runs mailwarden as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes the guarded send, trust-list, and rule tools.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}

	srv, err := wardenmcp.New(cfg, client)
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}
	defer srv.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		cancel()
	}()

	// External edits to the trust list take effect on the next request;
	// the watcher only makes them visible in the server log.
	watcher := config.NewFileWatcher(cfg.TrustListPath, func() {
		fmt.Fprintln(os.Stderr, "trust list changed on disk")
	})
	go func() { _ = watcher.Run(ctx) }()

	fmt.Fprintln(os.Stderr, "mailwarden MCP server running on stdio")
	return srv.Run(ctx)
}
