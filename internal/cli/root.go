// Package cli implements the mailwarden command tree.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/mailwarden/internal/config"
	"github.com/ppiankov/mailwarden/internal/gmail"
	"github.com/ppiankov/mailwarden/internal/trust"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "mailwarden",
	Short: "Outbound trust gateway and rule engine for Gmail",
	Long: "Guards outbound email behind a trusted-recipient list with interactive\n" +
		"confirmation for everyone else, and manages labeling rules that can be\n" +
		"applied retroactively to existing messages.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default: built-in defaults)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// newClient authenticates against Google using the configured
// credentials directory.
func newClient(ctx context.Context, cfg *config.Config) (*gmail.Client, error) {
	return gmail.NewClient(ctx, cfg.CredentialsDir)
}

// trustManager builds the trust-list manager. The directory is nil for
// purely local operations (add/remove/view), which never hit the network.
func trustManager(cfg *config.Config, client *gmail.Client) *trust.Manager {
	m := &trust.Manager{Store: trust.NewFileStore(cfg.TrustListPath)}
	if client != nil {
		m.Dir = client
	}
	return m
}
