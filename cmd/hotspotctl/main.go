package main

import (
	"fmt"
	"os"
	"time"

	"bytebill/internal/config"
	"bytebill/internal/infra/api"

	"github.com/spf13/cobra"
)

// Version information (set at build time with -ldflags)
var Version = "dev"

var (
	serverURL  string
	adminToken string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:           "hotspotctl",
	Short:         "Operate a ByteBill hotspot from the command line",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("BYTEBILL_SERVER", "http://localhost:8080"), "engine base URL")
	rootCmd.PersistentFlags().StringVar(&adminToken, "token", os.Getenv("BYTEBILL_TOKEN"), "admin bearer token")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file used to mint a token when --token is empty")

	rootCmd.AddCommand(tokenCmd, plansCmd, dashboardCmd, alertsCmd, vouchersCmd, sessionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

var tokenSubject string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an admin token from the engine's config",
	Example: `  # Export a token for later commands
  export BYTEBILL_TOKEN=$(hotspotctl token --config config.yaml)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tok, err := mintToken(tokenSubject)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", envOr("USER", "operator"), "name recorded against admin actions")
}

func mintToken(subject string) (string, error) {
	if configPath == "" {
		return "", fmt.Errorf("--config is required to mint a token")
	}
	cfg, err := config.LoadConfig(configPath, true)
	if err != nil {
		return "", err
	}
	return api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL).Mint(subject, time.Now())
}

// client resolves the admin token lazily so public commands work without one.
func client() *apiClient {
	tok := adminToken
	if tok == "" && configPath != "" {
		tok, _ = mintToken(envOr("USER", "operator"))
	}
	return newAPIClient(serverURL, tok)
}
