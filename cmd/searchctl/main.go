package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nichesupply/listingsearch/internal/version"
	"github.com/nichesupply/listingsearch/pkg/client"
)

// Global flags
var (
	addr       string
	socketPath string
	token      string
	timeout    time.Duration
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "searchctl",
	Short: "Admin CLI for the listingsearch sidecar",
	Long: `searchctl drives a running listingsearch sidecar: health checks,
ad-hoc searches, single-listing index and remove, and full index rebuilds
from a JSON-lines dump.

The sidecar address comes from --addr (TCP) or --socket (Unix domain
socket); the service token from --token or $SEARCH_SERVICE_TOKEN.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var healthJSON bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check sidecar health",
	Long:  `Query /health and exit non-zero when the sidecar reports degraded.`,
	RunE:  runHealth,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("searchctl %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addr, "addr", client.DefaultBaseURL, "sidecar base URL")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "Unix socket path (overrides --addr)")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("SEARCH_SERVICE_TOKEN"), "service token (default $SEARCH_SERVICE_TOKEN)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "output raw JSON")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(versionCmd)
}

// newSearchClient builds a client from the persistent flags.
func newSearchClient() (*client.Client, error) {
	opts := []client.Option{client.WithTimeout(timeout)}
	if socketPath != "" {
		opts = append(opts, client.WithUnixSocket(socketPath))
	} else {
		opts = append(opts, client.WithBaseURL(addr))
	}
	if token != "" {
		opts = append(opts, client.WithToken(token))
	}
	return client.New(opts...)
}

func runHealth(cmd *cobra.Command, args []string) error {
	c, err := newSearchClient()
	if err != nil {
		return err
	}

	hs, err := c.Health(context.Background())
	if err != nil {
		return err
	}
	if healthJSON {
		if err := json.NewEncoder(os.Stdout).Encode(hs); err != nil {
			return err
		}
	} else {
		fmt.Printf("Status:    %s\n", hs.Status)
		fmt.Printf("Encoder:   %t\n", hs.ModelLoaded)
		fmt.Printf("Documents: %d\n", hs.CollectionCount)
	}
	if !hs.Healthy() {
		return fmt.Errorf("sidecar is degraded")
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
