package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/oskarih/fmcloud-go/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagHost       string
	flagDatabase   string
	flagUsername   string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
var resolvedCfg *config.Config

// httpClientTimeout bounds every network exchange. The token manager
// and batch client never time out internally, so the client-level
// timeout is the abandonment strategy.
const httpClientTimeout = 60 * time.Second

// defaultHTTPClient returns an HTTP client with a sensible timeout.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

// newRootCmd builds and returns the fully-assembled root command with
// all subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "fmcloud-go",
		Short:   "FileMaker Cloud OData batch client",
		Long:    "A client for FileMaker-Cloud-style OData services: FMID sign-in plus $batch round trips.",
		Version: version,
		// Silence Cobra's default error/usage printing; we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagHost, "host", "", "service root URL")
	cmd.PersistentFlags().StringVar(&flagDatabase, "database", "", "hosted database name")
	cmd.PersistentFlags().StringVar(&flagUsername, "username", "", "FMID account username")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newBatchCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the override
// chain (defaults -> file -> env -> flags) into resolvedCfg.
func loadConfig() error {
	cfg, err := config.Resolve(flagConfigPath, config.ReadEnvOverrides())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if flagHost != "" {
		cfg.Host = flagHost
	}

	if flagDatabase != "" {
		cfg.Database = flagDatabase
	}

	if flagUsername != "" {
		cfg.Username = flagUsername
	}

	resolvedCfg = cfg

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config
// and CLI flags. CLI flags override the config-file log level.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if resolvedCfg != nil {
		switch resolvedCfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// serviceEndpoint assembles the OData service root from config.
func serviceEndpoint() (string, error) {
	if resolvedCfg.Host == "" {
		return "", fmt.Errorf("no host configured, set host in config.toml or pass --host")
	}

	if resolvedCfg.Database == "" {
		return "", fmt.Errorf("no database configured, set database in config.toml or pass --database")
	}

	return resolvedCfg.Host + "/fmi/odata/v4/" + resolvedCfg.Database, nil
}

// statusf prints informational output unless --quiet is set.
func statusf(format string, args ...any) {
	if flagQuiet {
		return
	}

	fmt.Printf(format, args...)
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
