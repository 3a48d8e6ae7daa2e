package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/oskarih/fmcloud-go/internal/fmid"
	"github.com/oskarih/fmcloud-go/internal/sessionfile"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in with an FMID account and cache the session",
		RunE:  runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the cached session",
		RunE:  runLogout,
	}
}

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print the current Authorization header value",
		Long: "Prints the FMID authorization header, reusing the cached session " +
			"and refreshing or re-authenticating as needed.",
		RunE: runToken,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := cmd.Context()

	manager, err := buildTokenManager(logger)
	if err != nil {
		return err
	}

	logger.Info("login started", "username", resolvedCfg.Username)

	if _, err := manager.AuthorizationHeader(ctx); err != nil {
		return err
	}

	logger.Info("login successful", "username", resolvedCfg.Username)
	statusf("Login successful.\n")

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger := buildLogger()

	if err := sessionfile.Remove(resolvedCfg.SessionFile); err != nil {
		return fmt.Errorf("removing session file: %w", err)
	}

	logger.Info("logout successful", "path", resolvedCfg.SessionFile)
	statusf("Logged out.\n")

	return nil
}

func runToken(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	manager, err := buildTokenManager(logger)
	if err != nil {
		return err
	}

	header, err := manager.AuthorizationHeader(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println(header)

	return nil
}

// buildTokenManager wires the Cognito provider and the token manager
// from the resolved configuration.
func buildTokenManager(logger *slog.Logger) (*fmid.TokenManager, error) {
	if resolvedCfg.Username == "" {
		return nil, fmt.Errorf("no username configured, set username in config.toml or pass --username")
	}

	password, err := readPassword()
	if err != nil {
		return nil, err
	}

	provider := fmid.NewCognitoProvider(resolvedCfg.PoolConfigURL, defaultHTTPClient(), logger)

	return fmid.NewTokenManager(provider, resolvedCfg.Username, password, resolvedCfg.SessionFile, logger), nil
}

// readPassword takes the FMID password from FMCLOUD_PASSWORD, falling
// back to a stdin prompt when attached to a terminal. The prompt is
// only printed on a TTY so piped invocations stay clean.
func readPassword() (string, error) {
	if password := os.Getenv("FMCLOUD_PASSWORD"); password != "" {
		return password, nil
	}

	if isatty.IsTerminal(os.Stdin.Fd()) {
		fmt.Fprint(os.Stderr, "Password: ")
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("no password provided, set FMCLOUD_PASSWORD or enter one at the prompt")
	}

	return password, nil
}
