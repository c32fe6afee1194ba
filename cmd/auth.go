package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jfmyers9/backscrobble/internal/config"
	"github.com/jfmyers9/backscrobble/internal/scrobbler"
)

var authMobile bool

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate with Last.fm",
	Long: `Authenticate with Last.fm to enable scrobbling.

This command will guide you through the Last.fm authentication process:
1. You'll be prompted to enter your Last.fm API key and secret
2. A browser URL will be provided for you to authorize the application
3. After authorization, a session key will be saved to your config file

With --mobile, your Last.fm username and password are exchanged for a
session key directly instead. They are read from LASTFM_USERNAME and
LASTFM_PASSWORD (or a .env file) when set, and prompted for otherwise.
The password is never saved.

You can get API credentials from: https://www.last.fm/api/account/create`,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.Flags().BoolVar(&authMobile, "mobile", false, "Log in with username and password instead of the browser flow")
}

func runAuth(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	e, err := loadEnv()
	if err != nil {
		return err
	}
	cfg := e.cfg

	fmt.Println("Last.fm Authentication")
	fmt.Println("======================")
	fmt.Println()
	fmt.Println("You can get API credentials from: https://www.last.fm/api/account/create")
	fmt.Println()

	if cfg.HasAPICredentials() {
		fmt.Printf("Found existing API credentials.\n")
		fmt.Printf("API Key: %s\n", cfg.LastFM.APIKey)
		if !confirm(reader, "\nUse existing credentials? [Y/n]: ", true) {
			cfg.LastFM.APIKey = ""
			cfg.LastFM.APISecret = ""
		}
	}

	if cfg.LastFM.APIKey == "" {
		cfg.LastFM.APIKey, err = prompt(reader, "Enter your Last.fm API Key: ")
		if err != nil {
			return fmt.Errorf("failed to read API key: %w", err)
		}
	}
	if cfg.LastFM.APISecret == "" {
		cfg.LastFM.APISecret, err = prompt(reader, "Enter your Last.fm API Secret: ")
		if err != nil {
			return fmt.Errorf("failed to read API secret: %w", err)
		}
	}

	if !cfg.HasAPICredentials() {
		return fmt.Errorf("API key and secret are required")
	}

	// Any previous session belongs to the old credentials.
	cfg.LastFM.SessionKey = ""
	client, err := e.client()
	if err != nil {
		return err
	}

	var username, sessionKey string
	if authMobile {
		username, sessionKey, err = mobileLogin(ctx, reader, client, cfg)
	} else {
		username, sessionKey, err = webLogin(ctx, reader, client)
	}
	if err != nil {
		return err
	}

	cfg.LastFM.SessionKey = sessionKey
	if username != "" {
		cfg.LastFM.Username = username
	}
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("\n✓ Authentication successful!\n")
	if username != "" {
		fmt.Printf("✓ Logged in as %s\n", username)
	}
	fmt.Printf("✓ Session key saved to %s/config.yaml\n", cfg.Dir())
	fmt.Println("\nYou can now use 'backscrobble scrobble' or 'backscrobble bulk'.")

	return nil
}

func webLogin(ctx context.Context, reader *bufio.Reader, client *scrobbler.Client) (string, string, error) {
	fmt.Println("\nGenerating authentication token...")
	token, authURL, err := client.AuthenticateWithToken(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate auth token: %w", err)
	}

	fmt.Println("\nPlease visit this URL to authorize backscrobble:")
	fmt.Printf("\n  %s\n\n", authURL)
	fmt.Println("After authorizing, press Enter to continue...")
	_, _ = reader.ReadString('\n')

	// Last.fm sometimes needs a moment before the token is usable.
	fmt.Println("Retrieving session key...")
	maxRetries := 3
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		session, err := client.GetSession(ctx, token)
		if err == nil {
			return session.Username, session.Key, nil
		}

		if i == maxRetries-1 {
			return "", "", fmt.Errorf("failed to get session key after %d attempts: %w", maxRetries, err)
		}
		fmt.Printf("Failed to retrieve session (attempt %d/%d). Retrying in %v...\n",
			i+1, maxRetries, retryDelay)
		time.Sleep(retryDelay)
	}
	return "", "", nil
}

func mobileLogin(ctx context.Context, reader *bufio.Reader, client *scrobbler.Client, cfg *config.Config) (string, string, error) {
	username := cfg.LastFM.Username
	password := cfg.LastFM.Password
	var err error

	if username == "" {
		username, err = prompt(reader, "Last.fm username: ")
		if err != nil {
			return "", "", fmt.Errorf("failed to read username: %w", err)
		}
	}
	if password == "" {
		password, err = promptSecret(reader, "Last.fm password: ")
		if err != nil {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
	}
	if username == "" || password == "" {
		return "", "", fmt.Errorf("username and password are required")
	}

	fmt.Println("\nLogging in...")
	session, err := client.LoginMobile(ctx, username, password)
	if err != nil {
		return "", "", err
	}
	return session.Username, session.Key, nil
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	value, err := reader.ReadString('\n')
	if err != nil && value == "" {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

// promptSecret reads without echo when stdin is a terminal.
func promptSecret(reader *bufio.Reader, label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(reader, label)
	}

	fmt.Print(label)
	value, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(value)), nil
}

// confirm asks a yes/no question. An empty answer or read error selects
// the default.
func confirm(reader *bufio.Reader, label string, def bool) bool {
	fmt.Print(label)
	response, err := reader.ReadString('\n')
	if err != nil {
		return def
	}
	switch strings.TrimSpace(strings.ToLower(response)) {
	case "":
		return def
	case "y", "yes":
		return true
	default:
		return false
	}
}
