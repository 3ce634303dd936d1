package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/teemow/gcalkit/internal/calendar"
	"github.com/teemow/gcalkit/internal/google"
	"github.com/teemow/gcalkit/internal/instrumentation"
)

// Environment variables read into calendar.Config. Flags take precedence.
const (
	envAPIKey        = "GCAL_API_KEY"
	envClientID      = "GCAL_CLIENT_ID"
	envClientSecret  = "GCAL_CLIENT_SECRET"
	envDiscoveryDocs = "GCAL_DISCOVERY_DOCS"
	envScopes        = "GCAL_SCOPES"
	envAccount       = "GCAL_ACCOUNT"
)

// globalOptions holds the persistent flags shared by all commands
type globalOptions struct {
	envFile       string
	debug         bool
	account       string
	apiKey        string
	clientID      string
	clientSecret  string
	discoveryDocs []string
	scopes        []string
}

var globals globalOptions

// rootCmd represents the base command for the gcalkit application
var rootCmd = &cobra.Command{
	Use:   "gcalkit",
	Short: "Google Calendar client and MCP server",
	Long: `gcalkit signs in to Google Calendar and reads, creates, updates and
deletes events, batching write operations into a single request.

It can run as:
  - A CLI for authentication and event operations
  - An MCP (Model Context Protocol) server for AI assistants`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnvFile(globals.envFile); err != nil {
			return err
		}
		setupLogging(globals.debug)
		return nil
	},
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "gcalkit version %s\n" .Version}}`)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	addGlobalFlags(rootCmd.PersistentFlags(), &globals)

	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func addGlobalFlags(flags *pflag.FlagSet, o *globalOptions) {
	flags.StringVar(&o.envFile, "env-file", "", "Load environment variables from this file (default: .env in the working directory, if present)")
	flags.BoolVar(&o.debug, "debug", false, "Enable debug logging")
	flags.StringVar(&o.account, "account", "", "Account name the OAuth token is cached under (default: 'default'). Can also use "+envAccount+" env var.")
	flags.StringVar(&o.apiKey, "api-key", "", "Google API key. Can also use "+envAPIKey+" env var.")
	flags.StringVar(&o.clientID, "client-id", "", "Google OAuth client ID. Can also use "+envClientID+" env var.")
	flags.StringVar(&o.clientSecret, "client-secret", "", "Google OAuth client secret. Can also use "+envClientSecret+" env var.")
	flags.StringSliceVar(&o.discoveryDocs, "discovery-docs", nil, "Discovery document URLs used to resolve the Calendar API endpoints. Can also use "+envDiscoveryDocs+" env var.")
	flags.StringSliceVar(&o.scopes, "scopes", nil, "OAuth scopes to request (default: calendar). Can also use "+envScopes+" env var.")
}

// loadEnvFile loads path, or .env when path is empty. A missing default
// file is not an error. Variables already set in the environment win.
func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// setupLogging writes logs to stderr so stdout stays free for command
// output and the MCP stdio transport
func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// resolveConfig builds the calendar configuration from the environment,
// overridden by any flag that was set explicitly
func resolveConfig(cmd *cobra.Command, opts globalOptions) calendar.Config {
	cfg := calendar.Config{
		APIKey:        os.Getenv(envAPIKey),
		ClientID:      os.Getenv(envClientID),
		ClientSecret:  os.Getenv(envClientSecret),
		DiscoveryDocs: parseCommaSeparatedList(os.Getenv(envDiscoveryDocs)),
		Scopes:        parseCommaSeparatedList(os.Getenv(envScopes)),
		Account:       os.Getenv(envAccount),
	}

	flags := cmd.Flags()
	if flags.Changed("api-key") {
		cfg.APIKey = opts.apiKey
	}
	if flags.Changed("client-id") {
		cfg.ClientID = opts.clientID
	}
	if flags.Changed("client-secret") {
		cfg.ClientSecret = opts.clientSecret
	}
	if flags.Changed("discovery-docs") {
		cfg.DiscoveryDocs = opts.discoveryDocs
	}
	if flags.Changed("scopes") {
		cfg.Scopes = opts.scopes
	}
	if flags.Changed("account") {
		cfg.Account = opts.account
	}
	if cfg.Account == "" {
		cfg.Account = google.DefaultAccount
	}
	return cfg
}

// newCalendarService creates the calendar service backed by the Google provider
func newCalendarService(cfg calendar.Config, metrics *instrumentation.Metrics) *calendar.Service {
	logger := slog.Default()
	return calendar.NewService(cfg,
		google.Loader(google.WithLogger(logger)),
		calendar.WithLogger(logger),
		calendar.WithMetrics(metrics),
	)
}

// withService runs fn with a calendar service built from the command's
// configuration and closes it afterwards
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *calendar.Service, cfg calendar.Config) error) error {
	cfg := resolveConfig(cmd, globals)
	svc := newCalendarService(cfg, nil)
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Debug("failed to close calendar service", "error", err)
		}
	}()
	return fn(cmd.Context(), svc, cfg)
}

// parseCommaSeparatedList parses a comma-separated string into a slice,
// trimming whitespace from each element and filtering out empty strings.
// Returns nil if the input is empty or contains only whitespace/commas.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
