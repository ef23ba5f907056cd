package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/invoicely-dev/invoicely/internal/cli/auth"
	"github.com/invoicely-dev/invoicely/internal/cli/client"
	"github.com/invoicely-dev/invoicely/internal/cli/commands"
	"github.com/invoicely-dev/invoicely/internal/cli/tenantselect"
	"github.com/invoicely-dev/invoicely/internal/cli/update"
	"github.com/invoicely-dev/invoicely/internal/cli/userconfig"
	"github.com/invoicely-dev/invoicely/internal/config"
	"github.com/invoicely-dev/invoicely/internal/logger"
	"github.com/invoicely-dev/invoicely/internal/routeguard"
	"github.com/invoicely-dev/invoicely/internal/session"
)

var version = "dev" // Will be set during build

type options struct {
	store       auth.TokenStore
	httpClient  *http.Client
	updateCheck bool
}

// Option customizes the root command, mostly for tests
type Option func(*options, *commands.Runtime)

// WithStore replaces the keychain credential store
func WithStore(store auth.TokenStore) Option {
	return func(o *options, _ *commands.Runtime) {
		o.store = store
	}
}

// WithHTTPClient sets the HTTP client used for API calls
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options, _ *commands.Runtime) {
		o.httpClient = httpClient
	}
}

// WithOutput redirects command output and logs
func WithOutput(out, errOut io.Writer) Option {
	return func(_ *options, rt *commands.Runtime) {
		rt.Out = out
		rt.Err = errOut
	}
}

// WithPrompter replaces the interactive organization picker
func WithPrompter(prompt tenantselect.Prompter) Option {
	return func(_ *options, rt *commands.Runtime) {
		rt.Prompt = prompt
	}
}

// WithPasswordReader replaces the terminal password prompt
func WithPasswordReader(read func(prompt string) (string, error)) Option {
	return func(_ *options, rt *commands.Runtime) {
		rt.ReadPassword = read
	}
}

// WithBrowser replaces the function that opens URLs
func WithBrowser(open func(url string) error) Option {
	return func(_ *options, rt *commands.Runtime) {
		rt.OpenBrowser = open
	}
}

// WithUpdater replaces the release feed client
func WithUpdater(u *update.Updater) Option {
	return func(_ *options, rt *commands.Runtime) {
		rt.Updater = u
	}
}

// WithoutUpdateCheck disables the new-version notice
func WithoutUpdateCheck() Option {
	return func(o *options, _ *commands.Runtime) {
		o.updateCheck = false
	}
}

// NewRootCmd builds the command tree
func NewRootCmd(version string, opts ...Option) *cobra.Command {
	o := &options{updateCheck: true}
	rt := commands.NewRuntime(version)
	for _, opt := range opts {
		opt(o, rt)
	}

	var apiURL string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "invoicely",
		Short: "Invoicely - Invoicing for small businesses",
		Long: `Invoicely CLI - Manage customers and invoices from your terminal.

Sign in once with 'invoicely login'; the credential is kept in your OS
keychain. Commands act on the selected organization, see 'invoicely orgs'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd, rt, o, apiURL, verbose)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			rt.Close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API base URL (or set INVOICELY_API_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(rt.Out, "invoicely version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewLoginCmd(rt))
	rootCmd.AddCommand(commands.NewRegisterCmd(rt))
	rootCmd.AddCommand(commands.NewLogoutCmd(rt))
	rootCmd.AddCommand(commands.NewWhoamiCmd(rt))
	rootCmd.AddCommand(commands.NewProfileCmd(rt))
	rootCmd.AddCommand(commands.NewOrgsCmd(rt))
	rootCmd.AddCommand(commands.NewCustomersCmd(rt))
	rootCmd.AddCommand(commands.NewInvoicesCmd(rt))
	rootCmd.AddCommand(commands.NewDashboardCmd(rt))
	rootCmd.AddCommand(commands.NewOpenCmd(rt))
	rootCmd.AddCommand(commands.NewConfigCmd(rt))
	rootCmd.AddCommand(commands.NewUpdateCmd(rt))

	guardRejections(rootCmd, rt)

	return rootCmd
}

// guardRejections re-runs the route guard when a routed command fails because
// the API rejected the credential mid-run. The session is already signed out
// by then, so the guard reports the sign-in redirect instead of the raw 401.
func guardRejections(cmd *cobra.Command, rt *commands.Runtime) {
	for _, sub := range cmd.Commands() {
		guardRejections(sub, rt)
	}

	path, routed := commands.Route(cmd)
	if !routed || path == "" || cmd.RunE == nil {
		return
	}

	runE := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		err := runE(cmd, args)
		if err == nil || !errors.Is(err, client.ErrUnauthenticated) {
			return err
		}

		if _, guardErr := rt.Guard.Check(cmd.Context(), rt.Session.Snapshot(), path); guardErr != nil {
			rt.Logger.Debug().Err(err).Str("route", path).Msg("Credential rejected during command")
			return guardErr
		}
		return err
	}
}

// setup configures logging, resolves the API and, for routed commands,
// restores the session and runs the route guard
func setup(cmd *cobra.Command, rt *commands.Runtime, o *options, apiURLFlag string, verbose bool) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger.InitWithWriter(rt.Err, level, cfg.Logging.Format)
	rt.Logger = logger.GetLogger()

	userURL, err := userconfig.GetAPIURL()
	if err != nil {
		rt.Logger.Warn().Err(err).Msg("Ignoring unreadable user config")
	}
	rt.APIURL = config.ResolveAPIURL(apiURLFlag, cfg.API.URL, userURL)

	// Skip update check for the update and version commands
	if o.updateCheck && cmd.Name() != "update" && cmd.Name() != "version" && os.Getenv("INVOICELY_NO_UPDATE_CHECK") == "" {
		rt.Updater.PrintUpdateNotification(ctx, rt.Err, rt.Version)
	}

	path, routed := commands.Route(cmd)
	if !routed {
		return nil
	}

	store := o.store
	if store == nil {
		if token := os.Getenv("INVOICELY_TOKEN"); token != "" {
			store = auth.NewMemoryStore(token)
		} else {
			store = auth.NewKeyringStore(rt.APIURL)
		}
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.API.Timeout}
	}

	rt.Store = store
	rt.Client = client.New(rt.APIURL, store,
		client.WithHTTPClient(httpClient),
		client.WithLogger(rt.Logger),
		client.WithUserAgent("invoicely-cli/"+rt.Version),
	)
	rt.Session = session.New(rt.Client, store, rt.Logger)
	rt.Guard = routeguard.New(commands.CLINavigator())

	if err := rt.Session.Hydrate(ctx); err != nil {
		if errors.Is(err, client.ErrNetwork) {
			return fmt.Errorf("cannot reach the API at %s: %w", rt.APIURL, err)
		}
		rt.Logger.Debug().Err(err).Msg("Stored session discarded")
	}

	// Commands with an empty route run the guard themselves
	if path == "" {
		return nil
	}

	_, err = rt.Guard.Check(ctx, rt.Session.Snapshot(), path)
	return err
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCmd(version).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
