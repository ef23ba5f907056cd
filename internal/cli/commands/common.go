package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/invoicely-dev/invoicely/internal/cli/auth"
	"github.com/invoicely-dev/invoicely/internal/cli/client"
	"github.com/invoicely-dev/invoicely/internal/cli/tenantselect"
	"github.com/invoicely-dev/invoicely/internal/cli/update"
	"github.com/invoicely-dev/invoicely/internal/routeguard"
	"github.com/invoicely-dev/invoicely/internal/session"
)

// RouteAnnotation is the cobra annotation holding the path a command renders
const RouteAnnotation = "invoicely.route"

// Runtime is the wiring shared by every command of one invocation. The
// root command fills in the API fields before a routed command runs.
type Runtime struct {
	Out    io.Writer
	Err    io.Writer
	Logger zerolog.Logger

	Version string
	APIURL  string
	Store   auth.TokenStore
	Client  *client.Client
	Session *session.Session
	Guard   *routeguard.Guard

	Prompt       tenantselect.Prompter
	ReadPassword func(prompt string) (string, error)
	OpenBrowser  func(url string) error
	Updater      *update.Updater
}

// NewRuntime returns a runtime bound to the process's standard streams
func NewRuntime(version string) *Runtime {
	rt := &Runtime{
		Out:         os.Stdout,
		Err:         os.Stderr,
		Logger:      zerolog.Nop(),
		Version:     version,
		Prompt:      tenantselect.PromptTenantSelection,
		OpenBrowser: openBrowser,
		Updater:     &update.Updater{},
	}
	rt.ReadPassword = rt.readTerminalPassword
	return rt
}

// Close releases the session
func (rt *Runtime) Close() {
	if rt.Session != nil {
		rt.Session.Close()
	}
}

// routed tags cmd with the path the route guard evaluates before it runs
func routed(cmd *cobra.Command, path string) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[RouteAnnotation] = path
	return cmd
}

// Route returns the path cmd renders and whether it needs a session
func Route(cmd *cobra.Command) (string, bool) {
	path, ok := cmd.Annotations[RouteAnnotation]
	return path, ok
}

// CLINavigator turns guard redirects into errors telling the user which
// command gets them past the guard
func CLINavigator() routeguard.Navigator {
	return routeguard.NavigatorFunc(func(ctx context.Context, target string) error {
		switch target {
		case routeguard.LoginPath:
			return session.ErrNotAuthenticated
		case routeguard.OrganizationSelectPath:
			return session.ErrNoTenant
		default:
			return fmt.Errorf("redirected to %s", target)
		}
	})
}

// readTerminalPassword prompts on the terminal without echo
func (rt *Runtime) readTerminalPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("password is required in non-interactive mode (use --password flag or INVOICELY_PASSWORD env var)")
	}

	fmt.Fprint(rt.Err, prompt)
	bytePassword, err := term.ReadPassword(fd)
	fmt.Fprintln(rt.Err)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

// openBrowser opens the URL in the default browser
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID %q", what, arg)
	}
	return id, nil
}

func formatMoney(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

// orDash renders empty values in tables
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// envOr returns value, or the environment variable key when value is empty
func envOr(value, key string) string {
	if value != "" {
		return value
	}
	return os.Getenv(key)
}
