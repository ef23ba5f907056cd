package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invoicely-dev/invoicely/internal/routeguard"
)

// NewOpenCmd creates the open command
func NewOpenCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open [path]",
		Short: "Open the web app in browser",
		Long: `Open the web app in browser.

The page is chosen the way the web app would: signed-out sessions land on the
login page and sessions without an organization on organization selection.

Examples:
  $ invoicely open              # Dashboard
  $ invoicely open /invoices`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := routeguard.DashboardPath
			if len(args) > 0 {
				path = args[0]
			}
			return runOpen(cmd.Context(), rt, path)
		},
	}

	// The guard is evaluated with a browser navigator instead of the CLI one
	return routed(cmd, "")
}

func runOpen(ctx context.Context, rt *Runtime, path string) error {
	webURL := WebURL(rt.APIURL)

	guard := routeguard.New(routeguard.NavigatorFunc(func(ctx context.Context, target string) error {
		return rt.browse(webURL + target)
	}))

	decision, err := guard.Check(ctx, rt.Session.Snapshot(), path)
	if err != nil || !decision.Renders() {
		return err
	}

	return rt.browse(webURL + routeguard.Normalize(path))
}

func (rt *Runtime) browse(url string) error {
	fmt.Fprintf(rt.Out, "Opening %s\n", url)

	if err := rt.OpenBrowser(url); err != nil {
		return fmt.Errorf("failed to open browser: %w\nPlease visit: %s", err, url)
	}
	return nil
}

// WebURL derives the web app origin from the API base URL
func WebURL(apiURL string) string {
	return strings.TrimSuffix(strings.TrimRight(apiURL, "/"), "/api")
}
