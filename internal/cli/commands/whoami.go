package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invoicely-dev/invoicely/internal/cli/tenantselect"
	"github.com/invoicely-dev/invoicely/internal/routeguard"
)

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := rt.Session.Snapshot()

			fmt.Fprintf(rt.Out, "User:         %s (%s)\n", snap.User.Name, snap.User.Email)
			fmt.Fprintf(rt.Out, "Username:     %s\n", snap.User.Username)
			if snap.Tenant != nil {
				fmt.Fprintf(rt.Out, "Organization: %s\n", tenantselect.Label(snap.Tenant))
			} else {
				fmt.Fprintln(rt.Out, "Organization: none (run 'invoicely orgs select')")
			}
			fmt.Fprintf(rt.Out, "API:          %s\n", rt.APIURL)
			return nil
		},
	}

	// The organization-select route admits users without an organization
	return routed(cmd, routeguard.OrganizationSelectPath)
}
