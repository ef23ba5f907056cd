package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invoicely-dev/invoicely/internal/routeguard"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			wasSignedIn := rt.Session.Snapshot().Authenticated()
			rt.Session.Logout()

			if wasSignedIn {
				fmt.Fprintln(rt.Out, "✓ Signed out")
			} else {
				fmt.Fprintln(rt.Out, "Not signed in")
			}
			return nil
		},
	}

	return routed(cmd, routeguard.LoginPath)
}
