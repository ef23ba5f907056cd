package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invoicely-dev/invoicely/internal/cli/client"
	"github.com/invoicely-dev/invoicely/internal/cli/tenantselect"
	"github.com/invoicely-dev/invoicely/internal/routeguard"
)

// NewRegisterCmd creates the register command
func NewRegisterCmd(rt *Runtime) *cobra.Command {
	var req client.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an Invoicely account",
		Long: `Create an Invoicely account and sign in.

When --company is given an organization is created for it and selected.

Examples:
  $ invoicely register --username alice --email alice@example.com --name "Alice Doe"
  $ invoicely register --username alice --email alice@example.com --name "Alice Doe" --company "Acme Ltd"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd.Context(), rt, req)
		},
	}

	cmd.Flags().StringVar(&req.Username, "username", "", "Username")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address (or set INVOICELY_EMAIL)")
	cmd.Flags().StringVar(&req.Name, "name", "", "Full name")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password (or set INVOICELY_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&req.CompanyName, "company", "", "Create an organization with this name")
	cmd.Flags().StringVar(&req.CompanyAddress, "company-address", "", "Organization address")

	return routed(cmd, routeguard.RegisterPath)
}

func runRegister(ctx context.Context, rt *Runtime, req client.RegisterRequest) error {
	req.Email = envOr(req.Email, "INVOICELY_EMAIL")
	req.Password = envOr(req.Password, "INVOICELY_PASSWORD")

	if req.Password == "" {
		password, err := rt.ReadPassword("Choose a password: ")
		if err != nil {
			return err
		}
		confirm, err := rt.ReadPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}
		req.Password = password
	}

	if err := rt.Session.Register(ctx, req); err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	snap := rt.Session.Snapshot()
	fmt.Fprintln(rt.Out, "✓ Account created!")
	fmt.Fprintf(rt.Out, "  User: %s (%s)\n", snap.User.Name, snap.User.Email)
	if snap.Tenant != nil {
		fmt.Fprintf(rt.Out, "  Organization: %s\n", tenantselect.Label(snap.Tenant))
		rememberOrganization(rt, snap.Tenant.Slug)
	} else {
		fmt.Fprintln(rt.Out, "\nCreate an organization with: invoicely orgs create <name>")
	}

	return nil
}
