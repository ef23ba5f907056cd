package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invoicely-dev/invoicely/internal/cli/client"
	"github.com/invoicely-dev/invoicely/internal/cli/tenantselect"
	"github.com/invoicely-dev/invoicely/internal/cli/userconfig"
	"github.com/invoicely-dev/invoicely/internal/routeguard"
)

// NewLoginCmd creates the login command
func NewLoginCmd(rt *Runtime) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to Invoicely",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), rt, email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set INVOICELY_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set INVOICELY_PASSWORD, will prompt if not provided)")

	return routed(cmd, routeguard.LoginPath)
}

func runLogin(ctx context.Context, rt *Runtime, email, password string) error {
	// Environment variables are useful for CI/CD
	email = envOr(email, "INVOICELY_EMAIL")
	password = envOr(password, "INVOICELY_PASSWORD")

	if email == "" {
		return fmt.Errorf("email is required (use --email flag or INVOICELY_EMAIL env var)")
	}

	if password == "" {
		var err error
		if password, err = rt.ReadPassword("Password: "); err != nil {
			return err
		}
	}

	fmt.Fprintf(rt.Out, "Signing in to %s...\n", rt.APIURL)

	if err := rt.Session.Login(ctx, client.LoginRequest{Email: email, Password: password}); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	restoreLastOrganization(ctx, rt)

	snap := rt.Session.Snapshot()
	fmt.Fprintln(rt.Out, "✓ Login successful!")
	fmt.Fprintf(rt.Out, "  User: %s (%s)\n", snap.User.Name, snap.User.Email)
	if snap.Tenant != nil {
		fmt.Fprintf(rt.Out, "  Organization: %s\n", tenantselect.Label(snap.Tenant))
		rememberOrganization(rt, snap.Tenant.Slug)
	} else {
		fmt.Fprintln(rt.Out, "\nNo organization selected. Run 'invoicely orgs select' to choose one.")
	}

	return nil
}

// restoreLastOrganization selects the organization used last on this machine
// when the API signed into another one, or none. Failures leave the session
// untouched.
func restoreLastOrganization(ctx context.Context, rt *Runtime) {
	cfg, err := userconfig.Load()
	if err != nil || cfg.LastOrganization == "" {
		return
	}
	if current := rt.Session.Snapshot().Tenant; current != nil && current.Slug == cfg.LastOrganization {
		return
	}

	tenants, err := rt.Session.ListUserTenants(ctx)
	if err != nil {
		rt.Logger.Debug().Err(err).Msg("Could not list organizations")
		return
	}

	tenant, err := tenantselect.FindTenant(tenants, cfg.LastOrganization)
	if err != nil {
		rt.Logger.Debug().Str("organization", cfg.LastOrganization).Msg("Last organization no longer available")
		return
	}

	if err := rt.Session.SelectTenant(ctx, tenant.ID); err != nil && !errors.Is(err, context.Canceled) {
		rt.Logger.Debug().Err(err).Int64("tenant_id", tenant.ID).Msg("Could not restore last organization")
	}
}

// rememberOrganization records slug for the next login
func rememberOrganization(rt *Runtime, slug string) {
	if err := userconfig.SetLastOrganization(slug); err != nil {
		rt.Logger.Warn().Err(err).Msg("Failed to save last organization")
	}
}
