package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invoicely-dev/invoicely/internal/cli/client"
	"github.com/invoicely-dev/invoicely/internal/cli/tenantselect"
	"github.com/invoicely-dev/invoicely/internal/models"
	"github.com/invoicely-dev/invoicely/internal/routeguard"
)

// NewOrgsCmd creates the orgs command group
func NewOrgsCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "orgs",
		Aliases: []string{"organizations", "org"},
		Short:   "List, select and create organizations",
	}

	cmd.AddCommand(newOrgsListCmd(rt))
	cmd.AddCommand(newOrgsSelectCmd(rt))
	cmd.AddCommand(newOrgsSwitchCmd(rt))
	cmd.AddCommand(newOrgsCreateCmd(rt))

	return cmd
}

func newOrgsListCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List your organizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrgsList(cmd.Context(), rt)
		},
	}

	return routed(cmd, routeguard.OrganizationSelectPath)
}

func runOrgsList(ctx context.Context, rt *Runtime) error {
	tenants, err := rt.Session.ListUserTenants(ctx)
	if err != nil {
		return fmt.Errorf("failed to list organizations: %w", err)
	}

	if len(tenants) == 0 {
		fmt.Fprintln(rt.Out, "You are not a member of any organization.")
		fmt.Fprintln(rt.Out, "\nCreate one with: invoicely orgs create <name>")
		return nil
	}

	current := rt.Session.Snapshot().TenantID()

	w := newTable(rt.Out)
	fmt.Fprintln(w, "\tID\tNAME\tSLUG\tPLAN\tSTATUS")
	fmt.Fprintln(w, "\t──\t────\t────\t────\t──────")

	for _, t := range tenants {
		marker := ""
		if t.ID == current {
			marker = "*"
		}
		status := t.SubscriptionStatus
		if !t.IsActive {
			status = "inactive"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n", marker, t.ID, t.Name, t.Slug, orDash(t.Plan), orDash(status))
	}

	return w.Flush()
}

func newOrgsSelectCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select [id|slug|name]",
		Short: "Select the organization to work in",
		Long: `Select the organization to work in.

If no argument is provided and you belong to several organizations, an
interactive prompt will be shown.

Examples:
  $ invoicely orgs select          # Interactive selection
  $ invoicely orgs select 7        # Select by ID
  $ invoicely orgs select acme     # Select by slug or name`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var idOrName string
			if len(args) > 0 {
				idOrName = args[0]
			}
			return runOrgsSelect(cmd.Context(), rt, idOrName)
		},
	}

	return routed(cmd, routeguard.OrganizationSelectPath)
}

func runOrgsSelect(ctx context.Context, rt *Runtime, idOrName string) error {
	tenant, err := resolveTenant(ctx, rt, idOrName)
	if err != nil {
		return err
	}

	if err := rt.Session.SelectTenant(ctx, tenant.ID); err != nil {
		return fmt.Errorf("failed to select organization: %w", err)
	}

	rememberOrganization(rt, tenant.Slug)
	fmt.Fprintf(rt.Out, "Selected organization: %s\n", tenantselect.Label(rt.Session.Snapshot().Tenant))
	return nil
}

func newOrgsSwitchCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "switch [id|slug|name]",
		Short: "Switch from the current organization to another one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var idOrName string
			if len(args) > 0 {
				idOrName = args[0]
			}
			return runOrgsSwitch(cmd.Context(), rt, idOrName)
		},
	}

	// Switching presumes an organization is already selected
	return routed(cmd, routeguard.DashboardPath)
}

func runOrgsSwitch(ctx context.Context, rt *Runtime, idOrName string) error {
	tenant, err := resolveTenant(ctx, rt, idOrName)
	if err != nil {
		return err
	}

	previous := rt.Session.Snapshot().Tenant
	if err := rt.Session.SwitchTenant(ctx, tenant.ID); err != nil {
		return fmt.Errorf("failed to switch organization: %w", err)
	}

	if previous != nil && previous.ID == tenant.ID {
		fmt.Fprintf(rt.Out, "Already in %s\n", tenantselect.Label(previous))
		return nil
	}

	rememberOrganization(rt, tenant.Slug)
	fmt.Fprintf(rt.Out, "Switched to %s\n", tenantselect.Label(rt.Session.Snapshot().Tenant))
	return nil
}

func resolveTenant(ctx context.Context, rt *Runtime, idOrName string) (*models.Tenant, error) {
	tenants, err := rt.Session.ListUserTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return tenantselect.ResolveTenant(tenants, idOrName, rt.Prompt)
}

func newOrgsCreateCmd(rt *Runtime) *cobra.Command {
	var domain string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an organization and select it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrgsCreate(cmd.Context(), rt, client.CreateTenantRequest{Name: args[0], Domain: domain})
		},
	}

	cmd.Flags().StringVar(&domain, "domain", "", "Organization domain")

	return routed(cmd, routeguard.CreateOrganizationPath)
}

func runOrgsCreate(ctx context.Context, rt *Runtime, req client.CreateTenantRequest) error {
	tenant, err := rt.Session.CreateTenant(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	rememberOrganization(rt, tenant.Slug)
	fmt.Fprintf(rt.Out, "✓ Created and selected %s\n", tenantselect.Label(tenant))
	return nil
}
