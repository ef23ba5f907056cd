package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invoicely-dev/invoicely/internal/cli/client"
	"github.com/invoicely-dev/invoicely/internal/models"
)

const customersPath = "/customers"

// NewCustomersCmd creates the customers command group
func NewCustomersCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "customers",
		Aliases: []string{"customer"},
		Short:   "Manage customers of the selected organization",
	}

	cmd.AddCommand(newCustomersListCmd(rt))
	cmd.AddCommand(newCustomersShowCmd(rt))
	cmd.AddCommand(newCustomersCreateCmd(rt))
	cmd.AddCommand(newCustomersUpdateCmd(rt))
	cmd.AddCommand(newCustomersDeleteCmd(rt))

	return cmd
}

func newCustomersListCmd(rt *Runtime) *cobra.Command {
	var params client.ListParams

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List customers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCustomersList(cmd.Context(), rt, params)
		},
	}

	cmd.Flags().IntVar(&params.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&params.PerPage, "per-page", 10, "Customers per page (max 100)")
	cmd.Flags().StringVar(&params.Search, "search", "", "Filter by name, email or company")

	return routed(cmd, customersPath)
}

func runCustomersList(ctx context.Context, rt *Runtime, params client.ListParams) error {
	page, err := rt.Client.ListCustomers(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to list customers: %w", err)
	}

	if len(page.Customers) == 0 {
		fmt.Fprintln(rt.Out, "No customers found.")
		fmt.Fprintln(rt.Out, "\nCreate a customer with: invoicely customers create --name <name>")
		return nil
	}

	w := newTable(rt.Out)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tCOMPANY\tPHONE")
	fmt.Fprintln(w, "──\t────\t─────\t───────\t─────")

	for _, c := range page.Customers {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", c.ID, c.Name, orDash(c.Email), orDash(c.Company), orDash(c.Phone))
	}

	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(rt.Out, "\nPage %d of %d (%d customers)\n", page.CurrentPage, max(page.Pages, 1), page.Total)
	return nil
}

func newCustomersShowCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "customer")
			if err != nil {
				return err
			}

			customer, err := rt.Client.GetCustomer(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to get customer: %w", err)
			}

			printCustomer(rt, customer)
			return nil
		},
	}

	return routed(cmd, customersPath)
}

func printCustomer(rt *Runtime, c *models.Customer) {
	fmt.Fprintf(rt.Out, "Customer #%d\n", c.ID)
	fmt.Fprintf(rt.Out, "  Name:    %s\n", c.Name)
	fmt.Fprintf(rt.Out, "  Email:   %s\n", orDash(c.Email))
	fmt.Fprintf(rt.Out, "  Phone:   %s\n", orDash(c.Phone))
	fmt.Fprintf(rt.Out, "  Company: %s\n", orDash(c.Company))
	fmt.Fprintf(rt.Out, "  Address: %s\n", orDash(c.Address))
	fmt.Fprintf(rt.Out, "  Tax PIN: %s\n", orDash(c.TaxPIN))
}

func customerFlags(cmd *cobra.Command, req *client.CustomerRequest) {
	cmd.Flags().StringVar(&req.Name, "name", "", "Customer name")
	cmd.Flags().StringVar(&req.Email, "email", "", "Billing email address")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&req.Address, "address", "", "Postal address")
	cmd.Flags().StringVar(&req.TaxPIN, "tax-pin", "", "Tax identification number")
	cmd.Flags().StringVar(&req.Company, "company", "", "Company name")
}

func newCustomersCreateCmd(rt *Runtime) *cobra.Command {
	var req client.CustomerRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a customer",
		RunE: func(cmd *cobra.Command, args []string) error {
			customer, err := rt.Client.CreateCustomer(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("failed to create customer: %w", err)
			}

			fmt.Fprintf(rt.Out, "✓ Created customer #%d (%s)\n", customer.ID, customer.Name)
			return nil
		},
	}

	customerFlags(cmd, &req)

	return routed(cmd, customersPath)
}

func newCustomersUpdateCmd(rt *Runtime) *cobra.Command {
	var req client.CustomerRequest

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a customer",
		Long: `Update a customer. Flags that are not given keep their current value.

Examples:
  $ invoicely customers update 12 --email billing@acme.example`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "customer")
			if err != nil {
				return err
			}
			return runCustomersUpdate(cmd, rt, id, req)
		},
	}

	customerFlags(cmd, &req)

	return routed(cmd, customersPath)
}

// runCustomersUpdate merges the changed flags over the current record, since
// the API replaces the whole customer
func runCustomersUpdate(cmd *cobra.Command, rt *Runtime, id int64, req client.CustomerRequest) error {
	ctx := cmd.Context()

	current, err := rt.Client.GetCustomer(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get customer: %w", err)
	}

	merged := client.CustomerRequest{
		Name:    current.Name,
		Email:   current.Email,
		Phone:   current.Phone,
		Address: current.Address,
		TaxPIN:  current.TaxPIN,
		Company: current.Company,
	}

	flags := cmd.Flags()
	for flag, dst := range map[string]*string{
		"name":    &merged.Name,
		"email":   &merged.Email,
		"phone":   &merged.Phone,
		"address": &merged.Address,
		"tax-pin": &merged.TaxPIN,
		"company": &merged.Company,
	} {
		if flags.Changed(flag) {
			*dst, _ = flags.GetString(flag)
		}
	}

	customer, err := rt.Client.UpdateCustomer(ctx, id, merged)
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}

	fmt.Fprintf(rt.Out, "✓ Updated customer #%d (%s)\n", customer.ID, customer.Name)
	return nil
}

func newCustomersDeleteCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a customer without invoices",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "customer")
			if err != nil {
				return err
			}

			if err := rt.Client.DeleteCustomer(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to delete customer: %w", err)
			}

			fmt.Fprintf(rt.Out, "✓ Deleted customer #%d\n", id)
			return nil
		},
	}

	return routed(cmd, customersPath)
}
