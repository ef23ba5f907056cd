package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invoicely-dev/invoicely/internal/cli/client"
	"github.com/invoicely-dev/invoicely/internal/models"
)

const invoicesPath = "/invoices"

// NewInvoicesCmd creates the invoices command group
func NewInvoicesCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "invoices",
		Aliases: []string{"invoice", "inv"},
		Short:   "Manage invoices of the selected organization",
	}

	cmd.AddCommand(newInvoicesListCmd(rt))
	cmd.AddCommand(newInvoicesShowCmd(rt))
	cmd.AddCommand(newInvoicesCreateCmd(rt))
	cmd.AddCommand(newInvoicesUpdateCmd(rt))
	cmd.AddCommand(newInvoicesSendCmd(rt))
	cmd.AddCommand(newInvoicesPDFCmd(rt))
	cmd.AddCommand(newInvoicesDeleteCmd(rt))

	return cmd
}

func newInvoicesListCmd(rt *Runtime) *cobra.Command {
	var params client.ListParams

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List invoices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoicesList(cmd.Context(), rt, params)
		},
	}

	cmd.Flags().IntVar(&params.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&params.PerPage, "per-page", 10, "Invoices per page (max 100)")
	cmd.Flags().StringVar(&params.Status, "status", "", "Filter by status (draft, sent, paid, overdue)")

	return routed(cmd, invoicesPath)
}

func runInvoicesList(ctx context.Context, rt *Runtime, params client.ListParams) error {
	page, err := rt.Client.ListInvoices(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to list invoices: %w", err)
	}

	if len(page.Invoices) == 0 {
		fmt.Fprintln(rt.Out, "No invoices found.")
		fmt.Fprintln(rt.Out, "\nCreate an invoice with: invoicely invoices create --customer <id> --item \"Consulting:2:150\"")
		return nil
	}

	w := newTable(rt.Out)
	fmt.Fprintln(w, "ID\tNUMBER\tCUSTOMER\tSTATUS\tISSUED\tDUE\tTOTAL")
	fmt.Fprintln(w, "──\t──────\t────────\t──────\t──────\t───\t─────")

	for _, inv := range page.Invoices {
		customer := "-"
		if inv.Customer != nil {
			customer = inv.Customer.Name
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			inv.ID,
			inv.InvoiceNumber,
			customer,
			inv.Status,
			inv.IssueDate,
			orDash(inv.DueDate),
			formatMoney(inv.TotalAmount),
		)
	}

	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(rt.Out, "\nPage %d of %d (%d invoices)\n", page.CurrentPage, max(page.Pages, 1), page.Total)
	return nil
}

func newInvoicesShowCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an invoice with its line items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "invoice")
			if err != nil {
				return err
			}

			invoice, err := rt.Client.GetInvoice(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to get invoice: %w", err)
			}

			return printInvoice(rt, invoice)
		},
	}

	return routed(cmd, invoicesPath)
}

func printInvoice(rt *Runtime, inv *models.Invoice) error {
	fmt.Fprintf(rt.Out, "Invoice %s (#%d)\n", inv.InvoiceNumber, inv.ID)
	if inv.Title != "" {
		fmt.Fprintf(rt.Out, "  Title:    %s\n", inv.Title)
	}
	if inv.Customer != nil {
		fmt.Fprintf(rt.Out, "  Customer: %s\n", inv.Customer.Name)
	}
	fmt.Fprintf(rt.Out, "  Status:   %s\n", inv.Status)
	fmt.Fprintf(rt.Out, "  Issued:   %s\n", inv.IssueDate)
	fmt.Fprintf(rt.Out, "  Due:      %s\n\n", orDash(inv.DueDate))

	w := newTable(rt.Out)
	fmt.Fprintln(w, "DESCRIPTION\tQTY\tRATE\tTOTAL")
	fmt.Fprintln(w, "───────────\t───\t────\t─────")
	for _, item := range inv.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			item.Description,
			strconv.FormatFloat(item.Quantity, 'f', -1, 64),
			formatMoney(item.Rate),
			formatMoney(item.Total),
		)
	}
	fmt.Fprintf(w, "\t\tSubtotal\t%s\n", formatMoney(inv.Subtotal))
	if inv.DiscountAmount > 0 {
		fmt.Fprintf(w, "\t\tDiscount (%s%%)\t-%s\n", strconv.FormatFloat(inv.DiscountRate, 'f', -1, 64), formatMoney(inv.DiscountAmount))
	}
	if inv.TaxAmount > 0 {
		fmt.Fprintf(w, "\t\tTax (%s%%)\t%s\n", strconv.FormatFloat(inv.TaxRate, 'f', -1, 64), formatMoney(inv.TaxAmount))
	}
	fmt.Fprintf(w, "\t\tTotal\t%s\n", formatMoney(inv.TotalAmount))

	return w.Flush()
}

// invoiceFlags are shared by create and update
type invoiceFlags struct {
	req   client.InvoiceRequest
	items []string
}

func (f *invoiceFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.req.CustomerID, "customer", 0, "Customer ID")
	cmd.Flags().StringVar(&f.req.Title, "title", "", "Invoice title")
	cmd.Flags().StringVar(&f.req.Description, "description", "", "Invoice description")
	cmd.Flags().StringVar(&f.req.DueDate, "due", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&f.req.TaxRate, "tax", 0, "Tax rate in percent")
	cmd.Flags().Float64Var(&f.req.DiscountRate, "discount", 0, "Discount rate in percent")
	cmd.Flags().StringVar(&f.req.Notes, "notes", "", "Notes printed on the invoice")
	cmd.Flags().StringVar(&f.req.Terms, "terms", "", "Payment terms")
	cmd.Flags().StringArrayVar(&f.items, "item", nil, `Line item as "description:quantity:rate" (repeatable)`)
}

// parseItem parses "description:quantity:rate". The description may itself
// contain colons.
func parseItem(raw string) (client.InvoiceItemRequest, error) {
	rest, rateStr, ok := cutLast(raw, ":")
	if !ok {
		return client.InvoiceItemRequest{}, fmt.Errorf("invalid item %q (expected description:quantity:rate)", raw)
	}
	description, qtyStr, ok := cutLast(rest, ":")
	if !ok {
		return client.InvoiceItemRequest{}, fmt.Errorf("invalid item %q (expected description:quantity:rate)", raw)
	}

	quantity, err := strconv.ParseFloat(strings.TrimSpace(qtyStr), 64)
	if err != nil {
		return client.InvoiceItemRequest{}, fmt.Errorf("invalid quantity in item %q", raw)
	}
	rate, err := strconv.ParseFloat(strings.TrimSpace(rateStr), 64)
	if err != nil {
		return client.InvoiceItemRequest{}, fmt.Errorf("invalid rate in item %q", raw)
	}

	return client.InvoiceItemRequest{
		Description: strings.TrimSpace(description),
		Quantity:    quantity,
		Rate:        rate,
	}, nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}

func parseItems(raw []string) ([]client.InvoiceItemRequest, error) {
	items := make([]client.InvoiceItemRequest, 0, len(raw))
	for _, r := range raw {
		item, err := parseItem(r)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func newInvoicesCreateCmd(rt *Runtime) *cobra.Command {
	var f invoiceFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft invoice",
		Long: `Create a draft invoice.

Examples:
  $ invoicely invoices create --customer 12 --due 2026-04-30 \
      --item "Consulting:10:150" --item "Hosting:1:49.99" --tax 16`,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := parseItems(f.items)
			if err != nil {
				return err
			}
			f.req.Items = items

			invoice, err := rt.Client.CreateInvoice(cmd.Context(), f.req)
			if err != nil {
				return fmt.Errorf("failed to create invoice: %w", err)
			}

			fmt.Fprintf(rt.Out, "✓ Created invoice %s (#%d), total %s\n", invoice.InvoiceNumber, invoice.ID, formatMoney(invoice.TotalAmount))
			return nil
		},
	}

	f.register(cmd)

	return routed(cmd, invoicesPath)
}

func newInvoicesUpdateCmd(rt *Runtime) *cobra.Command {
	var f invoiceFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an invoice",
		Long: `Update an invoice. Flags that are not given keep their current value;
passing --item replaces all line items.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "invoice")
			if err != nil {
				return err
			}
			return runInvoicesUpdate(cmd, rt, id, &f)
		},
	}

	f.register(cmd)

	return routed(cmd, invoicesPath)
}

func runInvoicesUpdate(cmd *cobra.Command, rt *Runtime, id int64, f *invoiceFlags) error {
	ctx := cmd.Context()

	current, err := rt.Client.GetInvoice(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get invoice: %w", err)
	}

	req := client.InvoiceRequest{
		CustomerID:   current.CustomerID,
		Title:        current.Title,
		Description:  current.Description,
		DueDate:      current.DueDate,
		TaxRate:      current.TaxRate,
		DiscountRate: current.DiscountRate,
		Notes:        current.Notes,
		Terms:        current.Terms,
	}
	for _, item := range current.Items {
		req.Items = append(req.Items, client.InvoiceItemRequest{
			Description: item.Description,
			Quantity:    item.Quantity,
			Rate:        item.Rate,
		})
	}

	flags := cmd.Flags()
	if flags.Changed("customer") {
		req.CustomerID = f.req.CustomerID
	}
	if flags.Changed("title") {
		req.Title = f.req.Title
	}
	if flags.Changed("description") {
		req.Description = f.req.Description
	}
	if flags.Changed("due") {
		req.DueDate = f.req.DueDate
	}
	if flags.Changed("tax") {
		req.TaxRate = f.req.TaxRate
	}
	if flags.Changed("discount") {
		req.DiscountRate = f.req.DiscountRate
	}
	if flags.Changed("notes") {
		req.Notes = f.req.Notes
	}
	if flags.Changed("terms") {
		req.Terms = f.req.Terms
	}
	if flags.Changed("item") {
		if req.Items, err = parseItems(f.items); err != nil {
			return err
		}
	}

	invoice, err := rt.Client.UpdateInvoice(ctx, id, req)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}

	fmt.Fprintf(rt.Out, "✓ Updated invoice %s, total %s\n", invoice.InvoiceNumber, formatMoney(invoice.TotalAmount))
	return nil
}

func newInvoicesSendCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <id>",
		Short: "Send an invoice to its customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "invoice")
			if err != nil {
				return err
			}

			resp, err := rt.Client.SendInvoice(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to send invoice: %w", err)
			}

			fmt.Fprintf(rt.Out, "✓ %s\n", resp.Message)
			return nil
		},
	}

	return routed(cmd, invoicesPath)
}

func newInvoicesPDFCmd(rt *Runtime) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "pdf <id>",
		Short: "Download an invoice as PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "invoice")
			if err != nil {
				return err
			}

			data, err := rt.Client.DownloadInvoicePDF(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to download invoice: %w", err)
			}

			if output == "" {
				output = fmt.Sprintf("invoice-%d.pdf", id)
			}
			if output == "-" {
				_, err := rt.Out.Write(data)
				return err
			}

			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}

			fmt.Fprintf(rt.Out, "✓ Saved %s (%d bytes)\n", output, len(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", `Output file ("-" for stdout, default invoice-<id>.pdf)`)

	return routed(cmd, invoicesPath)
}

func newInvoicesDeleteCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete an invoice",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "invoice")
			if err != nil {
				return err
			}

			if err := rt.Client.DeleteInvoice(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to delete invoice: %w", err)
			}

			fmt.Fprintf(rt.Out, "✓ Deleted invoice #%d\n", id)
			return nil
		},
	}

	return routed(cmd, invoicesPath)
}
