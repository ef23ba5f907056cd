package commands

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/invoicely-dev/invoicely/internal/cli/client"
	"github.com/invoicely-dev/invoicely/internal/cli/tenantselect"
	"github.com/invoicely-dev/invoicely/internal/models"
	"github.com/invoicely-dev/invoicely/internal/routeguard"
)

const (
	// dashboardInvoiceWindow is how many invoices revenue is computed over
	dashboardInvoiceWindow  = 100
	dashboardRecentInvoices = 5
)

var dashboardStatuses = []models.InvoiceStatus{
	models.InvoiceStatusDraft,
	models.InvoiceStatusSent,
	models.InvoiceStatusOverdue,
	models.InvoiceStatusPaid,
}

// NewDashboardCmd creates the dashboard command
func NewDashboardCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Summarize customers and invoices of the selected organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd.Context(), rt)
		},
	}

	return routed(cmd, routeguard.DashboardPath)
}

func runDashboard(ctx context.Context, rt *Runtime) error {
	snap := rt.Session.Snapshot()

	customers, err := rt.Client.ListCustomers(ctx, client.ListParams{PerPage: 1})
	if err != nil {
		return fmt.Errorf("failed to count customers: %w", err)
	}

	recent, err := rt.Client.ListInvoices(ctx, client.ListParams{PerPage: dashboardInvoiceWindow})
	if err != nil {
		return fmt.Errorf("failed to list invoices: %w", err)
	}
	stats := summarizeInvoices(recent.Invoices, time.Now())

	fmt.Fprintf(rt.Out, "%s\n\n", tenantselect.Label(snap.Tenant))
	fmt.Fprintf(rt.Out, "Customers:     %d\n", customers.Total)
	fmt.Fprintf(rt.Out, "Total revenue: %s\n", formatMoney(stats.totalRevenue))
	fmt.Fprintf(rt.Out, "This month:    %s\n\n", formatMoney(stats.monthlyRevenue))

	w := newTable(rt.Out)
	fmt.Fprintln(w, "STATUS\tINVOICES")
	fmt.Fprintln(w, "──────\t────────")

	for _, status := range dashboardStatuses {
		page, err := rt.Client.ListInvoices(ctx, client.ListParams{PerPage: 1, Status: string(status)})
		if err != nil {
			return fmt.Errorf("failed to count %s invoices: %w", status, err)
		}
		fmt.Fprintf(w, "%s\t%d\n", status, page.Total)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(stats.recent) == 0 {
		return nil
	}

	fmt.Fprintln(rt.Out, "\nRecent invoices")
	w = newTable(rt.Out)
	fmt.Fprintln(w, "NUMBER\tCUSTOMER\tSTATUS\tTOTAL")
	fmt.Fprintln(w, "──────\t────────\t──────\t─────")
	for _, inv := range stats.recent {
		customer := ""
		if inv.Customer != nil {
			customer = inv.Customer.Name
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", inv.InvoiceNumber, orDash(customer), inv.Status, formatMoney(inv.TotalAmount))
	}
	return w.Flush()
}

// invoiceStats is what the dashboard derives from the latest invoices
type invoiceStats struct {
	totalRevenue   float64
	monthlyRevenue float64
	recent         []models.Invoice
}

// summarizeInvoices sums totals over all invoices and over those created in
// now's month, and keeps the most recently created ones
func summarizeInvoices(invoices []models.Invoice, now time.Time) invoiceStats {
	var stats invoiceStats
	for _, inv := range invoices {
		stats.totalRevenue += inv.TotalAmount

		created := inv.CreatedAt.In(now.Location())
		if created.Year() == now.Year() && created.Month() == now.Month() {
			stats.monthlyRevenue += inv.TotalAmount
		}
	}

	sorted := slices.Clone(invoices)
	slices.SortStableFunc(sorted, func(a, b models.Invoice) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(sorted) > dashboardRecentInvoices {
		sorted = sorted[:dashboardRecentInvoices]
	}
	stats.recent = sorted
	return stats
}
