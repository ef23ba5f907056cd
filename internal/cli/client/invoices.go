package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/invoicely-dev/invoicely/internal/models"
)

// InvoiceItemRequest is one line of an invoice request
type InvoiceItemRequest struct {
	Description string  `json:"description" validate:"required,max=500"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	Rate        float64 `json:"rate" validate:"gt=0"`
}

// InvoiceRequest is the body for creating or updating an invoice. Totals are
// computed by the API.
type InvoiceRequest struct {
	CustomerID   int64                `json:"customer_id" validate:"required,gt=0"`
	Title        string               `json:"title,omitempty" validate:"omitempty,max=200"`
	Description  string               `json:"description,omitempty" validate:"omitempty,max=1000"`
	DueDate      string               `json:"due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	TaxRate      float64              `json:"tax_rate" validate:"gte=0,lte=100"`
	DiscountRate float64              `json:"discount_rate" validate:"gte=0,lte=100"`
	Notes        string               `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Terms        string               `json:"terms,omitempty" validate:"omitempty,max=1000"`
	Items        []InvoiceItemRequest `json:"items" validate:"required,min=1,dive"`
}

// MessageResponse is the body of action endpoints such as send
type MessageResponse struct {
	Message string `json:"message"`
}

// ListInvoices returns a page of invoices in the current tenant
func (c *Client) ListInvoices(ctx context.Context, params ListParams) (*models.InvoicePage, error) {
	var page models.InvoicePage
	if err := c.do(ctx, request{method: http.MethodGet, path: "/invoices", query: params.values()}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetInvoice returns an invoice with its customer and items
func (c *Client) GetInvoice(ctx context.Context, id int64) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := c.do(ctx, request{method: http.MethodGet, path: fmt.Sprintf("/invoices/%d", id)}, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// CreateInvoice creates a draft invoice
func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := c.do(ctx, request{method: http.MethodPost, path: "/invoices", body: req}, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// UpdateInvoice replaces an invoice's fields and items
func (c *Client) UpdateInvoice(ctx context.Context, id int64, req InvoiceRequest) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := c.do(ctx, request{method: http.MethodPut, path: fmt.Sprintf("/invoices/%d", id), body: req}, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// DeleteInvoice deletes an invoice by ID
func (c *Client) DeleteInvoice(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: fmt.Sprintf("/invoices/%d", id)}, nil)
}

// SendInvoice emails the invoice to its customer and marks it sent
func (c *Client) SendInvoice(ctx context.Context, id int64) (*MessageResponse, error) {
	var resp MessageResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: fmt.Sprintf("/invoices/%d/send", id)}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DownloadInvoicePDF returns the rendered PDF bytes
func (c *Client) DownloadInvoicePDF(ctx context.Context, id int64) ([]byte, error) {
	return c.doRaw(ctx, request{method: http.MethodGet, path: fmt.Sprintf("/invoices/%d/pdf", id)})
}
