package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/invoicely-dev/invoicely/internal/models"
)

// CustomerRequest is the body for creating or updating a customer
type CustomerRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string `json:"phone,omitempty" validate:"omitempty,max=15"`
	Address string `json:"address,omitempty" validate:"omitempty,max=500"`
	TaxPIN  string `json:"tax_pin,omitempty" validate:"omitempty,max=50"`
	Company string `json:"company,omitempty" validate:"omitempty,max=200"`
}

// ListParams controls pagination and filtering for list endpoints
type ListParams struct {
	Page    int
	PerPage int
	Search  string // customers only
	Status  string // invoices only
}

func (p ListParams) values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(p.PerPage))
	}
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	if p.Status != "" {
		v.Set("status", p.Status)
	}
	return v
}

// ListCustomers returns a page of customers in the current tenant
func (c *Client) ListCustomers(ctx context.Context, params ListParams) (*models.CustomerPage, error) {
	var page models.CustomerPage
	if err := c.do(ctx, request{method: http.MethodGet, path: "/customers", query: params.values()}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetCustomer returns a single customer
func (c *Client) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	var customer models.Customer
	if err := c.do(ctx, request{method: http.MethodGet, path: fmt.Sprintf("/customers/%d", id)}, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// CreateCustomer creates a customer in the current tenant
func (c *Client) CreateCustomer(ctx context.Context, req CustomerRequest) (*models.Customer, error) {
	var customer models.Customer
	if err := c.do(ctx, request{method: http.MethodPost, path: "/customers", body: req}, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// UpdateCustomer replaces a customer's fields
func (c *Client) UpdateCustomer(ctx context.Context, id int64, req CustomerRequest) (*models.Customer, error) {
	var customer models.Customer
	if err := c.do(ctx, request{method: http.MethodPut, path: fmt.Sprintf("/customers/%d", id), body: req}, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// DeleteCustomer deletes a customer by ID
func (c *Client) DeleteCustomer(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: fmt.Sprintf("/customers/%d", id)}, nil)
}
