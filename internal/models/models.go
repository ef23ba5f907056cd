package models

import "time"

// User is the identity record returned by the API
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone,omitempty"`
	CompanyName    string    `json:"company_name,omitempty"`
	CompanyAddress string    `json:"company_address,omitempty"`
	CompanyLogo    string    `json:"company_logo,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Tenant is an organization (workspace) a user can belong to
type Tenant struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Slug               string    `json:"slug"`
	Domain             string    `json:"domain,omitempty"`
	Logo               string    `json:"logo,omitempty"`
	Plan               string    `json:"plan"`                // free, basic, professional, enterprise
	SubscriptionStatus string    `json:"subscription_status"` // active, trialing, past_due, cancelled
	IsActive           bool      `json:"is_active"`
	MaxUsers           int       `json:"max_users"`
	MaxInvoices        int       `json:"max_invoices"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// AuthResponse is returned by login and register
type AuthResponse struct {
	AccessToken string  `json:"access_token"`
	User        *User   `json:"user"`
	Tenant      *Tenant `json:"tenant"`
	Message     string  `json:"message,omitempty"`
}

// Profile is returned by GET /auth/profile. Tenant is nil until one is selected.
type Profile struct {
	User   *User   `json:"user"`
	Tenant *Tenant `json:"tenant"`
}

// TenantSelection is returned when exchanging a credential for a tenant-scoped one
type TenantSelection struct {
	AccessToken string  `json:"access_token"`
	Tenant      *Tenant `json:"tenant"`
}

// Customer is a billable contact owned by a tenant
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	TaxPIN    string    `json:"tax_pin,omitempty"`
	Company   string    `json:"company,omitempty"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InvoiceStatus is the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "draft"
	InvoiceStatusSent    InvoiceStatus = "sent"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
)

// InvoiceItem is a single line on an invoice
type InvoiceItem struct {
	ID          int64   `json:"id,omitempty"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Rate        float64 `json:"rate"`
	Total       float64 `json:"total"`
}

// Invoice is a bill issued to a customer
type Invoice struct {
	ID             int64         `json:"id"`
	InvoiceNumber  string        `json:"invoice_number"`
	Title          string        `json:"title,omitempty"`
	Description    string        `json:"description,omitempty"`
	IssueDate      string        `json:"issue_date"`
	DueDate        string        `json:"due_date,omitempty"`
	Status         InvoiceStatus `json:"status"`
	Subtotal       float64       `json:"subtotal"`
	TaxRate        float64       `json:"tax_rate"`
	TaxAmount      float64       `json:"tax_amount"`
	DiscountRate   float64       `json:"discount_rate"`
	DiscountAmount float64       `json:"discount_amount"`
	TotalAmount    float64       `json:"total_amount"`
	PaidAmount     float64       `json:"paid_amount"`
	PaymentDate    string        `json:"payment_date,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	Terms          string        `json:"terms,omitempty"`
	UserID         int64         `json:"user_id"`
	CustomerID     int64         `json:"customer_id"`
	Customer       *Customer     `json:"customer,omitempty"`
	Items          []InvoiceItem `json:"items"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// CustomerPage is a page of customers as returned by GET /customers
type CustomerPage struct {
	Customers   []Customer `json:"customers"`
	Total       int64      `json:"total"`
	Pages       int        `json:"pages"`
	CurrentPage int        `json:"current_page"`
}

// InvoicePage is a page of invoices as returned by GET /invoices
type InvoicePage struct {
	Invoices    []Invoice `json:"invoices"`
	Total       int64     `json:"total"`
	Pages       int       `json:"pages"`
	CurrentPage int       `json:"current_page"`
}
