package sandbox

import (
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/invoicely-dev/invoicely/internal/models"
)

// userRecord is the stored form of models.User
type userRecord struct {
	ID             int64  `gorm:"primaryKey"`
	Username       string `gorm:"uniqueIndex;not null"`
	Email          string `gorm:"uniqueIndex;not null"`
	Name           string `gorm:"not null"`
	PasswordHash   string `gorm:"not null"`
	Phone          string
	CompanyName    string
	CompanyAddress string
	CompanyLogo    string
	IsActive       bool `gorm:"default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (userRecord) TableName() string { return "users" }

type tenantRecord struct {
	ID                 int64  `gorm:"primaryKey"`
	Name               string `gorm:"uniqueIndex;not null"`
	Slug               string `gorm:"uniqueIndex;not null"`
	Domain             string
	Logo               string
	Plan               string `gorm:"default:free"`
	SubscriptionStatus string `gorm:"default:active"`
	IsActive           bool   `gorm:"default:true"`
	MaxUsers           int    `gorm:"default:5"`
	MaxInvoices        int    `gorm:"default:100"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (tenantRecord) TableName() string { return "tenants" }

// membershipRecord links a user to a tenant
type membershipRecord struct {
	UserID    int64  `gorm:"primaryKey"`
	TenantID  int64  `gorm:"primaryKey"`
	Role      string `gorm:"default:member"` // admin, member
	CreatedAt time.Time
}

func (membershipRecord) TableName() string { return "memberships" }

type customerRecord struct {
	ID        int64 `gorm:"primaryKey"`
	TenantID  int64 `gorm:"index;not null"`
	UserID    int64 `gorm:"not null"`
	Name      string `gorm:"not null"`
	Email     string
	Phone     string
	Address   string
	TaxPIN    string
	Company   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (customerRecord) TableName() string { return "customers" }

type invoiceRecord struct {
	ID             int64  `gorm:"primaryKey"`
	TenantID       int64  `gorm:"index;not null"`
	UserID         int64  `gorm:"not null"`
	CustomerID     int64  `gorm:"index;not null"`
	InvoiceNumber  string `gorm:"uniqueIndex;not null"`
	Title          string
	Description    string
	IssueDate      string `gorm:"not null"` // YYYY-MM-DD
	DueDate        string `gorm:"index"`    // YYYY-MM-DD, empty when not set
	Status         string `gorm:"index;default:draft"`
	Subtotal       float64
	TaxRate        float64
	TaxAmount      float64
	DiscountRate   float64
	DiscountAmount float64
	TotalAmount    float64
	PaidAmount     float64
	PaymentDate    string
	Notes          string
	Terms          string
	Customer       customerRecord      `gorm:"foreignKey:CustomerID"`
	Items          []invoiceItemRecord `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (invoiceRecord) TableName() string { return "invoices" }

type invoiceItemRecord struct {
	ID          int64  `gorm:"primaryKey"`
	InvoiceID   int64  `gorm:"index;not null"`
	Description string `gorm:"not null"`
	Quantity    float64
	Rate        float64
	Total       float64
}

func (invoiceItemRecord) TableName() string { return "invoice_items" }

// autoMigrate creates the sandbox schema
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&userRecord{},
		&tenantRecord{},
		&membershipRecord{},
		&customerRecord{},
		&invoiceRecord{},
		&invoiceItemRecord{},
	)
}

func (u *userRecord) toModel() *models.User {
	return &models.User{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		Name:           u.Name,
		Phone:          u.Phone,
		CompanyName:    u.CompanyName,
		CompanyAddress: u.CompanyAddress,
		CompanyLogo:    u.CompanyLogo,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func (t *tenantRecord) toModel() *models.Tenant {
	return &models.Tenant{
		ID:                 t.ID,
		Name:               t.Name,
		Slug:               t.Slug,
		Domain:             t.Domain,
		Logo:               t.Logo,
		Plan:               t.Plan,
		SubscriptionStatus: t.SubscriptionStatus,
		IsActive:           t.IsActive,
		MaxUsers:           t.MaxUsers,
		MaxInvoices:        t.MaxInvoices,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

func (c *customerRecord) toModel() *models.Customer {
	return &models.Customer{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		TaxPIN:    c.TaxPIN,
		Company:   c.Company,
		UserID:    c.UserID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// toModel converts an invoice; the customer is included when it was preloaded
func (i *invoiceRecord) toModel() *models.Invoice {
	invoice := &models.Invoice{
		ID:             i.ID,
		InvoiceNumber:  i.InvoiceNumber,
		Title:          i.Title,
		Description:    i.Description,
		IssueDate:      i.IssueDate,
		DueDate:        i.DueDate,
		Status:         models.InvoiceStatus(i.Status),
		Subtotal:       i.Subtotal,
		TaxRate:        i.TaxRate,
		TaxAmount:      i.TaxAmount,
		DiscountRate:   i.DiscountRate,
		DiscountAmount: i.DiscountAmount,
		TotalAmount:    i.TotalAmount,
		PaidAmount:     i.PaidAmount,
		PaymentDate:    i.PaymentDate,
		Notes:          i.Notes,
		Terms:          i.Terms,
		UserID:         i.UserID,
		CustomerID:     i.CustomerID,
		Items:          make([]models.InvoiceItem, 0, len(i.Items)),
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
	if i.Customer.ID != 0 {
		invoice.Customer = i.Customer.toModel()
	}
	for _, item := range i.Items {
		invoice.Items = append(invoice.Items, models.InvoiceItem{
			ID:          item.ID,
			Description: item.Description,
			Quantity:    item.Quantity,
			Rate:        item.Rate,
			Total:       item.Total,
		})
	}
	return invoice
}

// calculateTotals recomputes item and invoice totals. Discount applies to the
// subtotal and tax to the discounted amount.
func (i *invoiceRecord) calculateTotals() {
	var subtotal float64
	for idx := range i.Items {
		i.Items[idx].Total = roundCents(i.Items[idx].Quantity * i.Items[idx].Rate)
		subtotal += i.Items[idx].Total
	}

	i.Subtotal = roundCents(subtotal)
	i.DiscountAmount = roundCents(i.Subtotal * i.DiscountRate / 100)
	afterDiscount := i.Subtotal - i.DiscountAmount
	i.TaxAmount = roundCents(afterDiscount * i.TaxRate / 100)
	i.TotalAmount = roundCents(afterDiscount + i.TaxAmount)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
