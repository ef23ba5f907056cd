package sandbox

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/invoicely-dev/invoicely/internal/assert"
	"github.com/invoicely-dev/invoicely/internal/models"
)

const dateLayout = "2006-01-02"

// InvoiceItemRequest is one line of an invoice request
type InvoiceItemRequest struct {
	Description string  `json:"description" binding:"required,max=500"`
	Quantity    float64 `json:"quantity" binding:"gt=0"`
	Rate        float64 `json:"rate" binding:"gt=0"`
}

// InvoiceRequest is the body for creating or updating an invoice
type InvoiceRequest struct {
	CustomerID   int64                `json:"customer_id" binding:"required,gt=0"`
	Title        string               `json:"title" binding:"omitempty,max=200"`
	Description  string               `json:"description" binding:"omitempty,max=1000"`
	DueDate      string               `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	TaxRate      float64              `json:"tax_rate" binding:"gte=0,lte=100"`
	DiscountRate float64              `json:"discount_rate" binding:"gte=0,lte=100"`
	Notes        string               `json:"notes" binding:"omitempty,max=1000"`
	Terms        string               `json:"terms" binding:"omitempty,max=1000"`
	Items        []InvoiceItemRequest `json:"items" binding:"required,min=1,dive"`
}

func (r *InvoiceRequest) apply(invoice *invoiceRecord) {
	invoice.CustomerID = r.CustomerID
	invoice.Title = r.Title
	invoice.Description = r.Description
	invoice.DueDate = r.DueDate
	invoice.TaxRate = r.TaxRate
	invoice.DiscountRate = r.DiscountRate
	invoice.Notes = r.Notes
	invoice.Terms = r.Terms

	invoice.Items = make([]invoiceItemRecord, 0, len(r.Items))
	for _, item := range r.Items {
		invoice.Items = append(invoice.Items, invoiceItemRecord{
			Description: item.Description,
			Quantity:    item.Quantity,
			Rate:        item.Rate,
		})
	}
	invoice.calculateTotals()
}

func (s *Server) listInvoices(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query"})
		return
	}
	q.normalize()

	query := s.db.Model(&invoiceRecord{}).Where("tenant_id = ?", sessionData.TenantID)
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to count invoices")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	var records []invoiceRecord
	if err := query.Preload("Customer").Preload("Items").
		Order("id DESC").Offset(q.offset()).Limit(q.PerPage).
		Find(&records).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to list invoices")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	page := models.InvoicePage{
		Invoices:    make([]models.Invoice, 0, len(records)),
		Total:       total,
		Pages:       pageCount(total, q.PerPage),
		CurrentPage: q.Page,
	}
	for i := range records {
		page.Invoices = append(page.Invoices, *records[i].toModel())
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) getInvoice(c *gin.Context) {
	invoice, ok := s.loadInvoice(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, invoice.toModel())
}

func (s *Server) createInvoice(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var req InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid invoice", "errors": bindingErrors(err)})
		return
	}

	if !s.customerInTenant(c, req.CustomerID, sessionData.TenantID) {
		return
	}

	var tenant tenantRecord
	if err := s.db.First(&tenant, sessionData.TenantID).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to load organization")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	var count int64
	if err := s.db.Model(&invoiceRecord{}).Where("tenant_id = ?", tenant.ID).Count(&count).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to count invoices")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if tenant.MaxInvoices > 0 && count >= int64(tenant.MaxInvoices) {
		c.JSON(http.StatusForbidden, gin.H{"error": fmt.Sprintf("Invoice limit of %d reached for the %s plan", tenant.MaxInvoices, tenant.Plan)})
		return
	}

	now := s.config.Now()
	invoice := &invoiceRecord{
		TenantID:      sessionData.TenantID,
		UserID:        sessionData.UserID,
		InvoiceNumber: invoiceNumber(now.Year()),
		IssueDate:     now.Format(dateLayout),
		Status:        string(models.InvoiceStatusDraft),
	}
	req.apply(invoice)

	if err := s.db.Omit("Customer").Create(invoice).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to create invoice")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create invoice"})
		return
	}

	s.logger.Info().
		Int64("tenant_id", invoice.TenantID).
		Str("invoice_number", invoice.InvoiceNumber).
		Float64("total", invoice.TotalAmount).
		Msg("Invoice created")

	c.JSON(http.StatusCreated, invoice.toModel())
}

func (s *Server) updateInvoice(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	invoice, ok := s.loadInvoice(c)
	if !ok {
		return
	}

	var req InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid invoice", "errors": bindingErrors(err)})
		return
	}

	if !s.customerInTenant(c, req.CustomerID, sessionData.TenantID) {
		return
	}

	req.apply(invoice)
	invoice.Customer = customerRecord{}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&invoiceItemRecord{}).Error; err != nil {
			return err
		}
		return tx.Omit("Customer").Save(invoice).Error
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to update invoice")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update invoice"})
		return
	}

	reloaded, ok := s.findInvoice(c, invoice.ID, sessionData.TenantID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, reloaded.toModel())
}

func (s *Server) deleteInvoice(c *gin.Context) {
	invoice, ok := s.loadInvoice(c)
	if !ok {
		return
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&invoiceItemRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(&invoiceRecord{}, invoice.ID).Error
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to delete invoice")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete invoice"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Invoice deleted successfully"})
}

// sendInvoice marks the invoice sent. The sandbox does not deliver email.
func (s *Server) sendInvoice(c *gin.Context) {
	invoice, ok := s.loadInvoice(c)
	if !ok {
		return
	}

	if invoice.Status == string(models.InvoiceStatusPaid) {
		c.JSON(http.StatusConflict, gin.H{"error": "Invoice is already paid"})
		return
	}
	if invoice.Customer.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Customer has no email address"})
		return
	}

	if err := s.db.Model(&invoiceRecord{}).Where("id = ?", invoice.ID).
		Update("status", string(models.InvoiceStatusSent)).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to mark invoice sent")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send invoice"})
		return
	}

	s.logger.Info().
		Str("invoice_number", invoice.InvoiceNumber).
		Str("to", invoice.Customer.Email).
		Msg("Invoice sent")

	c.JSON(http.StatusOK, gin.H{"message": "Invoice sent successfully"})
}

// invoicePDF returns a minimal placeholder document
func (s *Server) invoicePDF(c *gin.Context) {
	invoice, ok := s.loadInvoice(c)
	if !ok {
		return
	}

	body := fmt.Sprintf("%%PDF-1.4\n%% %s %s %.2f\n%%%%EOF\n", invoice.InvoiceNumber, invoice.Customer.Name, invoice.TotalAmount)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=invoice_%s.pdf", invoice.InvoiceNumber))
	c.Data(http.StatusOK, "application/pdf", []byte(body))
}

func (s *Server) loadInvoice(c *gin.Context) (*invoiceRecord, bool) {
	sessionData, _ := GetSessionData(c)

	id, ok := parseID(c)
	if !ok {
		return nil, false
	}
	return s.findInvoice(c, id, sessionData.TenantID)
}

func (s *Server) findInvoice(c *gin.Context, id, tenantID int64) (*invoiceRecord, bool) {
	var invoice invoiceRecord
	if err := s.db.Preload("Customer").Preload("Items").
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
			return nil, false
		}
		s.logger.Error().Err(err).Msg("Failed to load invoice")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return nil, false
	}
	return &invoice, true
}

func (s *Server) customerInTenant(c *gin.Context, customerID, tenantID int64) bool {
	var count int64
	if err := s.db.Model(&customerRecord{}).Where("id = ? AND tenant_id = ?", customerID, tenantID).Count(&count).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to load customer")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return false
	}
	if count == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid invoice", "errors": gin.H{"customer_id": "customer not found"}})
		return false
	}
	return true
}

// invoiceNumber builds INV-<year>-<8 random characters>
func invoiceNumber(year int) string {
	id := ulid.Make().String()
	suffix := id[len(id)-8:]
	assert.Length(suffix, 8)
	return fmt.Sprintf("INV-%d-%s", year, suffix)
}
