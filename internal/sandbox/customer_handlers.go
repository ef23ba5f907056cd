package sandbox

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/invoicely-dev/invoicely/internal/models"
)

const (
	defaultPerPage = 10
	maxPerPage     = 100
)

// CustomerRequest is the body for creating or updating a customer
type CustomerRequest struct {
	Name    string `json:"name" binding:"required,max=200"`
	Email   string `json:"email" binding:"omitempty,email"`
	Phone   string `json:"phone" binding:"omitempty,max=15"`
	Address string `json:"address" binding:"omitempty,max=500"`
	TaxPIN  string `json:"tax_pin" binding:"omitempty,max=50"`
	Company string `json:"company" binding:"omitempty,max=200"`
}

// pageQuery is the pagination and filter query shared by list endpoints
type pageQuery struct {
	Page    int    `form:"page"`
	PerPage int    `form:"per_page"`
	Search  string `form:"search"`
	Status  string `form:"status"`
}

func (q *pageQuery) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = defaultPerPage
	}
	if q.PerPage > maxPerPage {
		q.PerPage = maxPerPage
	}
}

func (q *pageQuery) offset() int {
	return (q.Page - 1) * q.PerPage
}

func pageCount(total int64, perPage int) int {
	return int((total + int64(perPage) - 1) / int64(perPage))
}

func (s *Server) listCustomers(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query"})
		return
	}
	q.normalize()

	query := s.db.Model(&customerRecord{}).Where("tenant_id = ?", sessionData.TenantID)
	if search := strings.TrimSpace(q.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(company) LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to count customers")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	var records []customerRecord
	if err := query.Order("id").Offset(q.offset()).Limit(q.PerPage).Find(&records).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to list customers")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	page := models.CustomerPage{
		Customers:   make([]models.Customer, 0, len(records)),
		Total:       total,
		Pages:       pageCount(total, q.PerPage),
		CurrentPage: q.Page,
	}
	for i := range records {
		page.Customers = append(page.Customers, *records[i].toModel())
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) getCustomer(c *gin.Context) {
	customer, ok := s.loadCustomer(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, customer.toModel())
}

func (s *Server) createCustomer(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var req CustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Customer name is required", "errors": bindingErrors(err)})
		return
	}

	customer := &customerRecord{
		TenantID: sessionData.TenantID,
		UserID:   sessionData.UserID,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
		TaxPIN:   req.TaxPIN,
		Company:  req.Company,
	}
	if err := s.db.Create(customer).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to create customer")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create customer"})
		return
	}

	c.JSON(http.StatusCreated, customer.toModel())
}

func (s *Server) updateCustomer(c *gin.Context) {
	customer, ok := s.loadCustomer(c)
	if !ok {
		return
	}

	var req CustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid customer", "errors": bindingErrors(err)})
		return
	}

	customer.Name = req.Name
	customer.Email = req.Email
	customer.Phone = req.Phone
	customer.Address = req.Address
	customer.TaxPIN = req.TaxPIN
	customer.Company = req.Company

	if err := s.db.Save(customer).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to update customer")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update customer"})
		return
	}

	c.JSON(http.StatusOK, customer.toModel())
}

func (s *Server) deleteCustomer(c *gin.Context) {
	customer, ok := s.loadCustomer(c)
	if !ok {
		return
	}

	var invoices int64
	if err := s.db.Model(&invoiceRecord{}).Where("customer_id = ?", customer.ID).Count(&invoices).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to count invoices")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if invoices > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Customer has invoices and cannot be deleted"})
		return
	}

	if err := s.db.Delete(customer).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to delete customer")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete customer"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Customer deleted successfully"})
}

// loadCustomer finds the customer in the session's tenant, writing a 404 if
// there is none
func (s *Server) loadCustomer(c *gin.Context) (*customerRecord, bool) {
	sessionData, _ := GetSessionData(c)

	id, ok := parseID(c)
	if !ok {
		return nil, false
	}

	var customer customerRecord
	if err := s.db.Where("id = ? AND tenant_id = ?", id, sessionData.TenantID).First(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
			return nil, false
		}
		s.logger.Error().Err(err).Msg("Failed to load customer")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return nil, false
	}
	return &customer, true
}
