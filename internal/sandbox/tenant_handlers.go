package sandbox

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreateTenantRequest represents a create-organization request
type CreateTenantRequest struct {
	Name   string `json:"name" binding:"required,max=200"`
	Domain string `json:"domain" binding:"omitempty,fqdn"`
}

func (s *Server) createTenant(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var req CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields", "errors": bindingErrors(err)})
		return
	}

	var tenant *tenantRecord
	var exists bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&tenantRecord{}).Where("name = ?", req.Name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			exists = true
			return nil
		}

		var err error
		tenant, err = createTenantFor(tx, sessionData.UserID, req.Name, req.Domain, "basic")
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create organization")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create organization"})
		return
	}
	if exists {
		c.JSON(http.StatusConflict, gin.H{"error": "Organization name already exists"})
		return
	}

	s.logger.Info().
		Int64("user_id", sessionData.UserID).
		Int64("tenant_id", tenant.ID).
		Str("slug", tenant.Slug).
		Msg("Organization created")

	c.JSON(http.StatusCreated, tenant.toModel())
}

// AddMember makes userID a member of tenantID. The HTTP contract has no
// invitation flow, so tests and seed data use this directly.
func (s *Server) AddMember(userID, tenantID int64, role string) error {
	return s.db.Create(&membershipRecord{UserID: userID, TenantID: tenantID, Role: role}).Error
}

// RemoveMember revokes userID's membership of tenantID
func (s *Server) RemoveMember(userID, tenantID int64) error {
	return s.db.Where("user_id = ? AND tenant_id = ?", userID, tenantID).Delete(&membershipRecord{}).Error
}
