package sandbox

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/invoicely-dev/invoicely/internal/models"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Username       string `json:"username" binding:"required,min=3,max=100"`
	Email          string `json:"email" binding:"required,email"`
	Name           string `json:"name" binding:"required,max=200"`
	Password       string `json:"password" binding:"required,min=6"`
	Phone          string `json:"phone" binding:"omitempty,max=15"`
	CompanyName    string `json:"company_name" binding:"omitempty,max=200"`
	CompanyAddress string `json:"company_address" binding:"omitempty,max=500"`
}

// UpdateProfileRequest is a partial profile update
type UpdateProfileRequest struct {
	Name           *string `json:"name" binding:"omitempty,min=1,max=200"`
	Phone          *string `json:"phone" binding:"omitempty,max=15"`
	CompanyName    *string `json:"company_name" binding:"omitempty,max=200"`
	CompanyAddress *string `json:"company_address" binding:"omitempty,max=500"`
	CompanyLogo    *string `json:"company_logo" binding:"omitempty,max=200"`
}

func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password required"})
		return
	}

	var user userRecord
	if err := s.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := verifyPassword(req.Password, user.PasswordHash); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Account is deactivated"})
		return
	}

	// Sign straight into the user's first organization, if any
	tenant, err := s.firstTenant(user.ID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load organizations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	var tenantID int64
	if tenant != nil {
		tenantID = tenant.ID
	}

	token, err := s.tokens.Generate(user.ID, tenantID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	s.logger.Info().Int64("user_id", user.ID).Int64("tenant_id", tenantID).Msg("User logged in")

	resp := models.AuthResponse{
		AccessToken: token,
		User:        user.toModel(),
		Message:     "Login successful",
	}
	if tenant != nil {
		resp.Tenant = tenant.toModel()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields", "errors": bindingErrors(err)})
		return
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	user := &userRecord{
		Username:       req.Username,
		Email:          req.Email,
		Name:           req.Name,
		PasswordHash:   passwordHash,
		Phone:          req.Phone,
		CompanyName:    req.CompanyName,
		CompanyAddress: req.CompanyAddress,
		IsActive:       true,
	}

	var tenant *tenantRecord
	var conflict string
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&userRecord{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			conflict = "Email already exists"
			return nil
		}
		if err := tx.Model(&userRecord{}).Where("username = ?", req.Username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			conflict = "Username already exists"
			return nil
		}

		if err := tx.Create(user).Error; err != nil {
			return err
		}

		if req.CompanyName != "" {
			tenant, err = createTenantFor(tx, user.ID, req.CompanyName, "", "free")
			return err
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}
	if conflict != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": conflict})
		return
	}

	var tenantID int64
	if tenant != nil {
		tenantID = tenant.ID
	}

	token, err := s.tokens.Generate(user.ID, tenantID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	s.logger.Info().Int64("user_id", user.ID).Int64("tenant_id", tenantID).Msg("User registered")

	resp := models.AuthResponse{
		AccessToken: token,
		User:        user.toModel(),
		Message:     "Registration successful",
	}
	if tenant != nil {
		resp.Tenant = tenant.toModel()
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) getProfile(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var user userRecord
	if err := s.db.First(&user, sessionData.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	profile := models.Profile{User: user.toModel()}
	if sessionData.TenantID != 0 {
		tenant, err := s.memberTenant(sessionData.UserID, sessionData.TenantID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error().Err(err).Msg("Failed to load organization")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if tenant != nil {
			profile.Tenant = tenant.toModel()
		}
	}

	c.JSON(http.StatusOK, profile)
}

func (s *Server) updateProfile(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid profile", "errors": bindingErrors(err)})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.CompanyName != nil {
		updates["company_name"] = *req.CompanyName
	}
	if req.CompanyAddress != nil {
		updates["company_address"] = *req.CompanyAddress
	}
	if req.CompanyLogo != nil {
		updates["company_logo"] = *req.CompanyLogo
	}

	var user userRecord
	if err := s.db.First(&user, sessionData.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if len(updates) > 0 {
		if err := s.db.Model(&user).Updates(updates).Error; err != nil {
			s.logger.Error().Err(err).Msg("Failed to update profile")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
			return
		}
	}

	c.JSON(http.StatusOK, user.toModel())
}

func (s *Server) listTenants(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var tenants []tenantRecord
	if err := s.db.
		Joins("JOIN memberships ON memberships.tenant_id = tenants.id").
		Where("memberships.user_id = ?", sessionData.UserID).
		Order("memberships.created_at, tenants.id").
		Find(&tenants).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to list organizations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	result := make([]*models.Tenant, 0, len(tenants))
	for i := range tenants {
		result = append(result, tenants[i].toModel())
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) selectTenant(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	tenantID, ok := parseID(c)
	if !ok {
		return
	}

	var tenant tenantRecord
	if err := s.db.First(&tenant, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Organization not found"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to load organization")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if _, err := s.memberTenant(sessionData.UserID, tenantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusForbidden, gin.H{"error": "You are not a member of this organization"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to check membership")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if !tenant.IsActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "Organization is inactive"})
		return
	}

	token, err := s.tokens.Generate(sessionData.UserID, tenant.ID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	s.logger.Info().Int64("user_id", sessionData.UserID).Int64("tenant_id", tenant.ID).Msg("Organization selected")

	c.JSON(http.StatusOK, models.TenantSelection{
		AccessToken: token,
		Tenant:      tenant.toModel(),
	})
}

// firstTenant returns the user's earliest active organization, or nil
func (s *Server) firstTenant(userID int64) (*tenantRecord, error) {
	var tenants []tenantRecord
	if err := s.db.
		Joins("JOIN memberships ON memberships.tenant_id = tenants.id").
		Where("memberships.user_id = ? AND tenants.is_active = ?", userID, true).
		Order("memberships.created_at, tenants.id").
		Limit(1).
		Find(&tenants).Error; err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, nil
	}
	return &tenants[0], nil
}

// memberTenant returns the tenant if userID is a member of it
func (s *Server) memberTenant(userID, tenantID int64) (*tenantRecord, error) {
	var tenant tenantRecord
	err := s.db.
		Joins("JOIN memberships ON memberships.tenant_id = tenants.id").
		Where("memberships.user_id = ? AND tenants.id = ?", userID, tenantID).
		First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// createTenantFor creates an organization with a unique slug and makes
// userID its admin
func createTenantFor(tx *gorm.DB, userID int64, name, domain, plan string) (*tenantRecord, error) {
	base := slugify(name)
	slug := base
	for counter := 1; ; counter++ {
		var count int64
		if err := tx.Model(&tenantRecord{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			break
		}
		slug = fmt.Sprintf("%s-%d", base, counter)
	}

	tenant := &tenantRecord{
		Name:               name,
		Slug:               slug,
		Domain:             domain,
		Plan:               plan,
		SubscriptionStatus: "active",
		IsActive:           true,
		MaxUsers:           5,
		MaxInvoices:        100,
	}
	if err := tx.Create(tenant).Error; err != nil {
		return nil, err
	}

	if err := tx.Create(&membershipRecord{UserID: userID, TenantID: tenant.ID, Role: "admin"}).Error; err != nil {
		return nil, err
	}
	return tenant, nil
}

func slugify(name string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = "org"
	}
	return slug
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return id, true
}
