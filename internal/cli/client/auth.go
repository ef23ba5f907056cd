package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/invoicely-dev/invoicely/internal/models"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// RegisterRequest represents the registration request body. When CompanyName is
// set the API may create an organization for the new user.
type RegisterRequest struct {
	Username       string `json:"username" validate:"required,min=3,max=100"`
	Email          string `json:"email" validate:"required,email"`
	Name           string `json:"name" validate:"required,max=200"`
	Password       string `json:"password" validate:"required,min=6"`
	Phone          string `json:"phone,omitempty" validate:"omitempty,max=15"`
	CompanyName    string `json:"company_name,omitempty" validate:"omitempty,max=200"`
	CompanyAddress string `json:"company_address,omitempty" validate:"omitempty,max=500"`
}

// UpdateProfileRequest is a partial profile update; nil fields are left unchanged
type UpdateProfileRequest struct {
	Name           *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Phone          *string `json:"phone,omitempty" validate:"omitempty,max=15"`
	CompanyName    *string `json:"company_name,omitempty" validate:"omitempty,max=200"`
	CompanyAddress *string `json:"company_address,omitempty" validate:"omitempty,max=500"`
	CompanyLogo    *string `json:"company_logo,omitempty" validate:"omitempty,max=200"`
}

// CreateTenantRequest represents the create-organization request body
type CreateTenantRequest struct {
	Name   string `json:"name" validate:"required,max=200"`
	Domain string `json:"domain,omitempty" validate:"omitempty,fqdn"`
}

// Login authenticates the user and returns a credential
func (c *Client) Login(ctx context.Context, req LoginRequest) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/auth/login", body: req, public: true}, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" || resp.User == nil {
		return nil, fmt.Errorf("login response is missing token or user: %w", ErrServer)
	}
	return &resp, nil
}

// Register creates an account and returns a credential
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/auth/register", body: req, public: true}, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" || resp.User == nil {
		return nil, fmt.Errorf("register response is missing token or user: %w", ErrServer)
	}
	return &resp, nil
}

// GetProfile returns the current user and, if one is selected, the current tenant
func (c *Client) GetProfile(ctx context.Context) (*models.Profile, error) {
	var profile models.Profile
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/profile"}, &profile); err != nil {
		return nil, err
	}
	if profile.User == nil {
		return nil, fmt.Errorf("profile response is missing user: %w", ErrServer)
	}
	return &profile, nil
}

// UpdateProfile applies a partial update to the current user
func (c *Client) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, request{method: http.MethodPut, path: "/auth/profile", body: req}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SelectTenant exchanges the current credential for one scoped to tenantID
func (c *Client) SelectTenant(ctx context.Context, tenantID int64) (*models.TenantSelection, error) {
	var resp models.TenantSelection
	path := fmt.Sprintf("/auth/select-tenant/%d", tenantID)
	if err := c.do(ctx, request{method: http.MethodPost, path: path}, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" || resp.Tenant == nil {
		return nil, fmt.Errorf("select-tenant response is missing token or tenant: %w", ErrServer)
	}
	return &resp, nil
}

// ListTenants returns the organizations the current user belongs to, in server order
func (c *Client) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/tenants"}, &tenants); err != nil {
		return nil, err
	}
	return tenants, nil
}

// CreateTenant creates an organization with the current user as its admin
func (c *Client) CreateTenant(ctx context.Context, req CreateTenantRequest) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := c.do(ctx, request{method: http.MethodPost, path: "/tenants", body: req}, &tenant); err != nil {
		return nil, err
	}
	return &tenant, nil
}
