package sandbox

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicely-dev/invoicely/internal/cli/auth"
	"github.com/invoicely-dev/invoicely/internal/cli/client"
	"github.com/invoicely-dev/invoicely/internal/models"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testSandbox struct {
	*Server
	URL   string
	clock *testClock
}

func newTestSandbox(t *testing.T) *testSandbox {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	srv, err := New(Config{JWTSecret: "test-secret", Now: clock.Now}, zerolog.Nop())
	require.NoError(t, err)

	httpServer := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		httpServer.Close()
		_ = srv.Close()
	})

	return &testSandbox{Server: srv, URL: httpServer.URL + "/api", clock: clock}
}

// newClient returns an API client with its own empty credential store
func (sb *testSandbox) newClient() (*client.Client, *auth.MemoryStore) {
	store := auth.NewMemoryStore("")
	return client.New(sb.URL, store), store
}

// signUp registers a user and stores the credential
func (sb *testSandbox) signUp(t *testing.T, username, company string) (*client.Client, *auth.MemoryStore, *models.AuthResponse) {
	t.Helper()

	c, store := sb.newClient()
	resp, err := c.Register(context.Background(), client.RegisterRequest{
		Username:    username,
		Email:       username + "@example.com",
		Name:        username,
		Password:    "secret1",
		CompanyName: company,
	})
	require.NoError(t, err)
	require.NoError(t, store.Set(resp.AccessToken))
	return c, store, resp
}

func TestRegister(t *testing.T) {
	sb := newTestSandbox(t)

	_, _, resp := sb.signUp(t, "alice", "")
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Nil(t, resp.Tenant)

	_, _, resp = sb.signUp(t, "bob", "Bob's Bakery & Co")
	require.NotNil(t, resp.Tenant)
	assert.Equal(t, "bob-s-bakery-co", resp.Tenant.Slug)
	assert.Equal(t, "free", resp.Tenant.Plan)
	assert.True(t, resp.Tenant.IsActive)
}

func TestRegister_Duplicate(t *testing.T) {
	sb := newTestSandbox(t)
	sb.signUp(t, "alice", "")

	c, _ := sb.newClient()
	_, err := c.Register(context.Background(), client.RegisterRequest{
		Username: "alice2", Email: "alice@example.com", Name: "Alice", Password: "secret1",
	})
	require.ErrorIs(t, err, client.ErrValidation)

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Email already exists", apiErr.Message)
}

func TestLogin(t *testing.T) {
	sb := newTestSandbox(t)
	sb.signUp(t, "alice", "Acme")

	c, _ := sb.newClient()
	resp, err := c.Login(context.Background(), client.LoginRequest{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NotNil(t, resp.Tenant)
	assert.Equal(t, "Acme", resp.Tenant.Name)

	_, err = c.Login(context.Background(), client.LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	require.ErrorIs(t, err, client.ErrInvalidCredentials)

	_, err = c.Login(context.Background(), client.LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	require.ErrorIs(t, err, client.ErrInvalidCredentials)
}

func TestProfile(t *testing.T) {
	sb := newTestSandbox(t)
	c, _, resp := sb.signUp(t, "alice", "Acme")

	profile, err := c.GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, profile.User.ID)
	require.NotNil(t, profile.Tenant)
	assert.Equal(t, resp.Tenant.ID, profile.Tenant.ID)

	name := "Alice Liddell"
	user, err := c.UpdateProfile(context.Background(), client.UpdateProfileRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, user.Name)
	assert.Equal(t, "alice", user.Username)
}

func TestSelectTenant(t *testing.T) {
	sb := newTestSandbox(t)
	c, store, resp := sb.signUp(t, "alice", "Acme")
	_, _, other := sb.signUp(t, "bob", "Globex")

	second, err := c.CreateTenant(context.Background(), client.CreateTenantRequest{Name: "Initech"})
	require.NoError(t, err)
	assert.Equal(t, "initech", second.Slug)
	assert.Equal(t, "basic", second.Plan)

	tenants, err := c.ListTenants(context.Background())
	require.NoError(t, err)
	require.Len(t, tenants, 2)
	assert.Equal(t, resp.Tenant.ID, tenants[0].ID)
	assert.Equal(t, second.ID, tenants[1].ID)

	selection, err := c.SelectTenant(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, selection.Tenant.ID)
	require.NoError(t, store.Set(selection.AccessToken))

	profile, err := c.GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second.ID, profile.Tenant.ID)

	_, err = c.SelectTenant(context.Background(), other.Tenant.ID)
	require.ErrorIs(t, err, client.ErrForbidden)

	_, err = c.SelectTenant(context.Background(), 9999)
	require.ErrorIs(t, err, client.ErrNotFound)
}

func TestCreateTenant_DuplicateName(t *testing.T) {
	sb := newTestSandbox(t)
	c, _, _ := sb.signUp(t, "alice", "Acme")

	_, err := c.CreateTenant(context.Background(), client.CreateTenantRequest{Name: "Acme"})
	require.ErrorIs(t, err, client.ErrConflict)
}

func TestRevokedMembership(t *testing.T) {
	sb := newTestSandbox(t)
	c, _, resp := sb.signUp(t, "alice", "Acme")

	require.NoError(t, sb.RemoveMember(resp.User.ID, resp.Tenant.ID))

	_, err := c.ListCustomers(context.Background(), client.ListParams{})
	require.ErrorIs(t, err, client.ErrForbidden)

	profile, err := c.GetProfile(context.Background())
	require.NoError(t, err)
	assert.Nil(t, profile.Tenant)
}

func TestAuthentication(t *testing.T) {
	sb := newTestSandbox(t)
	_, store, _ := sb.signUp(t, "alice", "Acme")

	// Tokens signed with another secret are rejected
	forged, err := newTokenIssuer("other-secret", time.Hour, time.Now)
	require.NoError(t, err)
	token, err := forged.Generate(1, 1)
	require.NoError(t, err)

	c := client.New(sb.URL, auth.NewMemoryStore(token))
	_, err = c.GetProfile(context.Background())
	require.ErrorIs(t, err, client.ErrUnauthenticated)

	// Expired tokens are rejected and cleared by the client
	sb.clock.Advance(25 * time.Hour)
	c = client.New(sb.URL, store)
	_, err = c.GetProfile(context.Background())
	require.ErrorIs(t, err, client.ErrUnauthenticated)

	_, err = store.Get()
	assert.ErrorIs(t, err, auth.ErrNoCredential)
}

func TestMissingBearer(t *testing.T) {
	sb := newTestSandbox(t)

	resp, err := http.Get(sb.URL + "/auth/profile")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCustomersRequireTenant(t *testing.T) {
	sb := newTestSandbox(t)
	c, _, _ := sb.signUp(t, "alice", "")

	_, err := c.ListCustomers(context.Background(), client.ListParams{})
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "User not associated with any organization", apiErr.Message)
}

func TestCustomers(t *testing.T) {
	sb := newTestSandbox(t)
	c, _, _ := sb.signUp(t, "alice", "Acme")
	ctx := context.Background()

	names := []string{"Wayne Enterprises", "Stark Industries", "Wonka Factory"}
	var created []*models.Customer
	for _, name := range names {
		customer, err := c.CreateCustomer(ctx, client.CustomerRequest{Name: name, Email: "billing@example.com"})
		require.NoError(t, err)
		created = append(created, customer)
	}

	page, err := c.ListCustomers(ctx, client.ListParams{Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Len(t, page.Customers, 2)

	page, err = c.ListCustomers(ctx, client.ListParams{Search: "WONKA"})
	require.NoError(t, err)
	require.Len(t, page.Customers, 1)
	assert.Equal(t, created[2].ID, page.Customers[0].ID)

	updated, err := c.UpdateCustomer(ctx, created[0].ID, client.CustomerRequest{Name: "Wayne Corp", Company: "Wayne"})
	require.NoError(t, err)
	assert.Equal(t, "Wayne Corp", updated.Name)
	assert.Empty(t, updated.Email)

	require.NoError(t, c.DeleteCustomer(ctx, created[1].ID))
	_, err = c.GetCustomer(ctx, created[1].ID)
	require.ErrorIs(t, err, client.ErrNotFound)
}

func TestCustomersAreTenantScoped(t *testing.T) {
	sb := newTestSandbox(t)
	alice, _, _ := sb.signUp(t, "alice", "Acme")
	bob, _, _ := sb.signUp(t, "bob", "Globex")
	ctx := context.Background()

	customer, err := alice.CreateCustomer(ctx, client.CustomerRequest{Name: "Wayne Enterprises"})
	require.NoError(t, err)

	_, err = bob.GetCustomer(ctx, customer.ID)
	require.ErrorIs(t, err, client.ErrNotFound)

	page, err := bob.ListCustomers(ctx, client.ListParams{})
	require.NoError(t, err)
	assert.Empty(t, page.Customers)
}

func TestInvoices(t *testing.T) {
	sb := newTestSandbox(t)
	c, _, _ := sb.signUp(t, "alice", "Acme")
	ctx := context.Background()

	customer, err := c.CreateCustomer(ctx, client.CustomerRequest{Name: "Wayne Enterprises", Email: "ap@wayne.example"})
	require.NoError(t, err)

	invoice, err := c.CreateInvoice(ctx, client.InvoiceRequest{
		CustomerID:   customer.ID,
		Title:        "March retainer",
		DueDate:      "2026-03-20",
		TaxRate:      16,
		DiscountRate: 10,
		Items: []client.InvoiceItemRequest{
			{Description: "Consulting", Quantity: 2, Rate: 100},
			{Description: "Support", Quantity: 1, Rate: 50},
		},
	})
	require.NoError(t, err)
	assert.Regexp(t, `^INV-2026-[0-9A-Z]{8}$`, invoice.InvoiceNumber)
	assert.Equal(t, "2026-03-10", invoice.IssueDate)
	assert.Equal(t, models.InvoiceStatusDraft, invoice.Status)
	assert.InDelta(t, 250.0, invoice.Subtotal, 0.001)
	assert.InDelta(t, 25.0, invoice.DiscountAmount, 0.001)
	assert.InDelta(t, 36.0, invoice.TaxAmount, 0.001)
	assert.InDelta(t, 261.0, invoice.TotalAmount, 0.001)
	require.Len(t, invoice.Items, 2)
	assert.InDelta(t, 200.0, invoice.Items[0].Total, 0.001)

	fetched, err := c.GetInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.Customer)
	assert.Equal(t, "Wayne Enterprises", fetched.Customer.Name)

	updated, err := c.UpdateInvoice(ctx, invoice.ID, client.InvoiceRequest{
		CustomerID: customer.ID,
		DueDate:    "2026-03-20",
		Items:      []client.InvoiceItemRequest{{Description: "Consulting", Quantity: 3, Rate: 100}},
	})
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	assert.InDelta(t, 300.0, updated.TotalAmount, 0.001)

	msg, err := c.SendInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Invoice sent successfully", msg.Message)

	pdf, err := c.DownloadInvoicePDF(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Contains(t, string(pdf), "%PDF-1.4")

	page, err := c.ListInvoices(ctx, client.ListParams{Status: string(models.InvoiceStatusSent)})
	require.NoError(t, err)
	require.Len(t, page.Invoices, 1)

	// Customers with invoices cannot be deleted
	err = c.DeleteCustomer(ctx, customer.ID)
	require.ErrorIs(t, err, client.ErrConflict)

	require.NoError(t, c.DeleteInvoice(ctx, invoice.ID))
	_, err = c.GetInvoice(ctx, invoice.ID)
	require.ErrorIs(t, err, client.ErrNotFound)
	require.NoError(t, c.DeleteCustomer(ctx, customer.ID))
}

func TestInvoices_Rejections(t *testing.T) {
	sb := newTestSandbox(t)
	c, _, _ := sb.signUp(t, "alice", "Acme")
	bob, _, _ := sb.signUp(t, "bob", "Globex")
	ctx := context.Background()

	foreign, err := bob.CreateCustomer(ctx, client.CustomerRequest{Name: "Globex Customer"})
	require.NoError(t, err)

	noEmail, err := c.CreateCustomer(ctx, client.CustomerRequest{Name: "Cash Customer"})
	require.NoError(t, err)

	invoice, err := c.CreateInvoice(ctx, client.InvoiceRequest{
		CustomerID: noEmail.ID,
		Items:      []client.InvoiceItemRequest{{Description: "Widget", Quantity: 1, Rate: 10}},
	})
	require.NoError(t, err)

	_, err = c.SendInvoice(ctx, invoice.ID)
	require.ErrorIs(t, err, client.ErrValidation)

	// A customer from another organization is not usable
	_, err = c.CreateInvoice(ctx, client.InvoiceRequest{
		CustomerID: foreign.ID,
		Items:      []client.InvoiceItemRequest{{Description: "Widget", Quantity: 1, Rate: 10}},
	})
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "customer not found", apiErr.Fields["customer_id"])
}

func TestMarkOverdue(t *testing.T) {
	sb := newTestSandbox(t)
	c, _, _ := sb.signUp(t, "alice", "Acme")
	ctx := context.Background()

	customer, err := c.CreateCustomer(ctx, client.CustomerRequest{Name: "Wayne Enterprises", Email: "ap@wayne.example"})
	require.NoError(t, err)

	create := func(due string) *models.Invoice {
		invoice, err := c.CreateInvoice(ctx, client.InvoiceRequest{
			CustomerID: customer.ID,
			DueDate:    due,
			Items:      []client.InvoiceItemRequest{{Description: "Consulting", Quantity: 1, Rate: 100}},
		})
		require.NoError(t, err)
		return invoice
	}

	sentDue := create("2026-03-12")
	_, err = c.SendInvoice(ctx, sentDue.ID)
	require.NoError(t, err)
	sentLater := create("2026-04-30")
	_, err = c.SendInvoice(ctx, sentLater.ID)
	require.NoError(t, err)
	draftDue := create("2026-03-12")

	changed, err := sb.MarkOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), changed)

	sb.clock.Advance(3 * 24 * time.Hour)

	changed, err = sb.MarkOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	got, err := c.GetInvoice(ctx, sentDue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusOverdue, got.Status)

	got, err = c.GetInvoice(ctx, draftDue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusDraft, got.Status)

	got, err = c.GetInvoice(ctx, sentLater.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusSent, got.Status)
}

func TestStartScheduler(t *testing.T) {
	srv, err := New(Config{OverdueSchedule: "not a schedule"}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	require.Error(t, srv.StartScheduler())
}

func TestCORSPreflight(t *testing.T) {
	sb := newTestSandbox(t)

	req, err := http.NewRequest(http.MethodOptions, sb.URL+"/customers", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "acme-corp", slugify("  Acme Corp  "))
	assert.Equal(t, "a-b", slugify("a__b"))
	assert.Equal(t, "org", slugify("!!!"))
}
