package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
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

// fakeAPI emulates the API contract on top of the shared token store, the way
// the real client reads the credential for every authenticated call
type fakeAPI struct {
	mu sync.Mutex

	store       auth.TokenStore
	email       string
	password    string
	user        models.User
	memberships map[int64]models.Tenant
	// tenant returned by login, nil for none
	loginTenant *models.Tenant

	tokens  map[string]int64 // valid credential -> tenant ID (0 = none)
	issued  int
	profErr error

	// block SelectTenant, Login and GetProfile until released, when non-nil
	selectGate  chan struct{}
	loginGate   chan struct{}
	profileGate chan struct{}
	// receives once for every call that is held at a gate
	gated chan struct{}

	listeners []func(client.UnauthorizedEvent)
}

func newFakeAPI(store auth.TokenStore) *fakeAPI {
	return &fakeAPI{
		store:    store,
		email:    "a@b.com",
		password: "secret1",
		user:     models.User{ID: 1, Username: "alice", Email: "a@b.com", Name: "Alice"},
		memberships: map[int64]models.Tenant{
			7: {ID: 7, Name: "Acme", Slug: "acme", Plan: "basic", IsActive: true},
			9: {ID: 9, Name: "Globex", Slug: "globex", Plan: "free", IsActive: true},
		},
		tokens: make(map[string]int64),
		gated:  make(chan struct{}, 4),
	}
}

// wait holds the caller at gate until it is closed
func (f *fakeAPI) wait(gate *chan struct{}) {
	f.mu.Lock()
	g := *gate
	f.mu.Unlock()
	if g != nil {
		f.gated <- struct{}{}
		<-g
	}
}

func (f *fakeAPI) issue(tenantID int64) string {
	f.issued++
	token := fmt.Sprintf("token-%d", f.issued)
	f.tokens[token] = tenantID
	return token
}

// authorize mimics the client's global 401 policy
func (f *fakeAPI) authorize(path string) (int64, error) {
	token, err := f.store.Get()
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w", path, client.ErrUnauthenticated)
	}

	f.mu.Lock()
	tenantID, ok := f.tokens[token]
	listeners := append([]func(client.UnauthorizedEvent){}, f.listeners...)
	f.mu.Unlock()

	if !ok {
		_ = f.store.Clear()
		for _, fn := range listeners {
			fn(client.UnauthorizedEvent{Method: "GET", Path: path})
		}
		return 0, fmt.Errorf("request failed (status 401): %w", client.ErrUnauthenticated)
	}
	return tenantID, nil
}

// expire invalidates every credential issued so far
func (f *fakeAPI) expire() {
	f.mu.Lock()
	f.tokens = make(map[string]int64)
	f.mu.Unlock()
}

func (f *fakeAPI) Login(ctx context.Context, req client.LoginRequest) (*models.AuthResponse, error) {
	f.wait(&f.loginGate)

	f.mu.Lock()
	defer f.mu.Unlock()

	if req.Email != f.email || req.Password != f.password {
		return nil, fmt.Errorf("request failed (status 401): %w", client.ErrInvalidCredentials)
	}

	var tenantID int64
	if f.loginTenant != nil {
		tenantID = f.loginTenant.ID
	}
	user := f.user
	return &models.AuthResponse{AccessToken: f.issue(tenantID), User: &user, Tenant: f.loginTenant}, nil
}

func (f *fakeAPI) Register(ctx context.Context, req client.RegisterRequest) (*models.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if req.Email == f.email {
		return nil, fmt.Errorf("request failed (status 400): %w", client.ErrValidation)
	}

	f.email, f.password = req.Email, req.Password
	f.user = models.User{ID: 2, Username: req.Username, Email: req.Email, Name: req.Name}

	var tenant *models.Tenant
	var tenantID int64
	if req.CompanyName != "" {
		t := models.Tenant{ID: 11, Name: req.CompanyName, Slug: "new-co", Plan: "free", IsActive: true}
		f.memberships[t.ID] = t
		tenant, tenantID = &t, t.ID
	}
	user := f.user
	return &models.AuthResponse{AccessToken: f.issue(tenantID), User: &user, Tenant: tenant}, nil
}

func (f *fakeAPI) GetProfile(ctx context.Context) (*models.Profile, error) {
	tenantID, err := f.authorize("/auth/profile")
	if err != nil {
		return nil, err
	}
	f.wait(&f.profileGate)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profErr != nil {
		return nil, f.profErr
	}

	user := f.user
	profile := &models.Profile{User: &user}
	if t, ok := f.memberships[tenantID]; ok {
		profile.Tenant = &t
	}
	return profile, nil
}

func (f *fakeAPI) UpdateProfile(ctx context.Context, req client.UpdateProfileRequest) (*models.User, error) {
	if _, err := f.authorize("/auth/profile"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if req.Name != nil {
		f.user.Name = *req.Name
	}
	user := f.user
	return &user, nil
}

func (f *fakeAPI) SelectTenant(ctx context.Context, tenantID int64) (*models.TenantSelection, error) {
	if _, err := f.authorize("/auth/select-tenant"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	gate := f.selectGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.memberships[tenantID]
	if !ok {
		return nil, fmt.Errorf("request failed (status 403): %w", client.ErrForbidden)
	}
	return &models.TenantSelection{AccessToken: f.issue(tenantID), Tenant: &t}, nil
}

func (f *fakeAPI) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	if _, err := f.authorize("/auth/tenants"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return []models.Tenant{f.memberships[7], f.memberships[9]}, nil
}

func (f *fakeAPI) CreateTenant(ctx context.Context, req client.CreateTenantRequest) (*models.Tenant, error) {
	if _, err := f.authorize("/tenants"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	t := models.Tenant{ID: 21, Name: req.Name, Slug: "created", Plan: "basic", IsActive: true}
	f.memberships[t.ID] = t
	return &t, nil
}

func (f *fakeAPI) OnUnauthorized(fn func(client.UnauthorizedEvent)) func() {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
	return func() {}
}

func newTestSession(t *testing.T, token string) (*Session, *fakeAPI, *auth.MemoryStore) {
	t.Helper()

	store := auth.NewMemoryStore(token)
	api := newFakeAPI(store)
	s := New(api, store, zerolog.Nop())
	t.Cleanup(s.Close)
	return s, api, store
}

func storedToken(t *testing.T, store auth.TokenStore) string {
	t.Helper()
	token, err := store.Get()
	if errors.Is(err, auth.ErrNoCredential) {
		return ""
	}
	require.NoError(t, err)
	return token
}

func TestSession_StartsHydrating(t *testing.T) {
	s, _, _ := newTestSession(t, "")

	snap := s.Snapshot()
	assert.Equal(t, Hydrating, snap.State())
	assert.True(t, snap.Loading)
}

func TestSession_HydrateWithoutCredential(t *testing.T) {
	s, _, _ := newTestSession(t, "")

	require.NoError(t, s.Hydrate(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, Anonymous, snap.State())
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Tenant)
}

func TestSession_HydrateWithoutTenant(t *testing.T) {
	s, api, store := newTestSession(t, "")
	api.mu.Lock()
	require.NoError(t, store.Set(api.issue(0)))
	api.mu.Unlock()

	require.NoError(t, s.Hydrate(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, AuthenticatedNoTenant, snap.State())
	assert.Equal(t, int64(1), snap.User.ID)
	assert.Nil(t, snap.Tenant)
}

func TestSession_HydrateWithTenant(t *testing.T) {
	s, api, store := newTestSession(t, "")
	api.mu.Lock()
	require.NoError(t, store.Set(api.issue(7)))
	api.mu.Unlock()

	require.NoError(t, s.Hydrate(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, AuthenticatedWithTenant, snap.State())
	assert.Equal(t, int64(7), snap.TenantID())
}

func TestSession_HydrateWithRejectedCredential(t *testing.T) {
	s, _, store := newTestSession(t, "revoked-token")

	err := s.Hydrate(context.Background())
	require.ErrorIs(t, err, client.ErrUnauthenticated)

	assert.Equal(t, Anonymous, s.State())
	assert.Empty(t, storedToken(t, store))
}

func TestSession_HydrateProfileFailureClearsCredential(t *testing.T) {
	s, api, store := newTestSession(t, "")
	api.mu.Lock()
	require.NoError(t, store.Set(api.issue(7)))
	api.profErr = fmt.Errorf("request failed (status 500): %w", client.ErrServer)
	api.mu.Unlock()

	require.Error(t, s.Hydrate(context.Background()))
	assert.Equal(t, Anonymous, s.State())
	assert.Empty(t, storedToken(t, store))
}

func TestSession_LoginWithTenant(t *testing.T) {
	s, api, store := newTestSession(t, "")
	api.loginTenant = &models.Tenant{ID: 7, Name: "Acme"}
	require.NoError(t, s.Hydrate(context.Background()))

	err := s.Login(context.Background(), client.LoginRequest{Email: "a@b.com", Password: "secret1"})
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, AuthenticatedWithTenant, snap.State())
	assert.Equal(t, int64(7), snap.Tenant.ID)
	assert.NotEmpty(t, storedToken(t, store))
}

func TestSession_LoginWithoutTenant(t *testing.T) {
	s, _, store := newTestSession(t, "")
	require.NoError(t, s.Hydrate(context.Background()))

	require.NoError(t, s.Login(context.Background(), client.LoginRequest{Email: "a@b.com", Password: "secret1"}))

	assert.Equal(t, AuthenticatedNoTenant, s.State())
	assert.NotEmpty(t, storedToken(t, store))
}

func TestSession_LoginFailureLeavesStateAndCredential(t *testing.T) {
	s, _, store := newTestSession(t, "")
	require.NoError(t, s.Hydrate(context.Background()))
	require.NoError(t, store.Set("prior-token"))

	err := s.Login(context.Background(), client.LoginRequest{Email: "a@b.com", Password: "wrong-password"})
	require.ErrorIs(t, err, client.ErrInvalidCredentials)

	assert.Equal(t, Anonymous, s.State())
	assert.Equal(t, "prior-token", storedToken(t, store))
}

func TestSession_RegisterCreatesTenant(t *testing.T) {
	s, _, store := newTestSession(t, "")
	require.NoError(t, s.Hydrate(context.Background()))

	err := s.Register(context.Background(), client.RegisterRequest{
		Username:    "bob",
		Email:       "bob@example.com",
		Name:        "Bob",
		Password:    "hunter22",
		CompanyName: "New Co",
	})
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, AuthenticatedWithTenant, snap.State())
	assert.Equal(t, "New Co", snap.Tenant.Name)
	assert.NotEmpty(t, storedToken(t, store))
}

func TestSession_RegisterFailure(t *testing.T) {
	s, _, store := newTestSession(t, "")
	require.NoError(t, s.Hydrate(context.Background()))

	err := s.Register(context.Background(), client.RegisterRequest{Username: "alice", Email: "a@b.com", Name: "A", Password: "secret1"})
	require.ErrorIs(t, err, client.ErrValidation)
	assert.Equal(t, Anonymous, s.State())
	assert.Empty(t, storedToken(t, store))
}

func TestSession_SelectTenant(t *testing.T) {
	s, _, store := newTestSession(t, "")
	require.NoError(t, s.Hydrate(context.Background()))
	require.NoError(t, s.Login(context.Background(), client.LoginRequest{Email: "a@b.com", Password: "secret1"}))
	before := storedToken(t, store)

	require.NoError(t, s.SelectTenant(context.Background(), 7))

	snap := s.Snapshot()
	assert.Equal(t, AuthenticatedWithTenant, snap.State())
	assert.Equal(t, int64(7), snap.TenantID())
	assert.NotEqual(t, before, storedToken(t, store))
}

func TestSession_SelectTenantNotMember(t *testing.T) {
	s, api, store := newTestSession(t, "")
	api.loginTenant = &models.Tenant{ID: 7, Name: "Acme"}
	require.NoError(t, s.Hydrate(context.Background()))
	require.NoError(t, s.Login(context.Background(), client.LoginRequest{Email: "a@b.com", Password: "secret1"}))
	before := storedToken(t, store)

	err := s.SelectTenant(context.Background(), 5)
	require.ErrorIs(t, err, ErrNotMember)
	require.ErrorIs(t, err, client.ErrForbidden)

	assert.Equal(t, before, storedToken(t, store))
	assert.Equal(t, int64(7), s.Snapshot().TenantID())
}

func TestSession_SelectTenantRequiresUser(t *testing.T) {
	s, _, _ := newTestSession(t, "")
	require.NoError(t, s.Hydrate(context.Background()))

	assert.ErrorIs(t, s.SelectTenant(context.Background(), 7), ErrNotAuthenticated)
	assert.ErrorIs(t, s.SwitchTenant(context.Background(), 7), ErrNotAuthenticated)
}

func TestSession_SwitchTenant(t *testing.T) {
	s, api, store := newTestSession(t, "")
	api.loginTenant = &models.Tenant{ID: 7, Name: "Acme"}
	require.NoError(t, s.Hydrate(context.Background()))
	require.NoError(t, s.Login(context.Background(), client.LoginRequest{Email: "a@b.com", Password: "secret1"}))
	old := storedToken(t, store)

	require.NoError(t, s.SwitchTenant(context.Background(), 9))

	assert.Equal(t, int64(9), s.Snapshot().TenantID())
	current := storedToken(t, store)
	assert.NotEqual(t, old, current)

	// The old credential is no longer the stored one
	api.mu.Lock()
	assert.Equal(t, int64(9), api.tokens[current])
	api.mu.Unlock()
}

func TestSession_SwitchTenantToCurrentIsNoop(t *testing.T) {
	s, api, store := newTestSession(t, "")
	api.loginTenant = &models.Tenant{ID: 7, Name: "Acme"}
	require.NoError(t, s.Hydrate(context.Background()))
	require.NoError(t, s.Login(context.Background(), client.LoginRequest{Email: "a@b.com", Password: "secret1"}))
	before := storedToken(t, store)

	require.NoError(t, s.SwitchTenant(context.Background(), 7))
	assert.Equal(t, before, storedToken(t, store))
}

func TestSession_SwitchTenantRequiresTenant(t *testing.T) {
	s, _, _ := newTestSession(t, "")
	require.NoError(t, s.Hydrate(context.Background()))
	require.NoError(t, s.Login(context.Background(), client.LoginRequest{Email: "a@b.com", Password: "secret1"}))

	assert.ErrorIs(t, s.SwitchTenant(context.Background(), 9), ErrNoTenant)
}

func TestSession_ConcurrentTenantChangeIsRejected(t *testing.T) {
	s, api, _ := newTestSession(t, "")
	api.loginTenant = &models.Tenant{ID: 7, Name: "Acme"}
	require.NoError(t, s.Hydrate(context.Background()))
	require.NoError(t, s.Login(context.Background(), client.LoginRequest{Email: "a@b.com", Password: "secret1"}))

	gate := make(chan struct{})
	api.mu.Lock()
	api.selectGate = gate
	api.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.SwitchTenant(context.Background(), 9)
	}()

	// Wait until the first switch holds the in-flight guard
	require.Eventually(t, s.inflight.Load, time.Second, time.Millisecond)

	err := s.SwitchTenant(context.Background(), 9)
	assert.ErrorIs(t, err, ErrOperationInProgress)

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, int64(9), s.Snapshot().TenantID())
}

func TestSession_ListUserTenants(t *testing.T) {
	s, _, _ := newTestSession(t, "")
	require.NoError(t, s.Hydrate(context.Background()))

	_, err := s.ListUserTenants(context.Background())
	require.ErrorIs(t, err, client.ErrUnauthenticated)

	require.NoError(t, s.Login(context.Background(), client.LoginRequest{Email: "a@b.com", Password: "secret1"}))
	tenants, err := s.ListUserTenants(context.Background())
	require.NoError(t, err)
	require.Len(t, tenants, 2)
	assert.Equal(t, int64(7), tenants[0].ID)
}

func TestSession_CreateTenantSelectsIt(t *testing.T) {
	s, _, _ := newTestSession(t, "")
	require.NoError(t, s.Hydrate(context.Background()))
	require.NoError(t, s.Login(context.Background(), client.LoginRequest{Email: "a@b.com", Password: "secret1"}))

	tenant, err := s.CreateTenant(context.Background(), client.CreateTenantRequest{Name: "Initech"})
	require.NoError(t, err)
	assert.Equal(t, int64(21), tenant.ID)
	assert.Equal(t, AuthenticatedWithTenant, s.State())
	assert.Equal(t, int64(21), s.Snapshot().TenantID())
}

func TestSession_Logout(t *testing.T) {
	s, api, store := newTestSession(t, "")
	api.loginTenant = &models.Tenant{ID: 7, Name: "Acme"}
	require.NoError(t, s.Hydrate(context.Background()))
	require.NoError(t, s.Login(context.Background(), client.LoginRequest{Email: "a@b.com", Password: "secret1"}))

	s.Logout()

	snap := s.Snapshot()
	assert.Equal(t, Anonymous, snap.State())
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Tenant)
	assert.Empty(t, storedToken(t, store))
}

func TestSession_UnauthorizedFromAnyCallSignsOut(t *testing.T) {
	s, api, store := newTestSession(t, "")
	api.loginTenant = &models.Tenant{ID: 7, Name: "Acme"}
	require.NoError(t, s.Hydrate(context.Background()))
	require.NoError(t, s.Login(context.Background(), client.LoginRequest{Email: "a@b.com", Password: "secret1"}))

	api.expire()

	_, err := s.ListUserTenants(context.Background())
	require.ErrorIs(t, err, client.ErrUnauthenticated)

	snap := s.Snapshot()
	assert.Equal(t, Anonymous, snap.State())
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Tenant)
	assert.Empty(t, storedToken(t, store))
}

func TestSession_RefreshUser(t *testing.T) {
	s, api, _ := newTestSession(t, "")
	require.NoError(t, s.Hydrate(context.Background()))
	require.NoError(t, s.Login(context.Background(), client.LoginRequest{Email: "a@b.com", Password: "secret1"}))

	api.mu.Lock()
	api.user.Name = "Alice Liddell"
	api.mu.Unlock()

	require.NoError(t, s.RefreshUser(context.Background()))
	snap := s.Snapshot()
	assert.Equal(t, "Alice Liddell", snap.User.Name)
	assert.False(t, snap.Loading)
}

func TestSession_RefreshUserFailureEqualsLogout(t *testing.T) {
	s, api, store := newTestSession(t, "")
	api.loginTenant = &models.Tenant{ID: 7, Name: "Acme"}
	require.NoError(t, s.Hydrate(context.Background()))
	require.NoError(t, s.Login(context.Background(), client.LoginRequest{Email: "a@b.com", Password: "secret1"}))

	api.mu.Lock()
	api.profErr = fmt.Errorf("request failed (status 500): %w", client.ErrServer)
	api.mu.Unlock()

	require.Error(t, s.RefreshUser(context.Background()))

	// Compare against an explicit logout on a fresh session
	other, otherAPI, otherStore := newTestSession(t, "")
	otherAPI.loginTenant = &models.Tenant{ID: 7, Name: "Acme"}
	require.NoError(t, other.Hydrate(context.Background()))
	require.NoError(t, other.Login(context.Background(), client.LoginRequest{Email: "a@b.com", Password: "secret1"}))
	other.Logout()

	assert.Equal(t, other.Snapshot(), s.Snapshot())
	assert.Equal(t, storedToken(t, otherStore), storedToken(t, store))
}

func TestSession_LogoutDuringLoginWins(t *testing.T) {
	s, api, store := newTestSession(t, "")
	api.loginTenant = &models.Tenant{ID: 7, Name: "Acme"}
	require.NoError(t, s.Hydrate(context.Background()))

	gate := make(chan struct{})
	api.mu.Lock()
	api.loginGate = gate
	api.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.Login(context.Background(), client.LoginRequest{Email: "a@b.com", Password: "secret1"})
	}()
	<-api.gated

	s.Logout()
	close(gate)

	require.ErrorIs(t, <-done, ErrSessionChanged)
	assert.Equal(t, Anonymous, s.State())
	assert.Empty(t, storedToken(t, store))
}

func TestSession_RefreshUserDropsProfileOlderThanTenantChange(t *testing.T) {
	s, api, store := newTestSession(t, "")
	api.loginTenant = &models.Tenant{ID: 7, Name: "Acme"}
	require.NoError(t, s.Hydrate(context.Background()))
	require.NoError(t, s.Login(context.Background(), client.LoginRequest{Email: "a@b.com", Password: "secret1"}))

	gate := make(chan struct{})
	api.mu.Lock()
	api.profileGate = gate
	api.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.RefreshUser(context.Background())
	}()
	<-api.gated

	api.mu.Lock()
	api.profileGate = nil
	api.mu.Unlock()
	require.NoError(t, s.SwitchTenant(context.Background(), 9))
	close(gate)

	require.NoError(t, <-done)
	snap := s.Snapshot()
	assert.False(t, snap.Loading)
	assert.Equal(t, int64(9), snap.TenantID())

	api.mu.Lock()
	scoped := api.tokens[storedToken(t, store)]
	api.mu.Unlock()
	assert.Equal(t, int64(9), scoped, "credential and published tenant agree")
}

func TestSession_UpdateProfile(t *testing.T) {
	s, _, _ := newTestSession(t, "")
	require.NoError(t, s.Hydrate(context.Background()))

	name := "Alice L."
	_, err := s.UpdateProfile(context.Background(), client.UpdateProfileRequest{Name: &name})
	require.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, s.Login(context.Background(), client.LoginRequest{Email: "a@b.com", Password: "secret1"}))
	user, err := s.UpdateProfile(context.Background(), client.UpdateProfileRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, user.Name)
	assert.Equal(t, name, s.Snapshot().User.Name)
}

func TestSession_SubscribeSeesTransitions(t *testing.T) {
	s, api, _ := newTestSession(t, "")
	api.loginTenant = &models.Tenant{ID: 7, Name: "Acme"}

	updates, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.Hydrate(context.Background()))
	require.NoError(t, s.Login(context.Background(), client.LoginRequest{Email: "a@b.com", Password: "secret1"}))
	s.Logout()

	var states []State
	for i := 0; i < 3; i++ {
		select {
		case snap := <-updates:
			states = append(states, snap.State())
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for update %d", i)
		}
	}
	assert.Equal(t, []State{Anonymous, AuthenticatedWithTenant, Anonymous}, states)
}

func TestSession_SnapshotIsACopy(t *testing.T) {
	s, api, _ := newTestSession(t, "")
	api.loginTenant = &models.Tenant{ID: 7, Name: "Acme"}
	require.NoError(t, s.Hydrate(context.Background()))
	require.NoError(t, s.Login(context.Background(), client.LoginRequest{Email: "a@b.com", Password: "secret1"}))

	snap := s.Snapshot()
	snap.Tenant.ID = 99
	snap.User.Name = "mutated"

	assert.Equal(t, int64(7), s.Snapshot().TenantID())
	assert.Equal(t, "Alice", s.Snapshot().User.Name)
}

// TestSession_TenantNeverWithoutUser runs random operation sequences and
// checks the session invariants after every step
func TestSession_TenantNeverWithoutUser(t *testing.T) {
	ctx := context.Background()
	tenantIDs := []int64{5, 7, 9}

	for seed := int64(1); seed <= 50; seed++ {
		rng := rand.New(rand.NewSource(seed))
		s, api, store := newTestSession(t, "")
		if rng.Intn(2) == 0 {
			api.loginTenant = &models.Tenant{ID: 7, Name: "Acme"}
		}

		_ = s.Hydrate(ctx)

		for step := 0; step < 40; step++ {
			var op string
			switch rng.Intn(9) {
			case 0:
				op = "login"
				_ = s.Login(ctx, client.LoginRequest{Email: "a@b.com", Password: "secret1"})
			case 1:
				op = "login-bad"
				_ = s.Login(ctx, client.LoginRequest{Email: "a@b.com", Password: "nope-nope"})
			case 2:
				op = "select"
				_ = s.SelectTenant(ctx, tenantIDs[rng.Intn(len(tenantIDs))])
			case 3:
				op = "switch"
				_ = s.SwitchTenant(ctx, tenantIDs[rng.Intn(len(tenantIDs))])
			case 4:
				op = "logout"
				s.Logout()
			case 5:
				op = "refresh"
				_ = s.RefreshUser(ctx)
			case 6:
				op = "expire"
				api.expire()
				_, _ = s.ListUserTenants(ctx)
			case 7:
				op = "hydrate"
				_ = s.Hydrate(ctx)
			case 8:
				op = "list"
				_, _ = s.ListUserTenants(ctx)
			}

			snap := s.Snapshot()
			if snap.Tenant != nil && snap.User == nil {
				t.Fatalf("seed %d step %d (%s): tenant present without user", seed, step, op)
			}
			if snap.User != nil && storedToken(t, store) == "" {
				t.Fatalf("seed %d step %d (%s): user present without credential", seed, step, op)
			}
			if snap.State() == Hydrating {
				t.Fatalf("seed %d step %d (%s): back in hydrating", seed, step, op)
			}
		}
	}
}
