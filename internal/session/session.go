package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/invoicely-dev/invoicely/internal/cli/auth"
	"github.com/invoicely-dev/invoicely/internal/cli/client"
	"github.com/invoicely-dev/invoicely/internal/models"
)

const subscriberBuffer = 8

// API is the subset of the API client the session drives
type API interface {
	Login(ctx context.Context, req client.LoginRequest) (*models.AuthResponse, error)
	Register(ctx context.Context, req client.RegisterRequest) (*models.AuthResponse, error)
	GetProfile(ctx context.Context) (*models.Profile, error)
	UpdateProfile(ctx context.Context, req client.UpdateProfileRequest) (*models.User, error)
	SelectTenant(ctx context.Context, tenantID int64) (*models.TenantSelection, error)
	ListTenants(ctx context.Context) ([]models.Tenant, error)
	CreateTenant(ctx context.Context, req client.CreateTenantRequest) (*models.Tenant, error)
	OnUnauthorized(fn func(client.UnauthorizedEvent)) func()
}

// Session owns the signed-in user and selected tenant and keeps them
// consistent with the credential in the token store.
type Session struct {
	api    API
	store  auth.TokenStore
	logger zerolog.Logger

	mu       sync.RWMutex
	user     *models.User
	tenant   *models.Tenant
	loading  bool
	hydrated bool
	// bumped whenever the stored credential is replaced or cleared
	epoch uint64

	// guards Login, Register, SelectTenant, SwitchTenant and CreateTenant
	inflight atomic.Bool

	subsMu  sync.Mutex
	nextSub int
	subs    map[int]chan Snapshot

	detach func()
}

// New creates a session in the Hydrating state and subscribes it to the API
// client's unauthorized events
func New(api API, store auth.TokenStore, logger zerolog.Logger) *Session {
	s := &Session{
		api:     api,
		store:   store,
		logger:  logger,
		loading: true,
		subs:    make(map[int]chan Snapshot),
	}
	s.detach = api.OnUnauthorized(s.handleUnauthorized)
	return s
}

// Close detaches the session from the API client and closes subscriber channels
func (s *Session) Close() {
	s.detach()

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// Snapshot returns the current user, tenant and loading flag together
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// State returns the current state machine position
func (s *Session) State() State {
	return s.Snapshot().State()
}

// Subscribe returns a channel receiving a snapshot after every transition.
// Slow subscribers only see the latest snapshot.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberBuffer)

	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subsMu.Unlock()

	return ch, func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		if _, ok := s.subs[id]; ok {
			close(ch)
			delete(s.subs, id)
		}
	}
}

// Hydrate resolves the stored credential into a user and tenant. A credential
// the API no longer accepts is cleared.
func (s *Session) Hydrate(ctx context.Context) error {
	if _, err := s.store.Get(); err != nil {
		if !errors.Is(err, auth.ErrNoCredential) {
			s.logger.Warn().Err(err).Msg("Failed to read stored credential")
		}
		s.setIdentity(nil, nil)
		return nil
	}

	profile, err := s.api.GetProfile(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Stored credential could not be resolved, signing out")
		s.Logout()
		return fmt.Errorf("failed to restore session: %w", err)
	}

	s.setIdentity(profile.User, profile.Tenant)
	return nil
}

// Login authenticates and stores the returned credential. On failure the
// state and any prior credential are left untouched.
func (s *Session) Login(ctx context.Context, req client.LoginRequest) error {
	if !s.inflight.CompareAndSwap(false, true) {
		return ErrOperationInProgress
	}
	defer s.inflight.Store(false)

	epoch := s.currentEpoch()
	resp, err := s.api.Login(ctx, req)
	if err != nil {
		return err
	}

	if err := s.adopt(resp, epoch); err != nil {
		return err
	}

	s.logger.Info().Int64("user_id", resp.User.ID).Int64("tenant_id", s.Snapshot().TenantID()).Msg("Signed in")
	return nil
}

// Register creates an account and signs in. The API may create an
// organization as part of registration, in which case it is selected.
func (s *Session) Register(ctx context.Context, req client.RegisterRequest) error {
	if !s.inflight.CompareAndSwap(false, true) {
		return ErrOperationInProgress
	}
	defer s.inflight.Store(false)

	epoch := s.currentEpoch()
	resp, err := s.api.Register(ctx, req)
	if err != nil {
		return err
	}

	if err := s.adopt(resp, epoch); err != nil {
		return err
	}

	s.logger.Info().Int64("user_id", resp.User.ID).Msg("Registered")
	return nil
}

// adopt stores a fresh credential and publishes the identity it belongs to.
// The response is dropped when the session was signed out after epoch.
func (s *Session) adopt(resp *models.AuthResponse, epoch uint64) error {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return ErrSessionChanged
	}
	if err := s.store.Set(resp.AccessToken); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to save authentication token: %w", err)
	}
	s.epoch++
	s.user = cloneUser(resp.User)
	s.tenant = cloneTenant(resp.Tenant)
	s.loading = false
	s.hydrated = true
	s.broadcast(s.snapshotLocked())
	s.mu.Unlock()
	return nil
}

// SelectTenant exchanges the credential for one scoped to tenantID
func (s *Session) SelectTenant(ctx context.Context, tenantID int64) error {
	if !s.Snapshot().Authenticated() {
		return ErrNotAuthenticated
	}

	if !s.inflight.CompareAndSwap(false, true) {
		return ErrOperationInProgress
	}
	defer s.inflight.Store(false)

	return s.selectTenant(ctx, tenantID)
}

// SwitchTenant moves from the current tenant to another one. Switching to the
// current tenant is a no-op.
func (s *Session) SwitchTenant(ctx context.Context, tenantID int64) error {
	snap := s.Snapshot()
	if !snap.Authenticated() {
		return ErrNotAuthenticated
	}
	if snap.Tenant == nil {
		return ErrNoTenant
	}
	if snap.Tenant.ID == tenantID {
		return nil
	}

	if !s.inflight.CompareAndSwap(false, true) {
		return ErrOperationInProgress
	}
	defer s.inflight.Store(false)

	return s.selectTenant(ctx, tenantID)
}

func (s *Session) selectTenant(ctx context.Context, tenantID int64) error {
	resp, err := s.api.SelectTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, client.ErrForbidden) || errors.Is(err, client.ErrNotFound) {
			return fmt.Errorf("organization %d: %w: %w", tenantID, ErrNotMember, err)
		}
		return err
	}

	s.mu.Lock()
	// The session may have been signed out while the call was in flight
	if s.user == nil {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	if err := s.store.Set(resp.AccessToken); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to save authentication token: %w", err)
	}
	s.epoch++
	s.tenant = cloneTenant(resp.Tenant)
	s.broadcast(s.snapshotLocked())
	s.mu.Unlock()

	s.logger.Info().Int64("tenant_id", resp.Tenant.ID).Str("tenant", resp.Tenant.Name).Msg("Organization selected")
	return nil
}

// ListUserTenants returns the user's organizations in server order
func (s *Session) ListUserTenants(ctx context.Context) ([]models.Tenant, error) {
	return s.api.ListTenants(ctx)
}

// CreateTenant creates an organization and selects it
func (s *Session) CreateTenant(ctx context.Context, req client.CreateTenantRequest) (*models.Tenant, error) {
	if !s.Snapshot().Authenticated() {
		return nil, ErrNotAuthenticated
	}

	if !s.inflight.CompareAndSwap(false, true) {
		return nil, ErrOperationInProgress
	}
	defer s.inflight.Store(false)

	tenant, err := s.api.CreateTenant(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.selectTenant(ctx, tenant.ID); err != nil {
		return nil, fmt.Errorf("organization created but could not be selected: %w", err)
	}
	return tenant, nil
}

// Logout clears the credential, user and tenant. It never calls the API.
func (s *Session) Logout() {
	s.mu.Lock()
	if err := s.store.Clear(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to clear stored credential")
	}
	s.epoch++
	s.user = nil
	s.tenant = nil
	s.loading = false
	s.hydrated = true
	s.broadcast(s.snapshotLocked())
	s.mu.Unlock()
}

// RefreshUser re-fetches the profile. Any failure signs the session out. A
// profile fetched before a sign-in, sign-out or organization change that
// completed meanwhile is discarded.
func (s *Session) RefreshUser(ctx context.Context) error {
	s.mu.Lock()
	epoch := s.epoch
	s.loading = true
	s.broadcast(s.snapshotLocked())
	s.mu.Unlock()

	profile, err := s.api.GetProfile(ctx)
	if err != nil {
		s.Logout()
		return fmt.Errorf("failed to refresh profile: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		s.logger.Debug().Msg("Discarding profile fetched before a newer session change")
		if s.loading {
			s.loading = false
			s.broadcast(s.snapshotLocked())
		}
		return nil
	}

	s.user = cloneUser(profile.User)
	s.tenant = cloneTenant(profile.Tenant)
	if s.user == nil {
		s.tenant = nil
	}
	s.loading = false
	s.hydrated = true
	s.broadcast(s.snapshotLocked())
	return nil
}

// UpdateProfile applies a partial update to the signed-in user
func (s *Session) UpdateProfile(ctx context.Context, req client.UpdateProfileRequest) (*models.User, error) {
	if !s.Snapshot().Authenticated() {
		return nil, ErrNotAuthenticated
	}

	user, err := s.api.UpdateProfile(ctx, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	s.user = cloneUser(user)
	s.broadcast(s.snapshotLocked())
	s.mu.Unlock()
	return cloneUser(user), nil
}

// handleUnauthorized turns the API client's 401 event into the Anonymous
// transition. The client has already cleared the credential.
func (s *Session) handleUnauthorized(event client.UnauthorizedEvent) {
	s.logger.Warn().
		Str("method", event.Method).
		Str("path", event.Path).
		Msg("Session expired or was revoked")

	s.mu.Lock()
	s.epoch++
	s.mu.Unlock()
	s.setIdentity(nil, nil)
}

// setIdentity publishes user and tenant as a single transition
func (s *Session) setIdentity(user *models.User, tenant *models.Tenant) {
	if user == nil {
		tenant = nil
	}

	s.mu.Lock()
	s.user = cloneUser(user)
	s.tenant = cloneTenant(tenant)
	s.loading = false
	s.hydrated = true
	s.broadcast(s.snapshotLocked())
	s.mu.Unlock()
}

func (s *Session) currentEpoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		User:     cloneUser(s.user),
		Tenant:   cloneTenant(s.tenant),
		Loading:  s.loading,
		Hydrated: s.hydrated,
	}
}

func (s *Session) broadcast(snap Snapshot) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Drop the oldest pending snapshot so the latest one is delivered
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
