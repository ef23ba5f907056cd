package session

import (
	"errors"

	"github.com/invoicely-dev/invoicely/internal/models"
)

var (
	// ErrNotMember is returned when selecting a tenant the user does not belong to
	ErrNotMember = errors.New("not a member of this organization")
	// ErrNotAuthenticated is returned by operations that need a signed-in user
	ErrNotAuthenticated = errors.New("not signed in. Please run 'invoicely login' first")
	// ErrNoTenant is returned by SwitchTenant when no tenant is selected yet
	ErrNoTenant = errors.New("no organization selected. Please run 'invoicely orgs select' first")
	// ErrOperationInProgress is returned when a credential-changing operation is already running
	ErrOperationInProgress = errors.New("another sign-in or organization change is in progress")
	// ErrSessionChanged is returned by Login and Register when the session was
	// signed out while the request was in flight
	ErrSessionChanged = errors.New("session changed while signing in, please try again")
)

// State is the session's position in the authentication state machine
type State int

const (
	Hydrating State = iota
	Anonymous
	AuthenticatedNoTenant
	AuthenticatedWithTenant
)

func (s State) String() string {
	switch s {
	case Hydrating:
		return "hydrating"
	case Anonymous:
		return "anonymous"
	case AuthenticatedNoTenant:
		return "authenticated (no organization)"
	case AuthenticatedWithTenant:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the session. User and Tenant always come
// from the same transition.
type Snapshot struct {
	User   *models.User
	Tenant *models.Tenant
	// Loading is true during hydration and while the profile is being refreshed
	Loading bool
	// Hydrated is false until the stored credential has been resolved once
	Hydrated bool
}

// State derives the state machine position from the snapshot
func (s Snapshot) State() State {
	switch {
	case !s.Hydrated:
		return Hydrating
	case s.User == nil:
		return Anonymous
	case s.Tenant == nil:
		return AuthenticatedNoTenant
	default:
		return AuthenticatedWithTenant
	}
}

// Authenticated reports whether a user is signed in
func (s Snapshot) Authenticated() bool {
	return s.User != nil
}

// TenantID returns the selected tenant's ID, or 0
func (s Snapshot) TenantID() int64 {
	if s.Tenant == nil {
		return 0
	}
	return s.Tenant.ID
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func cloneTenant(t *models.Tenant) *models.Tenant {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
