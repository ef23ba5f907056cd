// Package routeguard decides what a command (page) may render for a session.
package routeguard

import (
	"context"
	"fmt"
	"strings"

	"github.com/invoicely-dev/invoicely/internal/session"
)

// Well-known paths
const (
	LoginPath              = "/login"
	RegisterPath           = "/register"
	OrganizationSelectPath = "/organization-select"
	CreateOrganizationPath = "/create-organization"
	JoinOrganizationPath   = "/join-organization"
	DashboardPath          = "/dashboard"
)

var (
	publicPaths = map[string]bool{
		LoginPath:    true,
		RegisterPath: true,
	}
	organizationPaths = map[string]bool{
		OrganizationSelectPath: true,
		CreateOrganizationPath: true,
		JoinOrganizationPath:   true,
	}
)

// Kind is what the guard lets the caller render
type Kind int

const (
	// RenderLoading shows a placeholder while the session resolves
	RenderLoading Kind = iota
	// RenderBare renders the page without the authenticated shell
	RenderBare
	// Redirect navigates away; a placeholder is shown meanwhile
	Redirect
	// RenderShell renders the page inside the authenticated shell
	RenderShell
)

func (k Kind) String() string {
	switch k {
	case RenderLoading:
		return "loading"
	case RenderBare:
		return "bare"
	case Redirect:
		return "redirect"
	case RenderShell:
		return "shell"
	default:
		return "unknown"
	}
}

// Decision is the outcome of evaluating a path against a session snapshot
type Decision struct {
	Kind Kind
	// Target is set for redirects
	Target string
}

// ShowsPlaceholder reports whether the loading placeholder is on screen
func (d Decision) ShowsPlaceholder() bool {
	return d.Kind == RenderLoading || d.Kind == Redirect
}

// Renders reports whether the requested page itself is rendered
func (d Decision) Renders() bool {
	return d.Kind == RenderBare || d.Kind == RenderShell
}

func (d Decision) String() string {
	if d.Kind == Redirect {
		return fmt.Sprintf("redirect to %s", d.Target)
	}
	return d.Kind.String()
}

// IsPublic reports whether path is reachable without signing in
func IsPublic(path string) bool {
	return publicPaths[Normalize(path)]
}

// IsOrganizationFlow reports whether path belongs to organization selection,
// where a signed-in user may have no tenant
func IsOrganizationFlow(path string) bool {
	return organizationPaths[Normalize(path)]
}

// Normalize drops the query, fragment and trailing slash from path
func Normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if path == "" {
		return "/"
	}
	return path
}

// Decide evaluates the routing policy for path. Rules are applied in order
// and the first match wins.
func Decide(snap session.Snapshot, path string) Decision {
	path = Normalize(path)

	switch {
	case snap.Loading || !snap.Hydrated:
		return Decision{Kind: RenderLoading}
	case publicPaths[path]:
		return Decision{Kind: RenderBare}
	case organizationPaths[path] && snap.User != nil:
		return Decision{Kind: RenderBare}
	case snap.User == nil:
		return Decision{Kind: Redirect, Target: LoginPath}
	case snap.Tenant == nil:
		return Decision{Kind: Redirect, Target: OrganizationSelectPath}
	default:
		return Decision{Kind: RenderShell}
	}
}

// Navigator performs a full navigation to target
type Navigator interface {
	Navigate(ctx context.Context, target string) error
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(ctx context.Context, target string) error

func (f NavigatorFunc) Navigate(ctx context.Context, target string) error {
	return f(ctx, target)
}

// Guard applies Decide and hands redirects to a Navigator
type Guard struct {
	nav Navigator
}

// New creates a guard that navigates with nav
func New(nav Navigator) *Guard {
	return &Guard{nav: nav}
}

// Check evaluates path and navigates when the decision is a redirect. The
// navigator's error, if any, is returned with the decision.
func (g *Guard) Check(ctx context.Context, snap session.Snapshot, path string) (Decision, error) {
	decision := Decide(snap, path)
	if decision.Kind != Redirect {
		return decision, nil
	}

	if err := g.nav.Navigate(ctx, decision.Target); err != nil {
		return decision, err
	}
	return decision, nil
}

// Watch re-evaluates path on every session update until ctx is done or the
// updates channel closes. It returns the first decision that renders the page.
func (g *Guard) Watch(ctx context.Context, updates <-chan session.Snapshot, path string) (Decision, error) {
	for {
		select {
		case <-ctx.Done():
			return Decision{Kind: RenderLoading}, ctx.Err()
		case snap, ok := <-updates:
			if !ok {
				return Decision{Kind: RenderLoading}, fmt.Errorf("session closed while waiting for %s", Normalize(path))
			}
			decision, err := g.Check(ctx, snap, path)
			if err != nil || decision.Kind != RenderLoading {
				return decision, err
			}
		}
	}
}
