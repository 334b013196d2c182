package shell

import (
	"context"
	"log/slog"
	"sync"
)

// Preferences persists UI preferences.
type Preferences interface {
	SidebarCollapsed(ctx context.Context) bool
	SetSidebarCollapsed(ctx context.Context, collapsed bool) error
}

// Shell is the navigation frame around every page.
type Shell struct {
	auth   AuthState
	prefs  Preferences
	logger *slog.Logger

	mu        sync.Mutex
	current   string
	collapsed bool
}

func New(ctx context.Context, auth AuthState, prefs Preferences, logger *slog.Logger) *Shell {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Shell{
		auth:      auth,
		prefs:     prefs,
		logger:    logger,
		collapsed: prefs.SidebarCollapsed(ctx),
	}
	s.current = Resolve(PathDashboard, auth)
	return s
}

// Navigate moves to path, subject to Resolve, and returns the route shown.
func (s *Shell) Navigate(path string) Route {
	target := Resolve(path, s.auth)

	s.mu.Lock()
	s.current = target
	s.mu.Unlock()

	if target != normalize(path) {
		s.logger.Debug("navigation redirected", "from", path, "to", target)
	}
	return s.route(target)
}

// Current re-resolves the current path, so a session change takes effect
// on the next render.
func (s *Shell) Current() Route {
	s.mu.Lock()
	path := s.current
	s.mu.Unlock()
	return s.Navigate(path)
}

// Nav lists the sidebar entries. Every signed-in user sees all of them.
func (s *Shell) Nav() []Route {
	if !s.auth.IsAuthenticated() {
		return nil
	}
	return Routes()
}

func (s *Shell) Collapsed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collapsed
}

// ToggleSidebar flips and persists the sidebar preference.
func (s *Shell) ToggleSidebar(ctx context.Context) error {
	s.mu.Lock()
	s.collapsed = !s.collapsed
	collapsed := s.collapsed
	s.mu.Unlock()

	return s.prefs.SetSidebarCollapsed(ctx, collapsed)
}

func (s *Shell) route(path string) Route {
	if r, ok := Lookup(path); ok {
		return r
	}
	switch path {
	case PathLogin:
		return Route{Path: PathLogin, Title: "Sign in"}
	default:
		return Route{Path: path, Title: path}
	}
}
