// Package tui is the full-screen console: sign-in, the second-factor
// workflows, the dashboard shell and its pages.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aussiebroadwan/backoffice/internal/console/cachepage"
	"github.com/aussiebroadwan/backoffice/internal/console/domain"
	"github.com/aussiebroadwan/backoffice/internal/console/session"
	"github.com/aussiebroadwan/backoffice/internal/console/shell"
	"github.com/aussiebroadwan/backoffice/internal/console/twofa"
	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
)

// Session is the part of the session controller the console drives.
type Session interface {
	shell.AuthState
	Session() domain.Session
	Login(ctx context.Context, identifier, password string) (session.LoginOutcome, error)
	Logout(ctx context.Context)
	CompleteTwoFactor(ctx context.Context, tokens adminsdk.TokenPair) error
	AbandonTwoFactor(ctx context.Context)
	EnsureFreshToken(ctx context.Context) error
}

type Options struct {
	Session   Session
	Prefs     shell.Preferences
	TwoFactor twofa.API
	Cache     cachepage.Service
	Logger    *slog.Logger

	// StartPath is the first page requested; it is still subject to
	// route resolution.
	StartPath string
}

type model struct {
	ctx    context.Context
	opts   Options
	logger *slog.Logger

	shell *shell.Shell
	route shell.Route

	login  loginModel
	twofa  twoFactorModel
	cache  cacheModel
	status string
	err    string
	width  int
}

// Run starts the console and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	m := initialModel(ctx, opts)
	defer m.twofa.close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if fm, ok := final.(model); ok {
		fm.twofa.close()
	}
	return err
}

func initialModel(ctx context.Context, opts Options) model {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ensure := ensureFresh(opts.Session, opts.Logger)
	if opts.Cache != nil {
		opts.Cache = freshCache{Service: opts.Cache, ensure: ensure}
	}
	if opts.TwoFactor != nil {
		opts.TwoFactor = freshTwoFactor{API: opts.TwoFactor, ensure: ensure}
	}
	m := model{
		ctx:    ctx,
		opts:   opts,
		logger: opts.Logger,
		shell:  shell.New(ctx, opts.Session, opts.Prefs, opts.Logger),
		login:  newLoginModel(opts.Session.Session().Email),
		cache:  newCacheModel(cachepage.NewPage(opts.Cache, opts.Logger)),
	}
	start := opts.StartPath
	if start == "" {
		start = shell.PathDashboard
	}
	m, _ = m.goTo(start)
	return m
}

// Init starts the work of the first page, which initialModel has already
// set up.
func (m model) Init() tea.Cmd {
	switch m.route.Path {
	case shell.PathTwoFactor:
		return m.twofa.tickCmd()
	case shell.PathCache:
		return m.cache.refreshCmd(m.ctx)
	case shell.PathLogin:
		return textinput.Blink
	}
	return nil
}

// goTo resolves and shows path, starting whatever the page needs.
func (m model) goTo(path string) (model, tea.Cmd) {
	prev := m.route.Path
	m.route = m.shell.Navigate(path)
	m.err = ""

	if prev == shell.PathTwoFactor && m.route.Path != shell.PathTwoFactor {
		m.twofa.close()
		m.twofa = twoFactorModel{}
	}
	if m.route.Path == shell.PathLogin {
		m.login = newLoginModel(m.opts.Session.Session().Email)
	}
	if m.route.Path == prev && prev != shell.PathCache {
		return m, nil
	}
	cmd := m.enterCmd()
	return m, cmd
}

// enterCmd is the work a page does when it is shown.
func (m *model) enterCmd() tea.Cmd {
	switch m.route.Path {
	case shell.PathTwoFactor:
		if m.twofa.active() {
			return nil
		}
		sess := m.opts.Session.Session()
		challenge := m.opts.Session.PendingSecondFactor() && sess.AccessToken == ""
		m.twofa = newTwoFactorModel(m.ctx, m.opts, sess.UserID, challenge)
		return m.twofa.tickCmd()
	case shell.PathCache:
		return m.cache.refreshCmd(m.ctx)
	}
	return nil
}

// resync re-resolves the current route after the session changed.
func (m model) resync() (model, tea.Cmd) {
	return m.goTo(m.route.Path)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case loginDoneMsg:
		m.login.busy = false
		if msg.err != nil {
			m.login.err = adminsdk.Message(msg.err)
			return m, nil
		}
		m.status = msg.outcome.Message
		return m.resync()

	case workflowMsg:
		if msg.gen != m.twofa.gen {
			return m, nil
		}
		m.twofa = m.twofa.apply(msg)
		if m.twofa.finished() {
			return m.leaveTwoFactor()
		}
		return m, nil

	case tickMsg:
		if msg.gen != m.twofa.gen || !m.twofa.active() {
			return m, nil
		}
		m.twofa = m.twofa.tick()
		return m, m.twofa.tickCmd()

	case cacheDoneMsg:
		m.cache = m.cache.done(msg)
		return m, nil
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.route.Path {
	case shell.PathLogin:
		var submit bool
		m.login, submit = m.login.update(msg)
		if submit {
			m.login.busy = true
			return m, loginCmd(m.ctx, m.opts.Session, m.login.identifier.Value(), m.login.password.Value())
		}
		return m, m.login.blink()

	case shell.PathTwoFactor:
		if m.twofa.capturing() {
			var cmd tea.Cmd
			m.twofa, cmd = m.twofa.update(msg)
			if m.twofa.finished() {
				return m.leaveTwoFactor()
			}
			return m, cmd
		}

	case shell.PathCache:
		if m.cache.capturing() {
			var cmd tea.Cmd
			m.cache, cmd = m.cache.update(m.ctx, msg)
			return m, cmd
		}
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "b":
		if err := m.shell.ToggleSidebar(m.ctx); err != nil {
			m.logger.Warn("persist sidebar preference failed", "err", err)
		}
		return m, nil
	case "x":
		m.opts.Session.Logout(m.ctx)
		m.status = "Signed out"
		return m.resync()
	}

	if m.opts.Session.IsAuthenticated() {
		if r, ok := shell.LookupKey(msg.String()); ok {
			return m.goTo(r.Path)
		}
	}

	if m.route.Path == shell.PathCache {
		var cmd tea.Cmd
		m.cache, cmd = m.cache.update(m.ctx, msg)
		return m, cmd
	}
	return m, nil
}

// leaveTwoFactor reports how the workflow ended and moves on. Resolution
// sends a user whose session was abandoned back to sign-in.
func (m model) leaveTwoFactor() (model, tea.Cmd) {
	outcome, err := m.twofa.outcome()
	m.status = outcome
	next, cmd := m.goTo(shell.PathDashboard)
	if err != nil {
		m.logger.Warn("complete two-factor failed", "err", err)
		next.err = adminsdk.Message(err)
	}
	return next, cmd
}

func (m model) View() string {
	var b strings.Builder

	sess := m.opts.Session.Session()
	header := "Backoffice"
	if m.opts.Session.IsAuthenticated() {
		header += "  ·  " + sess.Label()
		if sess.Role != "" {
			header += " (" + sess.Role + ")"
		}
	}
	b.WriteString(headerStyle.Render(header) + "\n\n")

	body := m.pageView()
	if nav := m.shell.Nav(); len(nav) > 0 && !m.shell.Collapsed() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, sidebarStyle.Render(m.sidebarView(nav)), body)
	}
	b.WriteString(body)
	b.WriteString("\n\n")

	if m.status != "" {
		b.WriteString(noticeStyle.Render(m.status) + "\n")
	}
	if m.err != "" {
		b.WriteString(errorStyle.Render(m.err) + "\n")
	}
	b.WriteString(helpStyle.Render(m.helpLine()))
	return b.String()
}

func (m model) sidebarView(nav []shell.Route) string {
	var b strings.Builder
	var section shell.Section
	for _, r := range nav {
		if r.Section != section {
			section = r.Section
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(sectionStyle.Render(string(section)) + "\n")
		}
		line := fmt.Sprintf("%s %s", r.Key, r.Title)
		if r.Path == m.route.Path {
			b.WriteString(activeStyle.Render("> "+line) + "\n")
		} else {
			b.WriteString(navStyle.Render("  "+line) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m model) pageView() string {
	switch m.route.Path {
	case shell.PathLogin:
		return m.login.view()
	case shell.PathTwoFactor:
		return m.twofa.view()
	case shell.PathCache:
		return m.cache.view()
	case shell.PathProfile:
		return profileView(m.opts.Session.Session())
	case shell.PathSettings:
		return settingsView(m.shell.Collapsed())
	}
	if m.route.Mock {
		return mockView(m.route)
	}
	return titleStyle.Render(m.route.Title)
}

func (m model) helpLine() string {
	switch m.route.Path {
	case shell.PathLogin:
		return "tab switch field  •  enter sign in  •  ctrl+c quit"
	case shell.PathTwoFactor:
		return m.twofa.help()
	case shell.PathCache:
		return m.cache.help() + "  •  b sidebar  •  x sign out  •  q quit"
	}
	return "1-9/p/s/t jump  •  b sidebar  •  x sign out  •  q quit"
}

type loginDoneMsg struct {
	outcome session.LoginOutcome
	err     error
}

func loginCmd(ctx context.Context, sess Session, identifier, password string) tea.Cmd {
	return func() tea.Msg {
		out, err := sess.Login(ctx, identifier, password)
		return loginDoneMsg{outcome: out, err: err}
	}
}
