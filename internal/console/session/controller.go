package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/backoffice/internal/console/domain"
	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
)

var (
	ErrEmptyCredentials = errors.New("identifier and password are required")
	ErrEmptyPassword    = errors.New("current and new password are required")
	ErrNotAuthenticated = errors.New("not signed in")
	ErrNoRefreshToken   = errors.New("no refresh token")
)

// refreshBuffer is how close to expiry an access token may get before
// EnsureFreshToken refreshes it.
const refreshBuffer = 30 * time.Second

// API is the part of the backoffice client the controller drives.
type API interface {
	Login(ctx context.Context, req adminsdk.LoginRequest) (*adminsdk.LoginResult, error)
	Register(ctx context.Context, req adminsdk.RegisterRequest) (*adminsdk.LoginResult, error)
	Me(ctx context.Context) (*adminsdk.User, error)
	RefreshToken(ctx context.Context, refreshToken string) (*adminsdk.TokenPair, error)
	ChangePassword(ctx context.Context, req adminsdk.ChangePasswordRequest) error
	UpdateProfile(ctx context.Context, req adminsdk.UpdateProfileRequest) (*adminsdk.User, error)
}

// LoginOutcome tells the caller where to go after Login or Register.
type LoginOutcome struct {
	// SignedIn is set when the session is fully authenticated.
	SignedIn bool

	// Requires2FA is set when a second factor is pending.
	Requires2FA bool

	// Challenge distinguishes the two pending cases: true when no token was
	// issued and an existing factor must be verified, false when a token was
	// issued but a factor must first be enrolled.
	Challenge bool

	Message string
}

// Controller owns the session. It is the only writer of the session token;
// the SDK reads it through AccessToken.
type Controller struct {
	api    API
	store  *Store
	logger *slog.Logger

	mu   sync.RWMutex
	sess domain.Session

	wg sync.WaitGroup

	now func() time.Time
}

func NewController(api API, st *Store, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		api:    api,
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// Restore loads the persisted session into memory.
func (c *Controller) Restore(ctx context.Context) error {
	sess, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	c.mu.Lock()
	c.sess = sess
	c.mu.Unlock()

	c.logger.Debug("session restored",
		"user_id", sess.UserID,
		"authenticated", sess.IsAuthenticated(),
	)
	return nil
}

// Session returns a copy of the current session.
func (c *Controller) Session() domain.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sess
}

// AccessToken implements adminsdk.TokenSource.
func (c *Controller) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sess.AccessToken
}

// IsAuthenticated is recomputed on every read.
func (c *Controller) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sess.IsAuthenticated()
}

// PendingSecondFactor reports whether a 2FA step stands between the user
// and a full session.
func (c *Controller) PendingSecondFactor() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sess.MustSetup2FA
}

// PendingLoginEmail is the identifier carried across a post-login challenge.
func (c *Controller) PendingLoginEmail(ctx context.Context) string {
	return c.store.PendingLoginEmail(ctx)
}

// Preferences exposes the store for UI preferences such as sidebarCollapsed.
func (c *Controller) Preferences() *Store {
	return c.store
}

// Wait blocks until background user refreshes have finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Login signs in. API failures are returned as is. A response that asks for
// a second factor, or carries no token, leaves the session pending.
func (c *Controller) Login(ctx context.Context, identifier, password string) (LoginOutcome, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return LoginOutcome{}, ErrEmptyCredentials
	}

	res, err := c.api.Login(ctx, adminsdk.LoginRequest{Identifier: identifier, Password: password})
	if err != nil {
		c.logger.Info("login failed", "identifier", identifier, "err", err)
		return LoginOutcome{}, err
	}

	return c.applyLogin(ctx, identifier, res)
}

// Register creates an account. When the backend signs the new user in
// straight away the session is set up exactly as for Login.
func (c *Controller) Register(ctx context.Context, req adminsdk.RegisterRequest) (LoginOutcome, error) {
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return LoginOutcome{}, ErrEmptyCredentials
	}

	res, err := c.api.Register(ctx, req)
	if err != nil {
		return LoginOutcome{}, err
	}
	if res.AccessToken == "" && !res.MustSetup2FA {
		return LoginOutcome{Message: res.Message}, nil
	}

	return c.applyLogin(ctx, req.Email, res)
}

func (c *Controller) applyLogin(ctx context.Context, identifier string, res *adminsdk.LoginResult) (LoginOutcome, error) {
	sess := domain.Session{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	}
	sess.ApplyUser(res.User)
	if !sess.HasUser() {
		if strings.Contains(identifier, "@") {
			sess.Email = identifier
		} else {
			sess.Username = identifier
		}
	}

	if res.Requires2FA() {
		sess.MustSetup2FA = true
		outcome := LoginOutcome{
			Requires2FA: true,
			Challenge:   res.AccessToken == "",
			Message:     res.Message,
		}

		pendingEmail := sess.Email
		if pendingEmail == "" {
			pendingEmail = identifier
		}
		if err := c.replace(ctx, sess); err != nil {
			return LoginOutcome{}, err
		}
		if err := c.store.SetPendingLoginEmail(ctx, pendingEmail); err != nil {
			return LoginOutcome{}, fmt.Errorf("persist pending login: %w", err)
		}

		c.logger.Info("login waiting for second factor", "user_id", sess.UserID, "challenge", outcome.Challenge)
		return outcome, nil
	}

	sess.MustSetup2FA = false
	if err := c.replace(ctx, sess); err != nil {
		return LoginOutcome{}, err
	}
	if err := c.store.SetPendingLoginEmail(ctx, ""); err != nil {
		c.logger.Warn("clear pending login failed", "err", err)
	}

	c.logger.Info("login succeeded", "user_id", sess.UserID)
	c.refreshInBackground(ctx)
	return LoginOutcome{SignedIn: true, Message: res.Message}, nil
}

// refreshInBackground fetches user details after login. Its failure never
// undoes the login.
func (c *Controller) refreshInBackground(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.FetchUserInfo(ctx)
	}()
}

// FetchUserInfo refreshes the stored user. It is a no-op without a token and
// only logs transport failures; a dead token is handled by the 401 hook.
func (c *Controller) FetchUserInfo(ctx context.Context) {
	token := c.AccessToken()
	if token == "" {
		return
	}

	u, err := c.api.Me(ctx)
	if err != nil {
		c.logger.Warn("fetch user failed", "err", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Logged out or re-logged in while the request was in flight.
	if c.sess.AccessToken != token {
		return
	}

	next := c.sess
	next.ApplyUser(u)
	if err := c.store.Save(ctx, next); err != nil {
		c.logger.Warn("persist user failed", "err", err)
		return
	}
	c.sess = next
}

// Logout clears the session in memory and on disk. It never fails.
func (c *Controller) Logout(ctx context.Context) {
	c.mu.Lock()
	c.sess = domain.Session{}
	c.mu.Unlock()

	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("clear session failed", "err", err)
	}
	c.logger.Info("logout")
}

// HandleUnauthorized is installed as the SDK's 401 hook.
func (c *Controller) HandleUnauthorized() {
	if c.AccessToken() == "" {
		return
	}
	c.logger.Warn("session expired")
	c.Logout(context.Background())
}

// CompleteTwoFactor finishes a pending second factor. Tokens from a
// post-login challenge replace the partial ones; enrollment keeps the
// token it already has. User details are then refreshed best-effort.
func (c *Controller) CompleteTwoFactor(ctx context.Context, tokens adminsdk.TokenPair) error {
	c.mu.RLock()
	next := c.sess
	c.mu.RUnlock()

	if tokens.AccessToken != "" {
		next.AccessToken = tokens.AccessToken
	}
	if tokens.RefreshToken != "" {
		next.RefreshToken = tokens.RefreshToken
	}
	if next.AccessToken == "" {
		return ErrNotAuthenticated
	}
	next.MustSetup2FA = false
	if !next.HasUser() {
		next.Email = c.store.PendingLoginEmail(ctx)
	}

	if err := c.replace(ctx, next); err != nil {
		return err
	}
	if err := c.store.SetPendingLoginEmail(ctx, ""); err != nil {
		c.logger.Warn("clear pending login failed", "err", err)
	}

	c.logger.Info("second factor completed", "user_id", next.UserID)
	c.FetchUserInfo(ctx)
	return nil
}

// AbandonTwoFactor discards partial token state after a cancelled 2FA flow.
// The user has to sign in again.
func (c *Controller) AbandonTwoFactor(ctx context.Context) {
	c.logger.Info("second factor abandoned")
	c.Logout(ctx)
}

// RefreshTokens trades the refresh token for a new pair.
func (c *Controller) RefreshTokens(ctx context.Context) error {
	c.mu.RLock()
	refresh := c.sess.RefreshToken
	c.mu.RUnlock()

	if refresh == "" {
		return ErrNoRefreshToken
	}

	pair, err := c.api.RefreshToken(ctx, refresh)
	if err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess.RefreshToken != refresh {
		return nil // someone else refreshed or logged out meanwhile
	}
	next := c.sess
	next.AccessToken = pair.AccessToken
	next.RefreshToken = pair.RefreshToken
	if err := c.store.Save(ctx, next); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	c.sess = next
	return nil
}

// EnsureFreshToken refreshes the access token when its exp claim is within
// refreshBuffer. Opaque tokens and tokens without exp are left alone.
func (c *Controller) EnsureFreshToken(ctx context.Context) error {
	token := c.AccessToken()
	if token == "" {
		return ErrNotAuthenticated
	}

	exp, ok := tokenExpiry(token)
	if !ok || exp.Sub(c.now()) > refreshBuffer {
		return nil
	}
	return c.RefreshTokens(ctx)
}

// tokenExpiry reads the exp claim without verifying the signature. The
// backend verifies; the client only wants to know when to refresh.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// ChangePassword changes the current user's password.
func (c *Controller) ChangePassword(ctx context.Context, current, next string) error {
	if current == "" || next == "" {
		return ErrEmptyPassword
	}
	if c.AccessToken() == "" {
		return ErrNotAuthenticated
	}
	return c.api.ChangePassword(ctx, adminsdk.ChangePasswordRequest{
		CurrentPassword: current,
		NewPassword:     next,
	})
}

// UpdateProfile updates the profile and refreshes the stored user.
func (c *Controller) UpdateProfile(ctx context.Context, req adminsdk.UpdateProfileRequest) error {
	token := c.AccessToken()
	if token == "" {
		return ErrNotAuthenticated
	}

	u, err := c.api.UpdateProfile(ctx, req)
	if err != nil {
		return err
	}
	if u == nil {
		c.FetchUserInfo(ctx)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess.AccessToken != token {
		return nil
	}
	next := c.sess
	next.ApplyUser(u)
	if err := c.store.Save(ctx, next); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	c.sess = next
	return nil
}

// replace swaps in a new session and persists it.
func (c *Controller) replace(ctx context.Context, sess domain.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	c.sess = sess
	return nil
}
