// Package fakeapi is an in-memory stand-in for the backoffice REST API. It
// serves the auth, two-factor, profile and cache endpoints the console
// calls, for local development and end-to-end tests.
package fakeapi

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
	"github.com/aussiebroadwan/backoffice/pkg/cryptox"
	"github.com/aussiebroadwan/backoffice/pkg/idx"
)

const minPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidRefresh     = errors.New("refresh token is invalid or expired")
	ErrMissingField       = errors.New("required field missing")
)

// Options configures a Service. Zero values take the defaults shown.
type Options struct {
	Issuer         string        // default "backoffice-fakeapi"
	AccessTTL      time.Duration // default 15m
	RefreshTTL     time.Duration // default 7 days
	ChallengeTTL   time.Duration // default 10m
	EmailCodeTTL   time.Duration // default 10m
	ResendInterval time.Duration // default 60s
	Now            func() time.Time
	Logger         *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Issuer == "" {
		o.Issuer = "backoffice-fakeapi"
	}
	if o.AccessTTL == 0 {
		o.AccessTTL = 15 * time.Minute
	}
	if o.RefreshTTL == 0 {
		o.RefreshTTL = 7 * 24 * time.Hour
	}
	if o.ChallengeTTL == 0 {
		o.ChallengeTTL = 10 * time.Minute
	}
	if o.EmailCodeTTL == 0 {
		o.EmailCodeTTL = 10 * time.Minute
	}
	if o.ResendInterval == 0 {
		o.ResendInterval = time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

type user struct {
	ID           string
	Email        string
	Username     string
	DisplayName  string
	Role         string
	PasswordHash string
	MustSetup2FA bool
	Methods      map[adminsdk.TwoFactorType]*method

	// RecoveryCodes holds the unused codes.
	RecoveryCodes []string
}

type method struct {
	ID        string
	Type      adminsdk.TwoFactorType
	Active    bool
	Secret    string
	URI       string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type refreshToken struct {
	UserID    string
	ExpiresAt time.Time
}

type emailCode struct {
	Code      string
	SentAt    time.Time
	ExpiresAt time.Time
}

// Service holds all fake backend state behind one mutex.
type Service struct {
	opts       Options
	signingKey []byte

	mu         sync.Mutex
	users      map[string]*user
	refresh    map[string]refreshToken // keyed by token fingerprint
	challenges map[string]time.Time    // user id -> expiry
	outbox     map[string]emailCode    // user id -> last emailed code
	cache      map[string]cacheItem
}

func NewService(opts Options) *Service {
	return &Service{
		opts:       opts.withDefaults(),
		signingKey: []byte(cryptox.MustGenerateToken(cryptox.TokenSize256)),
		users:      make(map[string]*user),
		refresh:    make(map[string]refreshToken),
		challenges: make(map[string]time.Time),
		outbox:     make(map[string]emailCode),
		cache:      make(map[string]cacheItem),
	}
}

// NewUser describes a seeded account.
type NewUser struct {
	Email        string
	Username     string
	DisplayName  string
	Password     string
	Role         string
	MustSetup2FA bool
}

// AddUser creates an account and returns its id.
func (s *Service) AddUser(nu NewUser) (string, error) {
	nu.Email = strings.ToLower(strings.TrimSpace(nu.Email))
	nu.Username = strings.TrimSpace(nu.Username)
	if nu.Email == "" || nu.Password == "" {
		return "", ErrMissingField
	}
	if len(nu.Password) < minPasswordLength {
		return "", ErrWeakPassword
	}

	hash, err := cryptox.HashPassword(nu.Password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == nu.Email {
			return "", ErrEmailTaken
		}
		if nu.Username != "" && strings.EqualFold(u.Username, nu.Username) {
			return "", ErrUsernameTaken
		}
	}

	role := nu.Role
	if role == "" {
		role = "operator"
	}
	u := &user{
		ID:           idx.New().String(),
		Email:        nu.Email,
		Username:     nu.Username,
		DisplayName:  nu.DisplayName,
		Role:         role,
		PasswordHash: hash,
		MustSetup2FA: nu.MustSetup2FA,
		Methods:      make(map[adminsdk.TwoFactorType]*method),
	}
	s.users[u.ID] = u

	s.opts.Logger.Info("user created", "user_id", u.ID, "role", u.Role)
	return u.ID, nil
}

// Register creates an account and signs it in.
func (s *Service) Register(nu NewUser) (adminsdk.User, adminsdk.TokenPair, error) {
	id, err := s.AddUser(nu)
	if err != nil {
		return adminsdk.User{}, adminsdk.TokenPair{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.users[id]
	pair, err := s.issueLocked(u)
	if err != nil {
		return adminsdk.User{}, adminsdk.TokenPair{}, err
	}
	return u.view(), pair, nil
}

// LoginOutcome is the result of a password check. Challenge means the user
// has an active second factor and no tokens were issued.
type LoginOutcome struct {
	User      adminsdk.User
	Tokens    adminsdk.TokenPair
	Challenge bool
}

// Login checks a password against an email or username.
func (s *Service) Login(identifier, password string) (LoginOutcome, error) {
	identifier = strings.TrimSpace(identifier)

	s.mu.Lock()
	u := s.findLocked(identifier)
	var hash string
	if u != nil {
		hash = u.PasswordHash
	}
	s.mu.Unlock()

	if u == nil {
		return LoginOutcome{}, ErrInvalidCredentials
	}
	// Hash outside the lock; argon2 is slow on purpose.
	if err := cryptox.VerifyPassword(password, hash); err != nil {
		return LoginOutcome{}, ErrInvalidCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if u.hasActiveMethod() {
		s.challenges[u.ID] = s.opts.Now().Add(s.opts.ChallengeTTL)
		s.opts.Logger.Info("login challenge issued", "user_id", u.ID)
		return LoginOutcome{User: u.view(), Challenge: true}, nil
	}

	pair, err := s.issueLocked(u)
	if err != nil {
		return LoginOutcome{}, err
	}
	return LoginOutcome{User: u.view(), Tokens: pair}, nil
}

// Refresh rotates a refresh token.
func (s *Service) Refresh(raw string) (adminsdk.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp := cryptox.FingerprintToken(raw)
	rt, ok := s.refresh[fp]
	if !ok || s.opts.Now().After(rt.ExpiresAt) {
		return adminsdk.TokenPair{}, ErrInvalidRefresh
	}
	u, ok := s.users[rt.UserID]
	if !ok {
		return adminsdk.TokenPair{}, ErrInvalidRefresh
	}

	delete(s.refresh, fp)
	return s.issueLocked(u)
}

// User returns the public view of a user.
func (s *Service) User(id string) (adminsdk.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return adminsdk.User{}, ErrUserNotFound
	}
	return u.view(), nil
}

// ChangePassword replaces the password and revokes every refresh token the
// user holds.
func (s *Service) ChangePassword(id, current, next string) error {
	if len(next) < minPasswordLength {
		return ErrWeakPassword
	}

	s.mu.Lock()
	u, ok := s.users[id]
	var stored string
	if ok {
		stored = u.PasswordHash
	}
	s.mu.Unlock()
	if !ok {
		return ErrUserNotFound
	}

	if err := cryptox.VerifyPassword(current, stored); err != nil {
		return ErrWrongPassword
	}
	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u.PasswordHash = hash
	for fp, rt := range s.refresh {
		if rt.UserID == id {
			delete(s.refresh, fp)
		}
	}
	return nil
}

// UpdateProfile applies the non-empty fields of req.
func (s *Service) UpdateProfile(id string, req adminsdk.UpdateProfileRequest) (adminsdk.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return adminsdk.User{}, ErrUserNotFound
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	for _, other := range s.users {
		if other.ID == id {
			continue
		}
		if email != "" && other.Email == email {
			return adminsdk.User{}, ErrEmailTaken
		}
		if req.Username != "" && strings.EqualFold(other.Username, req.Username) {
			return adminsdk.User{}, ErrUsernameTaken
		}
	}

	if req.DisplayName != "" {
		u.DisplayName = req.DisplayName
	}
	if req.Username != "" {
		u.Username = req.Username
	}
	if email != "" {
		u.Email = email
	}
	return u.view(), nil
}

func (s *Service) findLocked(identifier string) *user {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, identifier) || (u.Username != "" && strings.EqualFold(u.Username, identifier)) {
			return u
		}
	}
	return nil
}

func (u *user) hasActiveMethod() bool {
	for _, m := range u.Methods {
		if m.Active {
			return true
		}
	}
	return false
}

func (u *user) view() adminsdk.User {
	out := adminsdk.User{
		ID:           u.ID,
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		Username:     u.Username,
		Role:         u.Role,
		MustSetup2FA: u.MustSetup2FA,
	}
	for _, m := range u.Methods {
		cfg := adminsdk.TwoFactorConfig{
			ID:        m.ID,
			Type:      m.Type,
			IsActive:  m.Active,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		}
		if m.Email != "" {
			email := m.Email
			cfg.Email = &email
		}
		out.TwoFactorConfigs = append(out.TwoFactorConfigs, cfg)
	}
	sort.Slice(out.TwoFactorConfigs, func(i, j int) bool {
		return out.TwoFactorConfigs[i].Type < out.TwoFactorConfigs[j].Type
	})
	return out
}
