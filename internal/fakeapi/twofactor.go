package fakeapi

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
	"github.com/aussiebroadwan/backoffice/pkg/cryptox"
	"github.com/aussiebroadwan/backoffice/pkg/idx"
)

const (
	recoveryCodeCount = 10
	totpIssuer        = "Backoffice"
)

var (
	ErrInvalidCode       = errors.New("invalid verification code")
	ErrUnsupportedMethod = errors.New("unsupported two-factor method")
	ErrAlreadyEnabled    = errors.New("two-factor method is already enabled")
	ErrNotConfigured     = errors.New("two-factor method is not configured")
	ErrNoChallenge       = errors.New("no sign-in is awaiting verification")
)

// WaitError is returned when an emailed code is requested again too soon.
type WaitError struct {
	Seconds int
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("Please wait %d seconds before requesting a new code", e.Seconds)
}

// SetupData is what setup and regenerate hand back for TOTP.
type SetupData struct {
	Secret string
	URI    string
}

// HasChallenge reports whether userID signed in with a password and still
// owes a second factor.
func (s *Service) HasChallenge(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.challengeLocked(userID)
}

func (s *Service) challengeLocked(userID string) bool {
	exp, ok := s.challenges[userID]
	if !ok {
		return false
	}
	if s.opts.Now().After(exp) {
		delete(s.challenges, userID)
		return false
	}
	return true
}

// Setup starts enrollment of a method. TOTP creates (or returns the
// existing) pending secret; EMAIL sends a fresh code, subject to the
// resend interval.
func (s *Service) Setup(userID string, typ adminsdk.TwoFactorType) (SetupData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return SetupData{}, ErrUserNotFound
	}

	switch typ {
	case adminsdk.TwoFactorTOTP:
		m := u.Methods[typ]
		if m != nil && m.Active {
			return SetupData{}, ErrAlreadyEnabled
		}
		if m == nil {
			var err error
			if m, err = s.newTOTPMethod(u); err != nil {
				return SetupData{}, err
			}
			u.Methods[typ] = m
		}
		return SetupData{Secret: m.Secret, URI: m.URI}, nil

	case adminsdk.TwoFactorEmail:
		if u.Methods[typ] == nil {
			now := s.opts.Now()
			u.Methods[typ] = &method{
				ID:        idx.New().String(),
				Type:      typ,
				Email:     u.Email,
				CreatedAt: now,
				UpdatedAt: now,
			}
		}
		return SetupData{}, s.sendCodeLocked(u)

	default:
		return SetupData{}, ErrUnsupportedMethod
	}
}

// Regenerate replaces the pending TOTP secret.
func (s *Service) Regenerate(userID string) (SetupData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return SetupData{}, ErrUserNotFound
	}
	if m := u.Methods[adminsdk.TwoFactorTOTP]; m != nil && m.Active {
		return SetupData{}, ErrAlreadyEnabled
	}

	m, err := s.newTOTPMethod(u)
	if err != nil {
		return SetupData{}, err
	}
	u.Methods[adminsdk.TwoFactorTOTP] = m

	s.opts.Logger.Info("totp secret regenerated", "user_id", userID)
	return SetupData{Secret: m.Secret, URI: m.URI}, nil
}

// VerifyResult reports what a successful verify did.
type VerifyResult struct {
	User adminsdk.User
	// Tokens is only set when the verify completed a sign-in challenge.
	Tokens  adminsdk.TokenPair
	Enabled bool
}

// Verify checks code for typ. A pending method becomes active; a TOTP
// activation also mints recovery codes. When challenge is set the user's
// sign-in is completed and tokens are issued.
func (s *Service) Verify(userID string, typ adminsdk.TwoFactorType, code string, challenge bool) (VerifyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return VerifyResult{}, ErrUserNotFound
	}
	if challenge && !s.challengeLocked(userID) {
		return VerifyResult{}, ErrNoChallenge
	}

	var res VerifyResult
	switch typ {
	case adminsdk.TwoFactorRecovery:
		if !challenge {
			return VerifyResult{}, ErrUnsupportedMethod
		}
		code = strings.ToUpper(strings.TrimSpace(code))
		i := slices.Index(u.RecoveryCodes, code)
		if i < 0 {
			return VerifyResult{}, ErrInvalidCode
		}
		u.RecoveryCodes = slices.Delete(u.RecoveryCodes, i, i+1)

	case adminsdk.TwoFactorTOTP:
		m := u.Methods[typ]
		if m == nil {
			return VerifyResult{}, ErrNotConfigured
		}
		valid, err := totp.ValidateCustom(code, m.Secret, s.opts.Now(), totp.ValidateOpts{
			Period:    30,
			Skew:      1,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil || !valid {
			return VerifyResult{}, ErrInvalidCode
		}
		if !m.Active {
			codes, err := newRecoveryCodes()
			if err != nil {
				return VerifyResult{}, err
			}
			u.RecoveryCodes = codes
			res.Enabled = s.activateLocked(u, m)
		}

	case adminsdk.TwoFactorEmail:
		m := u.Methods[typ]
		if m == nil {
			return VerifyResult{}, ErrNotConfigured
		}
		sent, ok := s.outbox[userID]
		if !ok || s.opts.Now().After(sent.ExpiresAt) || sent.Code != strings.TrimSpace(code) {
			return VerifyResult{}, ErrInvalidCode
		}
		delete(s.outbox, userID)
		if !m.Active {
			res.Enabled = s.activateLocked(u, m)
		}

	default:
		return VerifyResult{}, ErrUnsupportedMethod
	}

	if challenge {
		delete(s.challenges, userID)
		pair, err := s.issueLocked(u)
		if err != nil {
			return VerifyResult{}, err
		}
		res.Tokens = pair
	}
	res.User = u.view()
	return res, nil
}

// Disable removes a configured method. Removing TOTP also drops the
// recovery codes.
func (s *Service) Disable(userID string, typ adminsdk.TwoFactorType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if _, ok := u.Methods[typ]; !ok {
		return ErrNotConfigured
	}

	delete(u.Methods, typ)
	if typ == adminsdk.TwoFactorTOTP {
		u.RecoveryCodes = nil
	}
	s.opts.Logger.Info("two-factor disabled", "user_id", userID, "type", typ)
	return nil
}

// RecoveryCodes returns the user's unused recovery codes.
func (s *Service) RecoveryCodes(userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return slices.Clone(u.RecoveryCodes), nil
}

// LastEmailCode is the outbox: the code most recently emailed to userID.
func (s *Service) LastEmailCode(userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sent, ok := s.outbox[userID]
	return sent.Code, ok
}

func (s *Service) newTOTPMethod(u *user) (*method, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: u.Email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}
	now := s.opts.Now()
	return &method{
		ID:        idx.New().String(),
		Type:      adminsdk.TwoFactorTOTP,
		Secret:    key.Secret(),
		URI:       key.URL(),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *Service) activateLocked(u *user, m *method) bool {
	m.Active = true
	m.UpdatedAt = s.opts.Now()
	u.MustSetup2FA = false
	s.opts.Logger.Info("two-factor enabled", "user_id", u.ID, "type", m.Type)
	return true
}

func (s *Service) sendCodeLocked(u *user) error {
	now := s.opts.Now()
	if prev, ok := s.outbox[u.ID]; ok {
		if wait := prev.SentAt.Add(s.opts.ResendInterval).Sub(now); wait > 0 {
			return &WaitError{Seconds: int(math.Ceil(wait.Seconds()))}
		}
	}

	code, err := cryptox.GenerateDigits(6)
	if err != nil {
		return err
	}
	s.outbox[u.ID] = emailCode{
		Code:      code,
		SentAt:    now,
		ExpiresAt: now.Add(s.opts.EmailCodeTTL),
	}
	s.opts.Logger.Info("verification code emailed", "user_id", u.ID, "to", u.Email)
	return nil
}

func newRecoveryCodes() ([]string, error) {
	codes := make([]string, recoveryCodeCount)
	for i := range codes {
		c, err := cryptox.GenerateRecoveryCode()
		if err != nil {
			return nil, err
		}
		codes[i] = c
	}
	return codes, nil
}
