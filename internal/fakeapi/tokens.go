package fakeapi

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
	"github.com/aussiebroadwan/backoffice/pkg/cryptox"
	"github.com/aussiebroadwan/backoffice/pkg/idx"
)

var errUnknownSubject = errors.New("token subject does not exist")

// issueLocked signs an HS256 access token and stores a fresh refresh token.
// The caller holds s.mu.
func (s *Service) issueLocked(u *user) (adminsdk.TokenPair, error) {
	now := s.opts.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.opts.Issuer,
		Subject:   u.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.AccessTTL)),
		ID:        idx.New().String(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return adminsdk.TokenPair{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return adminsdk.TokenPair{}, err
	}
	s.refresh[cryptox.FingerprintToken(refresh)] = refreshToken{
		UserID:    u.ID,
		ExpiresAt: now.Add(s.opts.RefreshTTL),
	}

	return adminsdk.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccessToken checks signature, issuer and expiry and returns the
// subject. It satisfies httpx.TokenVerifier.
func (s *Service) VerifyAccessToken(raw string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return s.signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.opts.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.opts.Now),
	)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	_, ok := s.users[claims.Subject]
	s.mu.Unlock()
	if !ok {
		return "", errUnknownSubject
	}
	return claims.Subject, nil
}
