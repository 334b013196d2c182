package twofa

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
)

// EnrollmentOptions wires an Enrollment to its owner.
type EnrollmentOptions struct {
	Logger *slog.Logger

	// OnChange is called after every transition.
	OnChange func(EnrollmentState)

	// OnComplete receives any tokens verify returned and, for TOTP, the
	// recovery codes fetched afterwards (nil if that fetch failed).
	OnComplete func(ctx context.Context, tokens adminsdk.TokenPair, recoveryCodes []string)

	OnCancel func(ctx context.Context)
}

// Enrollment drives ReduceEnrollment against the API.
type Enrollment struct {
	*driver[EnrollmentState]

	api  API
	opts EnrollmentOptions

	mu            sync.Mutex
	recoveryCodes []string
}

func NewEnrollment(api API, userID string, opts EnrollmentOptions) *Enrollment {
	e := &Enrollment{api: api, opts: opts}
	e.driver = newDriver(NewEnrollmentState(), ReduceEnrollment, Executor{API: api, UserID: userID}, opts.Logger)
	e.driver.onChange = opts.OnChange
	e.driver.onEffect = e.notify
	return e
}

// RecoveryCodes returns the codes fetched after a TOTP enrollment completed.
func (e *Enrollment) RecoveryCodes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recoveryCodes
}

func (e *Enrollment) notify(ctx context.Context, eff Effect) {
	switch n := eff.(type) {
	case NotifyComplete:
		var codes []string
		if e.State().Pending.Method == adminsdk.TwoFactorTOTP {
			codes = FetchRecoveryCodes(ctx, e.api, e.logger)
			e.mu.Lock()
			e.recoveryCodes = codes
			e.mu.Unlock()
		}
		e.logger.Info("second factor enrolled", "method", e.State().Pending.Method)
		if e.opts.OnComplete != nil {
			e.opts.OnComplete(ctx, n.Tokens, codes)
		}
	case NotifyCancel:
		e.logger.Info("second factor enrollment cancelled")
		if e.opts.OnCancel != nil {
			e.opts.OnCancel(ctx)
		}
	}
}

// FetchRecoveryCodes fetches recovery codes, logging and returning nil on
// failure.
func FetchRecoveryCodes(ctx context.Context, api API, logger *slog.Logger) []string {
	codes, err := api.RecoveryCodes(ctx)
	if err != nil {
		logger.Warn("fetch recovery codes failed", "err", err)
		return nil
	}
	return codes
}

// VerificationOptions wires a Verification to its owner.
type VerificationOptions struct {
	Logger     *slog.Logger
	OnChange   func(VerificationState)
	OnComplete func(ctx context.Context, tokens adminsdk.TokenPair)
	OnCancel   func(ctx context.Context)
}

// Verification drives ReduceVerification against the API.
type Verification struct {
	*driver[VerificationState]
	opts VerificationOptions
}

func NewVerification(api API, userID string, opts VerificationOptions) *Verification {
	v := &Verification{opts: opts}
	v.driver = newDriver(NewVerificationState(), ReduceVerification, Executor{API: api, UserID: userID}, opts.Logger)
	v.driver.onChange = opts.OnChange
	v.driver.onEffect = v.notify
	return v
}

func (v *Verification) notify(ctx context.Context, eff Effect) {
	switch n := eff.(type) {
	case NotifyComplete:
		v.logger.Info("second factor verified", "method", v.State().Method)
		if v.opts.OnComplete != nil {
			v.opts.OnComplete(ctx, n.Tokens)
		}
	case NotifyCancel:
		v.logger.Info("second factor challenge cancelled")
		if v.opts.OnCancel != nil {
			v.opts.OnCancel(ctx)
		}
	}
}
