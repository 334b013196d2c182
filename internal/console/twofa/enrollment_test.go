package twofa

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
)

const testURI = "otpauth://totp/Backoffice:ada@example.com?secret=JBSWY3DPEHPK3PXP&issuer=Backoffice"

// run feeds events through the reducer and collects every effect.
func run(s EnrollmentState, events ...Event) (EnrollmentState, []Effect) {
	var all []Effect
	for _, ev := range events {
		var effs []Effect
		s, effs = ReduceEnrollment(s, ev)
		all = append(all, effs...)
	}
	return s, all
}

func atAuthenticatorSetup(t *testing.T) EnrollmentState {
	t.Helper()
	s, _ := run(NewEnrollmentState(), SelectMethod{Method: adminsdk.TwoFactorTOTP}, SubmitMethod{})
	s, _ = run(s, ProvisionDone{Seq: s.Seq, Method: adminsdk.TwoFactorTOTP, Result: &adminsdk.SetupResult{Secret: "S", QRCodeURI: testURI}})
	require.Equal(t, StepAuthenticatorSetup, s.Step)
	return s
}

func atEmailVerify(t *testing.T) EnrollmentState {
	t.Helper()
	s, _ := run(NewEnrollmentState(), SelectMethod{Method: adminsdk.TwoFactorEmail}, SubmitMethod{})
	s, _ = run(s, ProvisionDone{Seq: s.Seq, Method: adminsdk.TwoFactorEmail, Result: &adminsdk.SetupResult{}})
	require.Equal(t, StepEmailVerify, s.Step)
	return s
}

func TestSubmitWithoutMethod(t *testing.T) {
	t.Parallel()

	s, effs := run(NewEnrollmentState(), SubmitMethod{})
	require.Equal(t, StepMethodSelect, s.Step)
	require.Empty(t, effs)
	require.Equal(t, ErrNoMethod.Error(), s.Error)

	s, effs = run(s, SelectMethod{Method: adminsdk.TwoFactorRecovery})
	require.Empty(t, s.Pending.Method, "recovery codes cannot be enrolled")
	require.Empty(t, effs)
}

func TestProvisionTOTP(t *testing.T) {
	t.Parallel()

	s, effs := run(NewEnrollmentState(), SelectMethod{Method: adminsdk.TwoFactorTOTP}, SubmitMethod{})
	require.Equal(t, StepProvisioning, s.Step)
	require.True(t, s.Busy)
	require.Equal(t, []Effect{DoProvision{Seq: s.Seq, Method: adminsdk.TwoFactorTOTP}}, effs)

	t.Run("success carries secret and uri", func(t *testing.T) {
		t.Parallel()
		next, _ := ReduceEnrollment(s, ProvisionDone{Seq: s.Seq, Result: &adminsdk.SetupResult{QRCodeURI: testURI}})
		require.Equal(t, StepAuthenticatorSetup, next.Step)
		require.False(t, next.Busy)
		require.Equal(t, testURI, next.Pending.QRCodeURI)
		require.Equal(t, "JBSWY3DPEHPK3PXP", next.Pending.Secret, "secret recovered from the uri")
	})

	t.Run("failure returns to method select", func(t *testing.T) {
		t.Parallel()
		next, _ := ReduceEnrollment(s, ProvisionDone{Seq: s.Seq, Err: &adminsdk.APIError{StatusCode: 500, Message: "boom"}})
		require.Equal(t, StepMethodSelect, next.Step)
		require.Equal(t, "boom", next.Error)
	})

	t.Run("stale result ignored", func(t *testing.T) {
		t.Parallel()
		next, _ := ReduceEnrollment(s, ProvisionDone{Seq: s.Seq - 1, Result: &adminsdk.SetupResult{}})
		require.Equal(t, StepProvisioning, next.Step)
		require.True(t, next.Busy)
	})
}

func TestProvisionEmail(t *testing.T) {
	t.Parallel()

	s, _ := run(NewEnrollmentState(), SelectMethod{Method: adminsdk.TwoFactorEmail}, SubmitMethod{})

	t.Run("success starts a 60 second resend cooldown", func(t *testing.T) {
		t.Parallel()
		next, _ := ReduceEnrollment(s, ProvisionDone{Seq: s.Seq, Result: &adminsdk.SetupResult{Message: "Code sent"}})
		require.Equal(t, StepEmailVerify, next.Step)
		require.Equal(t, ResendCooldown, next.Pending.ResendCooldownSeconds)
		require.Equal(t, "Code sent", next.Notice)
		require.False(t, next.CanResend())
	})

	t.Run("failure still advances with resend available", func(t *testing.T) {
		t.Parallel()
		next, _ := ReduceEnrollment(s, ProvisionDone{Seq: s.Seq, Err: errors.New("mail down")})
		require.Equal(t, StepEmailVerify, next.Step)
		require.Equal(t, "mail down", next.Error)
		require.Zero(t, next.Pending.ResendCooldownSeconds)
		require.True(t, next.CanResend())
	})
}

func TestResendCooldownCountsDownToExactlySixtySeconds(t *testing.T) {
	t.Parallel()

	s := atEmailVerify(t)
	for i := 1; i < ResendCooldown; i++ {
		s, _ = ReduceEnrollment(s, Tick{})
		require.False(t, s.CanResend(), "still cooling down at T+%ds", i)
		require.Equal(t, ResendCooldown-i, s.Pending.ResendCooldownSeconds)
	}
	s, _ = ReduceEnrollment(s, Tick{})
	require.True(t, s.CanResend(), "enabled at T+60s")

	s, _ = ReduceEnrollment(s, Tick{})
	require.Zero(t, s.Pending.ResendCooldownSeconds, "never goes negative")
}

func TestResend(t *testing.T) {
	t.Parallel()

	s := atEmailVerify(t)
	blocked, effs := ReduceEnrollment(s, RequestResend{})
	require.Empty(t, effs, "blocked while cooling down")
	require.Equal(t, s, blocked)

	s.Pending.ResendCooldownSeconds = 0
	s, effs = ReduceEnrollment(s, RequestResend{})
	require.Equal(t, []Effect{DoResend{Seq: s.Seq}}, effs)

	s, _ = ReduceEnrollment(s, ResendDone{Seq: s.Seq})
	require.Equal(t, ResendCooldown, s.Pending.ResendCooldownSeconds)
	require.False(t, s.Busy)
}

func TestVerifyRequiresSixDigits(t *testing.T) {
	t.Parallel()

	s := atAuthenticatorSetup(t)

	s, _ = ReduceEnrollment(s, EditCode{Input: "12a34"})
	require.Equal(t, "1234", s.Pending.VerificationCode)
	require.False(t, s.CanVerify())

	s, effs := ReduceEnrollment(s, SubmitCode{})
	require.Empty(t, effs, "no network call for a short code")
	require.Equal(t, ErrInvalidCode.Error(), s.Error)

	s, _ = ReduceEnrollment(s, EditCode{Input: "123 456 7"})
	require.Equal(t, "123456", s.Pending.VerificationCode)
	require.True(t, s.CanVerify())
	require.Empty(t, s.Error)

	s, effs = ReduceEnrollment(s, SubmitCode{})
	require.Equal(t, []Effect{DoVerify{Seq: s.Seq, Method: adminsdk.TwoFactorTOTP, Code: "123456"}}, effs)
	require.False(t, s.CanVerify(), "disabled while in flight")
}

func TestVerifyOutcome(t *testing.T) {
	t.Parallel()

	s := atAuthenticatorSetup(t)
	s, _ = run(s, EditCode{Input: "123456"}, SubmitCode{})

	t.Run("failure keeps the step and code", func(t *testing.T) {
		t.Parallel()
		next, effs := ReduceEnrollment(s, VerifyDone{Seq: s.Seq, Err: &adminsdk.APIError{StatusCode: 400, Message: "Invalid code"}})
		require.Empty(t, effs)
		require.Equal(t, StepAuthenticatorSetup, next.Step)
		require.Equal(t, "Invalid code", next.Error)
		require.Equal(t, "123456", next.Pending.VerificationCode)
		require.True(t, next.CanVerify())
	})

	t.Run("success false in body", func(t *testing.T) {
		t.Parallel()
		next, _ := ReduceEnrollment(s, VerifyDone{Seq: s.Seq, Result: &adminsdk.VerifyResult{Success: false}})
		require.Equal(t, StepAuthenticatorSetup, next.Step)
		require.NotEmpty(t, next.Error)
	})

	t.Run("success completes", func(t *testing.T) {
		t.Parallel()
		res := &adminsdk.VerifyResult{Success: true, TokenPair: adminsdk.TokenPair{AccessToken: "full"}}
		next, effs := ReduceEnrollment(s, VerifyDone{Seq: s.Seq, Result: res})
		require.Equal(t, StepComplete, next.Step)
		require.Equal(t, []Effect{NotifyComplete{Tokens: adminsdk.TokenPair{AccessToken: "full"}}}, effs)
		require.Empty(t, next.Pending.Secret, "pending enrollment discarded")
		require.Equal(t, adminsdk.TwoFactorTOTP, next.Pending.Method)
	})
}

func TestRegenerate(t *testing.T) {
	t.Parallel()

	s := atAuthenticatorSetup(t)
	s, effs := ReduceEnrollment(s, RequestRegenerate{})
	require.Equal(t, []Effect{DoRegenerate{Seq: s.Seq}}, effs)

	t.Run("success swaps the secret", func(t *testing.T) {
		t.Parallel()
		next, _ := ReduceEnrollment(s, RegenerateDone{Seq: s.Seq, Result: &adminsdk.SetupResult{Secret: "NEW", QRCodeURI: "otpauth://totp/x?secret=NEW"}})
		require.Equal(t, "NEW", next.Pending.Secret)
		require.Zero(t, next.Pending.RegenerateCooldownSeconds)
		require.True(t, next.CanRegenerate())
	})

	rateLimited := []error{
		&adminsdk.APIError{StatusCode: 400, Message: "Too many regeneration attempts"},
		&adminsdk.APIError{StatusCode: 400, Message: "Please wait before regenerating"},
		&adminsdk.APIError{StatusCode: http.StatusTooManyRequests},
	}
	for _, err := range rateLimited {
		t.Run("rate limited: "+err.Error(), func(t *testing.T) {
			t.Parallel()
			next, _ := ReduceEnrollment(s, RegenerateDone{Seq: s.Seq, Err: err})
			require.Equal(t, RegenerateCooldown, next.Pending.RegenerateCooldownSeconds)
			require.False(t, next.CanRegenerate())

			for range RegenerateCooldown - 1 {
				next, _ = ReduceEnrollment(next, Tick{})
			}
			require.False(t, next.CanRegenerate())
			next, _ = ReduceEnrollment(next, Tick{})
			require.True(t, next.CanRegenerate(), "enabled after 300 seconds")
		})
	}

	t.Run("other failure has no cooldown", func(t *testing.T) {
		t.Parallel()
		next, _ := ReduceEnrollment(s, RegenerateDone{Seq: s.Seq, Err: errors.New("server exploded")})
		require.Zero(t, next.Pending.RegenerateCooldownSeconds)
		require.Equal(t, "server exploded", next.Error)
	})
}

func TestCancelFromEveryNonTerminalStep(t *testing.T) {
	t.Parallel()

	provisioning, _ := run(NewEnrollmentState(), SelectMethod{Method: adminsdk.TwoFactorTOTP}, SubmitMethod{})
	states := map[string]EnrollmentState{
		"method select":       NewEnrollmentState(),
		"provisioning":        provisioning,
		"authenticator setup": atAuthenticatorSetup(t),
		"email verify":        atEmailVerify(t),
	}

	for name, s := range states {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			next, effs := ReduceEnrollment(s, Cancel{})
			require.Equal(t, StepCancelled, next.Step)
			require.Equal(t, []Effect{NotifyCancel{}}, effs)
			require.Empty(t, next.Pending.Secret)

			// Late results and further input are dropped.
			after, effs := ReduceEnrollment(next, ProvisionDone{Seq: s.Seq, Result: &adminsdk.SetupResult{}})
			require.Empty(t, effs)
			require.Equal(t, next, after)
		})
	}
}
