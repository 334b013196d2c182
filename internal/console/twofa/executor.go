package twofa

import (
	"context"

	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
)

// API is the part of the backoffice client the 2FA workflows call.
type API interface {
	Setup2FA(ctx context.Context, req adminsdk.SetupRequest) (*adminsdk.SetupResult, error)
	RegenerateTOTPSecret(ctx context.Context, userID string) (*adminsdk.SetupResult, error)
	Verify2FA(ctx context.Context, req adminsdk.VerifyRequest) (*adminsdk.VerifyResult, error)
	RecoveryCodes(ctx context.Context) ([]string, error)
}

// Executor performs request effects and turns their outcome into events.
type Executor struct {
	API    API
	UserID string
}

// Execute runs one effect. Notify effects are not requests and return nil.
func (x Executor) Execute(ctx context.Context, eff Effect) Event {
	switch e := eff.(type) {
	case DoProvision:
		res, err := x.API.Setup2FA(ctx, adminsdk.SetupRequest{UserID: x.UserID, Type: e.Method})
		return ProvisionDone{Seq: e.Seq, Method: e.Method, Result: res, Err: err}

	case DoVerify:
		res, err := x.API.Verify2FA(ctx, adminsdk.VerifyRequest{UserID: x.UserID, Code: e.Code, Type: e.Method})
		return VerifyDone{Seq: e.Seq, Result: res, Err: err}

	case DoRegenerate:
		// The follow-up setup reads the secret regenerate just wrote, so the
		// two calls never overlap.
		if _, err := x.API.RegenerateTOTPSecret(ctx, x.UserID); err != nil {
			return RegenerateDone{Seq: e.Seq, Err: err}
		}
		res, err := x.API.Setup2FA(ctx, adminsdk.SetupRequest{UserID: x.UserID, Type: adminsdk.TwoFactorTOTP})
		return RegenerateDone{Seq: e.Seq, Result: res, Err: err}

	case DoResend:
		_, err := x.API.Setup2FA(ctx, adminsdk.SetupRequest{UserID: x.UserID, Type: adminsdk.TwoFactorEmail})
		return ResendDone{Seq: e.Seq, Err: err}
	}
	return nil
}
