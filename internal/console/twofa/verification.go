package twofa

import (
	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
)

// VerificationState is the post-login challenge. The method is chosen per
// attempt and never persisted.
type VerificationState struct {
	Step   Step
	Method Method
	Code   string

	ResendCooldownSeconds int

	Busy   bool
	Error  string
	Notice string

	// Tokens is set once a verify response carried an access token.
	Tokens adminsdk.TokenPair

	Seq uint64
}

// NewVerificationState starts the challenge at method selection.
func NewVerificationState() VerificationState {
	return VerificationState{Step: StepMethodSelect}
}

func (s VerificationState) validCode() bool {
	if s.Method == adminsdk.TwoFactorRecovery {
		return ValidRecoveryCode(s.Code)
	}
	return ValidCode(s.Code)
}

// CanVerify is true iff a method is chosen, the code is well formed and
// nothing is in flight.
func (s VerificationState) CanVerify() bool {
	return s.Step == StepCodeEntry && !s.Busy && s.validCode()
}

func (s VerificationState) CanResend() bool {
	return s.Step == StepCodeEntry && s.Method == adminsdk.TwoFactorEmail &&
		!s.Busy && s.ResendCooldownSeconds == 0
}

// ReduceVerification is the challenge state machine:
//
//	MethodSelect -> CodeEntry -> Complete
//
// Selecting EMAIL sends a code. A verify response without an access token
// is reported as ErrMissingToken and does not complete.
func ReduceVerification(s VerificationState, ev Event) (VerificationState, []Effect) {
	if s.Step.Terminal() {
		return s, nil
	}

	switch e := ev.(type) {
	case Cancel:
		return VerificationState{Step: StepCancelled, Seq: s.Seq + 1}, []Effect{NotifyCancel{}}

	case Tick:
		if s.ResendCooldownSeconds > 0 {
			s.ResendCooldownSeconds--
		}

	case SelectMethod:
		switch e.Method {
		case adminsdk.TwoFactorTOTP, adminsdk.TwoFactorEmail, adminsdk.TwoFactorRecovery:
		default:
			return s, nil
		}
		if s.Busy {
			return s, nil
		}
		s.Method = e.Method
		s.Step = StepCodeEntry
		s.Code = ""
		s.Error = ""
		s.Notice = ""
		if e.Method == adminsdk.TwoFactorEmail && s.ResendCooldownSeconds == 0 {
			s.Seq++
			s.Busy = true
			return s, []Effect{DoResend{Seq: s.Seq}}
		}

	case EditCode:
		if s.Step != StepCodeEntry {
			return s, nil
		}
		if s.Method == adminsdk.TwoFactorRecovery {
			s.Code = SanitizeRecoveryCode(e.Input)
		} else {
			s.Code = SanitizeCode(e.Input)
		}
		s.Error = ""

	case SubmitCode:
		if s.Busy {
			return s, nil
		}
		if s.Step != StepCodeEntry {
			s.Error = ErrNoMethod.Error()
			return s, nil
		}
		if !s.validCode() {
			if s.Method == adminsdk.TwoFactorRecovery {
				s.Error = ErrInvalidRecoveryCode.Error()
			} else {
				s.Error = ErrInvalidCode.Error()
			}
			return s, nil
		}
		s.Seq++
		s.Busy = true
		s.Error = ""
		return s, []Effect{DoVerify{Seq: s.Seq, Method: s.Method, Code: s.Code}}

	case VerifyDone:
		if e.Seq != s.Seq {
			return s, nil
		}
		s.Busy = false
		switch {
		case e.Err != nil:
			s.Error = adminsdk.Message(e.Err)
		case e.Result == nil || !e.Result.Success:
			msg := ""
			if e.Result != nil {
				msg = e.Result.Message
			}
			s.Error = failureMessage(msg, "Invalid verification code")
		case e.Result.AccessToken == "":
			s.Error = ErrMissingToken.Error()
		default:
			s.Tokens = e.Result.TokenPair
			s.Step = StepComplete
			s.Error = ""
			return s, []Effect{NotifyComplete{Tokens: s.Tokens}}
		}

	case RequestResend:
		if !s.CanResend() {
			return s, nil
		}
		s.Seq++
		s.Busy = true
		s.Error = ""
		s.Notice = ""
		return s, []Effect{DoResend{Seq: s.Seq}}

	case ResendDone:
		if e.Seq != s.Seq {
			return s, nil
		}
		s.Busy = false
		if e.Err != nil {
			s.Error = adminsdk.Message(e.Err)
			if adminsdk.IsRateLimited(e.Err) {
				s.ResendCooldownSeconds = ResendCooldown
			}
			return s, nil
		}
		s.ResendCooldownSeconds = ResendCooldown
		s.Notice = "A verification code has been sent to your email"
	}
	return s, nil
}
