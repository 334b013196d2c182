package twofa

import (
	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
)

// PendingEnrollment is the in-memory payload of an enrollment in progress.
// It is discarded when the workflow completes or is cancelled.
type PendingEnrollment struct {
	Method           Method
	Secret           string
	QRCodeURI        string
	VerificationCode string

	ResendCooldownSeconds     int
	RegenerateCooldownSeconds int
}

// EnrollmentState is the whole state of the enrollment workflow.
type EnrollmentState struct {
	Step    Step
	Pending PendingEnrollment

	// Busy is set while an effect is in flight.
	Busy bool

	Error  string
	Notice string

	// Tokens holds whatever verify returned, handed on at completion.
	Tokens adminsdk.TokenPair

	// Seq numbers requests; results for an older Seq are stale.
	Seq uint64
}

// NewEnrollmentState starts at method selection with nothing chosen.
func NewEnrollmentState() EnrollmentState {
	return EnrollmentState{Step: StepMethodSelect}
}

func (s EnrollmentState) codeStep() bool {
	return s.Step == StepAuthenticatorSetup || s.Step == StepEmailVerify
}

// CanVerify is true iff the code is exactly six digits and nothing is in flight.
func (s EnrollmentState) CanVerify() bool {
	return s.codeStep() && !s.Busy && ValidCode(s.Pending.VerificationCode)
}

func (s EnrollmentState) CanResend() bool {
	return s.Step == StepEmailVerify && !s.Busy && s.Pending.ResendCooldownSeconds == 0
}

func (s EnrollmentState) CanRegenerate() bool {
	return s.Step == StepAuthenticatorSetup && !s.Busy && s.Pending.RegenerateCooldownSeconds == 0
}

// ReduceEnrollment is the enrollment state machine:
//
//	MethodSelect -> Provisioning -> AuthenticatorSetup | EmailVerify -> Complete
//
// with Cancelled reachable from every non-terminal step. It never performs
// I/O; requests come back as effects and their results as events.
func ReduceEnrollment(s EnrollmentState, ev Event) (EnrollmentState, []Effect) {
	if s.Step.Terminal() {
		return s, nil
	}

	switch ev.(type) {
	case Cancel:
		return EnrollmentState{Step: StepCancelled, Seq: s.Seq + 1}, []Effect{NotifyCancel{}}

	case Tick:
		if s.Pending.ResendCooldownSeconds > 0 {
			s.Pending.ResendCooldownSeconds--
		}
		if s.Pending.RegenerateCooldownSeconds > 0 {
			s.Pending.RegenerateCooldownSeconds--
		}
		return s, nil
	}

	switch s.Step {
	case StepMethodSelect:
		return reduceMethodSelect(s, ev)
	case StepProvisioning:
		return reduceProvisioning(s, ev)
	case StepAuthenticatorSetup, StepEmailVerify:
		return reduceCodeStep(s, ev)
	}
	return s, nil
}

func reduceMethodSelect(s EnrollmentState, ev Event) (EnrollmentState, []Effect) {
	switch e := ev.(type) {
	case SelectMethod:
		if e.Method != adminsdk.TwoFactorTOTP && e.Method != adminsdk.TwoFactorEmail {
			return s, nil
		}
		s.Pending.Method = e.Method
		s.Error = ""

	case SubmitMethod:
		if s.Pending.Method == "" {
			s.Error = ErrNoMethod.Error()
			return s, nil
		}
		s.Seq++
		s.Step = StepProvisioning
		s.Busy = true
		s.Error = ""
		s.Notice = ""
		return s, []Effect{DoProvision{Seq: s.Seq, Method: s.Pending.Method}}
	}
	return s, nil
}

func reduceProvisioning(s EnrollmentState, ev Event) (EnrollmentState, []Effect) {
	e, ok := ev.(ProvisionDone)
	if !ok || e.Seq != s.Seq {
		return s, nil
	}
	s.Busy = false

	if e.Err != nil {
		s.Error = adminsdk.Message(e.Err)
		if s.Pending.Method == adminsdk.TwoFactorEmail {
			// Still advance so the user can ask for the code again.
			s.Step = StepEmailVerify
			s.Pending.ResendCooldownSeconds = 0
			return s, nil
		}
		s.Step = StepMethodSelect
		return s, nil
	}

	switch s.Pending.Method {
	case adminsdk.TwoFactorTOTP:
		s.Step = StepAuthenticatorSetup
		applySetup(&s.Pending, e.Result)
	case adminsdk.TwoFactorEmail:
		s.Step = StepEmailVerify
		s.Pending.ResendCooldownSeconds = ResendCooldown
		s.Notice = "A verification code has been sent to your email"
		if e.Result != nil && e.Result.Message != "" {
			s.Notice = e.Result.Message
		}
	}
	return s, nil
}

func reduceCodeStep(s EnrollmentState, ev Event) (EnrollmentState, []Effect) {
	switch e := ev.(type) {
	case EditCode:
		s.Pending.VerificationCode = SanitizeCode(e.Input)
		s.Error = ""

	case SubmitCode:
		if s.Busy {
			return s, nil
		}
		if !ValidCode(s.Pending.VerificationCode) {
			s.Error = ErrInvalidCode.Error()
			return s, nil
		}
		s.Seq++
		s.Busy = true
		s.Error = ""
		return s, []Effect{DoVerify{Seq: s.Seq, Method: s.Pending.Method, Code: s.Pending.VerificationCode}}

	case VerifyDone:
		if e.Seq != s.Seq {
			return s, nil
		}
		s.Busy = false
		if e.Err != nil {
			s.Error = adminsdk.Message(e.Err)
			return s, nil
		}
		if e.Result != nil && !e.Result.Success {
			s.Error = failureMessage(e.Result.Message, "Invalid verification code")
			return s, nil
		}
		if e.Result != nil {
			s.Tokens = e.Result.TokenPair
		}
		s.Step = StepComplete
		s.Error = ""
		s.Notice = ""
		// The secret is no longer needed; only the method is kept.
		s.Pending = PendingEnrollment{Method: s.Pending.Method}
		return s, []Effect{NotifyComplete{Tokens: s.Tokens}}

	case RequestRegenerate:
		if !s.CanRegenerate() {
			return s, nil
		}
		s.Seq++
		s.Busy = true
		s.Error = ""
		s.Notice = ""
		return s, []Effect{DoRegenerate{Seq: s.Seq}}

	case RegenerateDone:
		if e.Seq != s.Seq {
			return s, nil
		}
		s.Busy = false
		if e.Err != nil {
			s.Error = adminsdk.Message(e.Err)
			if adminsdk.IsRateLimited(e.Err) {
				s.Pending.RegenerateCooldownSeconds = RegenerateCooldown
			}
			return s, nil
		}
		applySetup(&s.Pending, e.Result)
		s.Pending.VerificationCode = ""
		s.Notice = "A new secret has been generated. Scan the new QR code."

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
				s.Pending.ResendCooldownSeconds = ResendCooldown
			}
			return s, nil
		}
		s.Pending.ResendCooldownSeconds = ResendCooldown
		s.Notice = "A new code has been sent"
	}
	return s, nil
}

// applySetup copies the secret and URI from a setup result, recovering the
// secret from the URI when only the URI came back.
func applySetup(p *PendingEnrollment, res *adminsdk.SetupResult) {
	if res == nil {
		return
	}
	p.Secret = res.Secret
	p.QRCodeURI = res.QRCodeURI
	if p.Secret == "" {
		p.Secret = SecretFromURI(res.QRCodeURI)
	}
}

func failureMessage(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
