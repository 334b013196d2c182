package twofa

// Step is the screen a workflow is on.
type Step int

const (
	StepMethodSelect Step = iota
	StepProvisioning
	StepAuthenticatorSetup
	StepEmailVerify
	StepCodeEntry // verification workflow only
	StepComplete
	StepCancelled
)

var stepNames = map[Step]string{
	StepMethodSelect:       "method-select",
	StepProvisioning:       "provisioning",
	StepAuthenticatorSetup: "authenticator-setup",
	StepEmailVerify:        "email-verify",
	StepCodeEntry:          "code-entry",
	StepComplete:           "complete",
	StepCancelled:          "cancelled",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further events are accepted.
func (s Step) Terminal() bool {
	return s == StepComplete || s == StepCancelled
}
