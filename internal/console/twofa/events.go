package twofa

import "github.com/aussiebroadwan/backoffice/pkg/adminsdk"

// Method is a second-factor method.
type Method = adminsdk.TwoFactorType

// Cooldowns, in seconds.
const (
	ResendCooldown     = 60
	RegenerateCooldown = 300
)

// Event is an input to a workflow reducer: a user action, a timer tick, or
// the result of an effect.
type Event interface{ event() }

// User actions.
type (
	SelectMethod      struct{ Method Method }
	SubmitMethod      struct{}
	EditCode          struct{ Input string }
	SubmitCode        struct{}
	RequestRegenerate struct{}
	RequestResend     struct{}
	Cancel            struct{}
)

// Tick is sent once per second while a workflow is displayed.
type Tick struct{}

// Effect results. Seq ties a result to the request that produced it; a
// result whose Seq is no longer current is dropped.
type (
	ProvisionDone struct {
		Seq    uint64
		Method Method
		Result *adminsdk.SetupResult
		Err    error
	}
	VerifyDone struct {
		Seq    uint64
		Result *adminsdk.VerifyResult
		Err    error
	}
	RegenerateDone struct {
		Seq    uint64
		Result *adminsdk.SetupResult
		Err    error
	}
	ResendDone struct {
		Seq uint64
		Err error
	}
)

func (SelectMethod) event()      {}
func (SubmitMethod) event()      {}
func (EditCode) event()          {}
func (SubmitCode) event()        {}
func (RequestRegenerate) event() {}
func (RequestResend) event()     {}
func (Cancel) event()            {}
func (Tick) event()              {}
func (ProvisionDone) event()     {}
func (VerifyDone) event()        {}
func (RegenerateDone) event()    {}
func (ResendDone) event()        {}

// Effect is work a reducer asks its driver to do.
type Effect interface{ effect() }

type (
	// DoProvision calls setup for Method.
	DoProvision struct {
		Seq    uint64
		Method Method
	}
	// DoVerify submits Code for Method.
	DoVerify struct {
		Seq    uint64
		Method Method
		Code   string
	}
	// DoRegenerate regenerates the TOTP secret and then provisions again,
	// one after the other.
	DoRegenerate struct{ Seq uint64 }
	// DoResend asks the backend to email a fresh code.
	DoResend struct{ Seq uint64 }
	// NotifyComplete reports success to the owner of the workflow.
	NotifyComplete struct{ Tokens adminsdk.TokenPair }
	// NotifyCancel reports cancellation to the owner of the workflow.
	NotifyCancel struct{}
)

func (DoProvision) effect()    {}
func (DoVerify) effect()       {}
func (DoRegenerate) effect()   {}
func (DoResend) effect()       {}
func (NotifyComplete) effect() {}
func (NotifyCancel) effect()   {}
