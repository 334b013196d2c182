package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aussiebroadwan/backoffice/internal/console/twofa"
	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
)

// workflowGen numbers workflow instances so messages from a closed one
// are dropped.
var workflowGen atomic.Uint64

var methodLabels = map[twofa.Method]string{
	adminsdk.TwoFactorTOTP:     "Authenticator app",
	adminsdk.TwoFactorEmail:    "Email code",
	adminsdk.TwoFactorRecovery: "Recovery code",
}

type workflowMsg struct {
	gen uint64
}

type tickMsg struct {
	gen uint64
}

// completion is written by the workflow callbacks, which run inside a
// command, and read back on the update loop.
type completion struct {
	mu      sync.Mutex
	err     error
	outcome string
}

func (c *completion) set(outcome string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcome, c.err = outcome, err
}

func (c *completion) get() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome, c.err
}

// twoFactorModel shows either the enrollment or the post-login challenge.
type twoFactorModel struct {
	ctx    context.Context
	gen    uint64
	logger *slog.Logger

	enroll *twofa.Enrollment
	verify *twofa.Verification
	result *completion

	methods []twofa.Method
	cursor  int
	input   textinput.Model

	// codes are the recovery codes shown once after a TOTP enrollment.
	codes []string
	done  bool
}

func newTwoFactorModel(ctx context.Context, opts Options, userID string, challenge bool) twoFactorModel {
	in := textinput.New()
	in.Placeholder = "123456"
	in.CharLimit = 16
	in.Width = 20

	t := twoFactorModel{
		ctx:    ctx,
		gen:    workflowGen.Add(1),
		logger: opts.Logger,
		result: &completion{},
		input:  in,
	}
	sess := opts.Session
	res := t.result

	if challenge {
		t.methods = []twofa.Method{adminsdk.TwoFactorTOTP, adminsdk.TwoFactorEmail, adminsdk.TwoFactorRecovery}
		t.verify = twofa.NewVerification(opts.TwoFactor, userID, twofa.VerificationOptions{
			Logger: opts.Logger,
			OnComplete: func(ctx context.Context, tokens adminsdk.TokenPair) {
				res.set("Signed in", sess.CompleteTwoFactor(ctx, tokens))
			},
			OnCancel: func(ctx context.Context) {
				sess.AbandonTwoFactor(ctx)
				res.set("Sign-in cancelled", nil)
			},
		})
		return t
	}

	// An enrollment the server demanded cannot be skipped; cancelling it
	// signs the user out.
	mandatory := sess.PendingSecondFactor()
	t.methods = []twofa.Method{adminsdk.TwoFactorTOTP, adminsdk.TwoFactorEmail}
	t.enroll = twofa.NewEnrollment(opts.TwoFactor, userID, twofa.EnrollmentOptions{
		Logger: opts.Logger,
		OnComplete: func(ctx context.Context, tokens adminsdk.TokenPair, _ []string) {
			res.set("Two-factor authentication enabled", sess.CompleteTwoFactor(ctx, tokens))
		},
		OnCancel: func(ctx context.Context) {
			if mandatory {
				sess.AbandonTwoFactor(ctx)
			}
			res.set("Two-factor setup cancelled", nil)
		},
	})
	return t
}

func (t twoFactorModel) active() bool {
	return (t.enroll != nil || t.verify != nil) && !t.done
}

func (t twoFactorModel) finished() bool {
	return t.done
}

// capturing is true while the workflow owns the keyboard.
func (t twoFactorModel) capturing() bool {
	return t.active()
}

func (t twoFactorModel) close() {
	if t.enroll != nil {
		t.enroll.Close()
	}
	if t.verify != nil {
		t.verify.Close()
	}
}

func (t twoFactorModel) step() twofa.Step {
	switch {
	case t.enroll != nil:
		return t.enroll.State().Step
	case t.verify != nil:
		return t.verify.State().Step
	}
	return twofa.StepMethodSelect
}

func (t twoFactorModel) codeEntry() bool {
	switch t.step() {
	case twofa.StepAuthenticatorSetup, twofa.StepEmailVerify, twofa.StepCodeEntry:
		return true
	}
	return false
}

func (t twoFactorModel) code() string {
	switch {
	case t.enroll != nil:
		return t.enroll.State().Pending.VerificationCode
	case t.verify != nil:
		return t.verify.State().Code
	}
	return ""
}

func (t twoFactorModel) tickCmd() tea.Cmd {
	gen := t.gen
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

// tick runs on the update loop; a Tick never produces effects.
func (t twoFactorModel) tick() twoFactorModel {
	switch {
	case t.enroll != nil:
		t.enroll.Dispatch(t.ctx, twofa.Tick{})
	case t.verify != nil:
		t.verify.Dispatch(t.ctx, twofa.Tick{})
	}
	return t
}

// dispatchCmd sends ev from a command, since it may reach the network.
func (t twoFactorModel) dispatchCmd(ev twofa.Event) tea.Cmd {
	ctx, gen := t.ctx, t.gen
	enroll, verify := t.enroll, t.verify
	return func() tea.Msg {
		if enroll != nil {
			enroll.Dispatch(ctx, ev)
		} else if verify != nil {
			verify.Dispatch(ctx, ev)
		}
		return workflowMsg{gen: gen}
	}
}

// editCode applies a keystroke to the code field and writes the sanitized
// code back into it.
func (t twoFactorModel) editCode(msg tea.KeyMsg) (twoFactorModel, tea.Cmd) {
	var cmd tea.Cmd
	t.input, cmd = t.input.Update(msg)

	var code string
	switch {
	case t.enroll != nil:
		code = t.enroll.Dispatch(t.ctx, twofa.EditCode{Input: t.input.Value()}).Pending.VerificationCode
	case t.verify != nil:
		code = t.verify.Dispatch(t.ctx, twofa.EditCode{Input: t.input.Value()}).Code
	}
	if code != t.input.Value() {
		t.input.SetValue(code)
	}
	return t, cmd
}

// apply picks up the state a command left behind.
func (t twoFactorModel) apply(workflowMsg) twoFactorModel {
	step := t.step()
	if t.codeEntry() {
		t.input.Focus()
		if code := t.code(); code != t.input.Value() {
			t.input.SetValue(code)
		}
	} else {
		t.input.Blur()
	}
	if !step.Terminal() {
		return t
	}

	if t.enroll != nil && step == twofa.StepComplete {
		t.codes = t.enroll.RecoveryCodes()
	}
	if len(t.codes) == 0 {
		t.done = true
	}
	return t
}

// outcome is the status line to show once the workflow is done.
func (t twoFactorModel) outcome() (string, error) {
	if t.result == nil {
		return "", nil
	}
	return t.result.get()
}

func (t twoFactorModel) update(msg tea.KeyMsg) (twoFactorModel, tea.Cmd) {
	if len(t.codes) > 0 {
		if msg.String() == "enter" {
			t.codes = nil
			t.done = true
		}
		return t, nil
	}

	if msg.String() == "esc" {
		return t, t.dispatchCmd(twofa.Cancel{})
	}

	if !t.codeEntry() {
		if t.step() != twofa.StepMethodSelect {
			return t, nil
		}
		switch msg.String() {
		case "up", "k":
			if t.cursor > 0 {
				t.cursor--
			}
		case "down", "j":
			if t.cursor < len(t.methods)-1 {
				t.cursor++
			}
		case "enter":
			return t.chooseMethod()
		}
		return t, nil
	}

	switch msg.String() {
	case "enter":
		return t, t.dispatchCmd(twofa.SubmitCode{})
	case "ctrl+r":
		if t.enroll != nil && t.enroll.State().CanRegenerate() {
			return t, t.dispatchCmd(twofa.RequestRegenerate{})
		}
		return t, nil
	case "ctrl+n":
		if t.enroll != nil && t.enroll.State().CanResend() {
			return t, t.dispatchCmd(twofa.RequestResend{})
		}
		if t.verify != nil && t.verify.State().CanResend() {
			return t, t.dispatchCmd(twofa.RequestResend{})
		}
		return t, nil
	case "tab":
		if t.verify != nil && !t.verify.State().Busy {
			t.cursor = (t.cursor + 1) % len(t.methods)
			t.input.Reset()
			return t, t.dispatchCmd(twofa.SelectMethod{Method: t.methods[t.cursor]})
		}
		return t, nil
	}
	return t.editCode(msg)
}

func (t twoFactorModel) chooseMethod() (twoFactorModel, tea.Cmd) {
	method := t.methods[t.cursor]
	if t.enroll != nil {
		t.enroll.Dispatch(t.ctx, twofa.SelectMethod{Method: method})
		return t, t.dispatchCmd(twofa.SubmitMethod{})
	}
	return t, t.dispatchCmd(twofa.SelectMethod{Method: method})
}

func (t twoFactorModel) view() string {
	var b strings.Builder

	if len(t.codes) > 0 {
		b.WriteString(titleStyle.Render("Recovery codes") + "\n\n")
		b.WriteString("Store these somewhere safe. Each code works once.\n\n")
		for _, c := range t.codes {
			b.WriteString("  " + codeStyle.Render(c) + "\n")
		}
		return panelStyle.Render(b.String())
	}

	switch {
	case t.enroll != nil:
		t.enrollView(&b, t.enroll.State())
	case t.verify != nil:
		t.verifyView(&b, t.verify.State())
	default:
		b.WriteString(titleStyle.Render("Two-Factor Authentication"))
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (t twoFactorModel) methodList(b *strings.Builder) {
	for i, m := range t.methods {
		line := methodLabels[m]
		if i == t.cursor {
			b.WriteString(selectedStyle.Render("> "+line) + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}
}

func (t twoFactorModel) enrollView(b *strings.Builder, s twofa.EnrollmentState) {
	b.WriteString(titleStyle.Render("Set up two-factor authentication") + "\n\n")

	switch s.Step {
	case twofa.StepMethodSelect:
		b.WriteString("Choose a method:\n\n")
		t.methodList(b)
	case twofa.StepProvisioning:
		b.WriteString("Setting up " + methodLabels[s.Pending.Method] + "…\n")
	case twofa.StepAuthenticatorSetup:
		if info, err := twofa.DescribeURI(s.Pending.QRCodeURI); err == nil {
			fmt.Fprintf(b, "Account: %s (%s)\n", info.AccountName, info.Issuer)
		}
		b.WriteString("Secret:  " + codeStyle.Render(s.Pending.Secret) + "\n")
		if s.Pending.QRCodeURI != "" {
			b.WriteString(helpStyle.Render(s.Pending.QRCodeURI) + "\n")
		}
		b.WriteString("\nEnter the 6-digit code from your authenticator app:\n")
		b.WriteString(t.input.View() + "\n")
		if s.Pending.RegenerateCooldownSeconds > 0 {
			fmt.Fprintf(b, "%s\n", helpStyle.Render(fmt.Sprintf("New secret available in %ds", s.Pending.RegenerateCooldownSeconds)))
		}
	case twofa.StepEmailVerify:
		b.WriteString("Enter the 6-digit code sent to your email:\n")
		b.WriteString(t.input.View() + "\n")
		if s.Pending.ResendCooldownSeconds > 0 {
			fmt.Fprintf(b, "%s\n", helpStyle.Render(fmt.Sprintf("Resend available in %ds", s.Pending.ResendCooldownSeconds)))
		}
	}
	statusLines(b, s.Busy, s.Notice, s.Error)
}

func (t twoFactorModel) verifyView(b *strings.Builder, s twofa.VerificationState) {
	b.WriteString(titleStyle.Render("Two-factor verification") + "\n\n")

	switch s.Step {
	case twofa.StepMethodSelect:
		b.WriteString("Verify with:\n\n")
		t.methodList(b)
	case twofa.StepCodeEntry:
		prompt := "Enter the 6-digit code from your authenticator app:"
		switch s.Method {
		case adminsdk.TwoFactorEmail:
			prompt = "Enter the 6-digit code sent to your email:"
		case adminsdk.TwoFactorRecovery:
			prompt = "Enter one of your recovery codes:"
		}
		b.WriteString(prompt + "\n")
		b.WriteString(t.input.View() + "\n")
		if s.Method == adminsdk.TwoFactorEmail && s.ResendCooldownSeconds > 0 {
			fmt.Fprintf(b, "%s\n", helpStyle.Render(fmt.Sprintf("Resend available in %ds", s.ResendCooldownSeconds)))
		}
	}
	statusLines(b, s.Busy, s.Notice, s.Error)
}

func statusLines(b *strings.Builder, busy bool, notice, errMsg string) {
	if busy {
		b.WriteString("\n" + helpStyle.Render("Working…") + "\n")
	}
	if notice != "" {
		b.WriteString("\n" + noticeStyle.Render(notice) + "\n")
	}
	if errMsg != "" {
		b.WriteString("\n" + errorStyle.Render(errMsg) + "\n")
	}
}

func (t twoFactorModel) help() string {
	switch {
	case len(t.codes) > 0:
		return "enter continue"
	case !t.codeEntry():
		return "↑/↓ choose  •  enter continue  •  esc cancel"
	case t.enroll != nil && t.step() == twofa.StepAuthenticatorSetup:
		return "enter verify  •  ctrl+r new secret  •  esc cancel"
	case t.enroll != nil:
		return "enter verify  •  ctrl+n resend  •  esc cancel"
	}
	return "enter verify  •  tab other method  •  ctrl+n resend  •  esc cancel"
}
