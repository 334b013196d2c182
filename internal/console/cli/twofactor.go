package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/backoffice/internal/console/twofa"
	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
)

const (
	maxCodeAttempts = 5
	qrSize          = 256
)

var errTooManyAttempts = errors.New("too many failed attempts")

func parseMethod(name string, allowRecovery bool) (twofa.Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "totp", "app", "authenticator":
		return adminsdk.TwoFactorTOTP, nil
	case "email":
		return adminsdk.TwoFactorEmail, nil
	case "recovery":
		if allowRecovery {
			return adminsdk.TwoFactorRecovery, nil
		}
	}
	return "", fmt.Errorf("unknown two-factor method %q", name)
}

func newTwoFactorCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "2fa",
		Aliases: []string{"twofa"},
		Short:   "Manage two-factor authentication",
	}
	cmd.AddCommand(
		newEnrollCmd(c),
		newVerifyCmd(c),
		newDisableCmd(c),
		newRecoveryCodesCmd(c),
	)
	return cmd
}

func newEnrollCmd(c *cli) *cobra.Command {
	var (
		method string
		qrOut  string
	)
	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Set up an authenticator app or email codes",
		Long: `Set up a second factor. For an authenticator app the secret and otpauth URI
are printed, and --qr-out writes the QR code as a PNG.

At the code prompt, type "regenerate" for a new secret or "resend" for a new
email code.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := parseMethod(method, false)
			if err != nil {
				return err
			}
			return c.enroll(cmd.Context(), m, qrOut)
		},
	}
	cmd.Flags().StringVar(&method, "method", "totp", "method to enroll: totp or email")
	cmd.Flags().StringVar(&qrOut, "qr-out", "", "write the authenticator QR code to this PNG file")
	return cmd
}

func newVerifyCmd(c *cli) *cobra.Command {
	var method string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Answer a pending sign-in challenge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := c.app.Session().Session()
			if !s.MustSetup2FA || s.AccessToken != "" {
				return errors.New("no sign-in challenge is pending")
			}
			return c.verifyChallenge(cmd.Context(), method)
		},
	}
	cmd.Flags().StringVar(&method, "method", "totp", "factor to answer with: totp, email or recovery")
	return cmd
}

func newDisableCmd(c *cli) *cobra.Command {
	var (
		method string
		yes    bool
	)
	cmd := &cobra.Command{
		Use:   "disable",
		Short: "Remove a second factor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireSignedIn(); err != nil {
				return err
			}
			m, err := parseMethod(method, false)
			if err != nil {
				return err
			}
			if err := c.confirm(fmt.Sprintf("Disable %s two-factor authentication?", m), yes); err != nil {
				return err
			}

			sess := c.app.Session()
			if err := c.app.Client().Disable2FA(cmd.Context(), sess.Session().UserID, m); err != nil {
				return err
			}
			sess.FetchUserInfo(cmd.Context())
			c.printf("Two-factor authentication (%s) disabled\n", m)
			return nil
		},
	}
	cmd.Flags().StringVar(&method, "method", "totp", "method to disable: totp or email")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newRecoveryCodesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "recovery-codes",
		Short: "List unused recovery codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireSignedIn(); err != nil {
				return err
			}
			codes, err := c.app.Client().RecoveryCodes(cmd.Context())
			if err != nil {
				return err
			}
			if len(codes) == 0 {
				c.printf("No recovery codes\n")
				return nil
			}
			for _, code := range codes {
				c.printf("%s\n", code)
			}
			return nil
		},
	}
}

// enroll runs the enrollment workflow against the terminal.
func (c *cli) enroll(ctx context.Context, method twofa.Method, qrOut string) error {
	sess := c.app.Session()
	s := sess.Session()
	if s.AccessToken == "" {
		return errors.New("not signed in: run `backoffice login`")
	}

	var completeErr error
	e := twofa.NewEnrollment(c.app.Client(), s.UserID, twofa.EnrollmentOptions{
		Logger: c.app.Logger(),
		OnComplete: func(ctx context.Context, tokens adminsdk.TokenPair, _ []string) {
			completeErr = sess.CompleteTwoFactor(ctx, tokens)
		},
	})
	defer e.Close()
	e.StartTicker(ctx)

	e.Dispatch(ctx, twofa.SelectMethod{Method: method})
	st := e.Dispatch(ctx, twofa.SubmitMethod{})
	if st.Step == twofa.StepMethodSelect {
		return errors.New(st.Error)
	}
	if err := c.showSetup(st, qrOut); err != nil {
		return err
	}

	for attempt := 0; attempt < maxCodeAttempts; {
		input, err := c.readLine("Code: ")
		if err != nil {
			return err
		}

		switch strings.ToLower(input) {
		case "regenerate":
			if cur := e.State(); !cur.CanRegenerate() {
				c.report("", regenerateUnavailable(cur))
				continue
			}
			st = e.Dispatch(ctx, twofa.RequestRegenerate{})
			if st.Error == "" {
				if err := c.showSetup(st, qrOut); err != nil {
					return err
				}
			}
		case "resend":
			if cur := e.State(); !cur.CanResend() {
				msg := resendUnavailable(cur.Pending.ResendCooldownSeconds)
				if cur.Step != twofa.StepEmailVerify {
					msg = "codes can only be resent for email"
				}
				c.report("", msg)
				continue
			}
			st = e.Dispatch(ctx, twofa.RequestResend{})
		default:
			attempt++
			e.Dispatch(ctx, twofa.EditCode{Input: input})
			st = e.Dispatch(ctx, twofa.SubmitCode{})
		}

		if st.Step == twofa.StepComplete {
			if completeErr != nil {
				return completeErr
			}
			c.printf("Two-factor authentication enabled (%s)\n", method)
			if codes := e.RecoveryCodes(); len(codes) > 0 {
				c.printf("\nRecovery codes. Store them somewhere safe; each works once.\n\n")
				for _, code := range codes {
					c.printf("  %s\n", code)
				}
			}
			return nil
		}
		c.report(st.Notice, st.Error)
	}
	return errTooManyAttempts
}

func (c *cli) showSetup(st twofa.EnrollmentState, qrOut string) error {
	switch st.Step {
	case twofa.StepAuthenticatorSetup:
		if info, err := twofa.DescribeURI(st.Pending.QRCodeURI); err == nil {
			c.printf("Account: %s (%s)\n", info.AccountName, info.Issuer)
		}
		c.printf("Secret:  %s\n", st.Pending.Secret)
		if st.Pending.QRCodeURI != "" {
			c.printf("URI:     %s\n", st.Pending.QRCodeURI)
		}
		if qrOut != "" && st.Pending.QRCodeURI != "" {
			if err := writeQR(qrOut, st.Pending.QRCodeURI); err != nil {
				return err
			}
			c.printf("QR code written to %s\n", qrOut)
		}
		c.printf("Enter the 6-digit code from your authenticator app.\n")
	case twofa.StepEmailVerify:
		c.report(st.Notice, st.Error)
		c.printf("Enter the 6-digit code sent to your email.\n")
	}
	return nil
}

func writeQR(path, uri string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create QR file: %w", err)
	}
	if err := twofa.WriteQRPNG(f, uri, qrSize); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// verifyChallenge answers a post-login challenge and completes the session.
func (c *cli) verifyChallenge(ctx context.Context, methodName string) error {
	method, err := parseMethod(methodName, true)
	if err != nil {
		return err
	}

	sess := c.app.Session()
	var completeErr error
	v := twofa.NewVerification(c.app.Client(), sess.Session().UserID, twofa.VerificationOptions{
		Logger: c.app.Logger(),
		OnComplete: func(ctx context.Context, tokens adminsdk.TokenPair) {
			completeErr = sess.CompleteTwoFactor(ctx, tokens)
		},
	})
	defer v.Close()
	v.StartTicker(ctx)

	st := v.Dispatch(ctx, twofa.SelectMethod{Method: method})
	c.report(st.Notice, st.Error)

	prompt := "Two-factor code: "
	if method == adminsdk.TwoFactorRecovery {
		prompt = "Recovery code: "
	}

	for attempt := 0; attempt < maxCodeAttempts; {
		input, err := c.readLine(prompt)
		if err != nil {
			return err
		}

		if strings.EqualFold(input, "resend") && method == adminsdk.TwoFactorEmail {
			if cur := v.State(); !cur.CanResend() {
				c.report("", resendUnavailable(cur.ResendCooldownSeconds))
				continue
			}
			st = v.Dispatch(ctx, twofa.RequestResend{})
		} else {
			attempt++
			v.Dispatch(ctx, twofa.EditCode{Input: input})
			st = v.Dispatch(ctx, twofa.SubmitCode{})
		}

		if st.Step == twofa.StepComplete {
			if completeErr != nil {
				return completeErr
			}
			c.printf("Signed in as %s\n", sess.Session().Label())
			return nil
		}
		c.report(st.Notice, st.Error)
	}
	return errTooManyAttempts
}

func regenerateUnavailable(st twofa.EnrollmentState) string {
	if st.Step != twofa.StepAuthenticatorSetup {
		return "a new secret can only be generated for an authenticator app"
	}
	if st.Busy {
		return "a new secret is already being generated"
	}
	return fmt.Sprintf("wait %ds before generating a new secret", st.Pending.RegenerateCooldownSeconds)
}

func resendUnavailable(cooldown int) string {
	if cooldown > 0 {
		return fmt.Sprintf("wait %ds before requesting another code", cooldown)
	}
	return "a code is already being sent"
}

func (c *cli) report(notice, errMsg string) {
	if notice != "" {
		fmt.Fprintln(c.stderr, notice)
	}
	if errMsg != "" {
		fmt.Fprintln(c.stderr, "Error:", errMsg)
	}
}
