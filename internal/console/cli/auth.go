package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
)

func newLoginCmd(c *cli) *cobra.Command {
	var method string
	cmd := &cobra.Command{
		Use:   "login [email-or-username]",
		Short: "Sign in and store the session",
		Long: `Sign in with an email or username. The password is read from the terminal without echo.

When the account has two-factor authentication the sign-in continues with a
challenge; --method picks the factor (totp, email or recovery).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			identifier := ""
			if len(args) == 1 {
				identifier = args[0]
			} else {
				var err error
				if identifier, err = c.readLine("Email or username: "); err != nil {
					return err
				}
			}
			password, err := c.readSecret("Password: ")
			if err != nil {
				return err
			}

			sess := c.app.Session()
			out, err := sess.Login(ctx, identifier, password)
			if err != nil {
				return err
			}

			switch {
			case out.SignedIn:
				c.printf("Signed in as %s\n", sess.Session().Label())
				return nil
			case out.Challenge:
				return c.verifyChallenge(ctx, method)
			default:
				c.printf("Two-factor setup is required before you can continue. Run `backoffice 2fa enroll`.\n")
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&method, "method", "totp", "second factor for the sign-in challenge: totp, email or recovery")
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.app.Session().Logout(cmd.Context())
			c.printf("Signed out\n")
			return nil
		},
	}
}

func newWhoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireSignedIn(); err != nil {
				return err
			}
			sess := c.app.Session()
			sess.FetchUserInfo(cmd.Context())
			// A rejected token signs the session out during the fetch.
			if err := c.requireSignedIn(); err != nil {
				return err
			}

			s := sess.Session()
			c.printf("Name:       %s\n", s.Label())
			c.printf("Email:      %s\n", s.Email)
			if s.Username != "" {
				c.printf("Username:   %s\n", s.Username)
			}
			if s.Role != "" {
				c.printf("Role:       %s\n", s.Role)
			}
			twoFactor := "not configured"
			if cfg, ok := s.User().ActiveTwoFactor(); ok {
				twoFactor = string(cfg.Type)
			}
			c.printf("Two-factor: %s\n", twoFactor)
			return nil
		},
	}
}

func newRegisterCmd(c *cli) *cobra.Command {
	var req adminsdk.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register <email>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Email = args[0]
			password, err := c.readNewPassword("Password: ")
			if err != nil {
				return err
			}
			req.Password = password

			sess := c.app.Session()
			out, err := sess.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			switch {
			case out.SignedIn:
				c.printf("Account created. Signed in as %s\n", sess.Session().Label())
			case out.Requires2FA:
				c.printf("Account created. Run `backoffice 2fa enroll` to finish signing in.\n")
			default:
				msg := out.Message
				if msg == "" {
					msg = "Account created. Run `backoffice login` to sign in."
				}
				c.printf("%s\n", msg)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "username")
	cmd.Flags().StringVar(&req.DisplayName, "display-name", "", "display name")
	return cmd
}

func newPasswordCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "password",
		Short: "Change your password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireSignedIn(); err != nil {
				return err
			}
			current, err := c.readSecret("Current password: ")
			if err != nil {
				return err
			}
			next, err := c.readNewPassword("New password: ")
			if err != nil {
				return err
			}
			if err := c.app.Session().ChangePassword(cmd.Context(), current, next); err != nil {
				return err
			}
			c.printf("Password changed\n")
			return nil
		},
	}
}

func newProfileCmd(c *cli) *cobra.Command {
	var req adminsdk.UpdateProfileRequest
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update your display name, username or email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireSignedIn(); err != nil {
				return err
			}
			if req == (adminsdk.UpdateProfileRequest{}) {
				return errors.New("nothing to update: pass --display-name, --username or --email")
			}
			sess := c.app.Session()
			if err := sess.UpdateProfile(cmd.Context(), req); err != nil {
				return err
			}
			c.printf("Profile updated for %s\n", sess.Session().Label())
			return nil
		},
	}
	cmd.Flags().StringVar(&req.DisplayName, "display-name", "", "new display name")
	cmd.Flags().StringVar(&req.Username, "username", "", "new username")
	cmd.Flags().StringVar(&req.Email, "email", "", "new email")
	return cmd
}

// readNewPassword reads a password twice and checks both entries match.
func (c *cli) readNewPassword(prompt string) (string, error) {
	first, err := c.readSecret(prompt)
	if err != nil {
		return "", err
	}
	again, err := c.readSecret("Repeat " + strings.ToLower(prompt[:1]) + prompt[1:])
	if err != nil {
		return "", err
	}
	if first != again {
		return "", errors.New("passwords do not match")
	}
	return first, nil
}
