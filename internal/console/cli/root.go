// Package cli is the backoffice command line. Every command opens the
// console application, so the persisted session is shared between runs
// and with the full-screen UI.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aussiebroadwan/backoffice/internal/console/app"
	"github.com/aussiebroadwan/backoffice/internal/console/session"
)

var errAborted = errors.New("aborted")

type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	reader *bufio.Reader

	apiURL    string
	store     string
	stateFile string
	redisURL  string
	logFile   string

	app *app.Application
}

func NewRootCommand() *cobra.Command {
	return NewRootCommandWithIO(os.Stdin, os.Stdout, os.Stderr)
}

func NewRootCommandWithIO(in io.Reader, out, errOut io.Writer) *cobra.Command {
	c := &cli{stdin: in, stdout: out, stderr: errOut, reader: bufio.NewReader(in)}

	cmd := &cobra.Command{
		Use:           "backoffice",
		Short:         "Backoffice admin console",
		Long:          "Sign in to the backoffice, manage two-factor authentication and inspect the shared cache, from the command line or the full-screen console.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       app.BuildVersion,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runUI(cmd.Context(), "")
		},
	}

	cmd.PersistentFlags().StringVar(&c.apiURL, "api-url", "", "backoffice API base URL (overrides BACKOFFICE_API_URL)")
	cmd.PersistentFlags().StringVar(&c.store, "store", "", "session store driver: sqlite or memory")
	cmd.PersistentFlags().StringVar(&c.stateFile, "state-file", "", "SQLite session state file")
	cmd.PersistentFlags().StringVar(&c.redisURL, "redis-url", "", "inspect this Redis directly instead of the cache API")
	cmd.PersistentFlags().StringVar(&c.logFile, "log-file", "", `log destination, "-" for stderr`)

	cmd.AddCommand(
		newLoginCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
		newRegisterCmd(c),
		newPasswordCmd(c),
		newProfileCmd(c),
		newTwoFactorCmd(c),
		newCacheCmd(c),
		newUICmd(c),
	)
	c.closeAfter(cmd)
	return cmd
}

// closeAfter makes every command release the application when it returns,
// including on error, where cobra skips post-run hooks.
func (c *cli) closeAfter(cmd *cobra.Command) {
	for _, sub := range cmd.Commands() {
		c.closeAfter(sub)
	}
	run := cmd.RunE
	if run == nil {
		return
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			err = errors.Join(err, c.close())
		}()
		return run(cmd, args)
	}
}

// open loads the configuration, applies flag overrides and wires the
// application.
func (c *cli) open(ctx context.Context) error {
	if c.app != nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	if c.apiURL != "" {
		cfg.APIURL = c.apiURL
	}
	if c.store != "" {
		cfg.StoreDriver = strings.ToLower(c.store)
	}
	if c.stateFile != "" {
		cfg.StateFile = c.stateFile
	}
	if c.redisURL != "" {
		cfg.RedisURL = c.redisURL
	}
	if c.logFile != "" {
		cfg.LogFile = c.logFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	c.app = a

	// A stored session may be older than its access token. Refresh it up
	// front so the command does not hit a 401 and sign the user out.
	if err := a.Session().EnsureFreshToken(ctx); err != nil && !errors.Is(err, session.ErrNotAuthenticated) {
		a.Logger().Warn("token refresh failed", "err", err)
	}
	return nil
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

func (c *cli) printf(format string, args ...any) {
	fmt.Fprintf(c.stdout, format, args...)
}

// readLine prompts on stderr and reads one line from stdin.
func (c *cli) readLine(prompt string) (string, error) {
	fmt.Fprint(c.stderr, prompt)
	line, err := c.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readSecret reads without echo when stdin is a terminal, and falls back
// to a plain line otherwise.
func (c *cli) readSecret(prompt string) (string, error) {
	f, ok := c.stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return c.readLine(prompt)
	}

	fmt.Fprint(c.stderr, prompt)
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(c.stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

// confirm asks a yes/no question. yes skips the prompt.
func (c *cli) confirm(question string, yes bool) error {
	if yes {
		return nil
	}
	answer, err := c.readLine(question + " [y/N] ")
	if err != nil {
		return err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return nil
	}
	return errAborted
}

func (c *cli) requireSignedIn() error {
	if !c.app.Session().IsAuthenticated() {
		if c.app.Session().PendingSecondFactor() {
			return errors.New("sign-in is waiting for a second factor: run `backoffice 2fa verify` or `backoffice 2fa enroll`")
		}
		return errors.New("not signed in: run `backoffice login`")
	}
	return nil
}
