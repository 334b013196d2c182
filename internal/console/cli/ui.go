package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/backoffice/internal/console/tui"
)

func newUICmd(c *cli) *cobra.Command {
	var page string
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Launch the full-screen console",
		Long:  "Launch the full-screen console. Signed-out users start at the sign-in form; --page opens another page once signed in.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runUI(cmd.Context(), page)
		},
	}
	cmd.Flags().StringVar(&page, "page", "", "page to open, e.g. /cache")
	return cmd
}

func (c *cli) runUI(ctx context.Context, page string) error {
	sess := c.app.Session()
	return tui.Run(ctx, tui.Options{
		Session:   sess,
		Prefs:     sess.Preferences(),
		TwoFactor: c.app.Client(),
		Cache:     c.app.CacheService(),
		Logger:    c.app.Logger(),
		StartPath: page,
	})
}
