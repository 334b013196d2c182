package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/backoffice/internal/console/cachepage"
)

func newCacheCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the shared cache",
		Long:  "Inspect and clear the shared cache, through the backoffice API or, with --redis-url, straight from Redis.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.open(cmd.Context()); err != nil {
				return err
			}
			if c.app.DirectCache() {
				return nil
			}
			if err := c.requireSignedIn(); err != nil {
				return errors.Join(err, c.close())
			}
			return nil
		},
	}
	cmd.AddCommand(newCacheListCmd(c), newCacheDeleteCmd(c), newCacheFlushCmd(c))
	return cmd
}

func newCacheListCmd(c *cli) *cobra.Command {
	var (
		pattern string
		full    bool
	)
	cmd := &cobra.Command{
		Use:     "ls [prefix]",
		Aliases: []string{"list"},
		Short:   "List cache keys",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page := cachepage.NewPage(c.app.CacheService(), c.app.Logger())
			page.SetPattern(pattern)
			if len(args) == 1 {
				page.SetFilter(args[0])
			}
			if err := page.Refresh(cmd.Context()); err != nil {
				return err
			}

			rows := page.Visible()
			if full {
				for _, r := range rows {
					page.ToggleExpand(r.Key)
				}
				rows = page.Visible()
			}

			tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tTTL\tVALUE")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Key, r.TTL, r.Value)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			c.printf("\n%d of %d keys\n", len(rows), page.TotalKeys())
			return nil
		},
	}
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "server-side key pattern, e.g. session:*")
	cmd.Flags().BoolVar(&full, "full", false, "show values without truncation")
	return cmd
}

func newCacheDeleteCmd(c *cli) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "rm <key>",
		Aliases: []string{"delete"},
		Short:   "Delete one key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			key := args[0]
			page := cachepage.NewPage(c.app.CacheService(), c.app.Logger())
			if err := page.Refresh(ctx); err != nil {
				return err
			}
			if err := page.RequestDelete(key); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}

			act, _ := page.Pending()
			if err := c.confirm(act.Prompt(page.TotalKeys()), yes); err != nil {
				page.CancelPending()
				return err
			}
			if err := page.Confirm(ctx); err != nil {
				return err
			}
			c.printf("Deleted %s\n", key)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newCacheFlushCmd(c *cli) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Delete every key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			page := cachepage.NewPage(c.app.CacheService(), c.app.Logger())
			if err := page.Refresh(ctx); err != nil {
				return err
			}
			page.RequestDeleteAll()

			act, _ := page.Pending()
			if err := c.confirm(act.Prompt(page.TotalKeys()), yes); err != nil {
				page.CancelPending()
				return err
			}
			if err := page.Confirm(ctx); err != nil {
				return err
			}
			c.printf("Cache flushed\n")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
