package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/leaderboard-crawler/internal/leaderboard"
)

// newWeeksCmd lists the leaderboard URLs a crawl would visit, in visit order.
func newWeeksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weeks",
		Short: "Prints the leaderboard URLs a crawl would visit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			c := rt.cfg.Crawler
			weeks, err := leaderboard.Seq(c.StartYear, c.EndYear, c.EndWeek)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for w := range weeks {
				if _, err := fmt.Fprintln(out, leaderboard.URL(c.BaseURL, w)); err != nil {
					return fmt.Errorf("write url: %w", err)
				}
			}
			return nil
		},
	}
	addWeekFlags(cmd)
	return cmd
}
