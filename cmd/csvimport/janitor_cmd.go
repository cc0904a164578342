package main

import (
	"github.com/spf13/cobra"
)

func newJanitorCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{Use: "janitor", Short: "Maintenance tasks"}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Abandon stale jobs and purge old row errors once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			report, err := a.Services.Janitor.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(c.out, report)
		},
	})
	return cmd
}
