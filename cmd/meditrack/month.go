package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediTrackAPI/internal/client"
	"mediTrackAPI/internal/view"
)

var monthCmd = &cobra.Command{
	Use:   "month [YYYY-MM]",
	Short: "Show the calendar for a month (default: current month)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(client.LogNotifier{})
		if err != nil {
			return err
		}
		defer s.query.Close()

		arg := ""
		if len(args) == 1 {
			arg = args[0]
		}
		key, err := s.parseMonth(arg)
		if err != nil {
			return err
		}

		logs, err := s.query.Fetch(cmd.Context(), key)
		if err != nil {
			return err
		}

		g := view.Build(key.Year, key.Month, logs, s.today())
		if err := view.Render(cmd.OutOrStdout(), g); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d day(s) taken\n", len(g.TakenDays()))
		return err
	},
}
