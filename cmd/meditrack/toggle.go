package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediTrackAPI/internal/client"
	"mediTrackAPI/internal/view"
)

var toggleCmd = &cobra.Command{
	Use:   "toggle [YYYY-MM-DD|today|yesterday]",
	Short: "Flip whether medication was taken on a day (default: today)",
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
		day, err := s.parseDay(arg)
		if err != nil {
			return err
		}

		// the toggle flips what the calendar shows, so load it first
		key := client.NewMonthKey(s.cfg.DefaultUserID, day)
		if _, err := s.query.Fetch(cmd.Context(), key); err != nil {
			return err
		}

		res := s.controller.Toggle(cmd.Context(), day)
		if res.Err != nil {
			return fmt.Errorf("toggle %s: %w", day, res.Err)
		}

		logs, err := s.query.Fetch(cmd.Context(), key)
		if err != nil {
			return err
		}
		return view.Render(cmd.OutOrStdout(), view.Build(key.Year, key.Month, logs, s.today()))
	},
}
