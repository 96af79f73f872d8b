package main

import (
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"mediTrackAPI/internal/client"
	"mediTrackAPI/internal/config"
)

var (
	apiURL string
	userID string
)

// session is the client state for one invocation. The cache lives exactly as
// long as the process.
type session struct {
	cfg        config.Config
	cache      *client.Cache
	query      *client.Query
	controller *client.Controller
}

var rootCmd = &cobra.Command{
	Use:   "meditrack",
	Short: "MediTrack – track your daily medication from the terminal",
	Long: `meditrack talks to a MediTrack API server. Each calendar day is either
taken or not taken; toggling a day updates the calendar immediately and rolls
back if the server rejects the change.`,
	SilenceUsage: true,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL (default $MEDITRACK_API_URL or "+config.DefaultAPIURL+")")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "user id (default $DEFAULT_USER_ID)")

	rootCmd.AddCommand(monthCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(browseCmd)
}

func newSession(notifier client.Notifier) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if userID != "" {
		cfg.DefaultUserID = userID
	}

	api := client.NewHTTPClient(cfg.APIURL, cfg.ClientTimeout)
	cache := client.NewCache(client.DefaultCacheMonths, cfg.StaleTime)
	query := client.NewQuery(api, cache)
	controller := client.NewController(cfg.DefaultUserID, api, cache, query, client.ControllerOptions{
		Notifier: notifier,
		Location: cfg.Location,
	})

	return &session{cfg: cfg, cache: cache, query: query, controller: controller}, nil
}

func (s *session) today() civil.Date {
	return civil.DateOf(time.Now().In(s.cfg.Location))
}

// parseMonth accepts YYYY-MM; empty means the current month.
func (s *session) parseMonth(arg string) (client.MonthKey, error) {
	if arg == "" {
		return client.NewMonthKey(s.cfg.DefaultUserID, s.today()), nil
	}
	t, err := time.Parse("2006-01", arg)
	if err != nil {
		return client.MonthKey{}, fmt.Errorf("invalid month %q: expected YYYY-MM", arg)
	}
	return client.MonthKey{UserID: s.cfg.DefaultUserID, Year: t.Year(), Month: t.Month()}, nil
}

// parseDay accepts YYYY-MM-DD, "today" or "yesterday" in the display timezone.
func (s *session) parseDay(arg string) (civil.Date, error) {
	switch arg {
	case "", "today":
		return s.today(), nil
	case "yesterday":
		return s.today().AddDays(-1), nil
	}
	d, err := civil.ParseDate(arg)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", arg)
	}
	return d, nil
}
