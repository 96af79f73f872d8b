package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"mediTrackAPI/internal/client"
	"mediTrackAPI/internal/view"
)

var browseCmd = &cobra.Command{
	Use:   "browse [YYYY-MM]",
	Short: "Interactive calendar: n/p to move, a day number to toggle, q to quit",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		s, err := newSession(printNotifier{w: out})
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

		b := &browser{s: s, out: out}
		return b.run(cmd.Context(), key, cmd.InOrStdin())
	},
}

// browser re-renders whenever the displayed month changes in the cache, so a
// background refetch or an optimistic patch shows up without user input.
type browser struct {
	s   *session
	out io.Writer

	mu  sync.Mutex
	key client.MonthKey
}

func (b *browser) run(ctx context.Context, key client.MonthKey, in io.Reader) error {
	changes, unsubscribe := b.s.cache.Subscribe()
	defer unsubscribe()

	go func() {
		for k := range changes {
			if k == b.current() {
				b.render()
			}
		}
	}()

	b.show(ctx, key)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch cmd {
		case "":
			b.render()
		case "q", "quit":
			return nil
		case "n", "next":
			b.show(ctx, b.current().Add(1))
		case "p", "prev":
			b.show(ctx, b.current().Add(-1))
		case "r", "refresh":
			b.s.query.Refetch(b.current())
		default:
			n, err := strconv.Atoi(cmd)
			if err != nil {
				fmt.Fprintf(b.out, "unknown command %q\n", cmd)
				continue
			}
			b.toggle(ctx, n)
		}
	}
	return scanner.Err()
}

func (b *browser) current() client.MonthKey {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.key
}

// show switches the displayed month. Fetches still running for the month
// being left are cancelled and their results dropped.
func (b *browser) show(ctx context.Context, key client.MonthKey) {
	b.mu.Lock()
	b.key = key
	b.mu.Unlock()

	b.s.query.SetActive(key)
	b.render()

	go func() {
		if err := b.s.query.Prefetch(ctx, key); err != nil {
			fmt.Fprintf(b.out, "prefetch around %s failed: %v\n", key, err)
		}
	}()
}

func (b *browser) toggle(ctx context.Context, n int) {
	key := b.current()
	first, last := key.Bounds()
	if n < first.Day || n > last.Day {
		fmt.Fprintf(b.out, "day %d is not in %s %d\n", n, key.Month, key.Year)
		return
	}
	day := first.AddDays(n - 1)

	// runs in the background; the cache subscription re-renders the patch and
	// the settled state
	go b.s.controller.Toggle(ctx, day)
}

func (b *browser) render() {
	key := b.current()
	state := b.s.query.Load(key)

	g := view.Build(key.Year, key.Month, state.Logs, b.s.today())
	g.Loading = state.Status == client.StatusLoading
	g.Failed = state.Status == client.StatusFailed

	b.mu.Lock()
	defer b.mu.Unlock()
	_ = view.Render(b.out, g)
}

type printNotifier struct {
	w io.Writer
}

func (n printNotifier) Success(title, message string) {
	fmt.Fprintf(n.w, "✔ %s: %s\n", title, message)
}

func (n printNotifier) Error(title, message string) {
	fmt.Fprintf(n.w, "✘ %s: %s\n", title, message)
}
