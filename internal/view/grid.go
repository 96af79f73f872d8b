// Package view turns a month of cached logs into a calendar grid and renders it
// for a terminal.
package view

import (
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"mediTrackAPI/internal/types/medication"
)

var weekdays = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

type Cell struct {
	Date    civil.Date
	Taken   bool
	IsToday bool
	// Pending marks a value patched locally and not yet confirmed.
	Pending bool
}

type Grid struct {
	Year  int
	Month time.Month
	// LeadingBlanks is the weekday of day 1, Sunday first.
	LeadingBlanks int
	Cells         []Cell
	Loading       bool
	Failed        bool
}

// Build lays out every day of the month. Days without a log are not taken.
// Logs are matched on their calendar date; today is the current day in the
// display timezone, computed by the caller.
func Build(year int, month time.Month, logs []medication.Log, today civil.Date) Grid {
	first, last := medication.MonthBounds(year, month)

	type mark struct{ taken, pending bool }
	byDay := make(map[civil.Date]mark, len(logs))
	for _, l := range logs {
		byDay[l.Day()] = mark{taken: l.Taken, pending: l.IsPlaceholder()}
	}

	g := Grid{
		Year:          year,
		Month:         month,
		LeadingBlanks: int(first.In(time.UTC).Weekday()),
	}
	for d := first; !d.After(last); d = d.AddDays(1) {
		m := byDay[d]
		g.Cells = append(g.Cells, Cell{Date: d, Taken: m.taken, IsToday: d == today, Pending: m.pending})
	}
	return g
}

// TakenDays lists the days marked taken, in order.
func (g Grid) TakenDays() []civil.Date {
	var out []civil.Date
	for _, c := range g.Cells {
		if c.Taken {
			out = append(out, c.Date)
		}
	}
	return out
}

// Cell returns the cell for day-of-month n (1-based).
func (g Grid) Cell(n int) (Cell, bool) {
	if n < 1 || n > len(g.Cells) {
		return Cell{}, false
	}
	return g.Cells[n-1], true
}

// Render writes the grid as text, one week per line. Taken days are
// bracketed, today is starred and a trailing ~ marks a value still being saved.
func Render(w io.Writer, g Grid) error {
	var b strings.Builder

	title := fmt.Sprintf("%s %d", g.Month, g.Year)
	switch {
	case g.Failed:
		title += " (failed to load)"
	case g.Loading:
		title += " (loading...)"
	}
	const width = 7*4 - 1
	if pad := (width - len(title)) / 2; pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Join(weekdays, " "))
	b.WriteString("\n")

	col := 0
	for ; col < g.LeadingBlanks; col++ {
		b.WriteString("    ")
	}
	for _, c := range g.Cells {
		b.WriteString(formatCell(c))
		col++
		if col == 7 {
			b.WriteString("\n")
			col = 0
		}
	}
	if col != 0 {
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatCell(c Cell) string {
	day := fmt.Sprintf("%2d", c.Date.Day)
	left, right := " ", " "
	if c.Taken {
		left, right = "[", "]"
	}
	if c.IsToday && !c.Taken {
		right = "*"
	}
	if c.Pending {
		right = "~"
	}
	return left + day + right
}
