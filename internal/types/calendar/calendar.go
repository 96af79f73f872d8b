package calendar

import "time"

type CalendarDay struct {
	Date    time.Time `json:"date"`
	Day     int       `json:"day"`
	Taken   bool      `json:"taken"`
	IsToday bool      `json:"isToday"`
}

type CalendarResponse struct {
	UserID        string         `json:"userId"`
	Year          int            `json:"year"`
	Month         int            `json:"month"`
	LeadingBlanks int            `json:"leadingBlanks"`
	DaysTaken     int            `json:"daysTaken"`
	Days          []*CalendarDay `json:"days"`
}
