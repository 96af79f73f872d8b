package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/civil"

	"mediTrackAPI/internal/types/calendar"
	"mediTrackAPI/internal/types/medication"
)

// LogStore persists one medication log per (user, date).
type LogStore interface {
	FindRange(ctx context.Context, userID string, start, end civil.Date) ([]medication.Log, error)
	Upsert(ctx context.Context, userID string, date civil.Date, taken bool) (*medication.Log, error)
	Ping(ctx context.Context) error
}

type MedicationService struct {
	store LogStore
	loc   *time.Location
	now   func() time.Time
}

// NewMedicationService builds the service. loc is the display timezone used to
// decide which calendar day is "today".
func NewMedicationService(store LogStore, loc *time.Location) *MedicationService {
	if loc == nil {
		loc = time.UTC
	}
	return &MedicationService{store: store, loc: loc, now: time.Now}
}

func (s *MedicationService) ListLogs(ctx context.Context, userID string, start, end civil.Date) ([]medication.Log, error) {
	if userID == "" {
		return nil, invalidRequest("userId is required")
	}
	if start.After(end) {
		return nil, invalidRequest("startDate must not be after endDate")
	}

	logs, err := s.store.FindRange(ctx, userID, start, end)
	if err != nil {
		log.Printf("MedicationService: find range %s..%s for %s failed: %v", start, end, userID, err)
		return nil, newStoreError("find medication logs", err)
	}
	if logs == nil {
		logs = []medication.Log{}
	}

	return logs, nil
}

func (s *MedicationService) UpsertLog(ctx context.Context, userID string, date civil.Date, taken bool) (*medication.Log, error) {
	if userID == "" {
		return nil, invalidRequest("userId is required")
	}
	if !date.IsValid() {
		return nil, invalidRequest("date %s is not a valid calendar day", date)
	}

	entry, err := s.store.Upsert(ctx, userID, date, taken)
	if err != nil {
		log.Printf("MedicationService: upsert %s for %s failed: %v", date, userID, err)
		return nil, newStoreError("upsert medication log", err)
	}

	return entry, nil
}

func (s *MedicationService) GetCalendar(ctx context.Context, userID string, year int, month int) (*calendar.CalendarResponse, error) {
	if month < 1 || month > 12 {
		return nil, invalidRequest("month %d out of range", month)
	}

	startDate, endDate := medication.MonthBounds(year, time.Month(month))
	logs, err := s.ListLogs(ctx, userID, startDate, endDate)
	if err != nil {
		return nil, err
	}

	dayMap := make(map[civil.Date]bool, len(logs))
	for _, l := range logs {
		dayMap[l.Day()] = l.Taken
	}

	today := civil.DateOf(s.now().In(s.loc))
	resp := &calendar.CalendarResponse{
		UserID:        userID,
		Year:          year,
		Month:         month,
		LeadingBlanks: int(startDate.In(time.UTC).Weekday()),
	}

	for d := startDate; !d.After(endDate); d = d.AddDays(1) {
		day := &calendar.CalendarDay{
			Date:    medication.DayTime(d),
			Day:     d.Day,
			Taken:   dayMap[d],
			IsToday: d == today,
		}
		if day.Taken {
			resp.DaysTaken++
		}
		resp.Days = append(resp.Days, day)
	}

	return resp, nil
}

func (s *MedicationService) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store ping failed: %w", err)
	}
	return nil
}
