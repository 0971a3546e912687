package service

import (
	"context"

	"github.com/sadopc/worklog/internal/store"
)

// maxRangeDays bounds date-range reads.
const maxRangeDays = 366

// DailyLogView is a daily log with its derived productivity score.
type DailyLogView struct {
	store.DailyLog
	ProductivityScore int `json:"productivityScore"`
}

func view(l store.DailyLog) DailyLogView {
	return DailyLogView{DailyLog: l, ProductivityScore: l.ProductivityScore()}
}

// DailyLog returns the log for date, creating an empty one if needed.
func (s *Service) DailyLog(ctx context.Context, date string) (*DailyLogView, error) {
	if _, err := parseDate(date); err != nil {
		return nil, err
	}
	l, err := s.store.GetOrCreateDailyLog(ctx, date)
	if err != nil {
		return nil, err
	}
	v := view(*l)
	return &v, nil
}

func (s *Service) SetNotes(ctx context.Context, date, notes string) (*DailyLogView, error) {
	if _, err := parseDate(date); err != nil {
		return nil, err
	}
	l, err := s.store.SetNotes(ctx, date, notes)
	if err != nil {
		return nil, err
	}
	v := view(*l)
	return &v, nil
}

// DailyLogRange returns one log per day from start to end inclusive, creating
// empty logs for days with no activity.
func (s *Service) DailyLogRange(ctx context.Context, start, end string) ([]DailyLogView, error) {
	days, err := dateRange(start, end)
	if err != nil {
		return nil, err
	}
	out := make([]DailyLogView, 0, len(days))
	for _, d := range days {
		l, err := s.store.GetOrCreateDailyLog(ctx, d)
		if err != nil {
			return nil, err
		}
		out = append(out, view(*l))
	}
	return out, nil
}
