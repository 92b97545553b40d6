package selection

import (
	"fmt"
	"time"

	"school-meal-engine/internal/infrastructure/config"
)

const weekKeyLayout = "2006-01-02"

// Policy 選餐時段：指定星期的截止時間前開放
type Policy struct {
	Location   *time.Location
	Weekday    time.Weekday
	CutoffHour int
}

// WindowState 時段狀態
type WindowState struct {
	CanSelect bool      `json:"can_select"`
	Deadline  time.Time `json:"deadline"`
}

// DefaultPolicy 週五 17:00 截止
func DefaultPolicy(loc *time.Location) Policy {
	return Policy{Location: loc, Weekday: time.Friday, CutoffHour: 17}
}

// NewPolicy 由設定建立時段規則
func NewPolicy(cfg config.SelectionConfig) (Policy, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
	}
	return Policy{
		Location:   loc,
		Weekday:    time.Weekday(cfg.Weekday),
		CutoffHour: cfg.CutoffHour,
	}, nil
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// WindowState 純函式：截止當下 (17:00:00) 即關閉；Deadline 為當下或之後最近一次截止時間
func (p Policy) WindowState(now time.Time) WindowState {
	local := now.In(p.location())

	days := (int(p.Weekday) - int(local.Weekday()) + 7) % 7
	y, m, d := local.Date()
	deadline := time.Date(y, m, d+days, p.CutoffHour, 0, 0, 0, p.location())
	if deadline.Before(local) {
		deadline = deadline.AddDate(0, 0, 7)
	}

	return WindowState{
		CanSelect: local.Weekday() == p.Weekday && local.Hour() < p.CutoffHour,
		Deadline:  deadline,
	}
}

// WeekKey 以營運時區的日期表示週起始日
func (p Policy) WeekKey(weekStart time.Time) string {
	return weekStart.In(p.location()).Format(weekKeyLayout)
}
