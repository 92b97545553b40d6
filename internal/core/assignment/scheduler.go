package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"school-meal-engine/internal/core/allergy"
	"school-meal-engine/internal/core/selection"
	"school-meal-engine/internal/pkg/common"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StudentStore 學生與其過敏資料
type StudentStore interface {
	ListStudents(ctx context.Context) ([]allergy.StudentProfile, error)
}

// RunReport 單次自動指派統計
type RunReport struct {
	WeekStart  string    `json:"week_start,omitempty"`
	MenuID     uuid.UUID `json:"menu_id"`
	NoMenu     bool      `json:"no_menu"`
	Students   int       `json:"students"`
	Created    int       `json:"created"`
	Skipped    int       `json:"skipped"`
	Conflicts  int       `json:"conflicts"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Scheduler 為未回覆的學生補上預設選擇
type Scheduler struct {
	policy   selection.Policy
	students StudentStore
	choices  selection.ChoiceStore
	menus    selection.MenuStore
}

// NewScheduler 創建自動指派排程
func NewScheduler(policy selection.Policy, students StudentStore, choices selection.ChoiceStore, menus selection.MenuStore) *Scheduler {
	return &Scheduler{
		policy:   policy,
		students: students,
		choices:  choices,
		menus:    menus,
	}
}

// RunAutoAssignment 對目標週的每位學生每個上學日補上預設選擇。
// 已存在的選擇一律跳過，單筆寫入失敗只記錄不中斷，重複執行不會產生重複紀錄。
func (s *Scheduler) RunAutoAssignment(ctx context.Context, now time.Time) (*RunReport, error) {
	report := &RunReport{StartedAt: now}

	menu, err := s.menus.FindUpcomingActiveMenu(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find upcoming menu: %w", err)
	}
	if menu == nil {
		report.NoMenu = true
		report.FinishedAt = time.Now()
		common.LogWarn("No upcoming active menu, skipping auto-assignment",
			zap.Time("now", now),
		)
		return report, nil
	}
	report.MenuID = menu.ID
	report.WeekStart = s.policy.WeekKey(menu.WeekStart)

	students, err := s.students.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load students: %w", err)
	}
	report.Students = len(students)

	for _, student := range students {
		choice := selection.DefaultChoiceFor(student.HasAllergies())
		for _, day := range selection.Days {
			s.assign(ctx, report, student.StudentID, day, choice)
		}
	}

	report.FinishedAt = time.Now()
	common.LogInfo("自動指派完成",
		zap.String("week_start", report.WeekStart),
		zap.Int("students", report.Students),
		zap.Int("created", report.Created),
		zap.Int("skipped", report.Skipped),
		zap.Int("conflicts", report.Conflicts),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *Scheduler) assign(ctx context.Context, report *RunReport, studentID uuid.UUID, day selection.Day, choice selection.Choice) {
	exists, err := s.choices.Exists(ctx, studentID, report.WeekStart, day)
	if err != nil {
		report.Failed++
		common.LogError("Failed to check existing choice",
			zap.String("student_id", studentID.String()),
			zap.String("day", string(day)),
			zap.Error(err),
		)
		return
	}
	if exists {
		report.Skipped++
		return
	}

	rec := &selection.StudentMenuChoice{
		ID:             uuid.New(),
		StudentID:      studentID,
		WeekStart:      report.WeekStart,
		Day:            day,
		Choice:         choice,
		IsAutoAssigned: true,
	}
	switch err := s.choices.Create(ctx, rec); {
	case err == nil:
		report.Created++
	case errors.Is(err, selection.ErrChoiceExists):
		report.Conflicts++
		common.LogDebug("Choice written concurrently, keeping existing",
			zap.String("student_id", studentID.String()),
			zap.String("day", string(day)),
		)
	default:
		report.Failed++
		common.LogError("Failed to auto-assign choice",
			zap.String("student_id", studentID.String()),
			zap.String("week_start", report.WeekStart),
			zap.String("day", string(day)),
			zap.Error(err),
		)
	}
}
