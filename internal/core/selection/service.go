package selection

import (
	"context"
	"fmt"
	"time"

	"school-meal-engine/internal/pkg/common"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WeekChoices 學生目標週的選擇
type WeekChoices struct {
	WeekStart string              `json:"week_start"`
	MenuID    uuid.UUID           `json:"menu_id"`
	Choices   []StudentMenuChoice `json:"choices"`
}

// Service 學生選餐服務
type Service struct {
	policy  Policy
	choices ChoiceStore
	menus   MenuStore
	clock   Clock
}

// NewService 創建選餐服務
func NewService(policy Policy, choices ChoiceStore, menus MenuStore, clock Clock) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{
		policy:  policy,
		choices: choices,
		menus:   menus,
		clock:   clock,
	}
}

// Policy 目前使用的時段規則
func (s *Service) Policy() Policy {
	return s.policy
}

// Now 營運時區的目前時間
func (s *Service) Now() time.Time {
	return s.clock.Now().In(s.policy.location())
}

// Window 目前的時段狀態
func (s *Service) Window() WindowState {
	return s.policy.WindowState(s.clock.Now())
}

// TargetMenu 週起始日嚴格晚於 now 的最近啟用菜單
func (s *Service) TargetMenu(ctx context.Context, now time.Time) (*WeeklyMenu, error) {
	menu, err := s.menus.FindUpcomingActiveMenu(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find upcoming menu: %w", err)
	}
	if menu == nil {
		return nil, ErrNoUpcomingMenu
	}
	return menu, nil
}

// SubmitChoices 時段開放時寫入學生選擇，覆寫同週同日的舊選擇
func (s *Service) SubmitChoices(ctx context.Context, studentID uuid.UUID, picks map[Day]Choice) (*WeekChoices, error) {
	if studentID == uuid.Nil || len(picks) == 0 {
		return nil, common.ErrInvalidChoice
	}
	for day, choice := range picks {
		if _, err := ParseDay(string(day)); err != nil {
			return nil, err
		}
		if _, err := ParseChoice(string(choice)); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	if !s.policy.WindowState(now).CanSelect {
		return nil, ErrWindowClosed
	}

	menu, err := s.TargetMenu(ctx, now)
	if err != nil {
		return nil, err
	}
	weekStart := s.policy.WeekKey(menu.WeekStart)

	saved := make([]StudentMenuChoice, 0, len(picks))
	for _, day := range Days {
		choice, ok := picks[day]
		if !ok {
			continue
		}
		rec := &StudentMenuChoice{
			ID:             uuid.New(),
			StudentID:      studentID,
			WeekStart:      weekStart,
			Day:            day,
			Choice:         choice,
			IsAutoAssigned: false,
		}
		if err := s.choices.Upsert(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to save choice for %s: %w", day, err)
		}
		saved = append(saved, *rec)
	}

	common.LogInfo("學生已提交選餐",
		zap.String("student_id", studentID.String()),
		zap.String("week_start", weekStart),
		zap.Int("days", len(saved)),
	)

	return &WeekChoices{WeekStart: weekStart, MenuID: menu.ID, Choices: saved}, nil
}

// ListChoices 學生目標週的所有選擇，依上學日排序
func (s *Service) ListChoices(ctx context.Context, studentID uuid.UUID) (*WeekChoices, error) {
	menu, err := s.TargetMenu(ctx, s.clock.Now())
	if err != nil {
		return nil, err
	}
	weekStart := s.policy.WeekKey(menu.WeekStart)

	list, err := s.choices.ListForWeek(ctx, studentID, weekStart)
	if err != nil {
		return nil, fmt.Errorf("failed to list choices: %w", err)
	}

	return &WeekChoices{WeekStart: weekStart, MenuID: menu.ID, Choices: SortByDay(list)}, nil
}

// SortByDay 依上學日順序排列
func SortByDay(list []StudentMenuChoice) []StudentMenuChoice {
	out := make([]StudentMenuChoice, 0, len(list))
	for _, day := range Days {
		for _, c := range list {
			if c.Day == day {
				out = append(out, c)
			}
		}
	}
	return out
}
