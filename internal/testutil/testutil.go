package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"school-meal-engine/internal/core/allergy"
	"school-meal-engine/internal/core/kb"
	"school-meal-engine/internal/core/selection"

	"github.com/google/uuid"
)

// Catalog 以內建種子建立的知識庫
func Catalog(tb testing.TB) *kb.Catalog {
	tb.Helper()
	seed, err := kb.DefaultSeed()
	if err != nil {
		tb.Fatalf("load seed: %v", err)
	}
	c, err := kb.NewCatalog(seed)
	if err != nil {
		tb.Fatalf("build catalog: %v", err)
	}
	return c
}

// Jakarta 測試用固定 +07:00 時區
var Jakarta = time.FixedZone("WIB", 7*60*60)

// Clock 可調整的固定時鐘
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{t: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type choiceKey struct {
	student uuid.UUID
	week    string
	day     selection.Day
}

// ChoiceStore 記憶體選餐儲存，依唯一鍵去重
type ChoiceStore struct {
	mu   sync.Mutex
	rows map[choiceKey]selection.StudentMenuChoice

	// FailCreate 對指定學生的 Create 回傳此錯誤
	FailCreate map[uuid.UUID]error
	// RaceOn 在 Exists 回報不存在後，模擬其他實例先寫入
	RaceOn map[uuid.UUID]bool
	Creates int
}

func NewChoiceStore() *ChoiceStore {
	return &ChoiceStore{
		rows:       make(map[choiceKey]selection.StudentMenuChoice),
		FailCreate: make(map[uuid.UUID]error),
		RaceOn:     make(map[uuid.UUID]bool),
	}
}

func (s *ChoiceStore) Exists(_ context.Context, studentID uuid.UUID, weekStart string, day selection.Day) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rows[choiceKey{studentID, weekStart, day}]
	return ok, nil
}

func (s *ChoiceStore) Create(_ context.Context, c *selection.StudentMenuChoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailCreate[c.StudentID]; err != nil {
		return err
	}
	key := choiceKey{c.StudentID, c.WeekStart, c.Day}
	if s.RaceOn[c.StudentID] {
		other := *c
		other.ID = uuid.New()
		other.Choice = selection.ChoiceHarian
		s.rows[key] = other
	}
	if _, ok := s.rows[key]; ok {
		return selection.ErrChoiceExists
	}
	s.Creates++
	s.rows[key] = *c
	return nil
}

func (s *ChoiceStore) Upsert(_ context.Context, c *selection.StudentMenuChoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := choiceKey{c.StudentID, c.WeekStart, c.Day}
	if prev, ok := s.rows[key]; ok {
		c.ID = prev.ID
		c.CreatedAt = prev.CreatedAt
	}
	s.rows[key] = *c
	return nil
}

func (s *ChoiceStore) ListForWeek(_ context.Context, studentID uuid.UUID, weekStart string) ([]selection.StudentMenuChoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []selection.StudentMenuChoice
	for k, v := range s.rows {
		if k.student == studentID && k.week == weekStart {
			out = append(out, v)
		}
	}
	return out, nil
}

// Get 取得單筆選擇
func (s *ChoiceStore) Get(studentID uuid.UUID, weekStart string, day selection.Day) (selection.StudentMenuChoice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[choiceKey{studentID, weekStart, day}]
	return c, ok
}

// Len 所有選擇筆數
func (s *ChoiceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// MenuStore 記憶體週菜單
type MenuStore struct {
	Menus []selection.WeeklyMenu
	Err   error
}

func (s *MenuStore) FindUpcomingActiveMenu(_ context.Context, after time.Time) (*selection.WeeklyMenu, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var best *selection.WeeklyMenu
	for i := range s.Menus {
		m := s.Menus[i]
		if !m.IsActive || !m.WeekStart.After(after) {
			continue
		}
		if best == nil || m.WeekStart.Before(best.WeekStart) {
			best = &m
		}
	}
	return best, nil
}

// Menu 以週一 00:00 為起點的啟用菜單
func Menu(monday time.Time) selection.WeeklyMenu {
	return selection.WeeklyMenu{
		ID:        uuid.New(),
		WeekStart: monday,
		WeekEnd:   monday.AddDate(0, 0, 4),
		IsActive:  true,
	}
}

// StudentStore 記憶體學生清單
type StudentStore struct {
	Students []allergy.StudentProfile
	Err      error
}

func (s *StudentStore) ListStudents(context.Context) ([]allergy.StudentProfile, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]allergy.StudentProfile(nil), s.Students...), nil
}
