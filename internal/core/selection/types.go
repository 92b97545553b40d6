package selection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"school-meal-engine/internal/pkg/common"

	"github.com/google/uuid"
)

// Day 上學日
type Day string

const (
	DaySenin  Day = "senin"
	DaySelasa Day = "selasa"
	DayRabu   Day = "rabu"
	DayKamis  Day = "kamis"
	DayJumat  Day = "jumat"
)

// Days 固定五天，排程與輸出皆依此順序
var Days = []Day{DaySenin, DaySelasa, DayRabu, DayKamis, DayJumat}

// ParseDay 解析上學日
func ParseDay(s string) (Day, error) {
	d := Day(s)
	for _, day := range Days {
		if d == day {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: unknown day %q", common.ErrInvalidChoice, s)
}

// Choice 餐點選擇
type Choice string

const (
	ChoiceHarian Choice = "harian"
	ChoiceSehat  Choice = "sehat"
)

// ParseChoice 解析餐點選擇
func ParseChoice(s string) (Choice, error) {
	switch c := Choice(s); c {
	case ChoiceHarian, ChoiceSehat:
		return c, nil
	default:
		return "", fmt.Errorf("%w: unknown choice %q", common.ErrInvalidChoice, s)
	}
}

// DefaultChoiceFor 未回覆學生的預設選擇：有過敏者為 sehat
func DefaultChoiceFor(hasAllergies bool) Choice {
	if hasAllergies {
		return ChoiceSehat
	}
	return ChoiceHarian
}

// 選餐錯誤
var (
	ErrChoiceExists   = errors.New("menu choice already exists")
	ErrWindowClosed   = common.ErrSelectionClosed
	ErrNoUpcomingMenu = common.ErrNoUpcomingMenu
)

// StudentMenuChoice 學生每週每日的餐點選擇，(StudentID, WeekStart, Day) 唯一
type StudentMenuChoice struct {
	ID             uuid.UUID `json:"id"`
	StudentID      uuid.UUID `json:"student_id"`
	WeekStart      string    `json:"week_start"`
	Day            Day       `json:"day"`
	Choice         Choice    `json:"choice"`
	IsAutoAssigned bool      `json:"is_auto_assigned"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// WeeklyMenu 已發布的週菜單
type WeeklyMenu struct {
	ID        uuid.UUID  `json:"id"`
	WeekStart time.Time  `json:"week_start"`
	WeekEnd   time.Time  `json:"week_end"`
	IsActive  bool       `json:"is_active"`
	Items     []MenuItem `json:"items"`
}

// MenuItem 單日單一選項的菜色與標示過敏原
type MenuItem struct {
	Day         Day      `json:"day"`
	Choice      Choice   `json:"choice"`
	Name        string   `json:"name"`
	Ingredients []string `json:"ingredients"`
	Allergens   []string `json:"allergens"`
}

// ChoiceStore 選餐紀錄儲存
type ChoiceStore interface {
	Exists(ctx context.Context, studentID uuid.UUID, weekStart string, day Day) (bool, error)
	// Create 違反唯一鍵時回傳 ErrChoiceExists
	Create(ctx context.Context, choice *StudentMenuChoice) error
	// Upsert 以唯一鍵覆寫既有選擇
	Upsert(ctx context.Context, choice *StudentMenuChoice) error
	ListForWeek(ctx context.Context, studentID uuid.UUID, weekStart string) ([]StudentMenuChoice, error)
}

// MenuStore 週菜單查詢
type MenuStore interface {
	// FindUpcomingActiveMenu 回傳 WeekStart 嚴格晚於 after 的最近啟用菜單；沒有時回傳 nil, nil
	FindUpcomingActiveMenu(ctx context.Context, after time.Time) (*WeeklyMenu, error)
}

// Clock 可注入的時鐘
type Clock interface {
	Now() time.Time
}

// SystemClock 系統時鐘
type SystemClock struct{}

// Now 目前時間
func (SystemClock) Now() time.Time { return time.Now() }
