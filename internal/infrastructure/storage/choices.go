package storage

import (
	"context"
	"fmt"

	"school-meal-engine/internal/core/selection"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChoiceStore 選餐紀錄儲存，唯一鍵由資料庫保證
type ChoiceStore struct {
	db *gorm.DB
}

// NewChoiceStore 創建選餐儲存
func NewChoiceStore(db *gorm.DB) *ChoiceStore {
	return &ChoiceStore{db: db}
}

// Exists 是否已有該學生該週該日的選擇
func (s *ChoiceStore) Exists(ctx context.Context, studentID uuid.UUID, weekStart string, day selection.Day) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&ChoiceModel{}).
		Where("student_id = ? AND week_start = ? AND day = ?", studentID, weekStart, string(day)).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to check choice: %w", err)
	}
	return n > 0, nil
}

// Create 新增選擇；唯一鍵衝突時不寫入並回傳 selection.ErrChoiceExists
func (s *ChoiceStore) Create(ctx context.Context, c *selection.StudentMenuChoice) error {
	row := fromChoice(c)
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("failed to create choice: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return selection.ErrChoiceExists
	}
	c.CreatedAt = row.CreatedAt
	c.UpdatedAt = row.UpdatedAt
	return nil
}

// Upsert 以唯一鍵覆寫選擇，回填既有紀錄的識別碼
func (s *ChoiceStore) Upsert(ctx context.Context, c *selection.StudentMenuChoice) error {
	row := fromChoice(c)
	var saved ChoiceModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "student_id"}, {Name: "week_start"}, {Name: "day"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"choice",
				"is_auto_assigned",
				"updated_at",
			}),
		}).Create(&row).Error; err != nil {
			return err
		}
		return tx.Where("student_id = ? AND week_start = ? AND day = ?", row.StudentID, row.WeekStart, row.Day).
			First(&saved).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save choice: %w", err)
	}
	*c = toChoice(saved)
	return nil
}

// ListForWeek 學生某週的所有選擇
func (s *ChoiceStore) ListForWeek(ctx context.Context, studentID uuid.UUID, weekStart string) ([]selection.StudentMenuChoice, error) {
	var rows []ChoiceModel
	if err := s.db.WithContext(ctx).
		Where("student_id = ? AND week_start = ?", studentID, weekStart).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list choices: %w", err)
	}
	out := make([]selection.StudentMenuChoice, 0, len(rows))
	for _, r := range rows {
		out = append(out, toChoice(r))
	}
	return selection.SortByDay(out), nil
}

func fromChoice(c *selection.StudentMenuChoice) ChoiceModel {
	id := c.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return ChoiceModel{
		ID:             id,
		StudentID:      c.StudentID,
		WeekStart:      c.WeekStart,
		Day:            string(c.Day),
		Choice:         string(c.Choice),
		IsAutoAssigned: c.IsAutoAssigned,
	}
}

func toChoice(r ChoiceModel) selection.StudentMenuChoice {
	return selection.StudentMenuChoice{
		ID:             r.ID,
		StudentID:      r.StudentID,
		WeekStart:      r.WeekStart,
		Day:            selection.Day(r.Day),
		Choice:         selection.Choice(r.Choice),
		IsAutoAssigned: r.IsAutoAssigned,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}
