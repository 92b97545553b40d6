package storage

import (
	"context"
	"errors"
	"fmt"

	"school-meal-engine/internal/core/allergy"
	"school-meal-engine/internal/core/kb"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StudentStore 學生資料查詢
type StudentStore struct {
	db *gorm.DB
}

// NewStudentStore 創建學生儲存
func NewStudentStore(db *gorm.DB) *StudentStore {
	return &StudentStore{db: db}
}

// ListStudents 所有學生與其結構化過敏原、自由文字過敏清單
func (s *StudentStore) ListStudents(ctx context.Context) ([]allergy.StudentProfile, error) {
	var rows []StudentModel
	if err := s.db.WithContext(ctx).
		Preload("Allergens", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}

	out := make([]allergy.StudentProfile, 0, len(rows))
	for _, r := range rows {
		out = append(out, toProfile(r))
	}
	return out, nil
}

// FindStudent 查詢單一學生；不存在時回傳 nil, nil
func (s *StudentStore) FindStudent(ctx context.Context, id uuid.UUID) (*allergy.StudentProfile, error) {
	var row StudentModel
	err := s.db.WithContext(ctx).
		Preload("Allergens", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		Where("id = ?", id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find student: %w", err)
	}
	p := toProfile(row)
	return &p, nil
}

// SaveStudent 建立或更新學生；過敏原須已存在於 allergens 表
func (s *StudentStore) SaveStudent(ctx context.Context, id uuid.UUID, name string, allergens []string, customAllergies string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs []AllergenModel
		if len(allergens) > 0 {
			names := allergy.MergeTags(allergens)
			if err := tx.Where("name IN ?", names).Find(&refs).Error; err != nil {
				return fmt.Errorf("failed to load allergens: %w", err)
			}
			if len(refs) != len(names) {
				return fmt.Errorf("%w: %v", kb.ErrUnknownAllergen, names)
			}
		}

		row := StudentModel{ID: id, Name: name, CustomAllergies: customAllergies}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "custom_allergies", "updated_at"}),
		}).Omit("Allergens").Create(&row).Error; err != nil {
			return fmt.Errorf("failed to save student: %w", err)
		}
		assoc := tx.Model(&row).Association("Allergens")
		if len(refs) == 0 {
			if err := assoc.Clear(); err != nil {
				return fmt.Errorf("failed to clear student allergens: %w", err)
			}
			return nil
		}
		if err := assoc.Replace(refs); err != nil {
			return fmt.Errorf("failed to save student allergens: %w", err)
		}
		return nil
	})
}

func toProfile(r StudentModel) allergy.StudentProfile {
	tags := make([]string, 0, len(r.Allergens))
	for _, a := range r.Allergens {
		tags = append(tags, a.Name)
	}
	return allergy.StudentProfile{
		StudentID:       r.ID,
		Allergens:       tags,
		CustomAllergies: r.CustomAllergies,
	}
}
