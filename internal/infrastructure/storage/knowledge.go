package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"school-meal-engine/internal/core/kb"
	"school-meal-engine/internal/pkg/common"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KnowledgeStore 資料庫版知識庫，實作 kb.Store
type KnowledgeStore struct {
	db *gorm.DB
}

// NewKnowledgeStore 創建知識庫儲存
func NewKnowledgeStore(db *gorm.DB) *KnowledgeStore {
	return &KnowledgeStore{db: db}
}

// FindIngredient 先比對正式名稱，再比對同義詞
func (s *KnowledgeStore) FindIngredient(ctx context.Context, normalized string) (*kb.Ingredient, error) {
	var m IngredientModel
	err := s.withSynonyms(ctx).Where("name = ?", normalized).First(&m).Error
	if err == nil {
		return toIngredient(m)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to find ingredient: %w", err)
	}

	var syn SynonymModel
	err = s.db.WithContext(ctx).Where("name = ?", normalized).First(&syn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find synonym: %w", err)
	}

	if err := s.withSynonyms(ctx).Where("id = ?", syn.IngredientID).First(&m).Error; err != nil {
		return nil, fmt.Errorf("failed to load ingredient for synonym %q: %w", normalized, err)
	}
	return toIngredient(m)
}

// ListMenuCases 依菜名與識別碼排序
func (s *KnowledgeStore) ListMenuCases(ctx context.Context, baseIngredientID uuid.UUID) ([]kb.MenuCase, error) {
	var rows []MenuCaseModel
	if err := s.db.WithContext(ctx).
		Where("base_ingredient_id = ?", baseIngredientID).
		Order("menu_name ASC").Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list menu cases: %w", err)
	}

	cases := make([]kb.MenuCase, 0, len(rows))
	for _, r := range rows {
		cases = append(cases, kb.MenuCase{
			ID:               r.ID,
			BaseIngredientID: r.BaseIngredientID,
			MenuName:         r.MenuName,
			Description:      r.Description,
			Calories:         r.Calories,
			Protein:          r.Protein,
			Carbs:            r.Carbs,
			Fat:              r.Fat,
		})
	}
	return cases, nil
}

// ListAllergens 所有過敏原，依名稱排序
func (s *KnowledgeStore) ListAllergens(ctx context.Context) ([]kb.Allergen, error) {
	var rows []AllergenModel
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list allergens: %w", err)
	}
	out := make([]kb.Allergen, 0, len(rows))
	for _, r := range rows {
		out = append(out, kb.Allergen{ID: r.ID, Name: r.Name, Description: r.Description})
	}
	return out, nil
}

// SeedReport 種子寫入統計
type SeedReport struct {
	Allergens   int `json:"allergens"`
	Ingredients int `json:"ingredients"`
	Synonyms    int `json:"synonyms"`
	Cases       int `json:"cases"`
}

// SeedKnowledge 將已驗證的目錄寫入資料庫，可重複執行
func (s *KnowledgeStore) SeedKnowledge(ctx context.Context, catalog *kb.Catalog) (*SeedReport, error) {
	report := &SeedReport{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		allergens := catalog.Allergens()
		if len(allergens) > 0 {
			rows := make([]AllergenModel, 0, len(allergens))
			for _, a := range allergens {
				rows = append(rows, AllergenModel{ID: a.ID, Name: a.Name, Description: a.Description})
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "description"}),
			}).Create(&rows).Error; err != nil {
				return fmt.Errorf("upsert allergens: %w", err)
			}
			report.Allergens = len(rows)
		}

		ingredients := catalog.Ingredients()
		if len(ingredients) > 0 {
			rows := make([]IngredientModel, 0, len(ingredients))
			ids := make([]uuid.UUID, 0, len(ingredients))
			var synonyms []SynonymModel
			for _, ing := range ingredients {
				tags, err := json.Marshal(ing.AllergenTags)
				if err != nil {
					return err
				}
				rows = append(rows, IngredientModel{
					ID:           ing.ID,
					Name:         ing.Name,
					Category:     string(ing.Category),
					AllergenTags: datatypes.JSON(tags),
				})
				ids = append(ids, ing.ID)
				for i, syn := range ing.Synonyms {
					synonyms = append(synonyms, SynonymModel{Name: syn, IngredientID: ing.ID, Position: i})
				}
			}

			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "category", "allergen_tags", "updated_at"}),
			}).Omit("Synonyms").Create(&rows).Error; err != nil {
				return fmt.Errorf("upsert ingredients: %w", err)
			}
			report.Ingredients = len(rows)

			// 同義詞整批替換，移除的同義詞不殘留
			if err := tx.Where("ingredient_id IN ?", ids).Delete(&SynonymModel{}).Error; err != nil {
				return fmt.Errorf("clear synonyms: %w", err)
			}
			if len(synonyms) > 0 {
				if err := tx.Create(&synonyms).Error; err != nil {
					return fmt.Errorf("insert synonyms: %w", err)
				}
			}
			report.Synonyms = len(synonyms)
		}

		cases := catalog.Cases()
		if len(cases) > 0 {
			rows := make([]MenuCaseModel, 0, len(cases))
			for _, c := range cases {
				rows = append(rows, MenuCaseModel{
					ID:               c.ID,
					BaseIngredientID: c.BaseIngredientID,
					MenuName:         c.MenuName,
					Description:      c.Description,
					Calories:         c.Calories,
					Protein:          c.Protein,
					Carbs:            c.Carbs,
					Fat:              c.Fat,
				})
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"base_ingredient_id",
					"menu_name",
					"description",
					"calories",
					"protein",
					"carbs",
					"fat",
					"updated_at",
				}),
			}).Create(&rows).Error; err != nil {
				return fmt.Errorf("upsert menu cases: %w", err)
			}
			report.Cases = len(rows)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to seed knowledge base: %w", err)
	}

	common.LogInfo("知識庫種子已寫入",
		zap.Int("allergens", report.Allergens),
		zap.Int("ingredients", report.Ingredients),
		zap.Int("synonyms", report.Synonyms),
		zap.Int("cases", report.Cases),
	)
	return report, nil
}

func (s *KnowledgeStore) withSynonyms(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Preload("Synonyms", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

func toIngredient(m IngredientModel) (*kb.Ingredient, error) {
	tags := []string{}
	if len(m.AllergenTags) > 0 {
		if err := json.Unmarshal(m.AllergenTags, &tags); err != nil {
			return nil, fmt.Errorf("invalid allergen tags for %q: %w", m.Name, err)
		}
	}
	synonyms := make([]string, 0, len(m.Synonyms))
	for _, syn := range m.Synonyms {
		synonyms = append(synonyms, syn.Name)
	}
	return &kb.Ingredient{
		ID:           m.ID,
		Name:         m.Name,
		Category:     kb.Category(m.Category),
		Synonyms:     synonyms,
		AllergenTags: tags,
	}, nil
}
