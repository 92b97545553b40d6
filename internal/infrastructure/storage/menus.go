package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"school-meal-engine/internal/core/selection"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MenuStore 週菜單儲存
type MenuStore struct {
	db *gorm.DB
}

// NewMenuStore 創建週菜單儲存
func NewMenuStore(db *gorm.DB) *MenuStore {
	return &MenuStore{db: db}
}

// FindUpcomingActiveMenu 週起始日嚴格晚於 after 的最近啟用菜單；沒有時回傳 nil, nil
func (s *MenuStore) FindUpcomingActiveMenu(ctx context.Context, after time.Time) (*selection.WeeklyMenu, error) {
	var row WeeklyMenuModel
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("is_active = ? AND week_start > ?", true, after.UTC()).
		Order("week_start ASC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find upcoming menu: %w", err)
	}
	return toMenu(row)
}

// SaveMenu 建立或整份替換週菜單
func (s *MenuStore) SaveMenu(ctx context.Context, menu *selection.WeeklyMenu) error {
	if menu.ID == uuid.Nil {
		menu.ID = uuid.New()
	}

	items := make([]MenuItemModel, 0, len(menu.Items))
	for i, item := range menu.Items {
		ingredients, err := json.Marshal(nonNil(item.Ingredients))
		if err != nil {
			return err
		}
		allergens, err := json.Marshal(nonNil(item.Allergens))
		if err != nil {
			return err
		}
		items = append(items, MenuItemModel{
			ID:          uuid.New(),
			MenuID:      menu.ID,
			Position:    i,
			Day:         string(item.Day),
			Choice:      string(item.Choice),
			Name:        item.Name,
			Ingredients: datatypes.JSON(ingredients),
			Allergens:   datatypes.JSON(allergens),
		})
	}

	row := WeeklyMenuModel{
		ID:        menu.ID,
		WeekStart: menu.WeekStart.UTC(),
		WeekEnd:   menu.WeekEnd.UTC(),
		IsActive:  menu.IsActive,
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("menu_id = ?", menu.ID).Delete(&MenuItemModel{}).Error; err != nil {
			return fmt.Errorf("failed to clear menu items: %w", err)
		}
		if err := tx.Where("id = ?", menu.ID).Delete(&WeeklyMenuModel{}).Error; err != nil {
			return fmt.Errorf("failed to replace menu: %w", err)
		}
		if err := tx.Omit("Items").Create(&row).Error; err != nil {
			return fmt.Errorf("failed to save menu: %w", err)
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return fmt.Errorf("failed to save menu items: %w", err)
			}
		}
		return nil
	})
}

func toMenu(row WeeklyMenuModel) (*selection.WeeklyMenu, error) {
	menu := &selection.WeeklyMenu{
		ID:        row.ID,
		WeekStart: row.WeekStart,
		WeekEnd:   row.WeekEnd,
		IsActive:  row.IsActive,
		Items:     make([]selection.MenuItem, 0, len(row.Items)),
	}
	for _, it := range row.Items {
		item := selection.MenuItem{
			Day:         selection.Day(it.Day),
			Choice:      selection.Choice(it.Choice),
			Name:        it.Name,
			Ingredients: []string{},
			Allergens:   []string{},
		}
		if err := json.Unmarshal(it.Ingredients, &item.Ingredients); err != nil {
			return nil, fmt.Errorf("invalid ingredients on menu item %s: %w", it.ID, err)
		}
		if err := json.Unmarshal(it.Allergens, &item.Allergens); err != nil {
			return nil, fmt.Errorf("invalid allergens on menu item %s: %w", it.ID, err)
		}
		menu.Items = append(menu.Items, item)
	}
	return menu, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
