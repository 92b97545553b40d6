package storage

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AllergenModel 過敏原參考資料
type AllergenModel struct {
	ID          uuid.UUID `gorm:"primaryKey;size:36"`
	Name        string    `gorm:"size:64;not null;uniqueIndex"`
	Description string    `gorm:"type:text"`
}

func (AllergenModel) TableName() string { return "allergens" }

// IngredientModel 知識庫食材；過敏原標籤以 JSON 保留順序
type IngredientModel struct {
	ID           uuid.UUID      `gorm:"primaryKey;size:36"`
	Name         string         `gorm:"size:128;not null;uniqueIndex"`
	Category     string         `gorm:"size:32;not null;index"`
	AllergenTags datatypes.JSON `gorm:"not null"`
	Synonyms     []SynonymModel `gorm:"foreignKey:IngredientID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (IngredientModel) TableName() string { return "ingredients" }

// SynonymModel 同義詞；名稱全域唯一，避免同義詞解析到兩個食材
type SynonymModel struct {
	Name         string    `gorm:"primaryKey;size:128"`
	IngredientID uuid.UUID `gorm:"size:36;not null;index"`
	Position     int       `gorm:"not null"`
}

func (SynonymModel) TableName() string { return "ingredient_synonyms" }

// MenuCaseModel 以主食材為索引的菜單範例
type MenuCaseModel struct {
	ID               uuid.UUID `gorm:"primaryKey;size:36"`
	BaseIngredientID uuid.UUID `gorm:"size:36;not null;index"`
	MenuName         string    `gorm:"size:255;not null"`
	Description      string    `gorm:"type:text"`
	Calories         float64
	Protein          string `gorm:"size:32"`
	Carbs            string `gorm:"size:32"`
	Fat              string `gorm:"size:32"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (MenuCaseModel) TableName() string { return "menu_cases" }

// StudentModel 學生與其過敏資料
type StudentModel struct {
	ID              uuid.UUID       `gorm:"primaryKey;size:36"`
	Name            string          `gorm:"size:255"`
	CustomAllergies string          `gorm:"type:text"`
	Allergens       []AllergenModel `gorm:"many2many:student_allergens;joinForeignKey:StudentID;joinReferences:AllergenID"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (StudentModel) TableName() string { return "students" }

// ChoiceModel 學生選餐，(student_id, week_start, day) 唯一
type ChoiceModel struct {
	ID             uuid.UUID `gorm:"primaryKey;size:36"`
	StudentID      uuid.UUID `gorm:"size:36;not null;uniqueIndex:idx_choice_student_week_day,priority:1"`
	WeekStart      string    `gorm:"size:10;not null;uniqueIndex:idx_choice_student_week_day,priority:2"`
	Day            string    `gorm:"size:10;not null;uniqueIndex:idx_choice_student_week_day,priority:3"`
	Choice         string    `gorm:"size:10;not null"`
	IsAutoAssigned bool      `gorm:"not null;default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (ChoiceModel) TableName() string { return "student_menu_choices" }

// WeeklyMenuModel 週菜單；時間一律以 UTC 儲存
type WeeklyMenuModel struct {
	ID        uuid.UUID       `gorm:"primaryKey;size:36"`
	WeekStart time.Time       `gorm:"not null;index"`
	WeekEnd   time.Time       `gorm:"not null"`
	IsActive  bool            `gorm:"not null;default:false;index"`
	Items     []MenuItemModel `gorm:"foreignKey:MenuID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (WeeklyMenuModel) TableName() string { return "weekly_menus" }

// MenuItemModel 菜單品項，標示食材與過敏原以 JSON 儲存
type MenuItemModel struct {
	ID          uuid.UUID      `gorm:"primaryKey;size:36"`
	MenuID      uuid.UUID      `gorm:"size:36;not null;index"`
	Position    int            `gorm:"not null"`
	Day         string         `gorm:"size:10;not null"`
	Choice      string         `gorm:"size:10;not null"`
	Name        string         `gorm:"size:255"`
	Ingredients datatypes.JSON `gorm:"not null"`
	Allergens   datatypes.JSON `gorm:"not null"`
}

func (MenuItemModel) TableName() string { return "menu_items" }

// Models 需要遷移的所有資料表
func Models() []interface{} {
	return []interface{}{
		&AllergenModel{},
		&IngredientModel{},
		&SynonymModel{},
		&MenuCaseModel{},
		&StudentModel{},
		&ChoiceModel{},
		&WeeklyMenuModel{},
		&MenuItemModel{},
	}
}
