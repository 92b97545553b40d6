package kb

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Category 食材分類（封閉列舉）
type Category string

const (
	CategoryProtein   Category = "protein"
	CategoryCarb      Category = "carb"
	CategoryVegetable Category = "vegetable"
	CategoryFruit     Category = "fruit"
	CategoryDairy     Category = "dairy"
	CategorySoy       Category = "soy"
	CategorySeafood   Category = "seafood"
	CategoryGluten    Category = "gluten"
	CategoryEgg       Category = "egg"
	CategoryNut       Category = "nut"
	CategoryMisc      Category = "misc"
)

var validCategories = map[Category]struct{}{
	CategoryProtein:   {},
	CategoryCarb:      {},
	CategoryVegetable: {},
	CategoryFruit:     {},
	CategoryDairy:     {},
	CategorySoy:       {},
	CategorySeafood:   {},
	CategoryGluten:    {},
	CategoryEgg:       {},
	CategoryNut:       {},
	CategoryMisc:      {},
}

// ParseCategory 解析分類字串，不在列舉內即為錯誤
func ParseCategory(s string) (Category, error) {
	c := Category(Normalize(s))
	if _, ok := validCategories[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

// 知識庫載入錯誤
var (
	ErrInvalidCategory   = errors.New("invalid ingredient category")
	ErrDuplicateName     = errors.New("duplicate ingredient name")
	ErrSynonymCollision  = errors.New("synonym collides with another ingredient")
	ErrUnknownAllergen   = errors.New("unknown allergen tag")
	ErrUnknownIngredient = errors.New("unknown base ingredient")
	ErrEmptyName         = errors.New("empty name")
)

// Allergen 過敏原參考資料
type Allergen struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

// Ingredient 知識庫食材
type Ingredient struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Category     Category  `json:"category"`
	Synonyms     []string  `json:"synonyms"`
	AllergenTags []string  `json:"allergen_tags"`
}

// MenuCase 以主食材為索引的菜單範例
type MenuCase struct {
	ID               uuid.UUID `json:"id"`
	BaseIngredientID uuid.UUID `json:"base_ingredient_id"`
	MenuName         string    `json:"menu_name"`
	Description      string    `json:"description"`
	Calories         float64   `json:"calories"`
	Protein          string    `json:"protein"`
	Carbs            string    `json:"carbs"`
	Fat              string    `json:"fat"`
}

var idNamespace = uuid.MustParse("6f1c2a4e-3b8d-4c57-9a0e-5d2f7b91c8a3")

// IngredientID 由正規化名稱推導穩定識別碼
func IngredientID(name string) uuid.UUID {
	return uuid.NewSHA1(idNamespace, []byte("ingredient:"+Normalize(name)))
}

// AllergenID 由過敏原名稱推導穩定識別碼
func AllergenID(name string) uuid.UUID {
	return uuid.NewSHA1(idNamespace, []byte("allergen:"+Normalize(name)))
}

// MenuCaseID 由主食材與菜名推導穩定識別碼
func MenuCaseID(baseIngredient, menuName string) uuid.UUID {
	return uuid.NewSHA1(idNamespace, []byte("case:"+Normalize(baseIngredient)+":"+Normalize(menuName)))
}
