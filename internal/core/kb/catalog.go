package kb

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Seed 知識庫種子資料格式
type Seed struct {
	Allergens   []SeedAllergen   `json:"allergens"`
	Ingredients []SeedIngredient `json:"ingredients"`
	Cases       []SeedCase       `json:"cases"`
}

// SeedAllergen 種子過敏原
type SeedAllergen struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SeedIngredient 種子食材
type SeedIngredient struct {
	Name      string   `json:"name"`
	Category  string   `json:"category"`
	Synonyms  []string `json:"synonyms"`
	Allergens []string `json:"allergens"`
}

// SeedCase 種子菜單範例
type SeedCase struct {
	BaseIngredient string  `json:"base_ingredient"`
	MenuName       string  `json:"menu_name"`
	Description    string  `json:"description"`
	Calories       float64 `json:"calories"`
	Protein        string  `json:"protein"`
	Carbs          string  `json:"carbs"`
	Fat            string  `json:"fat"`
}

// Catalog 已驗證的記憶體知識庫，實作 Store
type Catalog struct {
	allergens   []Allergen
	ingredients []Ingredient
	byName      map[string]int
	bySynonym   map[string]int
	cases       map[uuid.UUID][]MenuCase
}

// NewCatalog 驗證種子並建立索引；任何撰寫錯誤都在載入時回報
func NewCatalog(seed *Seed) (*Catalog, error) {
	c := &Catalog{
		byName:    make(map[string]int),
		bySynonym: make(map[string]int),
		cases:     make(map[uuid.UUID][]MenuCase),
	}

	allergenNames := make(map[string]struct{}, len(seed.Allergens))
	for _, a := range seed.Allergens {
		name := Normalize(a.Name)
		if name == "" {
			return nil, fmt.Errorf("allergen: %w", ErrEmptyName)
		}
		if _, dup := allergenNames[name]; dup {
			return nil, fmt.Errorf("allergen %q declared twice", name)
		}
		allergenNames[name] = struct{}{}
		c.allergens = append(c.allergens, Allergen{
			ID:          AllergenID(name),
			Name:        name,
			Description: a.Description,
		})
	}

	for _, si := range seed.Ingredients {
		name := Normalize(si.Name)
		if name == "" {
			return nil, fmt.Errorf("ingredient: %w", ErrEmptyName)
		}
		if _, dup := c.byName[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		if owner, ok := c.bySynonym[name]; ok {
			return nil, fmt.Errorf("%w: %q is a synonym of %q", ErrSynonymCollision, name, c.ingredients[owner].Name)
		}
		category, err := ParseCategory(si.Category)
		if err != nil {
			return nil, fmt.Errorf("ingredient %q: %w", name, err)
		}

		idx := len(c.ingredients)
		ing := Ingredient{
			ID:           IngredientID(name),
			Name:         name,
			Category:     category,
			Synonyms:     []string{},
			AllergenTags: []string{},
		}

		for _, raw := range si.Synonyms {
			syn := Normalize(raw)
			if syn == "" || syn == name {
				continue
			}
			if owner, ok := c.byName[syn]; ok {
				return nil, fmt.Errorf("%w: synonym %q of %q is the name of %q", ErrSynonymCollision, syn, name, c.ingredients[owner].Name)
			}
			if owner, ok := c.bySynonym[syn]; ok {
				if owner == idx {
					continue
				}
				return nil, fmt.Errorf("%w: synonym %q of %q also belongs to %q", ErrSynonymCollision, syn, name, c.ingredients[owner].Name)
			}
			c.bySynonym[syn] = idx
			ing.Synonyms = append(ing.Synonyms, syn)
		}

		seen := make(map[string]struct{})
		for _, raw := range si.Allergens {
			tag := Normalize(raw)
			if _, ok := allergenNames[tag]; !ok {
				return nil, fmt.Errorf("ingredient %q: %w: %q", name, ErrUnknownAllergen, raw)
			}
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			ing.AllergenTags = append(ing.AllergenTags, tag)
		}

		c.byName[name] = idx
		c.ingredients = append(c.ingredients, ing)
	}

	caseIDs := make(map[uuid.UUID]struct{}, len(seed.Cases))
	for _, sc := range seed.Cases {
		base := Normalize(sc.BaseIngredient)
		idx, ok := c.byName[base]
		if !ok {
			return nil, fmt.Errorf("case %q: %w: %q", sc.MenuName, ErrUnknownIngredient, sc.BaseIngredient)
		}
		if Normalize(sc.MenuName) == "" {
			return nil, fmt.Errorf("case for %q: %w", base, ErrEmptyName)
		}
		id := MenuCaseID(base, sc.MenuName)
		if _, dup := caseIDs[id]; dup {
			return nil, fmt.Errorf("case %q for %q declared twice", sc.MenuName, base)
		}
		caseIDs[id] = struct{}{}
		ing := c.ingredients[idx]
		c.cases[ing.ID] = append(c.cases[ing.ID], MenuCase{
			ID:               id,
			BaseIngredientID: ing.ID,
			MenuName:         sc.MenuName,
			Description:      sc.Description,
			Calories:         sc.Calories,
			Protein:          sc.Protein,
			Carbs:            sc.Carbs,
			Fat:              sc.Fat,
		})
	}
	for id := range c.cases {
		SortCases(c.cases[id])
	}

	return c, nil
}

// SortCases 依菜名、識別碼排序，確保輸出穩定
func SortCases(cases []MenuCase) {
	sort.SliceStable(cases, func(i, j int) bool {
		if cases[i].MenuName != cases[j].MenuName {
			return cases[i].MenuName < cases[j].MenuName
		}
		return cases[i].ID.String() < cases[j].ID.String()
	})
}

// FindIngredient 先比對正式名稱，再比對同義詞
func (c *Catalog) FindIngredient(_ context.Context, normalized string) (*Ingredient, error) {
	if idx, ok := c.byName[normalized]; ok {
		return c.copyIngredient(idx), nil
	}
	if idx, ok := c.bySynonym[normalized]; ok {
		return c.copyIngredient(idx), nil
	}
	return nil, nil
}

// ListMenuCases 列出主食材的菜單範例
func (c *Catalog) ListMenuCases(_ context.Context, baseIngredientID uuid.UUID) ([]MenuCase, error) {
	return append([]MenuCase{}, c.cases[baseIngredientID]...), nil
}

// Allergens 所有過敏原
func (c *Catalog) Allergens() []Allergen {
	return append([]Allergen{}, c.allergens...)
}

// Ingredients 所有食材，依種子順序
func (c *Catalog) Ingredients() []Ingredient {
	out := make([]Ingredient, len(c.ingredients))
	for i := range c.ingredients {
		out[i] = *c.copyIngredient(i)
	}
	return out
}

// Cases 所有菜單範例，依食材順序
func (c *Catalog) Cases() []MenuCase {
	var out []MenuCase
	for _, ing := range c.ingredients {
		out = append(out, c.cases[ing.ID]...)
	}
	return out
}

func (c *Catalog) copyIngredient(idx int) *Ingredient {
	ing := c.ingredients[idx]
	ing.Synonyms = append([]string{}, ing.Synonyms...)
	ing.AllergenTags = append([]string{}, ing.AllergenTags...)
	return &ing
}
