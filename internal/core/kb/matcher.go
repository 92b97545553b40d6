package kb

import (
	"context"

	"github.com/google/uuid"
)

// Store 知識庫查詢能力，由資料庫或記憶體目錄實作
type Store interface {
	// FindIngredient 依正規化名稱查詢：先比對正式名稱，再比對同義詞；查無時回傳 nil, nil
	FindIngredient(ctx context.Context, normalized string) (*Ingredient, error)

	// ListMenuCases 列出指定主食材的所有菜單範例，順序固定
	ListMenuCases(ctx context.Context, baseIngredientID uuid.UUID) ([]MenuCase, error)
}

// MatchOutcome 比對結果
type MatchOutcome int

const (
	Matched MatchOutcome = iota
	NotFound
	Empty
)

// Match 單筆比對結果
type Match struct {
	Outcome    MatchOutcome
	Ingredient *Ingredient
}

// Matcher 食材比對器
type Matcher struct {
	store Store
}

// NewMatcher 創建食材比對器
func NewMatcher(store Store) *Matcher {
	return &Matcher{store: store}
}

// Match 將輸入正規化後解析為知識庫食材；查無結果不是錯誤，只有儲存層故障才回傳 error
func (m *Matcher) Match(ctx context.Context, text string) (Match, error) {
	token := Normalize(text)
	if token == "" {
		return Match{Outcome: Empty}, nil
	}

	ing, err := m.store.FindIngredient(ctx, token)
	if err != nil {
		return Match{}, err
	}
	if ing == nil {
		return Match{Outcome: NotFound}, nil
	}
	return Match{Outcome: Matched, Ingredient: ing}, nil
}
