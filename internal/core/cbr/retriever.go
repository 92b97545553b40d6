package cbr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"school-meal-engine/internal/core/cache"
	"school-meal-engine/internal/core/kb"
	"school-meal-engine/internal/pkg/common"

	"go.uber.org/zap"
)

const (
	msgUnknownIngredient = "ingredient is not in the knowledge base"
	msgNoCases           = "ingredient is known but has no menu cases on file"
)

// Result 菜單範例查詢結果
type Result struct {
	Found      bool           `json:"found"`
	Ingredient *kb.Ingredient `json:"ingredient,omitempty"`
	Cases      []kb.MenuCase  `json:"cases"`
	Message    string         `json:"message,omitempty"`
}

// Retriever 以主食材為鍵查詢菜單範例，不做相似度排序
type Retriever struct {
	matcher *kb.Matcher
	store   kb.Store
	cache   cache.Cache
}

// NewRetriever 創建範例查詢器；c 可為 nil
func NewRetriever(store kb.Store, c cache.Cache) *Retriever {
	return &Retriever{
		matcher: kb.NewMatcher(store),
		store:   store,
		cache:   c,
	}
}

// RetrieveCases 解析主食材並回傳其所有菜單範例
func (r *Retriever) RetrieveCases(ctx context.Context, baseIngredientName string) (Result, error) {
	match, err := r.matcher.Match(ctx, baseIngredientName)
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve base ingredient: %w", err)
	}
	if match.Outcome != kb.Matched {
		return Result{Cases: []kb.MenuCase{}, Message: msgUnknownIngredient}, nil
	}

	cases, err := r.listCases(ctx, match.Ingredient)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Found:      true,
		Ingredient: match.Ingredient,
		Cases:      cases,
	}
	if len(cases) == 0 {
		res.Message = msgNoCases
	}
	return res, nil
}

func (r *Retriever) listCases(ctx context.Context, ing *kb.Ingredient) ([]kb.MenuCase, error) {
	key := "cases:" + ing.ID.String()

	if r.cache != nil {
		if data, err := r.cache.Get(ctx, key); err == nil {
			var cached []kb.MenuCase
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
			common.LogWarn("Discarding unreadable cached cases", zap.String("key", key))
		} else if !errors.Is(err, common.ErrCacheMiss) {
			common.LogWarn("Case cache lookup failed", zap.String("key", key), zap.Error(err))
		}
	}

	cases, err := r.store.ListMenuCases(ctx, ing.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu cases for %s: %w", ing.Name, err)
	}
	if cases == nil {
		cases = []kb.MenuCase{}
	}

	if r.cache != nil {
		if data, err := json.Marshal(cases); err == nil {
			if err := r.cache.Set(ctx, key, data); err != nil {
				common.LogWarn("Failed to cache menu cases", zap.String("key", key), zap.Error(err))
			}
		}
	}

	return cases, nil
}
