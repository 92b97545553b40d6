package validation

import (
	"context"

	"school-meal-engine/internal/core/kb"
	"school-meal-engine/internal/pkg/common"

	"go.uber.org/zap"
)

// Reason 驗證失敗原因
type Reason string

const (
	ReasonInvalidInput       Reason = common.ErrCodeInvalidInput
	ReasonEmptyInput         Reason = common.ErrCodeEmptyInput
	ReasonIngredientNotFound Reason = common.ErrCodeIngredientNotFound
	ReasonInternalError      Reason = common.ErrCodeInternalError
)

var reasonMessages = map[Reason]string{
	ReasonInvalidInput:       "ingredient input is missing or not text",
	ReasonEmptyInput:         "ingredient input is blank",
	ReasonIngredientNotFound: "ingredient is not in the knowledge base",
	ReasonInternalError:      "knowledge base lookup failed, please retry",
}

// Result 單筆驗證結果；Valid 為 true 時 Reason 為空
type Result struct {
	Valid             bool           `json:"valid"`
	Ingredient        *kb.Ingredient `json:"ingredient,omitempty"`
	ResolvedAllergens []string       `json:"resolved_allergens"`
	Reason            Reason         `json:"reason,omitempty"`
	Message           string         `json:"message,omitempty"`
	OriginalText      string         `json:"original_text"`
}

func invalid(reason Reason, original string) Result {
	return Result{
		Reason:       reason,
		Message:      reasonMessages[reason],
		OriginalText: original,
	}
}

// Service 食材驗證服務
type Service struct {
	matcher *kb.Matcher
}

// NewService 創建食材驗證服務
func NewService(matcher *kb.Matcher) *Service {
	return &Service{matcher: matcher}
}

// ValidateIngredient 驗證單一食材文字
func (s *Service) ValidateIngredient(ctx context.Context, text string) Result {
	return s.validate(ctx, &text)
}

// ValidateMany 逐筆驗證；nil 代表缺漏或非文字輸入。結果順序與輸入一致，空清單回傳單一 INVALID_INPUT
func (s *Service) ValidateMany(ctx context.Context, texts []*string) []Result {
	if len(texts) == 0 {
		return []Result{invalid(ReasonInvalidInput, "")}
	}

	results := make([]Result, len(texts))
	for i, t := range texts {
		results[i] = s.validate(ctx, t)
	}
	return results
}

// ValidateDescription 以逗號切分多食材描述後逐筆驗證
func (s *Service) ValidateDescription(ctx context.Context, description string) []Result {
	tokens := kb.SplitIngredients(description)
	texts := make([]*string, len(tokens))
	for i := range tokens {
		texts[i] = &tokens[i]
	}
	return s.ValidateMany(ctx, texts)
}

func (s *Service) validate(ctx context.Context, text *string) Result {
	if text == nil {
		return invalid(ReasonInvalidInput, "")
	}

	match, err := s.matcher.Match(ctx, *text)
	if err != nil {
		common.LogError("Ingredient lookup failed",
			zap.String("input", *text),
			zap.Error(err),
		)
		return invalid(ReasonInternalError, *text)
	}

	switch match.Outcome {
	case kb.Empty:
		return invalid(ReasonEmptyInput, *text)
	case kb.NotFound:
		return invalid(ReasonIngredientNotFound, *text)
	}

	return Result{
		Valid:             true,
		Ingredient:        match.Ingredient,
		ResolvedAllergens: append([]string{}, match.Ingredient.AllergenTags...),
		OriginalText:      *text,
	}
}
