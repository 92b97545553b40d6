package allergy

import (
	"context"
	"fmt"
	"strings"

	"school-meal-engine/internal/core/kb"
)

// Severity 過敏嚴重度
type Severity string

const (
	SeverityHigh Severity = "high"
	SeverityNone Severity = "none"
)

// Result 過敏檢查結果；MatchedAllergens 依首次發現順序
type Result struct {
	HasAllergy       bool     `json:"has_allergy"`
	MatchedAllergens []string `json:"matched_allergens"`
	Severity         Severity `json:"severity"`
}

// Reasoner 過敏原推論器
type Reasoner struct {
	matcher *kb.Matcher
}

// NewReasoner 創建推論器；matcher 可為 nil，此時只做關鍵字比對
func NewReasoner(matcher *kb.Matcher) *Reasoner {
	return &Reasoner{matcher: matcher}
}

// CheckAllergy 比對學生過敏原與食材、菜單標示過敏原。
// 食材比對採雙向子字串包含，並加上知識庫解析出的過敏原標籤。
func (r *Reasoner) CheckAllergy(ctx context.Context, studentAllergens, ingredientTokens, menuDeclaredAllergens []string) (Result, error) {
	student := MergeTags(studentAllergens)
	studentSet := make(map[string]struct{}, len(student))
	for _, tag := range student {
		studentSet[tag] = struct{}{}
	}

	matched := newTagSet()

	for _, tag := range MergeTags(menuDeclaredAllergens) {
		if _, ok := studentSet[tag]; ok {
			matched.add(tag)
		}
	}

	for _, raw := range ingredientTokens {
		token := kb.Normalize(raw)
		if token == "" {
			continue
		}

		if r.matcher != nil && len(student) > 0 {
			m, err := r.matcher.Match(ctx, token)
			if err != nil {
				return Result{}, fmt.Errorf("failed to resolve ingredient %q: %w", token, err)
			}
			if m.Outcome == kb.Matched {
				for _, tag := range m.Ingredient.AllergenTags {
					if _, ok := studentSet[tag]; ok {
						matched.add(tag)
					}
				}
			}
		}

		for _, tag := range student {
			if strings.Contains(token, tag) || strings.Contains(tag, token) {
				matched.add(tag)
			}
		}
	}

	res := Result{
		MatchedAllergens: matched.items,
		Severity:         SeverityNone,
	}
	if len(matched.items) > 0 {
		res.HasAllergy = true
		res.Severity = SeverityHigh
	}
	return res, nil
}

// CheckStudent 以學生完整過敏資料進行檢查
func (r *Reasoner) CheckStudent(ctx context.Context, profile StudentProfile, ingredientTokens, menuDeclaredAllergens []string) (Result, error) {
	return r.CheckAllergy(ctx, profile.Tags(), ingredientTokens, menuDeclaredAllergens)
}

type tagSet struct {
	seen  map[string]struct{}
	items []string
}

func newTagSet() *tagSet {
	return &tagSet{seen: make(map[string]struct{}), items: []string{}}
}

func (s *tagSet) add(tag string) {
	if _, ok := s.seen[tag]; ok {
		return
	}
	s.seen[tag] = struct{}{}
	s.items = append(s.items, tag)
}
