package allergy

import (
	"strings"

	"school-meal-engine/internal/core/kb"

	"github.com/google/uuid"
)

// StudentProfile 學生過敏資料：結構化過敏原與自由文字過敏清單
type StudentProfile struct {
	StudentID       uuid.UUID `json:"student_id"`
	Allergens       []string  `json:"allergens"`
	CustomAllergies string    `json:"custom_allergies"`
}

// ParseCustomAllergies 以逗號切分自由文字，去除空白並轉小寫
func ParseCustomAllergies(text string) []string {
	return kb.SplitIngredients(text)
}

// Tags 結構化過敏原與自由文字的聯集，保留首次出現順序
func (p StudentProfile) Tags() []string {
	return MergeTags(p.Allergens, ParseCustomAllergies(p.CustomAllergies))
}

// HasAllergies 任一來源非空即視為有過敏
func (p StudentProfile) HasAllergies() bool {
	for _, a := range p.Allergens {
		if strings.TrimSpace(a) != "" {
			return true
		}
	}
	return len(ParseCustomAllergies(p.CustomAllergies)) > 0
}

// MergeTags 正規化、去重並合併多組標籤
func MergeTags(groups ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, group := range groups {
		for _, raw := range group {
			tag := kb.Normalize(raw)
			if tag == "" {
				continue
			}
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}
