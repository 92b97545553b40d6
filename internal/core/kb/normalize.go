package kb

import "strings"

// Normalize 去除前後空白並轉小寫，對任何字串皆成立
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// SplitIngredients 以逗號切分多食材描述，逐段正規化並丟棄空段
func SplitIngredients(description string) []string {
	parts := strings.Split(description, ",")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := Normalize(p); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
