package meal

import (
	"net/http"

	"school-meal-engine/internal/core/kb"
	"school-meal-engine/internal/core/validation"
	"school-meal-engine/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ValidateRequest 單筆驗證；ingredient 可為任意 JSON 值，非字串視為無效輸入
type ValidateRequest struct {
	Ingredient interface{} `json:"ingredient"`
}

// ValidateManyRequest 批次驗證：ingredients 陣列或逗號分隔的 text 擇一
type ValidateManyRequest struct {
	Ingredients interface{} `json:"ingredients"`
	Text        *string     `json:"text"`
}

// ValidateManyResponse 批次驗證結果，順序與輸入一致
type ValidateManyResponse struct {
	Results  []validation.Result `json:"results"`
	AllValid bool                `json:"all_valid"`
}

// HandleValidate 驗證單一食材
func (h *Handler) HandleValidate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteError(c, common.ErrInvalidRequest.Wrap(err))
		return
	}

	result := h.validation.ValidateMany(c.Request.Context(), []*string{textOrNil(req.Ingredient)})[0]
	c.JSON(http.StatusOK, result)
}

// HandleValidateMany 逐筆驗證多個食材
func (h *Handler) HandleValidateMany(c *gin.Context) {
	var req ValidateManyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteError(c, common.ErrInvalidRequest.Wrap(err))
		return
	}

	ctx := c.Request.Context()
	var results []validation.Result
	switch items := req.Ingredients.(type) {
	case []interface{}:
		texts := make([]*string, len(items))
		for i, item := range items {
			texts[i] = textOrNil(item)
		}
		results = h.validation.ValidateMany(ctx, texts)
	case nil:
		if req.Text != nil {
			results = h.validation.ValidateDescription(ctx, *req.Text)
		} else {
			results = h.validation.ValidateMany(ctx, nil)
		}
	default:
		results = h.validation.ValidateMany(ctx, nil)
	}

	allValid := true
	for _, r := range results {
		allValid = allValid && r.Valid
	}

	common.LogDebug("食材批次驗證完成",
		zap.String("request_id", requestid.Get(c)),
		zap.Int("count", len(results)),
		zap.Bool("all_valid", allValid),
	)

	c.JSON(http.StatusOK, ValidateManyResponse{Results: results, AllValid: allValid})
}

// HandleCases 以主食材查詢菜單範例
func (h *Handler) HandleCases(c *gin.Context) {
	name := c.Query("ingredient")

	result, err := h.cases.RetrieveCases(c.Request.Context(), name)
	if err != nil {
		common.LogError("Case retrieval failed",
			zap.String("request_id", requestid.Get(c)),
			zap.String("ingredient", name),
			zap.Error(err),
		)
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func textOrNil(v interface{}) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

// splitOrList 合併食材陣列與逗號分隔文字
func splitOrList(list []string, text string) []string {
	extra := kb.SplitIngredients(text)
	if len(extra) == 0 {
		return list
	}
	return append(append([]string{}, list...), extra...)
}
