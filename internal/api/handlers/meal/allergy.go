package meal

import (
	"fmt"
	"net/http"

	"school-meal-engine/internal/core/allergy"
	"school-meal-engine/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AllergyCheckRequest 過敏檢查。帶 student_id 時以資料庫中的學生資料為準，
// 否則使用 student_allergens 與 custom_allergies
type AllergyCheckRequest struct {
	StudentID        string   `json:"student_id"`
	StudentAllergens []string `json:"student_allergens"`
	CustomAllergies  string   `json:"custom_allergies"`
	Ingredients      []string `json:"ingredients"`
	IngredientText   string   `json:"ingredient_text"`
	MenuAllergens    []string `json:"menu_allergens"`
}

// HandleAllergyCheck 比對學生過敏原與食材
func (h *Handler) HandleAllergyCheck(c *gin.Context) {
	var req AllergyCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteError(c, common.ErrInvalidRequest.Wrap(err))
		return
	}
	ctx := c.Request.Context()

	profile := allergy.StudentProfile{
		Allergens:       req.StudentAllergens,
		CustomAllergies: req.CustomAllergies,
	}
	if req.StudentID != "" {
		id, err := uuid.Parse(req.StudentID)
		if err != nil {
			common.WriteError(c, common.ErrInvalidRequest.Wrap(err))
			return
		}
		if h.students == nil {
			common.WriteError(c, common.ErrServiceUnavailable)
			return
		}
		found, err := h.students.FindStudent(ctx, id)
		if err != nil {
			common.WriteError(c, err)
			return
		}
		if found == nil {
			common.WriteError(c, common.ErrNotFound.Wrap(fmt.Errorf("student %s not found", id)))
			return
		}
		profile = *found
	}

	tokens := splitOrList(req.Ingredients, req.IngredientText)
	result, err := h.reasoner.CheckStudent(ctx, profile, tokens, req.MenuAllergens)
	if err != nil {
		common.LogError("Allergy check failed",
			zap.String("request_id", requestid.Get(c)),
			zap.Error(err),
		)
		common.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
