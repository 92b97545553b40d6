package meal

import (
	"fmt"
	"net/http"
	"time"

	"school-meal-engine/internal/core/selection"
	"school-meal-engine/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WindowResponse 選餐時段狀態
type WindowResponse struct {
	selection.WindowState
	Timezone string    `json:"timezone"`
	Now      time.Time `json:"now"`
}

// SubmitChoicesRequest 以上學日為鍵的選擇，例如 {"senin": "harian"}
type SubmitChoicesRequest struct {
	Choices map[string]string `json:"choices" binding:"required"`
}

// HandleWindow 目前是否可選餐及下次截止時間
func (h *Handler) HandleWindow(c *gin.Context) {
	now := h.selection.Now()
	c.JSON(http.StatusOK, WindowResponse{
		WindowState: h.selection.Policy().WindowState(now),
		Timezone:    now.Location().String(),
		Now:         now,
	})
}

// HandleSubmitChoices 學生提交或覆寫下週選擇
func (h *Handler) HandleSubmitChoices(c *gin.Context) {
	studentID, ok := h.studentParam(c)
	if !ok {
		return
	}

	var req SubmitChoicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteError(c, common.ErrInvalidRequest.Wrap(err))
		return
	}

	picks := make(map[selection.Day]selection.Choice, len(req.Choices))
	for rawDay, rawChoice := range req.Choices {
		day, err := selection.ParseDay(rawDay)
		if err != nil {
			common.WriteError(c, err)
			return
		}
		choice, err := selection.ParseChoice(rawChoice)
		if err != nil {
			common.WriteError(c, err)
			return
		}
		picks[day] = choice
	}

	saved, err := h.selection.SubmitChoices(c.Request.Context(), studentID, picks)
	if err != nil {
		common.LogWarn("Choice submission rejected",
			zap.String("request_id", requestid.Get(c)),
			zap.String("student_id", studentID.String()),
			zap.Error(err),
		)
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// HandleListChoices 學生目標週的選擇
func (h *Handler) HandleListChoices(c *gin.Context) {
	studentID, ok := h.studentParam(c)
	if !ok {
		return
	}

	list, err := h.selection.ListChoices(c.Request.Context(), studentID)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// HandleAutoAssign 立即執行一次自動指派
func (h *Handler) HandleAutoAssign(c *gin.Context) {
	if h.assigner == nil {
		common.WriteError(c, common.ErrSchedulerStopped)
		return
	}

	report, err := h.assigner.RunNow(c.Request.Context())
	if err != nil {
		common.LogError("On-demand auto-assignment failed",
			zap.String("request_id", requestid.Get(c)),
			zap.Error(err),
		)
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// studentParam 解析路徑中的學生 ID，並在可查詢時確認學生存在
func (h *Handler) studentParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.WriteError(c, common.ErrInvalidRequest.Wrap(err))
		return uuid.Nil, false
	}
	if h.students == nil {
		return id, true
	}

	found, err := h.students.FindStudent(c.Request.Context(), id)
	if err != nil {
		common.WriteError(c, err)
		return uuid.Nil, false
	}
	if found == nil {
		common.WriteError(c, common.ErrNotFound.Wrap(fmt.Errorf("student %s not found", id)))
		return uuid.Nil, false
	}
	return id, true
}
