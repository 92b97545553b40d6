package meal

import (
	"context"

	"school-meal-engine/internal/core/allergy"
	"school-meal-engine/internal/core/assignment"
	"school-meal-engine/internal/core/cbr"
	"school-meal-engine/internal/core/selection"
	"school-meal-engine/internal/core/validation"

	"github.com/google/uuid"
)

// StudentFinder 查詢學生過敏資料；不存在時回傳 nil, nil
type StudentFinder interface {
	FindStudent(ctx context.Context, id uuid.UUID) (*allergy.StudentProfile, error)
}

// AutoAssigner 手動觸發自動指派
type AutoAssigner interface {
	RunNow(ctx context.Context) (*assignment.RunReport, error)
}

// Deps 處理器依賴；Students 與 Assigner 可為 nil
type Deps struct {
	Validation *validation.Service
	Reasoner   *allergy.Reasoner
	Cases      *cbr.Retriever
	Selection  *selection.Service
	Students   StudentFinder
	Assigner   AutoAssigner
}

// Handler 學校供餐 API 處理器
type Handler struct {
	validation *validation.Service
	reasoner   *allergy.Reasoner
	cases      *cbr.Retriever
	selection  *selection.Service
	students   StudentFinder
	assigner   AutoAssigner
}

// NewHandler 創建處理器
func NewHandler(d Deps) *Handler {
	return &Handler{
		validation: d.Validation,
		reasoner:   d.Reasoner,
		cases:      d.Cases,
		selection:  d.Selection,
		students:   d.Students,
		assigner:   d.Assigner,
	}
}
