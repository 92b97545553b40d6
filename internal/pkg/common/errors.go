package common

import (
	"errors"
	"net/http"
)

// ErrorResponse 定義 API 錯誤響應結構
type ErrorResponse struct {
	Code    string `json:"code"`              // 錯誤代碼
	Message string `json:"message"`           // 錯誤信息
	Details string `json:"details,omitempty"` // 詳細信息（僅在開發模式顯示）
}

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 錯誤信息
	Err     error  // 原始錯誤
	Status  int    // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Wrap 以預定義錯誤為模板包裝原始錯誤
func (e *CustomError) Wrap(err error) *CustomError {
	return NewError(e.Code, e.Message, e.Status, err)
}

// AsCustomError 取出錯誤鏈中的 CustomError，找不到時回傳內部錯誤
func AsCustomError(err error) *CustomError {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce
	}
	return ErrInternalError.Wrap(err)
}

// 預定義錯誤代碼
const (
	// 客戶端錯誤 (4xx)
	ErrCodeInvalidRequest  = "INVALID_REQUEST"   // 400
	ErrCodeNotFound        = "NOT_FOUND"         // 404
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS" // 429

	// 食材與選餐領域
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeEmptyInput         = "EMPTY_INPUT"
	ErrCodeIngredientNotFound = "INGREDIENT_NOT_FOUND"
	ErrCodeSelectionClosed    = "SELECTION_CLOSED"
	ErrCodeNoUpcomingMenu     = "NO_UPCOMING_MENU"
	ErrCodeInvalidChoice      = "INVALID_CHOICE"

	// 服務器錯誤 (5xx)
	ErrCodeInternalError      = "INTERNAL_ERROR"      // 500
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503
	ErrCodeGatewayTimeout     = "GATEWAY_TIMEOUT"     // 504
)

// 預定義錯誤
var (
	// 客戶端錯誤
	ErrInvalidRequest  = NewError(ErrCodeInvalidRequest, "invalid request", http.StatusBadRequest, nil)
	ErrNotFound        = NewError(ErrCodeNotFound, "resource not found", http.StatusNotFound, nil)
	ErrTooManyRequests = NewError(ErrCodeTooManyRequests, "too many requests", http.StatusTooManyRequests, nil)

	// 服務器錯誤
	ErrInternalError      = NewError(ErrCodeInternalError, "internal error, please retry or contact the kitchen admin", http.StatusInternalServerError, nil)
	ErrServiceUnavailable = NewError(ErrCodeServiceUnavailable, "service temporarily unavailable", http.StatusServiceUnavailable, nil)
	ErrGatewayTimeout     = NewError(ErrCodeGatewayTimeout, "gateway timeout", http.StatusGatewayTimeout, nil)

	// 業務錯誤
	ErrInvalidInput     = NewError(ErrCodeInvalidInput, "input is missing or malformed", http.StatusBadRequest, nil)
	ErrSelectionClosed  = NewError(ErrCodeSelectionClosed, "menu selection is closed", http.StatusForbidden, nil)
	ErrNoUpcomingMenu   = NewError(ErrCodeNoUpcomingMenu, "no active menu published for the upcoming week", http.StatusNotFound, nil)
	ErrInvalidChoice    = NewError(ErrCodeInvalidChoice, "unknown day or menu choice", http.StatusBadRequest, nil)
	ErrCacheFull        = NewError("CACHE_FULL", "cache is full", http.StatusServiceUnavailable, nil)
	ErrCacheMiss        = NewError("CACHE_MISS", "cache miss", http.StatusNotFound, nil)
	ErrSchedulerBusy    = NewError("SCHEDULER_BUSY", "auto-assignment queue is full", http.StatusServiceUnavailable, nil)
	ErrSchedulerStopped = NewError("SCHEDULER_STOPPED", "auto-assignment scheduler is stopped", http.StatusServiceUnavailable, nil)
)
