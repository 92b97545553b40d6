package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// WriteError 將錯誤轉為統一的 JSON 錯誤響應
func WriteError(c *gin.Context, err error) {
	ce := AsCustomError(err)
	resp := ErrorResponse{
		Code:    ce.Code,
		Message: ce.Message,
	}
	if gin.Mode() == gin.DebugMode && ce.Err != nil {
		resp.Details = ce.Err.Error()
	}
	status := ce.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, resp)
}
