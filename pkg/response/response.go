package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func JSON(c *gin.Context, status int, code int, message string, data interface{}) {
	c.JSON(status, Response{Code: code, Message: message, Data: data})
}

func Success(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, 0, "success", data)
}

func BadRequest(c *gin.Context, message string) {
	JSON(c, http.StatusBadRequest, http.StatusBadRequest, message, nil)
}

func Unauthorized(c *gin.Context, message string) {
	JSON(c, http.StatusUnauthorized, http.StatusUnauthorized, message, nil)
}

func NotFound(c *gin.Context, message string) {
	JSON(c, http.StatusNotFound, http.StatusNotFound, message, nil)
}

func TooManyRequests(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{Code: http.StatusTooManyRequests, Message: message})
}

// BadGateway 依赖的远端写入失败
func BadGateway(c *gin.Context, message string, data interface{}) {
	JSON(c, http.StatusBadGateway, http.StatusBadGateway, message, data)
}

func ServiceUnavailable(c *gin.Context, message string) {
	JSON(c, http.StatusServiceUnavailable, http.StatusServiceUnavailable, message, nil)
}

// InternalError 错误挂到 gin.Context 上，便于中间件上报
func InternalError(c *gin.Context, err error) {
	_ = c.Error(err)
	JSON(c, http.StatusInternalServerError, http.StatusInternalServerError, "internal server error", nil)
}
