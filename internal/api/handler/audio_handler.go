package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/void-feed/pkg/response"
)

// SetAudio 开关音效
// @Summary 音效开关
// @Tags 音效
// @Accept json
// @Produce json
// @Param request body audioRequest true "开关"
// @Success 200 {object} response.Response{data=map[string]bool}
// @Failure 400 {object} response.Response
// @Router /api/v1/audio [put]
func (h *Handler) SetAudio(c *gin.Context) {
	var req audioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.audio.SetEnabled(*req.Enabled)
	response.Success(c, gin.H{"enabled": h.audio.Enabled()})
}

// Health 存活检查
// @Summary 健康检查
// @Tags 系统
// @Success 200 {object} response.Response
// @Router /api/v1/health [get]
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}
