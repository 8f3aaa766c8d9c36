package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/void-feed/internal/api/middleware"
	"github.com/d60-Lab/void-feed/internal/service"
	"github.com/d60-Lab/void-feed/pkg/response"
)

// GetFeed 当前在线帖子与统计
// @Summary 获取在线帖子
// @Tags 信息流
// @Produce json
// @Success 200 {object} response.Response{data=FeedView}
// @Router /api/v1/feed [get]
func (h *Handler) GetFeed(c *gin.Context) {
	snap := h.store.Snapshot()
	views := make([]PostView, len(snap.Posts))
	for i, p := range snap.Posts {
		views[i] = toPostView(p, h.policy)
	}
	response.Success(c, FeedView{Posts: views, Pending: snap.Pending, Stats: snap.Stats()})
}

// GetStats 活跃数、删除数、效率
// @Summary 信息流统计
// @Tags 信息流
// @Produce json
// @Success 200 {object} response.Response{data=service.FeedStats}
// @Router /api/v1/feed/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	response.Success(c, h.store.Stats())
}

// Refresh 手动全量重拉
// @Summary 刷新信息流
// @Tags 信息流
// @Produce json
// @Success 200 {object} response.Response{data=service.FeedStats}
// @Failure 503 {object} response.Response
// @Router /api/v1/feed/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	if err := h.syncer.Refresh(c.Request.Context()); err != nil {
		writeError(c, err, nil)
		return
	}
	response.Success(c, h.store.Stats())
}

// DeletePost 删除帖子（乐观删除 + 动画 + 持久化）
// @Summary 删除帖子
// @Tags 信息流
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response{data=service.DeleteResult}
// @Failure 401 {object} response.Response
// @Failure 429 {object} response.Response
// @Failure 502 {object} response.Response{data=service.DeleteResult}
// @Router /api/v1/feed/posts/{id} [delete]
func (h *Handler) DeletePost(c *gin.Context) {
	res, err := h.controller.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err, res)
		return
	}
	response.Success(c, res)
}

// ListNotices 最近的用户提示
// @Summary 最近提示
// @Tags 信息流
// @Produce json
// @Param limit query int false "条数" default(20)
// @Success 200 {object} response.Response{data=[]service.Notice}
// @Router /api/v1/notices [get]
func (h *Handler) ListNotices(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	response.Success(c, h.notices.Recent(limit))
}

// TopDeleters 删除最多的用户
// @Summary 删除排行
// @Tags 信息流
// @Produce json
// @Param n query int false "条数" default(10)
// @Success 200 {object} response.Response{data=[]repository.DeleterCount}
// @Router /api/v1/deleters/top [get]
func (h *Handler) TopDeleters(c *gin.Context) {
	n, _ := strconv.Atoi(c.DefaultQuery("n", "10"))
	list, err := h.tally.Top(c.Request.Context(), n)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, list)
}

func writeError(c *gin.Context, err error, data interface{}) {
	var pe *service.PersistenceError
	var fe *service.FetchError
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		response.Unauthorized(c, err.Error())
	case errors.As(err, &pe):
		response.BadGateway(c, err.Error(), data)
	case errors.As(err, &fe):
		response.ServiceUnavailable(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
