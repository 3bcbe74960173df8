package controller

import (
	"skillpilot_backend/internal/service"
	"skillpilot_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// DashboardController 处理今日视图相关的HTTP请求
type DashboardController struct {
	ProgressService *service.ProgressService
}

func NewDashboardController(progressService *service.ProgressService) *DashboardController {
	return &DashboardController{ProgressService: progressService}
}

// Today godoc
// @Summary 获取今日视图
// @Description 返回当前子技能、会话编号、是否检测日与是否需要复习；没有进行中的计划时 data 为空
// @Tags 仪表盘
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.TodayState} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/dashboard/today [get]
func (c *DashboardController) Today(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	today, err := c.ProgressService.GetToday(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, today)
}
