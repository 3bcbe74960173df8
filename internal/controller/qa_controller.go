package controller

import (
	"skillpilot_backend/internal/service"
	"skillpilot_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// QAController 处理学习答疑相关的HTTP请求
type QAController struct {
	QAService *service.QAService
}

func NewQAController(qaService *service.QAService) *QAController {
	return &QAController{QAService: qaService}
}

// Ask godoc
// @Summary 学习答疑
// @Description 回答锚定在当前子技能与最近会话摘要上，多轮上下文保留在服务端
// @Tags 答疑
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.AskRequest true "问题内容"
// @Success 200 {object} util.Response{data=service.AskResponse} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "未授权"
// @Failure 500 {object} util.Response "模型调用失败"
// @Router /api/qa/ask [post]
func (c *QAController) Ask(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.AskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	answer, err := c.QAService.Ask(ctx.Request.Context(), user.UserID, &req)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, answer)
}

// ClearHistory godoc
// @Summary 清空答疑历史
// @Tags 答疑
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response "成功"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/qa/history [delete]
func (c *QAController) ClearHistory(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.QAService.ClearHistory(ctx.Request.Context(), user.UserID); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"message": "历史已清空"})
}
