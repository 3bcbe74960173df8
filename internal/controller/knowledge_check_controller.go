package controller

import (
	"errors"

	"skillpilot_backend/internal/model"
	"skillpilot_backend/internal/service"
	"skillpilot_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// KnowledgeCheckController 处理知识检测相关的HTTP请求
type KnowledgeCheckController struct {
	CheckService *service.KnowledgeCheckService
}

func NewKnowledgeCheckController(checkService *service.KnowledgeCheckService) *KnowledgeCheckController {
	return &KnowledgeCheckController{CheckService: checkService}
}

// SubmitCheckRequest 提交知识检测作答
// swagger:model SubmitCheckRequest
type SubmitCheckRequest struct {
	Answers map[string]model.AnswerKey `json:"answers" binding:"required"`
}

// Start godoc
// @Summary 开始知识检测
// @Description 子技能最后一次会话时开始掌握度检测，已有未完成的检测则直接返回
// @Tags 知识检测
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "子技能ID"
// @Success 200 {object} util.Response{data=service.KnowledgeCheckView} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Failure 404 {object} util.Response "子技能不存在"
// @Failure 409 {object} util.Response "尚未到知识检测环节"
// @Router /api/subskills/{id}/knowledge-check [post]
func (c *KnowledgeCheckController) Start(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.CheckService.StartKnowledgeCheck(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, util.ErrSubskillNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrInvalidTransition):
			util.Error(ctx, 409, "尚未到知识检测环节")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, view)
}

// Get godoc
// @Summary 获取知识检测题目
// @Tags 知识检测
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "检测ID"
// @Success 200 {object} util.Response{data=service.KnowledgeCheckView} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Failure 404 {object} util.Response "检测不存在"
// @Router /api/knowledge-checks/{id} [get]
func (c *KnowledgeCheckController) Get(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.CheckService.GetKnowledgeCheck(user.UserID, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrCheckNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, view)
}

// Submit godoc
// @Summary 提交知识检测作答
// @Description 判分并返回错题明细与复习建议，通过后子技能标记为掌握
// @Tags 知识检测
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "检测ID"
// @Param   body body SubmitCheckRequest true "题目ID到答案的映射"
// @Success 200 {object} util.Response{data=service.KnowledgeCheckResult} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "未授权"
// @Failure 404 {object} util.Response "检测不存在"
// @Router /api/knowledge-checks/{id}/submit [post]
func (c *KnowledgeCheckController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req SubmitCheckRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.CheckService.SubmitKnowledgeCheck(user.UserID, ctx.Param("id"), req.Answers)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrCheckNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrSubskillNotFound):
			util.NotFound(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, result)
}
