package controller

import (
	"errors"

	"skillpilot_backend/internal/model"
	"skillpilot_backend/internal/service"
	"skillpilot_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// AssessmentController 处理诊断测评相关的HTTP请求
type AssessmentController struct {
	SubskillService *service.SubskillService
}

func NewAssessmentController(subskillService *service.SubskillService) *AssessmentController {
	return &AssessmentController{SubskillService: subskillService}
}

// SubmitAssessmentRequest 提交测评作答
// swagger:model SubmitAssessmentRequest
type SubmitAssessmentRequest struct {
	Answers map[string]model.AnswerKey `json:"answers" binding:"required"`
}

// Get godoc
// @Summary 获取测评题目
// @Description 返回作答用的题目投影，不含答案与解析
// @Tags 测评
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "测评ID"
// @Success 200 {object} util.Response{data=service.AssessmentView} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Failure 404 {object} util.Response "测评不存在"
// @Router /api/assessments/{id} [get]
func (c *AssessmentController) Get(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.SubskillService.GetAssessmentForUser(user.UserID, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrAssessmentNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, view)
}

// Submit godoc
// @Summary 提交测评作答
// @Description 判分并给出通过/补强/转完整学习的建议，重复提交返回首次结果
// @Tags 测评
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "测评ID"
// @Param   body body SubmitAssessmentRequest true "题目ID到答案的映射"
// @Success 200 {object} util.Response{data=service.AssessmentResult} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "未授权"
// @Failure 404 {object} util.Response "测评不存在"
// @Router /api/assessments/{id}/submit [post]
func (c *AssessmentController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req SubmitAssessmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.SubskillService.SubmitAssessment(ctx.Request.Context(), user.UserID, ctx.Param("id"), req.Answers)
	if err != nil {
		if errors.Is(err, util.ErrAssessmentNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, result)
}

// Results godoc
// @Summary 获取测评结果明细
// @Description 提交后才可见，含逐题对错、正确答案与解析
// @Tags 测评
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "测评ID"
// @Success 200 {object} util.Response{data=service.AssessmentResultsView} "成功"
// @Failure 400 {object} util.Response "测评尚未提交"
// @Failure 401 {object} util.Response "未授权"
// @Failure 404 {object} util.Response "测评不存在"
// @Router /api/assessments/{id}/results [get]
func (c *AssessmentController) Results(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	results, err := c.SubskillService.GetAssessmentResults(user.UserID, ctx.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, util.ErrAssessmentNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrAssessmentNotCompleted):
			util.BadRequest(ctx, "测评尚未提交")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, results)
}
