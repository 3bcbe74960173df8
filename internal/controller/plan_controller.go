package controller

import (
	"errors"

	"skillpilot_backend/internal/service"
	"skillpilot_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// PlanController 处理学习计划相关的HTTP请求
type PlanController struct {
	PlanService     *service.PlanService
	ProgressService *service.ProgressService
}

func NewPlanController(planService *service.PlanService, progressService *service.ProgressService) *PlanController {
	return &PlanController{
		PlanService:     planService,
		ProgressService: progressService,
	}
}

// Create godoc
// @Summary 创建学习计划
// @Description 创建新计划并归档旧的进行中计划，子技能按分流决策落位
// @Tags 学习计划
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.CreatePlanRequest true "计划信息"
// @Success 201 {object} util.Response{data=model.Plan} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/plans [post]
func (c *PlanController) Create(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.CreatePlanRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	plan, err := c.PlanService.CreatePlan(user.UserID, &req)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Created(ctx, plan)
}

// List godoc
// @Summary 获取计划列表
// @Tags 学习计划
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Plan} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/plans [get]
func (c *PlanController) List(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	plans, err := c.PlanService.GetPlans(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, plans)
}

// Get godoc
// @Summary 获取计划详情
// @Description 返回计划及按顺序排列的子技能
// @Tags 学习计划
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "计划ID"
// @Success 200 {object} util.Response{data=model.Plan} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Failure 404 {object} util.Response "计划不存在"
// @Router /api/plans/{id} [get]
func (c *PlanController) Get(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	plan, err := c.PlanService.GetPlan(user.UserID, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrPlanNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, plan)
}

// Progress godoc
// @Summary 获取计划进度
// @Description 返回整体完成度与逐子技能进度
// @Tags 学习计划
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "计划ID"
// @Success 200 {object} util.Response{data=service.PlanProgress} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Failure 404 {object} util.Response "计划不存在"
// @Router /api/plans/{id}/progress [get]
func (c *PlanController) Progress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	progress, err := c.ProgressService.GetPlanProgress(user.UserID, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrPlanNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, progress)
}

// Delete godoc
// @Summary 删除计划
// @Description 删除计划及其全部子技能、测评与会话记录
// @Tags 学习计划
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "计划ID"
// @Success 200 {object} util.Response "成功"
// @Failure 401 {object} util.Response "未授权"
// @Failure 404 {object} util.Response "计划不存在"
// @Router /api/plans/{id} [delete]
func (c *PlanController) Delete(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.PlanService.DeletePlan(user.UserID, ctx.Param("id")); err != nil {
		if errors.Is(err, util.ErrPlanNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{"message": "计划已删除"})
}
