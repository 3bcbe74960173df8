package controller

import (
	"errors"

	"skillpilot_backend/internal/service"
	"skillpilot_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// SubskillController 处理子技能路由与学习会话相关的HTTP请求
type SubskillController struct {
	SubskillService *service.SubskillService
	SessionService  *service.SessionService
	LessonPlans     *service.LessonPlanService
}

func NewSubskillController(
	subskillService *service.SubskillService,
	sessionService *service.SessionService,
	lessonPlans *service.LessonPlanService,
) *SubskillController {
	return &SubskillController{
		SubskillService: subskillService,
		SessionService:  sessionService,
		LessonPlans:     lessonPlans,
	}
}

// Start godoc
// @Summary 进入子技能
// @Description 按子技能当前状态分流：跳过、诊断测评或直接开始学习
// @Tags 子技能
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "子技能ID"
// @Success 200 {object} util.Response{data=service.RouteResult} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Failure 404 {object} util.Response "子技能不存在"
// @Failure 409 {object} util.Response "当前状态不允许该操作"
// @Router /api/subskills/{id}/start [post]
func (c *SubskillController) Start(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.SubskillService.Start(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, util.ErrSubskillNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrInvalidTransition):
			util.Error(ctx, 409, "当前状态不允许该操作")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, result)
}

// CompleteSession godoc
// @Summary 结束一次学习会话
// @Description 记录会话摘要并累加会话计数，返回是否已到知识检测
// @Tags 子技能
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "子技能ID"
// @Param   body body service.CompleteSessionRequest true "会话摘要"
// @Success 200 {object} util.Response{data=service.SessionState} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "未授权"
// @Failure 404 {object} util.Response "子技能不存在"
// @Failure 409 {object} util.Response "子技能不在学习中"
// @Router /api/subskills/{id}/sessions/complete [post]
func (c *SubskillController) CompleteSession(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.CompleteSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	state, err := c.SessionService.CompleteSession(user.UserID, ctx.Param("id"), &req)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrSubskillNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrInvalidTransition):
			util.Error(ctx, 409, "子技能不在学习中")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, state)
}

// ListSessions godoc
// @Summary 获取子技能的会话记录
// @Tags 子技能
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "子技能ID"
// @Success 200 {object} util.Response "成功"
// @Failure 401 {object} util.Response "未授权"
// @Failure 404 {object} util.Response "子技能不存在"
// @Router /api/subskills/{id}/sessions [get]
func (c *SubskillController) ListSessions(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	sessions, err := c.SessionService.ListSessions(user.UserID, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrSubskillNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, sessions)
}

// RefreshStatus godoc
// @Summary 查询子技能是否需要复习
// @Description 距上次学习超过间隔天数时提示先复习再继续
// @Tags 子技能
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "子技能ID"
// @Success 200 {object} util.Response{data=service.RefreshState} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Failure 404 {object} util.Response "子技能不存在"
// @Router /api/subskills/{id}/refresh [get]
func (c *SubskillController) RefreshStatus(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	state, err := c.SessionService.GetRefreshState(user.UserID, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrSubskillNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, state)
}

// ListLessonPlans godoc
// @Summary 获取子技能的课程安排列表
// @Tags 子技能
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "子技能ID"
// @Success 200 {object} util.Response "成功"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/subskills/{id}/lesson-plans [get]
func (c *SubskillController) ListLessonPlans(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	plans, err := c.LessonPlans.ListBySubskill(user.UserID, ctx.Param("id"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, plans)
}
