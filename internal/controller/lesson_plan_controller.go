package controller

import (
	"errors"

	"skillpilot_backend/internal/service"
	"skillpilot_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// LessonPlanController 处理课程安排相关的HTTP请求
type LessonPlanController struct {
	LessonPlans *service.LessonPlanService
}

func NewLessonPlanController(lessonPlans *service.LessonPlanService) *LessonPlanController {
	return &LessonPlanController{LessonPlans: lessonPlans}
}

// Get godoc
// @Summary 获取课程安排详情
// @Tags 课程安排
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "课程安排ID"
// @Success 200 {object} util.Response{data=model.LessonPlan} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Failure 404 {object} util.Response "课程安排不存在"
// @Router /api/lesson-plans/{id} [get]
func (c *LessonPlanController) Get(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	lessonPlan, err := c.LessonPlans.GetLessonPlan(user.UserID, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrLessonPlanNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, lessonPlan)
}
