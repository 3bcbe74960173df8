package service

import (
	"testing"
	"time"

	"skillpilot_backend/internal/model"
	"skillpilot_backend/internal/repository"
	"skillpilot_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestPlanService(db *gorm.DB) *PlanService {
	return NewPlanService(repository.NewPlanRepository(db), repository.NewSubskillRepository(db))
}

func TestCreatePlanDraftStatuses(t *testing.T) {
	db := openTestDB(t)
	svc := newTestPlanService(db)

	plan, err := svc.CreatePlan(testUserID, &CreatePlanRequest{
		Title: "Go 进阶",
		Goal:  "独立完成一个后端服务",
		Subskills: []SubskillDraft{
			{Name: "并发基础", Decision: "learn", RouteCategory: model.RouteRecall, EstimatedSessions: 5},
			{Name: "错误处理", Decision: "diagnose"},
			{Name: "模块管理", Decision: "skip"},
			{Name: "标准库巡礼"},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, plan.ID)

	assert.Equal(t, model.PlanActive, plan.Status)
	assert.Equal(t, 1, plan.CurrentOrder)
	assert.False(t, plan.StartedAt.IsZero())

	require.Len(t, plan.Subskills, 4)
	assert.Equal(t, model.SubskillActive, plan.Subskills[0].Status)
	assert.Equal(t, model.SubskillAssess, plan.Subskills[1].Status)
	assert.Equal(t, model.SubskillSkip, plan.Subskills[2].Status)
	assert.Equal(t, model.SubskillPending, plan.Subskills[3].Status)

	for i, sub := range plan.Subskills {
		assert.Equal(t, i+1, sub.Order)
		assert.Equal(t, testUserID, sub.UserID)
		assert.Equal(t, plan.ID, sub.PlanID)
	}

	// 缺省值兜底
	assert.Equal(t, 5, plan.Subskills[0].EstimatedSessions)
	assert.Equal(t, 3, plan.Subskills[1].EstimatedSessions)
	assert.Equal(t, model.RouteRecall, plan.Subskills[0].RouteCategory)
	assert.Equal(t, model.RoutePractice, plan.Subskills[3].RouteCategory)
}

func TestCreatePlanFirstDraftDecisionWins(t *testing.T) {
	db := openTestDB(t)
	svc := newTestPlanService(db)

	plan, err := svc.CreatePlan(testUserID, &CreatePlanRequest{
		Title: "前端补课",
		Subskills: []SubskillDraft{
			{Name: "HTML 语义", Decision: "skip"},
			{Name: "CSS 布局"},
		},
	})
	require.NoError(t, err)

	// 首位是跳过决策时不强行激活
	assert.Equal(t, model.SubskillSkip, plan.Subskills[0].Status)
	assert.Equal(t, model.SubskillPending, plan.Subskills[1].Status)
}

func TestCreatePlanArchivesPrevious(t *testing.T) {
	db := openTestDB(t)
	svc := newTestPlanService(db)

	first, err := svc.CreatePlan(testUserID, &CreatePlanRequest{
		Title:     "旧计划",
		Subskills: []SubskillDraft{{Name: "子技能"}},
	})
	require.NoError(t, err)

	second, err := svc.CreatePlan(testUserID, &CreatePlanRequest{
		Title:     "新计划",
		Subskills: []SubskillDraft{{Name: "子技能"}},
	})
	require.NoError(t, err)

	assert.Equal(t, model.PlanArchived, reloadPlan(t, db, first.ID).Status)
	assert.Equal(t, model.PlanActive, reloadPlan(t, db, second.ID).Status)

	active, err := repository.NewPlanRepository(db).FindActiveByUser(testUserID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
}

func TestGetPlanOwnership(t *testing.T) {
	db := openTestDB(t)
	svc := newTestPlanService(db)
	plan, _ := seedPlan(t, db, model.SubskillActive)

	loaded, err := svc.GetPlan(testUserID, plan.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Subskills, 1)

	_, err = svc.GetPlan(99, plan.ID)
	assert.ErrorIs(t, err, util.ErrPlanNotFound)

	err = svc.DeletePlan(99, plan.ID)
	assert.ErrorIs(t, err, util.ErrPlanNotFound)
}

func TestDeletePlanCascades(t *testing.T) {
	db := openTestDB(t)
	svc := newTestPlanService(db)
	plan, subskills := seedPlan(t, db, model.SubskillActive)
	subskillID := subskills[0].ID

	require.NoError(t, db.Create(&model.Assessment{
		SubskillID: subskillID, UserID: testUserID, StartedAt: time.Now(),
	}).Error)
	require.NoError(t, db.Create(&model.KnowledgeCheck{
		SubskillID: subskillID, UserID: testUserID, Attempt: 1, StartedAt: time.Now(),
	}).Error)
	require.NoError(t, db.Create(&model.SessionSummary{
		SubskillID: subskillID, UserID: testUserID, SessionNumber: 1, Summary: "一次会话",
	}).Error)
	require.NoError(t, db.Create(&model.LessonPlan{
		SubskillID: subskillID, PlanID: plan.ID, UserID: testUserID,
	}).Error)

	require.NoError(t, svc.DeletePlan(testUserID, plan.ID))

	assertGone := func(t *testing.T, dest interface{}, query string, args ...interface{}) {
		t.Helper()
		var count int64
		require.NoError(t, db.Model(dest).Where(query, args...).Count(&count).Error)
		assert.Equal(t, int64(0), count)
	}
	assertGone(t, &model.Plan{}, "id = ?", plan.ID)
	assertGone(t, &model.Subskill{}, "plan_id = ?", plan.ID)
	assertGone(t, &model.Assessment{}, "subskill_id = ?", subskillID)
	assertGone(t, &model.KnowledgeCheck{}, "subskill_id = ?", subskillID)
	assertGone(t, &model.SessionSummary{}, "subskill_id = ?", subskillID)
	assertGone(t, &model.LessonPlan{}, "subskill_id = ?", subskillID)
}
