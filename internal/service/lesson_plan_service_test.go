package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"skillpilot_backend/internal/model"
	"skillpilot_backend/internal/repository"
	"skillpilot_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type lessonContent struct {
	Title      string   `json:"title"`
	Objectives []string `json:"objectives"`
	Sections   []struct {
		Name    string `json:"name"`
		Minutes int    `json:"minutes"`
		Detail  string `json:"detail"`
	} `json:"sections"`
}

func newTestLessonPlanService(db *gorm.DB, generator TextGenerator) *LessonPlanService {
	return NewLessonPlanService(repository.NewLessonPlanRepository(db), generator)
}

func TestGenerateLessonPlanTemplate(t *testing.T) {
	db := openTestDB(t)
	svc := newTestLessonPlanService(db, nil)
	plan, subskills := seedPlan(t, db, model.SubskillActive)
	subskill := &subskills[0]
	subskill.SessionsCompleted = 1

	lessonPlan, err := svc.GenerateLessonPlan(context.Background(), testUserID, subskill, plan, false, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, SourceTemplate, lessonPlan.Source)
	assert.Equal(t, 2, lessonPlan.SessionNumber)
	assert.False(t, lessonPlan.IsRemediation)
	assert.Equal(t, plan.ID, lessonPlan.PlanID)

	var content lessonContent
	require.NoError(t, json.Unmarshal(lessonPlan.Content, &content))
	assert.Equal(t, "学习："+subskill.Name, content.Title)
	assert.NotEmpty(t, content.Objectives)
	require.NotEmpty(t, content.Sections)
	for _, section := range content.Sections {
		assert.Greater(t, section.Minutes, 0)
	}

	// 已落库，可按 ID 取回
	stored, err := svc.GetLessonPlan(testUserID, lessonPlan.ID)
	require.NoError(t, err)
	assert.Equal(t, lessonPlan.ID, stored.ID)
}

func TestGenerateLessonPlanRemediation(t *testing.T) {
	db := openTestDB(t)
	svc := newTestLessonPlanService(db, nil)
	plan, subskills := seedPlan(t, db, model.SubskillActive)
	assessmentID := "assessment-1"
	gaps := []model.Gap{
		{Area: "Integration", Score: 0, Status: model.AreaGap, Priority: model.GapPriorityHigh, SuggestedFocus: "重新学习Integration的核心内容，从基础概念开始补齐"},
		{Area: "Application", Score: 60, Status: model.AreaWeak, Priority: model.GapPriorityMedium, SuggestedFocus: "针对Application做专项练习，重点复盘错题"},
	}

	lessonPlan, err := svc.GenerateLessonPlan(context.Background(), testUserID, &subskills[0], plan, true, &assessmentID, gaps)
	require.NoError(t, err)

	assert.True(t, lessonPlan.IsRemediation)
	require.NotNil(t, lessonPlan.AssessmentID)
	assert.Equal(t, assessmentID, *lessonPlan.AssessmentID)

	var content lessonContent
	require.NoError(t, json.Unmarshal(lessonPlan.Content, &content))
	assert.Equal(t, "补强："+subskills[0].Name, content.Title)
	require.Len(t, content.Objectives, 2)
	assert.Contains(t, content.Objectives[0], "Integration")
	assert.Contains(t, content.Objectives[1], "Application")
}

func TestGenerateLessonPlanModelJSON(t *testing.T) {
	db := openTestDB(t)
	modelContent := `{"title":"定制课","objectives":["目标一"],"sections":[{"name":"讲解","minutes":20,"detail":"核心内容"}]}`
	svc := newTestLessonPlanService(db, &fakeTextGenerator{response: "```json\n" + modelContent + "\n```"})
	plan, subskills := seedPlan(t, db, model.SubskillActive)

	lessonPlan, err := svc.GenerateLessonPlan(context.Background(), testUserID, &subskills[0], plan, false, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, SourceModel, lessonPlan.Source)
	assert.JSONEq(t, modelContent, string(lessonPlan.Content))
}

func TestGenerateLessonPlanModelPlainText(t *testing.T) {
	db := openTestDB(t)
	svc := newTestLessonPlanService(db, &fakeTextGenerator{response: "第一步热身，第二步练习。"})
	plan, subskills := seedPlan(t, db, model.SubskillActive)

	lessonPlan, err := svc.GenerateLessonPlan(context.Background(), testUserID, &subskills[0], plan, false, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, SourceModel, lessonPlan.Source)
	var wrapped map[string]string
	require.NoError(t, json.Unmarshal(lessonPlan.Content, &wrapped))
	assert.Equal(t, "第一步热身，第二步练习。", wrapped["outline"])
}

func TestGenerateLessonPlanModelFailureFallsBack(t *testing.T) {
	db := openTestDB(t)
	svc := newTestLessonPlanService(db, &fakeTextGenerator{err: errors.New("上游超时")})
	plan, subskills := seedPlan(t, db, model.SubskillActive)

	lessonPlan, err := svc.GenerateLessonPlan(context.Background(), testUserID, &subskills[0], plan, false, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, SourceTemplate, lessonPlan.Source)
	var content lessonContent
	require.NoError(t, json.Unmarshal(lessonPlan.Content, &content))
	assert.Equal(t, "学习："+subskills[0].Name, content.Title)
}

func TestGetLessonPlanOwnership(t *testing.T) {
	db := openTestDB(t)
	svc := newTestLessonPlanService(db, nil)
	plan, subskills := seedPlan(t, db, model.SubskillActive)

	lessonPlan, err := svc.GenerateLessonPlan(context.Background(), testUserID, &subskills[0], plan, false, nil, nil)
	require.NoError(t, err)

	_, err = svc.GetLessonPlan(99, lessonPlan.ID)
	assert.ErrorIs(t, err, util.ErrLessonPlanNotFound)

	_, err = svc.GetLessonPlan(testUserID, "不存在的 id")
	assert.ErrorIs(t, err, util.ErrLessonPlanNotFound)

	listed, err := svc.ListBySubskill(testUserID, subskills[0].ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}
