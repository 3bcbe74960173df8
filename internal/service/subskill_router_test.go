package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"skillpilot_backend/internal/model"
	"skillpilot_backend/internal/repository"
	"skillpilot_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestStartSkipFlow(t *testing.T) {
	db := openTestDB(t)
	svc := newTestSubskillService(db, &stubPlanner{})
	plan, subskills := seedPlan(t, db, model.SubskillSkip, model.SubskillPending)

	result, err := svc.Start(context.Background(), testUserID, subskills[0].ID)
	require.NoError(t, err)

	assert.Equal(t, RouteSkipped, result.Route)
	assert.Equal(t, model.SubskillSkipped, result.Subskill.Status)
	require.NotNil(t, result.NextSubskill)
	assert.Equal(t, subskills[1].ID, result.NextSubskill.ID)
	assert.Equal(t, 0.5, result.PlanProgress)

	first := reloadSubskill(t, db, subskills[0].ID)
	assert.Equal(t, model.SubskillSkipped, first.Status)
	assert.NotNil(t, first.MasteredAt)

	second := reloadSubskill(t, db, subskills[1].ID)
	assert.Equal(t, model.SubskillActive, second.Status)

	stored := reloadPlan(t, db, plan.ID)
	assert.Equal(t, 2, stored.CurrentOrder)
	assert.Equal(t, 0.5, stored.Progress)
	assert.Equal(t, model.PlanActive, stored.Status)
}

func TestStartSkipIdempotent(t *testing.T) {
	db := openTestDB(t)
	svc := newTestSubskillService(db, &stubPlanner{})
	plan, subskills := seedPlan(t, db, model.SubskillSkip, model.SubskillPending)

	_, err := svc.Start(context.Background(), testUserID, subskills[0].ID)
	require.NoError(t, err)
	firstSub := reloadSubskill(t, db, subskills[0].ID)
	firstPlan := reloadPlan(t, db, plan.ID)

	// 重入不再写子技能或计划
	result, err := svc.Start(context.Background(), testUserID, subskills[0].ID)
	require.NoError(t, err)
	assert.Equal(t, RouteSkipped, result.Route)
	require.NotNil(t, result.NextSubskill)
	assert.Equal(t, subskills[1].ID, result.NextSubskill.ID)

	again := reloadSubskill(t, db, subskills[0].ID)
	assert.True(t, again.UpdatedAt.Equal(firstSub.UpdatedAt))
	planAgain := reloadPlan(t, db, plan.ID)
	assert.True(t, planAgain.UpdatedAt.Equal(firstPlan.UpdatedAt))
	assert.Equal(t, 0.5, planAgain.Progress)
}

func TestStartAssessCreatesOpenAssessment(t *testing.T) {
	db := openTestDB(t)
	svc := newTestSubskillService(db, &stubPlanner{})
	_, subskills := seedPlan(t, db, model.SubskillAssess)

	result, err := svc.Start(context.Background(), testUserID, subskills[0].ID)
	require.NoError(t, err)

	assert.Equal(t, RouteAssessment, result.Route)
	require.NotNil(t, result.Assessment)
	assert.Equal(t, "in_progress", result.Assessment.Status)
	assert.Equal(t, 6, result.Assessment.QuestionCount)

	var stored model.Assessment
	require.NoError(t, db.First(&stored, "id = ?", result.Assessment.ID).Error)
	require.NotNil(t, stored.OpenSlot)
	assert.Equal(t, model.AssessmentOpen, *stored.OpenSlot)
	assert.Equal(t, SourceTemplate, stored.Source)

	// 子技能停留在 assess，等待判分结果
	assert.Equal(t, model.SubskillAssess, reloadSubskill(t, db, subskills[0].ID).Status)
}

func TestStartAssessReturnsExistingOpen(t *testing.T) {
	db := openTestDB(t)
	svc := newTestSubskillService(db, &stubPlanner{})
	_, subskills := seedPlan(t, db, model.SubskillAssess)

	first, err := svc.Start(context.Background(), testUserID, subskills[0].ID)
	require.NoError(t, err)
	second, err := svc.Start(context.Background(), testUserID, subskills[0].ID)
	require.NoError(t, err)

	assert.Equal(t, first.Assessment.ID, second.Assessment.ID)

	var count int64
	require.NoError(t, db.Model(&model.Assessment{}).Where("subskill_id = ?", subskills[0].ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAssessmentOpenSlotUnique(t *testing.T) {
	db := openTestDB(t)
	repo := repository.NewAssessmentRepository(db)
	open := model.AssessmentOpen

	require.NoError(t, repo.Create(&model.Assessment{
		SubskillID: "sub-1", UserID: testUserID, OpenSlot: &open, StartedAt: time.Now(),
	}))

	dup := &model.Assessment{SubskillID: "sub-1", UserID: testUserID, OpenSlot: &open, StartedAt: time.Now()}
	err := repo.Create(dup)
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// 已关闭的记录不占槽位，历史可以累积
	require.NoError(t, repo.Create(&model.Assessment{
		SubskillID: "sub-1", UserID: testUserID, StartedAt: time.Now(),
	}))
	require.NoError(t, repo.Create(&model.Assessment{
		SubskillID: "sub-1", UserID: testUserID, StartedAt: time.Now(),
	}))
}

func startAssessment(t *testing.T, svc *SubskillService, subskillID string) string {
	t.Helper()
	result, err := svc.Start(context.Background(), testUserID, subskillID)
	require.NoError(t, err)
	require.NotNil(t, result.Assessment)
	return result.Assessment.ID
}

func TestSubmitAssessmentAutopass(t *testing.T) {
	db := openTestDB(t)
	planner := &stubPlanner{}
	svc := newTestSubskillService(db, planner)
	plan, subskills := seedPlan(t, db, model.SubskillAssess, model.SubskillPending)

	assessmentID := startAssessment(t, svc, subskills[0].ID)
	questions := loadAssessmentQuestions(t, db, assessmentID)
	answers := answerQuestions(questions, len(questions))

	result, err := svc.SubmitAssessment(context.Background(), testUserID, assessmentID, answers)
	require.NoError(t, err)

	assert.Equal(t, 100, result.Score)
	assert.Equal(t, model.RecommendAutopass, result.Recommendation)
	assert.Empty(t, result.Gaps)
	assert.False(t, result.CompletedAt.IsZero())

	first := reloadSubskill(t, db, subskills[0].ID)
	assert.Equal(t, model.SubskillMastered, first.Status)
	require.NotNil(t, first.MasteredAt)
	require.NotNil(t, first.AssessmentScore)
	assert.Equal(t, 100, *first.AssessmentScore)

	second := reloadSubskill(t, db, subskills[1].ID)
	assert.Equal(t, model.SubskillActive, second.Status)

	stored := reloadPlan(t, db, plan.ID)
	assert.Equal(t, 2, stored.CurrentOrder)
	assert.Equal(t, 0.5, stored.Progress)

	var assessment model.Assessment
	require.NoError(t, db.First(&assessment, "id = ?", assessmentID).Error)
	assert.Nil(t, assessment.OpenSlot)
	assert.NotNil(t, assessment.CompletedAt)

	// 直接判定掌握，无需课程安排
	assert.Empty(t, planner.calls)
}

func TestSubmitAssessmentTargeted(t *testing.T) {
	db := openTestDB(t)
	planner := &stubPlanner{}
	svc := newTestSubskillService(db, planner)
	plan, subskills := seedPlan(t, db, model.SubskillAssess)

	assessmentID := startAssessment(t, svc, subskills[0].ID)
	questions := loadAssessmentQuestions(t, db, assessmentID)
	answers := answerQuestions(questions, 4) // 4/6 = 67

	result, err := svc.SubmitAssessment(context.Background(), testUserID, assessmentID, answers)
	require.NoError(t, err)

	assert.Equal(t, 67, result.Score)
	assert.Equal(t, model.RecommendTargeted, result.Recommendation)
	assert.NotEmpty(t, result.Gaps)

	subskill := reloadSubskill(t, db, subskills[0].ID)
	assert.Equal(t, model.SubskillActive, subskill.Status)
	require.NotNil(t, subskill.AssessmentScore)
	assert.Equal(t, 67, *subskill.AssessmentScore)
	assert.Nil(t, subskill.MasteredAt)

	stored := reloadPlan(t, db, plan.ID)
	assert.Equal(t, 1, stored.CurrentOrder)
	assert.Equal(t, 0.0, stored.Progress)

	// 补强课程按缺口生成
	require.Len(t, planner.calls, 1)
	call := planner.calls[0]
	assert.True(t, call.isRemediation)
	require.NotNil(t, call.assessmentID)
	assert.Equal(t, assessmentID, *call.assessmentID)
	assert.NotEmpty(t, call.gaps)
}

func TestSubmitAssessmentConvertLearn(t *testing.T) {
	db := openTestDB(t)
	planner := &stubPlanner{}
	svc := newTestSubskillService(db, planner)
	_, subskills := seedPlan(t, db, model.SubskillAssess)

	assessmentID := startAssessment(t, svc, subskills[0].ID)

	// 全部未作答
	result, err := svc.SubmitAssessment(context.Background(), testUserID, assessmentID, map[string]model.AnswerKey{})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Score)
	assert.Equal(t, model.RecommendConvertLearn, result.Recommendation)

	subskill := reloadSubskill(t, db, subskills[0].ID)
	assert.Equal(t, model.SubskillActive, subskill.Status)

	require.Len(t, planner.calls, 1)
	assert.False(t, planner.calls[0].isRemediation)
	require.NotNil(t, planner.calls[0].assessmentID)
}

func TestSubmitAssessmentResubmission(t *testing.T) {
	db := openTestDB(t)
	planner := &stubPlanner{}
	svc := newTestSubskillService(db, planner)
	_, subskills := seedPlan(t, db, model.SubskillAssess)

	assessmentID := startAssessment(t, svc, subskills[0].ID)
	questions := loadAssessmentQuestions(t, db, assessmentID)

	first, err := svc.SubmitAssessment(context.Background(), testUserID, assessmentID, answerQuestions(questions, 4))
	require.NoError(t, err)

	// 换一份答案重复提交，返回的仍是首次判分的存量结果
	second, err := svc.SubmitAssessment(context.Background(), testUserID, assessmentID, answerQuestions(questions, 6))
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(firstJSON), string(secondJSON))

	assert.Len(t, planner.calls, 1)
	subskill := reloadSubskill(t, db, subskills[0].ID)
	assert.Equal(t, model.SubskillActive, subskill.Status)
}

func TestStartLearnFlow(t *testing.T) {
	db := openTestDB(t)
	planner := &stubPlanner{}
	svc := newTestSubskillService(db, planner)
	_, subskills := seedPlan(t, db, model.SubskillActive)

	result, err := svc.Start(context.Background(), testUserID, subskills[0].ID)
	require.NoError(t, err)

	assert.Equal(t, RouteLesson, result.Route)
	require.NotNil(t, result.LessonPlan)
	require.Len(t, planner.calls, 1)
	assert.False(t, planner.calls[0].isRemediation)
	assert.Nil(t, planner.calls[0].assessmentID)
	assert.Equal(t, model.SubskillActive, reloadSubskill(t, db, subskills[0].ID).Status)
}

func TestStartLearnActivatesPending(t *testing.T) {
	db := openTestDB(t)
	svc := newTestSubskillService(db, &stubPlanner{})
	_, subskills := seedPlan(t, db, model.SubskillPending)

	result, err := svc.Start(context.Background(), testUserID, subskills[0].ID)
	require.NoError(t, err)

	assert.Equal(t, RouteLesson, result.Route)
	assert.Equal(t, model.SubskillActive, reloadSubskill(t, db, subskills[0].ID).Status)
}

func TestStartLearnReopensMastered(t *testing.T) {
	db := openTestDB(t)
	svc := newTestSubskillService(db, &stubPlanner{})
	plan, subskills := seedPlan(t, db, model.SubskillMastered, model.SubskillActive)

	mastered := time.Now().Add(-48 * time.Hour)
	require.NoError(t, db.Model(&model.Subskill{}).Where("id = ?", subskills[0].ID).
		Update("mastered_at", mastered).Error)
	require.NoError(t, db.Model(&model.Plan{}).Where("id = ?", plan.ID).
		Update("progress", 0.5).Error)

	result, err := svc.Start(context.Background(), testUserID, subskills[0].ID)
	require.NoError(t, err)

	assert.Equal(t, RouteLesson, result.Route)
	reopened := reloadSubskill(t, db, subskills[0].ID)
	assert.Equal(t, model.SubskillActive, reopened.Status)
	assert.Nil(t, reopened.MasteredAt)

	// 重开会让完成口径变化，进度随之回落
	assert.Equal(t, 0.0, reloadPlan(t, db, plan.ID).Progress)
}

func TestStartPlanCompletionOnLastSkip(t *testing.T) {
	db := openTestDB(t)
	svc := newTestSubskillService(db, &stubPlanner{})
	plan, subskills := seedPlan(t, db, model.SubskillMastered, model.SubskillSkip)

	result, err := svc.Start(context.Background(), testUserID, subskills[1].ID)
	require.NoError(t, err)

	assert.Equal(t, RouteSkipped, result.Route)
	assert.Nil(t, result.NextSubskill)

	stored := reloadPlan(t, db, plan.ID)
	assert.Equal(t, model.PlanCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
	assert.Equal(t, 1.0, stored.Progress)
}

func TestSubmitAssessmentCompletesPlan(t *testing.T) {
	db := openTestDB(t)
	svc := newTestSubskillService(db, &stubPlanner{})
	plan, subskills := seedPlan(t, db, model.SubskillAssess)

	assessmentID := startAssessment(t, svc, subskills[0].ID)
	questions := loadAssessmentQuestions(t, db, assessmentID)

	result, err := svc.SubmitAssessment(context.Background(), testUserID, assessmentID, answerQuestions(questions, len(questions)))
	require.NoError(t, err)
	assert.Equal(t, model.RecommendAutopass, result.Recommendation)

	stored := reloadPlan(t, db, plan.ID)
	assert.Equal(t, model.PlanCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
	assert.Equal(t, 1.0, stored.Progress)
}

func TestGetAssessmentResults(t *testing.T) {
	db := openTestDB(t)
	svc := newTestSubskillService(db, &stubPlanner{})
	_, subskills := seedPlan(t, db, model.SubskillAssess)

	assessmentID := startAssessment(t, svc, subskills[0].ID)

	// 判分前不可见
	_, err := svc.GetAssessmentResults(testUserID, assessmentID)
	require.ErrorIs(t, err, util.ErrAssessmentNotCompleted)

	questions := loadAssessmentQuestions(t, db, assessmentID)
	answers := answerQuestions(questions, 4)
	_, err = svc.SubmitAssessment(context.Background(), testUserID, assessmentID, answers)
	require.NoError(t, err)

	results, err := svc.GetAssessmentResults(testUserID, assessmentID)
	require.NoError(t, err)

	assert.Equal(t, 67, results.Score)
	require.Len(t, results.Questions, 6)
	correct := 0
	for i, q := range results.Questions {
		assert.Equal(t, questions[i].ID, q.ID)
		assert.NotEmpty(t, q.Answer)
		if q.IsCorrect {
			correct++
			assert.Equal(t, questions[i].Answer, q.UserAnswer)
		}
	}
	assert.Equal(t, 4, correct)
}

func TestAssessmentOwnership(t *testing.T) {
	db := openTestDB(t)
	svc := newTestSubskillService(db, &stubPlanner{})
	_, subskills := seedPlan(t, db, model.SubskillAssess)

	assessmentID := startAssessment(t, svc, subskills[0].ID)

	const intruder uint = 99
	_, err := svc.Start(context.Background(), intruder, subskills[0].ID)
	assert.ErrorIs(t, err, util.ErrSubskillNotFound)

	_, err = svc.GetAssessmentForUser(intruder, assessmentID)
	assert.ErrorIs(t, err, util.ErrAssessmentNotFound)

	_, err = svc.SubmitAssessment(context.Background(), intruder, assessmentID, nil)
	assert.ErrorIs(t, err, util.ErrAssessmentNotFound)

	_, err = svc.Start(context.Background(), testUserID, "不存在的 id")
	assert.ErrorIs(t, err, util.ErrSubskillNotFound)
}

func TestSanitizedAssessmentHidesAnswers(t *testing.T) {
	db := openTestDB(t)
	svc := newTestSubskillService(db, &stubPlanner{})
	_, subskills := seedPlan(t, db, model.SubskillAssess)

	assessmentID := startAssessment(t, svc, subskills[0].ID)

	view, err := svc.GetAssessmentForUser(testUserID, assessmentID)
	require.NoError(t, err)

	payload, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), `"answer"`)
	assert.NotContains(t, string(payload), `"explanation"`)
}
