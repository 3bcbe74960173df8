package service

import (
	"context"
	"encoding/json"
	"testing"

	"skillpilot_backend/internal/model"
	"skillpilot_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// seedCheckReady 把首个子技能推进到最后一次会话前，满足开检测的前置条件。
func seedCheckReady(t *testing.T, db *gorm.DB, statuses ...model.SubskillStatus) (*model.Plan, []model.Subskill) {
	t.Helper()
	plan, subskills := seedPlan(t, db, statuses...)
	require.NoError(t, db.Model(&model.Subskill{}).Where("id = ?", subskills[0].ID).
		Update("sessions_completed", 2).Error)
	return plan, subskills
}

func TestStartKnowledgeCheckGate(t *testing.T) {
	db := openTestDB(t)
	svc := newTestKnowledgeCheckService(db)

	// 还没到最后一次会话
	_, subskills := seedPlan(t, db, model.SubskillActive)
	_, err := svc.StartKnowledgeCheck(context.Background(), testUserID, subskills[0].ID)
	assert.ErrorIs(t, err, util.ErrInvalidTransition)

	// 非 active 状态不能开检测
	require.NoError(t, db.Model(&model.Subskill{}).Where("id = ?", subskills[0].ID).
		Updates(map[string]interface{}{"status": model.SubskillPending, "sessions_completed": 2}).Error)
	_, err = svc.StartKnowledgeCheck(context.Background(), testUserID, subskills[0].ID)
	assert.ErrorIs(t, err, util.ErrInvalidTransition)
}

func TestStartKnowledgeCheckReturnsOpen(t *testing.T) {
	db := openTestDB(t)
	svc := newTestKnowledgeCheckService(db)
	_, subskills := seedCheckReady(t, db, model.SubskillActive)

	first, err := svc.StartKnowledgeCheck(context.Background(), testUserID, subskills[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Attempt)
	assert.Equal(t, "in_progress", first.Status)
	assert.Equal(t, 6, first.QuestionCount)

	second, err := svc.StartKnowledgeCheck(context.Background(), testUserID, subskills[0].ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&model.KnowledgeCheck{}).Where("subskill_id = ?", subskills[0].ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSubmitKnowledgeCheckPass(t *testing.T) {
	db := openTestDB(t)
	svc := newTestKnowledgeCheckService(db)
	plan, subskills := seedCheckReady(t, db, model.SubskillActive, model.SubskillPending)

	view, err := svc.StartKnowledgeCheck(context.Background(), testUserID, subskills[0].ID)
	require.NoError(t, err)
	questions := loadCheckQuestions(t, db, view.ID)

	result, err := svc.SubmitKnowledgeCheck(testUserID, view.ID, answerQuestions(questions, len(questions)))
	require.NoError(t, err)

	assert.Equal(t, 100, result.Score)
	assert.True(t, result.Passed)
	assert.Empty(t, result.Missed)
	require.NotEmpty(t, result.Feedback)
	assert.Contains(t, result.Feedback[0], "恭喜")

	first := reloadSubskill(t, db, subskills[0].ID)
	assert.Equal(t, model.SubskillMastered, first.Status)
	assert.NotNil(t, first.MasteredAt)

	second := reloadSubskill(t, db, subskills[1].ID)
	assert.Equal(t, model.SubskillActive, second.Status)

	stored := reloadPlan(t, db, plan.ID)
	assert.Equal(t, 2, stored.CurrentOrder)
	assert.Equal(t, 0.5, stored.Progress)

	var check model.KnowledgeCheck
	require.NoError(t, db.First(&check, "id = ?", view.ID).Error)
	assert.Nil(t, check.OpenSlot)
	assert.NotNil(t, check.CompletedAt)
}

func TestSubmitKnowledgeCheckFail(t *testing.T) {
	db := openTestDB(t)
	svc := newTestKnowledgeCheckService(db)
	plan, subskills := seedCheckReady(t, db, model.SubskillActive)

	view, err := svc.StartKnowledgeCheck(context.Background(), testUserID, subskills[0].ID)
	require.NoError(t, err)
	questions := loadCheckQuestions(t, db, view.ID)

	result, err := svc.SubmitKnowledgeCheck(testUserID, view.ID, answerQuestions(questions, 3))
	require.NoError(t, err)

	assert.Equal(t, 50, result.Score)
	assert.False(t, result.Passed)
	require.Len(t, result.Missed, 3)
	for _, m := range result.Missed {
		assert.NotEmpty(t, m.Answer)
		assert.Equal(t, model.AnswerKey{"完全不沾边的回答"}, m.UserAnswer)
	}
	require.NotEmpty(t, result.Feedback)
	assert.Contains(t, result.Feedback[0], "未达到通过线")

	// 未通过保持 active，允许补考
	assert.Equal(t, model.SubskillActive, reloadSubskill(t, db, subskills[0].ID).Status)
	assert.Equal(t, 1, reloadPlan(t, db, plan.ID).CurrentOrder)

	retry, err := svc.StartKnowledgeCheck(context.Background(), testUserID, subskills[0].ID)
	require.NoError(t, err)
	assert.NotEqual(t, view.ID, retry.ID)
	assert.Equal(t, 2, retry.Attempt)
}

func TestSubmitKnowledgeCheckResubmission(t *testing.T) {
	db := openTestDB(t)
	svc := newTestKnowledgeCheckService(db)
	_, subskills := seedCheckReady(t, db, model.SubskillActive)

	view, err := svc.StartKnowledgeCheck(context.Background(), testUserID, subskills[0].ID)
	require.NoError(t, err)
	questions := loadCheckQuestions(t, db, view.ID)

	first, err := svc.SubmitKnowledgeCheck(testUserID, view.ID, answerQuestions(questions, 3))
	require.NoError(t, err)

	second, err := svc.SubmitKnowledgeCheck(testUserID, view.ID, answerQuestions(questions, len(questions)))
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(firstJSON), string(secondJSON))

	// 补交满分答案也不会翻盘
	assert.Equal(t, model.SubskillActive, reloadSubskill(t, db, subskills[0].ID).Status)
}

func TestKnowledgeCheckOwnership(t *testing.T) {
	db := openTestDB(t)
	svc := newTestKnowledgeCheckService(db)
	_, subskills := seedCheckReady(t, db, model.SubskillActive)

	view, err := svc.StartKnowledgeCheck(context.Background(), testUserID, subskills[0].ID)
	require.NoError(t, err)

	const intruder uint = 99
	_, err = svc.StartKnowledgeCheck(context.Background(), intruder, subskills[0].ID)
	assert.ErrorIs(t, err, util.ErrSubskillNotFound)

	_, err = svc.GetKnowledgeCheck(intruder, view.ID)
	assert.ErrorIs(t, err, util.ErrCheckNotFound)

	_, err = svc.SubmitKnowledgeCheck(intruder, view.ID, nil)
	assert.ErrorIs(t, err, util.ErrCheckNotFound)
}
