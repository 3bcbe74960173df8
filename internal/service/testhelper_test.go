package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"skillpilot_backend/internal/model"
	"skillpilot_backend/internal/repository"
	"skillpilot_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testUserID uint = 1

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

// openTestDB 在临时目录上打开 sqlite 库并建好全部表。
// TranslateError 与生产配置保持一致，唯一索引冲突同样映射为 gorm.ErrDuplicatedKey。
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, cerr := db.DB(); cerr == nil {
			sqlDB.Close()
		}
	})

	err = db.AutoMigrate(
		&model.Plan{},
		&model.Subskill{},
		&model.Assessment{},
		&model.KnowledgeCheck{},
		&model.SessionSummary{},
		&model.LessonPlan{},
	)
	if err != nil {
		t.Fatalf("迁移测试表失败: %v", err)
	}
	return db
}

// seedPlan 写入一个进行中的计划，子技能按给定状态依次编号，指针指向 1。
func seedPlan(t *testing.T, db *gorm.DB, statuses ...model.SubskillStatus) (*model.Plan, []model.Subskill) {
	t.Helper()
	subskills := make([]model.Subskill, len(statuses))
	for i, status := range statuses {
		subskills[i] = model.Subskill{
			UserID:            testUserID,
			Name:              fmt.Sprintf("子技能%d", i+1),
			Order:             i + 1,
			Status:            status,
			RouteCategory:     model.RoutePractice,
			EstimatedSessions: 3,
		}
	}
	plan := &model.Plan{
		UserID:       testUserID,
		Title:        "Go 进阶",
		Goal:         "独立完成一个后端服务",
		Status:       model.PlanActive,
		CurrentOrder: 1,
		StartedAt:    time.Now(),
		Subskills:    subskills,
	}
	if err := db.Create(plan).Error; err != nil {
		t.Fatalf("写入测试计划失败: %v", err)
	}
	return plan, plan.Subskills
}

func reloadSubskill(t *testing.T, db *gorm.DB, id string) *model.Subskill {
	t.Helper()
	var subskill model.Subskill
	if err := db.First(&subskill, "id = ?", id).Error; err != nil {
		t.Fatalf("读取子技能失败: %v", err)
	}
	return &subskill
}

func reloadPlan(t *testing.T, db *gorm.DB, id string) *model.Plan {
	t.Helper()
	var plan model.Plan
	if err := db.First(&plan, "id = ?", id).Error; err != nil {
		t.Fatalf("读取计划失败: %v", err)
	}
	return &plan
}

// loadAssessmentQuestions 直接从库中取出题组(含标准答案)，绕过净化投影。
func loadAssessmentQuestions(t *testing.T, db *gorm.DB, assessmentID string) []model.Question {
	t.Helper()
	var assessment model.Assessment
	if err := db.First(&assessment, "id = ?", assessmentID).Error; err != nil {
		t.Fatalf("读取测评失败: %v", err)
	}
	return unmarshalQuestions(t, assessment.Questions)
}

func loadCheckQuestions(t *testing.T, db *gorm.DB, checkID string) []model.Question {
	t.Helper()
	var check model.KnowledgeCheck
	if err := db.First(&check, "id = ?", checkID).Error; err != nil {
		t.Fatalf("读取知识检测失败: %v", err)
	}
	return unmarshalQuestions(t, check.Questions)
}

func unmarshalQuestions(t *testing.T, raw json.RawMessage) []model.Question {
	t.Helper()
	var questions []model.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		t.Fatalf("解析题组失败: %v", err)
	}
	return questions
}

// answerQuestions 按标准答案构造作答，前 correct 道答对，其余答错。
func answerQuestions(questions []model.Question, correct int) map[string]model.AnswerKey {
	answers := make(map[string]model.AnswerKey, len(questions))
	for i, q := range questions {
		if i < correct {
			answers[q.ID] = q.Answer
		} else {
			answers[q.ID] = model.AnswerKey{"完全不沾边的回答"}
		}
	}
	return answers
}

func timePtr(v time.Time) *time.Time {
	return &v
}

// stubPlanner 以内存记录替代课程安排协作方，不落库。
type stubPlanner struct {
	calls []plannerCall
	err   error
}

type plannerCall struct {
	subskillID    string
	isRemediation bool
	assessmentID  *string
	gaps          []model.Gap
}

func (p *stubPlanner) GenerateLessonPlan(_ context.Context, userID uint, subskill *model.Subskill, plan *model.Plan, isRemediation bool, assessmentID *string, gaps []model.Gap) (*model.LessonPlan, error) {
	p.calls = append(p.calls, plannerCall{
		subskillID:    subskill.ID,
		isRemediation: isRemediation,
		assessmentID:  assessmentID,
		gaps:          gaps,
	})
	if p.err != nil {
		return nil, p.err
	}
	return &model.LessonPlan{
		UserID:        userID,
		PlanID:        plan.ID,
		SubskillID:    subskill.ID,
		SessionNumber: subskill.SessionsCompleted + 1,
		IsRemediation: isRemediation,
		Source:        SourceTemplate,
	}, nil
}

// fakeTextGenerator 返回预置的模型输出或错误。
type fakeTextGenerator struct {
	response string
	err      error
	calls    int
}

func (g *fakeTextGenerator) Generate(context.Context, string, string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func newTestSubskillService(db *gorm.DB, planner LessonPlanner) *SubskillService {
	return NewSubskillService(
		repository.NewSubskillRepository(db),
		repository.NewPlanRepository(db),
		repository.NewAssessmentRepository(db),
		NewAssessmentGenerator(nil),
		NewScoringEngine(),
		planner,
	)
}

func newTestKnowledgeCheckService(db *gorm.DB) *KnowledgeCheckService {
	return NewKnowledgeCheckService(
		repository.NewKnowledgeCheckRepository(db),
		repository.NewSubskillRepository(db),
		repository.NewPlanRepository(db),
		NewAssessmentGenerator(nil),
		NewScoringEngine(),
	)
}
