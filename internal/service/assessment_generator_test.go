package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"skillpilot_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generatorFixtures() (*model.Subskill, *model.Plan) {
	subskill := &model.Subskill{
		UUIDBase:      model.UUIDBase{ID: "sub-1"},
		Name:          "Go 并发",
		RouteCategory: model.RoutePractice,
	}
	plan := &model.Plan{Title: "Go 进阶", Goal: "独立完成一个后端服务"}
	return subskill, plan
}

func TestTemplateQuestionsDeterministic(t *testing.T) {
	subskill, _ := generatorFixtures()
	g := NewAssessmentGenerator(nil)

	first := g.TemplateQuestions(subskill)
	second := g.TemplateQuestions(subskill)

	require.Len(t, first, 6)
	assert.Equal(t, first, second)

	for i, q := range first {
		assert.Equal(t, fmt.Sprintf("sub-1-q%d", i+1), q.ID)
		assert.NotEmpty(t, q.Question)
		assert.NotEmpty(t, q.Options)
		assert.NotEmpty(t, q.Answer)
	}

	areas := map[string]int{}
	for _, q := range first {
		areas[q.Area]++
	}
	assert.Equal(t, map[string]int{
		"Core Concepts": 2,
		"Application":   3, // 含 practice 模式的定制题
		"Integration":   1,
	}, areas)
}

func TestTemplateRouteQuestion(t *testing.T) {
	tests := []struct {
		category model.RouteCategory
		wantArea string
		wantType model.QuestionType
	}{
		{model.RouteRecall, "Core Concepts", model.QuestionTrueFalse},
		{model.RouteDiagnose, "Core Concepts", model.QuestionTrueFalse},
		{model.RouteApply, "Application", model.QuestionMultipleChoice},
		{model.RouteBuild, "Integration", model.QuestionMultipleChoice},
		{model.RouteRefine, "Application", model.QuestionTrueFalse},
		{model.RoutePlan, "Integration", model.QuestionMultipleChoice},
		{model.RoutePractice, "Application", model.QuestionMultipleChoice},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			subskill, _ := generatorFixtures()
			subskill.RouteCategory = tt.category

			questions := NewAssessmentGenerator(nil).TemplateQuestions(subskill)

			require.Len(t, questions, 6)
			q := questions[5]
			assert.Equal(t, "sub-1-q6", q.ID)
			assert.Equal(t, tt.wantArea, q.Area)
			assert.Equal(t, tt.wantType, q.Type)
			assert.NotEmpty(t, q.Answer)
		})
	}
}

func TestGenerateWithoutModel(t *testing.T) {
	subskill, plan := generatorFixtures()

	questions, source := NewAssessmentGenerator(nil).Generate(context.Background(), subskill, plan, PurposeDiagnostic)

	assert.Equal(t, SourceTemplate, source)
	assert.Len(t, questions, 6)
}

func TestGenerateModelFailureFallsBack(t *testing.T) {
	subskill, plan := generatorFixtures()
	fake := &fakeTextGenerator{err: errors.New("上游超时")}

	questions, source := NewAssessmentGenerator(fake).Generate(context.Background(), subskill, plan, PurposeDiagnostic)

	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, SourceTemplate, source)
	assert.Len(t, questions, 6)
}

func TestGenerateUnparsableFallsBack(t *testing.T) {
	subskill, plan := generatorFixtures()
	fake := &fakeTextGenerator{response: "抱歉，我无法生成题目。"}

	questions, source := NewAssessmentGenerator(fake).Generate(context.Background(), subskill, plan, PurposeDiagnostic)

	assert.Equal(t, SourceTemplate, source)
	assert.Len(t, questions, 6)
}

func TestGenerateAllInvalidQuestionsFallsBack(t *testing.T) {
	subskill, plan := generatorFixtures()
	fake := &fakeTextGenerator{response: `{"questions":[{"question":"没有答案的题"},{"answer":"没有题干"}]}`}

	questions, source := NewAssessmentGenerator(fake).Generate(context.Background(), subskill, plan, PurposeDiagnostic)

	assert.Equal(t, SourceTemplate, source)
	assert.Len(t, questions, 6)
}

func TestGenerateModelPayload(t *testing.T) {
	subskill, plan := generatorFixtures()
	fake := &fakeTextGenerator{response: "```json\n" + `{"questions":[
		{"id":"m1","area":"Core Concepts","question":"切片的零值是什么？","type":"multiple_choice","options":["nil","空切片","panic","未定义"],"answer":"nil","difficulty":1},
		{"question":"map 并发写是否安全？","type":"true_false","options":["true","false"],"answer":["false"],"explanation":"并发写需要同步保护。","difficulty":2},
		{"id":"m3","area":"Application","question":"去重应优先考虑哪种结构？","answer":"map","difficulty":9},
		{"id":"m4","area":"Application","question":"select 的作用是什么？","answer":"多路等待","difficulty":2},
		{"id":"m5","area":"Integration","question":"按顺序排列启动步骤。","type":"ordering","answer":["加载配置","连接依赖","监听端口"],"difficulty":3}
	]}` + "\n```"}

	questions, source := NewAssessmentGenerator(fake).Generate(context.Background(), subskill, plan, PurposeDiagnostic)

	assert.Equal(t, SourceModel, source)
	require.Len(t, questions, 5)

	// 字符串与列表两种答案写法都要能读进来
	assert.Equal(t, model.AnswerKey{"nil"}, questions[0].Answer)
	assert.Equal(t, model.AnswerKey{"false"}, questions[1].Answer)
	assert.Equal(t, model.AnswerKey{"加载配置", "连接依赖", "监听端口"}, questions[4].Answer)

	// 缺省字段归一化
	assert.NotEmpty(t, questions[1].ID)
	assert.Equal(t, DefaultQuestionArea, questions[1].Area)
	assert.Equal(t, model.QuestionMultipleChoice, questions[2].Type)
	assert.Equal(t, DefaultDifficulty, questions[2].Difficulty)
}

func TestGenerateBackfillsShortModelOutput(t *testing.T) {
	subskill, plan := generatorFixtures()
	fake := &fakeTextGenerator{response: `{"questions":[
		{"id":"m1","area":"Core Concepts","question":"goroutine 由谁调度？","answer":"Go 运行时","difficulty":1},
		{"id":"m2","area":"Application","question":"channel 关闭后还能读吗？","answer":"能","difficulty":2}
	]}`}

	questions, source := NewAssessmentGenerator(fake).Generate(context.Background(), subskill, plan, PurposeDiagnostic)

	assert.Equal(t, SourceModel, source)
	require.Len(t, questions, MinAssessmentQuestions)
	assert.Equal(t, "m1", questions[0].ID)
	assert.Equal(t, "m2", questions[1].ID)
	for _, q := range questions[2:] {
		assert.Contains(t, q.ID, "sub-1-q")
	}
}

func TestParseQuestionPayload(t *testing.T) {
	payload := `{"questions":[{"id":"q1","question":"题干","answer":"A"}]}`

	questions, err := ParseQuestionPayload(payload)
	require.NoError(t, err)
	assert.Len(t, questions, 1)

	questions, err = ParseQuestionPayload("```json\n" + payload + "\n```")
	require.NoError(t, err)
	assert.Len(t, questions, 1)

	_, err = ParseQuestionPayload("这不是 JSON")
	assert.Error(t, err)

	_, err = ParseQuestionPayload(`{"questions":[]}`)
	assert.Error(t, err)
}

func TestNormalizeQuestions(t *testing.T) {
	questions := NormalizeQuestions([]model.Question{
		{Question: "  ", Answer: model.AnswerKey{"A"}},
		{Question: "没有答案"},
		{Question: "有效题目", Answer: model.AnswerKey{"A"}, Difficulty: 0},
	})

	require.Len(t, questions, 1)
	q := questions[0]
	assert.Equal(t, "有效题目", q.Question)
	assert.NotEmpty(t, q.ID)
	assert.Equal(t, DefaultQuestionArea, q.Area)
	assert.Equal(t, model.QuestionMultipleChoice, q.Type)
	assert.Equal(t, DefaultDifficulty, q.Difficulty)
}
