package service

import (
	"math"
	"sort"
	"strings"

	"skillpilot_backend/internal/model"
)

// 判分与路由的策略阈值。测试断言和产品调参都依赖这些值，
// 必须集中在此声明，不允许在调用点散落魔法数。
const (
	// 诊断总分：>=ScoreAutopass 直接判定掌握，>=ScoreTargeted 针对性补强，否则转入完整学习
	ScoreAutopass = 85
	ScoreTargeted = 50

	// 领域得分：>=AreaStrongMin 为强项，>=AreaWeakMin 为薄弱，其余为缺口
	AreaStrongMin = 80
	AreaWeakMin   = 50

	// 知识检测通过线
	KnowledgeCheckPass = 70

	// 错题概念摘录的最大字符数
	MissedConceptMaxLen = 100
)

// ScoringEngine 把一组已作答的题目判成总分、领域分布、缺口与强项。
// 纯计算，不做任何 I/O。
type ScoringEngine struct{}

func NewScoringEngine() *ScoringEngine {
	return &ScoringEngine{}
}

type ScoreResult struct {
	Score       int                `json:"score"`
	AreaResults []model.AreaResult `json:"areaResults"`
	Gaps        []model.Gap        `json:"gaps"`
	Strengths   []string           `json:"strengths"`
}

// Score 评阅一组题目。
// 1. 按题目 ID 对齐作答
// 2. 逐题精确比对，无部分分
// 3. 按领域聚合并分类强弱
// 4. 缺口按优先级排序，保证下游补强计划顺序稳定
func (e *ScoringEngine) Score(questions []model.Question, answers map[string]model.AnswerKey) ScoreResult {
	type areaCount struct {
		total   int
		correct int
		missed  []model.Question
	}

	counts := make(map[string]*areaCount)
	areaOrder := make([]string, 0)
	totalCorrect := 0

	for _, q := range questions {
		area := q.Area
		if area == "" {
			area = DefaultQuestionArea
		}
		c, ok := counts[area]
		if !ok {
			c = &areaCount{}
			counts[area] = c
			areaOrder = append(areaOrder, area)
		}
		c.total++

		if AnswerMatches(q.Answer, answers[q.ID]) {
			c.correct++
			totalCorrect++
		} else {
			c.missed = append(c.missed, q)
		}
	}

	result := ScoreResult{
		Score:       percentScore(totalCorrect, len(questions)),
		AreaResults: make([]model.AreaResult, 0, len(areaOrder)),
		Gaps:        make([]model.Gap, 0),
		Strengths:   make([]string, 0),
	}

	for _, area := range areaOrder {
		c := counts[area]
		areaScore := percentScore(c.correct, c.total)
		status := ClassifyArea(areaScore)

		result.AreaResults = append(result.AreaResults, model.AreaResult{
			Area:    area,
			Total:   c.total,
			Correct: c.correct,
			Score:   areaScore,
			Status:  status,
		})

		if status == model.AreaStrong {
			result.Strengths = append(result.Strengths, area)
		} else {
			result.Gaps = append(result.Gaps, buildGap(area, areaScore, status, c.missed))
		}
	}

	sortGaps(result.Gaps)
	return result
}

// AnswerMatches 判定作答是否正确：大小写不敏感、去除首尾空格后精确比对。
// 排序题逐元素比对，长度不一致直接判错。无部分分。
func AnswerMatches(key model.AnswerKey, given model.AnswerKey) bool {
	if len(key) == 0 || len(given) != len(key) {
		return false
	}
	for i := range key {
		if normalizeAnswer(given[i]) != normalizeAnswer(key[i]) {
			return false
		}
	}
	return true
}

func normalizeAnswer(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// percentScore = round(correct/total*100)，total 为 0 时记 0 分，避免除零。
func percentScore(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}

func ClassifyArea(score int) model.AreaStatus {
	switch {
	case score >= AreaStrongMin:
		return model.AreaStrong
	case score >= AreaWeakMin:
		return model.AreaWeak
	default:
		return model.AreaGap
	}
}

func buildGap(area string, score int, status model.AreaStatus, missed []model.Question) model.Gap {
	priority := model.GapPriorityMedium
	if status == model.AreaGap {
		priority = model.GapPriorityHigh
	}

	concepts := make([]string, 0, len(missed))
	for _, q := range missed {
		concepts = append(concepts, truncateConcept(q.Question))
	}

	return model.Gap{
		Area:           area,
		Score:          score,
		Status:         status,
		Priority:       priority,
		MissedConcepts: concepts,
		SuggestedFocus: suggestedFocus(area, status),
	}
}

func truncateConcept(text string) string {
	runes := []rune(text)
	if len(runes) <= MissedConceptMaxLen {
		return text
	}
	return string(runes[:MissedConceptMaxLen]) + "..."
}

func suggestedFocus(area string, status model.AreaStatus) string {
	if status == model.AreaGap {
		return "重新学习" + area + "的核心内容，从基础概念开始补齐"
	}
	return "针对" + area + "做专项练习，重点复盘错题"
}

var gapPriorityRank = map[model.GapPriority]int{
	model.GapPriorityHigh:   0,
	model.GapPriorityMedium: 1,
	model.GapPriorityLow:    2,
}

// 高优先级在前，同级按领域名排序，输出完全确定。
func sortGaps(gaps []model.Gap) {
	sort.SliceStable(gaps, func(i, j int) bool {
		if gapPriorityRank[gaps[i].Priority] != gapPriorityRank[gaps[j].Priority] {
			return gapPriorityRank[gaps[i].Priority] < gapPriorityRank[gaps[j].Priority]
		}
		return gaps[i].Area < gaps[j].Area
	})
}

// Recommend 由诊断总分得出路由建议，边界含义见常量定义。
// 独立成函数以便阈值边界可以脱离判分机制单测。
func Recommend(score int) model.RecommendationKind {
	switch {
	case score >= ScoreAutopass:
		return model.RecommendAutopass
	case score >= ScoreTargeted:
		return model.RecommendTargeted
	default:
		return model.RecommendConvertLearn
	}
}

// Recommendation 是路由建议的和类型，每个变体只携带自己需要的数据。
type Recommendation interface {
	Kind() model.RecommendationKind
}

type Autopass struct{}

func (Autopass) Kind() model.RecommendationKind { return model.RecommendAutopass }

type Targeted struct {
	Gaps []model.Gap
}

func (Targeted) Kind() model.RecommendationKind { return model.RecommendTargeted }

type ConvertLearn struct{}

func (ConvertLearn) Kind() model.RecommendationKind { return model.RecommendConvertLearn }

// BuildRecommendation 把总分与缺口装配成对应的建议变体。
func BuildRecommendation(score int, gaps []model.Gap) Recommendation {
	switch Recommend(score) {
	case model.RecommendAutopass:
		return Autopass{}
	case model.RecommendTargeted:
		return Targeted{Gaps: gaps}
	default:
		return ConvertLearn{}
	}
}
