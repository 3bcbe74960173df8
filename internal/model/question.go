package model

import (
	"encoding/json"
)

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionOrdering       QuestionType = "ordering"
)

// AnswerKey 是题目的标准答案。JSON 里既可能是单个字符串，
// 也可能是排序题的有序字符串列表，两种形式都要兼容。
type AnswerKey []string

func (k *AnswerKey) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*k = AnswerKey{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*k = AnswerKey(list)
	return nil
}

func (k AnswerKey) MarshalJSON() ([]byte, error) {
	if len(k) == 1 {
		return json.Marshal(k[0])
	}
	return json.Marshal([]string(k))
}

// Question 是诊断测评与知识检测共用的题目结构，
// 持久化时整组序列化进所属记录的 JSON 列。
type Question struct {
	ID          string       `json:"id"`
	Area        string       `json:"area"`
	Question    string       `json:"question"`
	Type        QuestionType `json:"type"`
	Options     []string     `json:"options,omitempty"`
	Answer      AnswerKey    `json:"answer"`
	Explanation string       `json:"explanation,omitempty"`
	Difficulty  int          `json:"difficulty"`
}

type AreaStatus string

const (
	AreaStrong AreaStatus = "strong"
	AreaWeak   AreaStatus = "weak"
	AreaGap    AreaStatus = "gap"
)

// AreaResult 是按知识领域聚合的得分。
type AreaResult struct {
	Area    string     `json:"area"`
	Total   int        `json:"total"`
	Correct int        `json:"correct"`
	Score   int        `json:"score"`
	Status  AreaStatus `json:"status"`
}

type GapPriority string

const (
	GapPriorityHigh   GapPriority = "high"
	GapPriorityMedium GapPriority = "medium"
	GapPriorityLow    GapPriority = "low"
)

// Gap 描述一个需要补强的薄弱领域。
type Gap struct {
	Area           string      `json:"area"`
	Score          int         `json:"score"`
	Status         AreaStatus  `json:"status"`
	Priority       GapPriority `json:"priority"`
	MissedConcepts []string    `json:"missedConcepts"`
	SuggestedFocus string      `json:"suggestedFocus"`
}
