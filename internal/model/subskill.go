package model

import (
	"time"
)

// SubskillStatus 是子技能路由状态机的闭集状态。
// skip 表示计划生成时做出的"可跳过"路由决定，skipped 为落库后的终态。
type SubskillStatus string

const (
	SubskillPending  SubskillStatus = "pending"
	SubskillActive   SubskillStatus = "active"
	SubskillAssess   SubskillStatus = "assess"
	SubskillSkip     SubskillStatus = "skip"
	SubskillMastered SubskillStatus = "mastered"
	SubskillSkipped  SubskillStatus = "skipped"
)

// RouteCategory 描述子技能的教学模式，用于定制诊断题与课程内容。
type RouteCategory string

const (
	RouteRecall   RouteCategory = "recall"
	RoutePractice RouteCategory = "practice"
	RouteDiagnose RouteCategory = "diagnose"
	RouteApply    RouteCategory = "apply"
	RouteBuild    RouteCategory = "build"
	RouteRefine   RouteCategory = "refine"
	RoutePlan     RouteCategory = "plan"
)

// swagger:model Subskill
type Subskill struct {
	UUIDBase
	PlanID            string         `gorm:"type:varchar(36);index;not null" json:"planId"`
	UserID            uint           `gorm:"index;not null" json:"userId"`
	Name              string         `gorm:"size:200;not null" json:"name"`
	Description       string         `gorm:"type:text" json:"description"`
	Order             int            `gorm:"column:sort_order;not null" json:"order"` // 计划内唯一且单调递增
	Status            SubskillStatus `gorm:"size:20;default:'pending';index" json:"status"`
	RouteCategory     RouteCategory  `gorm:"size:20;default:'practice'" json:"routeCategory"`
	RouteReason       string         `gorm:"size:255" json:"routeReason,omitempty"`
	EstimatedSessions int            `gorm:"default:3" json:"estimatedSessions"`
	SessionsCompleted int            `gorm:"default:0" json:"sessionsCompleted"`
	LastSessionAt     *time.Time     `json:"lastSessionAt,omitempty"`
	AssessmentScore   *int           `json:"assessmentScore,omitempty"`
	MasteredAt        *time.Time     `json:"masteredAt,omitempty"`
}

func (Subskill) TableName() string {
	return "subskills"
}

// Resolved 表示该子技能不再需要学习安排。
func (s SubskillStatus) Resolved() bool {
	return s == SubskillMastered || s == SubskillSkipped
}
