package util

import "errors"

var (
	ErrUserNotFound           = errors.New("用户不存在")
	ErrEmailRegistered        = errors.New("该邮箱已被注册")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrPlanNotFound           = errors.New("plan not found")
	ErrSubskillNotFound       = errors.New("subskill not found")
	ErrAssessmentNotFound     = errors.New("assessment not found")
	ErrCheckNotFound          = errors.New("knowledge check not found")
	ErrLessonPlanNotFound     = errors.New("lesson plan not found")
	ErrAssessmentNotCompleted = errors.New("assessment not completed")
	ErrInvalidTransition      = errors.New("invalid subskill transition")
)
