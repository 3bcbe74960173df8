package service

import (
	"time"

	"skillpilot_backend/internal/model"
)

// RefreshGapDays 为触发间隔复习的间隔天数阈值。
const RefreshGapDays = 7

// NeedsRefresh 计算距上次学习会话的整天数，判断开始下一次会话前
// 是否需要先做间隔复习。纯函数，不修改子技能；
// 是否向学习者展示复习提示由调用方决定。
func NeedsRefresh(subskill *model.Subskill, now time.Time) (needed bool, gapDays int) {
	if subskill.LastSessionAt == nil {
		return false, 0
	}
	gapDays = int(now.Sub(*subskill.LastSessionAt).Hours() / 24)
	if gapDays < 0 {
		gapDays = 0
	}
	return gapDays >= RefreshGapDays, gapDays
}
