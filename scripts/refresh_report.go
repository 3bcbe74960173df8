// 复习提醒巡检脚本
//
// 扫描所有处于学习中的子技能，列出距离上次学习会话超过复习间隔的记录，
// 供运营人员手动触发提醒或排查学习中断情况。
//
// 用法: go run scripts/refresh_report.go

package main

import (
	"log"
	"skillpilot_backend/internal/config"
	"skillpilot_backend/internal/model"
	"skillpilot_backend/internal/service"
	"skillpilot_backend/pkg/database"
	"skillpilot_backend/pkg/logger"
	"time"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database, false)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	var subskills []model.Subskill
	if err := db.Where("status = ?", model.SubskillActive).Find(&subskills).Error; err != nil {
		log.Fatalf("查询子技能失败: %v", err)
	}

	now := time.Now()
	stale := 0
	for _, sub := range subskills {
		needs, gapDays := service.NeedsRefresh(&sub, now)
		if !needs {
			continue
		}
		stale++
		log.Printf("用户 %d 子技能 %s (%s) 已 %d 天未学习", sub.UserID, sub.ID, sub.Name, gapDays)
	}

	log.Printf("巡检完成：共 %d 个学习中的子技能，其中 %d 个需要复习", len(subskills), stale)
}
