package service

import (
	"github.com/bitfantasy/nimo-oa/internal/oa/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Approval *ApprovalService
	Query    *ApprovalQueryService
}

// NewServices 创建服务集合。notifier 可以为 nil（未配置飞书时不发通知），
// rdb 可以为 nil（角标查询直接回源数据库）。
func NewServices(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, notifier Notifier, logger *zap.Logger) *Services {
	return &Services{
		Approval: NewApprovalService(db, repos, rdb, notifier, logger),
		Query:    NewApprovalQueryService(repos.ApprovalQuery, rdb, logger),
	}
}
