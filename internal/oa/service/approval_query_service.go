package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bitfantasy/nimo-oa/internal/oa/entity"
	"github.com/bitfantasy/nimo-oa/internal/oa/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// 待办角标缓存
const (
	pendingBadgePrefix = "oa:badge:pending:"
	pendingBadgeTTL    = 5 * time.Minute
)

func pendingBadgeKey(userID string) string {
	return pendingBadgePrefix + userID
}

// ApprovalQueryService 审批单列表/角标查询服务
type ApprovalQueryService struct {
	queries *repository.ApprovalQueryRepository
	rdb     *redis.Client
	logger  *zap.Logger
}

// NewApprovalQueryService 创建查询服务
func NewApprovalQueryService(queries *repository.ApprovalQueryRepository, rdb *redis.Client, logger *zap.Logger) *ApprovalQueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalQueryService{queries: queries, rdb: rdb, logger: logger}
}

// ListResult 列表查询结果
type ListResult struct {
	Items    []entity.Approval `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// List 类别查询。未知类别报错；与类别无关的过滤条件宽容处理：记日志后忽略。
func (s *ApprovalQueryService) List(ctx context.Context, q repository.ApprovalQuery) (*ListResult, error) {
	// participant_type 只在 reference 类别下有意义
	if q.ParticipantType != "" && q.Category != repository.CategoryReference {
		s.logger.Debug("ignoring participant_type filter outside reference category",
			zap.String("category", q.Category),
			zap.String("participant_type", q.ParticipantType))
		q.ParticipantType = ""
	}

	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > 100 {
		q.PageSize = 20
	}

	items, total, err := s.queries.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return &ListResult{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

// PendingCount 待办角标数。redis 缓存短 TTL，审批流转时由写路径主动失效，
// redis 不可用时直接回源数据库。
func (s *ApprovalQueryService) PendingCount(ctx context.Context, userID string) (int64, error) {
	if s.rdb != nil {
		cached, err := s.rdb.Get(ctx, pendingBadgeKey(userID)).Result()
		if err == nil {
			if count, perr := strconv.ParseInt(cached, 10, 64); perr == nil {
				return count, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn("failed to read pending badge cache", zap.String("user_id", userID), zap.Error(err))
		}
	}

	count, err := s.queries.PendingCount(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("统计待办数失败: %w", err)
	}

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, pendingBadgeKey(userID), count, pendingBadgeTTL).Err(); err != nil {
			s.logger.Warn("failed to cache pending badge", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return count, nil
}
