package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-oa/internal/oa/entity"
	"gorm.io/gorm"
)

// UserRepository 用户仓库（通讯录只读）
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓库
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID 根据ID查找用户，带部门
func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).
		Preload("Department").
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindByIDs 批量查找用户，返回 id → user 映射；调用方自行检查缺失
func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*entity.User, error) {
	if len(ids) == 0 {
		return map[string]*entity.User{}, nil
	}
	var users []entity.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	result := make(map[string]*entity.User, len(users))
	for i := range users {
		result[users[i].ID] = &users[i]
	}
	return result, nil
}

// Search 按名字模糊搜索用户（选择审批人用）
func (r *UserRepository) Search(ctx context.Context, keyword string, limit int) ([]entity.User, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	var users []entity.User
	err := r.db.WithContext(ctx).
		Where("name ILIKE ? AND status = ?", "%"+keyword+"%", "active").
		Order("name").
		Limit(limit).
		Find(&users).Error
	return users, err
}
