package entity

import (
	"time"
)

// 角色常量
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

// User 用户实体（通讯录由外部系统同步，本服务只读）
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;size:32"`
	EmployeeNo   string     `json:"employee_no" gorm:"size:32;index"`
	Username     string     `json:"username" gorm:"size:64;not null;uniqueIndex"`
	Name         string     `json:"name" gorm:"size:64;not null"`
	Email        string     `json:"email" gorm:"size:128"`
	Mobile       string     `json:"mobile" gorm:"size:20"`
	DepartmentID string     `json:"department_id" gorm:"size:32"`
	Role         string     `json:"role" gorm:"size:32;not null;default:employee"`
	FeishuOpenID string     `json:"feishu_open_id" gorm:"size:64"`
	Status       string     `json:"status" gorm:"size:16;not null;default:active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at" gorm:"index"`

	// 关联
	Department *Department `json:"department,omitempty" gorm:"foreignKey:DepartmentID"`
}

func (User) TableName() string {
	return "users"
}

// IsAdmin 是否为管理员角色
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Department 部门实体
type Department struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	ParentID  string    `json:"parent_id" gorm:"size:32"`
	Level     int       `json:"level" gorm:"not null;default:1"`
	SortOrder int       `json:"sort_order" gorm:"not null;default:0"`
	LeaderID  string    `json:"leader_id" gorm:"size:32"`
	Status    string    `json:"status" gorm:"size:16;not null;default:active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	Parent   *Department  `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
	Children []Department `json:"children,omitempty" gorm:"foreignKey:ParentID"`
}

func (Department) TableName() string {
	return "departments"
}
