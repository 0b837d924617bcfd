package domain

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleUser      = "user"
	RoleAdmin     = "admin"
	RoleSuperuser = "superuser"
)

// IsAdminRole admin 与 superuser 都可进入管理后台
func IsAdminRole(role string) bool { return role == RoleAdmin || role == RoleSuperuser }

func ValidRole(role string) bool {
	return role == RoleUser || IsAdminRole(role)
}

type User struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	Email        string         `gorm:"uniqueIndex;size:191;not null" json:"email"`
	Username     string         `gorm:"uniqueIndex;size:64;not null" json:"username"`
	PasswordHash string         `gorm:"size:100;not null" json:"-"`
	AccountType  string         `gorm:"size:16;not null" json:"account_type"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// UserFilter 管理端用户检索
type UserFilter struct {
	Q           string
	AccountType string
	WithDeleted bool
	Page
}
