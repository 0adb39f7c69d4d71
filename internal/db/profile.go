package db

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Profile 定义了档案模型，是所有习惯与指标的属主
type Profile struct {
	gorm.Model
	UUID string `gorm:"size:36;uniqueIndex"`
	Name string
}

// EnsureProfile 存在性检查：若指定名称的档案不存在则创建，返回档案实例。
func EnsureProfile(name string) (*Profile, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, errors.New("profile name is required")
	}

	if DB == nil {
		return nil, errors.New("database not initialized")
	}

	var existing Profile
	if err := DB.Where("name = ?", trimmed).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		created := Profile{Name: trimmed, UUID: uuid.NewString()}
		if err := DB.Create(&created).Error; err != nil {
			return nil, err
		}
		return &created, nil
	}

	return &existing, nil
}
