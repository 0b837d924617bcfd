// Package service 业务层：校验、权限、跨仓储编排；错误统一为 errs.Error
package service

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"doof/internal/core/errs"
)

// wrapNotFound 仓储返回的 gorm.ErrRecordNotFound → 404
func wrapNotFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.NotFound(msg)
	}
	return err
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	return &s
}
