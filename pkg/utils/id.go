package utils

import "github.com/google/uuid"

// NewID 实体主键（UUID v4 字符串）
func NewID() string { return uuid.NewString() }
