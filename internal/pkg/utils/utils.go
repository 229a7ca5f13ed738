package utils

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// GenerateUUID 生成 UUID (v4)
func GenerateUUID() string {
	return uuid.New().String()
}

// HashText 计算文本的 SHA-256 十六进制摘要
func HashText(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}
