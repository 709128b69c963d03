package cache

import (
	"encoding/base64"

	"github.com/pattmehta/AsyncImage/internal/resource"
)

// filenameTrimSuffix 是从编码结果末尾截掉的固定字符数。
const filenameTrimSuffix = 15

// Filename 将规范化 URL 映射为缓存文件名：URL-safe base64（带填充）后截掉末尾
// 15 个字符。编码长度不足时保留完整编码。不同 URL 截断后可能冲突，这里不做检测。
func Filename(key resource.Key) string {
	encoded := base64.URLEncoding.EncodeToString([]byte(key.String()))
	if len(encoded) <= filenameTrimSuffix {
		return encoded
	}
	return encoded[:len(encoded)-filenameTrimSuffix]
}
