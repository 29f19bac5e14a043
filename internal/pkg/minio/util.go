package minio

import (
	"fmt"
	"strings"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/api/config"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/pkg/consts"
)

// AvatarURL 把存储的头像对象名解析为可访问的公共 URL。
// 未设置头像时落到默认头像对象；已是完整 URL 时原样返回，
// 客户端未初始化时降级为对象名本身
func AvatarURL(objectName string) string {
	if objectName == "" {
		objectName = consts.DefaultAvatarURL
	}
	if strings.HasPrefix(objectName, "http://") || strings.HasPrefix(objectName, "https://") {
		return objectName
	}
	if config.Cfg == nil {
		return objectName
	}

	cfg := config.Cfg.MinIO
	endpoint := cfg.ExternalEndpoint
	if endpoint == "" {
		endpoint = cfg.InternalEndpoint
	}
	if endpoint == "" {
		return objectName
	}

	return fmt.Sprintf("https://%s/%s/%s", endpoint, cfg.AvatarBucket, objectName)
}
