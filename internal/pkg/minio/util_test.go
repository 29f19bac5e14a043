package minio

import (
	"testing"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/api/config"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/pkg/consts"
)

func TestAvatarURL(t *testing.T) {
	orig := config.Cfg
	defer func() { config.Cfg = orig }()

	config.Cfg = nil
	if got := AvatarURL(""); got != consts.DefaultAvatarURL {
		t.Errorf("missing avatar should fall back to the default object, got %q", got)
	}
	if got := AvatarURL("https://cdn.example.com/a.png"); got != "https://cdn.example.com/a.png" {
		t.Errorf("full URL should pass through, got %q", got)
	}
	if got := AvatarURL("u1.png"); got != "u1.png" {
		t.Errorf("without config the object name passes through, got %q", got)
	}

	config.Cfg = &config.Config{MinIO: config.MinIOConfig{
		ExternalEndpoint: "files.example.com",
		AvatarBucket:     "avatars",
	}}
	if got := AvatarURL("u1.png"); got != "https://files.example.com/avatars/u1.png" {
		t.Errorf("unexpected resolved URL %q", got)
	}
	if got := AvatarURL(""); got != "https://files.example.com/avatars/"+consts.DefaultAvatarURL {
		t.Errorf("default avatar should resolve like any object, got %q", got)
	}
}
