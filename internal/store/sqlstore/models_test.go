package sqlstore

import (
	"testing"
	"time"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/domain"
)

func TestNewConversationRowPeerKey(t *testing.T) {
	now := time.Now()

	direct := newConversationRow(domain.KindDirect, "", 0, domain.PeerKey(2, 1), now)
	if direct.PeerKey == nil || *direct.PeerKey != "1_2" {
		t.Errorf("direct conversation should carry its peer key, got %v", direct.PeerKey)
	}

	// 非单聊存 NULL：多条客服/群聊会话不会在唯一索引上相撞
	s1 := newConversationRow(domain.KindSupport, "订单 #1", 1, "", now)
	s2 := newConversationRow(domain.KindSupport, "订单 #2", 2, "", now)
	if s1.PeerKey != nil || s2.PeerKey != nil {
		t.Error("non-direct conversations must store a NULL peer key")
	}
	if g := newConversationRow(domain.KindGroup, "g", 0, "", now); g.PeerKey != nil {
		t.Error("group conversation must store a NULL peer key")
	}
}

func TestConversationToDomainPeerKey(t *testing.T) {
	key := "1_2"
	withKey := &Conversation{ID: 1, Kind: int8(domain.KindDirect), PeerKey: &key}
	if got := withKey.toDomain(nil).PeerKey; got != "1_2" {
		t.Errorf("expected peer key 1_2, got %q", got)
	}

	without := &Conversation{ID: 2, Kind: int8(domain.KindSupport)}
	if got := without.toDomain(nil).PeerKey; got != "" {
		t.Errorf("expected empty peer key, got %q", got)
	}
}
