package hub

import (
	"testing"
	"time"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/domain"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	r.Register(1, domain.RoleCustomer, "alice", nil)

	sess, ok := r.Lookup(1)
	if !ok {
		t.Fatal("expected session after register")
	}
	if !sess.Online {
		t.Error("new session should be online")
	}
	if sess.Role != domain.RoleCustomer || sess.Name != "alice" {
		t.Errorf("unexpected identity: %+v", sess)
	}

	if _, ok := r.Lookup(2); ok {
		t.Error("lookup of unknown user should fail")
	}
}

func TestRegistryReplaceConnection(t *testing.T) {
	r := NewRegistry()
	c1 := &Client{userID: 1}
	c2 := &Client{userID: 1}

	r.Register(1, domain.RoleVendor, "bob", c1)
	r.Register(1, domain.RoleVendor, "bob", c2)

	if r.Len() != 1 {
		t.Fatalf("expected single session, got %d", r.Len())
	}
	got, ok := r.Client(1)
	if !ok || got != c2 {
		t.Error("newer connection should replace the older one")
	}
}

func TestRegistryRemoveIfClientKeepsReplacement(t *testing.T) {
	r := NewRegistry()
	c1 := &Client{userID: 1}
	c2 := &Client{userID: 1}

	r.Register(1, domain.RoleCustomer, "alice", c1)
	r.Register(1, domain.RoleCustomer, "alice", c2)

	// 旧连接后关闭，不能把顶替它的新连接注销掉
	if _, ok := r.RemoveIfClient(1, c1); ok {
		t.Error("stale connection must not evict its replacement")
	}
	got, ok := r.Client(1)
	if !ok || got != c2 {
		t.Fatal("replacement connection should stay reachable")
	}

	sess, ok := r.RemoveIfClient(1, c2)
	if !ok || sess.UserID != 1 {
		t.Errorf("current connection should remove its own session, got %+v", sess)
	}
	if _, ok := r.Lookup(1); ok {
		t.Error("session should be gone after the current connection leaves")
	}
}

func TestDisconnectStaleConnectionKeepsSession(t *testing.T) {
	registry := NewRegistry()
	tracker := NewPresenceTracker(registry, 0)
	h := NewHub(registry, tracker, nil)

	c1 := &Client{hub: h, userID: 1}
	c2 := &Client{hub: h, userID: 1}
	registry.Register(1, domain.RoleCustomer, "alice", c1)
	registry.Register(1, domain.RoleCustomer, "alice", c2)

	h.disconnect(c1)

	got, ok := registry.Client(1)
	if !ok || got != c2 {
		t.Fatal("stale disconnect must not evict the live connection")
	}
	sess, _ := registry.Lookup(1)
	if !sess.Online {
		t.Error("user should remain online after the stale socket closes")
	}

	h.disconnect(c2)
	if _, ok := registry.Lookup(1); ok {
		t.Error("disconnecting the live connection should remove the session")
	}
}

func TestRegistryRemoveReturnsSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Register(7, domain.RoleRider, "carol", nil)

	sess, ok := r.Remove(7)
	if !ok {
		t.Fatal("expected removal of existing session")
	}
	if sess.UserID != 7 || sess.Role != domain.RoleRider {
		t.Errorf("snapshot mismatch: %+v", sess)
	}
	if _, ok := r.Lookup(7); ok {
		t.Error("session should be gone after remove")
	}

	if _, ok := r.Remove(7); ok {
		t.Error("double remove should report missing")
	}
}

func TestRegistryFlipIdle(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	r.Register(1, domain.RoleCustomer, "idle", nil)
	r.Register(2, domain.RoleCustomer, "active", nil)
	r.Touch(1, now.Add(-10*time.Minute))
	r.Touch(2, now.Add(-1*time.Minute))

	flipped := r.FlipIdle(5*time.Minute, now)
	if len(flipped) != 1 || flipped[0].UserID != 1 {
		t.Fatalf("expected only user 1 flipped, got %+v", flipped)
	}

	// 翻转只改在线标记，登记项与连接保持可达
	sess, ok := r.Lookup(1)
	if !ok {
		t.Fatal("flipped session must stay registered")
	}
	if sess.Online {
		t.Error("flipped session should be offline")
	}

	// 第二轮不再重复翻转
	if again := r.FlipIdle(5*time.Minute, now); len(again) != 0 {
		t.Errorf("already-offline session flipped again: %+v", again)
	}
}

func TestRegistryTouchRestoresOnline(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	r.Register(1, domain.RoleCustomer, "alice", nil)
	r.Touch(1, now.Add(-10*time.Minute))
	r.FlipIdle(5*time.Minute, now)

	r.Touch(1, now)

	sess, _ := r.Lookup(1)
	if !sess.Online {
		t.Error("touch should silently restore online state")
	}

	ids := r.OnlineIDs()
	if len(ids) != 1 || ids[0] != 1 {
		t.Errorf("expected user 1 online, got %v", ids)
	}
}
