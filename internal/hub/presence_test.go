package hub

import (
	"testing"
	"time"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/domain"
)

type recordingBroadcaster struct {
	events []recordedEvent
}

type recordedEvent struct {
	event  string
	data   interface{}
	except uint64
}

func (s *recordingBroadcaster) broadcastAll(event string, data interface{}, except uint64) {
	s.events = append(s.events, recordedEvent{event: event, data: data, except: except})
}

func TestPresenceMarkOnlineExcludesSelf(t *testing.T) {
	out := &recordingBroadcaster{}
	tracker := NewPresenceTracker(NewRegistry(), 0)
	tracker.bind(out)

	tracker.MarkOnline(3, domain.RoleVendor, "bob")

	if len(out.events) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(out.events))
	}
	evt := out.events[0]
	if evt.event != EvtUserOnline {
		t.Errorf("expected %s, got %s", EvtUserOnline, evt.event)
	}
	if evt.except != 3 {
		t.Error("presence broadcast must not echo to the subject user")
	}
	payload, ok := evt.data.(PresencePayload)
	if !ok || payload.UserID != 3 || payload.UserType != string(domain.RoleVendor) {
		t.Errorf("unexpected payload: %+v", evt.data)
	}
}

func TestPresenceSweepFlipsIdleSessions(t *testing.T) {
	registry := NewRegistry()
	out := &recordingBroadcaster{}
	tracker := NewPresenceTracker(registry, 5*time.Minute)
	tracker.bind(out)

	now := time.Now()
	registry.Register(1, domain.RoleCustomer, "idle", nil)
	registry.Register(2, domain.RoleCustomer, "active", nil)
	registry.Touch(1, now.Add(-6*time.Minute))
	registry.Touch(2, now)

	tracker.Sweep()

	if len(out.events) != 1 {
		t.Fatalf("expected one offline broadcast, got %d", len(out.events))
	}
	if out.events[0].event != EvtUserOffline {
		t.Errorf("expected %s, got %s", EvtUserOffline, out.events[0].event)
	}
	payload := out.events[0].data.(PresencePayload)
	if payload.UserID != 1 {
		t.Errorf("expected user 1 offline, got %d", payload.UserID)
	}

	// 活跃恢复后再扫描不应重复广播
	out.events = nil
	tracker.Sweep()
	if len(out.events) != 0 {
		t.Errorf("second sweep broadcast again: %+v", out.events)
	}
}

func TestPresenceSweepThenTouchRestores(t *testing.T) {
	registry := NewRegistry()
	out := &recordingBroadcaster{}
	tracker := NewPresenceTracker(registry, 5*time.Minute)
	tracker.bind(out)

	now := time.Now()
	registry.Register(1, domain.RoleCustomer, "alice", nil)
	registry.Touch(1, now.Add(-6*time.Minute))
	tracker.Sweep()

	// 静默恢复：不触发 user_online 广播
	out.events = nil
	registry.Touch(1, now)

	if len(out.events) != 0 {
		t.Errorf("touch must not broadcast, got %+v", out.events)
	}
	sess, _ := registry.Lookup(1)
	if !sess.Online {
		t.Error("session should be online again after touch")
	}
}

func TestPresenceTrackerDefaultTimeout(t *testing.T) {
	tracker := NewPresenceTracker(NewRegistry(), 0)
	if tracker.idleTimeout != DefaultIdleTimeout {
		t.Errorf("expected default %v, got %v", DefaultIdleTimeout, tracker.idleTimeout)
	}
}
