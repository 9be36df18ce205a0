package observability

import (
	"context"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	f := NoopFrameHooks{}
	f.OnDecideStart(ctx, "panel", 6)
	f.OnDecideComplete(ctx, "panel", "multi", time.Millisecond, nil)
	f.OnCommit(ctx, "panel", 3, 1, 0, time.Millisecond)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "report")
	c.OnCacheMiss(ctx, "report")
	c.OnCacheSet(ctx, "report", 1024)

	s := NoopServerHooks{}
	s.OnRequest(ctx, "POST", "/v1/simulate")
	s.OnResponse(ctx, "POST", "/v1/simulate", 200, time.Second)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Frame().(NoopFrameHooks); !ok {
		t.Error("Frame() should return NoopFrameHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := Server().(NoopServerHooks); !ok {
		t.Error("Server() should return NoopServerHooks by default")
	}

	customFrame := &countingFrameHooks{}
	SetFrameHooks(customFrame)
	if Frame() != customFrame {
		t.Error("SetFrameHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customServer := &testServerHooks{}
	SetServerHooks(customServer)
	if Server() != customServer {
		t.Error("SetServerHooks should set custom hooks")
	}

	Frame().OnDecideStart(context.Background(), "panel", 2)
	if customFrame.starts != 1 {
		t.Errorf("starts = %d, want 1", customFrame.starts)
	}

	Reset()
	if _, ok := Frame().(NoopFrameHooks); !ok {
		t.Error("Reset() should restore NoopFrameHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &countingFrameHooks{}
	SetFrameHooks(custom)
	SetFrameHooks(nil)

	if Frame() != custom {
		t.Error("SetFrameHooks(nil) should be ignored")
	}

	Reset()
}

type countingFrameHooks struct {
	NoopFrameHooks
	starts int
}

func (h *countingFrameHooks) OnDecideStart(context.Context, string, int) { h.starts++ }

type testCacheHooks struct{ NoopCacheHooks }
type testServerHooks struct{ NoopServerHooks }
