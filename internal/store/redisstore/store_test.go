package redisstore

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestLoginKey_Normalises(t *testing.T) {
	if loginKey("  A@X.com ") != "login:fail:a@x.com" {
		t.Fatalf("unexpected key: %q", loginKey("  A@X.com "))
	}
}

// captureHook records pipelined commands instead of sending them.
type captureHook struct {
	cmds []redis.Cmder
}

func (h *captureHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, fmt.Errorf("dial disabled in tests")
	}
}

func (h *captureHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.cmds = append(h.cmds, cmd)
		return nil
	}
}

func (h *captureHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.cmds = append(h.cmds, cmds...)
		return nil
	}
}

func TestRecordFailure_WindowSetWithIncrement(t *testing.T) {
	s := NewStore("127.0.0.1:0", "", 0)
	defer s.Close()
	hook := &captureHook{}
	s.rdb.AddHook(hook)

	th := s.LoginThrottle(5, 15*time.Minute)
	if err := th.RecordFailure(context.Background(), "A@x.com"); err != nil {
		t.Fatalf("record: %v", err)
	}

	var names []string
	for _, c := range hook.cmds {
		names = append(names, c.Name())
	}
	if got := strings.Join(names, ","); got != "multi,set,incr,exec" {
		t.Fatalf("expected one MULTI with SET NX and INCR, got %s", got)
	}
	set := fmt.Sprint(hook.cmds[1].Args())
	if !strings.Contains(set, "login:fail:a@x.com") || !strings.Contains(set, "nx") || !strings.Contains(set, "ex") {
		t.Fatalf("SET must create the key with its window: %s", set)
	}
}

// Runs against a real redis only when REDIS_ADDR_TEST is set.
func TestLoginThrottle_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR_TEST")
	if addr == "" {
		t.Skip("set REDIS_ADDR_TEST to run redis integration tests")
	}
	s := NewStore(addr, "", 0)
	defer s.Close()
	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	th := s.LoginThrottle(2, time.Minute)
	email := "throttle-" + time.Now().Format("150405.000000") + "@x.com"
	defer th.Reset(ctx, email)

	for i := 0; i < 2; i++ {
		if blocked, err := th.Blocked(ctx, email); err != nil || blocked {
			t.Fatalf("attempt %d: blocked=%v err=%v", i, blocked, err)
		}
		if err := th.RecordFailure(ctx, email); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if blocked, _ := th.Blocked(ctx, email); !blocked {
		t.Fatalf("expected block after max failures")
	}
	if ttl, err := s.rdb.TTL(ctx, loginKey(email)).Result(); err != nil || ttl <= 0 || ttl > time.Minute {
		t.Fatalf("counter must carry the window, ttl=%s err=%v", ttl, err)
	}
	if err := th.Reset(ctx, email); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if blocked, _ := th.Blocked(ctx, email); blocked {
		t.Fatalf("expected unblock after reset")
	}
}
