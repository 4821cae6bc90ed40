package cooldown

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *MemoryKV) {
	t.Helper()
	kv := NewMemoryKV()
	return NewStore(kv, zerolog.Nop(), opts...), kv
}

func TestNewStore_PanicsOnNilKV(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewStore should panic with nil KV")
		}
	}()
	NewStore(nil, zerolog.Nop())
}

func TestStore_NotBlockedByDefault(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	blocked, remaining, err := store.IsBlocked(ctx, "/courses")
	if err != nil {
		t.Fatalf("IsBlocked failed: %v", err)
	}
	if blocked {
		t.Error("Endpoint blocked without a cooldown")
	}
	if remaining != 0 {
		t.Errorf("Remaining = %v, want 0", remaining)
	}
}

func TestStore_SetCooldownBlocks(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.SetCooldown(ctx, "/courses", 5*time.Second); err != nil {
		t.Fatalf("SetCooldown failed: %v", err)
	}

	blocked, remaining, err := store.IsBlocked(ctx, "/courses")
	if err != nil {
		t.Fatalf("IsBlocked failed: %v", err)
	}
	if !blocked {
		t.Fatal("Endpoint not blocked after SetCooldown")
	}
	if remaining <= 0 || remaining > 5*time.Second {
		t.Errorf("Remaining = %v, want in (0, 5s]", remaining)
	}
}

func TestStore_CooldownIsPerEndpoint(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.SetCooldown(ctx, "/courses", 5*time.Second); err != nil {
		t.Fatalf("SetCooldown failed: %v", err)
	}

	blocked, _, err := store.IsBlocked(ctx, "/lessons")
	if err != nil {
		t.Fatalf("IsBlocked failed: %v", err)
	}
	if blocked {
		t.Error("Cooldown on one endpoint blocked another")
	}
}

func TestStore_ExpiredRecordTreatedAsAbsent(t *testing.T) {
	store, kv := newTestStore(t)
	ctx := context.Background()

	// Persist a record that already expired, as if left over from a
	// previous process instance.
	past := time.Now().Add(-1 * time.Second)
	if err := kv.Write(ctx, storageKey("/courses"), formatRecord(past)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	blocked, _, err := store.IsBlocked(ctx, "/courses")
	if err != nil {
		t.Fatalf("IsBlocked failed: %v", err)
	}
	if blocked {
		t.Error("Expired record still blocks")
	}

	// The expired record must be removed on read.
	if _, err := kv.Read(ctx, storageKey("/courses")); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound after expired read, got %v", err)
	}
}

func TestStore_MalformedRecordDiscarded(t *testing.T) {
	store, kv := newTestStore(t)
	ctx := context.Background()

	if err := kv.Write(ctx, storageKey("/courses"), "not-a-timestamp"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	blocked, _, err := store.IsBlocked(ctx, "/courses")
	if err != nil {
		t.Fatalf("IsBlocked failed: %v", err)
	}
	if blocked {
		t.Error("Malformed record blocks")
	}
	if _, err := kv.Read(ctx, storageKey("/courses")); err != ErrNotFound {
		t.Errorf("Expected malformed record removed, got %v", err)
	}
}

func TestStore_SetCooldown_DefaultWait(t *testing.T) {
	store, _ := newTestStore(t, WithDefaultWait(30*time.Second))
	ctx := context.Background()

	// Zero wait means "no usable hint" and falls back to the default.
	if _, err := store.SetCooldown(ctx, "/courses", 0); err != nil {
		t.Fatalf("SetCooldown failed: %v", err)
	}

	_, remaining, err := store.IsBlocked(ctx, "/courses")
	if err != nil {
		t.Fatalf("IsBlocked failed: %v", err)
	}
	if remaining <= 29*time.Second || remaining > 30*time.Second {
		t.Errorf("Remaining = %v, want ~30s default", remaining)
	}
}

func TestStore_SetCooldown_ClampedToCeiling(t *testing.T) {
	store, _ := newTestStore(t, WithMaxWait(10*time.Second))
	ctx := context.Background()

	if _, err := store.SetCooldown(ctx, "/courses", 24*time.Hour); err != nil {
		t.Fatalf("SetCooldown failed: %v", err)
	}

	_, remaining, err := store.IsBlocked(ctx, "/courses")
	if err != nil {
		t.Fatalf("IsBlocked failed: %v", err)
	}
	if remaining > 10*time.Second {
		t.Errorf("Remaining = %v, want <= 10s ceiling", remaining)
	}
}

func TestStore_SetCooldown_NeverShortens(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.SetCooldown(ctx, "/courses", 60*time.Second); err != nil {
		t.Fatalf("SetCooldown failed: %v", err)
	}
	// A later, shorter hint must not shorten the recorded embargo.
	if _, err := store.SetCooldown(ctx, "/courses", 1*time.Second); err != nil {
		t.Fatalf("SetCooldown failed: %v", err)
	}

	_, remaining, err := store.IsBlocked(ctx, "/courses")
	if err != nil {
		t.Fatalf("IsBlocked failed: %v", err)
	}
	if remaining < 50*time.Second {
		t.Errorf("Remaining = %v, cooldown was shortened", remaining)
	}
}

func TestStore_SetCooldown_LaterHintExtends(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.SetCooldown(ctx, "/courses", 1*time.Second); err != nil {
		t.Fatalf("SetCooldown failed: %v", err)
	}
	if _, err := store.SetCooldown(ctx, "/courses", 60*time.Second); err != nil {
		t.Fatalf("SetCooldown failed: %v", err)
	}

	_, remaining, err := store.IsBlocked(ctx, "/courses")
	if err != nil {
		t.Fatalf("IsBlocked failed: %v", err)
	}
	if remaining < 50*time.Second {
		t.Errorf("Remaining = %v, later 429 did not extend cooldown", remaining)
	}
}

func TestStore_ClearRemovesCooldown(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.SetCooldown(ctx, "/courses", 60*time.Second); err != nil {
		t.Fatalf("SetCooldown failed: %v", err)
	}
	if err := store.Clear(ctx, "/courses"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	blocked, _, err := store.IsBlocked(ctx, "/courses")
	if err != nil {
		t.Fatalf("IsBlocked failed: %v", err)
	}
	if blocked {
		t.Error("Endpoint still blocked after Clear")
	}
}

func TestRetryAfterWait(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected time.Duration
	}{
		{"absent", "", 0},
		{"valid seconds", "5", 5 * time.Second},
		{"zero", "0", 0},
		{"negative", "-3", 0},
		{"garbage", "soon", 0},
		{"http date unsupported", "Wed, 21 Oct 2026 07:28:00 GMT", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RetryAfterWait(tt.header); got != tt.expected {
				t.Errorf("RetryAfterWait(%q) = %v, want %v", tt.header, got, tt.expected)
			}
		})
	}
}
