package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"IndexPilot/internal/model"

	"github.com/rs/zerolog"
)

func storeClock() time.Time {
	return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
}

func TestDirectiveStore_MissingFileIsNoDirective(t *testing.T) {
	s := NewDirectiveStore(filepath.Join(t.TempDir(), "directive.json"), zerolog.Nop())
	if d := s.Active(storeClock(), 5*time.Minute); d != nil {
		t.Errorf("missing file must yield nil, got %+v", d)
	}
}

func TestDirectiveStore_MalformedFileIsNoDirective(t *testing.T) {
	path := filepath.Join(t.TempDir(), "directive.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	s := NewDirectiveStore(path, zerolog.Nop())
	if d := s.Active(storeClock(), 5*time.Minute); d != nil {
		t.Errorf("malformed file must yield nil, got %+v", d)
	}
}

func TestDirectiveStore_ActiveOnlyOnItsDate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "directive.json")
	body := `{"date": "2026-03-02", "bias": "BUY", "max_trades": 3}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	s := NewDirectiveStore(path, zerolog.Nop())

	d := s.Active(storeClock(), 5*time.Minute)
	if d == nil {
		t.Fatal("expected a directive on its own date")
	}
	if d.Bias != model.Buy || d.MaxTrades != 3 {
		t.Errorf("unexpected directive: %+v", d)
	}

	stale := s.Active(storeClock().Add(24*time.Hour), 5*time.Minute)
	if stale != nil {
		t.Errorf("yesterday's directive must not apply today, got %+v", stale)
	}
}

func TestDirectiveStore_ReloadsAfterMaxAge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "directive.json")
	s := NewDirectiveStore(path, zerolog.Nop())

	now := storeClock()
	if d := s.Active(now, 5*time.Minute); d != nil {
		t.Fatalf("expected nil before the file exists, got %+v", d)
	}

	body := `{"date": "2026-03-02", "bias": "SELL"}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	if d := s.Active(now.Add(10*time.Minute), 5*time.Minute); d == nil {
		t.Error("expected the new file to be picked up after max age")
	}
}

func TestFeedbackStore_MissingFileIsNil(t *testing.T) {
	s := NewFeedbackStore(filepath.Join(t.TempDir(), "feedback.json"), zerolog.Nop())
	if fb := s.Latest(storeClock(), 5*time.Minute); fb != nil {
		t.Errorf("missing file must yield nil, got %+v", fb)
	}
}

func TestFeedbackStore_SetNeutralOverridePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.json")
	s := NewFeedbackStore(path, zerolog.Nop())

	now := storeClock()
	if err := s.SetNeutralOverride(now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fb := s.Latest(now, 5*time.Minute)
	if fb == nil || !fb.NeutralOverride {
		t.Fatalf("override must be visible in-process, got %+v", fb)
	}

	// A fresh store reading the same file sees the persisted flag.
	s2 := NewFeedbackStore(path, zerolog.Nop())
	fb2 := s2.Latest(now, 5*time.Minute)
	if fb2 == nil || !fb2.NeutralOverride {
		t.Errorf("override must survive a restart, got %+v", fb2)
	}
}

func TestFeedbackStore_OverrideSurvivesStaleReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.json")
	now := storeClock()

	// Seed an older snapshot without the flag.
	old := `{"updated_at": "2026-03-02T09:00:00Z", "trap_regions": [137000]}`
	if err := os.WriteFile(path, []byte(old), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewFeedbackStore(path, zerolog.Nop())
	if fb := s.Latest(now, 5*time.Minute); fb == nil || fb.NeutralOverride {
		t.Fatalf("unexpected initial snapshot: %+v", fb)
	}
	if err := s.SetNeutralOverride(now); err != nil {
		t.Fatal(err)
	}

	// Restore the older file behind the store's back, as an external
	// writer losing the race would.
	if err := os.WriteFile(path, []byte(old), 0644); err != nil {
		t.Fatal(err)
	}

	fb := s.Latest(now.Add(10*time.Minute), 5*time.Minute)
	if fb == nil || !fb.NeutralOverride {
		t.Errorf("in-process override must survive reloading an older snapshot, got %+v", fb)
	}
	if len(fb.TrapRegions) != 1 {
		t.Errorf("reload should still pick up the file's other fields, got %+v", fb)
	}
}
