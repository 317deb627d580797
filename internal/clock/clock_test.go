package clock

import (
	"testing"
	"time"
)

func TestFake(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := NewFake(t0)
	if !f.Now().Equal(t0) {
		t.Errorf("Now = %v, want %v", f.Now(), t0)
	}

	f.Advance(25 * time.Hour)
	if !f.Now().Equal(t0.Add(25 * time.Hour)) {
		t.Errorf("Now after advance = %v", f.Now())
	}

	t1 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	f.Set(t1)
	if !f.Now().Equal(t1) {
		t.Errorf("Now after set = %v", f.Now())
	}
}

func TestSystemReturnsUTC(t *testing.T) {
	now := System{}.Now()
	if now.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", now.Location())
	}
}
