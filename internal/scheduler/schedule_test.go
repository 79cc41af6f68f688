package scheduler

import (
	"testing"
	"time"
)

func TestEvery_AddsInterval(t *testing.T) {
	s := Every(5 * time.Minute)
	after := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := s.Next(after); !got.Equal(after.Add(5 * time.Minute)) {
		t.Errorf("Next = %v, want %v", got, after.Add(5*time.Minute))
	}
}

func TestDaily_BeforeAndAfterTarget(t *testing.T) {
	s := Daily(2, 30)

	morning := time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC)
	if got := s.Next(morning); got.Day() != 1 || got.Hour() != 2 || got.Minute() != 30 {
		t.Errorf("before target: Next = %v, want same day 02:30", got)
	}

	afternoon := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	if got := s.Next(afternoon); got.Day() != 2 || got.Hour() != 2 || got.Minute() != 30 {
		t.Errorf("after target: Next = %v, want next day 02:30", got)
	}
}

func TestDaily_ExactlyAtTargetRollsOver(t *testing.T) {
	s := Daily(2, 30)
	at := time.Date(2026, 3, 1, 2, 30, 0, 0, time.UTC)
	if got := s.Next(at); got.Day() != 2 {
		t.Errorf("Next at the exact target time should be tomorrow, got %v", got)
	}
}
