package schedule

import (
	"math"
	"testing"
	"time"

	"github.com/conorfennell/cramdeck/internal/domain"
)

func TestNextStability(t *testing.T) {
	params := DefaultParams()

	// S' = 10 * (1 + 1.5 * 5^(-0.5) * 10^0.1 * (e^(4 * (1-0.9)) - 1))
	// S' = 10 * (1 + 1.5 * 0.4472 * 1.2589 * 0.4918)
	// S' = 10 * (1 + 0.4153) = 14.15
	expected := 14.15

	got := params.nextStability(10)
	if math.Abs(got-expected) > 0.01 {
		t.Errorf("Expected new stability to be around %.2f, but got %.2f", expected, got)
	}
}

func TestStabilityGrows(t *testing.T) {
	params := DefaultParams()
	if params.Stability(0) != 1 {
		t.Errorf("Expected stability 1 with no attempts, got %.2f", params.Stability(0))
	}
	prev := params.Stability(0)
	for attempts := 1; attempts <= 6; attempts++ {
		s := params.Stability(attempts)
		if s <= prev {
			t.Errorf("Expected stability to grow at attempt %d, got %.2f after %.2f", attempts, s, prev)
		}
		prev = s
	}
}

func TestNextReview(t *testing.T) {
	params := DefaultParams()
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("never reviewed", func(t *testing.T) {
		if got := params.NextReview(domain.CardProgress{}); !got.IsZero() {
			t.Errorf("Expected zero time, got %v", got)
		}
	})

	t.Run("flagged for review is due immediately", func(t *testing.T) {
		p := domain.CardProgress{LastReviewDate: &last}
		if got := params.NextReview(p); !got.Equal(last) {
			t.Errorf("Expected %v, got %v", last, got)
		}
	})

	t.Run("mastered waits stability days", func(t *testing.T) {
		p := domain.CardProgress{IsMastered: true, AttemptCount: 3, LastReviewDate: &last}
		days := math.Round(params.Stability(3))
		expected := last.Add(time.Duration(days) * 24 * time.Hour)
		if got := params.NextReview(p); !got.Equal(expected) {
			t.Errorf("Expected %v, got %v", expected, got)
		}
	})
}

func TestIsDue(t *testing.T) {
	params := DefaultParams()
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		progress domain.CardProgress
		now      time.Time
		expected bool
	}{
		{"untouched card", domain.CardProgress{}, last, false},
		{"marked for review", domain.CardProgress{LastReviewDate: &last}, last, true},
		{"mastered, same day", domain.CardProgress{IsMastered: true, AttemptCount: 1, LastReviewDate: &last}, last, false},
		{"mastered, long ago", domain.CardProgress{IsMastered: true, AttemptCount: 1, LastReviewDate: &last}, last.AddDate(1, 0, 0), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := params.IsDue(tc.progress, tc.now); got != tc.expected {
				t.Errorf("Expected IsDue to be %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestStabilityIsCapped(t *testing.T) {
	params := DefaultParams()
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, attempts := range []int{27, 40, 1000, math.MaxInt32} {
		if s := params.Stability(attempts); s > MaxStability {
			t.Errorf("attempts=%d: stability %.0f exceeds the cap", attempts, s)
		}

		p := domain.CardProgress{IsMastered: true, AttemptCount: attempts, LastReviewDate: &last}
		next := params.NextReview(p)
		if !next.After(last) {
			t.Errorf("attempts=%d: next review %v is not after the last review", attempts, next)
		}
		if params.IsDue(p, last.Add(time.Hour)) {
			t.Errorf("attempts=%d: card reported due an hour after being mastered", attempts)
		}
	}

	if got := params.Stability(1000); got != MaxStability {
		t.Errorf("Expected stability to saturate at %.0f, got %.2f", MaxStability, got)
	}
}
