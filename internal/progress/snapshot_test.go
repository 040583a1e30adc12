package progress

import (
	"strings"
	"testing"
	"time"

	"github.com/conorfennell/cramdeck/internal/domain"
)

// mutateAll drives a store through a fixed sequence touching every kind of
// mutation.
func mutateAll(s *Store) {
	s.MarkReviewed(0, 0)
	s.MarkMastered(0, 1)
	s.MarkMastered(0, 1)
	s.MarkMastered(1, 2)
	s.MarkForReview(1, 2)
	s.ToggleFavorite(1, 0)
	s.MarkMastered(2, 0)
	s.ResetChapterProgress(2)
	s.MarkReviewed(2, 1)
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatKeyed, FormatPositional} {
		t.Run(string(format), func(t *testing.T) {
			kv := newMemKV()
			s := newTestStore(sampleChapters(2, 3, 2), WithPersister(NewPersister(kv, format, discardLogger())))
			mutateAll(s)

			fresh := newTestStore(sampleChapters(2, 3, 2), WithPersister(NewPersister(kv, format, discardLogger())))
			if !fresh.Load() {
				t.Fatal("Expected snapshot to load")
			}

			want, got := s.Chapters(), fresh.Chapters()
			for i := range want {
				for j := range want[i].Flashcards {
					if !progressEqual(want[i].Flashcards[j].Progress(), got[i].Flashcards[j].Progress()) {
						t.Errorf("Card (%d, %d): expected %+v, got %+v", i, j,
							want[i].Flashcards[j].Progress(), got[i].Flashcards[j].Progress())
					}
				}
			}

			wantFav := format == FormatKeyed
			if got[1].Flashcards[0].IsFavorite != wantFav {
				t.Errorf("Expected favorite restored=%v for %s format", wantFav, format)
			}
		})
	}
}

func TestKeyedApplySurvivesReordering(t *testing.T) {
	chapters := sampleChapters(3)
	s := newTestStore(chapters)
	s.MarkMastered(0, 2)
	snap := Capture(s.Chapters(), FormatKeyed)

	reordered := sampleChapters(3)
	cards := reordered[0].Flashcards
	cards[0], cards[2] = cards[2], cards[0]
	snap.Apply(reordered)

	if !reordered[0].Flashcards[0].IsMastered {
		t.Error("Expected progress to follow the card ID to its new position")
	}
	if reordered[0].Flashcards[2].IsMastered {
		t.Error("Expected the card now at the old position to keep defaults")
	}
}

func withoutIDs(chapters []domain.Chapter) []domain.Chapter {
	for i := range chapters {
		for j := range chapters[i].Flashcards {
			chapters[i].Flashcards[j].ID = ""
		}
	}
	return chapters
}

func TestRoundTripWithoutAuthoredIDs(t *testing.T) {
	kv := newMemKV()
	s := newTestStore(withoutIDs(sampleChapters(2, 1)), WithPersister(NewPersister(kv, FormatKeyed, discardLogger())))
	s.MarkMastered(0, 0)
	s.ToggleFavorite(1, 0)

	snap, err := Decode(kv.data[ProgressKey])
	if err != nil {
		t.Fatalf("Decode() returned an unexpected error: %v", err)
	}
	if len(snap.Cards) != 3 {
		t.Errorf("Expected 3 keyed entries, got %d", len(snap.Cards))
	}

	fresh := newTestStore(withoutIDs(sampleChapters(2, 1)), WithPersister(NewPersister(kv, FormatKeyed, discardLogger())))
	if !fresh.Load() {
		t.Fatal("Expected snapshot to load")
	}
	if c := card(t, fresh, 0, 0); !c.IsMastered || c.AttemptCount != 1 {
		t.Errorf("Expected card (0, 0) mastered once, got %+v", c.Progress())
	}
	if c := card(t, fresh, 0, 1); c.IsMastered || c.AttemptCount != 0 {
		t.Errorf("Expected card (0, 1) untouched, got %+v", c.Progress())
	}
	if c := card(t, fresh, 1, 0); !c.IsFavorite {
		t.Error("Expected card (1, 0) to stay a favorite")
	}
}

func TestDuplicateIDsFallBackToPositional(t *testing.T) {
	dup := func() []domain.Chapter {
		chapters := sampleChapters(2)
		chapters[0].Flashcards[1].ID = chapters[0].Flashcards[0].ID
		return chapters
	}
	if UniqueIDs(dup()) {
		t.Fatal("Expected repeated IDs to be detected")
	}

	kv := newMemKV()
	s := newTestStore(dup(), WithPersister(NewPersister(kv, FormatKeyed, discardLogger())))
	s.MarkMastered(0, 0)
	if !strings.HasPrefix(string(kv.data[ProgressKey]), "[") {
		t.Fatalf("Expected a positional snapshot, got %s", kv.data[ProgressKey])
	}

	fresh := newTestStore(dup(), WithPersister(NewPersister(kv, FormatKeyed, discardLogger())))
	fresh.Load()
	if !card(t, fresh, 0, 0).IsMastered || card(t, fresh, 0, 1).IsMastered {
		t.Error("Expected progress restored by position")
	}

	keyed := Snapshot{Cards: map[string]domain.CardProgress{"c1-0": {IsMastered: true}}}
	live := dup()
	keyed.Apply(live)
	if live[0].Flashcards[0].IsMastered || live[0].Flashcards[1].IsMastered {
		t.Error("Expected a shared ID to match no card")
	}
}

func TestPositionalApplyClamps(t *testing.T) {
	last := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{Positional: [][]domain.CardProgress{
		{{IsReviewed: true}, {IsMastered: true, AttemptCount: 2, LastReviewDate: &last}, {IsReviewed: true}},
		{{IsReviewed: true}},
		{{IsMastered: true}},
	}}

	live := sampleChapters(2, 3)
	snap.Apply(live)

	if !live[0].Flashcards[0].IsReviewed || !live[0].Flashcards[1].IsMastered {
		t.Error("Expected overlapping entries of chapter 0 to be applied")
	}
	if live[0].Flashcards[1].AttemptCount != 2 || !live[0].Flashcards[1].LastReviewDate.Equal(last) {
		t.Errorf("Expected attempt count and date to be copied, got %+v", live[0].Flashcards[1])
	}
	if !live[1].Flashcards[0].IsReviewed {
		t.Error("Expected chapter 1 card 0 to be applied")
	}
	if live[1].Flashcards[1].IsReviewed || live[1].Flashcards[2].IsReviewed {
		t.Error("Expected cards missing from the snapshot to keep defaults")
	}
}

func TestDecode(t *testing.T) {
	testCases := []struct {
		name        string
		input       string
		expectError bool
		positional  bool
	}{
		{name: "keyed", input: `{"version":2,"cards":{"a":{"isReviewed":true,"isMastered":false,"attemptCount":0}}}`},
		{name: "keyed without cards", input: `{"version":2}`},
		{name: "legacy positional", input: `[[{"isReviewed":true,"isMastered":true,"attemptCount":3,"lastReviewDate":"2025-01-02T03:04:05Z"}],[]]`, positional: true},
		{name: "empty", input: "  ", expectError: true},
		{name: "garbage", input: "not json", expectError: true},
		{name: "unknown version", input: `{"version":9,"cards":{}}`, expectError: true},
		{name: "truncated", input: `[[{"isReviewed":tr`, expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Decode([]byte(tc.input))
			if tc.expectError {
				if err == nil {
					t.Fatal("Expected an error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() returned an unexpected error: %v", err)
			}
			if tc.positional && s.Positional == nil {
				t.Error("Expected a positional snapshot")
			}
			if !tc.positional && s.Cards == nil {
				t.Error("Expected a keyed snapshot")
			}
		})
	}
}

func TestEncodePositionalIsArray(t *testing.T) {
	s := newTestStore(sampleChapters(1))
	s.ToggleFavorite(0, 0)
	data, err := Encode(Capture(s.Chapters(), FormatPositional))
	if err != nil {
		t.Fatalf("Encode() returned an unexpected error: %v", err)
	}
	if !strings.HasPrefix(string(data), "[[") {
		t.Errorf("Expected a JSON array of arrays, got %s", data)
	}
	if strings.Contains(string(data), "isFavorite") {
		t.Errorf("Expected positional encoding to omit favorites, got %s", data)
	}
}

func TestLoadFallsBackOnBadData(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		p := NewPersister(newMemKV(), FormatKeyed, discardLogger())
		if _, ok := p.Load(); ok {
			t.Error("Expected no snapshot for an empty store")
		}
	})

	t.Run("corrupt", func(t *testing.T) {
		kv := newMemKV()
		kv.data[ProgressKey] = []byte("{broken")
		s := newTestStore(sampleChapters(2), WithPersister(NewPersister(kv, FormatKeyed, discardLogger())))
		if s.Load() {
			t.Error("Expected corrupt snapshot to be ignored")
		}
		if s.ChapterProgress(0) != 0 {
			t.Error("Expected default state after a corrupt snapshot")
		}
	})

	t.Run("read error", func(t *testing.T) {
		kv := newMemKV()
		kv.failGet = true
		p := NewPersister(kv, FormatKeyed, discardLogger())
		if _, ok := p.Load(); ok {
			t.Error("Expected no snapshot when the read fails")
		}
	})
}
