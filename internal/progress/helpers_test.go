package progress

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/conorfennell/cramdeck/internal/domain"
)

type memKV struct {
	data    map[string][]byte
	puts    int
	failPut bool
	failGet bool
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}}
}

func (m *memKV) Get(key string) ([]byte, error) {
	if m.failGet {
		return nil, errors.New("disk unavailable")
	}
	return m.data[key], nil
}

func (m *memKV) Put(key string, value []byte) error {
	if m.failPut {
		return errors.New("disk full")
	}
	m.puts++
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// sampleChapters builds chapters with the given card counts. Card IDs are
// "c<chapter>-<card>".
func sampleChapters(sizes ...int) []domain.Chapter {
	chapters := make([]domain.Chapter, len(sizes))
	for i, n := range sizes {
		ch := domain.Chapter{Number: i + 1, Title: fmt.Sprintf("Chapter %d", i+1)}
		for j := 0; j < n; j++ {
			ch.Flashcards = append(ch.Flashcards, domain.Flashcard{
				ID:       fmt.Sprintf("c%d-%d", i+1, j),
				Question: fmt.Sprintf("Question %d.%d", i+1, j),
				Answer:   fmt.Sprintf("Answer %d.%d", i+1, j),
			})
		}
		chapters[i] = ch
	}
	return chapters
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedClock returns a clock that advances one minute per call.
func fixedClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		now := t
		t = t.Add(time.Minute)
		return now
	}
}

func progressEqual(a, b domain.CardProgress) bool {
	if a.IsReviewed != b.IsReviewed || a.IsMastered != b.IsMastered || a.AttemptCount != b.AttemptCount {
		return false
	}
	if (a.LastReviewDate == nil) != (b.LastReviewDate == nil) {
		return false
	}
	return a.LastReviewDate == nil || a.LastReviewDate.Equal(*b.LastReviewDate)
}
