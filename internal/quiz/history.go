package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/conorfennell/cramdeck/internal/domain"
)

// HistoryKey is the storage key of the quiz history log.
const HistoryKey = "QuizHistory"

// ErrNotCompleted is returned when appending a session that was not finished.
var ErrNotCompleted = errors.New("quiz session not completed")

// KV is the durable key-value store the history is written to.
type KV interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
}

// History is an append-only log of completed quiz sessions.
type History struct {
	kv       KV
	logger   *slog.Logger
	sessions []domain.QuizSession
}

// NewHistory returns an empty history backed by kv. Call Load to read the
// stored log.
func NewHistory(kv KV, logger *slog.Logger) *History {
	if logger == nil {
		logger = slog.Default()
	}
	return &History{kv: kv, logger: logger}
}

// Load replaces the in-memory log with the stored one. A missing or corrupt
// record leaves the log empty.
func (h *History) Load() {
	h.sessions = nil
	data, err := h.kv.Get(HistoryKey)
	if err != nil {
		h.logger.Warn("Failed to read quiz history", "key", HistoryKey, "error", err)
		return
	}
	if data == nil {
		return
	}
	var sessions []domain.QuizSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		h.logger.Warn("Discarding corrupt quiz history", "key", HistoryKey, "error", err)
		return
	}
	h.sessions = sessions
}

// Append adds a completed session and saves the log. Save failures are logged
// and dropped.
func (h *History) Append(session domain.QuizSession) error {
	if !session.Completed {
		return ErrNotCompleted
	}
	h.sessions = append(h.sessions, session)
	if err := h.save(); err != nil {
		h.logger.Warn("Failed to save quiz history", "session", session.ID, "error", err)
	}
	return nil
}

func (h *History) save() error {
	data, err := json.Marshal(h.sessions)
	if err != nil {
		return fmt.Errorf("failed to encode quiz history: %w", err)
	}
	return h.kv.Put(HistoryKey, data)
}

// All returns every recorded session, oldest first.
func (h *History) All() []domain.QuizSession {
	out := make([]domain.QuizSession, len(h.sessions))
	copy(out, h.sessions)
	return out
}

// ForChapter returns the chapter's sessions, oldest first.
func (h *History) ForChapter(chapterNumber int) []domain.QuizSession {
	var out []domain.QuizSession
	for _, s := range h.sessions {
		if s.ChapterNumber == chapterNumber {
			out = append(out, s)
		}
	}
	return out
}

// Best returns the chapter's highest scoring session. Ties go to the earliest.
func (h *History) Best(chapterNumber int) (domain.QuizSession, bool) {
	var best domain.QuizSession
	found := false
	for _, s := range h.sessions {
		if s.ChapterNumber != chapterNumber {
			continue
		}
		if !found || s.Score > best.Score {
			best, found = s, true
		}
	}
	return best, found
}
