package progress

import (
	"errors"
	"log/slog"
	"time"

	"github.com/conorfennell/cramdeck/internal/domain"
	"github.com/conorfennell/cramdeck/internal/knol"
	"github.com/conorfennell/cramdeck/internal/schedule"
)

// ErrIndexOutOfRange is returned by mutations in strict mode when a chapter or
// card index does not exist. In lenient mode such calls are no-ops.
var ErrIndexOutOfRange = errors.New("index out of range")

// MasteryRule decides how MarkMastered treats the reviewed flag.
type MasteryRule string

const (
	// MasteryAuto marks a card reviewed when it is mastered.
	MasteryAuto MasteryRule = "auto"
	// MasteryOff leaves the reviewed flag untouched.
	MasteryOff MasteryRule = "off"
)

// Persistence is where the store writes its progress after each mutation.
type Persistence interface {
	Save(chapters []domain.Chapter) error
	Load() (Snapshot, bool)
}

// EventKind names the mutation that produced an Event.
type EventKind string

const (
	EventLoaded          EventKind = "loaded"
	EventReviewed        EventKind = "reviewed"
	EventMastered        EventKind = "mastered"
	EventMarkedForReview EventKind = "marked_for_review"
	EventFavoriteToggled EventKind = "favorite_toggled"
	EventChapterReset    EventKind = "chapter_reset"
	EventAllReset        EventKind = "all_reset"
)

// Event is delivered to subscribers after a state change. Chapter and Card are
// -1 when the change is not about a single chapter or card.
type Event struct {
	Kind    EventKind
	Chapter int
	Card    int
}

type subscriber struct {
	id int
	fn func(Event)
}

// Store owns the deck's chapters and flashcards. Every mutation goes through it
// so persistence stays consistent. A Store is not safe for concurrent use;
// callers serialize access.
type Store struct {
	chapters    []domain.Chapter
	persistence Persistence
	now         func() time.Time
	logger      *slog.Logger
	strict      bool
	mastery     MasteryRule
	schedule    *schedule.Params

	subscribers []subscriber
	nextSubID   int
}

// Option configures a Store.
type Option func(*Store)

// WithPersister sets where progress is saved. Without it the store is
// in-memory only.
func WithPersister(p Persistence) Option {
	return func(s *Store) { s.persistence = p }
}

// WithClock overrides the time source used for review dates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithStrictIndices makes out-of-range mutations return ErrIndexOutOfRange.
func WithStrictIndices(strict bool) Option {
	return func(s *Store) { s.strict = strict }
}

// WithMasteryRule sets how mastery interacts with the reviewed flag.
func WithMasteryRule(r MasteryRule) Option {
	return func(s *Store) { s.mastery = r }
}

// WithSchedule sets the interval model used by DueFlashcards.
func WithSchedule(p *schedule.Params) Option {
	return func(s *Store) { s.schedule = p }
}

// New builds a store over chapters. The store takes its own copy and gives
// cards without an ID one derived from their text.
func New(chapters []domain.Chapter, opts ...Option) *Store {
	s := &Store{
		chapters: make([]domain.Chapter, len(chapters)),
		now:      time.Now,
		logger:   slog.Default(),
		mastery:  MasteryAuto,
		schedule: schedule.DefaultParams(),
	}
	for i, ch := range chapters {
		s.chapters[i] = ch.Clone()
		for j := range s.chapters[i].Flashcards {
			f := &s.chapters[i].Flashcards[j]
			if f.ID == "" {
				f.ID = knol.ID(f.Question, f.Answer)
			}
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	if !UniqueIDs(s.chapters) {
		s.logger.Warn("Duplicate card IDs, progress will be matched by position")
	}
	return s
}

// Load restores saved progress, if any. It reports whether a snapshot was
// applied.
func (s *Store) Load() bool {
	if s.persistence == nil {
		return false
	}
	snap, ok := s.persistence.Load()
	if !ok {
		s.logger.Info("No saved progress, starting fresh")
		return false
	}
	snap.Apply(s.chapters)
	s.notify(Event{Kind: EventLoaded, Chapter: -1, Card: -1})
	return true
}

// Subscribe registers fn to be called after every state change. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	id := s.nextSubID
	s.nextSubID++
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})
	return func() {
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

// MarkReviewed records that the card's answer has been seen.
func (s *Store) MarkReviewed(chapterIdx, cardIdx int) error {
	return s.mutateCard(EventReviewed, chapterIdx, cardIdx, func(f *domain.Flashcard) {
		f.IsReviewed = true
	})
}

// MarkMastered marks the card mastered, stamps the review date and counts the
// attempt. Repeated calls keep the card mastered but keep counting attempts.
func (s *Store) MarkMastered(chapterIdx, cardIdx int) error {
	return s.mutateCard(EventMastered, chapterIdx, cardIdx, func(f *domain.Flashcard) {
		if s.mastery == MasteryAuto {
			f.IsReviewed = true
		}
		f.IsMastered = true
		f.LastReviewDate = s.stamp()
		f.AttemptCount++
	})
}

// MarkForReview clears mastery and stamps the review date. The reviewed flag
// and attempt count are left alone.
func (s *Store) MarkForReview(chapterIdx, cardIdx int) error {
	return s.mutateCard(EventMarkedForReview, chapterIdx, cardIdx, func(f *domain.Flashcard) {
		f.IsMastered = false
		f.LastReviewDate = s.stamp()
	})
}

// ToggleFavorite flips the card's favorite flag.
func (s *Store) ToggleFavorite(chapterIdx, cardIdx int) error {
	return s.mutateCard(EventFavoriteToggled, chapterIdx, cardIdx, func(f *domain.Flashcard) {
		f.IsFavorite = !f.IsFavorite
	})
}

// ResetChapterProgress returns every card of the chapter to its defaults.
func (s *Store) ResetChapterProgress(chapterIdx int) error {
	if !s.validChapter(chapterIdx) {
		return s.outOfRange("reset_chapter", chapterIdx, -1)
	}
	s.resetChapter(chapterIdx)
	s.commit(Event{Kind: EventChapterReset, Chapter: chapterIdx, Card: -1})
	return nil
}

// ResetAllProgress resets every chapter.
func (s *Store) ResetAllProgress() {
	for i := range s.chapters {
		s.resetChapter(i)
	}
	s.commit(Event{Kind: EventAllReset, Chapter: -1, Card: -1})
}

func (s *Store) resetChapter(chapterIdx int) {
	cards := s.chapters[chapterIdx].Flashcards
	for j := range cards {
		cards[j].ResetProgress()
	}
}

// FavoriteFlashcards lists favorite cards in chapter then card order.
func (s *Store) FavoriteFlashcards() []domain.CardRef {
	var out []domain.CardRef
	for i, ch := range s.chapters {
		for j, f := range ch.Flashcards {
			if f.IsFavorite {
				out = append(out, ref(i, j, f))
			}
		}
	}
	return out
}

// ChapterProgress returns the chapter's mastered percentage, 0 for an unknown
// index.
func (s *Store) ChapterProgress(chapterIdx int) float64 {
	if !s.validChapter(chapterIdx) {
		return 0
	}
	return s.chapters[chapterIdx].ProgressPercentage()
}

// OverallProgress is the mastered percentage across the whole deck.
func (s *Store) OverallProgress() float64 {
	total, mastered := 0, 0
	for _, ch := range s.chapters {
		total += len(ch.Flashcards)
		mastered += ch.MasteredCount()
	}
	if total == 0 {
		return 0
	}
	return 100 * float64(mastered) / float64(total)
}

// Chapters returns a copy of all chapters.
func (s *Store) Chapters() []domain.Chapter {
	out := make([]domain.Chapter, len(s.chapters))
	for i, ch := range s.chapters {
		out[i] = ch.Clone()
	}
	return out
}

// Chapter returns a copy of one chapter.
func (s *Store) Chapter(chapterIdx int) (domain.Chapter, bool) {
	if !s.validChapter(chapterIdx) {
		return domain.Chapter{}, false
	}
	return s.chapters[chapterIdx].Clone(), true
}

// ChapterStats summarizes one chapter.
type ChapterStats struct {
	Index      int     `json:"index"`
	Number     int     `json:"number"`
	Title      string  `json:"title"`
	Total      int     `json:"total"`
	Reviewed   int     `json:"reviewed"`
	Mastered   int     `json:"mastered"`
	Favorites  int     `json:"favorites"`
	Percentage float64 `json:"percentage"`
}

// Stats summarizes every chapter in order.
func (s *Store) Stats() []ChapterStats {
	out := make([]ChapterStats, len(s.chapters))
	for i, ch := range s.chapters {
		st := ChapterStats{
			Index:      i,
			Number:     ch.Number,
			Title:      ch.Title,
			Total:      len(ch.Flashcards),
			Mastered:   ch.MasteredCount(),
			Percentage: ch.ProgressPercentage(),
		}
		for _, f := range ch.Flashcards {
			if f.IsReviewed {
				st.Reviewed++
			}
			if f.IsFavorite {
				st.Favorites++
			}
		}
		out[i] = st
	}
	return out
}

// DueFlashcards lists cards that need another look at now, in chapter then
// card order.
func (s *Store) DueFlashcards(now time.Time) []domain.CardRef {
	var out []domain.CardRef
	for i, ch := range s.chapters {
		for j, f := range ch.Flashcards {
			if s.schedule.IsDue(f.Progress(), now) {
				out = append(out, ref(i, j, f))
			}
		}
	}
	return out
}

func (s *Store) mutateCard(kind EventKind, chapterIdx, cardIdx int, fn func(*domain.Flashcard)) error {
	if !s.validCard(chapterIdx, cardIdx) {
		return s.outOfRange(string(kind), chapterIdx, cardIdx)
	}
	fn(&s.chapters[chapterIdx].Flashcards[cardIdx])
	s.commit(Event{Kind: kind, Chapter: chapterIdx, Card: cardIdx})
	return nil
}

// commit persists the new state and notifies subscribers. Save failures are
// logged and dropped; in-memory state stays authoritative.
func (s *Store) commit(e Event) {
	if s.persistence != nil {
		if err := s.persistence.Save(s.chapters); err != nil {
			s.logger.Warn("Failed to save progress", "event", e.Kind, "error", err)
		}
	}
	s.notify(e)
}

func (s *Store) notify(e Event) {
	for _, sub := range append([]subscriber(nil), s.subscribers...) {
		sub.fn(e)
	}
}

func (s *Store) outOfRange(op string, chapterIdx, cardIdx int) error {
	if s.strict {
		s.logger.Warn("Rejected out-of-range index", "op", op, "chapter", chapterIdx, "card", cardIdx)
		return ErrIndexOutOfRange
	}
	s.logger.Debug("Ignored out-of-range index", "op", op, "chapter", chapterIdx, "card", cardIdx)
	return nil
}

func (s *Store) validChapter(chapterIdx int) bool {
	return chapterIdx >= 0 && chapterIdx < len(s.chapters)
}

func (s *Store) validCard(chapterIdx, cardIdx int) bool {
	return s.validChapter(chapterIdx) && cardIdx >= 0 && cardIdx < len(s.chapters[chapterIdx].Flashcards)
}

func (s *Store) stamp() *time.Time {
	t := s.now()
	return &t
}

func ref(chapterIdx, cardIdx int, f domain.Flashcard) domain.CardRef {
	return domain.CardRef{ChapterIndex: chapterIdx, CardIndex: cardIdx, Flashcard: f.Clone()}
}
