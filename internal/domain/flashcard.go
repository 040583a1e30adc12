package domain

import "time"

// Flashcard is a single question/answer card together with the learner's
// progress on it. Question and Answer come from static content; the rest is
// mutable state owned by the progress store.
type Flashcard struct {
	ID       string
	Question string
	Answer   string

	IsReviewed     bool
	IsMastered     bool
	IsFavorite     bool
	AttemptCount   int
	LastReviewDate *time.Time
}

// Clone returns a copy that shares no memory with f.
func (f Flashcard) Clone() Flashcard {
	f.LastReviewDate = copyTime(f.LastReviewDate)
	return f
}

// Progress projects the persisted subset of the card's state.
func (f Flashcard) Progress() CardProgress {
	return CardProgress{
		IsReviewed:     f.IsReviewed,
		IsMastered:     f.IsMastered,
		IsFavorite:     f.IsFavorite,
		AttemptCount:   f.AttemptCount,
		LastReviewDate: copyTime(f.LastReviewDate),
	}
}

// ApplyProgress copies persisted state onto the card.
// The favorite flag is only copied when withFavorite is set, since the
// positional snapshot format does not carry it.
func (f *Flashcard) ApplyProgress(p CardProgress, withFavorite bool) {
	f.IsReviewed = p.IsReviewed
	f.IsMastered = p.IsMastered
	f.AttemptCount = p.AttemptCount
	f.LastReviewDate = copyTime(p.LastReviewDate)
	if withFavorite {
		f.IsFavorite = p.IsFavorite
	}
}

// ResetProgress returns the study fields to their defaults.
// Favorites are a user preference and survive a reset.
func (f *Flashcard) ResetProgress() {
	f.IsReviewed = false
	f.IsMastered = false
	f.AttemptCount = 0
	f.LastReviewDate = nil
}

// CardProgress is the persisted form of a flashcard's mutable state.
type CardProgress struct {
	IsReviewed     bool       `json:"isReviewed"`
	IsMastered     bool       `json:"isMastered"`
	IsFavorite     bool       `json:"isFavorite,omitempty"`
	AttemptCount   int        `json:"attemptCount"`
	LastReviewDate *time.Time `json:"lastReviewDate,omitempty"`
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
