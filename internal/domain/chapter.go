package domain

// Chapter is an ordered group of flashcards. Number is unique across the deck
// and is the key used to find the chapter's quiz bank.
type Chapter struct {
	Number     int
	Title      string
	Flashcards []Flashcard
}

// ProgressPercentage is the share of mastered cards, 0 for an empty chapter.
func (c Chapter) ProgressPercentage() float64 {
	if len(c.Flashcards) == 0 {
		return 0
	}
	return 100 * float64(c.MasteredCount()) / float64(len(c.Flashcards))
}

// MasteredCount counts the chapter's mastered cards.
func (c Chapter) MasteredCount() int {
	n := 0
	for _, f := range c.Flashcards {
		if f.IsMastered {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the chapter.
func (c Chapter) Clone() Chapter {
	out := c
	out.Flashcards = make([]Flashcard, len(c.Flashcards))
	for i, f := range c.Flashcards {
		out.Flashcards[i] = f.Clone()
	}
	return out
}

// CardRef locates a flashcard within the deck by chapter and card index.
type CardRef struct {
	ChapterIndex int
	CardIndex    int
	Flashcard    Flashcard
}
