package quiz

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/cramdeck/internal/domain"
)

// DefaultQuestionsPerQuiz caps how many questions a session draws.
const DefaultQuestionsPerQuiz = 50

var (
	// ErrSessionCompleted is returned when a finished session is changed.
	ErrSessionCompleted = errors.New("quiz session already completed")
	// ErrQuestionIndex is returned for a question index outside the session.
	ErrQuestionIndex = errors.New("question index out of range")
	// ErrAnswerIndex is returned for an answer index outside the options.
	ErrAnswerIndex = errors.New("answer index out of range")
)

// Engine holds the question banks and assembles quiz sessions from them.
type Engine struct {
	banks map[int][]domain.QuizQuestion
	size  int
	rng   *rand.Rand
	now   func() time.Time
	newID func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithQuestionsPerQuiz sets the session size cap. Values below 1 are ignored.
func WithQuestionsPerQuiz(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.size = n
		}
	}
}

// WithRand sets the random source used for shuffling.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithClock overrides the time source for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an engine with no banks registered.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		banks: make(map[int][]domain.QuizQuestion),
		size:  DefaultQuestionsPerQuiz,
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register sets the question bank for a chapter, replacing any earlier one.
// An empty slice registers an empty bank, which is distinct from no bank.
func (e *Engine) Register(chapterNumber int, questions []domain.QuizQuestion) {
	bank := make([]domain.QuizQuestion, len(questions))
	for i, q := range questions {
		q.ChapterNumber = chapterNumber
		q.Options = slices.Clone(q.Options)
		q.SelectedAnswerIndex = nil
		bank[i] = q
	}
	e.banks[chapterNumber] = bank
}

// HasBank reports whether a bank is registered for the chapter.
func (e *Engine) HasBank(chapterNumber int) bool {
	_, ok := e.banks[chapterNumber]
	return ok
}

// BankSize returns the number of questions in the chapter's bank.
func (e *Engine) BankSize(chapterNumber int) int {
	return len(e.banks[chapterNumber])
}

// QuestionsPerQuiz returns the session size cap.
func (e *Engine) QuestionsPerQuiz() int {
	return e.size
}

// Generate starts a new session for the chapter. The session holds
// min(QuestionsPerQuiz, bank size) questions drawn uniformly at random.
// An unregistered or empty bank yields a session with no questions;
// Registered tells the two apart.
func (e *Engine) Generate(chapterNumber int) *domain.QuizSession {
	session := &domain.QuizSession{
		ID:            e.newID(),
		ChapterNumber: chapterNumber,
		Questions:     []domain.QuizQuestion{},
		StartedAt:     e.now(),
	}

	bank, ok := e.banks[chapterNumber]
	session.Registered = ok
	if len(bank) == 0 {
		return session
	}

	drawn := make([]domain.QuizQuestion, len(bank))
	copy(drawn, bank)
	e.rng.Shuffle(len(drawn), func(i, j int) { drawn[i], drawn[j] = drawn[j], drawn[i] })

	drawn = drawn[:min(e.size, len(drawn))]
	for i := range drawn {
		drawn[i].Options = slices.Clone(drawn[i].Options)
	}
	session.Questions = drawn
	return session
}

// SelectAnswer records the learner's choice. Answers may be changed freely
// until the session is finished; the score is not touched.
func (e *Engine) SelectAnswer(session *domain.QuizSession, questionIdx, answerIdx int) error {
	if session.Completed {
		return ErrSessionCompleted
	}
	if questionIdx < 0 || questionIdx >= len(session.Questions) {
		return fmt.Errorf("question %d of %d: %w", questionIdx, len(session.Questions), ErrQuestionIndex)
	}
	q := &session.Questions[questionIdx]
	if answerIdx < 0 || answerIdx >= len(q.Options) {
		return fmt.Errorf("answer %d of %d: %w", answerIdx, len(q.Options), ErrAnswerIndex)
	}
	q.SelectedAnswerIndex = &answerIdx
	return nil
}

// Finish scores the session and marks it completed. Completion is terminal.
func (e *Engine) Finish(session *domain.QuizSession) error {
	if session.Completed {
		return ErrSessionCompleted
	}
	session.Score = Score(session)
	session.Completed = true
	finished := e.now()
	session.FinishedAt = &finished
	return nil
}

// Score counts correctly answered questions.
func Score(session *domain.QuizSession) int {
	n := 0
	for _, q := range session.Questions {
		if q.IsCorrect() {
			n++
		}
	}
	return n
}
