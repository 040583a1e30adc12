package domain

import "time"

// OptionCount is the number of options every quiz question carries.
const OptionCount = 4

// QuizQuestion is a multiple choice question drawn from a chapter's bank.
// SelectedAnswerIndex is session-local and nil until the learner answers.
type QuizQuestion struct {
	ChapterNumber       int      `json:"chapterNumber"`
	Question            string   `json:"question"`
	Options             []string `json:"options"`
	CorrectAnswerIndex  int      `json:"correctAnswerIndex"`
	Explanation         string   `json:"explanation,omitempty"`
	SelectedAnswerIndex *int     `json:"selectedAnswerIndex,omitempty"`
}

// IsCorrect reports whether the selected answer matches the correct one.
// An unanswered question is never correct.
func (q QuizQuestion) IsCorrect() bool {
	return q.SelectedAnswerIndex != nil && *q.SelectedAnswerIndex == q.CorrectAnswerIndex
}

// QuizSession is one attempt at a chapter quiz.
// Score is only meaningful once Completed is true.
type QuizSession struct {
	ID            string         `json:"id"`
	ChapterNumber int            `json:"chapterNumber"`
	Registered    bool           `json:"registered"`
	Questions     []QuizQuestion `json:"questions"`
	Score         int            `json:"score"`
	Completed     bool           `json:"completed"`
	StartedAt     time.Time      `json:"startedAt"`
	FinishedAt    *time.Time     `json:"finishedAt,omitempty"`
}

// Answered counts the questions with a selected answer.
func (s QuizSession) Answered() int {
	n := 0
	for _, q := range s.Questions {
		if q.SelectedAnswerIndex != nil {
			n++
		}
	}
	return n
}
