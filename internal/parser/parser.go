package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/conorfennell/cramdeck/internal/domain"
)

const (
	idPrefix       = "ID:"
	questionPrefix = "Q:"
	answerPrefix   = "A:"
)

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
)

// Parse reads Q:/A: blocks from r. A block ends at a "---" separator or at the
// next Q: line. An optional ID: line before the Q: line, or between the Q: and
// A: lines, sets the card's stable identifier; cards without one get an empty
// ID.
func Parse(r io.Reader) ([]domain.Flashcard, error) {
	scanner := bufio.NewScanner(r)
	var cards []domain.Flashcard
	var current domain.Flashcard
	var block []string
	pendingID := ""
	currentState := seeking

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.TrimRight(strings.Join(block, "\n"), "\n")
		switch currentState {
		case readingQuestion:
			current.Question = content
		case readingAnswer:
			current.Answer = content
		}
		block = nil
	}

	finishCard := func() {
		flushBlock()
		if current.Question != "" {
			cards = append(cards, current)
		}
		current = domain.Flashcard{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "---":
			finishCard()
		case strings.HasPrefix(line, idPrefix):
			id := strings.TrimSpace(line[len(idPrefix):])
			switch currentState {
			case seeking:
				pendingID = id
			case readingQuestion:
				current.ID = id
			case readingAnswer:
				// Once the answer has started, an ID line belongs to the next card.
				finishCard()
				pendingID = id
			}
		case strings.HasPrefix(line, questionPrefix):
			if currentState != seeking {
				finishCard()
			}
			current.ID = pendingID
			pendingID = ""
			currentState = readingQuestion
			block = append(block, trimPrefix(line, questionPrefix))
		case strings.HasPrefix(line, answerPrefix):
			flushBlock()
			currentState = readingAnswer
			block = append(block, trimPrefix(line, answerPrefix))
		case currentState != seeking:
			block = append(block, line)
		}
	}

	finishCard()

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, nil
}

func trimPrefix(line, prefix string) string {
	return strings.TrimPrefix(line[len(prefix):], " ")
}
