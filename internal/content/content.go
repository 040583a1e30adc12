package content

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/go-playground/validator/v10"
	"go.yaml.in/yaml/v3"

	"github.com/conorfennell/cramdeck/internal/domain"
	"github.com/conorfennell/cramdeck/internal/knol"
	"github.com/conorfennell/cramdeck/internal/parser"
)

// ManifestFile is the deck manifest every content directory must contain.
const ManifestFile = "deck.yaml"

//go:embed all:deck
var embedded embed.FS

var (
	ErrDuplicateCardID  = errors.New("duplicate card id")
	ErrDuplicateChapter = errors.New("duplicate chapter number")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Manifest lists a deck's chapters and the files that hold their content.
type Manifest struct {
	Title    string         `yaml:"title" validate:"required"`
	Chapters []ChapterEntry `yaml:"chapters" validate:"required,min=1,dive"`
}

// ChapterEntry points at a chapter's card file and optional quiz bank file.
type ChapterEntry struct {
	Number int    `yaml:"number" validate:"gte=1"`
	Title  string `yaml:"title" validate:"required"`
	Cards  string `yaml:"cards" validate:"required"`
	Quiz   string `yaml:"quiz"`
}

type bankFile struct {
	Questions []bankQuestion `yaml:"questions" validate:"dive"`
}

type bankQuestion struct {
	Question    string   `yaml:"question" validate:"required"`
	Options     []string `yaml:"options" validate:"len=4,dive,required"`
	Answer      *int     `yaml:"answer" validate:"required,gte=0,lt=4"`
	Explanation string   `yaml:"explanation"`
}

// Deck is the static content the progress store and quiz engine are built from.
type Deck struct {
	Title    string
	Chapters []domain.Chapter
	// Banks holds a quiz bank for each chapter whose manifest entry names one,
	// keyed by chapter number.
	Banks map[int][]domain.QuizQuestion
}

// Default loads the deck compiled into the binary.
func Default() (*Deck, error) {
	sub, err := fs.Sub(embedded, "deck")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded deck: %w", err)
	}
	return LoadFS(sub)
}

// LoadDir loads a deck from a directory on disk.
func LoadDir(dir string) (*Deck, error) {
	return LoadFS(os.DirFS(dir))
}

// LoadFS loads and validates a deck rooted at fsys.
func LoadFS(fsys fs.FS) (*Deck, error) {
	var m Manifest
	if err := decodeYAML(fsys, ManifestFile, &m); err != nil {
		return nil, err
	}
	if err := validate.Struct(m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	deck := &Deck{Title: m.Title, Banks: make(map[int][]domain.QuizQuestion)}
	seenChapters := make(map[int]bool)
	seenIDs := make(map[string]string)

	for _, entry := range m.Chapters {
		if seenChapters[entry.Number] {
			return nil, fmt.Errorf("chapter %d: %w", entry.Number, ErrDuplicateChapter)
		}
		seenChapters[entry.Number] = true

		cards, err := loadCards(fsys, entry.Cards)
		if err != nil {
			return nil, fmt.Errorf("chapter %d: %w", entry.Number, err)
		}
		for _, c := range cards {
			if prev, ok := seenIDs[c.ID]; ok {
				return nil, fmt.Errorf("card %q in %s (already in %s): %w", c.ID, entry.Cards, prev, ErrDuplicateCardID)
			}
			seenIDs[c.ID] = entry.Cards
		}
		deck.Chapters = append(deck.Chapters, domain.Chapter{
			Number:     entry.Number,
			Title:      entry.Title,
			Flashcards: cards,
		})

		if entry.Quiz == "" {
			continue
		}
		bank, err := loadBank(fsys, entry.Quiz, entry.Number)
		if err != nil {
			return nil, fmt.Errorf("chapter %d: %w", entry.Number, err)
		}
		deck.Banks[entry.Number] = bank
	}

	return deck, nil
}

func loadCards(fsys fs.FS, name string) ([]domain.Flashcard, error) {
	f, err := fsys.Open(path.Clean(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open cards %s: %w", name, err)
	}
	defer f.Close()

	cards, err := parser.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cards %s: %w", name, err)
	}
	for i := range cards {
		if cards[i].ID == "" {
			cards[i].ID = knol.ID(cards[i].Question, cards[i].Answer)
		}
	}
	return cards, nil
}

func loadBank(fsys fs.FS, name string, chapterNumber int) ([]domain.QuizQuestion, error) {
	var b bankFile
	if err := decodeYAML(fsys, name, &b); err != nil {
		return nil, err
	}
	if err := validate.Struct(b); err != nil {
		return nil, fmt.Errorf("invalid quiz bank %s: %w", name, err)
	}

	bank := make([]domain.QuizQuestion, len(b.Questions))
	for i, q := range b.Questions {
		bank[i] = domain.QuizQuestion{
			ChapterNumber:      chapterNumber,
			Question:           q.Question,
			Options:            q.Options,
			CorrectAnswerIndex: *q.Answer,
			Explanation:        q.Explanation,
		}
	}
	return bank, nil
}

func decodeYAML(fsys fs.FS, name string, v any) error {
	data, err := fs.ReadFile(fsys, path.Clean(name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}
