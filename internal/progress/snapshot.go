package progress

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/conorfennell/cramdeck/internal/domain"
)

// ProgressKey is the storage key of the progress snapshot.
const ProgressKey = "ChapterProgress"

const snapshotVersion = 2

// Format selects how snapshots are written.
type Format string

const (
	// FormatKeyed stores progress by card ID, so reordering content keeps
	// progress attached to the right card.
	FormatKeyed Format = "keyed"
	// FormatPositional stores a chapter-by-card array aligned to content order.
	// Kept for compatibility with data written by earlier releases.
	FormatPositional Format = "positional"
)

// KV is the durable key-value store snapshots are written to.
type KV interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
}

// Snapshot is the persisted subset of the deck's state. Exactly one of Cards
// and Positional is set.
type Snapshot struct {
	Version    int                            `json:"version"`
	Cards      map[string]domain.CardProgress `json:"cards"`
	Positional [][]domain.CardProgress        `json:"-"`
}

// Capture projects the chapters into a snapshot of the given format. A keyed
// snapshot needs every card to carry a distinct ID; when that does not hold
// the positional shape is captured instead.
func Capture(chapters []domain.Chapter, format Format) Snapshot {
	if format == FormatPositional || !UniqueIDs(chapters) {
		rows := make([][]domain.CardProgress, len(chapters))
		for i, ch := range chapters {
			rows[i] = make([]domain.CardProgress, len(ch.Flashcards))
			for j, f := range ch.Flashcards {
				p := f.Progress()
				p.IsFavorite = false
				rows[i][j] = p
			}
		}
		return Snapshot{Positional: rows}
	}

	cards := make(map[string]domain.CardProgress)
	for _, ch := range chapters {
		for _, f := range ch.Flashcards {
			cards[f.ID] = f.Progress()
		}
	}
	return Snapshot{Version: snapshotVersion, Cards: cards}
}

// UniqueIDs reports whether every card has a non-empty ID that no other card
// shares.
func UniqueIDs(chapters []domain.Chapter) bool {
	seen := make(map[string]bool)
	for _, ch := range chapters {
		for _, f := range ch.Flashcards {
			if f.ID == "" || seen[f.ID] {
				return false
			}
			seen[f.ID] = true
		}
	}
	return true
}

// Apply copies the snapshot onto the live chapters.
//
// Keyed snapshots match cards by ID; unknown IDs are ignored and cards absent
// from the snapshot, or whose ID is empty or shared, keep their current state. Positional snapshots are applied
// index by index, clamped to the shorter of snapshot and live content.
func (s Snapshot) Apply(chapters []domain.Chapter) {
	if s.Cards != nil {
		counts := make(map[string]int)
		for _, ch := range chapters {
			for _, f := range ch.Flashcards {
				counts[f.ID]++
			}
		}
		for i := range chapters {
			for j := range chapters[i].Flashcards {
				card := &chapters[i].Flashcards[j]
				if card.ID == "" || counts[card.ID] > 1 {
					continue
				}
				if p, ok := s.Cards[card.ID]; ok {
					card.ApplyProgress(p, true)
				}
			}
		}
		return
	}

	for i := 0; i < min(len(s.Positional), len(chapters)); i++ {
		row := s.Positional[i]
		cards := chapters[i].Flashcards
		for j := 0; j < min(len(row), len(cards)); j++ {
			cards[j].ApplyProgress(row[j], false)
		}
	}
}

// Encode serializes the snapshot. Positional snapshots encode as a bare
// JSON array of arrays.
func Encode(s Snapshot) ([]byte, error) {
	if s.Cards == nil && s.Positional != nil {
		return json.Marshal(s.Positional)
	}
	if s.Version == 0 {
		s.Version = snapshotVersion
	}
	return json.Marshal(s)
}

// Decode parses either snapshot shape.
func Decode(data []byte) (Snapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Snapshot{}, errors.New("empty snapshot")
	}

	if trimmed[0] == '[' {
		var rows [][]domain.CardProgress
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return Snapshot{}, fmt.Errorf("failed to decode positional snapshot: %w", err)
		}
		if rows == nil {
			rows = [][]domain.CardProgress{}
		}
		return Snapshot{Positional: rows}, nil
	}

	var s Snapshot
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if s.Version != snapshotVersion {
		return Snapshot{}, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	if s.Cards == nil {
		s.Cards = map[string]domain.CardProgress{}
	}
	return s, nil
}

// Persister saves and restores snapshots under a fixed key.
type Persister struct {
	kv     KV
	key    string
	format Format
	logger *slog.Logger
	warned bool
}

// NewPersister returns a persister writing to kv in the given format.
// An empty format means FormatKeyed.
func NewPersister(kv KV, format Format, logger *slog.Logger) *Persister {
	if format == "" {
		format = FormatKeyed
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{kv: kv, key: ProgressKey, format: format, logger: logger}
}

// Save writes the chapters' progress.
func (p *Persister) Save(chapters []domain.Chapter) error {
	snap := Capture(chapters, p.format)
	if p.format == FormatKeyed && snap.Cards == nil && !p.warned {
		p.logger.Warn("Card IDs are missing or repeated, saving progress by position")
		p.warned = true
	}
	data, err := Encode(snap)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	if err := p.kv.Put(p.key, data); err != nil {
		return fmt.Errorf("failed to write progress: %w", err)
	}
	return nil
}

// Load reads the stored snapshot. A missing, unreadable or undecodable record
// reports false and the caller keeps its default state.
func (p *Persister) Load() (Snapshot, bool) {
	data, err := p.kv.Get(p.key)
	if err != nil {
		p.logger.Warn("Failed to read progress snapshot", "key", p.key, "error", err)
		return Snapshot{}, false
	}
	if data == nil {
		return Snapshot{}, false
	}
	s, err := Decode(data)
	if err != nil {
		p.logger.Warn("Discarding corrupt progress snapshot", "key", p.key, "error", err)
		return Snapshot{}, false
	}
	return s, true
}
