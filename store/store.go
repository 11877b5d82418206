package store

import (
	"errors"
	"log"
	"math/rand"
	"strings"
	"sync"

	"github.com/korjavin/zahlbot/models"
)

// MaxEntries is the persisted capacity of the question library. Once the
// library is full, fresh oracle answers are still returned to callers but
// no longer retained.
const MaxEntries = 1000

// ErrEmptyLibrary is returned when an operation needs at least one stored
// question and there is none.
var ErrEmptyLibrary = errors.New("question library is empty")

// AppendOutcome reports what happened to an append attempt.
type AppendOutcome int

const (
	// Stored means the pair was added to the library.
	Stored AppendOutcome = iota
	// CapReached means the library is full and the pair was discarded.
	CapReached
	// Rejected means the question was empty after trimming.
	Rejected
)

// Persister durably records appended pairs. The sqlite layer implements it.
type Persister interface {
	AppendQuestion(question string, number int) error
}

// Library is the in-memory question/number cache. Lookups and appends are
// serialized; sampling reads a snapshot.
type Library struct {
	mu        sync.RWMutex
	entries   []models.QAEntry
	index     map[string]int // normalized question -> number of first entry
	persister Persister
}

// New builds a library from previously persisted entries. A nil persister
// keeps the library memory-only, which the tests use.
func New(persister Persister, entries []models.QAEntry) *Library {
	l := &Library{
		index:     make(map[string]int),
		persister: persister,
	}
	for _, entry := range entries {
		if len(l.entries) >= MaxEntries {
			log.Printf("Dropping persisted entries beyond the %d cap", MaxEntries)
			break
		}
		l.entries = append(l.entries, entry)
		key := NormalizeKey(entry.Question)
		if _, exists := l.index[key]; !exists {
			l.index[key] = entry.Number
		}
	}
	return l
}

// NormalizeKey produces the lookup key for a question: trimmed and
// case-folded. Two questions are the same iff their keys are equal.
func NormalizeKey(question string) string {
	return strings.ToLower(strings.TrimSpace(question))
}

// Lookup returns the number stored for a question. Ties between duplicate
// entries go to the first one stored.
func (l *Library) Lookup(question string) (int, bool) {
	key := NormalizeKey(question)

	l.mu.RLock()
	defer l.mu.RUnlock()

	number, ok := l.index[key]
	return number, ok
}

// Append adds a trimmed question/number pair, enforcing the capacity cap.
// When a persister is configured the pair is written through after the
// in-memory append; a write failure costs durability only and is logged.
func (l *Library) Append(question string, number int) AppendOutcome {
	question = strings.TrimSpace(question)
	if question == "" {
		return Rejected
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) >= MaxEntries {
		return CapReached
	}

	l.entries = append(l.entries, models.QAEntry{Question: question, Number: number})
	key := NormalizeKey(question)
	if _, exists := l.index[key]; !exists {
		l.index[key] = number
	}

	if l.persister != nil {
		if err := l.persister.AppendQuestion(question, number); err != nil {
			log.Printf("Error persisting question %q: %v", question, err)
		}
	}

	return Stored
}

// SampleRandom returns up to n distinct stored questions in random order.
func (l *Library) SampleRandom(n int) ([]string, error) {
	l.mu.RLock()
	questions := make([]string, len(l.entries))
	for i, entry := range l.entries {
		questions[i] = entry.Question
	}
	l.mu.RUnlock()

	if len(questions) == 0 {
		return nil, ErrEmptyLibrary
	}

	rand.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})

	if n < 0 {
		n = 0
	}
	if n < len(questions) {
		questions = questions[:n]
	}
	return questions, nil
}

// PickRandom returns one stored question, or false if the library is empty.
func (l *Library) PickRandom() (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.entries) == 0 {
		return "", false
	}
	return l.entries[rand.Intn(len(l.entries))].Question, true
}

// Len returns the number of stored entries.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
