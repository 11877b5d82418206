package resolver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/korjavin/zahlbot/models"
	"github.com/korjavin/zahlbot/store"
)

var (
	// ErrEmptyQuestion is returned when the question is blank after trimming.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrOracleUnavailable is returned when the oracle call fails or its
	// output cannot be used.
	ErrOracleUnavailable = errors.New("oracle is unavailable")
)

// Oracle is the external generative capability that answers questions
// with numbers. The ai package implements it against Deepseek.
type Oracle interface {
	GenerateNumber(ctx context.Context, question string) (int, error)
	GenerateQuestionNumberPairs(ctx context.Context, count int) ([]models.QAEntry, error)
}

// StateStore persists the current answer singleton.
type StateStore interface {
	SaveCurrentAnswer(answer models.CurrentAnswer) error
	LoadCurrentAnswer() (models.CurrentAnswer, bool, error)
}

// Publisher receives an update after every successful resolution.
type Publisher interface {
	Publish(update models.Update)
}

// Resolver runs the question-to-number pipeline: library lookup, oracle
// fallback, capped append, current answer update, broadcast.
type Resolver struct {
	library *store.Library
	oracle  Oracle
	state   StateStore
	pub     Publisher
	flight  singleflight.Group
	now     func() time.Time
}

// New creates a resolver
func New(library *store.Library, oracle Oracle, state StateStore, pub Publisher) *Resolver {
	return &Resolver{
		library: library,
		oracle:  oracle,
		state:   state,
		pub:     pub,
		now:     time.Now,
	}
}

// Resolve answers a question with a number in [1, 9999], preferring the
// library and falling back to the oracle on a miss.
func (r *Resolver) Resolve(ctx context.Context, rawQuestion string) (models.ResolutionResult, error) {
	answer, err := r.resolve(ctx, rawQuestion)
	if err != nil {
		return models.ResolutionResult{}, err
	}
	return models.ResolutionResult{Number: answer.Number, Source: answer.Source}, nil
}

// ResolveRandom resolves a randomly picked library question. Used by the
// maintenance path and by lazy current-answer seeding.
func (r *Resolver) ResolveRandom(ctx context.Context) (models.ResolutionResult, error) {
	question, ok := r.library.PickRandom()
	if !ok {
		return models.ResolutionResult{}, store.ErrEmptyLibrary
	}
	return r.Resolve(ctx, question)
}

// CurrentAnswer returns the latest resolved answer. When none has been
// stored yet, a random library question is resolved to seed it; the second
// return value is true for such auto-generated answers.
func (r *Resolver) CurrentAnswer(ctx context.Context) (models.CurrentAnswer, bool, error) {
	answer, ok, err := r.state.LoadCurrentAnswer()
	if err != nil {
		log.Printf("Error loading current answer, reseeding: %v", err)
		ok = false
	}
	if ok {
		return answer, false, nil
	}

	question, found := r.library.PickRandom()
	if !found {
		return models.CurrentAnswer{}, false, store.ErrEmptyLibrary
	}

	seeded, err := r.resolve(ctx, question)
	if err != nil {
		return models.CurrentAnswer{}, false, err
	}
	return seeded, true, nil
}

// SuggestedQuestions returns up to n random library questions.
func (r *Resolver) SuggestedQuestions(n int) ([]string, error) {
	return r.library.SampleRandom(n)
}

// GenerateBatch bulk-populates the library with n fresh pairs from the
// oracle. The oracle call is all-or-nothing; individual appends still
// honor the capacity cap.
func (r *Resolver) GenerateBatch(ctx context.Context, n int) error {
	pairs, err := r.oracle.GenerateQuestionNumberPairs(ctx, n)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	if len(pairs) < n {
		return fmt.Errorf("%w: oracle returned %d of %d pairs", ErrOracleUnavailable, len(pairs), n)
	}

	stored := 0
	for _, pair := range pairs {
		question := cleanQuestion(pair.Question)
		if question == "" {
			continue
		}
		if r.library.Append(question, NormalizeNumber(float64(pair.Number))) == store.Stored {
			stored++
		}
	}

	log.Printf("Batch generation stored %d of %d pairs (library size %d)", stored, len(pairs), r.library.Len())
	return nil
}

// resolve is the shared pipeline. It returns the CurrentAnswer it persisted
// and broadcast.
func (r *Resolver) resolve(ctx context.Context, rawQuestion string) (models.CurrentAnswer, error) {
	question := strings.TrimSpace(rawQuestion)
	if question == "" {
		return models.CurrentAnswer{}, ErrEmptyQuestion
	}

	number, hit := r.library.Lookup(question)
	source := models.SourceLibrary

	if !hit {
		// Concurrent misses on the same question share one oracle call.
		// The oracle runs outside the library lock; only the lookup above
		// and the append inside are serialized.
		v, err, _ := r.flight.Do(store.NormalizeKey(question), func() (interface{}, error) {
			raw, err := r.oracle.GenerateNumber(ctx, question)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
			}

			n := NormalizeNumber(float64(raw))
			if outcome := r.library.Append(question, n); outcome == store.CapReached {
				log.Printf("Library at capacity, answer for %q not persisted", question)
			}
			return n, nil
		})
		if err != nil {
			return models.CurrentAnswer{}, err
		}
		number = v.(int)
		source = models.SourceOracle
	}

	answer := models.CurrentAnswer{
		Question:  question,
		Number:    number,
		Source:    source,
		Timestamp: r.now(),
	}
	if err := r.state.SaveCurrentAnswer(answer); err != nil {
		log.Printf("Error persisting current answer: %v", err)
	}

	r.pub.Publish(models.Update{
		Type:      models.UpdateTypeNumber,
		Number:    answer.Number,
		Question:  answer.Question,
		Source:    answer.Source,
		Timestamp: answer.Timestamp,
	})

	return answer, nil
}

// cleanQuestion trims whitespace and trailing punctuation from an
// oracle-produced question.
func cleanQuestion(question string) string {
	question = strings.TrimSpace(question)
	question = strings.TrimRight(question, ".,;")
	return strings.TrimSpace(question)
}
