package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korjavin/zahlbot/models"
	"github.com/korjavin/zahlbot/store"
)

type stubOracle struct {
	mu     sync.Mutex
	number int
	pairs  []models.QAEntry
	err    error
	calls  int
}

func (o *stubOracle) GenerateNumber(ctx context.Context, question string) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	return o.number, o.err
}

func (o *stubOracle) GenerateQuestionNumberPairs(ctx context.Context, count int) ([]models.QAEntry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	return o.pairs, o.err
}

type memoryState struct {
	mu      sync.Mutex
	answer  models.CurrentAnswer
	present bool
	saveErr error
	loadErr error
	saves   int
}

func (s *memoryState) SaveCurrentAnswer(answer models.CurrentAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.answer = answer
	s.present = true
	return nil
}

func (s *memoryState) LoadCurrentAnswer() (models.CurrentAnswer, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return models.CurrentAnswer{}, false, s.loadErr
	}
	return s.answer, s.present, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	updates []models.Update
}

func (p *recordingPublisher) Publish(update models.Update) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, update)
}

func (p *recordingPublisher) all() []models.Update {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Update(nil), p.updates...)
}

func newTestResolver(oracle *stubOracle, entries []models.QAEntry) (*Resolver, *store.Library, *memoryState, *recordingPublisher) {
	library := store.New(nil, entries)
	state := &memoryState{}
	pub := &recordingPublisher{}
	r := New(library, oracle, state, pub)
	r.now = func() time.Time { return time.Unix(1700000000, 0) }
	return r, library, state, pub
}

func TestResolveLibraryHitSkipsOracle(t *testing.T) {
	oracle := &stubOracle{number: 999}
	r, _, state, pub := newTestResolver(oracle, []models.QAEntry{{Question: "What is 2+2", Number: 4}})

	result, err := r.Resolve(context.Background(), "  what is 2+2  ")
	require.NoError(t, err)

	assert.Equal(t, 4, result.Number)
	assert.Equal(t, models.SourceLibrary, result.Source)
	assert.Equal(t, 0, oracle.calls)

	require.Len(t, pub.all(), 1)
	update := pub.all()[0]
	assert.Equal(t, models.UpdateTypeNumber, update.Type)
	assert.Equal(t, 4, update.Number)
	assert.Equal(t, "what is 2+2", update.Question)

	assert.True(t, state.present)
	assert.Equal(t, 4, state.answer.Number)
}

func TestResolveMissCallsOracleAndAppends(t *testing.T) {
	oracle := &stubOracle{number: 12345}
	r, library, _, _ := newTestResolver(oracle, nil)

	result, err := r.Resolve(context.Background(), "new question")
	require.NoError(t, err)

	assert.Equal(t, 2347, result.Number)
	assert.Equal(t, models.SourceOracle, result.Source)
	assert.Equal(t, 1, oracle.calls)
	assert.Equal(t, 1, library.Len())

	number, ok := library.Lookup("new question")
	require.True(t, ok)
	assert.Equal(t, 2347, number)
}

func TestResolveEmptyQuestion(t *testing.T) {
	oracle := &stubOracle{}
	r, _, state, pub := newTestResolver(oracle, nil)

	_, err := r.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Equal(t, 0, oracle.calls)
	assert.Empty(t, pub.all())
	assert.Zero(t, state.saves)
}

func TestResolveOracleFailureLeavesNoMutation(t *testing.T) {
	oracle := &stubOracle{err: errors.New("timeout")}
	r, library, state, pub := newTestResolver(oracle, nil)

	_, err := r.Resolve(context.Background(), "new question")
	assert.ErrorIs(t, err, ErrOracleUnavailable)

	assert.Equal(t, 0, library.Len())
	assert.Zero(t, state.saves)
	assert.Empty(t, pub.all())
}

func TestResolveStatePersistFailureIsNotFatal(t *testing.T) {
	oracle := &stubOracle{}
	r, _, state, pub := newTestResolver(oracle, []models.QAEntry{{Question: "known", Number: 7}})
	state.saveErr = errors.New("disk full")

	result, err := r.Resolve(context.Background(), "known")
	require.NoError(t, err)
	assert.Equal(t, 7, result.Number)
	assert.Len(t, pub.all(), 1)
}

func TestResolveAtCapStillSucceeds(t *testing.T) {
	oracle := &stubOracle{number: 50}
	entries := make([]models.QAEntry, store.MaxEntries)
	for i := range entries {
		entries[i] = models.QAEntry{Question: fmt.Sprintf("question %d", i), Number: 1}
	}
	r, library, _, _ := newTestResolver(oracle, entries)

	result, err := r.Resolve(context.Background(), "brand new question")
	require.NoError(t, err)

	assert.Equal(t, 50, result.Number)
	assert.Equal(t, models.SourceOracle, result.Source)
	assert.Equal(t, store.MaxEntries, library.Len())
}

func TestCurrentAnswerReturnsStored(t *testing.T) {
	oracle := &stubOracle{}
	r, _, state, _ := newTestResolver(oracle, nil)
	state.answer = models.CurrentAnswer{Question: "stored", Number: 3, Source: models.SourceLibrary}
	state.present = true

	answer, auto, err := r.CurrentAnswer(context.Background())
	require.NoError(t, err)
	assert.False(t, auto)
	assert.Equal(t, "stored", answer.Question)
	assert.Equal(t, 0, oracle.calls)
}

func TestCurrentAnswerSeedsWhenAbsent(t *testing.T) {
	oracle := &stubOracle{}
	r, _, state, pub := newTestResolver(oracle, []models.QAEntry{{Question: "seed question", Number: 11}})

	answer, auto, err := r.CurrentAnswer(context.Background())
	require.NoError(t, err)

	assert.True(t, auto)
	assert.Equal(t, "seed question", answer.Question)
	assert.Equal(t, 11, answer.Number)
	assert.Equal(t, models.SourceLibrary, answer.Source)
	assert.True(t, state.present)
	assert.Len(t, pub.all(), 1)
}

func TestCurrentAnswerEmptyLibrary(t *testing.T) {
	oracle := &stubOracle{}
	r, _, _, _ := newTestResolver(oracle, nil)

	_, _, err := r.CurrentAnswer(context.Background())
	assert.ErrorIs(t, err, store.ErrEmptyLibrary)
}

func TestResolveRandomEmptyLibrary(t *testing.T) {
	oracle := &stubOracle{}
	r, _, _, _ := newTestResolver(oracle, nil)

	_, err := r.ResolveRandom(context.Background())
	assert.ErrorIs(t, err, store.ErrEmptyLibrary)
}

func TestGenerateBatchStoresCleanedPairs(t *testing.T) {
	oracle := &stubOracle{pairs: []models.QAEntry{
		{Question: "  How many planets are there?  ", Number: 8},
		{Question: "How many dwarf planets;", Number: -5},
		{Question: "   ", Number: 3},
	}}
	r, library, _, _ := newTestResolver(oracle, nil)

	err := r.GenerateBatch(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, 2, library.Len())

	number, ok := library.Lookup("How many planets are there?")
	require.True(t, ok)
	assert.Equal(t, 8, number)

	number, ok = library.Lookup("How many dwarf planets")
	require.True(t, ok)
	assert.Equal(t, 5, number)
}

func TestGenerateBatchShortResponseFails(t *testing.T) {
	oracle := &stubOracle{pairs: []models.QAEntry{{Question: "only one", Number: 1}}}
	r, library, _, _ := newTestResolver(oracle, nil)

	err := r.GenerateBatch(context.Background(), 5)
	assert.ErrorIs(t, err, ErrOracleUnavailable)
	assert.Equal(t, 0, library.Len())
}

func TestGenerateBatchOracleFailure(t *testing.T) {
	oracle := &stubOracle{err: errors.New("down")}
	r, library, _, _ := newTestResolver(oracle, nil)

	err := r.GenerateBatch(context.Background(), 5)
	assert.ErrorIs(t, err, ErrOracleUnavailable)
	assert.Equal(t, 0, library.Len())
}
