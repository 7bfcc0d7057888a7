package review

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputexa/reputexa/internal/classify"
	"github.com/reputexa/reputexa/internal/model"
	"github.com/reputexa/reputexa/internal/resilience"
	"github.com/reputexa/reputexa/internal/store"
)

type fakeClassifier struct {
	calls     atomic.Int32
	decisions []classify.Decision
	errs      []error
	gate      chan struct{}
}

func (f *fakeClassifier) Classify(_ context.Context, _ classify.ReviewInput) (classify.Decision, error) {
	n := int(f.calls.Add(1)) - 1
	if f.gate != nil {
		<-f.gate
	}
	if n < len(f.errs) && f.errs[n] != nil {
		return nil, f.errs[n]
	}
	if n < len(f.decisions) {
		return f.decisions[n], nil
	}
	return f.decisions[len(f.decisions)-1], nil
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "reviews.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func createPending(t *testing.T, st *store.SQLiteStore) *model.Review {
	t.Helper()
	r := &model.Review{ReviewText: "Correct, sans plus", Rating: 3, EstablishmentName: "Chez Paul", City: "Lyon"}
	require.NoError(t, st.CreateReview(context.Background(), r))
	return r
}

func TestIngest_FlaggedReview(t *testing.T) {
	st := newTestStore(t)
	fc := &fakeClassifier{decisions: []classify.Decision{classify.Flag{Reason: "negative", DetectedLanguage: "fr"}}}
	p := NewPipeline(st, fc, fastRetry())

	res, err := p.Ingest(context.Background(), IngestRequest{
		ReviewText: "Service terrible, jamais revenir", Rating: 1, EstablishmentName: "Chez Paul", City: "Lyon",
	})
	require.NoError(t, err)
	assert.Equal(t, classify.ActionFlag, res.Action)
	assert.Equal(t, "negative", res.Reason)
	assert.True(t, res.IsSecurityFlagged)
	assert.Nil(t, res.ResponseText)

	got, err := st.GetReview(context.Background(), res.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.ReviewStatusFlagged, got.Status)
	assert.Nil(t, got.ResponseText)
	assert.True(t, got.IsSecurityFlagged)
	assert.Equal(t, "fr", got.DetectedLanguage)
}

func TestIngest_RepliedReview(t *testing.T) {
	st := newTestStore(t)
	fc := &fakeClassifier{decisions: []classify.Decision{classify.Reply{Content: "Thank you...", DetectedLanguage: "en"}}}
	p := NewPipeline(st, fc, fastRetry())

	res, err := p.Ingest(context.Background(), IngestRequest{
		ReviewText: "Great food, will come back!", Rating: 5, EstablishmentName: "Chez Paul", City: "Lyon",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ReviewStatusReplied, res.Status)

	got, err := st.GetReview(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewStatusReplied, got.Status)
	require.NotNil(t, got.ResponseText)
	assert.Equal(t, "Thank you...", *got.ResponseText)
	assert.False(t, got.IsSecurityFlagged)
}

func TestIngest_EmptyReplyStaysPending(t *testing.T) {
	st := newTestStore(t)
	fc := &fakeClassifier{decisions: []classify.Decision{classify.Reply{DetectedLanguage: "it"}}}
	p := NewPipeline(st, fc, fastRetry())

	res, err := p.Ingest(context.Background(), IngestRequest{
		ReviewText: "Buono", Rating: 4, EstablishmentName: "Da Mario", City: "Roma",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ReviewStatusPending, res.Status)
	assert.Nil(t, res.ResponseText)
}

func TestIngest_ValidationFailsWithoutOracleCall(t *testing.T) {
	st := newTestStore(t)
	fc := &fakeClassifier{decisions: []classify.Decision{classify.Reply{Content: "x"}}}
	p := NewPipeline(st, fc, fastRetry())

	_, err := p.Ingest(context.Background(), IngestRequest{ReviewText: "   ", Rating: 7, City: "Lyon"})

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"reviewText", "rating", "establishmentName"}, ve.Fields)
	assert.Zero(t, fc.calls.Load())

	stats, err := st.ReviewStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestIngest_RetriesTransientOracleError(t *testing.T) {
	st := newTestStore(t)
	fc := &fakeClassifier{
		errs:      []error{&classify.ClassificationError{Op: "test", StatusCode: 429, Err: errors.New("slow down")}},
		decisions: []classify.Decision{nil, classify.Reply{Content: "Merci", DetectedLanguage: "fr"}},
	}
	p := NewPipeline(st, fc, fastRetry())

	res, err := p.Ingest(context.Background(), IngestRequest{
		ReviewText: "Bien", Rating: 4, EstablishmentName: "Chez Paul", City: "Lyon",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ReviewStatusReplied, res.Status)
	assert.Equal(t, int32(2), fc.calls.Load())
}

func TestIngest_OracleFailureWritesNothing(t *testing.T) {
	st := newTestStore(t)
	fc := &fakeClassifier{errs: []error{&classify.ClassificationError{Op: "test", StatusCode: 401, Err: errors.New("bad key")}}}
	p := NewPipeline(st, fc, fastRetry())

	_, err := p.Ingest(context.Background(), IngestRequest{
		ReviewText: "Bien", Rating: 4, EstablishmentName: "Chez Paul", City: "Lyon",
	})
	var ce *classify.ClassificationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, int32(1), fc.calls.Load(), "auth failures are not retried")

	stats, err := st.ReviewStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestClassifyExisting_NotFound(t *testing.T) {
	st := newTestStore(t)
	fc := &fakeClassifier{decisions: []classify.Decision{classify.Reply{Content: "x"}}}
	p := NewPipeline(st, fc, fastRetry())

	_, err := p.ClassifyExisting(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, fc.calls.Load())
}

func TestClassifyExisting_ResolvesPending(t *testing.T) {
	st := newTestStore(t)
	r := createPending(t, st)
	fc := &fakeClassifier{decisions: []classify.Decision{classify.Reply{Content: "Merci pour votre avis", DetectedLanguage: "fr"}}}
	p := NewPipeline(st, fc, fastRetry())

	res, err := p.ClassifyExisting(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, res.ID)
	assert.Equal(t, classify.ActionReply, res.Action)

	got, err := st.GetReview(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewStatusReplied, got.Status)
	assert.Equal(t, "Merci pour votre avis", *got.ResponseText)
}

func TestClassifyExisting_AlreadyResolvedMakesNoOracleCall(t *testing.T) {
	tests := []struct {
		name string
		res  model.Resolution
	}{
		{name: "replied", res: model.ReplyResolution("Déjà répondu", "fr")},
		{name: "flagged", res: model.FlaggedResolution("negative", "fr")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStore(t)
			r := createPending(t, st)
			ok, err := st.ResolveReview(context.Background(), r.ID, tt.res)
			require.NoError(t, err)
			require.True(t, ok)
			before, err := st.GetReview(context.Background(), r.ID)
			require.NoError(t, err)

			fc := &fakeClassifier{decisions: []classify.Decision{classify.Reply{Content: "x", DetectedLanguage: "en"}}}
			p := NewPipeline(st, fc, fastRetry())

			_, err = p.ClassifyExisting(context.Background(), r.ID)
			assert.ErrorIs(t, err, ErrAlreadyResolved)
			assert.Zero(t, fc.calls.Load())

			after, err := st.GetReview(context.Background(), r.ID)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestClassifyExisting_MalformedLeavesStatusUnchanged(t *testing.T) {
	st := newTestStore(t)
	r := createPending(t, st)
	fc := &fakeClassifier{errs: []error{&classify.MalformedResponseError{Raw: "oops", Err: errors.New("decode json")}}}
	p := NewPipeline(st, fc, fastRetry())

	_, err := p.ClassifyExisting(context.Background(), r.ID)
	var me *classify.MalformedResponseError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, int32(1), fc.calls.Load())

	got, err := st.GetReview(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewStatusPending, got.Status)
	assert.Nil(t, got.ResponseText)
	assert.Empty(t, got.DetectedLanguage)
}

func TestClassifyExisting_ConcurrentCallsResolveOnce(t *testing.T) {
	st := newTestStore(t)
	r := createPending(t, st)
	gate := make(chan struct{})
	fc := &fakeClassifier{
		decisions: []classify.Decision{classify.Reply{Content: "Merci", DetectedLanguage: "fr"}},
		gate:      gate,
	}
	p := NewPipeline(st, fc, fastRetry())

	const callers = 4
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.ClassifyExisting(context.Background(), r.ID)
		}(i)
	}
	// Every caller reads PENDING before any of them may write.
	require.Eventually(t, func() bool { return fc.calls.Load() == callers }, 2*time.Second, time.Millisecond)
	close(gate)
	wg.Wait()

	wins, lost := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrAlreadyResolved):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, lost)
}
