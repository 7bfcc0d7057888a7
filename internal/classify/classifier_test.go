package classify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputexa/reputexa/internal/profile"
)

type fakeCompleter struct {
	mu       sync.Mutex
	calls    []Completion
	response string
	err      error
	block    bool
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) Complete(ctx context.Context, c Completion) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", &ClassificationError{Op: "fake", Err: ctx.Err()}
	}
	return f.response, f.err
}

func (f *fakeCompleter) last() Completion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func TestClassifier_LabelsCompletionOp(t *testing.T) {
	fc := &fakeCompleter{response: `{"action":"FLAG","reason":"negative","detectedLanguage":"fr"}`}
	c := New(fc, Options{})

	_, err := c.Classify(context.Background(), ReviewInput{Text: "Nul", Rating: 1, EstablishmentName: "A", City: "Lyon"})
	require.NoError(t, err)
	assert.Equal(t, "classify", fc.last().Op)

	fc.response = "Bonjour"
	_, err = c.GeneratePitch(context.Background(), PitchInput{Name: "A", CountryCode: "FR", TargetLanguage: "French", Rating: 3.5})
	require.NoError(t, err)
	assert.Equal(t, "pitch", fc.last().Op)
}

func TestClassify_Flag(t *testing.T) {
	fc := &fakeCompleter{response: `{"action":"FLAG","reason":"negative","detectedLanguage":"fr"}`}
	c := New(fc, Options{})

	d, err := c.Classify(context.Background(), ReviewInput{
		Text:              "Service terrible, jamais revenir",
		Rating:            1,
		EstablishmentName: "Chez Paul",
		City:              "Lyon",
	})
	require.NoError(t, err)
	assert.Equal(t, Flag{Reason: "negative", DetectedLanguage: "fr"}, d)

	call := fc.last()
	assert.True(t, call.JSON)
	assert.Equal(t, int64(1024), call.MaxTokens)
	assert.Contains(t, call.System, "below 3 stars")
	assert.Contains(t, call.User, `"Service terrible, jamais revenir"`)
	assert.Contains(t, call.User, "Rating: 1/5")
	assert.Contains(t, call.User, "Business: Chez Paul")
	assert.Contains(t, call.User, "City: Lyon")
	assert.NotContains(t, call.User, "Activity:")
}

func TestClassify_ReplyWithIndustry(t *testing.T) {
	fc := &fakeCompleter{response: `{"action":"REPLY","content":"Thank you...","detectedLanguage":"en"}`}
	c := New(fc, Options{MaxTokens: 256})

	d, err := c.Classify(context.Background(), ReviewInput{
		Text: "Great food, will come back!", Rating: 5,
		EstablishmentName: "Chez Paul", City: "Lyon", Industry: "restaurant",
	})
	require.NoError(t, err)
	reply, ok := d.(Reply)
	require.True(t, ok)
	assert.Equal(t, "Thank you...", reply.Content)
	assert.Contains(t, fc.last().User, "Activity: restaurant")
	assert.Equal(t, int64(256), fc.last().MaxTokens)
}

func TestClassify_Malformed(t *testing.T) {
	fc := &fakeCompleter{response: "I cannot help with that."}
	c := New(fc, Options{})

	_, err := c.Classify(context.Background(), ReviewInput{Text: "ok", Rating: 4, EstablishmentName: "X", City: "Y"})
	var me *MalformedResponseError
	require.True(t, errors.As(err, &me))
}

func TestClassify_OracleErrorPassesThrough(t *testing.T) {
	fc := &fakeCompleter{err: &ClassificationError{Op: "fake", StatusCode: 401, Err: errors.New("bad key")}}
	c := New(fc, Options{})

	_, err := c.Classify(context.Background(), ReviewInput{Text: "ok", Rating: 4, EstablishmentName: "X", City: "Y"})
	var ce *ClassificationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 401, ce.StatusCode)
	assert.False(t, ce.Retryable())
}

func TestClassify_TimeoutBoundsCall(t *testing.T) {
	fc := &fakeCompleter{block: true}
	c := New(fc, Options{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := c.Classify(context.Background(), ReviewInput{Text: "ok", Rating: 4, EstablishmentName: "X", City: "Y"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGeneratePitch_WithFeedback(t *testing.T) {
	fc := &fakeCompleter{response: "  Konnichiwa! ...  "}
	c := New(fc, Options{})

	long := strings.Repeat("é", 150)
	pitch, err := c.GeneratePitch(context.Background(), PitchInput{
		Name:           "Ramen Ichi",
		CountryCode:    "jp",
		TargetLanguage: profile.LanguageFor("JP"),
		Rating:         3.6,
		LatestFeedback: &Feedback{Text: long, AuthorName: "Kenji", RelativeTime: "2 days ago"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Konnichiwa! ...", pitch)

	call := fc.last()
	assert.False(t, call.JSON)
	assert.Contains(t, call.System, "Write the message in Japanese.")
	assert.Contains(t, call.System, profile.ToneGuide("formal/respect"))
	assert.Contains(t, call.System, "At most 3 sentences")
	assert.Contains(t, call.System, "(3.6/5)")
	assert.Contains(t, call.User, `Latest review by "Kenji" 2 days ago`)
	assert.Contains(t, call.User, `"`+strings.Repeat("é", 120)+`"`)
	assert.NotContains(t, call.User, strings.Repeat("é", 121))
	assert.Contains(t, call.User, "greeting idiomatic")
}

func TestGeneratePitch_FeedbackDefaults(t *testing.T) {
	fc := &fakeCompleter{response: "Bonjour !"}
	c := New(fc, Options{})

	_, err := c.GeneratePitch(context.Background(), PitchInput{
		Name: "Bouchon", CountryCode: "FR", TargetLanguage: "French", Rating: 4,
		LatestFeedback: &Feedback{Text: "Bien"},
	})
	require.NoError(t, err)
	assert.Contains(t, fc.last().User, `Latest review by "a customer" recently: "Bien"`)
	assert.Contains(t, fc.last().User, "Current rating: 4/5")
}

func TestGeneratePitch_NoFeedbackUnknownCountry(t *testing.T) {
	fc := &fakeCompleter{response: "Hello!"}
	c := New(fc, Options{})

	_, err := c.GeneratePitch(context.Background(), PitchInput{
		Name: "Kafe", CountryCode: "SE", TargetLanguage: profile.LanguageFor("SE"), Rating: 3.2,
	})
	require.NoError(t, err)
	call := fc.last()
	assert.Contains(t, call.User, "No recent review")
	assert.Contains(t, call.System, "Write the message in French.")
	// SE falls back to the default profile whose tone has a dedicated guide.
	assert.Contains(t, call.System, profile.ToneGuide(profile.Default.Tone))
}

func TestGeneratePitch_Empty(t *testing.T) {
	fc := &fakeCompleter{response: "   \n"}
	c := New(fc, Options{})

	_, err := c.GeneratePitch(context.Background(), PitchInput{Name: "X", CountryCode: "FR", Rating: 3.5})
	var me *MalformedResponseError
	require.True(t, errors.As(err, &me))
	assert.Contains(t, err.Error(), "empty pitch")
}

func TestFormatRating(t *testing.T) {
	assert.Equal(t, "3.6", formatRating(3.6))
	assert.Equal(t, "4", formatRating(4.0))
	assert.Equal(t, "0", formatRating(0))
	assert.Equal(t, "4.1", formatRating(4.1))
}
