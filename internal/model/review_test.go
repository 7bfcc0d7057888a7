package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewStatus_Terminal(t *testing.T) {
	assert.False(t, ReviewStatusPending.Terminal())
	assert.True(t, ReviewStatusReplied.Terminal())
	assert.True(t, ReviewStatusFlagged.Terminal())
}

func TestFlaggedResolution(t *testing.T) {
	res := FlaggedResolution("negative", "fr")

	assert.Equal(t, ReviewStatusFlagged, res.Status)
	assert.True(t, res.IsSecurityFlagged)
	assert.Nil(t, res.ResponseText)
	require.NotNil(t, res.SecurityAdvice)
	assert.Equal(t, "negative", *res.SecurityAdvice)
	assert.Equal(t, "fr", res.DetectedLanguage)
}

func TestFlaggedResolution_NoReason(t *testing.T) {
	res := FlaggedResolution("", "en")
	assert.Nil(t, res.SecurityAdvice)
	assert.True(t, res.IsSecurityFlagged)
}

func TestReplyResolution(t *testing.T) {
	res := ReplyResolution("Thank you!", "en")

	assert.Equal(t, ReviewStatusReplied, res.Status)
	assert.False(t, res.IsSecurityFlagged)
	require.NotNil(t, res.ResponseText)
	assert.Equal(t, "Thank you!", *res.ResponseText)
}

func TestReplyResolution_EmptyStaysPending(t *testing.T) {
	res := ReplyResolution("", "en")

	assert.Equal(t, ReviewStatusPending, res.Status)
	assert.Nil(t, res.ResponseText)
	assert.False(t, res.IsSecurityFlagged)
}

func TestReview_ApplyAndResolved(t *testing.T) {
	r := &Review{Status: ReviewStatusPending}
	assert.False(t, r.Resolved())

	r.Apply(ReplyResolution("Merci", "fr"))
	assert.True(t, r.Resolved())
	assert.Equal(t, "fr", r.DetectedLanguage)

	flagged := &Review{Status: ReviewStatusFlagged, IsSecurityFlagged: true}
	assert.True(t, flagged.Resolved())
}
