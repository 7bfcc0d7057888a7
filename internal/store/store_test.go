package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputexa/reputexa/internal/model"
)

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetReview", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		r := &model.Review{
			ReviewText:        "Great food, will come back!",
			Rating:            5,
			EstablishmentName: "Chez Paul",
			City:              "Lyon",
			Industry:          "restaurant",
		}
		r.Apply(model.ReplyResolution("Thank you...", "en"))
		require.NoError(t, s.CreateReview(ctx, r))
		assert.NotEmpty(t, r.ID)
		assert.False(t, r.CreatedAt.IsZero())

		got, err := s.GetReview(ctx, r.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Great food, will come back!", got.ReviewText)
		assert.Equal(t, 5, got.Rating)
		assert.Equal(t, "restaurant", got.Industry)
		assert.Equal(t, "en", got.DetectedLanguage)
		assert.Equal(t, model.ReviewStatusReplied, got.Status)
		require.NotNil(t, got.ResponseText)
		assert.Equal(t, "Thank you...", *got.ResponseText)
		assert.False(t, got.IsSecurityFlagged)
		assert.Nil(t, got.SecurityAdvice)
	})

	t.Run("CreateFlaggedReview", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		r := &model.Review{ReviewText: "Service terrible, jamais revenir", Rating: 1, EstablishmentName: "Chez Paul", City: "Lyon"}
		r.Apply(model.FlaggedResolution("negative", "fr"))
		require.NoError(t, s.CreateReview(ctx, r))

		got, err := s.GetReview(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReviewStatusFlagged, got.Status)
		assert.True(t, got.IsSecurityFlagged)
		assert.Nil(t, got.ResponseText)
		require.NotNil(t, got.SecurityAdvice)
		assert.Equal(t, "negative", *got.SecurityAdvice)
	})

	t.Run("GetReviewNotFound", func(t *testing.T) {
		s := newStore(t)

		got, err := s.GetReview(context.Background(), "nonexistent-id")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ResolveReviewOnce", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		r := &model.Review{ReviewText: "Nice", Rating: 4, EstablishmentName: "Chez Paul", City: "Lyon"}
		require.NoError(t, s.CreateReview(ctx, r))
		assert.Equal(t, model.ReviewStatusPending, r.Status)

		ok, err := s.ResolveReview(ctx, r.ID, model.ReplyResolution("Merci !", "fr"))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.ResolveReview(ctx, r.ID, model.FlaggedResolution("late", "fr"))
		require.NoError(t, err)
		assert.False(t, ok, "a resolved review must not be overwritten")

		got, err := s.GetReview(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReviewStatusReplied, got.Status)
		assert.Equal(t, "Merci !", *got.ResponseText)
		assert.False(t, got.IsSecurityFlagged)
	})

	t.Run("ResolveReviewEmptyReplyStaysPending", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		r := &model.Review{ReviewText: "Nice", Rating: 4, EstablishmentName: "Chez Paul", City: "Lyon"}
		require.NoError(t, s.CreateReview(ctx, r))

		ok, err := s.ResolveReview(ctx, r.ID, model.ReplyResolution("", "fr"))
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := s.GetReview(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReviewStatusPending, got.Status)
		assert.Equal(t, "fr", got.DetectedLanguage)
		assert.Nil(t, got.ResponseText)
	})

	t.Run("ResolveReviewUnknownID", func(t *testing.T) {
		s := newStore(t)

		ok, err := s.ResolveReview(context.Background(), "missing", model.ReplyResolution("x", "en"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ReviewAggregates", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		stats, err := s.ReviewStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, ReviewStats{}, stats)

		for _, rating := range []int{1, 2, 4, 5} {
			require.NoError(t, s.CreateReview(ctx, &model.Review{
				ReviewText: "r", Rating: rating, EstablishmentName: "A", City: "B",
			}))
		}

		n, err := s.CountReviewsBelow(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		stats, err = s.ReviewStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, stats.Total)
		assert.InDelta(t, 3.0, stats.AvgRating, 0.0001)
	})

	t.Run("UpsertProspectInsertThenUpdate", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		p := &model.Prospect{
			PlaceID:            "ChIJ-1",
			EstablishmentName:  "Chez Paul",
			Address:            "1 Rue X, Lyon",
			City:               "Lyon",
			Category:           "Restaurants",
			CountryCode:        "FR",
			Rating:             3.6,
			ReviewCount:        127,
			LastReviewText:     strPtr("Bon accueil"),
			LastReviewAuthor:   strPtr("Marie"),
			LastReviewRelative: strPtr("il y a 2 jours"),
			Pitch:              strPtr("Bonjour !"),
			Metadata:           map[string]any{"feedback_count": 5},
		}
		created, err := s.UpsertProspect(ctx, p)
		require.NoError(t, err)
		assert.True(t, created)

		first, err := s.GetProspect(ctx, "ChIJ-1")
		require.NoError(t, err)
		require.NotNil(t, first)
		assert.Equal(t, model.ProspectStatusToContact, first.Status)
		assert.InDelta(t, 3.6, first.Rating, 0.0001)
		assert.Equal(t, 127, first.ReviewCount)
		assert.Equal(t, "Marie", *first.LastReviewAuthor)
		assert.Equal(t, "Bonjour !", *first.Pitch)
		assert.EqualValues(t, 5, first.Metadata["feedback_count"])

		time.Sleep(5 * time.Millisecond)

		// A re-discovery only refreshes pitch, country and updated_at.
		again := *p
		again.EstablishmentName = "Renamed"
		again.Rating = 4.0
		again.CountryCode = "BE"
		again.Pitch = strPtr("Hello again")
		created, err = s.UpsertProspect(ctx, &again)
		require.NoError(t, err)
		assert.False(t, created)

		second, err := s.GetProspect(ctx, "ChIJ-1")
		require.NoError(t, err)
		assert.Equal(t, "Chez Paul", second.EstablishmentName)
		assert.InDelta(t, 3.6, second.Rating, 0.0001)
		assert.Equal(t, "BE", second.CountryCode)
		assert.Equal(t, "Hello again", *second.Pitch)
		assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
		assert.True(t, second.CreatedAt.Equal(first.CreatedAt))

		n, err := s.CountProspects(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("GetProspectNotFound", func(t *testing.T) {
		s := newStore(t)

		got, err := s.GetProspect(context.Background(), "unknown")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ListProspectsFilters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, p := range []model.Prospect{
			{PlaceID: "a", EstablishmentName: "A", City: "Lyon", Category: "Restaurants", CountryCode: "FR", Rating: 3.5},
			{PlaceID: "b", EstablishmentName: "B", City: "Paris", Category: "Restaurants", CountryCode: "FR", Rating: 3.9},
			{PlaceID: "c", EstablishmentName: "C", City: "Lyon", Category: "Bars", CountryCode: "FR", Rating: 4.1},
		} {
			_, err := s.UpsertProspect(ctx, &p)
			require.NoError(t, err)
			time.Sleep(2 * time.Millisecond)
		}

		all, err := s.ListProspects(ctx, ProspectFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "c", all[0].PlaceID, "newest first")
		assert.Equal(t, "a", all[2].PlaceID)

		lyon, err := s.ListProspects(ctx, ProspectFilter{City: "Lyon", Status: model.ProspectStatusToContact})
		require.NoError(t, err)
		require.Len(t, lyon, 2)

		limited, err := s.ListProspects(ctx, ProspectFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, "b", limited[0].PlaceID)

		contacted, err := s.CountProspects(ctx, model.ProspectStatusContacted)
		require.NoError(t, err)
		assert.Zero(t, contacted)
		toContact, err := s.CountProspects(ctx, model.ProspectStatusToContact)
		require.NoError(t, err)
		assert.Equal(t, 3, toContact)
	})
}
