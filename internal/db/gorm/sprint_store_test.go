package gorm

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/quickpen-app/quickpen/pkg/models"
)

type SprintStoreSuite struct {
	suite.Suite
	store   *Store
	sprints *SprintStore
	ctx     context.Context
}

func (s *SprintStoreSuite) SetupTest() {
	s.store = testStore(s.T())
	s.sprints = NewSprintStore(s.store)
	s.ctx = context.Background()
}

func TestSprintStoreSuite(t *testing.T) {
	suite.Run(t, new(SprintStoreSuite))
}

func (s *SprintStoreSuite) newSprint(userID string, completed time.Time) *models.Sprint {
	return &models.Sprint{
		UserID:      userID,
		Content:     "some sprint content",
		WordCount:   4,
		Duration:    300,
		CompletedAt: completed,
	}
}

func (s *SprintStoreSuite) TestSaveAndGet() {
	sp := s.newSprint("user-1", time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	sp.Tags = models.JSONStringArray{"fiction"}

	id, err := s.sprints.SaveSprint(s.ctx, sp)
	s.Require().NoError(err)
	s.NotEmpty(id)

	got, err := s.sprints.GetSprint(s.ctx, id)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("user-1", got.UserID)
	s.Equal("some sprint content", got.Content)
	s.Equal(4, got.WordCount)
	s.Equal(300, got.Duration)
	s.False(got.EndedEarly)
	s.Equal(models.JSONStringArray{"fiction"}, got.Tags)
	s.True(got.CompletedAt.Equal(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)))
}

func (s *SprintStoreSuite) TestSaveEarlyEnded() {
	sp := s.newSprint("user-1", time.Now())
	sp.EndedEarly = true
	sp.ActualDuration = sql.NullInt64{Int64: 120, Valid: true}

	id, err := s.sprints.SaveSprint(s.ctx, sp)
	s.Require().NoError(err)

	got, err := s.sprints.GetSprint(s.ctx, id)
	s.Require().NoError(err)
	s.True(got.EndedEarly)
	s.Require().True(got.ActualDuration.Valid)
	s.Equal(int64(120), got.ActualDuration.Int64)
}

func (s *SprintStoreSuite) TestSaveRejectsInvariantViolation() {
	sp := s.newSprint("user-1", time.Now())
	sp.EndedEarly = true // no actual duration

	_, err := s.sprints.SaveSprint(s.ctx, sp)
	s.ErrorIs(err, models.ErrInvariant)
}

func (s *SprintStoreSuite) TestGetMissingSprint() {
	got, err := s.sprints.GetSprint(s.ctx, "no-such-id")
	s.NoError(err)
	s.Nil(got)
}

func (s *SprintStoreSuite) TestGetUserSprintsNewestFirst() {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := s.sprints.SaveSprint(s.ctx, s.newSprint("user-1", base.AddDate(0, 0, i)))
		s.Require().NoError(err)
	}
	_, err := s.sprints.SaveSprint(s.ctx, s.newSprint("other-user", base))
	s.Require().NoError(err)

	got, err := s.sprints.GetUserSprints(s.ctx, "user-1", 0)
	s.Require().NoError(err)
	s.Require().Len(got, 3)
	s.True(got[0].CompletedAt.After(got[1].CompletedAt))
	s.True(got[1].CompletedAt.After(got[2].CompletedAt))

	limited, err := s.sprints.GetUserSprints(s.ctx, "user-1", 2)
	s.Require().NoError(err)
	s.Len(limited, 2)
}

func (s *SprintStoreSuite) TestGetSprintsByDateRange() {
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := s.sprints.SaveSprint(s.ctx, s.newSprint("user-1", base.AddDate(0, 0, i)))
		s.Require().NoError(err)
	}

	got, err := s.sprints.GetSprintsByDateRange(s.ctx, "user-1",
		base.AddDate(0, 0, 1), base.AddDate(0, 0, 3))
	s.Require().NoError(err)
	s.Len(got, 3)
}

func (s *SprintStoreSuite) TestAddTag() {
	id, err := s.sprints.SaveSprint(s.ctx, s.newSprint("user-1", time.Now()))
	s.Require().NoError(err)

	s.Require().NoError(s.sprints.AddTag(s.ctx, id, "fiction"))
	s.Require().NoError(s.sprints.AddTag(s.ctx, id, "draft"))

	got, err := s.sprints.GetSprint(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.JSONStringArray{"fiction", "draft"}, got.Tags)

	// Adding a duplicate is a no-op.
	s.Require().NoError(s.sprints.AddTag(s.ctx, id, "fiction"))
	got, err = s.sprints.GetSprint(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.JSONStringArray{"fiction", "draft"}, got.Tags)
}

func (s *SprintStoreSuite) TestAddTagMissingSprint() {
	s.ErrorIs(s.sprints.AddTag(s.ctx, "no-such-id", "tag"), ErrSprintNotFound)
}

func (s *SprintStoreSuite) TestRemoveTag() {
	sp := s.newSprint("user-1", time.Now())
	sp.Tags = models.JSONStringArray{"one", "two", "three"}
	id, err := s.sprints.SaveSprint(s.ctx, sp)
	s.Require().NoError(err)

	s.Require().NoError(s.sprints.RemoveTag(s.ctx, id, "two"))

	got, err := s.sprints.GetSprint(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.JSONStringArray{"one", "three"}, got.Tags)

	// Removing an absent tag is a no-op.
	s.Require().NoError(s.sprints.RemoveTag(s.ctx, id, "absent"))
}

func (s *SprintStoreSuite) TestCountUserSprints() {
	for i := 0; i < 2; i++ {
		_, err := s.sprints.SaveSprint(s.ctx, s.newSprint("user-1", time.Now()))
		s.Require().NoError(err)
	}

	count, err := s.sprints.CountUserSprints(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(2, count)

	count, err = s.sprints.CountUserSprints(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Zero(count)
}
