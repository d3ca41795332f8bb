// Package gorm provides GORM-based database operations for quickpen.
package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/quickpen-app/quickpen/pkg/models"
)

// ErrSprintNotFound is returned when a sprint ID does not exist.
var ErrSprintNotFound = errors.New("sprint not found")

// SprintStore provides sprint-related database operations.
type SprintStore struct {
	db *gorm.DB
}

// NewSprintStore creates a new sprint store.
func NewSprintStore(store *Store) *SprintStore {
	return &SprintStore{db: store.DB}
}

// SaveSprint inserts a finished sprint and returns the assigned ID.
// Records are insert-only; content and durations never change afterwards.
func (s *SprintStore) SaveSprint(ctx context.Context, sp *models.Sprint) (string, error) {
	if err := sp.Validate(); err != nil {
		return "", err
	}

	row := toRow(sp)
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return "", err
	}
	return row.ID, nil
}

// GetSprint retrieves one sprint by ID, or nil when absent.
func (s *SprintStore) GetSprint(ctx context.Context, id string) (*models.Sprint, error) {
	var row Sprint
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModel(&row), nil
}

// GetUserSprints retrieves a user's sprints ordered newest-first.
// A limit of 0 means no limit.
func (s *SprintStore) GetUserSprints(ctx context.Context, userID string, limit int) ([]*models.Sprint, error) {
	var rows []Sprint
	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("completed_at_epoch DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toModels(rows), nil
}

// GetSprintsByDateRange retrieves a user's sprints completed inside
// [start, end], ordered newest-first.
func (s *SprintStore) GetSprintsByDateRange(ctx context.Context, userID string, start, end time.Time) ([]*models.Sprint, error) {
	var rows []Sprint
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND completed_at_epoch >= ? AND completed_at_epoch <= ?",
			userID, start.UnixMilli(), end.UnixMilli()).
		Order("completed_at_epoch DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toModels(rows), nil
}

// AddTag appends a tag to a sprint. Adding a tag that is already present
// is a no-op, preserving order and uniqueness.
func (s *SprintStore) AddTag(ctx context.Context, id, tag string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Sprint
		err := tx.Where("id = ?", id).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSprintNotFound
		}
		if err != nil {
			return err
		}

		if row.Tags.Contains(tag) {
			return nil
		}
		tags := append(row.Tags, tag)
		return tx.Model(&Sprint{}).Where("id = ?", id).Update("tags", tags).Error
	})
}

// RemoveTag deletes a tag from a sprint. Removing an absent tag is a no-op.
func (s *SprintStore) RemoveTag(ctx context.Context, id, tag string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Sprint
		err := tx.Where("id = ?", id).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSprintNotFound
		}
		if err != nil {
			return err
		}

		var tags models.JSONStringArray
		for _, t := range row.Tags {
			if t != tag {
				tags = append(tags, t)
			}
		}
		if len(tags) == len(row.Tags) {
			return nil
		}
		if tags == nil {
			tags = models.JSONStringArray{}
		}
		return tx.Model(&Sprint{}).Where("id = ?", id).Update("tags", tags).Error
	})
}

// CountUserSprints returns the number of sprints a user has saved.
func (s *SprintStore) CountUserSprints(ctx context.Context, userID string) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Sprint{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return int(count), err
}

// toRow converts a domain sprint to its persisted form.
func toRow(sp *models.Sprint) *Sprint {
	return &Sprint{
		ID:               sp.ID,
		UserID:           sp.UserID,
		Content:          sp.Content,
		WordCount:        sp.WordCount,
		Duration:         sp.Duration,
		ActualDuration:   sp.ActualDuration,
		EndedEarly:       sp.EndedEarly,
		Tags:             sp.Tags,
		CompletedAt:      sp.CompletedAt.UTC().Format(time.RFC3339),
		CompletedAtEpoch: sp.CompletedAt.UnixMilli(),
	}
}

// toModel converts a persisted row back to the domain sprint.
func toModel(row *Sprint) *models.Sprint {
	return &models.Sprint{
		ID:             row.ID,
		UserID:         row.UserID,
		Content:        row.Content,
		WordCount:      row.WordCount,
		Duration:       row.Duration,
		ActualDuration: row.ActualDuration,
		EndedEarly:     row.EndedEarly,
		Tags:           row.Tags,
		CompletedAt:    time.UnixMilli(row.CompletedAtEpoch).UTC(),
	}
}

func toModels(rows []Sprint) []*models.Sprint {
	out := make([]*models.Sprint, len(rows))
	for i := range rows {
		out[i] = toModel(&rows[i])
	}
	return out
}
