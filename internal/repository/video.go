package repository

import (
	"context"

	"video-cloud/internal/domain"
)

// VideoRepository exposes persistence operations for Video records.
type VideoRepository interface {
	Create(ctx context.Context, video *domain.Video) error
	// List returns videos matching filter, newest first.
	List(ctx context.Context, filter domain.VideoFilter) ([]domain.Video, error)
}
