package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"video-cloud/internal/domain"
	"video-cloud/internal/repository"
)

// VideoService coordinates feed reads and video creation.
type VideoService interface {
	// ListVideos returns the feed visible to session; a nil session sees public videos only.
	ListVideos(ctx context.Context, session *domain.Session) ([]domain.Video, error)
	CreateVideo(ctx context.Context, session *domain.Session, input domain.NewVideo) (*domain.Video, error)
}

type videoService struct {
	videos repository.VideoRepository
	now    func() time.Time
}

func NewVideoService(videos repository.VideoRepository) VideoService {
	return &videoService{
		videos: videos,
		now:    time.Now,
	}
}

func (s *videoService) ListVideos(ctx context.Context, session *domain.Session) ([]domain.Video, error) {
	filter := domain.VideoFilter{IncludePrivate: session != nil}
	return s.videos.List(ctx, filter)
}

func (s *videoService) CreateVideo(ctx context.Context, session *domain.Session, input domain.NewVideo) (*domain.Video, error) {
	if session == nil {
		return nil, domain.ErrAuthorization
	}
	if input.Title == "" || input.Description == "" || input.VideoURL == "" || input.ThumbnailURL == "" {
		return nil, fmt.Errorf("missing required fields: %w", domain.ErrValidation)
	}

	video := &domain.Video{
		ID:           uuid.NewString(),
		Title:        input.Title,
		Description:  input.Description,
		VideoURL:     input.VideoURL,
		ThumbnailURL: input.ThumbnailURL,
		CreatedAt:    s.now().UTC(),
	}
	if input.Private != nil {
		video.Private = *input.Private
	}

	if err := s.videos.Create(ctx, video); err != nil {
		return nil, err
	}
	return video, nil
}
