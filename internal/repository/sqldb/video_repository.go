package sqldb

import (
	"context"
	"fmt"

	"video-cloud/internal/domain"
	"video-cloud/internal/repository"
)

const videoColumns = `id, title, description, video_url, thumbnail_url, private, created_at`

type VideoRepository struct {
	conns Connector
}

func NewVideoRepository(conns Connector) repository.VideoRepository {
	return &VideoRepository{conns: conns}
}

// Create stores video as given; id and created_at are assigned by the caller.
func (r *VideoRepository) Create(ctx context.Context, video *domain.Video) error {
	db, err := r.conns.DB(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, rebind(r.conns.Dialect(), `
INSERT INTO videos (`+videoColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?)`),
		video.ID,
		video.Title,
		video.Description,
		video.VideoURL,
		video.ThumbnailURL,
		video.Private,
		video.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

func (r *VideoRepository) List(ctx context.Context, filter domain.VideoFilter) ([]domain.Video, error) {
	db, err := r.conns.DB(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + videoColumns + ` FROM videos`
	var args []any
	if !filter.IncludePrivate {
		query += ` WHERE private = ?`
		args = append(args, false)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, rebind(r.conns.Dialect(), query), args...)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	videos := make([]domain.Video, 0)
	for rows.Next() {
		var v domain.Video
		if err := rows.Scan(
			&v.ID,
			&v.Title,
			&v.Description,
			&v.VideoURL,
			&v.ThumbnailURL,
			&v.Private,
			&v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}
	return videos, nil
}
