package domain

import "time"

// Video is a feed entry pointing at externally hosted media.
type Video struct {
	ID           string
	Title        string
	Description  string
	VideoURL     string
	ThumbnailURL string
	Private      bool
	CreatedAt    time.Time
}

// VideoFilter is the visibility predicate applied when listing videos.
type VideoFilter struct {
	IncludePrivate bool
}

// NewVideo carries the user-supplied fields of a video being created.
type NewVideo struct {
	Title        string
	Description  string
	VideoURL     string
	ThumbnailURL string
	Private      *bool
}
