package models

import (
	"fmt"
	"time"
)

// BackgroundStyle selects how the cover image is composited onto the
// 1920x1080 canvas.
type BackgroundStyle string

const (
	// BackgroundBlurred fills the canvas with a blurred copy of the cover
	// and overlays the sharp cover centered on top.
	BackgroundBlurred BackgroundStyle = "blurred"

	// BackgroundBlack letterboxes the cover on a solid black canvas.
	BackgroundBlack BackgroundStyle = "black"
)

// ParseBackgroundStyle validates a client-supplied style string.
// An empty value defaults to blurred.
func ParseBackgroundStyle(s string) (BackgroundStyle, error) {
	switch BackgroundStyle(s) {
	case BackgroundBlurred, BackgroundBlack:
		return BackgroundStyle(s), nil
	case "":
		return BackgroundBlurred, nil
	default:
		return "", fmt.Errorf("invalid background style %q (allowed: blurred, black)", s)
	}
}

// Job is one end-to-end publishing request. It exists only for the duration
// of the request — nothing about it survives a process restart.
type Job struct {
	ID string `json:"id"`

	// Uploaded inputs, owned by the job until cleanup.
	AudioPath string `json:"-"`
	ImagePath string `json:"-"`

	// Descriptive fields from the upload form.
	BeatTitle     string `json:"beatTitle"`
	Tags          string `json:"tags"` // free-text artist seed, comma separated
	Genre         string `json:"genre"`
	InstagramLink string `json:"instagramLink,omitempty"`
	BeatstarsLink string `json:"beatstarsLink,omitempty"`
	ManualBPM     string `json:"manualBpm,omitempty"`
	ManualKey     string `json:"manualKey,omitempty"`
	Email         string `json:"email,omitempty"`

	Style BackgroundStyle `json:"backgroundStyle"`

	// Optional deferred publish time. Zero means publish immediately (public).
	PublishAt time.Time `json:"publishAt,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ResolvedMetadata holds the two descriptive fields required before
// synthesis. BPM is always a positive integer; Key is a short musical-key
// token such as "C#m".
type ResolvedMetadata struct {
	BPM int    `json:"bpm"`
	Key string `json:"key"`
}

// MissingData reports which metadata fields resolution could not fill.
type MissingData struct {
	BPM bool `json:"bpm"`
	Key bool `json:"key"`
}

// PublishOutcome is the JSON result returned to the caller. Exactly one of
// three shapes is produced: success, metadata-incomplete (Success=false,
// ScrapingFailed=true), or hard failure (Success=false, Message only).
type PublishOutcome struct {
	Success bool `json:"success"`

	VideoID     string   `json:"videoId,omitempty"`
	URL         string   `json:"url,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	ScrapingFailed bool         `json:"scrapingFailed,omitempty"`
	MissingData    *MissingData `json:"missingData,omitempty"`

	Message string `json:"message,omitempty"`
}

// PublishRecord is one row of the optional publish-history ledger.
type PublishRecord struct {
	ID        int64     `json:"id"`
	JobID     string    `json:"job_id"`
	VideoID   string    `json:"video_id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	BPM       int       `json:"bpm"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
}
