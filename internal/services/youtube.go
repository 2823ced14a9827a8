package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/beatpress/api/internal/credentials"
)

// Publish failures in these categories need different operator action, so
// they surface as distinguishable sentinels instead of one opaque error.
var (
	ErrAuthExpired = errors.New("authentication expired, re-authenticate")
	ErrQuotaDenied = errors.New("quota exceeded or permission denied")
)

const (
	maxTitleRunes       = 100
	maxDescriptionRunes = 5000
	maxTags             = 30
)

// PublishMeta is everything the upload needs besides the file itself.
type PublishMeta struct {
	Title       string
	Description string
	Tags        []string
	CategoryID  string
	PublishAt   time.Time
}

// PublishResult identifies the uploaded video.
type PublishResult struct {
	VideoID string
	URL     string
}

// YouTubeService uploads rendered videos. Uploads are never retried here:
// a failed attempt may still have consumed quota or produced a duplicate,
// and the operator should decide.
type YouTubeService struct {
	creds *credentials.Manager

	// upload is swapped out in tests.
	upload func(ctx context.Context, tok *oauth2.Token, videoPath string, video *youtube.Video) (string, error)
}

func NewYouTubeService(creds *credentials.Manager) *YouTubeService {
	s := &YouTubeService{creds: creds}
	s.upload = s.doUpload
	return s
}

// Publish shapes the metadata to platform limits and uploads the file once.
func (s *YouTubeService) Publish(ctx context.Context, videoPath string, meta PublishMeta) (*PublishResult, error) {
	tok, err := s.creds.EnsureFresh(ctx)
	if err != nil {
		if errors.Is(err, credentials.ErrAuthRequired) {
			return nil, fmt.Errorf("%w: %v", ErrAuthExpired, err)
		}
		return nil, fmt.Errorf("failed to obtain credentials: %w", err)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       truncateRunes(meta.Title, maxTitleRunes),
			Description: truncateRunes(meta.Description, maxDescriptionRunes),
			Tags:        truncateTags(meta.Tags, maxTags),
			CategoryId:  meta.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           "public",
			SelfDeclaredMadeForKids: false,
		},
	}
	if !meta.PublishAt.IsZero() {
		video.Status.PrivacyStatus = "private"
		video.Status.PublishAt = meta.PublishAt.UTC().Format(time.RFC3339)
	}

	log.Printf("[YouTube] uploading %s (%q)", videoPath, video.Snippet.Title)

	id, err := s.upload(ctx, tok, videoPath, video)
	if err != nil {
		return nil, categorizeUploadError(err)
	}

	log.Printf("[YouTube] upload complete: %s", id)
	return &PublishResult{
		VideoID: id,
		URL:     "https://www.youtube.com/watch?v=" + id,
	}, nil
}

func (s *YouTubeService) doUpload(ctx context.Context, tok *oauth2.Token, videoPath string, video *youtube.Video) (string, error) {
	svc, err := youtube.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(tok)))
	if err != nil {
		return "", fmt.Errorf("failed to create youtube client: %w", err)
	}

	f, err := os.Open(videoPath)
	if err != nil {
		return "", fmt.Errorf("failed to open video file: %w", err)
	}
	defer f.Close()

	resp, err := svc.Videos.Insert([]string{"snippet", "status"}, video).Media(f).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return resp.Id, nil
}

// categorizeUploadError maps API failures onto the sentinel taxonomy so
// callers can tell "re-authenticate" from "out of quota" from "look at logs".
func categorizeUploadError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("upload failed: %w", err)
	}

	switch apiErr.Code {
	case 401:
		return fmt.Errorf("%w: %v", ErrAuthExpired, err)
	case 403:
		for _, e := range apiErr.Errors {
			switch e.Reason {
			case "quotaExceeded", "rateLimitExceeded", "dailyLimitExceeded",
				"forbidden", "insufficientPermissions":
				return fmt.Errorf("%w: %v", ErrQuotaDenied, err)
			}
		}
		return fmt.Errorf("%w: %v", ErrQuotaDenied, err)
	}
	return fmt.Errorf("upload failed: %w", err)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func truncateTags(tags []string, limit int) []string {
	if len(tags) <= limit {
		return tags
	}
	return tags[:limit]
}
