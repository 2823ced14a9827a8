package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/youtube/v3"

	"github.com/beatpress/api/internal/credentials"
)

type stubStore struct{ creds credentials.Credentials }

func (s *stubStore) Load() (credentials.Credentials, bool, error) { return s.creds, true, nil }
func (s *stubStore) Save(creds credentials.Credentials) error     { s.creds = creds; return nil }

func newTestService(t *testing.T, upload func(ctx context.Context, tok *oauth2.Token, videoPath string, video *youtube.Video) (string, error)) *YouTubeService {
	t.Helper()
	store := &stubStore{creds: credentials.Credentials{
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiryDate:   time.Now().Add(time.Hour).UnixMilli(),
	}}
	svc := NewYouTubeService(credentials.NewManager("id", "secret", "http://localhost:8080/oauth2callback", store))
	svc.upload = upload
	return svc
}

func TestPublishShapesMetadata(t *testing.T) {
	var uploaded *youtube.Video

	svc := newTestService(t, func(ctx context.Context, tok *oauth2.Token, videoPath string, video *youtube.Video) (string, error) {
		uploaded = video
		return "vid123", nil
	})

	longTitle := strings.Repeat("t", 150)
	longDesc := strings.Repeat("d", 6000)
	manyTags := make([]string, 40)
	for i := range manyTags {
		manyTags[i] = "tag"
	}

	res, err := svc.Publish(context.Background(), "/tmp/v.mp4", PublishMeta{
		Title:       longTitle,
		Description: longDesc,
		Tags:        manyTags,
		CategoryID:  "10",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.VideoID != "vid123" || res.URL != "https://www.youtube.com/watch?v=vid123" {
		t.Errorf("unexpected result: %+v", res)
	}
	if got := len([]rune(uploaded.Snippet.Title)); got != 100 {
		t.Errorf("expected title truncated to 100 runes, got %d", got)
	}
	if got := len([]rune(uploaded.Snippet.Description)); got != 5000 {
		t.Errorf("expected description truncated to 5000 runes, got %d", got)
	}
	if got := len(uploaded.Snippet.Tags); got != 30 {
		t.Errorf("expected 30 tags, got %d", got)
	}
	if uploaded.Status.PrivacyStatus != "public" {
		t.Errorf("expected immediate publish to be public, got %s", uploaded.Status.PrivacyStatus)
	}
}

func TestPublishSchedulesAsPrivate(t *testing.T) {
	var uploaded *youtube.Video
	svc := newTestService(t, func(ctx context.Context, tok *oauth2.Token, videoPath string, video *youtube.Video) (string, error) {
		uploaded = video
		return "vid123", nil
	})

	at := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)
	if _, err := svc.Publish(context.Background(), "/tmp/v.mp4", PublishMeta{Title: "t", PublishAt: at}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if uploaded.Status.PrivacyStatus != "private" {
		t.Errorf("scheduled upload must start private, got %s", uploaded.Status.PrivacyStatus)
	}
	if uploaded.Status.PublishAt != "2026-09-01T15:00:00Z" {
		t.Errorf("unexpected publishAt: %s", uploaded.Status.PublishAt)
	}
}

func TestPublishErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantIs  error
		generic bool
	}{
		{
			name:   "401 maps to auth expired",
			err:    &googleapi.Error{Code: 401, Message: "Invalid Credentials"},
			wantIs: ErrAuthExpired,
		},
		{
			name: "403 quota maps to quota denied",
			err: &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{
				{Reason: "quotaExceeded"},
			}},
			wantIs: ErrQuotaDenied,
		},
		{
			name:   "403 without reason still quota denied",
			err:    &googleapi.Error{Code: 403},
			wantIs: ErrQuotaDenied,
		},
		{
			name:    "network error stays generic",
			err:     errors.New("connection reset"),
			generic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, func(ctx context.Context, tok *oauth2.Token, videoPath string, video *youtube.Video) (string, error) {
				return "", tt.err
			})

			_, err := svc.Publish(context.Background(), "/tmp/v.mp4", PublishMeta{Title: "t"})
			if err == nil {
				t.Fatal("expected error")
			}

			if tt.generic {
				if errors.Is(err, ErrAuthExpired) || errors.Is(err, ErrQuotaDenied) {
					t.Errorf("generic failure wrongly categorized: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantIs) {
				t.Errorf("expected %v, got %v", tt.wantIs, err)
			}
		})
	}
}

func TestPublishWithoutCredentialsIsAuthExpired(t *testing.T) {
	store := &stubStore{} // empty refresh token
	svc := NewYouTubeService(credentials.NewManager("id", "secret", "http://localhost:8080/oauth2callback", store))
	svc.upload = func(ctx context.Context, tok *oauth2.Token, videoPath string, video *youtube.Video) (string, error) {
		t.Error("upload must not run without credentials")
		return "", nil
	}

	_, err := svc.Publish(context.Background(), "/tmp/v.mp4", PublishMeta{Title: "t"})
	if !errors.Is(err, ErrAuthExpired) {
		t.Errorf("expected ErrAuthExpired, got %v", err)
	}
}
