package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/beatpress/api/internal/metadata"
	"github.com/beatpress/api/internal/models"
	"github.com/beatpress/api/internal/services"
)

type fakeResolver struct {
	res metadata.Resolution
}

func (f *fakeResolver) Resolve(ctx context.Context, manualBPM, manualKey, link string) metadata.Resolution {
	return f.res
}

type fakeSynthesizer struct {
	err   error
	calls int
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, audioPath, imagePath string, style models.BackgroundStyle, outputPath string, progress services.ProgressFunc) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outputPath, []byte("mp4"), 0644)
}

type fakePublisher struct {
	err   error
	calls int
}

func (f *fakePublisher) Publish(ctx context.Context, videoPath string, meta services.PublishMeta) (*services.PublishResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &services.PublishResult{VideoID: "vid123", URL: "https://www.youtube.com/watch?v=vid123"}, nil
}

type fakeHistory struct {
	records []*models.PublishRecord
	err     error
}

func (f *fakeHistory) CreatePublishRecord(ctx context.Context, rec *models.PublishRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

type pipelineFixture struct {
	pipeline  *Pipeline
	resolver  *fakeResolver
	synth     *fakeSynthesizer
	publisher *fakePublisher
	history   *fakeHistory
	workDir   string
	job       *models.Job
}

func resolved(bpm int, key string) metadata.Resolution {
	return metadata.Resolution{Metadata: &models.ResolvedMetadata{BPM: bpm, Key: key}}
}

func newFixture(t *testing.T, res metadata.Resolution) *pipelineFixture {
	t.Helper()

	workDir := t.TempDir()
	f := &pipelineFixture{
		resolver:  &fakeResolver{res: res},
		synth:     &fakeSynthesizer{},
		publisher: &fakePublisher{},
		history:   &fakeHistory{},
		workDir:   workDir,
	}

	s := NewSerializer(context.Background())
	t.Cleanup(s.Stop)

	f.pipeline = New(s, f.resolver, f.synth, f.publisher, f.history, workDir, "10")

	f.job = &models.Job{
		ID:        "job1",
		AudioPath: writeTempFile(t, workDir, "audio_job1.mp3"),
		ImagePath: writeTempFile(t, workDir, "image_job1.jpg"),
		BeatTitle: "Nightfall",
		Tags:      "travis scott, dark",
		Genre:     "Trap",
		Style:     models.BackgroundBlurred,
	}
	return f
}

func (f *pipelineFixture) assertWorkDirEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.workDir)
	if err != nil {
		t.Fatalf("failed to read work dir: %v", err)
	}
	for _, e := range entries {
		t.Errorf("leftover file after job: %s", e.Name())
	}
}

func TestProcessSuccessCleansUpAndRecords(t *testing.T) {
	f := newFixture(t, resolved(142, "C#m"))

	outcome, err := f.pipeline.Process(f.job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !outcome.Success {
		t.Error("expected success")
	}
	if outcome.VideoID != "vid123" || outcome.URL != "https://www.youtube.com/watch?v=vid123" {
		t.Errorf("unexpected outcome: %+v", outcome)
	}
	if outcome.Title == "" || len(outcome.Tags) == 0 {
		t.Errorf("expected shaped metadata in outcome, got %+v", outcome)
	}

	if len(f.history.records) != 1 {
		t.Fatalf("expected 1 ledger record, got %d", len(f.history.records))
	}
	rec := f.history.records[0]
	if rec.JobID != "job1" || rec.VideoID != "vid123" || rec.BPM != 142 || rec.Key != "C#m" {
		t.Errorf("unexpected ledger record: %+v", rec)
	}

	f.assertWorkDirEmpty(t)
}

func TestProcessMetadataIncompleteIsSoftFailure(t *testing.T) {
	f := newFixture(t, metadata.Resolution{Missing: &models.MissingData{Key: true}})
	f.resolver.res.Artifacts = []string{writeTempFile(t, f.workDir, "scrape_1.png")}

	outcome, err := f.pipeline.Process(f.job)
	if err != nil {
		t.Fatalf("soft failure must not be an error: %v", err)
	}

	if outcome.Success {
		t.Error("expected failure outcome")
	}
	if !outcome.ScrapingFailed {
		t.Error("expected scrapingFailed flag")
	}
	if outcome.MissingData == nil || outcome.MissingData.BPM || !outcome.MissingData.Key {
		t.Errorf("unexpected missing data: %+v", outcome.MissingData)
	}

	if f.synth.calls != 0 {
		t.Error("must not render without complete metadata")
	}
	if f.publisher.calls != 0 {
		t.Error("must not publish without complete metadata")
	}

	// Inputs and scrape artifacts are released even on the soft path.
	f.assertWorkDirEmpty(t)
}

func TestProcessSynthesisFailureCleansUp(t *testing.T) {
	f := newFixture(t, resolved(142, "C#m"))
	f.synth.err = errors.New("encoder exploded")

	_, err := f.pipeline.Process(f.job)
	if err == nil {
		t.Fatal("expected error")
	}
	if f.publisher.calls != 0 {
		t.Error("must not publish a video that failed to render")
	}
	f.assertWorkDirEmpty(t)
}

func TestProcessPublishFailureIsNotRetried(t *testing.T) {
	f := newFixture(t, resolved(142, "C#m"))
	f.publisher.err = fmt.Errorf("wrapped: %w", services.ErrQuotaDenied)

	_, err := f.pipeline.Process(f.job)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrQuotaDenied) {
		t.Errorf("expected quota error to surface, got %v", err)
	}
	if f.publisher.calls != 1 {
		t.Errorf("publish must run exactly once, got %d calls", f.publisher.calls)
	}
	if len(f.history.records) != 0 {
		t.Error("failed publish must not be recorded")
	}
	f.assertWorkDirEmpty(t)
}

func TestProcessLedgerFailureDoesNotSinkJob(t *testing.T) {
	f := newFixture(t, resolved(142, "C#m"))
	f.history.err = errors.New("db down")

	outcome, err := f.pipeline.Process(f.job)
	if err != nil {
		t.Fatalf("ledger failure must not fail the job: %v", err)
	}
	if !outcome.Success {
		t.Error("expected success despite ledger failure")
	}
	f.assertWorkDirEmpty(t)
}

func TestProcessWithoutHistoryIsFine(t *testing.T) {
	f := newFixture(t, resolved(142, "C#m"))
	s := NewSerializer(context.Background())
	t.Cleanup(s.Stop)
	f.pipeline = New(s, f.resolver, f.synth, f.publisher, nil, f.workDir, "10")

	if _, err := f.pipeline.Process(f.job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.assertWorkDirEmpty(t)
}
