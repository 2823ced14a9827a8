package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/beatpress/api/internal/metadata"
	"github.com/beatpress/api/internal/models"
	"github.com/beatpress/api/internal/services"
)

// The pipeline's collaborators, narrowed to what it actually calls.
type (
	Resolver interface {
		Resolve(ctx context.Context, manualBPM, manualKey, link string) metadata.Resolution
	}

	Synthesizer interface {
		Synthesize(ctx context.Context, audioPath, imagePath string, style models.BackgroundStyle, outputPath string, progress services.ProgressFunc) error
	}

	Publisher interface {
		Publish(ctx context.Context, videoPath string, meta services.PublishMeta) (*services.PublishResult, error)
	}

	// History is optional; a nil History disables the ledger.
	History interface {
		CreatePublishRecord(ctx context.Context, rec *models.PublishRecord) error
	}
)

// Pipeline turns an admitted job into a published video: resolve metadata,
// render, upload, clean up. Jobs are strictly serialized; the caller blocks
// until its job has run to completion.
type Pipeline struct {
	serializer  *Serializer
	resolver    Resolver
	synthesizer Synthesizer
	publisher   Publisher
	history     History

	workDir    string
	categoryID string
}

func New(serializer *Serializer, resolver Resolver, synthesizer Synthesizer, publisher Publisher, history History, workDir, categoryID string) *Pipeline {
	return &Pipeline{
		serializer:  serializer,
		resolver:    resolver,
		synthesizer: synthesizer,
		publisher:   publisher,
		history:     history,
		workDir:     workDir,
		categoryID:  categoryID,
	}
}

// Process runs the job through the serialized pipeline and reports the
// outcome. A non-nil outcome with Success=false is the metadata-incomplete
// terminal state; an error is a hard failure. Either way every file the job
// touched has been released by the time Process returns.
func (p *Pipeline) Process(job *models.Job) (*models.PublishOutcome, error) {
	var outcome *models.PublishOutcome

	err := p.serializer.Run(func(ctx context.Context) error {
		var err error
		outcome, err = p.process(ctx, job)
		return err
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (p *Pipeline) process(ctx context.Context, job *models.Job) (*models.PublishOutcome, error) {
	log.Printf("[Pipeline] processing job %s (%q)", job.ID, job.BeatTitle)

	tracker := NewTracker()
	defer tracker.ReleaseAll()

	tracker.Track(job.AudioPath)
	tracker.Track(job.ImagePath)

	res := p.resolver.Resolve(ctx, job.ManualBPM, job.ManualKey, job.BeatstarsLink)
	for _, artifact := range res.Artifacts {
		tracker.Track(artifact)
	}

	if res.Missing != nil {
		log.Printf("[Pipeline] job %s incomplete: missing bpm=%v key=%v", job.ID, res.Missing.BPM, res.Missing.Key)
		return &models.PublishOutcome{
			Success:        false,
			ScrapingFailed: true,
			MissingData:    res.Missing,
			Message:        "could not determine BPM/key; provide them manually and resubmit",
		}, nil
	}
	md := res.Metadata

	videoPath := filepath.Join(p.workDir, fmt.Sprintf("video_%s.mp4", job.ID))
	tracker.Track(videoPath)

	progress := func(percent float64) {
		log.Printf("[Pipeline] job %s rendering: %.1f%%", job.ID, percent)
	}
	if err := p.synthesizer.Synthesize(ctx, job.AudioPath, job.ImagePath, job.Style, videoPath, progress); err != nil {
		return nil, fmt.Errorf("video synthesis failed: %w", err)
	}

	meta := services.PublishMeta{
		Title:       BuildTitle(job, md),
		Description: BuildDescription(job, md),
		Tags:        BuildTags(job.Tags, job.Genre),
		CategoryID:  p.categoryID,
		PublishAt:   job.PublishAt,
	}

	result, err := p.publisher.Publish(ctx, videoPath, meta)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", publishFailureMessage(err), err)
	}

	p.record(ctx, job, md, result, meta.Title)

	return &models.PublishOutcome{
		Success:     true,
		VideoID:     result.VideoID,
		URL:         result.URL,
		Title:       meta.Title,
		Description: meta.Description,
		Tags:        meta.Tags,
	}, nil
}

// record writes the ledger entry. Ledger trouble never fails a job whose
// video is already live.
func (p *Pipeline) record(ctx context.Context, job *models.Job, md *models.ResolvedMetadata, result *services.PublishResult, title string) {
	if p.history == nil {
		return
	}

	rec := &models.PublishRecord{
		JobID:   job.ID,
		VideoID: result.VideoID,
		URL:     result.URL,
		Title:   title,
		BPM:     md.BPM,
		Key:     md.Key,
	}
	if err := p.history.CreatePublishRecord(ctx, rec); err != nil {
		log.Printf("[Pipeline] failed to record publish for job %s: %v", job.ID, err)
	}
}

func publishFailureMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrAuthExpired):
		return "publish failed: authentication expired"
	case errors.Is(err, services.ErrQuotaDenied):
		return "publish failed: quota exceeded or permission denied"
	default:
		return "publish failed"
	}
}
