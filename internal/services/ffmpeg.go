package services

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"

	"github.com/beatpress/api/internal/models"
)

// Filter graphs for the two background treatments. Both land on a 1920x1080
// canvas; the blurred style layers a 1344x756 sharp copy over a blown-up,
// cropped, blurred copy of the same image.
const (
	blackFilterGraph = "[0:v]scale=1920:1080:force_original_aspect_ratio=decrease," +
		"pad=1920:1080:(ow-iw)/2:(oh-ih)/2:black,setsar=1[v]"

	blurredFilterGraph = "[0:v]scale=1920:1080:force_original_aspect_ratio=increase," +
		"crop=1920:1080,gblur=sigma=20[bg];" +
		"[0:v]scale=1344:756:force_original_aspect_ratio=decrease[fg];" +
		"[bg][fg]overlay=(W-w)/2:(H-h)/2,setsar=1[v]"
)

// ProgressFunc receives encode progress as a percentage in [0,100].
type ProgressFunc func(percent float64)

// FFmpegService renders a still image plus an audio track into an mp4 in a
// single encoder pass.
type FFmpegService struct{}

func NewFFmpegService() *FFmpegService {
	return &FFmpegService{}
}

// Synthesize runs the encode. The encoder is deliberately throttled (threads,
// maxrate, bufsize) so a render never starves the scraper's browser or the
// HTTP listener on small hosts. progress may be nil.
func (s *FFmpegService) Synthesize(ctx context.Context, audioPath, imagePath string, style models.BackgroundStyle, outputPath string, progress ProgressFunc) error {
	totalSeconds, err := s.GetAudioDuration(ctx, audioPath)
	if err != nil {
		log.Printf("[FFmpeg] could not probe audio duration: %v", err)
		totalSeconds = 0
	}

	args := buildEncodeArgs(audioPath, imagePath, style, outputPath)

	log.Printf("[FFmpeg] rendering %s style to %s", style, outputPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "out_time_ms=") {
			continue
		}
		if progress == nil || totalSeconds <= 0 {
			continue
		}
		// out_time_ms is actually microseconds.
		us, err := strconv.ParseFloat(strings.TrimPrefix(line, "out_time_ms="), 64)
		if err != nil {
			continue
		}
		percent := us / 1e6 / totalSeconds * 100
		if percent > 100 {
			percent = 100
		}
		progress(percent)
	}

	if err := cmd.Wait(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("ffmpeg failed: %w: %s", err, detail)
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}

	if progress != nil {
		progress(100)
	}
	log.Printf("[FFmpeg] render complete: %s", outputPath)
	return nil
}

// buildEncodeArgs assembles the single-pass encode invocation. Progress is
// written to stdout so stderr stays reserved for error text.
func buildEncodeArgs(audioPath, imagePath string, style models.BackgroundStyle, outputPath string) []string {
	filterGraph := blurredFilterGraph
	if style == models.BackgroundBlack {
		filterGraph = blackFilterGraph
	}

	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-progress", "pipe:1",
		"-loop", "1",
		"-i", imagePath,
		"-i", audioPath,
		"-filter_complex", filterGraph,
		"-map", "[v]",
		"-map", "1:a",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-tune", "stillimage",
		"-threads", "2",
		"-maxrate", "2000k",
		"-bufsize", "2000k",
		"-r", "1",
		"-c:a", "aac",
		"-b:a", "192k",
		"-pix_fmt", "yuv420p",
		"-shortest",
		"-y",
		outputPath,
	}
}

// GetAudioDuration returns the track length in seconds via ffprobe.
func (s *FFmpegService) GetAudioDuration(ctx context.Context, audioPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	)

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w", audioPath, err)
	}

	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &duration); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output %q: %w", strings.TrimSpace(string(out)), err)
	}
	return duration, nil
}
