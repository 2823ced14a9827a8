package metadata

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	scrapeBaseRetryDelay = 2 * time.Second
	scrapeMaxRetryDelay  = 20 * time.Second
)

// collectScriptsJS gathers inline script bodies for the embedded-state
// strategy. Very large bundles are skipped; the serialized player state the
// strategy wants lives in small inline blobs.
const collectScriptsJS = `Array.from(document.querySelectorAll('script'))
	.map(s => s.textContent)
	.filter(t => t && t.length > 0 && t.length < 500000)`

// Selectors observed on beat-store track pages. These break whenever the
// page is redesigned, which is why they are only the first of four
// strategies.
var (
	bpmSelectors = []string{
		`[data-testid="track-bpm"]`,
		`.track-details .bpm`,
		`.beat-metas__bpm`,
	}
	keySelectors = []string{
		`[data-testid="track-key"]`,
		`.track-details .key`,
		`.beat-metas__key`,
	}
)

// PageScraper drives a disposable headless browser against the reference
// page. Every attempt gets a fresh browser that is torn down at the end of
// the attempt regardless of outcome; the whole scrape is retried with
// increasing backoff when the page fails to load.
type PageScraper struct {
	artifactDir string
	attempts    int
	timeout     time.Duration
	headless    bool

	trackAPI *trackAPIClient
}

func NewPageScraper(artifactDir string, attempts int, timeout time.Duration, headless bool) *PageScraper {
	return &PageScraper{
		artifactDir: artifactDir,
		attempts:    attempts,
		timeout:     timeout,
		headless:    headless,
		trackAPI:    newTrackAPIClient(),
	}
}

var _ Scraper = (*PageScraper)(nil)

// Scrape runs the retry loop. The returned result is always non-nil so the
// caller can track diagnostic artifacts from failed attempts too.
func (s *PageScraper) Scrape(ctx context.Context, link string) (*ScrapeResult, error) {
	result := &ScrapeResult{}

	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			delay := scrapeRetryDelay(attempt)
			log.Printf("[Scraper] retry %d/%d for %s (waiting %v)...", attempt, s.attempts-1, link, delay)

			select {
			case <-ctx.Done():
				return result, fmt.Errorf("scrape cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		found, artifacts, err := s.attempt(ctx, link, attempt)
		result.Artifacts = append(result.Artifacts, artifacts...)
		if err != nil {
			lastErr = err
			log.Printf("[Scraper] attempt %d failed: %v", attempt+1, err)
			continue
		}

		if found.bpm != nil {
			result.BPM = *found.bpm
		}
		if found.key != nil {
			result.Key = *found.key
		}
		log.Printf("[Scraper] attempt %d done (bpm=%d, key=%q)", attempt+1, result.BPM, result.Key)
		return result, nil
	}

	return result, fmt.Errorf("scrape failed after %d attempts: %w", s.attempts, lastErr)
}

// attempt loads the page once in an isolated browser and walks the strategy
// chain. A loaded page that yields nothing is still a successful attempt —
// only navigation/browser errors are retryable.
func (s *PageScraper) attempt(ctx context.Context, link string, n int) (extraction, []string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.headless),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(attemptCtx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if err := chromedp.Run(browserCtx,
		chromedp.Navigate(link),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return extraction{}, nil, fmt.Errorf("failed to load %s: %w", link, err)
	}

	var artifacts []string
	if path := s.captureDiagnostic(browserCtx, n); path != "" {
		artifacts = append(artifacts, path)
	}

	// One snapshot feeds the non-DOM strategies.
	var bodyText, html string
	var scripts []string
	if err := chromedp.Run(browserCtx,
		chromedp.Text("body", &bodyText, chromedp.ByQuery, chromedp.AtLeast(0)),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Evaluate(collectScriptsJS, &scripts),
	); err != nil {
		log.Printf("[Scraper] page snapshot incomplete: %v", err)
	}

	strategies := []struct {
		name string
		run  func() extraction
	}{
		{"selectors", func() extraction { return s.extractFromSelectors(browserCtx) }},
		{"page-text", func() extraction { return extractFromText(bodyText) }},
		{"embedded-state", func() extraction { return extractFromState(append(scripts, html)) }},
		{"track-api", func() extraction { return s.trackAPI.extract(attemptCtx, link) }},
	}

	var found extraction
	for _, strat := range strategies {
		if found.complete() {
			break
		}
		got := strat.run()
		if got.bpm != nil || got.key != nil {
			log.Printf("[Scraper] strategy %s hit (bpm=%v, key=%v)", strat.name, got.bpm != nil, got.key != nil)
		}
		found.merge(got)
	}

	return found, artifacts, nil
}

// extractFromSelectors queries the known structural selectors directly in
// the live DOM.
func (s *PageScraper) extractFromSelectors(browserCtx context.Context) extraction {
	var found extraction

	for _, sel := range bpmSelectors {
		var text string
		if err := chromedp.Run(browserCtx,
			chromedp.Text(sel, &text, chromedp.ByQuery, chromedp.AtLeast(0)),
		); err != nil || text == "" {
			continue
		}
		if got := extractFromText("bpm " + text); got.bpm != nil {
			found.bpm = got.bpm
			break
		}
	}

	for _, sel := range keySelectors {
		var text string
		if err := chromedp.Run(browserCtx,
			chromedp.Text(sel, &text, chromedp.ByQuery, chromedp.AtLeast(0)),
		); err != nil || text == "" {
			continue
		}
		if key := normalizeKey(text); key != "" {
			found.key = &key
			break
		}
	}

	return found
}

// captureDiagnostic writes a page screenshot next to the job's other
// artifacts. The path is returned for lifecycle tracking; failure to capture
// is never fatal to the attempt.
func (s *PageScraper) captureDiagnostic(browserCtx context.Context, attempt int) string {
	var shot []byte
	if err := chromedp.Run(browserCtx, chromedp.CaptureScreenshot(&shot)); err != nil {
		log.Printf("[Scraper] screenshot failed: %v", err)
		return ""
	}

	path := filepath.Join(s.artifactDir, fmt.Sprintf("scrape_%d_attempt%d.png", time.Now().UnixNano(), attempt))
	if err := os.WriteFile(path, shot, 0644); err != nil {
		log.Printf("[Scraper] failed to write screenshot: %v", err)
		return ""
	}
	return path
}

// scrapeRetryDelay grows the wait between whole-scrape attempts: base * 2^(n-1),
// capped.
func scrapeRetryDelay(attempt int) time.Duration {
	delay := float64(scrapeBaseRetryDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(scrapeMaxRetryDelay) {
		delay = float64(scrapeMaxRetryDelay)
	}
	return time.Duration(delay)
}
