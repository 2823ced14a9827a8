package metadata

import (
	"context"
	"log"
	"strconv"
	"strings"

	"github.com/beatpress/api/internal/models"
)

// Scraper extracts tempo/key from an external reference page. Implementations
// own their retry budget; a returned error means the budget is exhausted.
// The result is non-nil whenever diagnostic artifacts were written, even on
// error, so the caller can hand them to the job's cleanup.
type Scraper interface {
	Scrape(ctx context.Context, link string) (*ScrapeResult, error)
}

// ScrapeResult carries whatever the scrape managed to find. Zero BPM or
// empty Key means "not found", not failure.
type ScrapeResult struct {
	BPM       int
	Key       string
	Artifacts []string
}

// Resolution is the outcome of metadata resolution. Exactly one of Metadata
// and Missing is set: Missing describes the metadata-incomplete terminal
// state, which is a normal outcome, not an error.
type Resolution struct {
	Metadata  *models.ResolvedMetadata
	Missing   *models.MissingData
	Artifacts []string
}

// Resolver fills tempo and key through the fallback chain: manual values
// first, then the scraping fallback, else metadata-incomplete.
type Resolver struct {
	scraper Scraper
}

func NewResolver(scraper Scraper) *Resolver {
	return &Resolver{scraper: scraper}
}

// Resolve applies the chain per field. The scrape runs only when at least one
// field is still needed after the manual values, so a scrape failure can
// never sink a job whose manual values were already complete.
func (r *Resolver) Resolve(ctx context.Context, manualBPM, manualKey, link string) Resolution {
	var md models.ResolvedMetadata

	if bpm, ok := parseManualBPM(manualBPM); ok {
		md.BPM = bpm
		log.Printf("[Metadata] using manual BPM %d", bpm)
	} else if strings.TrimSpace(manualBPM) != "" {
		log.Printf("[Metadata] ignoring unparseable manual BPM %q", manualBPM)
	}

	if key := strings.TrimSpace(manualKey); key != "" {
		md.Key = key
		log.Printf("[Metadata] using manual key %s", key)
	}

	var artifacts []string
	if (md.BPM == 0 || md.Key == "") && strings.TrimSpace(link) != "" {
		res, err := r.scraper.Scrape(ctx, link)
		if res != nil {
			artifacts = res.Artifacts
			if md.BPM == 0 && res.BPM > 0 {
				md.BPM = res.BPM
			}
			if md.Key == "" && res.Key != "" {
				md.Key = res.Key
			}
		}
		if err != nil {
			log.Printf("[Metadata] scrape failed: %v", err)
		}
	}

	if md.BPM == 0 || md.Key == "" {
		return Resolution{
			Missing:   &models.MissingData{BPM: md.BPM == 0, Key: md.Key == ""},
			Artifacts: artifacts,
		}
	}

	return Resolution{Metadata: &md, Artifacts: artifacts}
}

// parseManualBPM accepts only positive integers. Anything else ("abc",
// "-12", "90.5") is treated as absent so resolution falls through to the
// scrape instead of crashing.
func parseManualBPM(s string) (int, bool) {
	bpm, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || bpm <= 0 {
		return 0, false
	}
	return bpm, true
}
