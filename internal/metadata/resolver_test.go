package metadata

import (
	"context"
	"errors"
	"testing"
)

type fakeScraper struct {
	calls  int
	result *ScrapeResult
	err    error
}

func (f *fakeScraper) Scrape(ctx context.Context, link string) (*ScrapeResult, error) {
	f.calls++
	return f.result, f.err
}

func TestResolveUsesManualValuesWithoutScraping(t *testing.T) {
	scraper := &fakeScraper{result: &ScrapeResult{BPM: 999, Key: "Zz"}}
	r := NewResolver(scraper)

	res := r.Resolve(context.Background(), "142", "C#m", "https://example.com/beat-12345")

	if scraper.calls != 0 {
		t.Errorf("expected no scrape when manual values are complete, got %d calls", scraper.calls)
	}
	if res.Metadata == nil {
		t.Fatal("expected resolved metadata")
	}
	if res.Metadata.BPM != 142 || res.Metadata.Key != "C#m" {
		t.Errorf("expected 142/C#m, got %d/%s", res.Metadata.BPM, res.Metadata.Key)
	}
}

func TestResolveScrapesOnlyMissingFields(t *testing.T) {
	scraper := &fakeScraper{result: &ScrapeResult{BPM: 90, Key: "Am"}}
	r := NewResolver(scraper)

	res := r.Resolve(context.Background(), "142", "", "https://example.com/beat-12345")

	if scraper.calls != 1 {
		t.Fatalf("expected one scrape, got %d", scraper.calls)
	}
	if res.Metadata == nil {
		t.Fatal("expected resolved metadata")
	}
	// Manual BPM wins; only the key comes from the scrape.
	if res.Metadata.BPM != 142 {
		t.Errorf("manual BPM overwritten: got %d", res.Metadata.BPM)
	}
	if res.Metadata.Key != "Am" {
		t.Errorf("expected scraped key Am, got %s", res.Metadata.Key)
	}
}

func TestResolveUnparseableManualBPMFallsThrough(t *testing.T) {
	scraper := &fakeScraper{result: &ScrapeResult{BPM: 128, Key: "F"}}
	r := NewResolver(scraper)

	res := r.Resolve(context.Background(), "abc", "", "https://example.com/beat-12345")

	if scraper.calls != 1 {
		t.Fatalf("expected scrape after ignoring bad manual BPM, got %d calls", scraper.calls)
	}
	if res.Metadata == nil || res.Metadata.BPM != 128 {
		t.Fatalf("expected scraped BPM 128, got %+v", res.Metadata)
	}
}

func TestResolveReportsMissingFieldsWithoutLink(t *testing.T) {
	scraper := &fakeScraper{}
	r := NewResolver(scraper)

	res := r.Resolve(context.Background(), "142", "", "")

	if scraper.calls != 0 {
		t.Errorf("expected no scrape without a link, got %d calls", scraper.calls)
	}
	if res.Metadata != nil {
		t.Fatal("expected incomplete resolution")
	}
	if res.Missing == nil || res.Missing.BPM || !res.Missing.Key {
		t.Errorf("expected missing={bpm:false key:true}, got %+v", res.Missing)
	}
}

func TestResolveScrapeFailureIsNotFatal(t *testing.T) {
	scraper := &fakeScraper{
		result: &ScrapeResult{Artifacts: []string{"/tmp/scrape_1.png"}},
		err:    errors.New("browser crashed"),
	}
	r := NewResolver(scraper)

	res := r.Resolve(context.Background(), "", "", "https://example.com/beat-12345")

	if res.Metadata != nil {
		t.Fatal("expected incomplete resolution")
	}
	if res.Missing == nil || !res.Missing.BPM || !res.Missing.Key {
		t.Errorf("expected both fields missing, got %+v", res.Missing)
	}
	// Artifacts from the failed scrape still flow out for cleanup.
	if len(res.Artifacts) != 1 {
		t.Errorf("expected 1 artifact, got %d", len(res.Artifacts))
	}
}
